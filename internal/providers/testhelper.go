package providers

import (
	"os"
)

// TestConfig holds live endpoint URLs loaded from environment variables.
// Tests that need a real model server skip when the URL is unset.
type TestConfig struct {
	VLLMURL   string
	OllamaURL string
}

// LoadTestConfig reads IDSCAN_TEST_VLLM_URL and IDSCAN_TEST_OLLAMA_URL.
func LoadTestConfig() TestConfig {
	return TestConfig{
		VLLMURL:   os.Getenv("IDSCAN_TEST_VLLM_URL"),
		OllamaURL: os.Getenv("IDSCAN_TEST_OLLAMA_URL"),
	}
}

// HasVLLM returns true if a vllm endpoint is configured.
func (c TestConfig) HasVLLM() bool {
	return c.VLLMURL != ""
}

// HasOllama returns true if an ollama endpoint is configured.
func (c TestConfig) HasOllama() bool {
	return c.OllamaURL != ""
}
