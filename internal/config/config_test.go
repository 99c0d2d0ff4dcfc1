package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/providers"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Redis.Stream != "ocr_jobs" || cfg.Redis.Group != "ocr_workers" || cfg.Redis.DLQ != "ocr_dlq" {
		t.Errorf("stream names = %+v", cfg.Redis)
	}
	if cfg.Results.TTL != 24*time.Hour {
		t.Errorf("results ttl = %v", cfg.Results.TTL)
	}
	if cfg.Retry.MaxRetries != 3 {
		t.Errorf("max retries = %d", cfg.Retry.MaxRetries)
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves environment variable", func(t *testing.T) {
		t.Setenv("TEST_API_KEY", "secret123")
		if got := ResolveEnvVars("${TEST_API_KEY}"); got != "secret123" {
			t.Errorf("expected secret123, got %s", got)
		}
	})

	t.Run("returns empty for missing env var", func(t *testing.T) {
		if got := ResolveEnvVars("${DEFINITELY_NOT_SET_12345}"); got != "" {
			t.Errorf("expected empty string, got %s", got)
		}
	})

	t.Run("leaves literal values unchanged", func(t *testing.T) {
		if got := ResolveEnvVars("literal-value"); got != "literal-value" {
			t.Errorf("expected literal-value, got %s", got)
		}
	})
}

func TestNewManager(t *testing.T) {
	t.Run("partial file merges with defaults", func(t *testing.T) {
		path := writeConfig(t, `
redis:
  url: redis://cache:6380/2
retry:
  base_delay: 1s
workers: 4
`)
		mgr, err := NewManager(path, nil)
		if err != nil {
			t.Fatalf("NewManager() error = %v", err)
		}
		cfg := mgr.Get()
		if cfg.Redis.URL != "redis://cache:6380/2" || cfg.Redis.Stream != "ocr_jobs" {
			t.Errorf("redis = %+v", cfg.Redis)
		}
		if cfg.Retry.BaseDelay != time.Second || cfg.Retry.MaxDelay != 10*time.Second {
			t.Errorf("retry = %+v", cfg.Retry)
		}
		if cfg.Workers != 4 {
			t.Errorf("workers = %d", cfg.Workers)
		}
		if cfg.Redis.Block != 5*time.Second {
			t.Errorf("block = %v", cfg.Redis.Block)
		}
		if mgr.ConfigFileUsed() != path {
			t.Errorf("ConfigFileUsed() = %q", mgr.ConfigFileUsed())
		}
	})

	t.Run("endpoint table replaces defaults", func(t *testing.T) {
		path := writeConfig(t, `
endpoints:
  gpu:
    base_url: http://gpu:8000
    family: vllm
pipeline:
  default_endpoint: gpu
`)
		mgr, err := NewManager(path, nil)
		if err != nil {
			t.Fatalf("NewManager() error = %v", err)
		}
		cfg := mgr.Get()
		if len(cfg.Endpoints) != 1 || cfg.Endpoints["gpu"].BaseURL != "http://gpu:8000" {
			t.Errorf("endpoints = %+v", cfg.Endpoints)
		}
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("IDSCAN_WORKERS", "7")
		t.Setenv("IDSCAN_RESULTS_BACKEND", "memory")
		mgr, err := NewManager(writeConfig(t, "workers: 2\n"), nil)
		if err != nil {
			t.Fatalf("NewManager() error = %v", err)
		}
		if cfg := mgr.Get(); cfg.Workers != 7 || cfg.Results.Backend != "memory" {
			t.Errorf("workers = %d backend = %q", cfg.Workers, cfg.Results.Backend)
		}
	})

	t.Run("invalid backend", func(t *testing.T) {
		_, err := NewManager(writeConfig(t, "results:\n  backend: postgres\n"), nil)
		if err == nil || !strings.Contains(err.Error(), "results.backend") {
			t.Errorf("NewManager() error = %v", err)
		}
	})

	t.Run("route to unknown endpoint", func(t *testing.T) {
		_, err := NewManager(writeConfig(t, "routes:\n  - model: some.model-1.5\n    endpoint: nowhere\n"), nil)
		if err == nil {
			t.Error("expected error")
		}
	})
}

func TestRouterConfig(t *testing.T) {
	t.Setenv("TEST_JUDGE_KEY", "k-123")
	cfg := DefaultConfig()
	ep := cfg.Endpoints["judge"]
	ep.APIKey = "${TEST_JUDGE_KEY}"
	ep.RateLimit = 30
	cfg.Endpoints["judge"] = ep

	rc := cfg.RouterConfig()
	if rc.Default != "primary" {
		t.Errorf("Default = %q", rc.Default)
	}
	judge := rc.Endpoints["judge"]
	if judge.APIKey != "k-123" || judge.Family != providers.FamilyOllama || judge.RateLimit != 30 || judge.Timeout != 180*time.Second {
		t.Errorf("judge endpoint = %+v", judge)
	}

	router, err := providers.NewRouter(rc, nil)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	if got := router.Resolve("qwen3-vl:8b-instruct", ""); got.Name != "judge" {
		t.Errorf("Resolve(judge model) = %q", got.Name)
	}
	if got := router.Resolve("tencent/HunyuanOCR", ""); got.Name != "primary" {
		t.Errorf("Resolve(primary model) = %q", got.Name)
	}

	cc := cfg.ClientConfig(router, nil)
	if cc.MaxRetries != 3 || cc.RetryDelay != 4*time.Second || cc.RepetitionPenalty != 1.05 {
		t.Errorf("ClientConfig() = %+v", cc)
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(data), "# idscan configuration") {
		t.Errorf("missing header:\n%s", data)
	}

	mgr, err := NewManager(path, nil)
	if err != nil {
		t.Fatalf("NewManager(written defaults) error = %v", err)
	}
	cfg := mgr.Get()
	if cfg.Redis.Block != 5*time.Second || cfg.Pipeline.JudgeModel != "qwen3-vl:8b-instruct" || !cfg.Pipeline.JudgeEnabled {
		t.Errorf("round-tripped config = %+v", cfg)
	}
}

func TestManager_OnChange_Multiple(t *testing.T) {
	mgr, err := NewManager(writeConfig(t, "workers: 1\n"), nil)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})

	mgr.mu.RLock()
	if len(mgr.callbacks) != 3 {
		t.Errorf("expected 3 callbacks, got %d", len(mgr.callbacks))
	}
	mgr.mu.RUnlock()
}

func TestManager_WatchConfig(t *testing.T) {
	configFile := writeConfig(t, `
endpoints:
  primary:
    base_url: http://old:8000
    family: vllm
`)
	mgr, err := NewManager(configFile, nil)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	var callbackCount atomic.Int32
	var lastValue atomic.Value
	mgr.OnChange(func(cfg *Config) {
		callbackCount.Add(1)
		lastValue.Store(cfg.Endpoints["primary"].BaseURL)
	})

	mgr.WatchConfig()

	// Give fsnotify time to set up the watcher
	time.Sleep(100 * time.Millisecond)

	newContent := `
endpoints:
  primary:
    base_url: http://new:8000
    family: vllm
`
	if err := os.WriteFile(configFile, []byte(newContent), 0o644); err != nil {
		t.Fatalf("failed to write updated config file: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if callbackCount.Load() > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	if callbackCount.Load() == 0 {
		t.Fatal("callback was not invoked after config file change")
	}
	if got := mgr.Get().Endpoints["primary"].BaseURL; got != "http://new:8000" {
		t.Errorf("config not updated: got %s", got)
	}
	if v := lastValue.Load(); v != "http://new:8000" {
		t.Errorf("callback received wrong value: %v", v)
	}
}
