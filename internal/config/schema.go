package config

import "time"

// Config holds idscan configuration.
// Stored at: ./config.yaml or ~/.idscan/config.yaml
type Config struct {
	Redis     RedisCfg               `mapstructure:"redis" yaml:"redis"`
	Results   ResultsCfg             `mapstructure:"results" yaml:"results"`
	Endpoints map[string]EndpointCfg `mapstructure:"endpoints" yaml:"endpoints"`
	Routes    []RouteCfg             `mapstructure:"routes" yaml:"routes"`
	Pipeline  PipelineCfg            `mapstructure:"pipeline" yaml:"pipeline"`
	Retry     RetryCfg               `mapstructure:"retry" yaml:"retry"`
	Workers   int                    `mapstructure:"workers" yaml:"workers"`
	Docker    DockerCfg              `mapstructure:"docker" yaml:"docker"`
}

// RedisCfg configures the job stream.
type RedisCfg struct {
	URL         string        `mapstructure:"url" yaml:"url"`
	Stream      string        `mapstructure:"stream" yaml:"stream"`
	Group       string        `mapstructure:"group" yaml:"group"`
	DLQ         string        `mapstructure:"dlq" yaml:"dlq"`
	Block       time.Duration `mapstructure:"block" yaml:"block"`               // per read
	ReclaimIdle time.Duration `mapstructure:"reclaim_idle" yaml:"reclaim_idle"` // pending age before takeover
}

// ResultsCfg selects the result store.
type ResultsCfg struct {
	Backend    string        `mapstructure:"backend" yaml:"backend"` // "redis", "sqlite" or "memory"
	TTL        time.Duration `mapstructure:"ttl" yaml:"ttl"`
	SQLitePath string        `mapstructure:"sqlite_path" yaml:"sqlite_path"` // empty: ~/.idscan/results.db
}

// EndpointCfg configures one model server.
type EndpointCfg struct {
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`
	Family         string `mapstructure:"family" yaml:"family"`   // "vllm" or "ollama"
	APIKey         string `mapstructure:"api_key" yaml:"api_key"` // supports ${ENV_VAR}
	RateLimit      int    `mapstructure:"rate_limit" yaml:"rate_limit"` // requests per minute, 0 = unlimited
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// RouteCfg sends one model to a named endpoint. Model names often contain
// dots, so routes are a list rather than a keyed map.
type RouteCfg struct {
	Model    string `mapstructure:"model" yaml:"model"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
}

// PipelineCfg configures job processing.
type PipelineCfg struct {
	DefaultEndpoint   string  `mapstructure:"default_endpoint" yaml:"default_endpoint"`
	PrimaryModel      string  `mapstructure:"primary_model" yaml:"primary_model"`
	JudgeModel        string  `mapstructure:"judge_model" yaml:"judge_model"`
	JudgeEnabled      bool    `mapstructure:"judge_enabled" yaml:"judge_enabled"`
	Prompt            string  `mapstructure:"prompt" yaml:"prompt"`
	MaxTokens         int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature       float64 `mapstructure:"temperature" yaml:"temperature"`
	RepetitionPenalty float64 `mapstructure:"repetition_penalty" yaml:"repetition_penalty"`
	ViewOverlap       int     `mapstructure:"view_overlap" yaml:"view_overlap"`
}

// RetryCfg bounds model call retries.
type RetryCfg struct {
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"` // after the first attempt
	BaseDelay  time.Duration `mapstructure:"base_delay" yaml:"base_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
}

// DockerCfg holds the local Redis container settings.
type DockerCfg struct {
	// ContainerName is the Docker container name (default: idscan-redis)
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
	// Image is the Docker image to use (default: redis:7-alpine)
	Image string `mapstructure:"image" yaml:"image"`
	// Port is the host port to bind (default: 6379)
	Port string `mapstructure:"port" yaml:"port"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Redis: RedisCfg{
			URL:         "redis://localhost:6379/0",
			Stream:      "ocr_jobs",
			Group:       "ocr_workers",
			DLQ:         "ocr_dlq",
			Block:       5 * time.Second,
			ReclaimIdle: 10 * time.Minute,
		},
		Results: ResultsCfg{
			Backend: "redis",
			TTL:     24 * time.Hour,
		},
		Endpoints: map[string]EndpointCfg{
			"primary": {
				BaseURL:        "http://localhost:8000",
				Family:         "vllm",
				TimeoutSeconds: 120,
			},
			"judge": {
				BaseURL:        "http://localhost:11434",
				Family:         "ollama",
				TimeoutSeconds: 180,
			},
		},
		Routes: []RouteCfg{
			{Model: "qwen3-vl:8b-instruct", Endpoint: "judge"},
		},
		Pipeline: PipelineCfg{
			DefaultEndpoint:   "primary",
			PrimaryModel:      "tencent/HunyuanOCR",
			JudgeModel:        "qwen3-vl:8b-instruct",
			JudgeEnabled:      true,
			MaxTokens:         4096,
			Temperature:       0,
			RepetitionPenalty: 1.05,
			ViewOverlap:       50,
		},
		Retry: RetryCfg{
			MaxRetries: 3,
			BaseDelay:  4 * time.Second,
			MaxDelay:   10 * time.Second,
		},
		Workers: 1,
		Docker: DockerCfg{
			ContainerName: "idscan-redis",
			Image:         "redis:7-alpine",
			Port:          "6379",
		},
	}
}
