package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/providers"
	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/results"
)

// EnvPrefix prefixes environment overrides, e.g. IDSCAN_REDIS_URL.
const EnvPrefix = "IDSCAN"

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	v         *viper.Viper
	config    *Config
	callbacks []func(*Config)
	logger    *slog.Logger
}

// NewManager creates a new config manager and loads initial config.
// An empty cfgFile searches ./config.yaml then ~/.idscan/config.yaml.
func NewManager(cfgFile string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cm := &Manager{
		v:      viper.New(),
		logger: logger,
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	if err := setDefaults(cm.v, DefaultConfig()); err != nil {
		return err
	}

	cm.v.SetEnvPrefix(EnvPrefix)
	cm.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cm.v.AutomaticEnv()

	if cfgFile != "" {
		cm.v.SetConfigFile(cfgFile)
	} else {
		cm.v.SetConfigName("config")
		cm.v.SetConfigType("yaml")
		cm.v.AddConfigPath(".")
		cm.v.AddConfigPath("$HOME/.idscan")
	}

	// The config file is optional.
	if err := cm.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// setDefaults registers every leaf of def so that env overrides and partial
// files merge with the defaults. Endpoints and routes are filled in after
// loading instead, so a file that sets them replaces them as a whole.
func setDefaults(v *viper.Viper, def *Config) error {
	data, err := yamlv3.Marshal(def)
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}
	var tree map[string]any
	if err := yamlv3.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("unmarshal defaults: %w", err)
	}
	for key, val := range tree {
		if key == "endpoints" || key == "routes" {
			continue
		}
		setLeaves(v, key, val)
	}
	return nil
}

func setLeaves(v *viper.Viper, prefix string, val any) {
	m, ok := val.(map[string]any)
	if !ok {
		v.SetDefault(prefix, val)
		return
	}
	for k, child := range m {
		setLeaves(v, prefix+"."+k, child)
	}
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if len(cfg.Endpoints) == 0 {
		def := DefaultConfig()
		cfg.Endpoints = def.Endpoints
		if !cm.v.IsSet("routes") {
			cfg.Routes = def.Routes
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// ConfigFileUsed returns the path of the loaded file, or "" when running on
// defaults.
func (cm *Manager) ConfigFileUsed() string {
	return cm.v.ConfigFileUsed()
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration. An invalid edit is
// logged and the previous configuration stays active.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			cm.logger.Warn("ignoring invalid config change", "file", e.Name, "error", err)
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		cm.logger.Info("config reloaded", "file", e.Name)
		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Results.Backend {
	case results.BackendRedis, results.BackendSQLite, results.BackendMemory:
	default:
		return fmt.Errorf("results.backend %q: must be redis, sqlite or memory", c.Results.Backend)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if _, ok := c.Endpoints[c.Pipeline.DefaultEndpoint]; !ok {
		return fmt.Errorf("pipeline.default_endpoint %q is not a configured endpoint", c.Pipeline.DefaultEndpoint)
	}
	for _, r := range c.Routes {
		if r.Model == "" {
			return fmt.Errorf("route to %q has no model", r.Endpoint)
		}
		if _, ok := c.Endpoints[r.Endpoint]; !ok {
			return fmt.Errorf("route %q -> %q: %w", r.Model, r.Endpoint, providers.ErrUnknownEndpoint)
		}
	}
	return nil
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envPattern.ReplaceAllStringFunc(value, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

// RouterConfig converts the endpoint table for providers.Router.
// It resolves all ${ENV_VAR} references in API keys.
func (c *Config) RouterConfig() providers.RouterConfig {
	cfg := providers.RouterConfig{
		Endpoints: make(map[string]providers.Endpoint, len(c.Endpoints)),
		Routes:    make(map[string]string, len(c.Routes)),
		Default:   c.Pipeline.DefaultEndpoint,
	}
	for name, ep := range c.Endpoints {
		cfg.Endpoints[name] = providers.Endpoint{
			Name:      name,
			BaseURL:   ep.BaseURL,
			Family:    providers.Family(ep.Family),
			APIKey:    ResolveEnvVars(ep.APIKey),
			RateLimit: ep.RateLimit,
			Timeout:   time.Duration(ep.TimeoutSeconds) * time.Second,
		}
	}
	for _, r := range c.Routes {
		cfg.Routes[r.Model] = r.Endpoint
	}
	return cfg
}

// ClientConfig returns inference client settings around router.
func (c *Config) ClientConfig(router *providers.Router, logger *slog.Logger) providers.ClientConfig {
	return providers.ClientConfig{
		Router:            router,
		Prompt:            c.Pipeline.Prompt,
		MaxTokens:         c.Pipeline.MaxTokens,
		Temperature:       c.Pipeline.Temperature,
		RepetitionPenalty: c.Pipeline.RepetitionPenalty,
		MaxRetries:        c.Retry.MaxRetries,
		RetryDelay:        c.Retry.BaseDelay,
		MaxRetryDelay:     c.Retry.MaxDelay,
		Logger:            logger,
	}
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# idscan configuration
# API keys use ${ENV_VAR} syntax to reference environment variables.
# Any key can be overridden from the environment: IDSCAN_REDIS_URL, IDSCAN_WORKERS, ...

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
