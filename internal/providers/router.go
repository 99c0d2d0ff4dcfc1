package providers

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// Family selects the request dialect spoken by an endpoint.
type Family string

const (
	// FamilyVLLM endpoints accept the repetition_penalty sampling parameter.
	FamilyVLLM Family = "vllm"

	// FamilyOllama endpoints speak plain OpenAI chat completions.
	FamilyOllama Family = "ollama"
)

// Endpoint is one model server reachable over HTTP.
type Endpoint struct {
	Name      string
	BaseURL   string
	Family    Family
	APIKey    string
	RateLimit int           // requests per minute, 0 = unlimited
	Timeout   time.Duration // per attempt, 0 = no limit beyond ctx
}

// RouterConfig is the routing table as loaded from configuration.
type RouterConfig struct {
	// Endpoints maps endpoint names to their settings.
	Endpoints map[string]Endpoint

	// Routes maps model names to endpoint names.
	Routes map[string]string

	// Default names the endpoint used by unrouted models.
	Default string
}

// Router resolves a model name to the endpoint that serves it.
// It is safe for concurrent use and supports hot reload.
type Router struct {
	mu        sync.RWMutex
	endpoints map[string]Endpoint
	routes    map[string]string
	def       string
	logger    *slog.Logger
}

// NewRouter validates cfg and builds a router.
func NewRouter(cfg RouterConfig, logger *slog.Logger) (*Router, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{logger: logger}
	if err := r.Reload(cfg); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload swaps in a new routing table. The old table stays active if cfg is invalid.
func (r *Router) Reload(cfg RouterConfig) error {
	endpoints := make(map[string]Endpoint, len(cfg.Endpoints))
	for name, ep := range cfg.Endpoints {
		if ep.BaseURL == "" {
			return fmt.Errorf("endpoint %s: base_url is required", name)
		}
		switch ep.Family {
		case "":
			ep.Family = FamilyVLLM
		case FamilyVLLM, FamilyOllama:
		default:
			return fmt.Errorf("endpoint %s: unsupported family %q", name, ep.Family)
		}
		ep.Name = name
		ep.BaseURL = strings.TrimRight(ep.BaseURL, "/")
		endpoints[name] = ep
	}

	if _, ok := endpoints[cfg.Default]; !ok {
		return fmt.Errorf("%w: default %q", ErrUnknownEndpoint, cfg.Default)
	}

	routes := make(map[string]string, len(cfg.Routes))
	for model, name := range cfg.Routes {
		if _, ok := endpoints[name]; !ok {
			return fmt.Errorf("%w: route %s -> %q", ErrUnknownEndpoint, model, name)
		}
		routes[model] = name
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for name, ep := range endpoints {
		old, existed := r.endpoints[name]
		switch {
		case !existed:
			r.logger.Info("registered endpoint", "name", name, "url", ep.BaseURL, "family", ep.Family)
		case old != ep:
			r.logger.Info("updated endpoint", "name", name, "url", ep.BaseURL, "family", ep.Family)
		}
	}
	for name := range r.endpoints {
		if _, ok := endpoints[name]; !ok {
			r.logger.Info("unregistered endpoint", "name", name)
		}
	}

	r.endpoints = endpoints
	r.routes = routes
	r.def = cfg.Default
	return nil
}

// Resolve returns the endpoint for model. A non-empty override is used as
// the base URL verbatim; it inherits the family of a configured endpoint with
// the same base URL, else the default endpoint's family.
func (r *Router) Resolve(model, override string) Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if override != "" {
		base := strings.TrimRight(override, "/")
		for _, ep := range r.endpoints {
			if ep.BaseURL == base {
				return ep
			}
		}
		ep := r.endpoints[r.def]
		return Endpoint{Name: "override", BaseURL: base, Family: ep.Family, APIKey: ep.APIKey, Timeout: ep.Timeout}
	}

	if name, ok := r.routes[model]; ok {
		return r.endpoints[name]
	}
	return r.endpoints[r.def]
}

// Endpoints returns the configured endpoints sorted by name.
func (r *Router) Endpoints() []Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Endpoint, 0, len(r.endpoints))
	for _, ep := range r.endpoints {
		out = append(out, ep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
