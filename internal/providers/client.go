package providers

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
)

// ClientConfig configures the inference client.
type ClientConfig struct {
	Router *Router

	Prompt            string  // default instruction
	MaxTokens         int     // default: DefaultMaxTokens
	Temperature       float64 // default: 0
	RepetitionPenalty float64 // vllm family only; default: DefaultRepetitionPenalty

	// MaxRetries is the number of retries after the first attempt.
	// Negative disables retries; zero uses DefaultMaxRetries.
	MaxRetries    int
	RetryDelay    time.Duration // first backoff, doubled per retry
	MaxRetryDelay time.Duration // backoff cap

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client sends vision requests to the endpoint chosen by its Router and
// retries failed attempts with capped exponential backoff.
type Client struct {
	router   *Router
	backends map[Family]backend

	prompt            string
	maxTokens         int
	temperature       float64
	repetitionPenalty float64

	maxRetries    int
	retryDelay    time.Duration
	maxRetryDelay time.Duration

	limitersMu sync.Mutex
	limiters   map[string]*RateLimiter

	logger *slog.Logger
}

// NewClient creates a client. cfg.Router is required.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Router == nil {
		return nil, fmt.Errorf("router is required")
	}
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultPrompt
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.RepetitionPenalty == 0 {
		cfg.RepetitionPenalty = DefaultRepetitionPenalty
	}
	switch {
	case cfg.MaxRetries < 0:
		cfg.MaxRetries = 0
	case cfg.MaxRetries == 0:
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 4 * time.Second
	}
	if cfg.MaxRetryDelay <= 0 {
		cfg.MaxRetryDelay = 10 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		router: cfg.Router,
		backends: map[Family]backend{
			FamilyVLLM:   &vllmBackend{client: cfg.HTTPClient},
			FamilyOllama: &ollamaBackend{client: cfg.HTTPClient},
		},
		prompt:            cfg.Prompt,
		maxTokens:         cfg.MaxTokens,
		temperature:       cfg.Temperature,
		repetitionPenalty: cfg.RepetitionPenalty,
		maxRetries:        cfg.MaxRetries,
		retryDelay:        cfg.RetryDelay,
		maxRetryDelay:     cfg.MaxRetryDelay,
		limiters:          make(map[string]*RateLimiter),
		logger:            cfg.Logger,
	}, nil
}

// Invoke sends the image and instruction to the routed endpoint.
// It returns an error wrapping ErrRetriesExhausted when every attempt failed.
func (c *Client) Invoke(ctx context.Context, req InvokeRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = DefaultModel
	}
	prompt := req.Prompt
	if prompt == "" {
		prompt = c.prompt
	}

	ep := c.router.Resolve(model, req.Endpoint)
	be, ok := c.backends[ep.Family]
	if !ok {
		return nil, fmt.Errorf("no backend for family %q", ep.Family)
	}

	creq := completionRequest{
		Model:       model,
		Prompt:      prompt,
		ImageURL:    dataURL(req.Image),
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
	if ep.Family == FamilyVLLM {
		creq.RepetitionPenalty = c.repetitionPenalty
	}

	logger := c.logger.With("request_id", uuid.NewString()[:8], "model", model, "endpoint", ep.Name)
	limiter := c.limiterFor(ep)
	start := time.Now()
	attempts := 0

	resp, err := retry.DoWithData(
		func() (*ChatResponse, error) {
			attempts++
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					return nil, retry.Unrecoverable(err)
				}
			}
			return c.attempt(ctx, be, ep, creq)
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries+1)),
		retry.Delay(c.retryDelay),
		retry.MaxDelay(c.maxRetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("inference attempt failed, retrying", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.Error("inference failed", "attempts", attempts, "error", err)
		return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrRetriesExhausted, model, attempts, err)
	}

	resp.Endpoint = ep.BaseURL
	resp.Attempts = attempts
	resp.Latency = time.Since(start)
	logger.Debug("inference complete", "attempts", attempts, "latency", resp.Latency)
	return resp, nil
}

func (c *Client) attempt(ctx context.Context, be backend, ep Endpoint, req completionRequest) (*ChatResponse, error) {
	if ep.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ep.Timeout)
		defer cancel()
	}
	return be.complete(ctx, ep, req)
}

func (c *Client) limiterFor(ep Endpoint) *RateLimiter {
	if ep.RateLimit <= 0 {
		return nil
	}
	c.limitersMu.Lock()
	defer c.limitersMu.Unlock()
	key := ep.BaseURL
	lim, ok := c.limiters[key]
	if !ok || lim.Status().TokensLimit != ep.RateLimit {
		lim = NewRateLimiter(ep.RateLimit)
		c.limiters[key] = lim
	}
	return lim
}

// dataURL inlines image bytes with a sniffed media type.
func dataURL(image []byte) string {
	mime := http.DetectContentType(image)
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image)
}

var _ Invoker = (*Client)(nil)
