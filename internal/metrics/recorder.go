package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/providers"
)

// DefaultCapacity bounds how many metrics a Recorder keeps.
const DefaultCapacity = 10000

// Recorder keeps the most recent metrics in memory. Safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	metrics  []Metric
	capacity int

	// Now returns the current time; replaceable in tests.
	Now func() time.Time
}

// NewRecorder creates a recorder holding at most capacity metrics
// (DefaultCapacity when capacity <= 0). Older metrics are dropped first.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Recorder{capacity: capacity, Now: time.Now}
}

// Record stores m.
func (r *Recorder) Record(m Metric) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = r.Now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.metrics) == r.capacity {
		copy(r.metrics, r.metrics[1:])
		r.metrics = r.metrics[:len(r.metrics)-1]
	}
	r.metrics = append(r.metrics, m)
}

// RecordCall records the outcome of one Invoke.
func (r *Recorder) RecordCall(ctx context.Context, req providers.InvokeRequest, resp *providers.ChatResponse, err error, elapsed time.Duration) {
	a := attributionFrom(ctx)
	m := Metric{
		JobID:        a.jobID,
		Stage:        a.stage,
		Model:        req.Model,
		Endpoint:     req.Endpoint,
		TotalSeconds: elapsed.Seconds(),
		Success:      err == nil,
		ErrorType:    errorType(err),
	}
	if resp != nil {
		if resp.Endpoint != "" {
			m.Endpoint = resp.Endpoint
		}
		m.Attempts = resp.Attempts
		m.PromptTokens = resp.Usage.PromptTokens
		m.CompletionTokens = resp.Usage.CompletionTokens
		m.TotalTokens = resp.Usage.TotalTokens
	}
	r.Record(m)
}

// List returns metrics matching f, oldest first. A positive limit keeps
// only the newest limit matches.
func (r *Recorder) List(f Filter, limit int) []Metric {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Metric
	for _, m := range r.metrics {
		if f.match(m) {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func errorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, providers.ErrRetriesExhausted):
		return "retries_exhausted"
	case errors.Is(err, providers.ErrUnknownEndpoint):
		return "unknown_endpoint"
	default:
		return "error"
	}
}

type attribution struct {
	jobID string
	stage string
}

type attributionKey struct{}

func attributionFrom(ctx context.Context) attribution {
	a, _ := ctx.Value(attributionKey{}).(attribution)
	return a
}

// WithJob attributes model calls made with ctx to jobID.
func WithJob(ctx context.Context, jobID string) context.Context {
	a := attributionFrom(ctx)
	a.jobID = jobID
	return context.WithValue(ctx, attributionKey{}, a)
}

// WithStage attributes model calls made with ctx to stage.
func WithStage(ctx context.Context, stage string) context.Context {
	a := attributionFrom(ctx)
	a.stage = stage
	return context.WithValue(ctx, attributionKey{}, a)
}
