package providers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MockInvoker is an Invoker for testing. Respond decides the reply to each
// request; a nil Respond answers every call with ResponseText.
type MockInvoker struct {
	Latency      time.Duration
	ResponseText string
	Respond      func(req InvokeRequest) (*ChatResponse, error)

	mu           sync.Mutex
	calls        []InvokeRequest
	requestCount atomic.Int64
}

// NewMockInvoker creates a mock that replies with text to every call.
func NewMockInvoker(text string) *MockInvoker {
	return &MockInvoker{ResponseText: text}
}

// Invoke records req and returns the scripted reply.
func (m *MockInvoker) Invoke(ctx context.Context, req InvokeRequest) (*ChatResponse, error) {
	m.requestCount.Add(1)
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.Latency > 0 {
		select {
		case <-time.After(m.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if m.Respond != nil {
		return m.Respond(req)
	}
	return NewTextResponse(m.ResponseText), nil
}

// Calls returns a copy of every request seen so far.
func (m *MockInvoker) Calls() []InvokeRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]InvokeRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

// RequestCount returns the number of requests made.
func (m *MockInvoker) RequestCount() int64 {
	return m.requestCount.Load()
}

var _ Invoker = (*MockInvoker)(nil)
