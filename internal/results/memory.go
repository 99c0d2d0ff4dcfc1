package results

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	payload []byte
	expires time.Time
}

// Memory is an in-process Store.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	ttl     time.Duration

	// Now returns the current time; replaceable in tests.
	Now func() time.Time
}

// NewMemory returns an empty store. A zero ttl uses DefaultTTL.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{entries: make(map[string]memEntry), ttl: ttl, Now: time.Now}
}

func (s *Memory) Save(_ context.Context, jobID string, payload []byte) error {
	s.mu.Lock()
	s.entries[jobID] = memEntry{payload: append([]byte(nil), payload...), expires: s.Now().Add(s.ttl)}
	s.mu.Unlock()
	return nil
}

func (s *Memory) Get(_ context.Context, jobID string) ([]byte, error) {
	s.mu.RLock()
	e, ok := s.entries[jobID]
	s.mu.RUnlock()
	if !ok || !s.Now().Before(e.expires) {
		return nil, ErrNotFound
	}
	return append([]byte(nil), e.payload...), nil
}
