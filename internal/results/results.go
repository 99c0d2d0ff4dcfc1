// Package results stores final job payloads keyed by job ID.
package results

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTTL is how long a result stays retrievable.
const DefaultTTL = 24 * time.Hour

// ErrNotFound is returned for unknown or expired job IDs.
var ErrNotFound = errors.New("result not found")

// Store persists one JSON payload per job. Saving the same job twice
// replaces the earlier payload.
type Store interface {
	Save(ctx context.Context, jobID string, payload []byte) error
	Get(ctx context.Context, jobID string) ([]byte, error)
}

// Backend names accepted by config.
const (
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Key returns the Redis key for jobID.
func Key(jobID string) string {
	return fmt.Sprintf("result:%s", jobID)
}
