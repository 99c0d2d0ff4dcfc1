package results

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stores results as plain keys with a TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis returns a Redis-backed store. A zero ttl uses DefaultTTL.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

func (s *Redis) Save(ctx context.Context, jobID string, payload []byte) error {
	if err := s.client.Set(ctx, Key(jobID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("save result %s: %w", jobID, err)
	}
	return nil
}

func (s *Redis) Get(ctx context.Context, jobID string) ([]byte, error) {
	b, err := s.client.Get(ctx, Key(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get result %s: %w", jobID, err)
	}
	return b, nil
}
