package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const dataField = "data"

// RedisConfig configures a Redis Streams queue.
type RedisConfig struct {
	Client *redis.Client
	Stream string // default: DefaultStream
	Group  string // default: DefaultGroup
	DLQ    string // default: DefaultDLQ
	Logger *slog.Logger
}

// Redis is a Queue on Redis Streams.
type Redis struct {
	client *redis.Client
	stream string
	group  string
	dlq    string
	logger *slog.Logger
}

// NewRedis creates a Redis Streams queue. The client is owned by the caller.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if cfg.Stream == "" {
		cfg.Stream = DefaultStream
	}
	if cfg.Group == "" {
		cfg.Group = DefaultGroup
	}
	if cfg.DLQ == "" {
		cfg.DLQ = DefaultDLQ
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Redis{
		client: cfg.Client,
		stream: cfg.Stream,
		group:  cfg.Group,
		dlq:    cfg.DLQ,
		logger: cfg.Logger.With("stream", cfg.Stream, "group", cfg.Group),
	}, nil
}

// Init creates the consumer group, and the stream with it.
func (q *Redis) Init(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	if err == nil {
		q.logger.Info("created consumer group")
	}
	return nil
}

// Enqueue adds data under the "data" field.
func (q *Redis) Enqueue(ctx context.Context, data []byte) (string, error) {
	id, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]any{dataField: data},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", q.stream, err)
	}
	return id, nil
}

// Read reads one new message for consumer.
func (q *Redis) Read(ctx context.Context, consumer string, block time.Duration) (*Message, error) {
	if block <= 0 {
		// go-redis sends BLOCK only for non-negative values; 0 blocks forever.
		block = -1
	}
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: consumer,
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}
	for _, s := range streams {
		for _, m := range s.Messages {
			msg := toMessage(m)
			return &msg, nil
		}
	}
	return nil, nil
}

// Reclaim claims idle pending entries with XAUTOCLAIM.
func (q *Redis) Reclaim(ctx context.Context, consumer string, minIdle time.Duration, count int) ([]Message, error) {
	if count <= 0 {
		count = 10
	}
	msgs, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    int64(count),
		Consumer: consumer,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("xautoclaim: %w", err)
	}
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessage(m))
	}
	return out, nil
}

// Ack acknowledges id.
func (q *Redis) Ack(ctx context.Context, id string) error {
	if err := q.client.XAck(ctx, q.stream, q.group, id).Err(); err != nil {
		return fmt.Errorf("xack %s: %w", id, err)
	}
	return nil
}

// DeadLetter appends dl to the dead-letter stream.
func (q *Redis) DeadLetter(ctx context.Context, dl DeadLetter) error {
	err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.dlq,
		Values: map[string]any{
			"error":        dl.Error,
			"original_msg": dl.OriginalMsg,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", q.dlq, err)
	}
	return nil
}

// DeadLetters lists up to count entries of the dead-letter stream, newest first.
func (q *Redis) DeadLetters(ctx context.Context, count int64) ([]DeadLetter, error) {
	msgs, err := q.client.XRevRangeN(ctx, q.dlq, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("xrevrange %s: %w", q.dlq, err)
	}
	out := make([]DeadLetter, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, DeadLetter{
			Error:       stringValue(m.Values["error"]),
			OriginalMsg: stringValue(m.Values["original_msg"]),
		})
	}
	return out, nil
}

func toMessage(m redis.XMessage) Message {
	return Message{ID: m.ID, Data: []byte(stringValue(m.Values[dataField]))}
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
