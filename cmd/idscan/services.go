package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/config"
	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/judge"
	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/metrics"
	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/pipeline"
	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/providers"
	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/queue"
	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/results"
)

// connectRedis opens and pings the Redis named by cfg.
func connectRedis(ctx context.Context, cfg config.RedisCfg) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis.url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}
	return rdb, nil
}

func newQueue(rdb *redis.Client, cfg config.RedisCfg, l *slog.Logger) (*queue.Redis, error) {
	return queue.NewRedis(queue.RedisConfig{
		Client: rdb,
		Stream: cfg.Stream,
		Group:  cfg.Group,
		DLQ:    cfg.DLQ,
		Logger: l,
	})
}

// openResults opens the configured result store. The returned close func
// is never nil.
func openResults(ctx context.Context, cfg *config.Config, rdb *redis.Client, l *slog.Logger) (results.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Results.Backend {
	case results.BackendRedis:
		if rdb == nil {
			return nil, noop, fmt.Errorf("results.backend redis needs a redis connection")
		}
		return results.NewRedis(rdb, cfg.Results.TTL), noop, nil
	case results.BackendSQLite:
		path := cfg.Results.SQLitePath
		if path == "" {
			h, err := getHome()
			if err != nil {
				return nil, noop, err
			}
			path = h.ResultsDBPath()
		}
		db, err := results.OpenSQLite(ctx, path, cfg.Results.TTL, l)
		if err != nil {
			return nil, noop, err
		}
		return db, db.Close, nil
	case results.BackendMemory:
		l.Warn("results are kept in memory and lost on exit")
		return results.NewMemory(cfg.Results.TTL), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown results backend %q", cfg.Results.Backend)
	}
}

// services are the long-lived handles behind an orchestrator.
type services struct {
	orch    *pipeline.Orchestrator
	router  *providers.Router
	metrics *metrics.Recorder
}

// buildOrchestrator wires the inference client, judge and orchestrator from
// cfg. Every model call goes through a metrics recorder.
func buildOrchestrator(cfg *config.Config, store results.Store, judgeEnabled bool, l *slog.Logger) (*services, error) {
	router, err := providers.NewRouter(cfg.RouterConfig(), l)
	if err != nil {
		return nil, fmt.Errorf("routing table: %w", err)
	}
	client, err := providers.NewClient(cfg.ClientConfig(router, l))
	if err != nil {
		return nil, err
	}
	rec := metrics.NewRecorder(0)
	inv := metrics.Instrument(client, rec)

	var j *judge.Judge
	if judgeEnabled {
		j = judge.New(judge.Config{
			Invoker: inv,
			Model:   cfg.Pipeline.JudgeModel,
			Logger:  l,
		})
	}

	orch, err := pipeline.New(pipeline.Config{
		Invoker:     inv,
		Results:     store,
		Judge:       j,
		Model:       cfg.Pipeline.PrimaryModel,
		Prompt:      cfg.Pipeline.Prompt,
		ViewOverlap: cfg.Pipeline.ViewOverlap,
		Logger:      l,
	})
	if err != nil {
		return nil, err
	}
	return &services{orch: orch, router: router, metrics: rec}, nil
}
