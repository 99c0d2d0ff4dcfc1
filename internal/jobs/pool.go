package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// PoolConfig configures a worker pool.
type PoolConfig struct {
	// Size is the number of consumers (default 1).
	Size int

	// Worker is the template for every consumer. Name is ignored; each
	// consumer gets its own.
	Worker WorkerConfig
	Logger *slog.Logger
}

// Pool runs several consumers of the same group in one process.
// All consumers compete for the shared stream.
type Pool struct {
	workers []*Worker
	logger  *slog.Logger
}

// NewPool creates a pool of workers.
func NewPool(cfg PoolConfig) (*Pool, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	size := cfg.Size
	if size <= 0 {
		size = 1
	}

	p := &Pool{logger: logger.With("workers", size)}
	for i := 0; i < size; i++ {
		wc := cfg.Worker
		wc.Name = NewConsumerName()
		if wc.Logger == nil {
			wc.Logger = logger
		}
		w, err := NewWorker(wc)
		if err != nil {
			return nil, fmt.Errorf("worker %d: %w", i, err)
		}
		p.workers = append(p.workers, w)
	}
	return p, nil
}

// Start runs every worker. Blocks until ctx is cancelled and all workers
// have returned.
func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("pool starting")
	var wg sync.WaitGroup
	for _, w := range p.workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			w.Start(ctx)
		}(w)
	}
	wg.Wait()
	p.logger.Info("pool stopped")
}

// Status returns each worker's counters.
func (p *Pool) Status() []WorkerStatus {
	out := make([]WorkerStatus, len(p.workers))
	for i, w := range p.workers {
		out[i] = w.Status()
	}
	return out
}
