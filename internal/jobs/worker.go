package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/queue"
)

// Worker defaults.
const (
	DefaultBlock           = 5 * time.Second
	DefaultReclaimIdle     = 10 * time.Minute
	DefaultReclaimInterval = time.Minute
	DefaultErrorBackoff    = time.Second
	reclaimBatch           = 10
)

// Processor runs the pipeline for one job. A returned error is recorded
// against the message; the message is still acknowledged unless the
// worker's context has ended.
type Processor interface {
	Process(ctx context.Context, job *Job) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, job *Job) error

func (f ProcessorFunc) Process(ctx context.Context, job *Job) error { return f(ctx, job) }

// WorkerConfig configures a queue consumer.
type WorkerConfig struct {
	Queue     queue.Queue
	Processor Processor
	Logger    *slog.Logger

	// Name is the consumer name; default "worker-" plus 8 hex characters.
	Name string

	// Block is how long one read waits for a message.
	Block time.Duration

	// Pending entries idle at least ReclaimIdle are taken over every
	// ReclaimInterval. A negative ReclaimIdle disables reclaiming.
	ReclaimIdle     time.Duration
	ReclaimInterval time.Duration

	// ErrorBackoff is the pause after a failed queue read.
	ErrorBackoff time.Duration
}

// WorkerStatus reports a worker's counters.
type WorkerStatus struct {
	Name         string `json:"name" yaml:"name"`
	Processed    int64  `json:"processed" yaml:"processed"`
	Failed       int64  `json:"failed" yaml:"failed"`
	DeadLettered int64  `json:"dead_lettered" yaml:"dead_lettered"`
	Reclaimed    int64  `json:"reclaimed" yaml:"reclaimed"`
}

// Worker consumes jobs from a queue one at a time. Failures are isolated to
// the message that caused them; the loop runs until its context ends.
type Worker struct {
	name      string
	queue     queue.Queue
	processor Processor
	logger    *slog.Logger

	block           time.Duration
	reclaimIdle     time.Duration
	reclaimInterval time.Duration
	errorBackoff    time.Duration

	processed    atomic.Int64
	failed       atomic.Int64
	deadLettered atomic.Int64
	reclaimed    atomic.Int64
}

// NewWorker creates a worker.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Queue == nil {
		return nil, fmt.Errorf("queue is required")
	}
	if cfg.Processor == nil {
		return nil, fmt.Errorf("processor is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.Name
	if name == "" {
		name = NewConsumerName()
	}
	if cfg.Block <= 0 {
		cfg.Block = DefaultBlock
	}
	if cfg.ReclaimIdle == 0 {
		cfg.ReclaimIdle = DefaultReclaimIdle
	}
	if cfg.ReclaimInterval <= 0 {
		cfg.ReclaimInterval = DefaultReclaimInterval
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = DefaultErrorBackoff
	}

	return &Worker{
		name:            name,
		queue:           cfg.Queue,
		processor:       cfg.Processor,
		logger:          logger.With("worker", name),
		block:           cfg.Block,
		reclaimIdle:     cfg.ReclaimIdle,
		reclaimInterval: cfg.ReclaimInterval,
		errorBackoff:    cfg.ErrorBackoff,
	}, nil
}

// NewConsumerName returns a unique consumer name.
func NewConsumerName() string {
	return "worker-" + uuid.NewString()[:8]
}

// Name returns the consumer name.
func (w *Worker) Name() string {
	return w.name
}

// Status returns the worker's counters.
func (w *Worker) Status() WorkerStatus {
	return WorkerStatus{
		Name:         w.name,
		Processed:    w.processed.Load(),
		Failed:       w.failed.Load(),
		DeadLettered: w.deadLettered.Load(),
		Reclaimed:    w.reclaimed.Load(),
	}
}

// Start runs the consume loop. Blocks until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("worker started")
	defer w.logger.Info("worker stopping")

	var lastReclaim time.Time
	for {
		if ctx.Err() != nil {
			return
		}

		if w.reclaimIdle >= 0 && time.Since(lastReclaim) >= w.reclaimInterval {
			w.reclaim(ctx)
			lastReclaim = time.Now()
		}

		msg, err := w.queue.Read(ctx, w.name, w.block)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue read failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.errorBackoff):
			}
			continue
		}
		if msg == nil {
			continue
		}
		w.Handle(ctx, *msg)
	}
}

func (w *Worker) reclaim(ctx context.Context) {
	msgs, err := w.queue.Reclaim(ctx, w.name, w.reclaimIdle, reclaimBatch)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Warn("reclaim failed", "error", err)
		}
		return
	}
	for _, msg := range msgs {
		w.reclaimed.Add(1)
		w.logger.Info("reclaimed idle message", "msg_id", msg.ID)
		w.Handle(ctx, msg)
	}
}

// Handle processes one message and acknowledges it. Undecodable payloads
// and processing failures are written to the dead-letter stream. A job
// interrupted by ctx ending is left pending so another consumer can
// reclaim it.
func (w *Worker) Handle(ctx context.Context, msg queue.Message) {
	logger := w.logger.With("msg_id", msg.ID)

	job, err := Decode(msg.Data)
	if err != nil {
		logger.Error("failed to decode job", "error", err)
		w.deadLetter(ctx, msg, err)
		w.ack(ctx, msg)
		return
	}

	logger = logger.With("job_id", job.ID)
	logger.Info("received job", "mode", job.Mode)
	start := time.Now()

	if err := w.process(ctx, job); err != nil {
		if ctx.Err() != nil {
			logger.Warn("job interrupted, leaving it pending", "error", err, "duration", time.Since(start))
			return
		}
		w.failed.Add(1)
		logger.Error("job failed", "error", err, "duration", time.Since(start))
		w.deadLetter(ctx, msg, err)
	} else {
		w.processed.Add(1)
		logger.Info("job completed", "duration", time.Since(start))
	}
	w.ack(ctx, msg)
}

func (w *Worker) process(ctx context.Context, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.processor.Process(ctx, job)
}

func (w *Worker) deadLetter(ctx context.Context, msg queue.Message, cause error) {
	dl := queue.DeadLetter{Error: cause.Error(), OriginalMsg: string(msg.Data)}
	if err := w.queue.DeadLetter(context.WithoutCancel(ctx), dl); err != nil {
		w.logger.Error("dead-letter write failed", "msg_id", msg.ID, "error", err)
		return
	}
	w.deadLettered.Add(1)
}

func (w *Worker) ack(ctx context.Context, msg queue.Message) {
	if err := w.queue.Ack(context.WithoutCancel(ctx), msg.ID); err != nil && !errors.Is(err, context.Canceled) {
		w.logger.Error("ack failed", "msg_id", msg.ID, "error", err)
	}
}
