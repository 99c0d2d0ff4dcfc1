// Package pipeline runs one OCR job end to end: normalize, cut views, call
// the model per view in parallel, merge, extract fields, verify, store.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/consensus"
	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/extract"
	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/jobs"
	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/judge"
	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/metrics"
	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/preprocess"
	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/providers"
	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/results"
	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/views"
)

// ErrImageDecode is returned when a job's image cannot be decoded.
var ErrImageDecode = errors.New("image decode failed")

// Config wires an Orchestrator. Every handle is owned by the caller.
type Config struct {
	Invoker providers.Invoker

	// Results receives the final payload of every job. Optional.
	Results results.Store

	// Judge verifies schema-mode drafts. Nil disables verification.
	Judge *judge.Judge

	Model       string // primary OCR model (default providers.DefaultModel)
	Endpoint    string // optional base URL override for the primary model
	Prompt      string // default providers.DefaultPrompt
	ViewOverlap int    // default views.DefaultOverlap
	Preprocess  preprocess.Options
	Logger      *slog.Logger
}

// Orchestrator processes jobs. It keeps no per-job state and is safe for
// concurrent use by many workers.
type Orchestrator struct {
	invoker    providers.Invoker
	results    results.Store
	judge      *judge.Judge
	model      string
	endpoint   string
	prompt     string
	overlap    int
	preprocess preprocess.Options
	logger     *slog.Logger
}

// New creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Invoker == nil {
		return nil, fmt.Errorf("invoker is required")
	}
	if cfg.Model == "" {
		cfg.Model = providers.DefaultModel
	}
	if cfg.Prompt == "" {
		cfg.Prompt = providers.DefaultPrompt
	}
	if cfg.ViewOverlap <= 0 {
		cfg.ViewOverlap = views.DefaultOverlap
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Orchestrator{
		invoker:    cfg.Invoker,
		results:    cfg.Results,
		judge:      cfg.Judge,
		model:      cfg.Model,
		endpoint:   cfg.Endpoint,
		prompt:     cfg.Prompt,
		overlap:    cfg.ViewOverlap,
		preprocess: cfg.Preprocess,
		logger:     cfg.Logger,
	}, nil
}

// Outcome is the result of running one job.
type Outcome struct {
	JobID string
	Mode  jobs.Mode

	// Merged is the consensus text; Fields is nil in text mode.
	Merged consensus.MergedText
	Draft  extract.Fields
	Fields extract.Fields

	Views     int
	Succeeded int
	Judge     *judge.Report
	Duration  time.Duration

	// Err is set when the job failed; the payload then carries only the error.
	Err error
}

// Payload returns the stored result object: the field map in schema mode,
// {"text": ...} in text mode, {"error": ...} on failure.
func (o *Outcome) Payload() ([]byte, error) {
	var v any
	switch {
	case o.Err != nil:
		v = map[string]string{"error": o.Err.Error()}
	case o.Mode == jobs.ModeSchema:
		v = o.Fields
	default:
		v = map[string]string{"text": o.Merged.String()}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Process runs job and stores its payload. A failed job stores an error
// payload and still returns the error so the caller can dead-letter it.
// Nothing is stored when ctx ends before the job finishes.
func (o *Orchestrator) Process(ctx context.Context, job *jobs.Job) error {
	out := o.Run(ctx, job)
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := o.save(ctx, out); err != nil {
		return err
	}
	return out.Err
}

// Run executes the pipeline without storing anything.
func (o *Orchestrator) Run(ctx context.Context, job *jobs.Job) *Outcome {
	start := time.Now()
	logger := o.logger.With("job_id", job.ID)
	out := &Outcome{JobID: job.ID, Mode: job.Mode}
	defer func() { out.Duration = time.Since(start) }()
	ctx = metrics.WithJob(ctx, job.ID)

	logger.Info("processing job", "mode", job.Mode, "filename", job.Filename)

	img, err := preprocess.Normalize(job.Image, o.preprocess)
	if err != nil {
		out.Err = fmt.Errorf("%w: %v", ErrImageDecode, err)
		logger.Error("failed to normalize image", "error", err)
		return out
	}

	vs, err := views.Generate(img, o.overlap)
	if err == nil && len(vs) == 0 {
		err = errors.New("no views")
	}
	if err != nil {
		out.Err = fmt.Errorf("generate views: %w", err)
		return out
	}
	out.Views = len(vs)

	viewResults := o.invokeViews(metrics.WithStage(ctx, metrics.StageOCR), logger, vs)
	if err := ctx.Err(); err != nil {
		out.Err = err
		return out
	}
	out.Succeeded = len(viewResults)
	out.Merged = consensus.Merge(viewResults, logger)
	logger.Info("views merged", "views", out.Views, "succeeded", out.Succeeded, "structured", out.Merged.Structured())

	if job.Mode != jobs.ModeSchema {
		return out
	}

	out.Draft = extract.Extract(job.Schema, out.Merged.String())
	out.Fields = out.Draft
	if o.judge != nil {
		fields, report := o.judge.Verify(metrics.WithStage(ctx, metrics.StageJudge), out.Draft, vs[0].Image)
		if err := ctx.Err(); err != nil {
			out.Err = err
			return out
		}
		out.Fields = fields
		out.Judge = &report
	}
	return out
}

// invokeViews calls the model for every view concurrently. Failed calls are
// logged and dropped.
func (o *Orchestrator) invokeViews(ctx context.Context, logger *slog.Logger, vs []views.View) []consensus.ViewResult {
	slots := make([]*consensus.ViewResult, len(vs))

	var wg sync.WaitGroup
	for i, v := range vs {
		wg.Add(1)
		go func(i int, v views.View) {
			defer wg.Done()
			resp, err := o.invoker.Invoke(ctx, providers.InvokeRequest{
				Image:    v.Image,
				Model:    o.model,
				Endpoint: o.endpoint,
				Prompt:   o.prompt,
			})
			if err != nil {
				logger.Error("OCR failed for a view", "view", v.Name, "error", err)
				return
			}
			slots[i] = &consensus.ViewResult{Index: i, Response: resp, OffsetX: v.OffsetX, OffsetY: v.OffsetY}
		}(i, v)
	}
	wg.Wait()

	out := make([]consensus.ViewResult, 0, len(vs))
	for _, r := range slots {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

func (o *Orchestrator) save(ctx context.Context, out *Outcome) error {
	if o.results == nil {
		return nil
	}
	payload, err := out.Payload()
	if err != nil {
		return err
	}
	if err := o.results.Save(context.WithoutCancel(ctx), out.JobID, payload); err != nil {
		return fmt.Errorf("store result: %w", err)
	}
	return nil
}

var _ jobs.Processor = (*Orchestrator)(nil)
