package metrics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/providers"
)

func TestRecorderCapacity(t *testing.T) {
	r := NewRecorder(3)
	for i := 0; i < 5; i++ {
		r.Record(Metric{JobID: fmt.Sprintf("j%d", i), Success: true})
	}
	got := r.List(Filter{}, 0)
	if len(got) != 3 || got[0].JobID != "j2" || got[2].JobID != "j4" {
		t.Errorf("List() = %+v", got)
	}
	if last := r.List(Filter{}, 1); len(last) != 1 || last[0].JobID != "j4" {
		t.Errorf("List(limit 1) = %+v", last)
	}
}

func TestFilter(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewRecorder(0)
	r.Record(Metric{JobID: "a", Stage: StageOCR, Model: "ocr", CreatedAt: base})
	r.Record(Metric{JobID: "a", Stage: StageJudge, Model: "judge", CreatedAt: base.Add(time.Minute)})
	r.Record(Metric{JobID: "b", Stage: StageOCR, Model: "ocr", CreatedAt: base.Add(2 * time.Minute)})

	tests := []struct {
		name string
		f    Filter
		want int
	}{
		{"all", Filter{}, 3},
		{"job", Filter{JobID: "a"}, 2},
		{"stage", Filter{Stage: StageOCR}, 2},
		{"model", Filter{Model: "judge"}, 1},
		{"since", Filter{Since: base.Add(time.Minute)}, 2},
		{"combined", Filter{JobID: "b", Stage: StageJudge}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(r.List(tt.f, 0)); got != tt.want {
				t.Errorf("len = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestInstrument(t *testing.T) {
	mock := providers.NewMockInvoker("Name: John")
	rec := NewRecorder(0)
	inv := Instrument(mock, rec)

	ctx := WithStage(WithJob(context.Background(), "job-1"), StageOCR)
	if _, err := inv.Invoke(ctx, providers.InvokeRequest{Model: "m1"}); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	mock.Respond = func(providers.InvokeRequest) (*providers.ChatResponse, error) {
		return nil, fmt.Errorf("view 2: %w", providers.ErrRetriesExhausted)
	}
	_, err := inv.Invoke(WithStage(ctx, StageJudge), providers.InvokeRequest{Model: "m2"})
	if !errors.Is(err, providers.ErrRetriesExhausted) {
		t.Fatalf("Invoke() error = %v", err)
	}

	got := rec.List(Filter{JobID: "job-1"}, 0)
	if len(got) != 2 {
		t.Fatalf("recorded %d metrics, want 2", len(got))
	}
	if got[0].Stage != StageOCR || !got[0].Success || got[0].Model != "m1" {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Stage != StageJudge || got[1].Success || got[1].ErrorType != "retries_exhausted" {
		t.Errorf("second = %+v", got[1])
	}
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{context.Canceled, "canceled"},
		{fmt.Errorf("x: %w", context.DeadlineExceeded), "timeout"},
		{providers.ErrUnknownEndpoint, "unknown_endpoint"},
		{errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		if got := errorType(tt.err); got != tt.want {
			t.Errorf("errorType(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestSummary(t *testing.T) {
	r := NewRecorder(0)
	for i, secs := range []float64{1, 2, 3, 4} {
		r.Record(Metric{
			Stage:        StageOCR,
			Model:        "ocr",
			TotalSeconds: secs,
			TotalTokens:  10 * (i + 1),
			Success:      true,
		})
	}
	r.Record(Metric{Stage: StageJudge, Model: "judge", TotalSeconds: 5, ErrorType: "timeout"})

	s := r.Summary(Filter{})
	if s.Count != 5 || s.SuccessCount != 4 || s.ErrorCount != 1 {
		t.Errorf("counts = %+v", s)
	}
	if s.TotalTokens != 100 || s.AvgTotalTokens != 20 {
		t.Errorf("tokens = %d avg %v", s.TotalTokens, s.AvgTotalTokens)
	}
	if s.LatencyP50 != 3 || s.LatencyMax != 5 || s.LatencyAvg != 3 {
		t.Errorf("latency = p50 %v max %v avg %v", s.LatencyP50, s.LatencyMax, s.LatencyAvg)
	}
	if s.ErrorTypes["timeout"] != 1 {
		t.Errorf("error types = %v", s.ErrorTypes)
	}

	stages := r.ByStage(Filter{})
	if stages[StageOCR].Count != 4 || stages[StageJudge].Count != 1 {
		t.Errorf("ByStage = %v", stages)
	}
	if models := r.ByModel(Filter{}); models["judge"].ErrorCount != 1 {
		t.Errorf("ByModel = %v", models)
	}
	if empty := r.Summary(Filter{JobID: "none"}); empty.Count != 0 || empty.LatencyAvg != 0 {
		t.Errorf("empty summary = %+v", empty)
	}
}

func TestPercentile(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if got := percentile(vals, 50); math.Abs(got-5.5) > 1e-9 {
		t.Errorf("p50 = %v", got)
	}
	if got := percentile(vals, 95); math.Abs(got-9.55) > 1e-9 {
		t.Errorf("p95 = %v", got)
	}
	if got := percentile([]float64{7}, 99); got != 7 {
		t.Errorf("single = %v", got)
	}
	if got := percentile(nil, 50); got != 0 {
		t.Errorf("empty = %v", got)
	}
}
