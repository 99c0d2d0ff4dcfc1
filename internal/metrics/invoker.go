package metrics

import (
	"context"
	"time"

	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/providers"
)

// Invoker records every call made through the wrapped invoker.
type Invoker struct {
	next providers.Invoker
	rec  *Recorder
}

var _ providers.Invoker = (*Invoker)(nil)

// Instrument wraps next so that each call is recorded in rec.
func Instrument(next providers.Invoker, rec *Recorder) *Invoker {
	return &Invoker{next: next, rec: rec}
}

func (i *Invoker) Invoke(ctx context.Context, req providers.InvokeRequest) (*providers.ChatResponse, error) {
	start := time.Now()
	resp, err := i.next.Invoke(ctx, req)
	i.rec.RecordCall(ctx, req, resp, err, time.Since(start))
	return resp, err
}
