package providers

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiter(t *testing.T) {
	t.Run("bucket starts full", func(t *testing.T) {
		rl := NewRateLimiter(3)
		for i := 0; i < 3; i++ {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
			err := rl.Wait(ctx)
			cancel()
			if err != nil {
				t.Fatalf("Wait() #%d error = %v", i, err)
			}
		}
		if got := rl.Status().TotalConsumed; got != 3 {
			t.Errorf("TotalConsumed = %d, want 3", got)
		}
		if got := rl.Status().TotalWaited; got != 0 {
			t.Errorf("TotalWaited = %v, want 0", got)
		}
	})

	t.Run("wait honors context", func(t *testing.T) {
		rl := NewRateLimiter(1)
		if err := rl.Wait(context.Background()); err != nil {
			t.Fatal(err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		if err := rl.Wait(ctx); err == nil {
			t.Error("Wait() on empty bucket should fail once ctx expires")
		}
		if got := rl.Status().TotalConsumed; got != 1 {
			t.Errorf("TotalConsumed = %d, want 1", got)
		}
	})

	t.Run("default limit", func(t *testing.T) {
		if got := NewRateLimiter(0).Status().TokensLimit; got != 60 {
			t.Errorf("TokensLimit = %d, want 60", got)
		}
	})
}

func TestArrayAndObjectCandidates(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		arr   string
		arrOK bool
		obj   string
		objOK bool
	}{
		{name: "fenced array", in: "```json\n[{\"text\":\"a\"}]\n```", arr: `[{"text":"a"}]`, arrOK: true, obj: `{"text":"a"}`, objOK: true},
		{name: "prose around object", in: `Here: {"dob": "1990"} done`, obj: `{"dob": "1990"}`, objOK: true},
		{name: "reversed brackets", in: "] nothing [", arrOK: false},
		{name: "empty", in: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arr, ok := ArrayCandidate(tt.in)
			if ok != tt.arrOK || arr != tt.arr {
				t.Errorf("ArrayCandidate() = %q, %v; want %q, %v", arr, ok, tt.arr, tt.arrOK)
			}
			obj, ok := ObjectCandidate(tt.in)
			if ok != tt.objOK || obj != tt.obj {
				t.Errorf("ObjectCandidate() = %q, %v; want %q, %v", obj, ok, tt.obj, tt.objOK)
			}
		})
	}
}
