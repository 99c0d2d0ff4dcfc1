package consensus

import (
	"encoding/json"
	"testing"

	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/providers"
)

func view(idx int, content string, offX, offY int) ViewResult {
	return ViewResult{Index: idx, Response: providers.NewTextResponse(content), OffsetX: offX, OffsetY: offY}
}

func TestMerge(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		got := Merge(nil, nil)
		if got.Structured() || got.String() != "" {
			t.Errorf("Merge(nil) = %+v, want empty", got)
		}
	})

	t.Run("primary view box is translated", func(t *testing.T) {
		got := Merge([]ViewResult{
			view(0, `[{"text":"A","box":[0,0,10,10]}]`, 5, 7),
		}, nil)
		if !got.Structured() {
			t.Fatalf("expected structured result, got raw %q", got.Raw)
		}
		var lines []struct {
			Text string    `json:"text"`
			Box  []float64 `json:"box"`
		}
		if err := json.Unmarshal([]byte(got.String()), &lines); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		want := []float64{5, 7, 15, 17}
		if len(lines) != 1 || lines[0].Text != "A" {
			t.Fatalf("lines = %+v", lines)
		}
		for i := range want {
			if lines[0].Box[i] != want[i] {
				t.Errorf("box = %v, want %v", lines[0].Box, want)
				break
			}
		}
	})

	t.Run("all views unstructured joins raw text in view order", func(t *testing.T) {
		got := Merge([]ViewResult{
			view(2, "line three", 0, 150),
			view(0, "line one", 0, 0),
			view(1, "line two", 0, 0),
		}, nil)
		if got.Structured() {
			t.Fatal("expected raw result")
		}
		if want := "line one\nline two\nline three"; got.String() != want {
			t.Errorf("String() = %q, want %q", got.String(), want)
		}
	})

	t.Run("structured non-primary view falls back to raw", func(t *testing.T) {
		got := Merge([]ViewResult{
			view(0, "plain text", 0, 0),
			view(1, `[{"text":"B","box":[1,1,2,2]}]`, 0, 0),
		}, nil)
		want := "plain text\n" + `[{"text":"B","box":[1,1,2,2]}]`
		if got.Structured() || got.String() != want {
			t.Errorf("String() = %q, want %q", got.String(), want)
		}
	})

	t.Run("undecodable view is skipped", func(t *testing.T) {
		got := Merge([]ViewResult{
			{Index: 0, Response: &providers.ChatResponse{}},
			view(1, "only text", 0, 0),
			{Index: 2, Response: nil},
		}, nil)
		if got.String() != "only text" {
			t.Errorf("String() = %q, want %q", got.String(), "only text")
		}
	})

	t.Run("malformed box voids structured lines", func(t *testing.T) {
		content := `[{"text":"A","box":[0,0]}]`
		got := Merge([]ViewResult{view(0, content, 1, 1)}, nil)
		if got.Structured() || got.String() != content {
			t.Errorf("String() = %q, want raw content", got.String())
		}
	})

	t.Run("empty array on primary falls back", func(t *testing.T) {
		got := Merge([]ViewResult{view(0, "[]", 0, 0), view(1, "x", 0, 0)}, nil)
		if got.String() != "[]\nx" {
			t.Errorf("String() = %q", got.String())
		}
	})

	t.Run("lines without box and extra fields survive", func(t *testing.T) {
		got := Merge([]ViewResult{
			view(0, "noise ```json\n[{\"text\":\"নাম\",\"conf\":0.98},\"bare\"]\n``` noise", 3, 3),
		}, nil)
		if want := `[{"conf":0.98,"text":"নাম"},"bare"]`; got.String() != want {
			t.Errorf("String() = %q, want %q", got.String(), want)
		}
	})

	t.Run("merge is deterministic", func(t *testing.T) {
		in := []ViewResult{
			view(0, `[{"text":"A","box":[0,0,10,10]},{"text":"B","box":[1,2,3,4]}]`, 5, 7),
			view(3, "center", 10, 10),
		}
		first := Merge(in, nil).String()
		second := Merge(in, nil).String()
		if first != second {
			t.Errorf("Merge not deterministic: %q vs %q", first, second)
		}
	})
}
