// Package consensus folds the per-view OCR replies of one job into a single text.
package consensus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/providers"
)

// PrimaryView is the index of the full-image view.
const PrimaryView = 0

// ViewResult is the reply of one successful view call.
type ViewResult struct {
	Index    int
	Response *providers.ChatResponse
	OffsetX  int
	OffsetY  int
}

// MergedText is either a list of structured line objects in full-image
// coordinates, or the raw reply text of every view. Never both.
type MergedText struct {
	Lines []any
	Raw   string
}

// Structured reports whether the merge produced line objects.
func (m MergedText) Structured() bool {
	return len(m.Lines) > 0
}

// String returns the JSON array of lines, or the raw text.
func (m MergedText) String() string {
	if !m.Structured() {
		return m.Raw
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m.Lines); err != nil {
		return m.Raw
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

type parsedView struct {
	index int
	raw   string
	lines []any
}

// Merge combines view results. The primary view's structured lines win;
// otherwise the raw text of every decodable view is joined with newlines in
// view order. Structured lines from other views are not merged.
func Merge(results []ViewResult, logger *slog.Logger) MergedText {
	if logger == nil {
		logger = slog.Default()
	}
	if len(results) == 0 {
		return MergedText{}
	}

	ordered := make([]ViewResult, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	parsed := make([]parsedView, 0, len(ordered))
	for _, r := range ordered {
		content, err := r.Response.Content()
		if err != nil {
			logger.Warn("skipping undecodable view", "view", r.Index, "error", err)
			continue
		}
		lines, err := parseLines(content, r.OffsetX, r.OffsetY)
		if err != nil {
			logger.Debug("view has no structured lines", "view", r.Index, "error", err)
		}
		parsed = append(parsed, parsedView{index: r.Index, raw: content, lines: lines})
	}

	for _, p := range parsed {
		if p.index == PrimaryView && len(p.lines) > 0 {
			return MergedText{Lines: p.lines}
		}
	}

	raws := make([]string, 0, len(parsed))
	for _, p := range parsed {
		raws = append(raws, p.raw)
	}
	return MergedText{Raw: strings.Join(raws, "\n")}
}

// parseLines decodes the bracketed JSON array in content and shifts every
// line box by the view offset. Any malformed box voids the whole view.
func parseLines(content string, offX, offY int) ([]any, error) {
	candidate, ok := providers.ArrayCandidate(content)
	if !ok {
		return nil, fmt.Errorf("no array in reply")
	}

	dec := json.NewDecoder(strings.NewReader(candidate))
	dec.UseNumber()
	var lines []any
	if err := dec.Decode(&lines); err != nil {
		return nil, fmt.Errorf("decode lines: %w", err)
	}

	for i, line := range lines {
		obj, ok := line.(map[string]any)
		if !ok {
			continue
		}
		raw, ok := obj["box"]
		if !ok {
			continue
		}
		box, err := shiftBox(raw, offX, offY)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i, err)
		}
		obj["box"] = box
	}
	return lines, nil
}

func shiftBox(raw any, offX, offY int) ([]any, error) {
	coords, ok := raw.([]any)
	if !ok || len(coords) < 4 {
		return nil, fmt.Errorf("box is not four coordinates")
	}
	offsets := [4]float64{float64(offX), float64(offY), float64(offX), float64(offY)}
	out := make([]any, 4)
	for i := 0; i < 4; i++ {
		n, ok := coords[i].(json.Number)
		if !ok {
			return nil, fmt.Errorf("box coordinate %d is not a number", i)
		}
		v, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("box coordinate %d: %w", i, err)
		}
		out[i] = v + offsets[i]
	}
	return out, nil
}
