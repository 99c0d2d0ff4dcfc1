// Package judge asks a second vision model to proofread a drafted extraction
// and merges its answer back under a per-field policy.
package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/extract"
	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/providers"
)

// DefaultModel is the verification model.
const DefaultModel = "qwen3-vl:8b-instruct"

// Config configures a Judge.
type Config struct {
	Invoker  providers.Invoker
	Model    string // default: DefaultModel
	Endpoint string // optional base URL override
	Policy   *Policy
	Logger   *slog.Logger
}

// Judge verifies drafts. Safe for concurrent use.
type Judge struct {
	invoker  providers.Invoker
	model    string
	endpoint string
	policy   Policy
	logger   *slog.Logger
}

// Report describes what a verification did.
type Report struct {
	Changes []Change
	Err     error // non-nil when the draft was returned unchanged because of a failure
}

// New creates a Judge.
func New(cfg Config) *Judge {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	policy := DefaultPolicy
	if cfg.Policy != nil {
		policy = *cfg.Policy
	}
	return &Judge{
		invoker:  cfg.Invoker,
		model:    cfg.Model,
		endpoint: cfg.Endpoint,
		policy:   policy,
		logger:   cfg.Logger,
	}
}

// Verify sends the draft and the image to the judge model and merges the
// verdict. Any failure returns the draft unchanged; it never fails the job.
func (j *Judge) Verify(ctx context.Context, draft extract.Fields, image []byte) (extract.Fields, Report) {
	resp, err := j.invoker.Invoke(ctx, providers.InvokeRequest{
		Image:    image,
		Model:    j.model,
		Endpoint: j.endpoint,
		Prompt:   BuildPrompt(draft),
	})
	if err != nil {
		j.logger.Error("judge call failed", "error", err)
		return draft, Report{Err: fmt.Errorf("judge call: %w", err)}
	}

	content, err := resp.Content()
	if err != nil {
		j.logger.Warn("judge returned no choices")
		return draft, Report{Err: err}
	}

	verdict, err := ParseVerdict(content)
	if err != nil {
		j.logger.Warn("judge output did not contain valid JSON", "error", err)
		return draft, Report{Err: err}
	}

	final, changes := j.policy.Apply(draft, verdict)
	for _, c := range changes {
		j.logger.Info("judge "+c.Action+" field", "field", c.Field, "value", c.To)
	}
	return final, Report{Changes: changes}
}

// BuildPrompt assembles the proofreading instruction for draft. Task lines
// are included only for fields the draft carries; the protection rule and the
// output format rule are always present.
func BuildPrompt(draft extract.Fields) string {
	var b strings.Builder
	b.WriteString("You are a professional OCR Proofreader. \n")
	b.WriteString("Here is the raw extraction from a Scribe: ")
	b.WriteString(draftJSON(draft))
	b.WriteString("\nTask:\n")

	has := func(keys ...string) bool {
		for _, k := range keys {
			if _, ok := draft[k]; ok {
				return true
			}
		}
		return false
	}

	var tasks []string
	if has("name", "name_bn") {
		tasks = append(tasks, "Verify and fix spelling, spacing, and typos in 'name' (English). For 'name_bn' (Bangla), extract it from the image if missing or invalid, as the Scribe may not capture Bangla.")
	}
	if has("address_bn") {
		tasks = append(tasks, "Extract or Verify the Bangla Address ('address_bn'). Ensure it matches the image text exactly.")
	}
	if has("place_of_birth") {
		tasks = append(tasks, "Verify 'place_of_birth'.")
	}
	if has("mrz_line1", "mrz_line2", "mrz_line3") {
		tasks = append(tasks, "Extract the MRZ (Machine Readable Zone) lines at the bottom of the card into 'mrz_line1', 'mrz_line2', 'mrz_line3'. They consist of uppercase letters, numbers, and '<'. Ensure strict accuracy.")
	}
	tasks = append(tasks,
		"CRITICAL: Do NOT change 'dob', 'nid_no', 'issue_date', 'blood_group' unless they are visually contradictory to the image. Trust the Scribe's numbers/dates.",
		"Return the corrected JSON object ONLY. No markdown.",
	)

	for i, task := range tasks {
		fmt.Fprintf(&b, "%d. %s", i+1, task)
		if i < len(tasks)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// ParseVerdict decodes the first-brace to last-brace object in content.
// Non-string scalars are stringified; nulls and nested values become "".
func ParseVerdict(content string) (map[string]string, error) {
	candidate, ok := providers.ObjectCandidate(content)
	if !ok {
		return nil, fmt.Errorf("no JSON object in judge output")
	}

	dec := json.NewDecoder(strings.NewReader(candidate))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode judge output: %w", err)
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case string:
			out[k] = t
		case json.Number:
			out[k] = t.String()
		default:
			out[k] = ""
		}
	}
	return out, nil
}

func draftJSON(draft extract.Fields) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(draft); err != nil {
		return "{}"
	}
	return strings.TrimSpace(buf.String())
}
