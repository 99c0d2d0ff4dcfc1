// Package metrics records usage of model calls: tokens, latency and
// failures, attributed to the job and pipeline stage that made them.
package metrics

import "time"

// Stages attributed to model calls.
const (
	StageOCR   = "ocr"
	StageJudge = "judge"
)

// Metric is a single recorded model call.
type Metric struct {
	// Attribution
	JobID string `json:"job_id,omitempty" yaml:"job_id,omitempty"`
	Stage string `json:"stage,omitempty" yaml:"stage,omitempty"`

	Model    string `json:"model,omitempty" yaml:"model,omitempty"`
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	PromptTokens     int `json:"prompt_tokens,omitempty" yaml:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty" yaml:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty" yaml:"total_tokens,omitempty"`

	// Attempts includes retries.
	Attempts     int     `json:"attempts,omitempty" yaml:"attempts,omitempty"`
	TotalSeconds float64 `json:"total_seconds" yaml:"total_seconds"`

	Success   bool   `json:"success" yaml:"success"`
	ErrorType string `json:"error_type,omitempty" yaml:"error_type,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Filter selects metrics. Empty fields match everything.
type Filter struct {
	JobID string
	Stage string
	Model string
	Since time.Time
}

func (f Filter) match(m Metric) bool {
	if f.JobID != "" && m.JobID != f.JobID {
		return false
	}
	if f.Stage != "" && m.Stage != f.Stage {
		return false
	}
	if f.Model != "" && m.Model != f.Model {
		return false
	}
	if !f.Since.IsZero() && m.CreatedAt.Before(f.Since) {
		return false
	}
	return true
}
