package metrics

import "sort"

// Stats summarizes a set of metrics.
type Stats struct {
	Count        int `json:"count" yaml:"count"`
	SuccessCount int `json:"success_count" yaml:"success_count"`
	ErrorCount   int `json:"error_count" yaml:"error_count"`

	// Latency in seconds.
	LatencyP50 float64 `json:"latency_p50" yaml:"latency_p50"`
	LatencyP95 float64 `json:"latency_p95" yaml:"latency_p95"`
	LatencyAvg float64 `json:"latency_avg" yaml:"latency_avg"`
	LatencyMax float64 `json:"latency_max" yaml:"latency_max"`

	TotalPromptTokens     int     `json:"total_prompt_tokens" yaml:"total_prompt_tokens"`
	TotalCompletionTokens int     `json:"total_completion_tokens" yaml:"total_completion_tokens"`
	TotalTokens           int     `json:"total_tokens" yaml:"total_tokens"`
	AvgTotalTokens        float64 `json:"avg_total_tokens" yaml:"avg_total_tokens"`

	ErrorTypes map[string]int `json:"error_types,omitempty" yaml:"error_types,omitempty"`
}

// Summary returns stats over the metrics matching f.
func (r *Recorder) Summary(f Filter) *Stats {
	return summarize(r.List(f, 0))
}

// ByStage returns stats grouped by stage.
func (r *Recorder) ByStage(f Filter) map[string]*Stats {
	return groupBy(r.List(f, 0), func(m Metric) string { return m.Stage })
}

// ByModel returns stats grouped by model.
func (r *Recorder) ByModel(f Filter) map[string]*Stats {
	return groupBy(r.List(f, 0), func(m Metric) string { return m.Model })
}

func groupBy(metrics []Metric, key func(Metric) string) map[string]*Stats {
	groups := make(map[string][]Metric)
	for _, m := range metrics {
		groups[key(m)] = append(groups[key(m)], m)
	}
	out := make(map[string]*Stats, len(groups))
	for k, ms := range groups {
		out[k] = summarize(ms)
	}
	return out
}

func summarize(metrics []Metric) *Stats {
	s := &Stats{Count: len(metrics)}
	if len(metrics) == 0 {
		return s
	}

	latencies := make([]float64, 0, len(metrics))
	for _, m := range metrics {
		if m.Success {
			s.SuccessCount++
		} else {
			s.ErrorCount++
			if s.ErrorTypes == nil {
				s.ErrorTypes = make(map[string]int)
			}
			s.ErrorTypes[m.ErrorType]++
		}
		s.TotalPromptTokens += m.PromptTokens
		s.TotalCompletionTokens += m.CompletionTokens
		s.TotalTokens += m.TotalTokens
		latencies = append(latencies, m.TotalSeconds)
	}
	s.AvgTotalTokens = float64(s.TotalTokens) / float64(s.Count)

	sort.Float64s(latencies)
	var sum float64
	for _, l := range latencies {
		sum += l
	}
	s.LatencyAvg = sum / float64(len(latencies))
	s.LatencyMax = latencies[len(latencies)-1]
	s.LatencyP50 = percentile(latencies, 50)
	s.LatencyP95 = percentile(latencies, 95)
	return s
}

// percentile interpolates the p-th percentile of a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	idx := (p / 100.0) * float64(len(sorted)-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	weight := idx - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
