package model

// Constraints are the hard limits a task places on backend selection.
// Missing fields are filled from configured defaults by the analyzer.
type Constraints struct {
	MaxCostPerUnit   float64 `json:"max_cost_per_unit" yaml:"max_cost_per_unit"`
	MaxLatencyMS     int64   `json:"max_latency_ms" yaml:"max_latency_ms"`
	MinPrivacyLevel  float64 `json:"min_privacy_level" yaml:"min_privacy_level"`
	QualityThreshold float64 `json:"quality_threshold" yaml:"quality_threshold"`
	Urgency          float64 `json:"urgency" yaml:"urgency"`
}

// TaskRequest is the analyzed form of an incoming task: raw content plus the
// derived requirement set and fully defaulted constraints. It is ephemeral,
// created once per routing request.
type TaskRequest struct {
	TaskID   string `json:"task_id"`
	Content  string `json:"content"`
	TaskType string `json:"task_type"`
	Domain   string `json:"domain,omitempty"`

	Constraints Constraints `json:"constraints"`

	// RequiredCapabilities is de-duplicated and order-preserving.
	RequiredCapabilities []Capability `json:"required_capabilities"`

	// EstimatedTokens is the projected input size used for context-capacity
	// admission and cost estimation.
	EstimatedTokens int `json:"estimated_tokens"`
}

// Requires reports whether the task lists the given capability.
func (t *TaskRequest) Requires(c Capability) bool {
	for _, rc := range t.RequiredCapabilities {
		if rc == c {
			return true
		}
	}
	return false
}

// RouteRequest is the raw caller-facing routing request. Zero-valued fields
// take configured defaults.
type RouteRequest struct {
	Type             string  `json:"type,omitempty"`
	Content          string  `json:"content"`
	Domain           string  `json:"domain,omitempty"`
	TaskType         string  `json:"task_type,omitempty"`
	PrivacyLevel     float64 `json:"privacy_level,omitempty"`
	MaxCost          float64 `json:"max_cost,omitempty"`
	MaxLatencyMS     int64   `json:"max_latency_ms,omitempty"`
	QualityThreshold float64 `json:"quality_threshold,omitempty"`
	Urgency          float64 `json:"urgency,omitempty"`
	Strategy         string  `json:"strategy,omitempty"`
}
