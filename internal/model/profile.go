// Package model defines the core data types shared across the routing engine.
package model

import "time"

// BackendCategory distinguishes locally hosted backends from remote ones.
type BackendCategory string

const (
	CategoryLocal  BackendCategory = "local"
	CategoryHosted BackendCategory = "hosted"
)

// BackendProfile describes one execution backend's capability, cost, latency
// and privacy characteristics. Profiles are immutable once published in a
// catalog snapshot; ReliabilityScore is the only field derived at runtime,
// and it is read from the benchmark store rather than mutated in place.
type BackendProfile struct {
	ID       string          `json:"id" yaml:"id"`
	Category BackendCategory `json:"category" yaml:"category"`

	// Capabilities maps capability name to a 0-10 proficiency score.
	Capabilities map[Capability]float64 `json:"capabilities" yaml:"capabilities"`

	// Cost per 1k units (tokens) in USD. Zero means free (local backends).
	CostPerUnitIn  float64 `json:"cost_per_unit_in" yaml:"cost_per_unit_in"`
	CostPerUnitOut float64 `json:"cost_per_unit_out" yaml:"cost_per_unit_out"`

	AvgLatencyMS    int64   `json:"avg_latency_ms" yaml:"avg_latency_ms"`
	ContextCapacity int     `json:"context_capacity" yaml:"context_capacity"`
	PrivacyLevel    float64 `json:"privacy_level" yaml:"privacy_level"`

	Specialties  []string `json:"specialties,omitempty" yaml:"specialties,omitempty"`
	AntiPatterns []string `json:"anti_patterns,omitempty" yaml:"anti_patterns,omitempty"`
}

// UnitCost returns the representative per-1k-unit cost used by constraint
// checks and the cost axis. Budget gates compare the input-side rate; output
// pricing is factored in by the value optimizer when it projects total spend.
func (p *BackendProfile) UnitCost() float64 {
	return p.CostPerUnitIn
}

// CapabilityScore returns the backend's score for a capability (0 if absent).
func (p *BackendProfile) CapabilityScore(c Capability) float64 {
	if p.Capabilities == nil {
		return 0
	}
	return p.Capabilities[c]
}

// HasSpecialty reports whether the backend declares the given specialty.
func (p *BackendProfile) HasSpecialty(domain string) bool {
	for _, s := range p.Specialties {
		if s == domain {
			return true
		}
	}
	return false
}

// BenchmarkEntry accumulates per-backend outcome statistics. Error fields are
// exponential moving averages of |actual - estimated|.
type BenchmarkEntry struct {
	BackendID       string  `json:"backend_id"`
	TotalTasks      int64   `json:"total_tasks"`
	SuccessfulTasks int64   `json:"successful_tasks"`

	AvgQuality      float64 `json:"avg_quality"`
	AvgQualityError float64 `json:"avg_quality_error"`
	AvgCostError    float64 `json:"avg_cost_error"`
	AvgLatencyError float64 `json:"avg_latency_error"`

	ReliabilityScore     float64 `json:"reliability_score"`
	PredictionConfidence float64 `json:"prediction_confidence"`
	SampleCount          int64   `json:"sample_count"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Cold-start defaults for backends with no recorded outcomes yet.
const (
	DefaultSuccessRate      = 0.85
	DefaultReliabilityScore = 8.5
)

// SuccessRate returns the observed success rate, or the cold-start default
// when no tasks have been recorded.
func (b *BenchmarkEntry) SuccessRate() float64 {
	if b == nil || b.TotalTasks == 0 {
		return DefaultSuccessRate
	}
	return float64(b.SuccessfulTasks) / float64(b.TotalTasks)
}

// Reliability returns the derived reliability score, or the cold-start
// default when no tasks have been recorded.
func (b *BenchmarkEntry) Reliability() float64 {
	if b == nil || b.TotalTasks == 0 {
		return DefaultReliabilityScore
	}
	return b.ReliabilityScore
}
