package model

import "time"

// ScoreBreakdown holds the six per-axis scores (each 0-10) and their
// weighted total for one candidate.
type ScoreBreakdown struct {
	Capability  float64 `json:"capability"`
	Cost        float64 `json:"cost"`
	Latency     float64 `json:"latency"`
	Privacy     float64 `json:"privacy"`
	Context     float64 `json:"context"`
	Reliability float64 `json:"reliability"`
	Total       float64 `json:"total"`
}

// Alternative is a ranked non-selected candidate.
type Alternative struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// SelectionResult is the immutable outcome of one routing decision. Cached
// copies are returned verbatim apart from CacheHit and SelectionTimeMS.
type SelectionResult struct {
	SelectedBackend    string         `json:"selected_backend"`
	Breakdown          ScoreBreakdown `json:"score_breakdown"`
	Rationale          string         `json:"rationale"`
	Alternatives       []Alternative  `json:"alternatives,omitempty"`
	EstimatedCost      float64        `json:"estimated_cost"`
	EstimatedLatencyMS int64          `json:"estimated_latency_ms"`
	Confidence         float64        `json:"confidence"`
	CacheHit           bool           `json:"cache_hit"`
	SelectionTimeMS    int64          `json:"selection_time_ms"`
	FiltersBypassed    bool           `json:"filters_bypassed,omitempty"`
	Cost               *CostAnalysis  `json:"cost_analysis,omitempty"`
}

// EfficiencyRating buckets total adjusted cost per quality point.
type EfficiencyRating string

const (
	EfficiencyExcellent EfficiencyRating = "excellent"
	EfficiencyGood      EfficiencyRating = "good"
	EfficiencyFair      EfficiencyRating = "fair"
	EfficiencyPoor      EfficiencyRating = "poor"
)

// CostAnalysis is the full value/cost picture for one candidate. It is
// always recomputed with its SelectionResult, never cached independently.
type CostAnalysis struct {
	DirectCost         float64          `json:"direct_cost"`
	TimeCost           float64          `json:"time_cost"`
	OpportunityCost    float64          `json:"opportunity_cost"`
	QualityAdjustment  float64          `json:"quality_adjustment"`
	TotalAdjustedCost  float64          `json:"total_adjusted_cost"`
	ValueScore         float64          `json:"value_score"`
	ROIEstimate        float64          `json:"roi_estimate"`
	Efficiency         EfficiencyRating `json:"efficiency_rating"`
	BreakEvenThreshold float64          `json:"break_even_threshold"`
}

// OutcomeRecord is the caller-reported result of an executed task. It is
// write-once and feeds the benchmark store and the outcome learner.
type OutcomeRecord struct {
	TaskID               string       `json:"task_id"`
	SelectedBackend      string       `json:"selected_backend"`
	TaskType             string       `json:"task_type"`
	RequiredCapabilities []Capability `json:"required_capabilities"`

	EstimatedCost      float64 `json:"estimated_cost"`
	ActualCost         float64 `json:"actual_cost"`
	EstimatedQuality   float64 `json:"estimated_quality"`
	ActualQuality      float64 `json:"actual_quality"`
	EstimatedLatencyMS int64   `json:"estimated_latency_ms"`
	ActualLatencyMS    int64   `json:"actual_latency_ms"`

	UserSatisfaction float64   `json:"user_satisfaction"`
	TaskSuccess      bool      `json:"task_success"`
	Feedback         string    `json:"feedback,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}
