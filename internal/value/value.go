// Package value converts raw backend cost and latency into an adjusted
// total cost and a value score used for ROI-aware ranking.
package value

import (
	"math"

	"github.com/sells-group/taskrouter/internal/config"
	"github.com/sells-group/taskrouter/internal/model"
)

// epsilon guards divisions when the adjusted cost rounds to zero.
const epsilon = 1e-6

// maxROI is the saturating ROI reported for free backends, where the true
// ratio is unbounded.
const maxROI = 1000.0

// Optimizer computes CostAnalysis for a candidate and task.
type Optimizer struct {
	cfg config.ValueConfig
}

// New creates an Optimizer with the given configuration.
func New(cfg config.ValueConfig) *Optimizer {
	return &Optimizer{cfg: cfg}
}

// Analyze computes the full cost/value picture for running the task on the
// given backend. estimatedQuality is the scorer's capability axis for the
// candidate, on the 0-10 scale.
func (o *Optimizer) Analyze(task model.TaskRequest, b *model.BackendProfile, estimatedQuality float64) model.CostAnalysis {
	direct := o.directCost(task, b)
	timeCost := o.timeCost(task, b)
	opportunity := timeCost * o.cfg.OpportunityMultiplier * o.taskTypeMultiplier(task.TaskType)
	adjustment := qualityAdjustment(estimatedQuality, task.Constraints.QualityThreshold)

	total := (direct + timeCost + opportunity) * adjustment
	valueScore := o.valueScore(estimatedQuality, total, b)

	var roi float64
	if direct <= 0 {
		roi = maxROI
	} else {
		roi = math.Max(0, (valueScore*0.1-total)/math.Max(total, epsilon))
	}

	return model.CostAnalysis{
		DirectCost:         direct,
		TimeCost:           timeCost,
		OpportunityCost:    opportunity,
		QualityAdjustment:  adjustment,
		TotalAdjustedCost:  total,
		ValueScore:         valueScore,
		ROIEstimate:        roi,
		Efficiency:         o.efficiency(total, estimatedQuality),
		BreakEvenThreshold: 10 * math.Max(total, epsilon),
	}
}

// directCost prices the estimated input tokens plus the projected output
// tokens at the backend's per-1k rates.
func (o *Optimizer) directCost(task model.TaskRequest, b *model.BackendProfile) float64 {
	in := float64(task.EstimatedTokens) / 1000 * b.CostPerUnitIn
	out := float64(task.EstimatedTokens) * o.cfg.OutputTokenRatio / 1000 * b.CostPerUnitOut
	return in + out
}

// timeCost converts expected latency into money at the configured hourly
// rate, scaled by urgency.
func (o *Optimizer) timeCost(task model.TaskRequest, b *model.BackendProfile) float64 {
	hours := float64(b.AvgLatencyMS) / 3_600_000
	urgency := math.Max(1, task.Constraints.Urgency/5)
	return hours * o.cfg.HourlyRate * urgency
}

func (o *Optimizer) taskTypeMultiplier(taskType string) float64 {
	if m, ok := o.cfg.TaskTypeMultipliers[taskType]; ok {
		return m
	}
	return 1.0
}

// qualityAdjustment inflates cost when the estimated quality falls short of
// the required threshold. The penalty is quadratic in the gap, capped at 3x.
func qualityAdjustment(estimated, required float64) float64 {
	if required <= 0 || estimated >= required {
		return 1.0
	}
	gap := required - estimated
	return math.Min(3.0, 1+(gap/10)*(gap/10))
}

// valueScore is quality per adjusted dollar, with bonuses for strong
// privacy and fast backends, capped at +30% combined.
func (o *Optimizer) valueScore(quality, totalCost float64, b *model.BackendProfile) float64 {
	base := quality / math.Max(totalCost, epsilon)

	bonus := 0.0
	if b.PrivacyLevel >= 9 {
		bonus += 0.15
	}
	if b.AvgLatencyMS > 0 && b.AvgLatencyMS <= 1000 {
		bonus += 0.15
	}
	return base * (1 + math.Min(bonus, 0.30))
}

// efficiency buckets cost-per-quality-point against configured thresholds.
func (o *Optimizer) efficiency(totalCost, quality float64) model.EfficiencyRating {
	ratio := totalCost / math.Max(quality, epsilon)
	switch {
	case ratio < o.cfg.ExcellentThreshold:
		return model.EfficiencyExcellent
	case ratio < o.cfg.GoodThreshold:
		return model.EfficiencyGood
	case ratio < o.cfg.FairThreshold:
		return model.EfficiencyFair
	default:
		return model.EfficiencyPoor
	}
}
