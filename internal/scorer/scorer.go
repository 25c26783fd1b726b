// Package scorer computes multi-axis match scores for candidate backends.
package scorer

import (
	"context"
	"math"

	"github.com/sells-group/taskrouter/internal/config"
	"github.com/sells-group/taskrouter/internal/model"
)

// WeightSource supplies per-capability weights for the capability axis. The
// learner implements this so weight nudges take effect on the next Select.
type WeightSource interface {
	CapabilityWeight(c model.Capability) float64
}

// ReliabilityReader reads a backend's learned reliability score. Missing
// entries must resolve to the cold-start default, never an error.
type ReliabilityReader interface {
	Reliability(ctx context.Context, backendID string) float64
}

// StaticWeights is a WeightSource backed by a fixed map. Unknown
// capabilities fall back to weight 1.0.
type StaticWeights map[model.Capability]float64

// CapabilityWeight returns the weight for c, defaulting to 1.0.
func (w StaticWeights) CapabilityWeight(c model.Capability) float64 {
	if v, ok := w[c]; ok {
		return v
	}
	return 1.0
}

// AxisWeights holds the relative importance of each scoring axis.
type AxisWeights struct {
	Capability  float64
	Cost        float64
	Latency     float64
	Privacy     float64
	Context     float64
	Reliability float64
}

// WeightsFromConfig builds AxisWeights from configuration.
func WeightsFromConfig(cfg config.ScoringConfig) AxisWeights {
	return AxisWeights{
		Capability:  cfg.CapabilityWeight,
		Cost:        cfg.CostWeight,
		Latency:     cfg.LatencyWeight,
		Privacy:     cfg.PrivacyWeight,
		Context:     cfg.ContextWeight,
		Reliability: cfg.ReliabilityWeight,
	}
}

// Normalize rescales the weights to sum to 1. A zero weight set normalizes
// to the uniform distribution so scoring never divides by zero.
func (w AxisWeights) Normalize() AxisWeights {
	sum := w.Capability + w.Cost + w.Latency + w.Privacy + w.Context + w.Reliability
	if sum <= 0 {
		u := 1.0 / 6
		return AxisWeights{u, u, u, u, u, u}
	}
	return AxisWeights{
		Capability:  w.Capability / sum,
		Cost:        w.Cost / sum,
		Latency:     w.Latency / sum,
		Privacy:     w.Privacy / sum,
		Context:     w.Context / sum,
		Reliability: w.Reliability / sum,
	}
}

// ForStrategy re-weights the axes for the requested selection strategy.
// Strategies change emphasis, never the pipeline shape.
func (w AxisWeights) ForStrategy(s model.Strategy) AxisWeights {
	switch s {
	case model.StrategyCostFirst:
		return AxisWeights{Capability: 0.20, Cost: 0.45, Latency: 0.10, Privacy: 0.10, Context: 0.05, Reliability: 0.10}
	case model.StrategyQualityFirst:
		return AxisWeights{Capability: 0.55, Cost: 0.05, Latency: 0.05, Privacy: 0.10, Context: 0.10, Reliability: 0.15}
	case model.StrategySpeedFirst:
		return AxisWeights{Capability: 0.20, Cost: 0.10, Latency: 0.45, Privacy: 0.10, Context: 0.05, Reliability: 0.10}
	case model.StrategyROIFocused:
		return AxisWeights{Capability: 0.30, Cost: 0.35, Latency: 0.10, Privacy: 0.10, Context: 0.05, Reliability: 0.10}
	case model.StrategyDomainSpecialized:
		return AxisWeights{Capability: 0.50, Cost: 0.10, Latency: 0.10, Privacy: 0.10, Context: 0.10, Reliability: 0.10}
	default:
		return w
	}
}

// Scorer computes axis scores and composite totals for candidates.
type Scorer struct {
	capWeights  WeightSource
	reliability ReliabilityReader
}

// New creates a Scorer. weights may be the learner or StaticWeights;
// reliability is typically the benchmark store.
func New(weights WeightSource, reliability ReliabilityReader) *Scorer {
	if weights == nil {
		weights = StaticWeights(model.DefaultCapabilityWeights())
	}
	return &Scorer{capWeights: weights, reliability: reliability}
}

// Score computes the six axis scores for a candidate against a task and
// returns the breakdown with its weighted total, plus a confidence value
// derived from axis agreement.
func (s *Scorer) Score(ctx context.Context, task model.TaskRequest, b *model.BackendProfile, w AxisWeights) (model.ScoreBreakdown, float64) {
	bd := model.ScoreBreakdown{
		Capability:  s.capabilityAxis(task, b),
		Cost:        costAxis(b.UnitCost(), task.Constraints.MaxCostPerUnit),
		Latency:     latencyAxis(b.AvgLatencyMS, task.Constraints.MaxLatencyMS),
		Privacy:     privacyAxis(b.PrivacyLevel, task.Constraints.MinPrivacyLevel),
		Context:     contextAxis(b.ContextCapacity, task.EstimatedTokens),
		Reliability: s.reliabilityAxis(ctx, b.ID),
	}

	nw := w.Normalize()
	bd.Total = bd.Capability*nw.Capability +
		bd.Cost*nw.Cost +
		bd.Latency*nw.Latency +
		bd.Privacy*nw.Privacy +
		bd.Context*nw.Context +
		bd.Reliability*nw.Reliability

	return bd, confidence(bd)
}

// capabilityAxis is the weighted mean of the backend's scores on the task's
// required capabilities. Backends with a specialty matching the task domain
// get a small bump, capped at 10.
func (s *Scorer) capabilityAxis(task model.TaskRequest, b *model.BackendProfile) float64 {
	if len(task.RequiredCapabilities) == 0 {
		return 5.0
	}
	var sum, weightSum float64
	for _, cap := range task.RequiredCapabilities {
		w := s.capWeights.CapabilityWeight(cap)
		sum += b.CapabilityScore(cap) * w
		weightSum += w
	}
	if weightSum <= 0 {
		return 0
	}
	score := sum / weightSum
	if task.Domain != "" && b.HasSpecialty(task.Domain) {
		score += 0.5
	}
	return math.Min(score, 10)
}

func costAxis(cost, maxCost float64) float64 {
	if cost <= 0 {
		return 10
	}
	if maxCost <= 0 {
		return 5.0
	}
	return math.Max(0, 10-(cost/maxCost)*10)
}

func latencyAxis(latencyMS, maxLatencyMS int64) float64 {
	if maxLatencyMS <= 0 {
		return 5.0
	}
	return math.Max(0, 10-(float64(latencyMS)/float64(maxLatencyMS))*10)
}

func privacyAxis(privacy, required float64) float64 {
	if required <= 0 || privacy >= required {
		return 10
	}
	return math.Max(0, (privacy/required)*10)
}

func contextAxis(capacity, estimatedTokens int) float64 {
	if estimatedTokens <= 0 || capacity >= estimatedTokens {
		return 10
	}
	if capacity <= 0 {
		return 0
	}
	return (float64(capacity) / float64(estimatedTokens)) * 10
}

func (s *Scorer) reliabilityAxis(ctx context.Context, backendID string) float64 {
	if s.reliability == nil {
		return model.DefaultReliabilityScore
	}
	return s.reliability.Reliability(ctx, backendID)
}

// confidence maps axis variance to [0.5, 1.0]: tightly clustered axis
// scores mean the decision is unambiguous.
func confidence(bd model.ScoreBreakdown) float64 {
	axes := [6]float64{bd.Capability, bd.Cost, bd.Latency, bd.Privacy, bd.Context, bd.Reliability}

	var mean float64
	for _, a := range axes {
		mean += a
	}
	mean /= 6

	var variance float64
	for _, a := range axes {
		variance += (a - mean) * (a - mean)
	}
	variance /= 6

	c := 1 - variance/25
	return math.Min(1.0, math.Max(0.5, c))
}

// Better reports whether candidate a should rank ahead of b. Ties on total
// score fall to the capability axis, then to the lexicographically smaller
// backend id so ranking is deterministic.
func Better(aID string, a model.ScoreBreakdown, bID string, b model.ScoreBreakdown) bool {
	if a.Total != b.Total {
		return a.Total > b.Total
	}
	if a.Capability != b.Capability {
		return a.Capability > b.Capability
	}
	return aID < bID
}
