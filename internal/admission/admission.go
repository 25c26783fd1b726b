// Package admission applies hard constraint filters to candidate backends
// before any scoring happens.
package admission

import (
	"fmt"

	"github.com/sells-group/taskrouter/internal/model"
)

// Rejection records why a backend was excluded from consideration.
type Rejection struct {
	BackendID string
	Reason    string
}

// Result holds the surviving candidates plus per-backend rejection reasons.
type Result struct {
	Admitted  []*model.BackendProfile
	Rejected  []Rejection
	AllFailed bool
}

// Filter drops backends that violate any hard constraint. Each rejection
// carries the first constraint that failed. When every candidate is
// rejected, AllFailed is set so the caller can decide between strict
// refusal and constraint bypass.
func Filter(task model.TaskRequest, candidates []*model.BackendProfile) Result {
	res := Result{}
	for _, b := range candidates {
		if reason := check(task, b); reason != "" {
			res.Rejected = append(res.Rejected, Rejection{BackendID: b.ID, Reason: reason})
			continue
		}
		res.Admitted = append(res.Admitted, b)
	}
	res.AllFailed = len(res.Admitted) == 0 && len(candidates) > 0
	return res
}

func check(task model.TaskRequest, b *model.BackendProfile) string {
	c := task.Constraints

	if b.PrivacyLevel < c.MinPrivacyLevel {
		return fmt.Sprintf("privacy level %.1f below required %.1f", b.PrivacyLevel, c.MinPrivacyLevel)
	}
	if task.EstimatedTokens > 0 && b.ContextCapacity < task.EstimatedTokens {
		return fmt.Sprintf("context capacity %d below estimated %d tokens", b.ContextCapacity, task.EstimatedTokens)
	}
	// Free backends always pass the cost gate.
	if cost := b.UnitCost(); cost > 0 && c.MaxCostPerUnit > 0 && cost > c.MaxCostPerUnit {
		return fmt.Sprintf("unit cost %.4f exceeds budget %.4f", cost, c.MaxCostPerUnit)
	}
	if c.MaxLatencyMS > 0 && b.AvgLatencyMS > c.MaxLatencyMS {
		return fmt.Sprintf("average latency %dms exceeds limit %dms", b.AvgLatencyMS, c.MaxLatencyMS)
	}
	if c.QualityThreshold > 0 {
		for _, cap := range task.RequiredCapabilities {
			if score := b.CapabilityScore(cap); score < c.QualityThreshold {
				return fmt.Sprintf("capability %s score %.1f below threshold %.1f", cap, score, c.QualityThreshold)
			}
		}
	}
	return ""
}
