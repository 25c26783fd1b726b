package model

// Strategy selects how axis weights are biased for a routing decision.
// Strategies re-weight the scorer's axes; they never change pipeline shape.
type Strategy string

const (
	StrategyAuto              Strategy = "auto"
	StrategyCostFirst         Strategy = "cost_first"
	StrategyQualityFirst      Strategy = "quality_first"
	StrategyROIFocused        Strategy = "roi_focused"
	StrategySpeedFirst        Strategy = "speed_first"
	StrategyDomainSpecialized Strategy = "domain_specialized"
)

// ParseStrategy maps a caller-supplied string to a Strategy, defaulting to
// auto for empty or unrecognized input.
func ParseStrategy(s string) Strategy {
	switch Strategy(s) {
	case StrategyCostFirst, StrategyQualityFirst, StrategyROIFocused,
		StrategySpeedFirst, StrategyDomainSpecialized, StrategyAuto:
		return Strategy(s)
	default:
		return StrategyAuto
	}
}
