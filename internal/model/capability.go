package model

// Capability is a named skill axis scored 0-10 per backend.
type Capability string

const (
	CapReasoning      Capability = "reasoning"
	CapCoding         Capability = "coding"
	CapAnalysis       Capability = "analysis"
	CapWriting        Capability = "writing"
	CapMath           Capability = "math"
	CapCreative       Capability = "creative"
	CapSummarization  Capability = "summarization"
	CapTranslation    Capability = "translation"
	CapConversation   Capability = "conversation"
	CapMultimodal     Capability = "multimodal"
	CapUncertainty    Capability = "reasoning_under_uncertainty"
	CapToolUse        Capability = "tool_use"
	CapDataExtraction Capability = "data_extraction"
)

// KnownCapabilities returns the fixed set of capabilities the scorer knows
// about. Unknown capability strings still flow through the pipeline but fall
// back to the default weight, so arbitrary caller input cannot grow the
// weight table unboundedly.
func KnownCapabilities() []Capability {
	return []Capability{
		CapReasoning, CapCoding, CapAnalysis, CapWriting, CapMath,
		CapCreative, CapSummarization, CapTranslation, CapConversation,
		CapMultimodal, CapUncertainty, CapToolUse, CapDataExtraction,
	}
}

// IsKnown reports whether c is one of the fixed known capabilities.
func (c Capability) IsKnown() bool {
	for _, k := range KnownCapabilities() {
		if c == k {
			return true
		}
	}
	return false
}

// DefaultCapabilityWeights returns the default per-capability scoring weights.
// Most capabilities weigh 1.0; capabilities that are rare and hard to fake
// (multimodal, reasoning under uncertainty) are boosted so backends that
// actually have them rank ahead when a task demands them.
func DefaultCapabilityWeights() map[Capability]float64 {
	w := make(map[Capability]float64, len(KnownCapabilities()))
	for _, c := range KnownCapabilities() {
		w[c] = 1.0
	}
	w[CapMultimodal] = 1.3
	w[CapUncertainty] = 1.3
	return w
}

// DedupeCapabilities removes duplicates while preserving first-seen order.
func DedupeCapabilities(caps []Capability) []Capability {
	seen := make(map[Capability]bool, len(caps))
	out := caps[:0:0]
	for _, c := range caps {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
