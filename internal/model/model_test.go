package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeCapabilities(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []Capability
		want []Capability
	}{
		{
			name: "preserves first-seen order",
			in:   []Capability{CapCoding, CapReasoning, CapCoding, CapAnalysis, CapReasoning},
			want: []Capability{CapCoding, CapReasoning, CapAnalysis},
		},
		{
			name: "drops empty entries",
			in:   []Capability{"", CapWriting, ""},
			want: []Capability{CapWriting},
		},
		{
			name: "nil input",
			in:   nil,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DedupeCapabilities(tt.in))
		})
	}
}

func TestDefaultCapabilityWeights(t *testing.T) {
	t.Parallel()

	w := DefaultCapabilityWeights()
	assert.Len(t, w, len(KnownCapabilities()))
	assert.Equal(t, 1.0, w[CapCoding])
	assert.Equal(t, 1.3, w[CapMultimodal])
	assert.Equal(t, 1.3, w[CapUncertainty])
}

func TestBenchmarkEntryColdStart(t *testing.T) {
	t.Parallel()

	var nilEntry *BenchmarkEntry
	assert.Equal(t, DefaultSuccessRate, nilEntry.SuccessRate())
	assert.Equal(t, DefaultReliabilityScore, nilEntry.Reliability())

	empty := &BenchmarkEntry{BackendID: "b1"}
	assert.Equal(t, DefaultSuccessRate, empty.SuccessRate())
	assert.Equal(t, DefaultReliabilityScore, empty.Reliability())

	seen := &BenchmarkEntry{BackendID: "b1", TotalTasks: 10, SuccessfulTasks: 9, ReliabilityScore: 9.2}
	assert.InDelta(t, 0.9, seen.SuccessRate(), 1e-9)
	assert.Equal(t, 9.2, seen.Reliability())
}

func TestParseStrategy(t *testing.T) {
	t.Parallel()

	assert.Equal(t, StrategyCostFirst, ParseStrategy("cost_first"))
	assert.Equal(t, StrategyAuto, ParseStrategy(""))
	assert.Equal(t, StrategyAuto, ParseStrategy("nonsense"))
}

func TestBackendProfileHelpers(t *testing.T) {
	t.Parallel()

	p := &BackendProfile{
		ID:             "hosted-1",
		CostPerUnitIn:  0.003,
		CostPerUnitOut: 0.015,
		Capabilities:   map[Capability]float64{CapWriting: 10},
		Specialties:    []string{"legal", "finance"},
	}
	assert.InDelta(t, 0.003, p.UnitCost(), 1e-9)
	assert.Equal(t, 10.0, p.CapabilityScore(CapWriting))
	assert.Equal(t, 0.0, p.CapabilityScore(CapCoding))
	assert.True(t, p.HasSpecialty("finance"))
	assert.False(t, p.HasSpecialty("medicine"))
}
