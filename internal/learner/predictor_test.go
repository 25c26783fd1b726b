package learner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeSamples(n int, backend, taskType string, quality func(i int) float64) []sample {
	out := make([]sample, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, sample{
			backend:  backend,
			taskType: taskType,
			latency:  float64(1+i%5) / 2,
			capCount: float64(1 + i%3),
			quality:  quality(i),
			cost:     0.01,
		})
	}
	return out
}

func TestTrainTooFewSamples(t *testing.T) {
	t.Parallel()

	_, err := Train(makeSamples(5, "b1", "coding", func(int) float64 { return 8 }))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too few")
}

func TestTrainConstantTarget(t *testing.T) {
	t.Parallel()

	p, err := Train(makeSamples(100, "b1", "coding", func(int) float64 { return 8 }))
	require.NoError(t, err)

	q, c := p.Predict("b1", "coding", 2, 1500)
	assert.InDelta(t, 8.0, q, 0.1)
	assert.InDelta(t, 0.01, c, 0.001)
	assert.InDelta(t, 0.0, p.QualityMSE, 0.05)
}

func TestTrainLearnsLatencyTrend(t *testing.T) {
	t.Parallel()

	// Quality is a clean linear function of latency: q = 4 + 2*latency.
	samples := makeSamples(200, "b1", "coding", func(int) float64 { return 0 })
	for i := range samples {
		samples[i].quality = 4 + 2*samples[i].latency
	}

	p, err := Train(samples)
	require.NoError(t, err)

	q1, _ := p.Predict("b1", "coding", 2, 500)
	q2, _ := p.Predict("b1", "coding", 2, 2500)
	assert.InDelta(t, 5.0, q1, 0.2)
	assert.InDelta(t, 9.0, q2, 0.2)
	assert.Less(t, p.QualityMSE, 0.1)
}

func TestPredictFallsBackToGlobal(t *testing.T) {
	t.Parallel()

	p, err := Train(makeSamples(100, "b1", "coding", func(int) float64 { return 7 }))
	require.NoError(t, err)

	// Unseen segment uses the global model.
	q, _ := p.Predict("never-seen", "writing", 1, 1000)
	assert.InDelta(t, 7.0, q, 0.2)
}

func TestPredictClampsQuality(t *testing.T) {
	t.Parallel()

	samples := makeSamples(100, "b1", "coding", func(int) float64 { return 0 })
	for i := range samples {
		samples[i].quality = 4 + 2*samples[i].latency
	}
	p, err := Train(samples)
	require.NoError(t, err)

	// Extrapolating far beyond the training range stays within [0, 10].
	q, c := p.Predict("b1", "coding", 2, 60_000)
	assert.LessOrEqual(t, q, 10.0)
	assert.GreaterOrEqual(t, c, 0.0)
}

func TestSegmentModelsDiverge(t *testing.T) {
	t.Parallel()

	fast := makeSamples(100, "fast", "coding", func(int) float64 { return 9 })
	slow := makeSamples(100, "slow", "coding", func(int) float64 { return 4 })
	p, err := Train(append(fast, slow...))
	require.NoError(t, err)

	qFast, _ := p.Predict("fast", "coding", 2, 1000)
	qSlow, _ := p.Predict("slow", "coding", 2, 1000)
	assert.Greater(t, qFast, qSlow)
}

func TestSolveSingularFallsBack(t *testing.T) {
	t.Parallel()

	// All-identical features make the system singular; ols degrades to the
	// target mean instead of failing.
	samples := make([]sample, 20)
	for i := range samples {
		samples[i] = sample{latency: 1, capCount: 2, quality: 6, cost: 0.02}
	}
	coef, err := ols(samples, func(s sample) float64 { return s.quality })
	require.NoError(t, err)
	assert.InDelta(t, 6.0, coef[0], 1e-9)
	assert.InDelta(t, 0.0, coef[1], 1e-9)
}
