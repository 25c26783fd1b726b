package learner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/taskrouter/internal/config"
	"github.com/sells-group/taskrouter/internal/model"
	"github.com/sells-group/taskrouter/internal/store"
)

func testLearnerConfig() config.LearnerConfig {
	return config.LearnerConfig{
		AdjustmentRate:      0.05,
		RetrainBatchSize:    50,
		MinSamples:          50,
		QueueSize:           100,
		RetrainIntervalSecs: 1,
	}
}

func codingOutcome(actualQuality float64) model.OutcomeRecord {
	return model.OutcomeRecord{
		TaskID:               "t",
		SelectedBackend:      "b1",
		TaskType:             "coding",
		RequiredCapabilities: []model.Capability{model.CapCoding},
		EstimatedCost:        0.01,
		ActualCost:           0.01,
		EstimatedQuality:     8,
		ActualQuality:        actualQuality,
		EstimatedLatencyMS:   1000,
		ActualLatencyMS:      1100,
		TaskSuccess:          true,
		Timestamp:            time.Now().UTC(),
	}
}

func TestCapabilityWeightDefaults(t *testing.T) {
	t.Parallel()

	l := New(testLearnerConfig(), nil, store.NewMemory())
	assert.InDelta(t, 1.0, l.CapabilityWeight(model.CapCoding), 1e-9)
	assert.InDelta(t, 1.3, l.CapabilityWeight(model.CapMultimodal), 1e-9)
	assert.InDelta(t, 1.0, l.CapabilityWeight(model.Capability("mystery")), 1e-9)
}

func TestConfigOverridesSeedWeights(t *testing.T) {
	t.Parallel()

	l := New(testLearnerConfig(), map[string]float64{"coding": 2.0}, store.NewMemory())
	assert.InDelta(t, 2.0, l.CapabilityWeight(model.CapCoding), 1e-9)
}

func TestUnderperformanceDecreasesWeight(t *testing.T) {
	t.Parallel()

	l := New(testLearnerConfig(), nil, store.NewMemory())
	before := l.CapabilityWeight(model.CapCoding)

	// Actual quality 2 points under estimate.
	l.Process(context.Background(), codingOutcome(6))

	after := l.CapabilityWeight(model.CapCoding)
	assert.InDelta(t, before-2*0.05, after, 1e-9)
}

func TestOverperformanceIncreasesWeightByHalf(t *testing.T) {
	t.Parallel()

	l := New(testLearnerConfig(), nil, store.NewMemory())
	before := l.CapabilityWeight(model.CapCoding)

	l.Process(context.Background(), codingOutcome(10))

	after := l.CapabilityWeight(model.CapCoding)
	assert.InDelta(t, before+2*0.05/2, after, 1e-9)
}

func TestMissingEstimateLeavesWeightsAlone(t *testing.T) {
	t.Parallel()

	l := New(testLearnerConfig(), nil, store.NewMemory())
	before := l.CapabilityWeight(model.CapCoding)

	// Success-only reports carry an actual quality but no estimate; they say
	// nothing about prediction error and must not move the weights.
	for i := 0; i < 40; i++ {
		o := codingOutcome(8)
		o.EstimatedQuality = 0
		l.Process(context.Background(), o)
	}

	assert.InDelta(t, before, l.CapabilityWeight(model.CapCoding), 1e-9)

	// The reverse shape (estimate without an actual) is equally inert.
	o := codingOutcome(0)
	l.Process(context.Background(), o)
	assert.InDelta(t, before, l.CapabilityWeight(model.CapCoding), 1e-9)
}

func TestConsistentUnderperformanceDriftsDown(t *testing.T) {
	t.Parallel()

	l := New(testLearnerConfig(), nil, store.NewMemory())
	before := l.CapabilityWeight(model.CapCoding)

	for i := 0; i < 60; i++ {
		l.Process(context.Background(), codingOutcome(6))
	}

	after := l.CapabilityWeight(model.CapCoding)
	assert.Less(t, after, before, "weight must decrease measurably")
	assert.GreaterOrEqual(t, after, 0.0, "weight stays non-negative")
}

func TestWeightBoundedness(t *testing.T) {
	t.Parallel()

	l := New(testLearnerConfig(), nil, store.NewMemory())
	orig := l.CapabilityWeight(model.CapCoding)

	// Hammer both directions far past saturation.
	for i := 0; i < 500; i++ {
		l.Process(context.Background(), codingOutcome(0.1))
	}
	assert.GreaterOrEqual(t, l.CapabilityWeight(model.CapCoding), 0.0)

	for i := 0; i < 5000; i++ {
		l.Process(context.Background(), codingOutcome(10))
	}
	got := l.CapabilityWeight(model.CapCoding)
	assert.LessOrEqual(t, got, orig*3)
}

func TestProcessUpdatesBenchmarkStore(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory()
	l := New(testLearnerConfig(), nil, mem)
	l.Process(context.Background(), codingOutcome(8))

	e, err := mem.Get(context.Background(), "b1")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, int64(1), e.TotalTasks)
}

func TestSubmitDropsOldestWhenFull(t *testing.T) {
	t.Parallel()

	cfg := testLearnerConfig()
	cfg.QueueSize = 2
	l := New(cfg, nil, store.NewMemory())

	first := codingOutcome(8)
	first.TaskID = "first"
	l.Submit(first)
	l.Submit(codingOutcome(8))
	l.Submit(codingOutcome(8))

	assert.Equal(t, 2, l.QueueDepth())
}

func TestRunDrainsQueue(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory()
	l := New(testLearnerConfig(), nil, mem)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	for i := 0; i < 10; i++ {
		l.Submit(codingOutcome(8))
	}

	require.Eventually(t, func() bool {
		e, err := mem.Get(context.Background(), "b1")
		return err == nil && e != nil && e.TotalTasks == 10
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
	assert.Zero(t, l.QueueDepth())
}

func TestRetrainTriggersAtThreshold(t *testing.T) {
	t.Parallel()

	cfg := testLearnerConfig()
	cfg.RetrainBatchSize = 10
	cfg.MinSamples = 10
	l := New(cfg, nil, store.NewMemory())

	require.Nil(t, l.Predictor())

	for i := 0; i < 10; i++ {
		l.Process(context.Background(), codingOutcome(8))
	}

	require.Eventually(t, func() bool {
		return l.Predictor() != nil
	}, 2*time.Second, 10*time.Millisecond)

	assert.False(t, l.LastRetrain().IsZero())
	assert.Empty(t, l.LastRetrainError())
}
