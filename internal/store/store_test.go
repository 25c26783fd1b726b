package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/taskrouter/internal/config"
	"github.com/sells-group/taskrouter/internal/model"
)

func outcome(backend string, actualQuality float64, success bool) model.OutcomeRecord {
	return model.OutcomeRecord{
		TaskID:             "t1",
		SelectedBackend:    backend,
		EstimatedCost:      0.01,
		ActualCost:         0.012,
		EstimatedQuality:   8,
		ActualQuality:      actualQuality,
		EstimatedLatencyMS: 1000,
		ActualLatencyMS:    1200,
		TaskSuccess:        success,
		Timestamp:          time.Unix(1_700_000_000, 0).UTC(),
	}
}

func TestMemoryColdStart(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	e, err := s.Get(context.Background(), "unseen")
	require.NoError(t, err)
	assert.Nil(t, e)

	// Nil entries resolve to cold-start defaults at the model level.
	assert.InDelta(t, model.DefaultReliabilityScore, e.Reliability(), 1e-9)
	assert.InDelta(t, model.DefaultSuccessRate, e.SuccessRate(), 1e-9)
}

func TestRecordFirstSampleSeedsAverages(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	e, err := s.Record(context.Background(), outcome("b1", 7, true))
	require.NoError(t, err)

	assert.Equal(t, int64(1), e.TotalTasks)
	assert.Equal(t, int64(1), e.SuccessfulTasks)
	assert.InDelta(t, 7.0, e.AvgQuality, 1e-9)
	assert.InDelta(t, 1.0, e.AvgQualityError, 1e-9)
	assert.InDelta(t, 0.002, e.AvgCostError, 1e-9)
	assert.InDelta(t, 200.0, e.AvgLatencyError, 1e-9)
	assert.Equal(t, int64(1), e.SampleCount)
}

func TestRecordEMASmoothing(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	ctx := context.Background()
	_, err := s.Record(ctx, outcome("b1", 7, true))
	require.NoError(t, err)
	e, err := s.Record(ctx, outcome("b1", 9, true))
	require.NoError(t, err)

	// 0.9*7 + 0.1*9
	assert.InDelta(t, 7.2, e.AvgQuality, 1e-9)
	// 0.9*1 + 0.1*1 (both samples have |actual-estimated| of 1)
	assert.InDelta(t, 1.0, e.AvgQualityError, 1e-9)
	assert.Equal(t, int64(2), e.SampleCount)
}

func TestReliabilityScoreDerivation(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	ctx := context.Background()
	var e *model.BenchmarkEntry
	var err error
	e, err = s.Record(ctx, outcome("b1", 8, true))
	require.NoError(t, err)
	e, err = s.Record(ctx, outcome("b1", 8, false))
	require.NoError(t, err)

	// success_rate 0.5, avg_quality 8 -> min(10, 5 + 0.8)
	assert.InDelta(t, 5.8, e.ReliabilityScore, 1e-9)
}

func TestReliabilityScoreCaps(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	ctx := context.Background()
	var e *model.BenchmarkEntry
	for i := 0; i < 5; i++ {
		var err error
		e, err = s.Record(ctx, outcome("b1", 10, true))
		require.NoError(t, err)
	}
	assert.InDelta(t, 10.0, e.ReliabilityScore, 1e-9)
}

func TestPredictionConfidenceGrowsWithSamples(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	ctx := context.Background()

	e1, err := s.Record(ctx, outcome("b1", 8, true))
	require.NoError(t, err)

	var eN *model.BenchmarkEntry
	for i := 0; i < 40; i++ {
		eN, err = s.Record(ctx, outcome("b1", 8, true))
		require.NoError(t, err)
	}
	// Perfect predictions: confidence rises toward 1 as samples accumulate.
	assert.Greater(t, eN.PredictionConfidence, e1.PredictionConfidence)
	assert.LessOrEqual(t, eN.PredictionConfidence, 1.0)
}

func TestListOrdered(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	ctx := context.Background()
	_, err := s.Record(ctx, outcome("zeta", 8, true))
	require.NoError(t, err)
	_, err = s.Record(ctx, outcome("alpha", 8, true))
	require.NoError(t, err)

	entries, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "alpha", entries[0].BackendID)
	assert.Equal(t, "zeta", entries[1].BackendID)
}

func TestConcurrentRecordNoLostUpdates(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_, err := s.Record(ctx, outcome("b1", 8, true))
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	e, err := s.Get(ctx, "b1")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, int64(200), e.TotalTasks)
	assert.Equal(t, int64(200), e.SampleCount)
}

func TestGetReturnsCopy(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	ctx := context.Background()
	_, err := s.Record(ctx, outcome("b1", 8, true))
	require.NoError(t, err)

	e1, err := s.Get(ctx, "b1")
	require.NoError(t, err)
	e1.AvgQuality = 0

	e2, err := s.Get(ctx, "b1")
	require.NoError(t, err)
	assert.InDelta(t, 8.0, e2.AvgQuality, 1e-9)
}

func TestOpenDrivers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	s, err := Open(ctx, config.StoreConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = Open(ctx, config.StoreConfig{Driver: "bogus"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}
