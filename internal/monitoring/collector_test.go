package monitoring

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/taskrouter/internal/model"
	"github.com/sells-group/taskrouter/internal/router"
	"github.com/sells-group/taskrouter/internal/store"
)

// stubSource implements AnalyticsSource with a fixed view.
type stubSource struct {
	stats router.Analytics
}

func (s *stubSource) Stats(context.Context) router.Analytics {
	return s.stats
}

func TestCollector_Collect(t *testing.T) {
	st := store.NewMemory()
	_, err := st.Record(context.Background(), model.OutcomeRecord{
		SelectedBackend:  "flaky-backend",
		EstimatedQuality: 5,
		ActualQuality:    2,
		TaskSuccess:      false,
	})
	require.NoError(t, err)

	src := &stubSource{stats: router.Analytics{
		TotalSelections:   40,
		Fallbacks:         4,
		FilterBypasses:    2,
		CacheHitRate:      0.5,
		AverageConfidence: 0.8,
	}}

	snap, err := NewCollector(src, st).Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(40), snap.TotalSelections)
	assert.InDelta(t, 0.10, snap.FallbackRate, 1e-9)
	assert.InDelta(t, 0.05, snap.BypassRate, 1e-9)
	assert.Equal(t, 0.5, snap.CacheHitRate)
	assert.Equal(t, 0.8, snap.AverageConfidence)
	// One failed task out of one: reliability well below the floor.
	assert.Equal(t, []string{"flaky-backend"}, snap.UnreliableBackends)
	assert.False(t, snap.CollectedAt.IsZero())
}

func TestCollector_Collect_EmptyStats(t *testing.T) {
	snap, err := NewCollector(&stubSource{}, store.NewMemory()).Collect(context.Background())
	require.NoError(t, err)

	assert.Zero(t, snap.FallbackRate)
	assert.Zero(t, snap.BypassRate)
	assert.Empty(t, snap.UnreliableBackends)
}

func TestCollector_Collect_NilStore(t *testing.T) {
	snap, err := NewCollector(&stubSource{stats: router.Analytics{TotalSelections: 1}}, nil).Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.UnreliableBackends)
}
