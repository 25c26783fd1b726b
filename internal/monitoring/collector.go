// Package monitoring watches routing health and pushes webhook alerts when
// the engine degrades: too many fallbacks, too many filter bypasses, or a
// drop in decision confidence.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/taskrouter/internal/model"
	"github.com/sells-group/taskrouter/internal/router"
	"github.com/sells-group/taskrouter/internal/store"
)

// MetricsSnapshot holds a point-in-time view of routing health. Counters are
// cumulative since process start; rates are derived from them.
type MetricsSnapshot struct {
	TotalSelections   int64   `json:"total_selections"`
	Fallbacks         int64   `json:"fallbacks"`
	FallbackRate      float64 `json:"fallback_rate"`
	FilterBypasses    int64   `json:"filter_bypasses"`
	BypassRate        float64 `json:"bypass_rate"`
	CacheHitRate      float64 `json:"cache_hit_rate"`
	AverageConfidence float64 `json:"average_confidence"`

	// Backends whose learned reliability dropped below the floor.
	UnreliableBackends []string `json:"unreliable_backends,omitempty"`

	CollectedAt time.Time `json:"collected_at"`
}

// reliabilityFloor marks a backend as unreliable in the snapshot.
const reliabilityFloor = 5.0

// AnalyticsSource abstracts the router's usage view.
type AnalyticsSource interface {
	Stats(ctx context.Context) router.Analytics
}

// Collector gathers metrics from the router and the benchmark store.
type Collector struct {
	source AnalyticsSource
	store  store.BenchmarkStore
}

// NewCollector creates a new metrics collector.
func NewCollector(source AnalyticsSource, st store.BenchmarkStore) *Collector {
	return &Collector{source: source, store: st}
}

// Collect gathers a snapshot of routing metrics.
func (c *Collector) Collect(ctx context.Context) (*MetricsSnapshot, error) {
	stats := c.source.Stats(ctx)

	snap := &MetricsSnapshot{
		TotalSelections:   stats.TotalSelections,
		Fallbacks:         stats.Fallbacks,
		FilterBypasses:    stats.FilterBypasses,
		CacheHitRate:      stats.CacheHitRate,
		AverageConfidence: stats.AverageConfidence,
		CollectedAt:       time.Now().UTC(),
	}
	if stats.TotalSelections > 0 {
		snap.FallbackRate = float64(stats.Fallbacks) / float64(stats.TotalSelections)
		snap.BypassRate = float64(stats.FilterBypasses) / float64(stats.TotalSelections)
	}

	if c.store != nil {
		entries, err := c.store.List(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "monitoring: list benchmarks")
		}
		snap.UnreliableBackends = unreliable(entries)
	}

	return snap, nil
}

func unreliable(entries []model.BenchmarkEntry) []string {
	var ids []string
	for i := range entries {
		e := &entries[i]
		if e.SampleCount > 0 && e.Reliability() < reliabilityFloor {
			ids = append(ids, e.BackendID)
		}
	}
	return ids
}
