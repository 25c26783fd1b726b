package router

import (
	"context"
	"time"

	"github.com/sells-group/taskrouter/internal/model"
)

// HealthStatus is the read-only health view of the routing engine.
type HealthStatus struct {
	Status           string    `json:"status"`
	CatalogSize      int       `json:"catalog_size"`
	CatalogLoadedAt  time.Time `json:"catalog_loaded_at"`
	CacheHitRate     float64   `json:"cache_hit_rate"`
	OutcomeQueueLen  int       `json:"outcome_queue_len"`
	StoreReachable   bool      `json:"store_reachable"`
	FallbackBackend  string    `json:"fallback_backend"`
	LastRetrainTime  time.Time `json:"last_retrain_time,omitempty"`
	LastRetrainError string    `json:"last_retrain_error,omitempty"`
}

// Analytics is the read-only usage view of the routing engine.
type Analytics struct {
	TotalSelections   int64                  `json:"total_selections"`
	Fallbacks         int64                  `json:"fallbacks"`
	FilterBypasses    int64                  `json:"filter_bypasses"`
	CacheHitRate      float64                `json:"cache_hit_rate"`
	AverageConfidence float64                `json:"average_confidence"`
	UsageByBackend    map[string]int64       `json:"usage_by_backend"`
	Benchmarks        []model.BenchmarkEntry `json:"benchmarks,omitempty"`
	LastRetrainTime   time.Time              `json:"last_retrain_time,omitempty"`
}

// Health reports the current status of the engine's moving parts.
func (r *Router) Health(ctx context.Context) HealthStatus {
	hs := HealthStatus{
		Status:          "ok",
		CacheHitRate:    r.cache.HitRate(),
		FallbackBackend: r.cfg.FallbackBackend,
	}

	if snap := r.catalog.Snapshot(); snap != nil {
		hs.CatalogSize = snap.Size()
		hs.CatalogLoadedAt = snap.LoadedAt
	}
	if hs.CatalogSize == 0 {
		hs.Status = "degraded"
	}

	if _, err := r.store.List(ctx); err != nil {
		hs.StoreReachable = false
		hs.Status = "degraded"
	} else {
		hs.StoreReachable = true
	}

	if r.learner != nil {
		hs.OutcomeQueueLen = r.learner.QueueDepth()
		hs.LastRetrainTime = r.learner.LastRetrain()
		hs.LastRetrainError = r.learner.LastRetrainError()
	}
	return hs
}

// Stats returns usage analytics. Benchmark entries are included when the
// store read succeeds; a store failure degrades to counters only.
func (r *Router) Stats(ctx context.Context) Analytics {
	r.statsMu.Lock()
	usage := make(map[string]int64, len(r.usage))
	for id, n := range r.usage {
		usage[id] = n
	}
	confidenceSum := r.confidenceSum
	r.statsMu.Unlock()

	a := Analytics{
		TotalSelections: r.selections.Load(),
		Fallbacks:       r.fallbacks.Load(),
		FilterBypasses:  r.bypasses.Load(),
		CacheHitRate:    r.cache.HitRate(),
		UsageByBackend:  usage,
	}
	if a.TotalSelections > 0 {
		a.AverageConfidence = confidenceSum / float64(a.TotalSelections)
	}
	if entries, err := r.store.List(ctx); err == nil {
		a.Benchmarks = entries
	}
	if r.learner != nil {
		a.LastRetrainTime = r.learner.LastRetrain()
	}
	return a
}
