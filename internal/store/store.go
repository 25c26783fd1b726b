// Package store persists per-backend reliability and benchmark statistics.
package store

import (
	"context"
	"math"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/taskrouter/internal/config"
	"github.com/sells-group/taskrouter/internal/model"
)

// emaAlpha is the smoothing factor for running error averages.
const emaAlpha = 0.1

// BenchmarkStore defines the persistence interface for backend benchmark
// entries. Reads must tolerate cold-start: a missing entry returns
// (nil, nil), never an error.
type BenchmarkStore interface {
	// Get returns the entry for a backend, or nil when none exists yet.
	Get(ctx context.Context, backendID string) (*model.BenchmarkEntry, error)
	// Record folds an outcome into the backend's entry and returns the
	// updated entry. Concurrent calls for the same backend are serialized.
	Record(ctx context.Context, outcome model.OutcomeRecord) (*model.BenchmarkEntry, error)
	// List returns all entries, ordered by backend id.
	List(ctx context.Context) ([]model.BenchmarkEntry, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a BenchmarkStore for the configured driver.
func Open(ctx context.Context, cfg config.StoreConfig) (BenchmarkStore, error) {
	switch cfg.Driver {
	case "memory", "":
		return NewMemory(), nil
	case "sqlite":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

// applyOutcome folds an outcome into an entry using exponential moving
// averages, then recomputes the derived scores. The first sample seeds the
// averages directly.
func applyOutcome(e *model.BenchmarkEntry, o model.OutcomeRecord) {
	first := e.SampleCount == 0

	e.TotalTasks++
	if o.TaskSuccess {
		e.SuccessfulTasks++
	}

	qualityErr := math.Abs(o.ActualQuality - o.EstimatedQuality)
	costErr := math.Abs(o.ActualCost - o.EstimatedCost)
	latencyErr := math.Abs(float64(o.ActualLatencyMS - o.EstimatedLatencyMS))

	if first {
		e.AvgQuality = o.ActualQuality
		e.AvgQualityError = qualityErr
		e.AvgCostError = costErr
		e.AvgLatencyError = latencyErr
	} else {
		e.AvgQuality = ema(e.AvgQuality, o.ActualQuality)
		e.AvgQualityError = ema(e.AvgQualityError, qualityErr)
		e.AvgCostError = ema(e.AvgCostError, costErr)
		e.AvgLatencyError = ema(e.AvgLatencyError, latencyErr)
	}

	e.SampleCount++
	e.UpdatedAt = o.Timestamp
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now().UTC()
	}

	successRate := float64(e.SuccessfulTasks) / float64(e.TotalTasks)
	e.ReliabilityScore = math.Min(10, successRate*10+e.AvgQuality/10)
	e.PredictionConfidence = predictionConfidence(e.AvgQualityError, e.SampleCount)
}

func ema(prev, sample float64) float64 {
	return (1-emaAlpha)*prev + emaAlpha*sample
}

// predictionConfidence maps the quality-error trend to [0,1], damped toward
// a neutral 0.5 while the sample count is small.
func predictionConfidence(avgQualityError float64, samples int64) float64 {
	base := math.Max(0, math.Min(1, 1-avgQualityError/10))
	damp := float64(samples) / float64(samples+10)
	return base*damp + 0.5*(1-damp)
}
