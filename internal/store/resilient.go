package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/taskrouter/internal/model"
	"github.com/sells-group/taskrouter/internal/resilience"
)

// ResilientStore decorates a BenchmarkStore with retries and a circuit
// breaker. Read failures degrade to cold-start defaults instead of
// propagating, so an unavailable store never blocks routing.
type ResilientStore struct {
	inner   BenchmarkStore
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// NewResilient wraps the given store with default retry and breaker settings.
func NewResilient(inner BenchmarkStore) *ResilientStore {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("benchmark-store", "access")
	return &ResilientStore{
		inner: inner,
		retry: retry,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			OnStateChange: func(from, to resilience.CircuitState) {
				zap.L().Warn("store: circuit state change",
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		}),
	}
}

// Get reads through the breaker. Failures log and return a nil entry, which
// callers resolve to cold-start defaults.
func (s *ResilientStore) Get(ctx context.Context, backendID string) (*model.BenchmarkEntry, error) {
	e, err := resilience.ExecuteVal(ctx, s.breaker, func(ctx context.Context) (*model.BenchmarkEntry, error) {
		return resilience.DoVal(ctx, s.retry, func(ctx context.Context) (*model.BenchmarkEntry, error) {
			return s.inner.Get(ctx, backendID)
		})
	})
	if err != nil {
		zap.L().Warn("store: get degraded to defaults",
			zap.String("backend_id", backendID),
			zap.Error(err),
		)
		return nil, nil
	}
	return e, nil
}

// Record writes through the breaker. Errors are returned so the learner can
// log and continue; outcome loss is acceptable, blocking is not.
func (s *ResilientStore) Record(ctx context.Context, outcome model.OutcomeRecord) (*model.BenchmarkEntry, error) {
	return resilience.ExecuteVal(ctx, s.breaker, func(ctx context.Context) (*model.BenchmarkEntry, error) {
		return resilience.DoVal(ctx, s.retry, func(ctx context.Context) (*model.BenchmarkEntry, error) {
			return s.inner.Record(ctx, outcome)
		})
	})
}

func (s *ResilientStore) List(ctx context.Context) ([]model.BenchmarkEntry, error) {
	return resilience.ExecuteVal(ctx, s.breaker, func(ctx context.Context) ([]model.BenchmarkEntry, error) {
		return resilience.DoVal(ctx, s.retry, func(ctx context.Context) ([]model.BenchmarkEntry, error) {
			return s.inner.List(ctx)
		})
	})
}

func (s *ResilientStore) Migrate(ctx context.Context) error {
	return s.inner.Migrate(ctx)
}

func (s *ResilientStore) Close() error {
	return s.inner.Close()
}

// ReliabilityReader adapts a BenchmarkStore to the scorer's read interface,
// resolving missing entries and errors to cold-start defaults.
type ReliabilityReader struct {
	Store BenchmarkStore
}

// Reliability returns the backend's learned reliability score or the default.
func (r ReliabilityReader) Reliability(ctx context.Context, backendID string) float64 {
	e, err := r.Store.Get(ctx, backendID)
	if err != nil {
		zap.L().Warn("store: reliability read failed",
			zap.String("backend_id", backendID),
			zap.Error(err),
		)
		return model.DefaultReliabilityScore
	}
	return e.Reliability()
}
