// Package learner consumes task outcomes, nudges capability weights, and
// periodically retrains quality/cost predictors.
package learner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/taskrouter/internal/config"
	"github.com/sells-group/taskrouter/internal/model"
	"github.com/sells-group/taskrouter/internal/store"
)

// Learner is the online feedback loop. Submit is safe for concurrent
// callers and never blocks; processing happens on the Run goroutine.
type Learner struct {
	cfg   config.LearnerConfig
	store store.BenchmarkStore

	mu       sync.RWMutex
	weights  map[model.Capability]float64
	original map[model.Capability]float64

	queueMu sync.Mutex
	queue   []model.OutcomeRecord

	notify chan struct{}

	samples   []sample
	samplesMu sync.Mutex
	seen      atomic.Int64

	predictor    atomic.Pointer[Predictor]
	retrainGate  *rate.Limiter
	retraining   atomic.Bool
	lastRetrain  atomic.Int64
	lastRetrainE atomic.Value // string
}

// New creates a Learner seeded with the default capability weights merged
// with any configured overrides.
func New(cfg config.LearnerConfig, overrides map[string]float64, st store.BenchmarkStore) *Learner {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.AdjustmentRate <= 0 {
		cfg.AdjustmentRate = 0.05
	}
	if cfg.RetrainBatchSize <= 0 {
		cfg.RetrainBatchSize = 50
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = 50
	}
	interval := time.Duration(cfg.RetrainIntervalSecs) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}

	weights := model.DefaultCapabilityWeights()
	for name, w := range overrides {
		weights[model.Capability(name)] = w
	}
	original := make(map[model.Capability]float64, len(weights))
	for c, w := range weights {
		original[c] = w
	}

	return &Learner{
		cfg:         cfg,
		store:       st,
		weights:     weights,
		original:    original,
		notify:      make(chan struct{}, 1),
		retrainGate: rate.NewLimiter(rate.Every(interval), 1),
	}
}

// CapabilityWeight returns the current global weight for a capability,
// implementing the scorer's WeightSource.
func (l *Learner) CapabilityWeight(c model.Capability) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if w, ok := l.weights[c]; ok {
		return w
	}
	return 1.0
}

// Weights returns a copy of the current weight table.
func (l *Learner) Weights() map[model.Capability]float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[model.Capability]float64, len(l.weights))
	for c, w := range l.weights {
		out[c] = w
	}
	return out
}

// Submit enqueues an outcome for asynchronous processing. When the queue is
// full the oldest record is dropped with a warning rather than blocking.
func (l *Learner) Submit(outcome model.OutcomeRecord) {
	l.queueMu.Lock()
	if len(l.queue) >= l.cfg.QueueSize {
		dropped := l.queue[0]
		l.queue = l.queue[1:]
		zap.L().Warn("learner: outcome queue full, dropping oldest",
			zap.String("dropped_task_id", dropped.TaskID),
		)
	}
	l.queue = append(l.queue, outcome)
	l.queueMu.Unlock()

	select {
	case l.notify <- struct{}{}:
	default:
	}
}

// Run processes queued outcomes until the context is cancelled. Remaining
// queued records are drained before returning.
func (l *Learner) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			l.drain(context.Background())
			return
		case <-l.notify:
			l.drain(ctx)
		}
	}
}

func (l *Learner) drain(ctx context.Context) {
	for {
		l.queueMu.Lock()
		if len(l.queue) == 0 {
			l.queueMu.Unlock()
			return
		}
		outcome := l.queue[0]
		l.queue = l.queue[1:]
		l.queueMu.Unlock()

		l.Process(ctx, outcome)
	}
}

// Process applies one outcome synchronously: benchmark update, weight
// nudge, sample collection, and a retrain check.
func (l *Learner) Process(ctx context.Context, outcome model.OutcomeRecord) {
	if _, err := l.store.Record(ctx, outcome); err != nil {
		zap.L().Warn("learner: benchmark update failed",
			zap.String("backend_id", outcome.SelectedBackend),
			zap.Error(err),
		)
	}

	l.nudgeWeights(outcome)
	l.collectSample(outcome)
	l.maybeRetrain()
}

// nudgeWeights adjusts the global weight of each capability involved in the
// task. Underperformance pulls the weight down by the full adjustment;
// overperformance pushes it up by half, so weights drift conservatively.
// Both qualities must be populated: a missing estimate says nothing about
// prediction error.
func (l *Learner) nudgeWeights(outcome model.OutcomeRecord) {
	if outcome.EstimatedQuality <= 0 || outcome.ActualQuality <= 0 {
		return
	}
	diff := outcome.ActualQuality - outcome.EstimatedQuality
	if diff == 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range outcome.RequiredCapabilities {
		cur, ok := l.weights[c]
		if !ok {
			cur = 1.0
		}
		orig, ok := l.original[c]
		if !ok {
			orig = 1.0
			l.original[c] = orig
		}

		var next float64
		if diff < 0 {
			next = cur - (-diff)*l.cfg.AdjustmentRate
		} else {
			next = cur + diff*l.cfg.AdjustmentRate/2
		}

		if next < 0 {
			next = 0
		}
		if max := orig * 3; next > max {
			next = max
		}
		l.weights[c] = next
	}
}

func (l *Learner) collectSample(outcome model.OutcomeRecord) {
	if outcome.EstimatedQuality <= 0 || outcome.ActualQuality <= 0 {
		return
	}
	l.samplesMu.Lock()
	l.samples = append(l.samples, newSample(outcome))
	// Keep a bounded window of recent samples.
	if len(l.samples) > 10*l.cfg.RetrainBatchSize {
		l.samples = l.samples[len(l.samples)-10*l.cfg.RetrainBatchSize:]
	}
	l.samplesMu.Unlock()
	l.seen.Add(1)
}

// maybeRetrain kicks off background retraining when enough new samples have
// accumulated. At most one retrain runs at a time and the rate limiter caps
// retrain frequency.
func (l *Learner) maybeRetrain() {
	seen := l.seen.Load()
	if seen < int64(l.cfg.MinSamples) {
		return
	}
	if seen%int64(l.cfg.RetrainBatchSize) != 0 {
		return
	}
	if !l.retrainGate.Allow() {
		return
	}
	if !l.retraining.CompareAndSwap(false, true) {
		return
	}

	l.samplesMu.Lock()
	snapshot := make([]sample, len(l.samples))
	copy(snapshot, l.samples)
	l.samplesMu.Unlock()

	go func() {
		defer l.retraining.Store(false)
		l.retrain(snapshot)
	}()
}

func (l *Learner) retrain(samples []sample) {
	p, err := Train(samples)
	if err != nil {
		l.lastRetrainE.Store(err.Error())
		zap.L().Warn("learner: retraining failed, keeping previous predictor", zap.Error(err))
		return
	}

	l.predictor.Store(p)
	l.lastRetrain.Store(time.Now().Unix())
	zap.L().Info("learner: predictor retrained",
		zap.Int("samples", len(samples)),
		zap.Float64("quality_mse", p.QualityMSE),
		zap.Float64("cost_mse", p.CostMSE),
	)
}

// Predictor returns the current predictor, or nil before the first
// successful retrain.
func (l *Learner) Predictor() *Predictor {
	return l.predictor.Load()
}

// LastRetrain returns the time of the last successful retrain, zero if none.
func (l *Learner) LastRetrain() time.Time {
	ts := l.lastRetrain.Load()
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0)
}

// LastRetrainError returns the message of the most recent failed retrain,
// empty if none.
func (l *Learner) LastRetrainError() string {
	if v := l.lastRetrainE.Load(); v != nil {
		return v.(string)
	}
	return ""
}

// QueueDepth reports the number of outcomes awaiting processing.
func (l *Learner) QueueDepth() int {
	l.queueMu.Lock()
	defer l.queueMu.Unlock()
	return len(l.queue)
}
