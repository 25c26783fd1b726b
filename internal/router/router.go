// Package router composes the routing pipeline: analysis, admission,
// scoring, value analysis, caching, and outcome feedback.
package router

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/taskrouter/internal/admission"
	"github.com/sells-group/taskrouter/internal/analyzer"
	"github.com/sells-group/taskrouter/internal/catalog"
	"github.com/sells-group/taskrouter/internal/config"
	"github.com/sells-group/taskrouter/internal/learner"
	"github.com/sells-group/taskrouter/internal/model"
	"github.com/sells-group/taskrouter/internal/scorer"
	"github.com/sells-group/taskrouter/internal/selcache"
	"github.com/sells-group/taskrouter/internal/store"
	"github.com/sells-group/taskrouter/internal/value"
)

// maxAlternatives caps the ranked alternatives returned per decision.
const maxAlternatives = 3

// Router is the public routing API. Select never returns an error to the
// caller: every internal failure degrades to the fallback backend.
type Router struct {
	cfg       config.RouterConfig
	catalog   *catalog.Catalog
	analyzer  *analyzer.Analyzer
	scorer    *scorer.Scorer
	optimizer *value.Optimizer
	cache     *selcache.Cache
	store     store.BenchmarkStore
	learner   *learner.Learner

	baseWeights scorer.AxisWeights

	selections atomic.Int64
	fallbacks  atomic.Int64
	bypasses   atomic.Int64

	statsMu       sync.Mutex
	usage         map[string]int64
	confidenceSum float64

	now func() time.Time
}

// New wires the routing pipeline together.
func New(
	cfg config.RouterConfig,
	cat *catalog.Catalog,
	an *analyzer.Analyzer,
	sc *scorer.Scorer,
	opt *value.Optimizer,
	cache *selcache.Cache,
	st store.BenchmarkStore,
	ln *learner.Learner,
	baseWeights scorer.AxisWeights,
) *Router {
	return &Router{
		cfg:         cfg,
		catalog:     cat,
		analyzer:    an,
		scorer:      sc,
		optimizer:   opt,
		cache:       cache,
		store:       st,
		learner:     ln,
		baseWeights: baseWeights,
		usage:       make(map[string]int64),
		now:         time.Now,
	}
}

// Select routes a task to the best available backend. It honors the
// context deadline by returning the best result computed so far, and on
// any internal failure returns a fallback result rather than an error.
func (r *Router) Select(ctx context.Context, req model.RouteRequest, prefs map[string]string) model.SelectionResult {
	start := r.now()
	r.selections.Add(1)

	task := r.analyzer.Analyze(req)
	strategy := r.resolveStrategy(req, task)

	fp := selcache.Fingerprint(task, strategy, prefs)
	if cached, ok := r.cache.Get(fp); ok {
		cached.CacheHit = true
		r.recordSelection(cached)
		return cached
	}

	snap := r.catalog.Snapshot()
	if snap == nil || snap.Size() == 0 {
		res := r.fallbackResult(task, start, "catalog is empty")
		r.recordSelection(res)
		return res
	}

	candidates, bypassed, refused := r.admit(task, snap)
	if refused != "" {
		res := r.fallbackResult(task, start, refused)
		r.recordSelection(res)
		return res
	}

	ranked := r.scoreCandidates(ctx, task, candidates, strategy)
	if len(ranked) == 0 {
		res := r.fallbackResult(task, start, "no candidate could be scored")
		r.recordSelection(res)
		return res
	}

	res := r.buildResult(task, ranked, strategy, bypassed)
	res.SelectionTimeMS = r.now().Sub(start).Milliseconds()

	r.cache.Set(fp, res)
	r.recordSelection(res)

	zap.L().Info("router: backend selected",
		zap.String("task_id", task.TaskID),
		zap.String("backend_id", res.SelectedBackend),
		zap.String("strategy", string(strategy)),
		zap.Float64("score", res.Breakdown.Total),
		zap.Bool("filters_bypassed", bypassed),
	)
	return res
}

// admit runs the hard constraint filter. When every candidate fails and
// strict admission is off, the full candidate set is ranked anyway with the
// bypass marker set; with strict admission on, a refusal reason is returned.
func (r *Router) admit(task model.TaskRequest, snap *catalog.Snapshot) (candidates []*model.BackendProfile, bypassed bool, refused string) {
	res := admission.Filter(task, snap.Profiles())
	if !res.AllFailed {
		return res.Admitted, false, ""
	}

	if r.cfg.StrictAdmission {
		return nil, false, "no backend satisfies the hard constraints"
	}

	zap.L().Warn("router: all candidates failed admission, bypassing filters",
		zap.String("task_id", task.TaskID),
		zap.Int("rejected", len(res.Rejected)),
	)
	r.bypasses.Add(1)
	return snap.Profiles(), true, ""
}

type rankedCandidate struct {
	backend    *model.BackendProfile
	breakdown  model.ScoreBreakdown
	confidence float64
	cost       model.CostAnalysis
}

// scoreCandidates fans scoring out across candidates and collects whatever
// finished before the context deadline. A panic while scoring one candidate
// skips that candidate only.
func (r *Router) scoreCandidates(ctx context.Context, task model.TaskRequest, candidates []*model.BackendProfile, strategy model.Strategy) []rankedCandidate {
	weights := r.baseWeights.ForStrategy(strategy)

	var mu sync.Mutex
	ranked := make([]rankedCandidate, 0, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	if r.cfg.MaxConcurrentScoring > 0 {
		g.SetLimit(r.cfg.MaxConcurrentScoring)
	}

	for _, b := range candidates {
		b := b
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			defer func() {
				if rec := recover(); rec != nil {
					zap.L().Warn("router: scoring candidate failed, skipping",
						zap.String("backend_id", b.ID),
						zap.Any("panic", rec),
					)
				}
			}()

			bd, conf := r.scorer.Score(gctx, task, b, weights)
			ca := r.optimizer.Analyze(task, b, r.estimateQuality(task, b, bd))

			mu.Lock()
			ranked = append(ranked, rankedCandidate{backend: b, breakdown: bd, confidence: conf, cost: ca})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(ranked, func(i, j int) bool {
		return scorer.Better(ranked[i].backend.ID, ranked[i].breakdown, ranked[j].backend.ID, ranked[j].breakdown)
	})
	return ranked
}

// estimateQuality blends the capability axis with the learned predictor
// once one is trained.
func (r *Router) estimateQuality(task model.TaskRequest, b *model.BackendProfile, bd model.ScoreBreakdown) float64 {
	est := bd.Capability
	if r.learner == nil {
		return est
	}
	if pred := r.learner.Predictor(); pred != nil {
		q, _ := pred.Predict(b.ID, task.TaskType, len(task.RequiredCapabilities), b.AvgLatencyMS)
		est = (est + q) / 2
	}
	return est
}

func (r *Router) buildResult(task model.TaskRequest, ranked []rankedCandidate, strategy model.Strategy, bypassed bool) model.SelectionResult {
	best := ranked[0]

	alts := make([]model.Alternative, 0, maxAlternatives)
	for i := 1; i < len(ranked) && i <= maxAlternatives; i++ {
		alts = append(alts, model.Alternative{
			ID:    ranked[i].backend.ID,
			Score: ranked[i].breakdown.Total,
		})
	}

	cost := best.cost
	return model.SelectionResult{
		SelectedBackend:    best.backend.ID,
		Breakdown:          best.breakdown,
		Rationale:          r.explainChoice(task, best, strategy, bypassed),
		Alternatives:       alts,
		EstimatedCost:      cost.DirectCost,
		EstimatedLatencyMS: best.backend.AvgLatencyMS,
		Confidence:         best.confidence,
		FiltersBypassed:    bypassed,
		Cost:               &cost,
	}
}

// explainChoice builds the human-readable rationale for a decision.
func (r *Router) explainChoice(task model.TaskRequest, best rankedCandidate, strategy model.Strategy, bypassed bool) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("selected %s (score %.2f) for capabilities %s",
		best.backend.ID, best.breakdown.Total, joinCapabilities(task.RequiredCapabilities)))

	bd := best.breakdown
	switch {
	case bd.Capability >= 8:
		parts = append(parts, "strong capability match")
	case bd.Capability >= 5:
		parts = append(parts, "adequate capability match")
	default:
		parts = append(parts, "weak capability match")
	}
	if bd.Cost >= 9 {
		parts = append(parts, "minimal cost")
	}
	if bd.Latency >= 8 {
		parts = append(parts, "fast response expected")
	}
	if strategy != model.StrategyAuto {
		parts = append(parts, fmt.Sprintf("strategy=%s", strategy))
	}
	parts = append(parts, fmt.Sprintf("efficiency=%s", best.cost.Efficiency))
	if bypassed {
		parts = append(parts, "filters_bypassed: no candidate satisfied all hard constraints")
	}
	return strings.Join(parts, "; ")
}

func joinCapabilities(caps []model.Capability) string {
	strs := make([]string, len(caps))
	for i, c := range caps {
		strs[i] = string(c)
	}
	return strings.Join(strs, ",")
}

// fallbackResult is returned whenever the pipeline cannot produce a ranked
// decision. It always names a backend and carries confidence 0.5.
func (r *Router) fallbackResult(task model.TaskRequest, start time.Time, reason string) model.SelectionResult {
	r.fallbacks.Add(1)

	backendID := r.cfg.FallbackBackend
	if backendID == "" {
		if snap := r.catalog.Snapshot(); snap != nil && snap.Size() > 0 {
			ids := make([]string, 0, snap.Size())
			for _, b := range snap.Backends {
				ids = append(ids, b.ID)
			}
			sort.Strings(ids)
			backendID = ids[0]
		}
	}

	zap.L().Warn("router: falling back",
		zap.String("task_id", task.TaskID),
		zap.String("backend_id", backendID),
		zap.String("reason", reason),
	)

	return model.SelectionResult{
		SelectedBackend: backendID,
		Rationale:       fmt.Sprintf("fallback: %s", reason),
		Confidence:      0.5,
		SelectionTimeMS: r.now().Sub(start).Milliseconds(),
	}
}

// resolveStrategy maps the request's declared strategy, inferring one from
// the task when the caller asked for auto.
func (r *Router) resolveStrategy(req model.RouteRequest, task model.TaskRequest) model.Strategy {
	s := model.ParseStrategy(req.Strategy)
	if s != model.StrategyAuto {
		return s
	}

	content := strings.ToLower(req.Content)
	switch {
	case containsAny(content, "cheap", "budget", "low cost", "cost-sensitive", "inexpensive"):
		return model.StrategyCostFirst
	case task.Constraints.Urgency >= 8 || containsAny(content, "urgent", "asap", "immediately", "real-time"):
		return model.StrategySpeedFirst
	case containsAny(content, "highest quality", "best possible", "thorough", "meticulous"):
		return model.StrategyQualityFirst
	case containsAny(content, "roi", "best value", "cost effective"):
		return model.StrategyROIFocused
	case task.Domain != "":
		return model.StrategyDomainSpecialized
	default:
		return model.StrategyAuto
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// RecordOutcome accepts a post-execution outcome. It returns immediately;
// the learner processes the record asynchronously.
func (r *Router) RecordOutcome(outcome model.OutcomeRecord) {
	if outcome.SelectedBackend == "" {
		zap.L().Warn("router: dropping outcome without backend id",
			zap.String("task_id", outcome.TaskID),
		)
		return
	}
	if outcome.Timestamp.IsZero() {
		outcome.Timestamp = r.now().UTC()
	}
	r.learner.Submit(outcome)
}

func (r *Router) recordSelection(res model.SelectionResult) {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	if res.SelectedBackend != "" {
		r.usage[res.SelectedBackend]++
	}
	r.confidenceSum += res.Confidence
}
