package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/taskrouter/internal/analyzer"
	"github.com/sells-group/taskrouter/internal/catalog"
	"github.com/sells-group/taskrouter/internal/learner"
	"github.com/sells-group/taskrouter/internal/router"
	"github.com/sells-group/taskrouter/internal/scorer"
	"github.com/sells-group/taskrouter/internal/selcache"
	"github.com/sells-group/taskrouter/internal/store"
	"github.com/sells-group/taskrouter/internal/value"
	"github.com/sells-group/taskrouter/pkg/execute"
)

// engine bundles the wired routing pipeline for CLI commands and the server.
type engine struct {
	Catalog *catalog.Catalog
	Store   store.BenchmarkStore
	Learner *learner.Learner
	Router  *router.Router

	cancel context.CancelFunc
	done   chan struct{}
}

// initEngine wires the pipeline from config and starts the background
// learner. Close drains the learner queue before returning.
func initEngine(ctx context.Context) (*engine, error) {
	cat := catalog.New(cfg.Catalog.Path)
	if err := cat.Load(); err != nil {
		return nil, eris.Wrap(err, "init catalog")
	}

	base, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	st := store.NewResilient(base)
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	ln := learner.New(cfg.Learner, cfg.Scoring.CapabilityWeights, st)
	sc := scorer.New(ln, store.ReliabilityReader{Store: st})

	rt := router.New(
		cfg.Router,
		cat,
		analyzer.New(analyzer.NewKeywordInferencer(), cfg.Defaults),
		sc,
		value.New(cfg.Value),
		selcache.New(time.Duration(cfg.Cache.TTLSecs)*time.Second, cfg.Cache.MaxEntries),
		st,
		ln,
		scorer.WeightsFromConfig(cfg.Scoring),
	)

	bgCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ln.Run(bgCtx)
		close(done)
	}()

	if cfg.Catalog.ReloadIntervalSecs > 0 {
		go cat.RunReloader(bgCtx, time.Duration(cfg.Catalog.ReloadIntervalSecs)*time.Second)
	}

	zap.L().Info("engine initialized",
		zap.Int("backends", cat.Snapshot().Size()),
		zap.String("store_driver", cfg.Store.Driver),
	)

	return &engine{
		Catalog: cat,
		Store:   st,
		Learner: ln,
		Router:  rt,
		cancel:  cancel,
		done:    done,
	}, nil
}

// Executor builds the configured execution adapter over catalog pricing.
func (e *engine) Executor() (execute.Executor, error) {
	rates := func(backendID string) (float64, float64, bool) {
		b := e.Catalog.Snapshot().Get(backendID)
		if b == nil {
			return 0, 0, false
		}
		return b.CostPerUnitIn, b.CostPerUnitOut, true
	}
	return execute.New(cfg.Execute, rates)
}

// Close stops background work, drains pending outcomes, and closes the store.
func (e *engine) Close() {
	e.cancel()
	<-e.done
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("engine: store close failed", zap.Error(err))
	}
}
