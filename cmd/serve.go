package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/taskrouter/internal/model"
	"github.com/sells-group/taskrouter/internal/monitoring"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the routing HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if cfg.Monitoring.WebhookURL != "" {
			collector := monitoring.NewCollector(env.Router, env.Store)
			alerter := monitoring.NewAlerter(cfg.Monitoring)
			go monitoring.NewChecker(collector, alerter, cfg.Monitoring).Run(ctx)
		}

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(requestLogger)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))
		if cfg.Server.RateLimitPerSec > 0 {
			r.Use(rateLimiter(cfg.Server.RateLimitPerSec, cfg.Server.RateLimitBurst))
		}

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			hs := env.Router.Health(req.Context())
			status := http.StatusOK
			if hs.Status != "ok" {
				status = http.StatusServiceUnavailable
			}
			writeJSON(w, status, hs)
		})

		r.Get("/analytics", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, env.Router.Stats(req.Context()))
		})

		r.Post("/v1/route", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				model.RouteRequest
				Preferences map[string]string `json:"preferences,omitempty"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
				return
			}
			if body.Content == "" {
				http.Error(w, `{"error":"content is required"}`, http.StatusBadRequest)
				return
			}

			res := env.Router.Select(req.Context(), body.RouteRequest, body.Preferences)
			writeJSON(w, http.StatusOK, res)
		})

		r.Post("/v1/outcomes", func(w http.ResponseWriter, req *http.Request) {
			var outcome model.OutcomeRecord
			if err := json.NewDecoder(req.Body).Decode(&outcome); err != nil {
				http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
				return
			}
			if outcome.SelectedBackend == "" {
				http.Error(w, `{"error":"selected_backend is required"}`, http.StatusBadRequest)
				return
			}

			env.Router.RecordOutcome(outcome)
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// rateLimiter applies a global token bucket across all requests.
func rateLimiter(perSec float64, burst int) func(http.Handler) http.Handler {
	if burst <= 0 {
		burst = int(perSec) + 1
	}
	limiter := rate.NewLimiter(rate.Limit(perSec), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger logs each request with its duration and status.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
