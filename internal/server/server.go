// Package server exposes the hook ingestion endpoint plus health and metrics
// servers. Hook signature verification happens upstream of this service.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nholik/registry-sentinel/internal/coordinator"
	"github.com/nholik/registry-sentinel/internal/healthcheck"
	"github.com/nholik/registry-sentinel/internal/jobs"
	"github.com/nholik/registry-sentinel/internal/metrics"
	"github.com/nholik/registry-sentinel/internal/registry"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 5 * time.Second

// HookHandler processes registry publish notifications.
type HookHandler struct {
	logger   zerolog.Logger
	pipeline *coordinator.Pipeline
	sink     jobs.Sink
	tracker  *healthcheck.Tracker
}

// NewHookHandler constructs the ingestion handler.
func NewHookHandler(logger zerolog.Logger, pipeline *coordinator.Pipeline, sink jobs.Sink, tracker *healthcheck.Tracker) *HookHandler {
	return &HookHandler{logger: logger, pipeline: pipeline, sink: sink, tracker: tracker}
}

// ServeHTTP decodes the notification, runs the pipeline, enqueues the jobs,
// and responds 202 with the emitted count. Pipeline failures respond 500 so
// the registry redelivers the hook.
func (h *HookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	notification, err := registry.Decode(r.Body)
	if err != nil {
		h.logger.Warn().Err(err).Msg("rejecting malformed notification")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	started := time.Now()
	emitted, err := h.pipeline.Process(r.Context(), notification)
	if err != nil {
		h.logger.Error().Err(err).Str("dependency", notification.Dependency).Msg("notification processing failed")
		http.Error(w, "processing failed", http.StatusInternalServerError)
		return
	}

	if h.sink != nil && len(emitted) > 0 {
		if err := h.sink.Enqueue(r.Context(), emitted); err != nil {
			h.logger.Error().Err(err).Str("dependency", notification.Dependency).Msg("job enqueue failed")
			http.Error(w, "enqueue failed", http.StatusInternalServerError)
			return
		}
	}

	h.tracker.RecordProcessed(time.Since(started), len(emitted))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{"jobs": len(emitted)})
}

// Start launches hook, health, and metrics HTTP servers as configured.
func Start(ctx context.Context, logger zerolog.Logger, hook *HookHandler, tracker *healthcheck.Tracker, metricsCollector *metrics.Metrics, hookPort, healthPort, metricsPort int) {
	if hookPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/hooks/registry", hook)
		startServer(ctx, logger, mux, hookPort, "hook")
	}

	if healthPort > 0 && metricsPort > 0 && healthPort == metricsPort {
		mux := http.NewServeMux()
		registerHealthRoutes(mux, tracker)
		registerMetricsRoute(mux, metricsCollector)
		startServer(ctx, logger, mux, healthPort, "health/metrics")
		return
	}

	if healthPort > 0 {
		mux := http.NewServeMux()
		registerHealthRoutes(mux, tracker)
		startServer(ctx, logger, mux, healthPort, "health")
	}

	if metricsPort > 0 {
		mux := http.NewServeMux()
		registerMetricsRoute(mux, metricsCollector)
		startServer(ctx, logger, mux, metricsPort, "metrics")
	}
}

func registerHealthRoutes(mux *http.ServeMux, tracker *healthcheck.Tracker) {
	mux.HandleFunc("/healthz", healthcheck.HealthHandler(tracker))
	mux.HandleFunc("/readyz", healthcheck.ReadyHandler(tracker))
}

func registerMetricsRoute(mux *http.ServeMux, metricsCollector *metrics.Metrics) {
	if metricsCollector == nil {
		return
	}
	mux.Handle("/metrics", metricsCollector.Handler())
}

func startServer(ctx context.Context, logger zerolog.Logger, handler http.Handler, port int, label string) {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("server", label).Int("port", port).Msg("http server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("server", label).Int("port", port).Msg("http server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Str("server", label).Int("port", port).Msg("http server shutdown failed")
		}
	}()
}
