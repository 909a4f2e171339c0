// Package http exposes the daemons' operational endpoints: liveness,
// readiness, Prometheus metrics, and a status page backed by the
// operations log.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aeroclimate/takeoff-humidity/internal/domain"
)

// ReadinessChecker reports whether the pipeline behind this server has
// completed a successful run yet.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// MilestoneReader serves the recent slice of the operations log.
type MilestoneReader interface {
	RecentMilestones(ctx context.Context, limit uint64) ([]domain.MilestoneEvent, error)
}

// statusLimit bounds how much of the operations log /statusz returns.
const statusLimit = 20

// Server exposes /healthz, /readyz, /metrics, and /statusz.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer builds the operational HTTP server for one daemon.
func NewServer(addr string, ready ReadinessChecker, log MilestoneReader, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.HandleFunc("GET /statusz", s.handleStatus(log))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

type statusMilestone struct {
	ID       int64     `json:"id"`
	Kind     string    `json:"kind"`
	Detail   string    `json:"detail,omitempty"`
	LoadDate time.Time `json:"loaddate"`
}

func (s *Server) handleStatus(log MilestoneReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		events, err := log.RecentMilestones(ctx, statusLimit)
		if err != nil {
			s.logger.Error("status read failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "operations log unavailable",
			})
			return
		}

		out := make([]statusMilestone, 0, len(events))
		for _, ev := range events {
			out = append(out, statusMilestone{
				ID:       ev.ID,
				Kind:     string(ev.Kind),
				Detail:   ev.Detail,
				LoadDate: ev.LoadDate,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"milestones": out})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort health response
}
