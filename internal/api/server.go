// Package api exposes the read-only status HTTP interface for the batch
// runner: the current progress snapshot, the detailed failure record, and
// Prometheus metrics. It exists for human monitoring during long batches and
// never mutates run state.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/openheritage/tilebatch/internal/journal"
)

// SnapshotReader loads the latest progress snapshot.
type SnapshotReader interface {
	Read() (journal.Snapshot, error)
}

// FailureLister returns the detailed failure record entries keyed by URL.
type FailureLister interface {
	All() map[string]journal.FailureRecord
	Stats() journal.Stats
}

// Server wires HTTP handlers to the run artifacts.
type Server struct {
	router    chi.Router
	snapshots SnapshotReader
	failures  FailureLister
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(snapshots SnapshotReader, failures FailureLister, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		snapshots: snapshots,
		failures:  failures,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(s.recoverMiddleware)
	r.Use(s.loggingMiddleware)

	r.Get("/healthz", s.healthz)
	r.Get("/progress", s.getProgress)
	r.Get("/failures", s.getFailures)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getProgress handles GET /progress. It returns the latest snapshot, which
// is the zero snapshot until the first item completes.
func (s *Server) getProgress(w http.ResponseWriter, _ *http.Request) {
	if s.snapshots == nil {
		writeError(w, http.StatusServiceUnavailable, "progress snapshot unavailable")
		return
	}
	snap, err := s.snapshots.Read()
	if err != nil {
		s.logger.Error("read progress snapshot failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read progress snapshot")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// getFailures handles GET /failures. It returns
// {"stats": {...}, "failures": {url: record, ...}}.
func (s *Server) getFailures(w http.ResponseWriter, _ *http.Request) {
	if s.failures == nil {
		writeError(w, http.StatusServiceUnavailable, "failure record unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"stats":    s.failures.Stats(),
		"failures": s.failures.All(),
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("handler panicked", zap.Any("panic", rec), zap.String("path", r.URL.Path))
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload) //nolint:errcheck // response already committed
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
