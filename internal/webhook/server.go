// Package webhook receives row-inserted notifications over HTTP.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"golang.org/x/sync/semaphore"

	"github.com/user/forumbot/internal/metrics"
	"github.com/user/forumbot/internal/runtime"
	"github.com/user/forumbot/internal/trigger"
	"github.com/user/forumbot/internal/types"
)

const maxBodyBytes = 1 << 20

// Processor runs one trigger event.
type Processor interface {
	Process(ctx context.Context, ev *trigger.Event) (*runtime.Result, error)
}

// ExecutionReader serves the recent execution entries for the debug API.
type ExecutionReader interface {
	Get(ctx context.Context, id types.TriggerID) (*types.ExecutionEntry, error)
	Recent(ctx context.Context, limit int64) ([]types.TriggerID, error)
}

// Server is a lightweight HTTP handler for webhook endpoints.
type Server struct {
	processor  Processor
	executions ExecutionReader
	metrics    *metrics.Metrics
	sem        *semaphore.Weighted
	mux        *http.ServeMux
}

// NewServer creates a Server that runs at most maxConcurrent invocations at
// once. executions and m may be nil.
func NewServer(processor Processor, maxConcurrent int, executions ExecutionReader, m *metrics.Metrics) *Server {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	s := &Server{
		processor:  processor,
		executions: executions,
		metrics:    m,
		sem:        semaphore.NewWeighted(int64(maxConcurrent)),
		mux:        http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /webhook", s.handleTrigger)
	s.mux.HandleFunc("GET /api/executions", s.handleAPIRecent)
	s.mux.HandleFunc("GET /api/executions/{id}", s.handleAPIExecution)
	if m != nil {
		s.mux.Handle("GET /metrics", m.Handler())
	}
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}
	ev, err := trigger.DecodeEvent(data)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if err := s.sem.Acquire(r.Context(), 1); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "request cancelled"})
		return
	}
	defer s.sem.Release(1)

	if s.metrics != nil {
		s.metrics.InFlight.Inc()
		defer s.metrics.InFlight.Dec()
	}

	res, err := s.processor.Process(r.Context(), ev)
	if err != nil {
		var ce *runtime.ConfigError
		if errors.As(err, &ce) {
			slog.Error("webhook rejected: configuration", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "configuration error"})
			return
		}
		slog.Error("webhook processing failed", "table", ev.Table, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	body := map[string]string{"message": res.Message}
	if res.Reason != "" {
		body["reason"] = res.Reason
	}
	if res.Action != "" {
		body["action"] = res.Action
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleAPIRecent(w http.ResponseWriter, r *http.Request) {
	if s.executions == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "debug API not configured"})
		return
	}

	limit := int64(50)
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.ParseInt(q, 10, 64); err == nil && n > 0 {
			limit = n
		}
	}

	ids, err := s.executions.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("list executions failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if ids == nil {
		ids = []types.TriggerID{}
	}
	writeJSON(w, http.StatusOK, ids)
}

func (s *Server) handleAPIExecution(w http.ResponseWriter, r *http.Request) {
	if s.executions == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "debug API not configured"})
		return
	}

	entry, err := s.executions.Get(r.Context(), types.TriggerID(r.PathValue("id")))
	if errors.Is(err, types.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	if err != nil {
		slog.Error("get execution failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
