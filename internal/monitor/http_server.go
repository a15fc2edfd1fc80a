package monitor

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/panelopt/panelopt/pkg/logger"
)

// HTTPServer serves the run status as JSON.
type HTTPServer struct {
	mux   *http.ServeMux
	store *RunStore
}

// NewHTTPServer registers the status routes. metrics, when non-nil, is
// mounted on /metrics.
func NewHTTPServer(store *RunStore, metrics http.Handler) *HTTPServer {
	s := &HTTPServer{
		mux:   http.NewServeMux(),
		store: store,
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/v1/run", s.handleRun)
	s.mux.HandleFunc("/v1/generations", s.handleGenerations)
	if metrics != nil {
		s.mux.Handle("/metrics", metrics)
	}
	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleRun handles GET /v1/run
func (s *HTTPServer) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"run": s.store.Snapshot()})
}

// handleGenerations handles GET /v1/generations?limit=N
func (s *HTTPServer) handleGenerations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"generations": s.store.Generations(limit)})
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{"error": message})
}
