package httpapi

import (
	"context"
	"net/http"
	"time"
)

const readyTimeout = 2 * time.Second

type check struct {
	Status   string `json:"status"`
	Provider string `json:"provider,omitempty"`
	Latency  int64  `json:"latencyMs,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady fails only when the store is unreachable. Missing providers
// degrade features and are reported as warnings.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]check, 3)
	ready := true

	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	start := time.Now()
	if err := s.deps.Storage.Ping(ctx); err != nil {
		ready = false
		checks["database"] = check{Status: "error", Error: err.Error()}
		s.logger.ErrorContext(r.Context(), "database health check failed", "error", err)
	} else {
		checks["database"] = check{Status: "ok", Latency: time.Since(start).Milliseconds()}
	}

	if s.deps.Embedder != nil {
		checks["embedding"] = check{Status: "ok", Provider: s.deps.Embedder.Provider()}
	} else {
		checks["embedding"] = check{Status: "warning", Error: "embedding provider not configured"}
	}

	if s.deps.Assistant != nil && s.deps.Assistant.Available() {
		checks["completion"] = check{Status: "ok", Provider: s.deps.Assistant.Provider()}
	} else {
		checks["completion"] = check{Status: "warning", Error: "completion provider not configured"}
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not ready", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}
