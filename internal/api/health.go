package api

import (
	"context"
	"net/http"
	"time"
)

const readinessTimeout = 2 * time.Second

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	failed := make(map[string]string)
	for _, check := range s.deps.Checks {
		if err := check.Check(ctx); err != nil {
			failed[check.Name] = err.Error()
		}
	}

	if len(failed) > 0 {
		s.logger.Warn().Interface("checks", failed).Msg("Readiness check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "checks": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
