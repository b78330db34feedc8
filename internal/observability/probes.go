package observability

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
)

// ReadinessResponse is the body of the readiness probe.
type ReadinessResponse struct {
	Ready  bool              `json:"ready"`
	Status map[string]string `json:"status"`
}

// liveness only proves the process can serve HTTP.
func (s *Server) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness answers 200 only when every checker passes within the configured timeout.
func (s *Server) readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Timeout)
	defer cancel()

	resp := ReadinessResponse{Ready: true, Status: make(map[string]string, len(s.checkers))}

	for _, res := range RunChecks(ctx, s.checkers) {
		resp.Status[res.Name] = res.Status()
		if res.Err == nil {
			continue
		}
		resp.Ready = false
		// Warn: orchestrators retry probes.
		s.logger.Warn("health probe failed",
			slog.String("component", res.Name),
			slog.String("error", res.Err.Error()),
		)
	}

	if resp.Ready {
		render.Status(r, http.StatusOK)
	} else {
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, resp)
}
