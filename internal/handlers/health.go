package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/printworks/api/internal/platform/httpx"
)

// ReadinessCheck reports whether a downstream dependency is reachable.
type ReadinessCheck func(ctx context.Context) error

// HealthHandlers serves liveness and readiness probes.
type HealthHandlers struct {
	started time.Time
	ready   ReadinessCheck
}

// NewHealthHandlers constructs the probe handlers. ready may be nil, in which
// case /readyz always succeeds.
func NewHealthHandlers(ready ReadinessCheck) *HealthHandlers {
	return &HealthHandlers{
		started: time.Now().UTC(),
		ready:   ready,
	}
}

// Healthz reports process liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(h.started).String(),
	})
}

// Readyz reports whether dependencies are reachable.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			httpx.WriteError(r.Context(), w, httpx.NewError("not_ready", err.Error(), http.StatusServiceUnavailable))
			return
		}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
