package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/kozaktomas/face-attendance/internal/live"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// HealthHandler reports dependency and gateway health
type HealthHandler struct {
	checks  map[string]HealthCheck
	gateway LiveGateway
	timeout time.Duration
}

// NewHealthHandler creates a new health handler; gateway may be nil
func NewHealthHandler(checks map[string]HealthCheck, gateway LiveGateway) *HealthHandler {
	return &HealthHandler{checks: checks, gateway: gateway, timeout: 3 * time.Second}
}

// HealthResponse is the body of the health endpoint.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
	Live   *live.Stats       `json:"live,omitempty"`
}

// Health runs every check and answers 503 when any fails
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			continue
		}
		resp.Checks[name] = "ok"
	}
	if h.gateway != nil {
		stats := h.gateway.Stats()
		resp.Live = &stats
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, resp)
}
