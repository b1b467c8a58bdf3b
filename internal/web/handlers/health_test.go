package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/live"
)

func TestHealthHandler(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		checks     map[string]HealthCheck
		wantStatus int
		wantBody   string
	}{
		{"all healthy", map[string]HealthCheck{"database": ok, "redis": ok}, http.StatusOK, "ok"},
		{"no checks", nil, http.StatusOK, "ok"},
		{"one down", map[string]HealthCheck{"database": ok, "redis": down}, http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gateway := &fakeGateway{stats: live.Stats{Rooms: 1, Connections: 1}}
			handler := NewHealthHandler(tt.checks, gateway)

			recorder := httptest.NewRecorder()
			handler.Health(recorder, httptest.NewRequest(http.MethodGet, "/api/health", nil))
			assertStatusCode(t, recorder, tt.wantStatus)

			var resp HealthResponse
			parseJSONResponse(t, recorder, &resp)
			if resp.Status != tt.wantBody {
				t.Errorf("expected status %q, got %q", tt.wantBody, resp.Status)
			}
			for name := range tt.checks {
				if resp.Checks[name] == "" {
					t.Errorf("missing check %q", name)
				}
			}
			if resp.Live == nil || resp.Live.Connections != 1 {
				t.Errorf("expected live stats, got %+v", resp.Live)
			}
		})
	}
}
