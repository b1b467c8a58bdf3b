package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/live"
)

type fakeGateway struct {
	served int
	stats  live.Stats
}

func (g *fakeGateway) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	g.served++
	w.WriteHeader(http.StatusSwitchingProtocols)
}

func (g *fakeGateway) Stats() live.Stats {
	return g.stats
}

func TestLiveHandler_Attendance(t *testing.T) {
	tokens, _ := testTokens()
	valid, err := tokens.Issue(&database.User{ID: 1, Username: "kiosk", Roles: []database.Role{database.RoleUser}})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	revoked, _ := tokens.Issue(&database.User{ID: 2, Username: "gone"})
	p, _ := tokens.Parse(context.Background(), revoked.Token)
	if err := tokens.Revoke(context.Background(), p); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	tests := []struct {
		name        string
		requireAuth bool
		query       string
		wantServed  bool
		wantError   string
	}{
		{"anonymous allowed", false, "", true, ""},
		{"anonymous rejected", true, "", false, "unauthorized"},
		{"valid token", true, "?token=" + valid.Token, true, ""},
		{"garbage token", false, "?token=garbage", false, "unauthorized"},
		{"revoked token", false, "?token=" + revoked.Token, false, "token revoked"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gateway := &fakeGateway{}
			handler := NewLiveHandler(gateway, tokens, tt.requireAuth, testLogger())

			recorder := httptest.NewRecorder()
			handler.Attendance(recorder, httptest.NewRequest(http.MethodGet, "/api/ws/attendance"+tt.query, nil))

			if served := gateway.served == 1; served != tt.wantServed {
				t.Fatalf("expected served=%v, got %v", tt.wantServed, served)
			}
			if tt.wantError != "" {
				assertStatusCode(t, recorder, http.StatusUnauthorized)
				assertJSONError(t, recorder, tt.wantError)
			}
		})
	}
}

func TestLiveHandler_Stats(t *testing.T) {
	gateway := &fakeGateway{stats: live.Stats{Rooms: 2, Connections: 3, PerRoom: map[string]int{"kiosk-1": 2, "kiosk-2": 1}}}
	tokens, _ := testTokens()
	handler := NewLiveHandler(gateway, tokens, false, testLogger())

	recorder := httptest.NewRecorder()
	handler.Stats(recorder, httptest.NewRequest(http.MethodGet, "/api/live/stats", nil))
	assertStatusCode(t, recorder, http.StatusOK)

	var stats live.Stats
	parseJSONResponse(t, recorder, &stats)
	if stats.Connections != 3 || stats.PerRoom["kiosk-1"] != 2 {
		t.Errorf("unexpected stats %+v", stats)
	}
}
