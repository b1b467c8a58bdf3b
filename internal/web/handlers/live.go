package handlers

import (
	"errors"
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/live"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
	"go.uber.org/zap"
)

// LiveGateway is the websocket hub behind the live attendance endpoint.
type LiveGateway interface {
	http.Handler
	Stats() live.Stats
}

// LiveHandler authenticates kiosk sockets and reports gateway stats
type LiveHandler struct {
	gateway     LiveGateway
	tokens      *middleware.TokenManager
	requireAuth bool
	logger      *zap.Logger
}

// NewLiveHandler creates a new live handler
func NewLiveHandler(gateway LiveGateway, tokens *middleware.TokenManager, requireAuth bool, logger *zap.Logger) *LiveHandler {
	return &LiveHandler{gateway: gateway, tokens: tokens, requireAuth: requireAuth, logger: logger}
}

// Attendance checks the optional token and hands the request to the gateway
func (h *LiveHandler) Attendance(w http.ResponseWriter, r *http.Request) {
	raw := middleware.TokenFromRequest(r)
	switch {
	case raw == "" && h.requireAuth:
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	case raw != "":
		p, err := h.tokens.Parse(r.Context(), raw)
		if err != nil {
			msg := "unauthorized"
			if errors.Is(err, middleware.ErrTokenRevoked) {
				msg = "token revoked"
			}
			respondError(w, http.StatusUnauthorized, msg)
			return
		}
		h.logger.Debug("Kiosk authenticated", zap.String("username", sanitizeForLog(p.Username)))
	}
	h.gateway.ServeHTTP(w, r)
}

// Stats returns the current rooms and connections
func (h *LiveHandler) Stats(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.gateway.Stats())
}
