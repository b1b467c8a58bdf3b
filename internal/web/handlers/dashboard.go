package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"go.uber.org/zap"
)

// DashboardHandler serves today's attendance summaries
type DashboardHandler struct {
	service *attendance.Service
	logger  *zap.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(service *attendance.Service, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{service: service, logger: logger}
}

// SummaryGroups returns grouped counts for today
func (h *DashboardHandler) SummaryGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.SummaryGroups(r.Context())
	if err != nil {
		respondStoreError(w, h.logger, err, "")
		return
	}
	respondJSON(w, http.StatusOK, groups)
}

// StatusCards returns per-status counts for today
func (h *DashboardHandler) StatusCards(w http.ResponseWriter, r *http.Request) {
	cards, err := h.service.StatusCards(r.Context())
	if err != nil {
		respondStoreError(w, h.logger, err, "")
		return
	}
	respondJSON(w, http.StatusOK, cards)
}
