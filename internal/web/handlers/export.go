package handlers

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/export"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// ExportHandler streams attendance reports as spreadsheets
type ExportHandler struct {
	service *attendance.Service
	logger  *zap.Logger
	now     func() time.Time
}

// NewExportHandler creates a new export handler
func NewExportHandler(service *attendance.Service, logger *zap.Logger) *ExportHandler {
	return &ExportHandler{service: service, logger: logger, now: time.Now}
}

// Export writes an XLSX report for the inclusive from..to range, defaulting to the current month
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	loc := h.service.Rules().Location()
	from, to, ok := h.period(w, r, loc)
	if !ok {
		return
	}

	records, err := h.service.ListBetween(r.Context(), from, to.AddDate(0, 0, 1))
	if err != nil {
		respondStoreError(w, h.logger, err, "")
		return
	}

	report := export.Report{From: from, To: to, Location: loc, Records: records}
	var buf bytes.Buffer
	if err := export.Write(&buf, report); err != nil {
		h.logger.Error("Failed to write report", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to build report")
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.FileName()+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *ExportHandler) period(w http.ResponseWriter, r *http.Request, loc *time.Location) (time.Time, time.Time, bool) {
	now := h.now().In(loc)
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	to := from.AddDate(0, 1, -1)

	q := r.URL.Query()
	if s := q.Get("from"); s != "" {
		t, err := time.ParseInLocation(dateLayout, s, loc)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid from date, expected YYYY-MM-DD")
			return from, to, false
		}
		from = t
	}
	if s := q.Get("to"); s != "" {
		t, err := time.ParseInLocation(dateLayout, s, loc)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid to date, expected YYYY-MM-DD")
			return from, to, false
		}
		to = t
	}
	if to.Before(from) {
		respondError(w, http.StatusBadRequest, "to must not be before from")
		return from, to, false
	}
	return from, to, true
}
