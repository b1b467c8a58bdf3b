package handlers

import (
	"errors"
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/events"
	"go.uber.org/zap"
)

// AttendanceHandler manages attendance records
type AttendanceHandler struct {
	service   *attendance.Service
	employees database.EmployeeStore
	logger    *zap.Logger
}

// NewAttendanceHandler creates a new attendance handler
func NewAttendanceHandler(service *attendance.Service, employees database.EmployeeStore, logger *zap.Logger) *AttendanceHandler {
	return &AttendanceHandler{service: service, employees: employees, logger: logger}
}

type attendanceRequest struct {
	EmployeeID int64  `json:"employeeId"`
	Status     string `json:"status"`
}

const (
	errAttendanceNotFound = "attendance not found"
	errInvalidStatus      = "invalid attendance status"
)

// List returns a page of all attendance records
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	page, ok := pageRequest(w, r)
	if !ok {
		return
	}
	result, err := h.service.List(r.Context(), page)
	if err != nil {
		respondStoreError(w, h.logger, err, "")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// ListByEmployee returns a page of one employee's attendance records
func (h *AttendanceHandler) ListByEmployee(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	page, ok := pageRequest(w, r)
	if !ok {
		return
	}
	result, err := h.service.ListByEmployee(r.Context(), id, page)
	if err != nil {
		respondStoreError(w, h.logger, err, "")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Get returns one attendance record
func (h *AttendanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondStoreError(w, h.logger, err, errAttendanceNotFound)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

// Create records a manual check-in
func (h *AttendanceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req attendanceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !h.requireEmployee(w, r, req.EmployeeID) {
		return
	}

	a, err := h.service.Create(r.Context(), req.EmployeeID, req.Status)
	if errors.Is(err, attendance.ErrInvalidStatus) {
		respondError(w, http.StatusBadRequest, errInvalidStatus)
		return
	}
	if err != nil {
		respondStoreError(w, h.logger, err, errEmployeeNotFound)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

// Update reassigns a record and stamps its check-out
func (h *AttendanceHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req attendanceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !h.requireEmployee(w, r, req.EmployeeID) {
		return
	}

	a, err := h.service.Update(r.Context(), id, req.EmployeeID, req.Status)
	if errors.Is(err, attendance.ErrInvalidStatus) {
		respondError(w, http.StatusBadRequest, errInvalidStatus)
		return
	}
	if err != nil {
		respondStoreError(w, h.logger, err, errAttendanceNotFound)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

// Delete removes an attendance record
func (h *AttendanceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		respondStoreError(w, h.logger, err, errAttendanceNotFound)
		return
	}
	respondMessage(w, "Attendance deleted!")
}

// Mark toggles check-in and check-out for an employee
func (h *AttendanceHandler) Mark(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "employeeId")
	if !ok {
		return
	}
	if !h.requireEmployee(w, r, id) {
		return
	}

	result, err := h.service.Mark(r.Context(), attendance.MarkRequest{
		EmployeeID: id,
		Note:       r.URL.Query().Get("note"),
		Location:   "IP: " + clientIP(r),
		Source:     events.SourceManual,
	})
	if err != nil {
		respondStoreError(w, h.logger, err, errEmployeeNotFound)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *AttendanceHandler) requireEmployee(w http.ResponseWriter, r *http.Request, id int64) bool {
	if id <= 0 {
		respondError(w, http.StatusBadRequest, "employeeId is required")
		return false
	}
	if _, err := h.employees.Get(r.Context(), id); err != nil {
		respondStoreError(w, h.logger, err, errEmployeeNotFound)
		return false
	}
	return true
}
