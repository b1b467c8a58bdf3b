package handlers

import (
	"net/http"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/database"
	"go.uber.org/zap"
)

// EmployeesHandler manages employees
type EmployeesHandler struct {
	employees database.EmployeeStore
	logger    *zap.Logger
}

// NewEmployeesHandler creates a new employees handler
func NewEmployeesHandler(employees database.EmployeeStore, logger *zap.Logger) *EmployeesHandler {
	return &EmployeesHandler{employees: employees, logger: logger}
}

type employeeRequest struct {
	Name       string         `json:"name"`
	DOB        *database.Date `json:"dob"`
	Gender     string         `json:"gender"`
	ImageURL   string         `json:"imageUrl"`
	Department string         `json:"department"`
	UserID     *int64         `json:"userId"`
}

const errEmployeeNotFound = "employee not found"

// apply validates the request and copies it onto e.
func (req *employeeRequest) apply(e *database.Employee) string {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return "name is required"
	}
	gender, err := database.ParseGender(req.Gender)
	if err != nil {
		return err.Error()
	}
	if req.DOB != nil && req.DOB.IsZero() {
		req.DOB = nil
	}

	e.Name = name
	e.DOB = req.DOB
	e.Gender = gender
	e.ImageURL = req.ImageURL
	e.Department = req.Department
	e.UserID = req.UserID
	return ""
}

// List returns a page of employees filtered by name
func (h *EmployeesHandler) List(w http.ResponseWriter, r *http.Request) {
	page, ok := pageRequest(w, r)
	if !ok {
		return
	}
	result, err := h.employees.List(r.Context(), r.URL.Query().Get("name"), page)
	if err != nil {
		respondStoreError(w, h.logger, err, "")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Get returns one employee
func (h *EmployeesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	e, err := h.employees.Get(r.Context(), id)
	if err != nil {
		respondStoreError(w, h.logger, err, errEmployeeNotFound)
		return
	}
	respondJSON(w, http.StatusOK, e)
}

// Create adds an employee
func (h *EmployeesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req employeeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var e database.Employee
	if msg := req.apply(&e); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}
	if err := h.employees.Create(r.Context(), &e); err != nil {
		respondStoreError(w, h.logger, err, "user not found")
		return
	}
	respondJSON(w, http.StatusOK, e)
}

// Update replaces an employee's fields
func (h *EmployeesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req employeeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	e, err := h.employees.Get(r.Context(), id)
	if err != nil {
		respondStoreError(w, h.logger, err, errEmployeeNotFound)
		return
	}
	if msg := req.apply(e); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}
	if err := h.employees.Update(r.Context(), e); err != nil {
		respondStoreError(w, h.logger, err, errEmployeeNotFound)
		return
	}
	respondJSON(w, http.StatusOK, e)
}

// Delete removes an employee and their attendance
func (h *EmployeesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.employees.Delete(r.Context(), id); err != nil {
		respondStoreError(w, h.logger, err, errEmployeeNotFound)
		return
	}
	respondMessage(w, "Employee deleted!")
}
