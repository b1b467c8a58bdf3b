package handlers

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"go.uber.org/zap"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondMessage sends a confirmation message.
func respondMessage(w http.ResponseWriter, message string) {
	respondJSON(w, http.StatusOK, map[string]string{"message": message})
}

// respondStoreError maps store errors to HTTP responses.
func respondStoreError(w http.ResponseWriter, logger *zap.Logger, err error, notFound string) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		respondError(w, http.StatusNotFound, notFound)
	case errors.Is(err, database.ErrConflict):
		respondError(w, http.StatusConflict, "already exists")
	default:
		logger.Error("Store operation failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON decodes the request body, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return false
	}
	return true
}

// pathID parses a positive numeric URL parameter, writing a 400 on failure.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

// pageRequest reads the 0-based page and size query parameters.
func pageRequest(w http.ResponseWriter, r *http.Request) (database.PageRequest, bool) {
	req := database.PageRequest{Page: 0, Size: constants.DefaultPageSize}
	q := r.URL.Query()

	if s := q.Get("page"); s != "" {
		page, err := strconv.Atoi(s)
		if err != nil || page < 0 {
			respondError(w, http.StatusBadRequest, "invalid page")
			return req, false
		}
		req.Page = page
	}
	if s := q.Get("size"); s != "" {
		size, err := strconv.Atoi(s)
		if err != nil || size <= 0 {
			respondError(w, http.StatusBadRequest, "invalid size")
			return req, false
		}
		req.Size = min(size, constants.MaxPageSize)
	}
	return req, true
}

// clientIP returns the remote host without the port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
