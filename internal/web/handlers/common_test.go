package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
)

func TestRespondJSON_SetsContentType(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondJSON(recorder, http.StatusOK, map[string]string{"status": "ok"})

	assertContentType(t, recorder, "application/json")
}

func TestRespondJSON_NilData(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondJSON(recorder, http.StatusCreated, nil)

	assertStatusCode(t, recorder, http.StatusCreated)
	if recorder.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", recorder.Body.String())
	}
}

func TestRespondError_ContainsErrorKey(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondError(recorder, http.StatusBadRequest, "something went wrong")

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertContentType(t, recorder, "application/json")
	assertJSONError(t, recorder, "something went wrong")
}

func TestRespondStoreError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"not found", database.ErrNotFound, http.StatusNotFound, "employee not found"},
		{"wrapped not found", fmt.Errorf("lookup: %w", database.ErrNotFound), http.StatusNotFound, "employee not found"},
		{"conflict", fmt.Errorf("%w: users_email_key", database.ErrConflict), http.StatusConflict, "already exists"},
		{"other", errors.New("connection reset"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			respondStoreError(recorder, testLogger(), tt.err, "employee not found")
			assertStatusCode(t, recorder, tt.wantStatus)
			assertJSONError(t, recorder, tt.wantError)
		})
	}
}

func TestPageRequest(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantOK   bool
		wantPage int
		wantSize int
	}{
		{"defaults", "", true, 0, constants.DefaultPageSize},
		{"explicit", "?page=3&size=25", true, 3, 25},
		{"size capped", "?size=100000", true, 0, constants.MaxPageSize},
		{"negative page", "?page=-1", false, 0, 0},
		{"zero size", "?size=0", false, 0, 0},
		{"not a number", "?page=abc", false, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/admin/attendance"+tt.query, nil)

			page, ok := pageRequest(recorder, req)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if !ok {
				assertStatusCode(t, recorder, http.StatusBadRequest)
				return
			}
			if page.Page != tt.wantPage || page.Size != tt.wantSize {
				t.Errorf("expected page %d size %d, got page %d size %d", tt.wantPage, tt.wantSize, page.Page, page.Size)
			}
		})
	}
}

func TestPathID(t *testing.T) {
	tests := []struct {
		value  string
		wantOK bool
		wantID int64
	}{
		{"42", true, 42},
		{"0", false, 0},
		{"-3", false, 0},
		{"abc", false, 0},
		{"", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": tt.value})

			id, ok := pathID(recorder, req, "id")
			if ok != tt.wantOK || id != tt.wantID {
				t.Errorf("expected (%d, %v), got (%d, %v)", tt.wantID, tt.wantOK, id, ok)
			}
			if !ok {
				assertJSONError(t, recorder, "invalid id")
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:51234"
	if got := clientIP(req); got != "10.1.2.3" {
		t.Errorf("expected 10.1.2.3, got %s", got)
	}

	req.RemoteAddr = "10.1.2.3"
	if got := clientIP(req); got != "10.1.2.3" {
		t.Errorf("expected bare address to pass through, got %s", got)
	}
}

func TestSanitizeForLog(t *testing.T) {
	if got := sanitizeForLog("admin\r\nforged entry"); got != "adminforged entry" {
		t.Errorf("expected newlines stripped, got %q", got)
	}
}
