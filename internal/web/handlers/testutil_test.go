package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/events"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-that-is-long-enough"

// testLogger returns a logger that discards everything
func testLogger() *zap.Logger {
	return zap.NewNop()
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// jsonRequest creates a request with a JSON body
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// testTokens creates a token manager backed by an in-memory denylist
func testTokens() (*middleware.TokenManager, *mock.MockTokenDenylist) {
	denylist := mock.NewMockTokenDenylist()
	return middleware.NewTokenManager(testSecret, time.Hour, denylist), denylist
}

// addUser stores a user with a bcrypt hash of password
func addUser(t *testing.T, users *mock.MockUserStore, username, password string, roles ...database.Role) *database.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	return users.AddUser(database.User{
		Name:         username,
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: string(hash),
		Roles:        roles,
	})
}

// attendanceEnv wires an attendance service to mock stores
type attendanceEnv struct {
	employees   *mock.MockEmployeeStore
	attendances *mock.MockAttendanceStore
	events      *events.Broadcaster
	service     *attendance.Service
}

func newAttendanceEnv(t *testing.T) *attendanceEnv {
	t.Helper()
	employees := mock.NewMockEmployeeStore()
	attendances := mock.NewMockAttendanceStore(employees)
	broadcaster := events.NewBroadcaster()
	t.Cleanup(broadcaster.Close)
	return &attendanceEnv{
		employees:   employees,
		attendances: attendances,
		events:      broadcaster,
		service:     attendance.NewService(attendances, employees, broadcaster, config.DefaultPolicy(), time.Hour, testLogger()),
	}
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}

// assertMessage checks a {"message": ...} confirmation body
func assertMessage(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	var result map[string]string
	parseJSONResponse(t, recorder, &result)
	if result["message"] != expected {
		t.Errorf("expected message '%s', got '%s'", expected, result["message"])
	}
}
