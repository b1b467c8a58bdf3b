package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	handler := chiMiddleware.RequestID(RequestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})))

	for _, path := range []string{"/ok", "/missing"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	first := entries[0].ContextMap()
	if first["path"] != "/ok" || first["status"] != int64(http.StatusOK) || first["request_id"] == "" {
		t.Errorf("unexpected first entry %v", first)
	}
	if entries[0].Level != zapcore.InfoLevel || entries[1].Level != zapcore.WarnLevel {
		t.Errorf("unexpected levels %v, %v", entries[0].Level, entries[1].Level)
	}
	if entries[1].ContextMap()["status"] != int64(http.StatusNotFound) {
		t.Errorf("unexpected second entry %v", entries[1].ContextMap())
	}
}
