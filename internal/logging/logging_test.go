package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
	}{
		{"json info", "info", "json", false},
		{"default format", "warn", "", false},
		{"console debug", "debug", "console", false},
		{"bad level", "loud", "json", true},
		{"bad format", "info", "xml", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.level, tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && logger == nil {
				t.Fatal("expected logger")
			}
		})
	}
}

func TestNew_LevelEnabled(t *testing.T) {
	logger, err := New("warn", "json")
	if err != nil {
		t.Fatal(err)
	}

	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info should be disabled at warn level")
	}
	if !logger.Core().Enabled(zapcore.ErrorLevel) {
		t.Error("error should be enabled at warn level")
	}
}
