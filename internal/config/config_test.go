package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ML_URL", "")
	t.Setenv("WEB_PORT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Web.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Web.Port)
	}
	if cfg.Live.FrameInterval != 400*time.Millisecond {
		t.Errorf("expected frame interval 400ms, got %v", cfg.Live.FrameInterval)
	}
	if cfg.Attendance.Cooldown != time.Minute {
		t.Errorf("expected cooldown 1m, got %v", cfg.Attendance.Cooldown)
	}
	if cfg.JWT.Expiration != time.Hour {
		t.Errorf("expected JWT expiration 1h, got %v", cfg.JWT.Expiration)
	}
	if cfg.ML.VerifyThreshold != 0.7 {
		t.Errorf("expected verify threshold 0.7, got %v", cfg.ML.VerifyThreshold)
	}
	if cfg.Database.MaxOpenConns != 25 || cfg.Database.MaxIdleConns != 5 {
		t.Errorf("unexpected pool defaults: %+v", cfg.Database)
	}
	if cfg.Policy.WorkStart != "09:00" {
		t.Errorf("expected embedded policy, got %+v", cfg.Policy)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("WEB_PORT", "9090")
	t.Setenv("WEB_ALLOWED_ORIGINS", "http://a.example,http://b.example")
	t.Setenv("LIVE_FRAME_INTERVAL", "1s")
	t.Setenv("LIVE_REQUIRE_AUTH", "true")
	t.Setenv("DATABASE_URL", "postgres://localhost/att")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Web.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Web.Port)
	}
	if len(cfg.Web.AllowedOrigins) != 2 || cfg.Web.AllowedOrigins[1] != "http://b.example" {
		t.Errorf("unexpected origins: %v", cfg.Web.AllowedOrigins)
	}
	if cfg.Live.FrameInterval != time.Second {
		t.Errorf("expected 1s, got %v", cfg.Live.FrameInterval)
	}
	if !cfg.Live.RequireAuth {
		t.Error("expected RequireAuth to be true")
	}
	if cfg.Database.URL != "postgres://localhost/att" {
		t.Errorf("unexpected database URL %q", cfg.Database.URL)
	}
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("WEB_PORT", "not-a-number")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestLoad_PolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	doc := "work_start: \"08:00\"\ngrace: 5m\nwork_end: \"16:30\"\ntimezone: Europe/Prague\nwork_days: [monday, saturday]\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ATTENDANCE_POLICY_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Policy.WorkStart != "08:00" || cfg.Policy.Grace != 5*time.Minute {
		t.Errorf("unexpected policy: %+v", cfg.Policy)
	}
	if !cfg.Policy.IsWorkDay(time.Saturday) || cfg.Policy.IsWorkDay(time.Sunday) {
		t.Errorf("unexpected work days: %v", cfg.Policy.WorkDays)
	}
	if cfg.Policy.Location().String() != "Europe/Prague" {
		t.Errorf("unexpected location %s", cfg.Policy.Location())
	}
}

func TestLoad_MissingPolicyFile(t *testing.T) {
	t.Setenv("ATTENDANCE_POLICY_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing policy file")
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{"valid", "work_start: \"09:00\"\nwork_end: \"17:00\"\n", false},
		{"bad start", "work_start: \"9am\"\nwork_end: \"17:00\"\n", true},
		{"bad timezone", "work_start: \"09:00\"\nwork_end: \"17:00\"\ntimezone: Mars/Base\n", true},
		{"bad weekday", "work_start: \"09:00\"\nwork_end: \"17:00\"\nwork_days: [funday]\n", true},
		{"not yaml", "work_start: [", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePolicy([]byte(tt.doc))
			if (err != nil) != tt.wantErr {
				t.Errorf("ParsePolicy() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultPolicy_WorkDays(t *testing.T) {
	p := DefaultPolicy()

	if p.IsWorkDay(time.Sunday) {
		t.Error("expected Sunday to be a day off")
	}
	if !p.IsWorkDay(time.Wednesday) {
		t.Error("expected Wednesday to be a work day")
	}
	if p.Location() != time.UTC {
		t.Errorf("expected UTC, got %s", p.Location())
	}
}
