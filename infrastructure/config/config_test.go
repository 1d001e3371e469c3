package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "freightledger.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(PathEnv, "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("expected default addr, got %q", cfg.HTTP.Addr)
	}
	if cfg.Clock.AdvanceMinutes != DefaultAdvanceMinutes {
		t.Fatalf("expected default advance %d, got %d", DefaultAdvanceMinutes, cfg.Clock.AdvanceMinutes)
	}
	if cfg.SQLite.MigrationsDir != "" {
		t.Fatalf("expected embedded migrations by default, got %q", cfg.SQLite.MigrationsDir)
	}
}

func TestLoadYAMLThenEnvPrecedence(t *testing.T) {
	path := writeConfig(t, `
http:
  addr: "127.0.0.1:9090"
sqlite:
  path: "/tmp/ledger.db"
clock:
  advance_minutes: 60
batch:
  max_retry_elapsed: 2s
  initial_retry_interval: 10ms
log:
  level: debug
`)
	t.Setenv("FREIGHTLEDGER_CLOCK_ADVANCE_MINUTES", "30")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Addr != "127.0.0.1:9090" {
		t.Fatalf("expected yaml addr, got %q", cfg.HTTP.Addr)
	}
	if cfg.SQLite.Path != "/tmp/ledger.db" {
		t.Fatalf("expected yaml sqlite path, got %q", cfg.SQLite.Path)
	}
	if cfg.Clock.AdvanceMinutes != 30 {
		t.Fatalf("expected env to override advance minutes, got %d", cfg.Clock.AdvanceMinutes)
	}
	if cfg.Batch.MaxRetryElapsed != 2*time.Second || cfg.Batch.InitialRetryInterval != 10*time.Millisecond {
		t.Fatalf("unexpected batch config: %+v", cfg.Batch)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected debug level, got %q", cfg.Log.Level)
	}
}

func TestLoadRejectsNonPositiveAdvance(t *testing.T) {
	path := writeConfig(t, "clock:\n  advance_minutes: -5\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for negative advance")
	}
}

func TestLoadRejectsUnknownLogLevel(t *testing.T) {
	path := writeConfig(t, "log:\n  level: chatty\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for unknown log level")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestLoadAllowedOriginsFromEnv(t *testing.T) {
	t.Setenv(PathEnv, "")
	t.Setenv("FREIGHTLEDGER_HTTP_ALLOWED_ORIGINS", "http://localhost:5173,https://ops.example.com")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.HTTP.AllowedOrigins) != 2 || cfg.HTTP.AllowedOrigins[1] != "https://ops.example.com" {
		t.Fatalf("unexpected allowed origins: %v", cfg.HTTP.AllowedOrigins)
	}
}
