package config_test

import (
	"log/slog"
	"strings"
	"testing"

	"grandline/internal/config"
)

func setValidEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SUPABASE_DB_URL", "postgres://postgres@db.abcdefgh.supabase.co:5432/postgres")
	t.Setenv("SUPABASE_DB_PASSWORD", "secret")
	t.Setenv("EPISODE_API_BASE_URL", "")
	t.Setenv("LOG_LEVEL", "")
}

func TestLoadAppliesDefaults(t *testing.T) {
	setValidEnv(t)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.EpisodeAPIBaseURL != "https://api.api-onepiece.com/v2" {
		t.Fatalf("unexpected default base URL: %q", cfg.EpisodeAPIBaseURL)
	}
	if cfg.LogLevel != "INFO" {
		t.Fatalf("unexpected default log level: %q", cfg.LogLevel)
	}
}

func TestLoadRequiresSinkURL(t *testing.T) {
	setValidEnv(t)
	t.Setenv("SUPABASE_DB_URL", "")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for missing SUPABASE_DB_URL")
	}
}

func TestLoadRequiresPassword(t *testing.T) {
	setValidEnv(t)
	t.Setenv("SUPABASE_DB_PASSWORD", "")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for missing SUPABASE_DB_PASSWORD")
	}
}

func TestLoadRejectsNonPostgresScheme(t *testing.T) {
	setValidEnv(t)
	t.Setenv("SUPABASE_DB_URL", "https://db.abcdefgh.supabase.co")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for non-postgres scheme")
	}
}

func TestLoadRejectsForeignHost(t *testing.T) {
	setValidEnv(t)
	t.Setenv("SUPABASE_DB_URL", "postgres://postgres@db.example.com:5432/postgres")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for non-supabase host")
	}
}

func TestLogLevelNormalization(t *testing.T) {
	cases := map[string]string{
		"debug":   "DEBUG",
		"Info":    "INFO",
		"warning": "WARN",
		"WARN":    "WARN",
		"error":   "ERROR",
	}
	for in, want := range cases {
		setValidEnv(t)
		t.Setenv("LOG_LEVEL", in)

		cfg, err := config.Load()
		if err != nil {
			t.Fatalf("Load(%q) returned error: %v", in, err)
		}
		if cfg.LogLevel != want {
			t.Fatalf("LogLevel for %q: got %q want %q", in, cfg.LogLevel, want)
		}
	}
}

func TestLogLevelRejected(t *testing.T) {
	setValidEnv(t)
	t.Setenv("LOG_LEVEL", "verbose")

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestDSNInjectsPassword(t *testing.T) {
	setValidEnv(t)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	dsn := cfg.DSN()
	if !strings.Contains(dsn, "postgres:secret@db.abcdefgh.supabase.co") {
		t.Fatalf("DSN missing injected credentials: %q", dsn)
	}
}

func TestSlogLevel(t *testing.T) {
	setValidEnv(t)
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Fatalf("unexpected slog level: %v", cfg.SlogLevel())
	}
}
