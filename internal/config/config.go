package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	defaultAPIBaseURL = "https://api.api-onepiece.com/v2"
	defaultLogLevel   = "INFO"

	supabaseHostSuffix = ".supabase.co"
)

// Config holds all environment-sourced settings. Validation happens
// eagerly in Load so a misconfigured process dies at startup instead of
// mid-sync.
type Config struct {
	// SupabaseDBURL is the Postgres connection URL of the Supabase
	// project, without the password.
	SupabaseDBURL string

	// SupabaseDBPassword is the database access key, injected into the
	// DSN at connect time.
	SupabaseDBPassword string

	// EpisodeAPIBaseURL is the base URL of the episode API.
	EpisodeAPIBaseURL string

	// LogLevel is one of DEBUG, INFO, WARN, ERROR (normalized).
	LogLevel string
}

// Load reads configuration from the environment. A .env file in the
// working directory is honored when present.
func Load() (*Config, error) {
	// Missing .env is fine; real deployments set env vars directly.
	_ = godotenv.Load()

	cfg := &Config{
		SupabaseDBURL:      os.Getenv("SUPABASE_DB_URL"),
		SupabaseDBPassword: os.Getenv("SUPABASE_DB_PASSWORD"),
		EpisodeAPIBaseURL:  os.Getenv("EPISODE_API_BASE_URL"),
		LogLevel:           os.Getenv("LOG_LEVEL"),
	}

	if cfg.EpisodeAPIBaseURL == "" {
		cfg.EpisodeAPIBaseURL = defaultAPIBaseURL
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.SupabaseDBURL == "" {
		return fmt.Errorf("SUPABASE_DB_URL environment variable is not set")
	}
	if c.SupabaseDBPassword == "" {
		return fmt.Errorf("SUPABASE_DB_PASSWORD environment variable is not set")
	}

	u, err := url.Parse(c.SupabaseDBURL)
	if err != nil {
		return fmt.Errorf("SUPABASE_DB_URL is not a valid URL: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return fmt.Errorf("SUPABASE_DB_URL must use the postgres:// scheme, got %q", u.Scheme)
	}
	if !strings.Contains(u.Hostname(), supabaseHostSuffix) {
		return fmt.Errorf("SUPABASE_DB_URL must point at a %s host, got %q", supabaseHostSuffix, u.Hostname())
	}

	level := strings.ToUpper(c.LogLevel)
	if level == "WARNING" {
		level = "WARN"
	}
	switch level {
	case "DEBUG", "INFO", "WARN", "ERROR":
		c.LogLevel = level
	default:
		return fmt.Errorf("LOG_LEVEL must be one of DEBUG, INFO, WARN, ERROR, got %q", c.LogLevel)
	}

	return nil
}

// DSN returns the full Postgres connection string with the access key
// set as the password.
func (c *Config) DSN() string {
	u, err := url.Parse(c.SupabaseDBURL)
	if err != nil {
		// validate has already parsed this URL.
		return c.SupabaseDBURL
	}

	user := "postgres"
	if u.User != nil && u.User.Username() != "" {
		user = u.User.Username()
	}
	u.User = url.UserPassword(user, c.SupabaseDBPassword)
	return u.String()
}

// SlogLevel maps the configured level onto slog.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
