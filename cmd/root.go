package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"grandline/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "grandline",
	Short: "Sync One Piece episode metadata into Supabase",
	Long: `grandline keeps a Supabase-hosted episodes table in sync with the
public One Piece episode API and reports on the health and contents of
the store.

Configuration is environment-sourced (a .env file is honored):
  SUPABASE_DB_URL       Postgres URL of the Supabase project (required)
  SUPABASE_DB_PASSWORD  database access key (required)
  EPISODE_API_BASE_URL  episode API base URL (optional)
  LOG_LEVEL             DEBUG, INFO, WARN or ERROR (optional)`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
}
