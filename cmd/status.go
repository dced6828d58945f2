package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"grandline/internal/config"
	"grandline/internal/model"
	"grandline/internal/service"
	"grandline/internal/source"
	"grandline/internal/store"
)

const recentEpisodeCount = 3

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report system health, store statistics and recent episodes",
	Long: `Status probes the episode API and the database, prints the aggregate
state of the episodes table and the most recent episodes, and exits
non-zero when either component is unreachable.`,
	Run: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	// Outermost boundary: any failure becomes a message and exit 1,
	// never an unhandled fault.
	if err := statusRun(); err != nil {
		fmt.Fprintf(os.Stderr, "Status check failed: %v\n", err)
		os.Exit(1)
	}
}

func statusRun() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	logger := newLogger(cfg)
	ctx := context.Background()

	client := source.NewClient(cfg.EpisodeAPIBaseURL, logger)
	defer client.Close()

	health := service.Health{SourceHealthy: client.HealthCheck(ctx)}

	var episodeStore *store.EpisodeStore
	db, err := store.NewDB(cfg.DSN())
	if err != nil {
		logger.Error("sink unreachable", "error", err)
	} else {
		defer db.Close()
		episodeStore = store.NewEpisodeStore(db)
		health.SinkHealthy = episodeStore.Ping(ctx) == nil
	}

	fmt.Println("System Health")
	fmt.Println(renderTable(
		[]string{"Component", "Status"},
		[][]string{
			{"episode API", healthLabel(health.SourceHealthy)},
			{"database", healthLabel(health.SinkHealthy)},
		},
	))

	if !health.Healthy() {
		return fmt.Errorf("system unhealthy (episode API: %s, database: %s)",
			healthLabel(health.SourceHealthy), healthLabel(health.SinkHealthy))
	}

	stats, err := episodeStore.GetStats(ctx)
	if err != nil {
		return err
	}

	latestRelease := "-"
	if stats.LatestReleaseDate.Valid {
		latestRelease = stats.LatestReleaseDate.Time.Format(model.DateLayout)
	}
	fmt.Println("\nStore Statistics")
	fmt.Println(renderTable(
		[]string{"Metric", "Value"},
		[][]string{
			{"total episodes", strconv.Itoa(stats.TotalEpisodes)},
			{"episode range", fmt.Sprintf("%d to %d", stats.EarliestID, stats.LatestID)},
			{"latest release", latestRelease},
			{"unique arcs", strconv.Itoa(stats.UniqueArcs)},
			{"unique sagas", strconv.Itoa(stats.UniqueSagas)},
		},
	))

	recent, err := episodeStore.Recent(ctx, recentEpisodeCount)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(recent))
	for _, ep := range recent {
		rows = append(rows, []string{
			strconv.Itoa(ep.ID),
			truncate(ep.Title, 50),
			ep.ReleaseDate.Format(model.DateLayout),
			ep.ArcTitle,
		})
	}
	fmt.Println("\nRecent Episodes")
	fmt.Println(renderTable([]string{"ID", "Title", "Release Date", "Arc"}, rows))

	return nil
}

func healthLabel(ok bool) string {
	if ok {
		return "OK"
	}
	return "UNREACHABLE"
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
