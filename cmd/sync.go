package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"grandline/internal/config"
	"grandline/internal/model"
	"grandline/internal/service"
	"grandline/internal/source"
	"grandline/internal/store"
)

var (
	syncForce bool
	syncIDs   []int
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch episodes from the API and upsert them into the store",
	Long: `Sync fetches episode metadata from the One Piece API, validates and
transforms each record, and upserts the results into the episodes table.

By default only episodes missing from the store are written; re-running
against unchanged source data is a no-op apart from updated_at.

Examples:
  # Sync every episode not yet stored
  ./grandline sync

  # Re-upsert everything, refreshing already-stored rows
  ./grandline sync --force

  # Fetch and upsert specific episodes only
  ./grandline sync --ids 1,2,3`,
	Run: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().BoolVar(&syncForce, "force", false, "Upsert all fetched episodes, even those already stored")
	syncCmd.Flags().IntSliceVar(&syncIDs, "ids", nil, "Sync only these episode ids (comma-separated)")
}

func runSync(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	logger := newLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	log.Println("Connecting to database...")
	db, err := store.NewDB(cfg.DSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	episodeStore := store.NewEpisodeStore(db)
	client := source.NewClient(cfg.EpisodeAPIBaseURL, logger)
	defer client.Close()

	syncer := service.NewSyncer(client, episodeStore, logger)

	var stats *service.SyncStats
	if len(syncIDs) > 0 {
		stats, err = syncer.SyncBatch(ctx, syncIDs)
	} else {
		stats, err = syncer.Sync(ctx, syncForce)
	}
	if err != nil {
		if ctx.Err() != nil {
			log.Println("Sync cancelled")
			os.Exit(1)
		}
		log.Fatalf("Sync failed: %v", err)
	}

	printSyncSummary(stats)

	storeStats, err := episodeStore.GetStats(ctx)
	if err != nil {
		log.Printf("Warning: failed to compute store stats: %v", err)
		return
	}
	printStoreStats(storeStats)
}

func printSyncSummary(stats *service.SyncStats) {
	log.Println("")
	log.Println("=== Sync Summary ===")
	log.Printf("Episodes fetched:   %d", stats.Fetched)
	log.Printf("Already stored:     %d", stats.Existing)
	log.Printf("Upserted:           %d", stats.Upserted)
	log.Printf("Placeholders used:  %d", stats.Placeholders)
	log.Printf("Duration:           %s", stats.Duration.Round(time.Millisecond))
}

func printStoreStats(st *store.Stats) {
	log.Println("")
	log.Println("=== Store Statistics ===")
	log.Printf("Total episodes:     %d", st.TotalEpisodes)
	log.Printf("Episode range:      %d to %d", st.EarliestID, st.LatestID)
	if st.LatestReleaseDate.Valid {
		log.Printf("Latest release:     %s", st.LatestReleaseDate.Time.Format(model.DateLayout))
	}
	log.Printf("Unique arcs:        %d", st.UniqueArcs)
	log.Printf("Unique sagas:       %d", st.UniqueSagas)
}
