package cmd

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/spf13/cobra"

	"grandline/internal/config"
	"grandline/internal/handlers"
	"grandline/internal/service"
	"grandline/internal/source"
	"grandline/internal/store"
)

var port string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the status HTTP server",
	Long: `Start a small HTTP server exposing the sync status as JSON:

  GET /healthz          source and sink reachability (503 when unhealthy)
  GET /stats            aggregate episodes-table statistics
  GET /episodes/recent  most recent episodes (?limit=N)`,
	Run: func(cmd *cobra.Command, args []string) {
		// Use PORT env var if set, otherwise use flag value
		if envPort := os.Getenv("PORT"); envPort != "" && port == "8080" {
			port = envPort
		}

		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("Configuration error: %v", err)
		}
		slogger := newLogger(cfg)

		db, err := store.NewDB(cfg.DSN())
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		episodeStore := store.NewEpisodeStore(db)
		client := source.NewClient(cfg.EpisodeAPIBaseURL, slogger)
		defer client.Close()

		syncer := service.NewSyncer(client, episodeStore, slogger)

		app := fiber.New(fiber.Config{
			AppName: "grandline",
		})

		app.Use(logger.New())

		app.Get("/healthz", handlers.HealthHandler(syncer))
		app.Get("/stats", handlers.StatsHandler(episodeStore))
		app.Get("/episodes/recent", handlers.RecentHandler(episodeStore))

		log.Printf("Starting server on :%s", port)
		if err := app.Listen(":" + port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&port, "port", "p", "8080", "Port to run the server on")
}
