package handlers_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"grandline/internal/handlers"
	"grandline/internal/model"
	"grandline/internal/service"
	"grandline/internal/store"
)

type fakeBackend struct {
	health service.Health
	stats  *store.Stats
	recent []model.StoredEpisode
}

func (f *fakeBackend) CheckHealth(ctx context.Context) service.Health { return f.health }

func (f *fakeBackend) GetStats(ctx context.Context) (*store.Stats, error) { return f.stats, nil }

func (f *fakeBackend) Recent(ctx context.Context, limit int) ([]model.StoredEpisode, error) {
	if limit < len(f.recent) {
		return f.recent[:limit], nil
	}
	return f.recent, nil
}

func newApp(b *fakeBackend) *fiber.App {
	app := fiber.New()
	app.Get("/healthz", handlers.HealthHandler(b))
	app.Get("/stats", handlers.StatsHandler(b))
	app.Get("/episodes/recent", handlers.RecentHandler(b))
	return app
}

func TestHealthHandlerHealthy(t *testing.T) {
	app := newApp(&fakeBackend{health: service.Health{SourceHealthy: true, SinkHealthy: true}})

	resp, err := app.Test(httptest.NewRequest("GET", "/healthz", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["healthy"] != true {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestHealthHandlerUnhealthySink(t *testing.T) {
	app := newApp(&fakeBackend{health: service.Health{SourceHealthy: true, SinkHealthy: false}})

	resp, err := app.Test(httptest.NewRequest("GET", "/healthz", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["sink_healthy"] != false || body["source_healthy"] != true {
		t.Fatalf("sub-checks not reported: %v", body)
	}
}

func TestStatsHandler(t *testing.T) {
	app := newApp(&fakeBackend{stats: &store.Stats{
		TotalEpisodes: 1100,
		EarliestID:    1,
		LatestID:      1100,
		LatestReleaseDate: sql.NullTime{
			Time:  time.Date(2024, 5, 12, 0, 0, 0, 0, time.UTC),
			Valid: true,
		},
		UniqueArcs:  32,
		UniqueSagas: 11,
	}})

	resp, err := app.Test(httptest.NewRequest("GET", "/stats", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["total_episodes"] != float64(1100) {
		t.Fatalf("unexpected total: %v", body["total_episodes"])
	}
	if body["latest_release_date"] != "2024-05-12" {
		t.Fatalf("unexpected latest release date: %v", body["latest_release_date"])
	}
}

func TestRecentHandler(t *testing.T) {
	app := newApp(&fakeBackend{recent: []model.StoredEpisode{
		{ID: 3, Title: "c", ReleaseDate: time.Date(1999, 11, 3, 0, 0, 0, 0, time.UTC)},
		{ID: 2, Title: "b", ReleaseDate: time.Date(1999, 10, 27, 0, 0, 0, 0, time.UTC)},
		{ID: 1, Title: "a", ReleaseDate: time.Date(1999, 10, 20, 0, 0, 0, 0, time.UTC)},
	}})

	resp, err := app.Test(httptest.NewRequest("GET", "/episodes/recent?limit=2", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	var body []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if len(body) != 2 {
		t.Fatalf("expected 2 episodes, got %d", len(body))
	}
	if body[0]["id"] != float64(3) || body[0]["release_date"] != "1999-11-03" {
		t.Fatalf("unexpected first episode: %v", body[0])
	}
}
