package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"grandline/internal/model"
	"grandline/internal/service"
	"grandline/internal/store"
)

type healthChecker interface {
	CheckHealth(ctx context.Context) service.Health
}

type statsProvider interface {
	GetStats(ctx context.Context) (*store.Stats, error)
}

type recentProvider interface {
	Recent(ctx context.Context, limit int) ([]model.StoredEpisode, error)
}

// HealthHandler reports source and sink reachability. It answers 503
// when either sub-check fails so load balancers can act on it.
func HealthHandler(checker healthChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		h := checker.CheckHealth(c.Context())

		status := fiber.StatusOK
		if !h.Healthy() {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{
			"healthy":        h.Healthy(),
			"source_healthy": h.SourceHealthy,
			"sink_healthy":   h.SinkHealthy,
			"timestamp":      time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// StatsHandler reports the aggregate state of the episodes table.
func StatsHandler(stats statsProvider) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := stats.GetStats(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}

		var latestRelease *string
		if st.LatestReleaseDate.Valid {
			s := st.LatestReleaseDate.Time.Format(model.DateLayout)
			latestRelease = &s
		}
		return c.JSON(fiber.Map{
			"total_episodes":      st.TotalEpisodes,
			"earliest_episode":    st.EarliestID,
			"latest_episode":      st.LatestID,
			"latest_release_date": latestRelease,
			"unique_arcs":         st.UniqueArcs,
			"unique_sagas":        st.UniqueSagas,
		})
	}
}

// RecentHandler lists the most recently numbered episodes.
func RecentHandler(recent recentProvider) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 3)
		if limit < 1 || limit > 100 {
			limit = 3
		}

		episodes, err := recent.Recent(c.Context(), limit)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}

		out := make([]fiber.Map, 0, len(episodes))
		for _, ep := range episodes {
			out = append(out, fiber.Map(ep.SinkRecord()))
		}
		return c.JSON(out)
	}
}
