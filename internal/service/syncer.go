package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"grandline/internal/model"
	"grandline/internal/store"
)

// Source is the episode API surface the syncer consumes.
type Source interface {
	FetchAll(ctx context.Context) ([]model.SourceEpisode, error)
	FetchBatch(ctx context.Context, ids []int) ([]model.SourceEpisode, error)
	HealthCheck(ctx context.Context) bool
}

// Sink is the persistence surface the syncer writes to.
type Sink interface {
	UpsertEpisodes(ctx context.Context, episodes []model.StoredEpisode) (int, error)
	ExistingIDs(ctx context.Context) (map[int]struct{}, error)
	GetStats(ctx context.Context) (*store.Stats, error)
	Recent(ctx context.Context, limit int) ([]model.StoredEpisode, error)
	Ping(ctx context.Context) error
}

// SyncStats tracks one sync run.
type SyncStats struct {
	Fetched      int
	Existing     int
	New          int
	Upserted     int
	Placeholders int
	Duration     time.Duration
}

// Health is the combined reachability of source and sink.
type Health struct {
	SourceHealthy bool
	SinkHealthy   bool
}

// Healthy reports overall health: both sub-checks must pass.
func (h Health) Healthy() bool {
	return h.SourceHealthy && h.SinkHealthy
}

// Syncer drives the fetch → transform → upsert pipeline.
type Syncer struct {
	source Source
	sink   Sink
	logger *slog.Logger
}

// NewSyncer creates a new Syncer.
func NewSyncer(src Source, sink Sink, logger *slog.Logger) *Syncer {
	return &Syncer{source: src, sink: sink, logger: logger}
}

// Sync fetches the full episode collection and upserts the episodes not
// yet stored. With force set, every fetched episode is re-upserted.
// A failed run leaves previously written rows intact.
func (s *Syncer) Sync(ctx context.Context, force bool) (*SyncStats, error) {
	start := time.Now()
	stats := &SyncStats{}

	s.logger.Info("starting episode sync")
	episodes, err := s.source.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch episodes: %w", err)
	}
	stats.Fetched = len(episodes)

	stored := s.transform(episodes, stats)

	toUpsert := stored
	if !force {
		existing, err := s.sink.ExistingIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list stored episodes: %w", err)
		}
		stats.Existing = len(existing)

		toUpsert = toUpsert[:0]
		for _, ep := range stored {
			if _, ok := existing[ep.ID]; !ok {
				toUpsert = append(toUpsert, ep)
			}
		}
	}
	stats.New = len(toUpsert)

	if len(toUpsert) == 0 {
		s.logger.Info("store is up to date")
		stats.Duration = time.Since(start)
		return stats, nil
	}

	written, err := s.sink.UpsertEpisodes(ctx, toUpsert)
	stats.Upserted = written
	if err != nil {
		return stats, fmt.Errorf("failed to upsert episodes: %w", err)
	}

	stats.Duration = time.Since(start)
	s.logger.Info("sync complete",
		"fetched", stats.Fetched,
		"new", stats.New,
		"upserted", stats.Upserted,
		"duration", stats.Duration)
	return stats, nil
}

// SyncBatch fetches the given episode ids and upserts whatever came
// back. Absent or failed ids are simply not written.
func (s *Syncer) SyncBatch(ctx context.Context, ids []int) (*SyncStats, error) {
	start := time.Now()
	stats := &SyncStats{}

	s.logger.Info("starting batch sync", "requested", len(ids))
	episodes, err := s.source.FetchBatch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch episode batch: %w", err)
	}
	stats.Fetched = len(episodes)

	stored := s.transform(episodes, stats)
	stats.New = len(stored)

	written, err := s.sink.UpsertEpisodes(ctx, stored)
	stats.Upserted = written
	if err != nil {
		return stats, fmt.Errorf("failed to upsert episodes: %w", err)
	}

	stats.Duration = time.Since(start)
	s.logger.Info("batch sync complete",
		"requested", len(ids),
		"fetched", stats.Fetched,
		"upserted", stats.Upserted,
		"duration", stats.Duration)
	return stats, nil
}

func (s *Syncer) transform(episodes []model.SourceEpisode, stats *SyncStats) []model.StoredEpisode {
	stored := make([]model.StoredEpisode, 0, len(episodes))
	for _, ep := range episodes {
		se := model.ToStored(ep)
		if se.HasPlaceholders() {
			stats.Placeholders++
			s.logger.Info("episode has missing metadata, using placeholders",
				"id", se.ID, "arc", se.ArcTitle, "saga", se.SagaTitle)
		}
		stored = append(stored, se)
	}
	return stored
}

// CheckHealth probes both the episode API and the sink.
func (s *Syncer) CheckHealth(ctx context.Context) Health {
	h := Health{SourceHealthy: s.source.HealthCheck(ctx)}

	if err := s.sink.Ping(ctx); err != nil {
		s.logger.Error("sink health check failed", "error", err)
	} else {
		h.SinkHealthy = true
	}

	if !h.Healthy() {
		s.logger.Warn("health check failed",
			"source_healthy", h.SourceHealthy,
			"sink_healthy", h.SinkHealthy)
	}
	return h
}
