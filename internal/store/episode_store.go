package store

import (
	"context"
	"database/sql"
	"fmt"

	"grandline/internal/model"
)

// Stats summarizes the episodes table.
type Stats struct {
	TotalEpisodes     int
	EarliestID        int
	LatestID          int
	LatestReleaseDate sql.NullTime
	UniqueArcs        int
	UniqueSagas       int
}

// EpisodeStore handles database operations for episodes.
type EpisodeStore struct {
	db *sql.DB
}

// NewEpisodeStore creates a new EpisodeStore.
func NewEpisodeStore(db *sql.DB) *EpisodeStore {
	return &EpisodeStore{db: db}
}

// Ping probes sink connectivity.
func (s *EpisodeStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &SinkError{Op: "ping database", Err: err}
	}
	return nil
}

// UpsertEpisodes inserts or replaces episodes keyed by id. Re-running
// with unchanged data only advances updated_at. It returns the number
// of rows written before any failure; previously written rows stay put.
func (s *EpisodeStore) UpsertEpisodes(ctx context.Context, episodes []model.StoredEpisode) (int, error) {
	if len(episodes) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO episodes (id, title, release_date, arc_title, saga_title)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			release_date = EXCLUDED.release_date,
			arc_title = EXCLUDED.arc_title,
			saga_title = EXCLUDED.saga_title,
			updated_at = now()
	`

	written := 0
	for _, ep := range episodes {
		_, err := s.db.ExecContext(ctx, query,
			ep.ID,
			ep.Title,
			ep.ReleaseDate.Format(model.DateLayout),
			ep.ArcTitle,
			ep.SagaTitle,
		)
		if err != nil {
			return written, &SinkError{Op: fmt.Sprintf("upsert episode %d", ep.ID), Err: err}
		}
		written++
	}
	return written, nil
}

// ExistingIDs returns the set of episode ids already stored.
func (s *EpisodeStore) ExistingIDs(ctx context.Context) (map[int]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM episodes`)
	if err != nil {
		return nil, &SinkError{Op: "list episode ids", Err: err}
	}
	defer rows.Close()

	ids := make(map[int]struct{})
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, &SinkError{Op: "scan episode id", Err: err}
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, &SinkError{Op: "list episode ids", Err: err}
	}
	return ids, nil
}

// GetByID retrieves one stored episode, or nil when absent.
func (s *EpisodeStore) GetByID(ctx context.Context, id int) (*model.StoredEpisode, error) {
	query := `
		SELECT id, title, release_date, arc_title, saga_title, created_at, updated_at
		FROM episodes
		WHERE id = $1
	`

	var ep model.StoredEpisode
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&ep.ID,
		&ep.Title,
		&ep.ReleaseDate,
		&ep.ArcTitle,
		&ep.SagaTitle,
		&ep.CreatedAt,
		&ep.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &SinkError{Op: fmt.Sprintf("get episode %d", id), Err: err}
	}
	return &ep, nil
}

// GetStats computes the aggregate view of the episodes table in a
// single query.
func (s *EpisodeStore) GetStats(ctx context.Context) (*Stats, error) {
	query := `
		SELECT COUNT(*),
		       COALESCE(MIN(id), 0),
		       COALESCE(MAX(id), 0),
		       MAX(release_date),
		       COUNT(DISTINCT arc_title),
		       COUNT(DISTINCT saga_title)
		FROM episodes
	`

	var st Stats
	err := s.db.QueryRowContext(ctx, query).Scan(
		&st.TotalEpisodes,
		&st.EarliestID,
		&st.LatestID,
		&st.LatestReleaseDate,
		&st.UniqueArcs,
		&st.UniqueSagas,
	)
	if err != nil {
		return nil, &SinkError{Op: "compute episode stats", Err: err}
	}
	return &st, nil
}

// Recent returns the most recent episodes ordered by id descending.
func (s *EpisodeStore) Recent(ctx context.Context, limit int) ([]model.StoredEpisode, error) {
	query := `
		SELECT id, title, release_date, arc_title, saga_title, created_at, updated_at
		FROM episodes
		ORDER BY id DESC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, &SinkError{Op: "list recent episodes", Err: err}
	}
	defer rows.Close()

	var episodes []model.StoredEpisode
	for rows.Next() {
		var ep model.StoredEpisode
		err := rows.Scan(
			&ep.ID,
			&ep.Title,
			&ep.ReleaseDate,
			&ep.ArcTitle,
			&ep.SagaTitle,
			&ep.CreatedAt,
			&ep.UpdatedAt,
		)
		if err != nil {
			return nil, &SinkError{Op: "scan recent episode", Err: err}
		}
		episodes = append(episodes, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, &SinkError{Op: "list recent episodes", Err: err}
	}
	return episodes, nil
}
