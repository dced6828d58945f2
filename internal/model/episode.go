package model

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DateLayout is the release date format used by the episode API and the
// episodes table.
const DateLayout = "2006-01-02"

// Placeholder titles stored when the API omits arc or saga metadata.
const (
	UnknownArc  = "Unknown Arc"
	UnknownSaga = "Unknown Saga"
)

// ValidationError reports an episode record that failed shape checks.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid episode: field %q %s", e.Field, e.Reason)
}

// Saga is a large story grouping spanning several arcs. The range fields
// are free-form text as returned by the API (the chapter range keeps the
// API's French field name on the wire).
type Saga struct {
	ID           int    `json:"id"`
	Title        string `json:"title"`
	SagaNumber   string `json:"saga_number"`
	ChapterRange string `json:"saga_chapitre"`
	VolumeRange  string `json:"saga_volume"`
	EpisodeRange string `json:"saga_episode"`
}

// Arc is a story segment within a saga.
type Arc struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Saga        Saga   `json:"saga"`
}

// SourceEpisode is an episode as received from the API. Arc and Saga are
// nil when the upstream record is incomplete, which is expected rather
// than exceptional.
type SourceEpisode struct {
	ID          int
	Title       string
	Description string
	Number      string
	Chapter     string
	ReleaseDate string
	Arc         *Arc
	Saga        *Saga
}

// StoredEpisode is the flat projection persisted to the episodes table.
// CreatedAt and UpdatedAt are assigned by the sink and only populated on
// reads.
type StoredEpisode struct {
	ID          int
	Title       string
	ReleaseDate time.Time
	ArcTitle    string
	SagaTitle   string
	CreatedAt   sql.NullTime
	UpdatedAt   sql.NullTime
}

// sourceEpisodeJSON mirrors the wire shape. Required fields are pointers
// so absence is distinguishable from zero values; arc and saga stay raw
// so a malformed optional object can be discarded without failing the
// episode.
type sourceEpisodeJSON struct {
	ID          *int            `json:"id"`
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Number      *string         `json:"number"`
	Chapter     *string         `json:"chapter"`
	ReleaseDate *string         `json:"release_date"`
	Arc         json.RawMessage `json:"arc"`
	Saga        json.RawMessage `json:"saga"`
}

// ParseSourceEpisode validates a raw API record. It returns a
// ValidationError when a required field is missing or of the wrong
// shape, or when release_date is empty or not a real YYYY-MM-DD date.
func ParseSourceEpisode(raw json.RawMessage) (SourceEpisode, error) {
	var rec sourceEpisodeJSON
	if err := json.Unmarshal(raw, &rec); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return SourceEpisode{}, &ValidationError{Field: typeErr.Field, Reason: "has the wrong type"}
		}
		return SourceEpisode{}, &ValidationError{Field: "episode", Reason: "is not a JSON object"}
	}

	for field, ok := range map[string]bool{
		"id":           rec.ID != nil,
		"title":        rec.Title != nil,
		"description":  rec.Description != nil,
		"number":       rec.Number != nil,
		"chapter":      rec.Chapter != nil,
		"release_date": rec.ReleaseDate != nil,
	} {
		if !ok {
			return SourceEpisode{}, &ValidationError{Field: field, Reason: "is missing"}
		}
	}

	if *rec.ReleaseDate == "" {
		return SourceEpisode{}, &ValidationError{Field: "release_date", Reason: "is empty"}
	}
	if _, err := time.Parse(DateLayout, *rec.ReleaseDate); err != nil {
		return SourceEpisode{}, &ValidationError{
			Field:  "release_date",
			Reason: fmt.Sprintf("must be YYYY-MM-DD, got %q", *rec.ReleaseDate),
		}
	}

	return SourceEpisode{
		ID:          *rec.ID,
		Title:       *rec.Title,
		Description: *rec.Description,
		Number:      *rec.Number,
		Chapter:     *rec.Chapter,
		ReleaseDate: *rec.ReleaseDate,
		Arc:         decodeArc(rec.Arc),
		Saga:        decodeSaga(rec.Saga),
	}, nil
}

func decodeArc(raw json.RawMessage) *Arc {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var a Arc
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil
	}
	return &a
}

func decodeSaga(raw json.RawMessage) *Saga {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var s Saga
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return &s
}

// ToStored projects a valid SourceEpisode onto its stored form. The
// projection is deterministic and never fails: ParseSourceEpisode has
// already proven the date parses, and missing arc/saga metadata becomes
// the placeholder titles.
func ToStored(e SourceEpisode) StoredEpisode {
	releaseDate, _ := time.Parse(DateLayout, e.ReleaseDate)

	arcTitle := UnknownArc
	if e.Arc != nil {
		arcTitle = e.Arc.Title
	}
	sagaTitle := UnknownSaga
	if e.Saga != nil {
		sagaTitle = e.Saga.Title
	}

	return StoredEpisode{
		ID:          e.ID,
		Title:       e.Title,
		ReleaseDate: releaseDate,
		ArcTitle:    arcTitle,
		SagaTitle:   sagaTitle,
	}
}

// HasPlaceholders reports whether the stored episode was built from a
// source record with missing arc or saga metadata.
func (e StoredEpisode) HasPlaceholders() bool {
	return e.ArcTitle == UnknownArc || e.SagaTitle == UnknownSaga
}

// SinkRecord flattens the episode into the key-value shape the sink
// upsert expects, with the release date rendered back to ISO-8601.
func (e StoredEpisode) SinkRecord() map[string]any {
	return map[string]any{
		"id":           e.ID,
		"title":        e.Title,
		"release_date": e.ReleaseDate.Format(DateLayout),
		"arc_title":    e.ArcTitle,
		"saga_title":   e.SagaTitle,
	}
}
