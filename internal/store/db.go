package store

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// SinkError reports a failed operation against the episodes database.
type SinkError struct {
	Op  string
	Err error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }

// NewDB opens a Postgres connection pool and verifies connectivity.
func NewDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}
