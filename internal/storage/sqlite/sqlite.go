// Package sqlite implements the stores on a single-file SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"commodity-forecast/internal/domain"
	"commodity-forecast/internal/observability"
)

// timeLayout is used for updated_at and created_at columns.
const timeLayout = time.RFC3339Nano

// DB wraps sql.DB for dependency injection.
type DB struct {
	*sql.DB
}

// Open opens (or creates) the SQLite database at path.
func Open(ctx context.Context, path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Single writer; WAL lets readers proceed during writes.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	return &DB{DB: db}, nil
}

// isDuplicateKeyError checks if error is a primary key or unique violation.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(domain.DateLayout, s)
}

// observe records query latency for the sqlite backend.
func observe(operation string, start time.Time, err error) {
	observability.RecordDBQuery("sqlite", operation, time.Since(start).Seconds(), err)
}
