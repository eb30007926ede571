package storage

import (
	"context"
	"time"

	"commodity-forecast/internal/domain"
)

// ForecastStore provides access to forecast_results storage.
// Key: (date, asset). Later writes replace earlier ones.
type ForecastStore interface {
	// Upsert inserts or replaces the record for (date, asset).
	// Returns ErrInvalidInput if prices are not finite and positive or error is negative.
	Upsert(ctx context.Context, r *domain.ForecastRecord) error

	// Get retrieves the record for (asset, date). Returns ErrNotFound if not exists.
	Get(ctx context.Context, asset string, date time.Time) (*domain.ForecastRecord, error)

	// GetByAsset retrieves all records for an asset, ordered by date ASC.
	GetByAsset(ctx context.Context, asset string) ([]*domain.ForecastRecord, error)

	// GetAfter retrieves records for an asset with date > after, ordered by date ASC.
	// A zero after returns all records.
	GetAfter(ctx context.Context, asset string, after time.Time) ([]*domain.ForecastRecord, error)

	// GetRecent retrieves up to limit records, newest first (date DESC, asset ASC).
	// An empty asset matches all assets. limit <= 0 means no limit.
	GetRecent(ctx context.Context, asset string, limit int) ([]*domain.ForecastRecord, error)
}

// HistoryStore provides access to price_history storage.
// Key: (date, asset). Rows are append-only.
type HistoryStore interface {
	// InsertBulk adds multiple rows atomically. Fails entire batch with
	// ErrDuplicateKey on any existing or intra-batch (date, asset).
	InsertBulk(ctx context.Context, rows []*domain.HistoryRow) error

	// GetByAsset retrieves all rows for an asset, ordered by date ASC.
	GetByAsset(ctx context.Context, asset string) ([]*domain.HistoryRow, error)

	// GetRange retrieves rows for an asset within [from, to] (inclusive), ordered by date ASC.
	GetRange(ctx context.Context, asset string, from, to time.Time) ([]*domain.HistoryRow, error)

	// LastDate returns the latest date stored for an asset. ok is false if none.
	LastDate(ctx context.Context, asset string) (date time.Time, ok bool, err error)
}
