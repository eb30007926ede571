package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"commodity-forecast/internal/domain"
	"commodity-forecast/internal/storage"
)

// ForecastStore implements storage.ForecastStore using SQLite.
type ForecastStore struct {
	db *DB
}

// NewForecastStore creates a new ForecastStore.
func NewForecastStore(db *DB) *ForecastStore {
	return &ForecastStore{db: db}
}

// Compile-time interface check.
var _ storage.ForecastStore = (*ForecastStore)(nil)

const selectForecast = `SELECT date, asset, predicted_price, actual_price, error, updated_at FROM forecast_results`

// Upsert inserts or replaces the record for (date, asset).
func (s *ForecastStore) Upsert(ctx context.Context, r *domain.ForecastRecord) (err error) {
	if err := storage.ValidateForecast(r); err != nil {
		return err
	}
	start := time.Now()
	defer func() { observe("forecast_upsert", start, err) }()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO forecast_results (date, asset, predicted_price, actual_price, error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (date, asset) DO UPDATE SET
			predicted_price = excluded.predicted_price,
			actual_price    = excluded.actual_price,
			error           = excluded.error,
			updated_at      = excluded.updated_at
	`, domain.FormatDate(r.Date), r.Asset, r.PredictedPrice, r.ActualPrice, r.Error, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("upsert forecast: %w", err)
	}
	return nil
}

// Get retrieves the record for (asset, date). Returns ErrNotFound if not exists.
func (s *ForecastStore) Get(ctx context.Context, asset string, date time.Time) (*domain.ForecastRecord, error) {
	row := s.db.QueryRowContext(ctx, selectForecast+` WHERE asset = ? AND date = ?`, asset, domain.FormatDate(date))

	r, err := scanForecast(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get forecast: %w", err)
	}
	return r, nil
}

// GetByAsset retrieves all records for an asset, ordered by date ASC.
func (s *ForecastStore) GetByAsset(ctx context.Context, asset string) ([]*domain.ForecastRecord, error) {
	return s.query(ctx, selectForecast+` WHERE asset = ? ORDER BY date ASC`, asset)
}

// GetAfter retrieves records for an asset with date > after, ordered by date ASC.
func (s *ForecastStore) GetAfter(ctx context.Context, asset string, after time.Time) ([]*domain.ForecastRecord, error) {
	if after.IsZero() {
		return s.GetByAsset(ctx, asset)
	}
	return s.query(ctx, selectForecast+` WHERE asset = ? AND date > ? ORDER BY date ASC`, asset, domain.FormatDate(after))
}

// GetRecent retrieves up to limit records, newest first.
func (s *ForecastStore) GetRecent(ctx context.Context, asset string, limit int) ([]*domain.ForecastRecord, error) {
	if limit <= 0 {
		limit = -1 // SQLite: negative LIMIT means no limit
	}
	return s.query(ctx, selectForecast+` WHERE (? = '' OR asset = ?) ORDER BY date DESC, asset ASC LIMIT ?`, asset, asset, limit)
}

func (s *ForecastStore) query(ctx context.Context, query string, args ...interface{}) ([]*domain.ForecastRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query forecasts: %w", err)
	}
	defer rows.Close()

	var records []*domain.ForecastRecord
	for rows.Next() {
		r, err := scanForecast(rows)
		if err != nil {
			return nil, fmt.Errorf("scan forecast row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate forecast rows: %w", err)
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanForecast(row scanner) (*domain.ForecastRecord, error) {
	var (
		r               domain.ForecastRecord
		date, updatedAt string
	)
	if err := row.Scan(&date, &r.Asset, &r.PredictedPrice, &r.ActualPrice, &r.Error, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if r.Date, err = parseDate(date); err != nil {
		return nil, fmt.Errorf("parse date %q: %w", date, err)
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at %q: %w", updatedAt, err)
	}
	return &r, nil
}
