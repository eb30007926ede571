package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"commodity-forecast/internal/domain"
	"commodity-forecast/internal/storage"
)

// ForecastStore implements storage.ForecastStore using PostgreSQL.
type ForecastStore struct {
	pool *Pool
}

// NewForecastStore creates a new ForecastStore.
func NewForecastStore(pool *Pool) *ForecastStore {
	return &ForecastStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ForecastStore = (*ForecastStore)(nil)

// Upsert inserts or replaces the record for (date, asset).
func (s *ForecastStore) Upsert(ctx context.Context, r *domain.ForecastRecord) (err error) {
	if err := storage.ValidateForecast(r); err != nil {
		return err
	}
	start := time.Now()
	defer func() { observe("forecast_upsert", start, err) }()

	query := `
		INSERT INTO forecast_results (
			date, asset, predicted_price, actual_price, error, updated_at
		) VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (date, asset) DO UPDATE SET
			predicted_price = EXCLUDED.predicted_price,
			actual_price    = EXCLUDED.actual_price,
			error           = EXCLUDED.error,
			updated_at      = EXCLUDED.updated_at
	`

	_, err = s.pool.Exec(ctx, query,
		domain.DateOf(r.Date),
		r.Asset,
		r.PredictedPrice,
		r.ActualPrice,
		r.Error,
	)
	if err != nil {
		return fmt.Errorf("upsert forecast: %w", err)
	}
	return nil
}

// Get retrieves the record for (asset, date). Returns ErrNotFound if not exists.
func (s *ForecastStore) Get(ctx context.Context, asset string, date time.Time) (*domain.ForecastRecord, error) {
	query := `
		SELECT date, asset, predicted_price, actual_price, error, updated_at
		FROM forecast_results
		WHERE asset = $1 AND date = $2
	`

	var r domain.ForecastRecord
	err := s.pool.QueryRow(ctx, query, asset, domain.DateOf(date)).Scan(
		&r.Date, &r.Asset, &r.PredictedPrice, &r.ActualPrice, &r.Error, &r.UpdatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get forecast: %w", err)
	}
	r.Date = domain.DateOf(r.Date)
	return &r, nil
}

// GetByAsset retrieves all records for an asset, ordered by date ASC.
func (s *ForecastStore) GetByAsset(ctx context.Context, asset string) ([]*domain.ForecastRecord, error) {
	query := `
		SELECT date, asset, predicted_price, actual_price, error, updated_at
		FROM forecast_results
		WHERE asset = $1
		ORDER BY date ASC
	`

	rows, err := s.pool.Query(ctx, query, asset)
	if err != nil {
		return nil, fmt.Errorf("get forecasts by asset: %w", err)
	}
	defer rows.Close()

	return scanForecasts(rows)
}

// GetAfter retrieves records for an asset with date > after, ordered by date ASC.
func (s *ForecastStore) GetAfter(ctx context.Context, asset string, after time.Time) ([]*domain.ForecastRecord, error) {
	if after.IsZero() {
		return s.GetByAsset(ctx, asset)
	}

	query := `
		SELECT date, asset, predicted_price, actual_price, error, updated_at
		FROM forecast_results
		WHERE asset = $1 AND date > $2
		ORDER BY date ASC
	`

	rows, err := s.pool.Query(ctx, query, asset, domain.DateOf(after))
	if err != nil {
		return nil, fmt.Errorf("get forecasts after date: %w", err)
	}
	defer rows.Close()

	return scanForecasts(rows)
}

// GetRecent retrieves up to limit records, newest first.
func (s *ForecastStore) GetRecent(ctx context.Context, asset string, limit int) ([]*domain.ForecastRecord, error) {
	query := `
		SELECT date, asset, predicted_price, actual_price, error, updated_at
		FROM forecast_results
		WHERE ($1 = '' OR asset = $1)
		ORDER BY date DESC, asset ASC
		LIMIT NULLIF($2, 0)
	`

	if limit < 0 {
		limit = 0
	}

	rows, err := s.pool.Query(ctx, query, asset, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent forecasts: %w", err)
	}
	defer rows.Close()

	return scanForecasts(rows)
}

// scanForecasts scans multiple rows into a slice of ForecastRecord.
func scanForecasts(rows pgx.Rows) ([]*domain.ForecastRecord, error) {
	var records []*domain.ForecastRecord

	for rows.Next() {
		var r domain.ForecastRecord

		err := rows.Scan(
			&r.Date,
			&r.Asset,
			&r.PredictedPrice,
			&r.ActualPrice,
			&r.Error,
			&r.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan forecast row: %w", err)
		}

		r.Date = domain.DateOf(r.Date)
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate forecast rows: %w", err)
	}

	return records, nil
}
