package clickhouse

import (
	"context"
	"fmt"
	"time"

	"commodity-forecast/internal/domain"
	"commodity-forecast/internal/storage"
)

// ForecastStore implements storage.ForecastStore using ClickHouse.
// Upserts append a new version; ReplacingMergeTree(updated_at) keeps the
// latest and every read uses FINAL.
type ForecastStore struct {
	conn *Conn
}

// NewForecastStore creates a new ForecastStore.
func NewForecastStore(conn *Conn) *ForecastStore {
	return &ForecastStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ForecastStore = (*ForecastStore)(nil)

const forecastColumns = `date, asset, predicted_price, actual_price, error, updated_at`

// Upsert inserts a new version of the record for (date, asset).
func (s *ForecastStore) Upsert(ctx context.Context, r *domain.ForecastRecord) (err error) {
	if err := storage.ValidateForecast(r); err != nil {
		return err
	}
	start := time.Now()
	defer func() { observe("forecast_upsert", start, err) }()

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO forecast_results (`+forecastColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	if err := batch.Append(
		domain.DateOf(r.Date), r.Asset, r.PredictedPrice, r.ActualPrice, r.Error, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// Get retrieves the record for (asset, date). Returns ErrNotFound if not exists.
func (s *ForecastStore) Get(ctx context.Context, asset string, date time.Time) (*domain.ForecastRecord, error) {
	query := `
		SELECT ` + forecastColumns + `
		FROM forecast_results FINAL
		WHERE asset = ? AND date = ?
		LIMIT 1
	`

	var r domain.ForecastRecord
	err := s.conn.QueryRow(ctx, query, asset, domain.DateOf(date)).Scan(
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
	return s.GetAfter(ctx, asset, time.Time{})
}

// GetAfter retrieves records for an asset with date > after, ordered by date ASC.
func (s *ForecastStore) GetAfter(ctx context.Context, asset string, after time.Time) ([]*domain.ForecastRecord, error) {
	query := `
		SELECT ` + forecastColumns + `
		FROM forecast_results FINAL
		WHERE asset = ?
	`
	args := []interface{}{asset}
	if !after.IsZero() {
		query += ` AND date > ?`
		args = append(args, domain.DateOf(after))
	}
	query += ` ORDER BY date ASC`

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query forecasts: %w", err)
	}
	defer rows.Close()

	return scanForecasts(rows)
}

// GetRecent retrieves up to limit records, newest first.
func (s *ForecastStore) GetRecent(ctx context.Context, asset string, limit int) ([]*domain.ForecastRecord, error) {
	query := `
		SELECT ` + forecastColumns + `
		FROM forecast_results FINAL
	`
	var args []interface{}
	if asset != "" {
		query += ` WHERE asset = ?`
		args = append(args, asset)
	}
	query += ` ORDER BY date DESC, asset ASC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent forecasts: %w", err)
	}
	defer rows.Close()

	return scanForecasts(rows)
}

// scanForecasts scans multiple rows.
func scanForecasts(rows chRows) ([]*domain.ForecastRecord, error) {
	var records []*domain.ForecastRecord

	for rows.Next() {
		var r domain.ForecastRecord
		if err := rows.Scan(&r.Date, &r.Asset, &r.PredictedPrice, &r.ActualPrice, &r.Error, &r.UpdatedAt); err != nil {
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
