package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"commodity-forecast/internal/domain"
	"commodity-forecast/internal/storage"
)

// HistoryStore implements storage.HistoryStore using PostgreSQL.
type HistoryStore struct {
	pool *Pool
}

// NewHistoryStore creates a new HistoryStore.
func NewHistoryStore(pool *Pool) *HistoryStore {
	return &HistoryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.HistoryStore = (*HistoryStore)(nil)

// InsertBulk adds multiple rows atomically. Fails entire batch on any duplicate.
func (s *HistoryStore) InsertBulk(ctx context.Context, rows []*domain.HistoryRow) (err error) {
	if len(rows) == 0 {
		return nil
	}
	for _, r := range rows {
		if err := storage.ValidateHistoryRow(r); err != nil {
			return err
		}
	}
	start := time.Now()
	defer func() { observe("history_insert", start, err) }()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO price_history (date, asset, price, source)
		VALUES ($1, $2, $3, $4)
	`

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(query, domain.DateOf(r.Date), r.Asset, r.Price, string(r.Source))
	}

	results := tx.SendBatch(ctx, batch)
	for range rows {
		if _, err := results.Exec(); err != nil {
			results.Close()
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert history in bulk: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByAsset retrieves all rows for an asset, ordered by date ASC.
func (s *HistoryStore) GetByAsset(ctx context.Context, asset string) ([]*domain.HistoryRow, error) {
	query := `
		SELECT date, asset, price, source, created_at
		FROM price_history
		WHERE asset = $1
		ORDER BY date ASC
	`

	rows, err := s.pool.Query(ctx, query, asset)
	if err != nil {
		return nil, fmt.Errorf("get history by asset: %w", err)
	}
	defer rows.Close()

	return scanHistory(rows)
}

// GetRange retrieves rows for an asset within [from, to] (inclusive).
func (s *HistoryStore) GetRange(ctx context.Context, asset string, from, to time.Time) ([]*domain.HistoryRow, error) {
	query := `
		SELECT date, asset, price, source, created_at
		FROM price_history
		WHERE asset = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`

	rows, err := s.pool.Query(ctx, query, asset, domain.DateOf(from), domain.DateOf(to))
	if err != nil {
		return nil, fmt.Errorf("get history by range: %w", err)
	}
	defer rows.Close()

	return scanHistory(rows)
}

// LastDate returns the latest date stored for an asset.
func (s *HistoryStore) LastDate(ctx context.Context, asset string) (time.Time, bool, error) {
	query := `SELECT MAX(date) FROM price_history WHERE asset = $1`

	var last *time.Time
	if err := s.pool.QueryRow(ctx, query, asset).Scan(&last); err != nil {
		return time.Time{}, false, fmt.Errorf("get last history date: %w", err)
	}
	if last == nil {
		return time.Time{}, false, nil
	}
	return domain.DateOf(*last), true, nil
}

// scanHistory scans multiple rows into a slice of HistoryRow.
func scanHistory(rows pgx.Rows) ([]*domain.HistoryRow, error) {
	var result []*domain.HistoryRow

	for rows.Next() {
		var (
			r      domain.HistoryRow
			source string
		)

		if err := rows.Scan(&r.Date, &r.Asset, &r.Price, &source, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}

		r.Date = domain.DateOf(r.Date)
		r.Source = domain.SourceTag(source)
		result = append(result, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}

	return result, nil
}
