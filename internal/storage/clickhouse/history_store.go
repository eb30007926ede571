package clickhouse

import (
	"context"
	"fmt"
	"time"

	"commodity-forecast/internal/domain"
	"commodity-forecast/internal/storage"
)

// HistoryStore implements storage.HistoryStore using ClickHouse.
type HistoryStore struct {
	conn *Conn
}

// NewHistoryStore creates a new HistoryStore.
func NewHistoryStore(conn *Conn) *HistoryStore {
	return &HistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.HistoryStore = (*HistoryStore)(nil)

// InsertBulk adds multiple rows. Fails entire batch on duplicate (date, asset).
func (s *HistoryStore) InsertBulk(ctx context.Context, rows []*domain.HistoryRow) (err error) {
	if len(rows) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { observe("history_insert", start, err) }()

	// Check for intra-batch duplicates
	type key struct {
		asset string
		date  time.Time
	}
	seen := make(map[key]struct{}, len(rows))
	for _, r := range rows {
		if err := storage.ValidateHistoryRow(r); err != nil {
			return err
		}
		k := key{r.Asset, domain.DateOf(r.Date)}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, r := range rows {
		exists, err := s.exists(ctx, r.Asset, r.Date)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_history (date, asset, price, source, created_at)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	now := time.Now().UTC()
	for _, r := range rows {
		if err := batch.Append(domain.DateOf(r.Date), r.Asset, r.Price, string(r.Source), now); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByAsset retrieves all rows for an asset, ordered by date ASC.
func (s *HistoryStore) GetByAsset(ctx context.Context, asset string) ([]*domain.HistoryRow, error) {
	query := `
		SELECT date, asset, price, source, created_at
		FROM price_history FINAL
		WHERE asset = ?
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query, asset)
	if err != nil {
		return nil, fmt.Errorf("query history by asset: %w", err)
	}
	defer rows.Close()

	return scanHistory(rows)
}

// GetRange retrieves rows for an asset within [from, to] (inclusive).
func (s *HistoryStore) GetRange(ctx context.Context, asset string, from, to time.Time) ([]*domain.HistoryRow, error) {
	query := `
		SELECT date, asset, price, source, created_at
		FROM price_history FINAL
		WHERE asset = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query, asset, domain.DateOf(from), domain.DateOf(to))
	if err != nil {
		return nil, fmt.Errorf("query history by range: %w", err)
	}
	defer rows.Close()

	return scanHistory(rows)
}

// LastDate returns the latest date stored for an asset.
func (s *HistoryStore) LastDate(ctx context.Context, asset string) (time.Time, bool, error) {
	query := `
		SELECT count(*), max(date) FROM price_history
		WHERE asset = ?
	`

	var (
		count uint64
		last  time.Time
	)
	if err := s.conn.QueryRow(ctx, query, asset).Scan(&count, &last); err != nil {
		return time.Time{}, false, fmt.Errorf("query last history date: %w", err)
	}
	if count == 0 {
		return time.Time{}, false, nil
	}
	return domain.DateOf(last), true, nil
}

// exists checks if a row with the given key exists.
func (s *HistoryStore) exists(ctx context.Context, asset string, date time.Time) (bool, error) {
	query := `
		SELECT count(*) FROM price_history
		WHERE asset = ? AND date = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, asset, domain.DateOf(date)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanHistory scans multiple rows.
func scanHistory(rows chRows) ([]*domain.HistoryRow, error) {
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
