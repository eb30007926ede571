package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"commodity-forecast/internal/domain"
	"commodity-forecast/internal/storage"
)

// HistoryStore implements storage.HistoryStore using SQLite.
type HistoryStore struct {
	db *DB
}

// NewHistoryStore creates a new HistoryStore.
func NewHistoryStore(db *DB) *HistoryStore {
	return &HistoryStore{db: db}
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO price_history (date, asset, price, source, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := formatTime(time.Now())
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, domain.FormatDate(r.Date), r.Asset, r.Price, string(r.Source), now); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert history in bulk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByAsset retrieves all rows for an asset, ordered by date ASC.
func (s *HistoryStore) GetByAsset(ctx context.Context, asset string) ([]*domain.HistoryRow, error) {
	return s.query(ctx, `
		SELECT date, asset, price, source, created_at FROM price_history
		WHERE asset = ? ORDER BY date ASC
	`, asset)
}

// GetRange retrieves rows for an asset within [from, to] (inclusive).
func (s *HistoryStore) GetRange(ctx context.Context, asset string, from, to time.Time) ([]*domain.HistoryRow, error) {
	return s.query(ctx, `
		SELECT date, asset, price, source, created_at FROM price_history
		WHERE asset = ? AND date >= ? AND date <= ? ORDER BY date ASC
	`, asset, domain.FormatDate(from), domain.FormatDate(to))
}

// LastDate returns the latest date stored for an asset.
func (s *HistoryStore) LastDate(ctx context.Context, asset string) (time.Time, bool, error) {
	var last sql.NullString
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(date) FROM price_history WHERE asset = ?`, asset).Scan(&last); err != nil {
		return time.Time{}, false, fmt.Errorf("get last history date: %w", err)
	}
	if !last.Valid {
		return time.Time{}, false, nil
	}
	d, err := parseDate(last.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse last date %q: %w", last.String, err)
	}
	return d, true, nil
}

func (s *HistoryStore) query(ctx context.Context, query string, args ...interface{}) ([]*domain.HistoryRow, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var result []*domain.HistoryRow
	for rows.Next() {
		var (
			r                       domain.HistoryRow
			date, source, createdAt string
		)
		if err := rows.Scan(&date, &r.Asset, &r.Price, &source, &createdAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		if r.Date, err = parseDate(date); err != nil {
			return nil, fmt.Errorf("parse date %q: %w", date, err)
		}
		if r.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
		}
		r.Source = domain.SourceTag(source)
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return result, nil
}
