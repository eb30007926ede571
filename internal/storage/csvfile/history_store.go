package csvfile

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"commodity-forecast/internal/domain"
	"commodity-forecast/internal/storage"
)

var historyHeader = []string{"date", "asset", "price", "source", "created_at"}

// HistoryStore implements storage.HistoryStore on history.csv.
type HistoryStore struct {
	mu   sync.Mutex
	path string
}

// NewHistoryStore creates a store writing dir/history.csv.
func NewHistoryStore(dir string) *HistoryStore {
	return &HistoryStore{path: filepath.Join(dir, HistoryFile)}
}

// Compile-time interface check.
var _ storage.HistoryStore = (*HistoryStore)(nil)

// InsertBulk appends rows. Fails entire batch on any duplicate (date, asset).
func (s *HistoryStore) InsertBulk(_ context.Context, rows []*domain.HistoryRow) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.load()
	if err != nil {
		return err
	}

	keys := make(map[string]struct{}, len(existing)+len(rows))
	for _, r := range existing {
		keys[r.Asset+"|"+domain.FormatDate(r.Date)] = struct{}{}
	}
	for _, r := range rows {
		if err := storage.ValidateHistoryRow(r); err != nil {
			return err
		}
		key := r.Asset + "|" + domain.FormatDate(r.Date)
		if _, exists := keys[key]; exists {
			return storage.ErrDuplicateKey
		}
		keys[key] = struct{}{}
	}

	now := time.Now().UTC()
	for _, r := range rows {
		copy := *r
		copy.Date = domain.DateOf(r.Date)
		copy.CreatedAt = now
		existing = append(existing, &copy)
	}

	sort.SliceStable(existing, func(i, j int) bool {
		if existing[i].Asset != existing[j].Asset {
			return existing[i].Asset < existing[j].Asset
		}
		return existing[i].Date.Before(existing[j].Date)
	})

	out := make([][]string, len(existing))
	for i, r := range existing {
		out[i] = []string{
			domain.FormatDate(r.Date),
			r.Asset,
			formatFloat(r.Price),
			string(r.Source),
			r.CreatedAt.UTC().Format(timeLayout),
		}
	}
	if err := writeAll(s.path, historyHeader, out); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

// GetByAsset retrieves all rows for an asset, ordered by date ASC.
func (s *HistoryStore) GetByAsset(_ context.Context, asset string) ([]*domain.HistoryRow, error) {
	return s.filter(asset, func(*domain.HistoryRow) bool { return true })
}

// GetRange retrieves rows for an asset within [from, to] (inclusive).
func (s *HistoryStore) GetRange(_ context.Context, asset string, from, to time.Time) ([]*domain.HistoryRow, error) {
	from, to = domain.DateOf(from), domain.DateOf(to)
	return s.filter(asset, func(r *domain.HistoryRow) bool {
		return !r.Date.Before(from) && !r.Date.After(to)
	})
}

// LastDate returns the latest date stored for an asset.
func (s *HistoryStore) LastDate(ctx context.Context, asset string) (time.Time, bool, error) {
	rows, err := s.GetByAsset(ctx, asset)
	if err != nil || len(rows) == 0 {
		return time.Time{}, false, err
	}
	return rows[len(rows)-1].Date, true, nil
}

func (s *HistoryStore) filter(asset string, keep func(*domain.HistoryRow) bool) ([]*domain.HistoryRow, error) {
	s.mu.Lock()
	all, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var result []*domain.HistoryRow
	for _, r := range all {
		if r.Asset == asset && keep(r) {
			result = append(result, r)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

// load parses the file. Caller holds mu.
func (s *HistoryStore) load() ([]*domain.HistoryRow, error) {
	rows, err := readAll(s.path, historyHeader)
	if err != nil {
		return nil, err
	}

	result := make([]*domain.HistoryRow, 0, len(rows))
	for i, row := range rows {
		date, err := domain.ParseDate(row[0])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: parse date: %w", HistoryFile, i+2, err)
		}
		price, err := parseFloat(row[2])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: parse price: %w", HistoryFile, i+2, err)
		}
		r := &domain.HistoryRow{Date: date, Asset: row[1], Price: price, Source: domain.SourceTag(row[3])}
		if row[4] != "" {
			if r.CreatedAt, err = time.Parse(timeLayout, row[4]); err != nil {
				return nil, fmt.Errorf("%s line %d: parse created_at: %w", HistoryFile, i+2, err)
			}
		}
		result = append(result, r)
	}
	return result, nil
}
