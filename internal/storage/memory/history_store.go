package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"commodity-forecast/internal/domain"
	"commodity-forecast/internal/storage"
)

// HistoryStore is an in-memory implementation of storage.HistoryStore.
type HistoryStore struct {
	mu   sync.RWMutex
	data map[string]*domain.HistoryRow // keyed by asset|date
}

// NewHistoryStore creates a new in-memory history store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{
		data: make(map[string]*domain.HistoryRow),
	}
}

// InsertBulk adds multiple rows atomically. Fails entire batch on any duplicate.
func (s *HistoryStore) InsertBulk(_ context.Context, rows []*domain.HistoryRow) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(rows))

	// First pass: validate and check for duplicates (existing + intra-batch)
	for _, r := range rows {
		if err := storage.ValidateHistoryRow(r); err != nil {
			return err
		}
		key := recordKey(r.Asset, r.Date)

		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	now := time.Now().UTC()
	for _, r := range rows {
		copy := *r
		copy.Date = domain.DateOf(r.Date)
		copy.CreatedAt = now
		s.data[recordKey(copy.Asset, copy.Date)] = &copy
	}

	return nil
}

// GetByAsset retrieves all rows for an asset, ordered by date ASC.
func (s *HistoryStore) GetByAsset(_ context.Context, asset string) ([]*domain.HistoryRow, error) {
	return s.filter(asset, func(*domain.HistoryRow) bool { return true }), nil
}

// GetRange retrieves rows for an asset within [from, to] (inclusive).
func (s *HistoryStore) GetRange(_ context.Context, asset string, from, to time.Time) ([]*domain.HistoryRow, error) {
	from, to = domain.DateOf(from), domain.DateOf(to)
	return s.filter(asset, func(r *domain.HistoryRow) bool {
		return !r.Date.Before(from) && !r.Date.After(to)
	}), nil
}

// LastDate returns the latest date stored for an asset.
func (s *HistoryStore) LastDate(_ context.Context, asset string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last time.Time
	found := false
	for _, r := range s.data {
		if r.Asset == asset && (!found || r.Date.After(last)) {
			last = r.Date
			found = true
		}
	}
	return last, found, nil
}

func (s *HistoryStore) filter(asset string, keep func(*domain.HistoryRow) bool) []*domain.HistoryRow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.HistoryRow
	for _, r := range s.data {
		if r.Asset == asset && keep(r) {
			copy := *r
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result
}

var _ storage.HistoryStore = (*HistoryStore)(nil)
