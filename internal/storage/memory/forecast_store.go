package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"commodity-forecast/internal/domain"
	"commodity-forecast/internal/storage"
)

// ForecastStore is an in-memory implementation of storage.ForecastStore.
type ForecastStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ForecastRecord // keyed by asset|date
}

// NewForecastStore creates a new in-memory forecast store.
func NewForecastStore() *ForecastStore {
	return &ForecastStore{
		data: make(map[string]*domain.ForecastRecord),
	}
}

// recordKey generates a unique key for (asset, date).
func recordKey(asset string, date time.Time) string {
	return fmt.Sprintf("%s|%s", asset, domain.FormatDate(date))
}

// Upsert inserts or replaces the record for (date, asset).
func (s *ForecastStore) Upsert(_ context.Context, r *domain.ForecastRecord) error {
	if err := storage.ValidateForecast(r); err != nil {
		return err
	}

	copy := *r
	copy.Date = domain.DateOf(r.Date)
	copy.UpdatedAt = time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[recordKey(copy.Asset, copy.Date)] = &copy
	return nil
}

// Get retrieves the record for (asset, date). Returns ErrNotFound if not exists.
func (s *ForecastStore) Get(_ context.Context, asset string, date time.Time) (*domain.ForecastRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data[recordKey(asset, date)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *r
	return &copy, nil
}

// GetByAsset retrieves all records for an asset, ordered by date ASC.
func (s *ForecastStore) GetByAsset(ctx context.Context, asset string) ([]*domain.ForecastRecord, error) {
	return s.GetAfter(ctx, asset, time.Time{})
}

// GetAfter retrieves records for an asset with date > after, ordered by date ASC.
func (s *ForecastStore) GetAfter(_ context.Context, asset string, after time.Time) ([]*domain.ForecastRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ForecastRecord
	for _, r := range s.data {
		if r.Asset != asset {
			continue
		}
		if !after.IsZero() && !r.Date.After(domain.DateOf(after)) {
			continue
		}
		copy := *r
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})

	return result, nil
}

// GetRecent retrieves up to limit records, newest first.
func (s *ForecastStore) GetRecent(_ context.Context, asset string, limit int) ([]*domain.ForecastRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ForecastRecord
	for _, r := range s.data {
		if asset != "" && r.Asset != asset {
			continue
		}
		copy := *r
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.After(result[j].Date)
		}
		return result[i].Asset < result[j].Asset
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

var _ storage.ForecastStore = (*ForecastStore)(nil)
