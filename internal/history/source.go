// Package history loads historical price series for an asset.
package history

import (
	"context"
	"fmt"

	"commodity-forecast/internal/domain"
	"commodity-forecast/internal/storage"
)

// Source returns the historical series of one asset.
type Source interface {
	Load(ctx context.Context, asset domain.AssetConfig) (domain.AssetSeries, error)
}

// StoreSource reads history persisted in a HistoryStore.
// Rows are keyed by asset ID.
type StoreSource struct {
	store storage.HistoryStore
}

// NewStoreSource creates a StoreSource.
func NewStoreSource(store storage.HistoryStore) *StoreSource {
	return &StoreSource{store: store}
}

// Load returns the stored series ordered by date. An asset without rows
// yields an empty series.
func (s *StoreSource) Load(ctx context.Context, asset domain.AssetConfig) (domain.AssetSeries, error) {
	rows, err := s.store.GetByAsset(ctx, asset.ID)
	if err != nil {
		return domain.AssetSeries{}, fmt.Errorf("load history for %s: %w", asset.ID, err)
	}

	series := domain.AssetSeries{Asset: asset.ID, Points: make([]domain.PricePoint, 0, len(rows))}
	for _, r := range rows {
		series.Points = append(series.Points, r.Point())
	}
	return series, nil
}

var (
	_ Source = (*StoreSource)(nil)
	_ Source = (*CSVSource)(nil)
)
