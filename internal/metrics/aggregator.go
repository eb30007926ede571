package metrics

import (
	"context"
	"errors"
	"fmt"

	"commodity-forecast/internal/storage"
)

// ErrNoRecords is returned when an asset has no forecast records.
var ErrNoRecords = errors.New("no forecast records available")

// Aggregator computes error summaries from stored forecast records.
type Aggregator struct {
	store storage.ForecastStore
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(store storage.ForecastStore) *Aggregator {
	return &Aggregator{store: store}
}

// Summarize computes the error summary over the last n records of an asset.
// n <= 0 uses every record. Returns ErrNoRecords if the asset has none.
func (a *Aggregator) Summarize(ctx context.Context, asset string, lastN int) (*ErrorSummary, error) {
	records, err := a.store.GetRecent(ctx, asset, lastN)
	if err != nil {
		return nil, fmt.Errorf("load forecasts for %s: %w", asset, err)
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	return computeSummary(asset, records), nil
}

// SummarizeAll computes summaries for each asset, skipping assets without records.
func (a *Aggregator) SummarizeAll(ctx context.Context, assets []string, lastN int) ([]*ErrorSummary, error) {
	summaries := make([]*ErrorSummary, 0, len(assets))
	for _, asset := range assets {
		s, err := a.Summarize(ctx, asset, lastN)
		if errors.Is(err, ErrNoRecords) {
			continue
		}
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}
