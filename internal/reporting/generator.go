package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"commodity-forecast/internal/domain"
	"commodity-forecast/internal/metrics"
	"commodity-forecast/internal/storage"
)

// Generator produces dashboards from stored data.
type Generator struct {
	results     storage.ForecastStore
	aggregator  *metrics.Aggregator
	assets      []string
	tail        int
	errorWindow int
	now         func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new dashboard generator for the given assets.
func NewGenerator(results storage.ForecastStore, assets []string) *Generator {
	return &Generator{
		results:     results,
		aggregator:  metrics.NewAggregator(results),
		assets:      assets,
		tail:        DefaultTail,
		errorWindow: DefaultErrorWindow,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithTail sets how many latest results to include. n <= 0 includes all.
func (g *Generator) WithTail(n int) *Generator {
	g.tail = n
	return g
}

// WithErrorWindow sets the error history length (last_n).
func (g *Generator) WithErrorWindow(n int) *Generator {
	if n > 0 {
		g.errorWindow = n
	}
	return g
}

// Generate produces a complete dashboard.
func (g *Generator) Generate(ctx context.Context) (*Dashboard, error) {
	recent, err := g.results.GetRecent(ctx, "", g.tail)
	if err != nil {
		return nil, fmt.Errorf("load recent results: %w", err)
	}

	history, err := g.results.GetRecent(ctx, "", g.errorWindow)
	if err != nil {
		return nil, fmt.Errorf("load error history: %w", err)
	}

	summaries, err := g.aggregator.SummarizeAll(ctx, g.assets, g.errorWindow)
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		GeneratedAt:  g.now(),
		Results:      chronological(recent),
		ErrorWindow:  g.errorWindow,
		Summaries:    summaries,
		ErrorHistory: chronological(history),
	}, nil
}

// chronological returns records sorted by date ASC, asset ASC.
func chronological(records []*domain.ForecastRecord) []*domain.ForecastRecord {
	out := make([]*domain.ForecastRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Asset < out[j].Asset
	})
	return out
}
