// Package ingestion writes prices into the history store: the one-off CSV
// backfill and the recurring append of validated forecasts.
package ingestion

import (
	"context"
	"fmt"
	"time"

	"commodity-forecast/internal/domain"
	"commodity-forecast/internal/logger"
	"commodity-forecast/internal/observability"
	"commodity-forecast/internal/storage"
)

// Appender copies realized prices of stored forecasts into history.
type Appender struct {
	results  storage.ForecastStore
	history  storage.HistoryStore
	registry *domain.Registry
	log      *logger.Logger
}

// NewAppender creates a new Appender.
func NewAppender(results storage.ForecastStore, history storage.HistoryStore, registry *domain.Registry, log *logger.Logger) *Appender {
	if log == nil {
		log = logger.Nop()
	}
	return &Appender{results: results, history: history, registry: registry, log: log}
}

// AppendValidated appends every forecast record newer than the last stored
// history date for asset. Returns the number of rows appended.
// Running it again without new records appends nothing.
func (a *Appender) AppendValidated(ctx context.Context, asset string) (int, error) {
	if _, err := a.registry.Lookup(asset); err != nil {
		return 0, err
	}

	last, ok, err := a.history.LastDate(ctx, asset)
	if err != nil {
		return 0, fmt.Errorf("last history date for %s: %w", asset, err)
	}
	if !ok {
		last = time.Time{}
	}

	records, err := a.results.GetAfter(ctx, asset, last)
	if err != nil {
		return 0, fmt.Errorf("load forecasts for %s: %w", asset, err)
	}
	if len(records) == 0 {
		a.log.Info("no new validated prices", logger.String("asset", asset))
		return 0, nil
	}

	rows := make([]*domain.HistoryRow, len(records))
	for i, r := range records {
		rows[i] = &domain.HistoryRow{
			Date:   r.Date,
			Asset:  asset,
			Price:  r.ActualPrice,
			Source: domain.SourceValidatedForecast,
		}
	}

	if err := a.history.InsertBulk(ctx, rows); err != nil {
		return 0, fmt.Errorf("append history for %s: %w", asset, err)
	}
	observability.RecordHistoryRows(string(domain.SourceValidatedForecast), len(rows))

	a.log.Info("validated prices appended",
		logger.String("asset", asset),
		logger.Int("rows", len(rows)),
		logger.Date("from", rows[0].Date),
		logger.Date("to", rows[len(rows)-1].Date))
	return len(rows), nil
}

// AssetAppend is the append outcome for one asset.
type AssetAppend struct {
	Asset string
	Rows  int
	Err   error
}

// AppendResult contains per-asset outcomes in registry order.
type AppendResult struct {
	Assets []AssetAppend
}

// Total returns the number of rows appended across assets.
func (r *AppendResult) Total() int {
	n := 0
	for _, a := range r.Assets {
		n += a.Rows
	}
	return n
}

// HasFailures reports whether any asset failed.
func (r *AppendResult) HasFailures() bool {
	for _, a := range r.Assets {
		if a.Err != nil {
			return true
		}
	}
	return false
}

// AppendAll runs AppendValidated for every configured asset.
// A failing asset does not stop the others.
func (a *Appender) AppendAll(ctx context.Context) *AppendResult {
	start := time.Now()
	result := &AppendResult{}

	for _, asset := range a.registry.IDs() {
		n, err := a.AppendValidated(ctx, asset)
		if err != nil {
			a.log.Error("append failed", logger.String("asset", asset), logger.Error(err))
		}
		result.Assets = append(result.Assets, AssetAppend{Asset: asset, Rows: n, Err: err})
	}

	status := "success"
	if result.HasFailures() {
		status = "partial"
	}
	observability.RecordPipelineRun("append", status, time.Since(start).Seconds())
	if !result.HasFailures() {
		observability.MarkAppend()
	}
	return result
}
