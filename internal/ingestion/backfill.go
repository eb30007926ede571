package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"commodity-forecast/internal/domain"
	"commodity-forecast/internal/history"
	"commodity-forecast/internal/logger"
	"commodity-forecast/internal/observability"
	"commodity-forecast/internal/storage"
)

// DefaultBatchSize is the number of history rows inserted per batch.
const DefaultBatchSize = 500

// TableReader reads the wide historical file.
type TableReader interface {
	ReadTable(ctx context.Context) (*history.Table, error)
}

// Backfiller loads the historical CSV into the history store.
type Backfiller struct {
	reader    TableReader
	store     storage.HistoryStore
	registry  *domain.Registry
	batchSize int
	log       *logger.Logger
}

// BackfillOptions contains configuration for creating a Backfiller.
type BackfillOptions struct {
	Reader    TableReader
	Store     storage.HistoryStore
	Registry  *domain.Registry
	BatchSize int
	Logger    *logger.Logger
}

// NewBackfiller creates a new historical data backfiller.
func NewBackfiller(opts BackfillOptions) *Backfiller {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Backfiller{
		reader:    opts.Reader,
		store:     opts.Store,
		registry:  opts.Registry,
		batchSize: batchSize,
		log:       log,
	}
}

// BackfillResult contains statistics from a backfill operation.
type BackfillResult struct {
	RowsInserted      int
	DuplicatesSkipped int      // dates already stored for the asset
	InvalidSkipped    int      // cells with a non-positive or non-finite price
	Errors            int      // rows that failed for reasons other than duplicates
	AssetsSkipped     []string // assets whose column is missing from the file
	Duration          time.Duration
}

// Backfill inserts every non-empty cell of every configured asset column
// whose date is not yet stored.
func (b *Backfiller) Backfill(ctx context.Context) (*BackfillResult, error) {
	start := time.Now()
	result := &BackfillResult{}

	table, err := b.reader.ReadTable(ctx)
	if err != nil {
		return result, fmt.Errorf("read historical table: %w", err)
	}
	b.log.Info("backfill started", logger.Int("dates", len(table.Dates)), logger.Int("assets", b.registry.Len()))

	for _, asset := range b.registry.Assets() {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		s, err := table.Series(asset.ID, asset.HistoricalKey)
		if errors.Is(err, history.ErrColumnNotFound) {
			b.log.Warn("asset column missing, skipping",
				logger.String("asset", asset.ID),
				logger.String("column", asset.HistoricalKey))
			result.AssetsSkipped = append(result.AssetsSkipped, asset.ID)
			continue
		}
		if err != nil {
			return result, err
		}

		rows, dupes, invalid, err := b.newRows(ctx, s)
		if err != nil {
			return result, fmt.Errorf("load existing history for %s: %w", asset.ID, err)
		}
		result.DuplicatesSkipped += dupes
		result.InvalidSkipped += invalid
		if invalid > 0 {
			b.log.Warn("invalid prices skipped", logger.String("asset", asset.ID), logger.Int("cells", invalid))
		}

		stored, batchDupes, errs := insertBatches(ctx, b.store, rows, b.batchSize, b.log)
		result.RowsInserted += stored
		result.DuplicatesSkipped += batchDupes
		result.Errors += errs
		observability.RecordHistoryRows(string(domain.SourceHistoricalCSV), stored)

		b.log.Info("asset backfilled",
			logger.String("asset", asset.ID),
			logger.Int("inserted", stored),
			logger.Int("skipped", dupes+batchDupes))
	}

	result.Duration = time.Since(start)
	status := "success"
	if result.Errors > 0 {
		status = "partial"
	}
	observability.RecordPipelineRun("backfill", status, result.Duration.Seconds())

	b.log.Info("backfill complete",
		logger.Int("inserted", result.RowsInserted),
		logger.Int("duplicates", result.DuplicatesSkipped),
		logger.Int("invalid", result.InvalidSkipped),
		logger.Int("errors", result.Errors),
		logger.Duration("duration", result.Duration))
	return result, nil
}

// newRows converts a series to rows, dropping dates already stored and
// prices that are not finite and positive.
func (b *Backfiller) newRows(ctx context.Context, s domain.AssetSeries) (rows []*domain.HistoryRow, dupes, invalid int, err error) {
	existing, err := b.store.GetByAsset(ctx, s.Asset)
	if err != nil {
		return nil, 0, 0, err
	}
	seen := make(map[string]struct{}, len(existing))
	for _, r := range existing {
		seen[domain.FormatDate(r.Date)] = struct{}{}
	}

	rows = make([]*domain.HistoryRow, 0, s.Len())
	for _, p := range s.Points {
		if !domain.ValidPrice(p.Price) {
			invalid++
			continue
		}
		key := domain.FormatDate(p.Date)
		if _, ok := seen[key]; ok {
			dupes++
			continue
		}
		seen[key] = struct{}{}
		rows = append(rows, &domain.HistoryRow{
			Date:   p.Date,
			Asset:  s.Asset,
			Price:  p.Price,
			Source: domain.SourceHistoricalCSV,
		})
	}
	return rows, dupes, invalid, nil
}

// insertBatches stores rows in batches. A batch rejected for a duplicate key
// or an invalid row is retried row by row so the remaining rows still land.
func insertBatches(ctx context.Context, store storage.HistoryStore, rows []*domain.HistoryRow, batchSize int, log *logger.Logger) (stored, dupes, errs int) {
	for i := 0; i < len(rows); i += batchSize {
		end := i + batchSize
		if end > len(rows) {
			end = len(rows)
		}

		batch := rows[i:end]
		err := store.InsertBulk(ctx, batch)
		switch {
		case err == nil:
			stored += len(batch)
		case errors.Is(err, storage.ErrDuplicateKey), errors.Is(err, storage.ErrInvalidInput):
			for _, row := range batch {
				if err := store.InsertBulk(ctx, []*domain.HistoryRow{row}); err != nil {
					if errors.Is(err, storage.ErrDuplicateKey) {
						dupes++
					} else {
						errs++
					}
				} else {
					stored++
				}
			}
		default:
			errs += len(batch)
			log.Error("store history batch failed", logger.Int("rows", len(batch)), logger.Error(err))
		}
	}
	return stored, dupes, errs
}
