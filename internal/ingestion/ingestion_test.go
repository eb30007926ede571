package ingestion

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"commodity-forecast/internal/domain"
	"commodity-forecast/internal/history"
	"commodity-forecast/internal/logger"
	"commodity-forecast/internal/storage"
	"commodity-forecast/internal/storage/memory"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func testRegistry(t *testing.T) *domain.Registry {
	t.Helper()
	r, err := domain.NewRegistry([]domain.AssetConfig{
		{ID: "GOLD", HistoricalKey: "GOLD", LiveKey: "micro_gold"},
		{ID: "NATURAL_GAS", HistoricalKey: "NATURAL GAS", LiveKey: "natural_gas"},
		{ID: "LIVE_CATTLE", HistoricalKey: "LIVE CATTLE", LiveKey: "live_cattle"},
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return r
}

type stringTable string

func (s stringTable) ReadTable(ctx context.Context) (*history.Table, error) {
	return history.ParseTable(ctx, strings.NewReader(string(s)))
}

const wideCSV = `Date,GOLD,NATURAL GAS
2024-01-01,2050.5,2.61
2024-01-02,2061.0,
2024-01-03,2042.3,2.70
`

func TestBackfiller_Backfill(t *testing.T) {
	ctx := context.Background()
	store := memory.NewHistoryStore()

	b := NewBackfiller(BackfillOptions{
		Reader:    stringTable(wideCSV),
		Store:     store,
		Registry:  testRegistry(t),
		BatchSize: 2,
	})

	result, err := b.Backfill(ctx)
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if result.RowsInserted != 5 {
		t.Errorf("expected 5 rows, got %d", result.RowsInserted)
	}
	if len(result.AssetsSkipped) != 1 || result.AssetsSkipped[0] != "LIVE_CATTLE" {
		t.Errorf("expected LIVE_CATTLE skipped, got %v", result.AssetsSkipped)
	}

	gas, err := store.GetByAsset(ctx, "NATURAL_GAS")
	if err != nil {
		t.Fatalf("get gas: %v", err)
	}
	if len(gas) != 2 {
		t.Fatalf("expected 2 gas rows (blank cell skipped), got %d", len(gas))
	}
	if gas[0].Source != domain.SourceHistoricalCSV {
		t.Errorf("expected historical_csv source, got %s", gas[0].Source)
	}

	// Rerun skips every existing date.
	result, err = b.Backfill(ctx)
	if err != nil {
		t.Fatalf("second backfill: %v", err)
	}
	if result.RowsInserted != 0 {
		t.Errorf("expected 0 rows on rerun, got %d", result.RowsInserted)
	}
	if result.DuplicatesSkipped != 5 {
		t.Errorf("expected 5 duplicates skipped, got %d", result.DuplicatesSkipped)
	}
}

func TestBackfiller_ReadError(t *testing.T) {
	b := NewBackfiller(BackfillOptions{
		Reader:   stringTable("GOLD\n1\n"),
		Store:    memory.NewHistoryStore(),
		Registry: testRegistry(t),
	})

	_, err := b.Backfill(context.Background())
	if !errors.Is(err, history.ErrNoDateColumn) {
		t.Errorf("expected ErrNoDateColumn, got %v", err)
	}
}

// conflictStore rejects batches containing a date inserted behind the backfiller's back.
type conflictStore struct {
	*memory.HistoryStore
	lateRow  *domain.HistoryRow
	injected bool
}

func (s *conflictStore) InsertBulk(ctx context.Context, rows []*domain.HistoryRow) error {
	if !s.injected {
		s.injected = true
		if err := s.HistoryStore.InsertBulk(ctx, []*domain.HistoryRow{s.lateRow}); err != nil {
			return err
		}
	}
	return s.HistoryStore.InsertBulk(ctx, rows)
}

func TestInsertBatches_DuplicateFallback(t *testing.T) {
	ctx := context.Background()
	store := &conflictStore{
		HistoryStore: memory.NewHistoryStore(),
		lateRow:      &domain.HistoryRow{Date: day(2), Asset: "GOLD", Price: 1, Source: domain.SourceLive},
	}

	rows := []*domain.HistoryRow{
		{Date: day(1), Asset: "GOLD", Price: 10, Source: domain.SourceHistoricalCSV},
		{Date: day(2), Asset: "GOLD", Price: 11, Source: domain.SourceHistoricalCSV},
		{Date: day(3), Asset: "GOLD", Price: 12, Source: domain.SourceHistoricalCSV},
	}

	stored, dupes, errs := insertBatches(ctx, store, rows, 10, logger.Nop())
	if stored != 2 || dupes != 1 || errs != 0 {
		t.Errorf("expected 2/1/0, got %d/%d/%d", stored, dupes, errs)
	}
}

func TestBackfiller_InvalidPriceDoesNotDropBatch(t *testing.T) {
	ctx := context.Background()
	store := memory.NewHistoryStore()

	b := NewBackfiller(BackfillOptions{
		Reader:    stringTable("Date,GOLD\n2024-01-01,10\n2024-01-02,11\n2024-01-03,0\n2024-01-04,12\n"),
		Store:     store,
		Registry:  testRegistry(t),
		BatchSize: 500,
	})

	result, err := b.Backfill(ctx)
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if result.RowsInserted != 3 {
		t.Errorf("expected 3 rows inserted, got %d", result.RowsInserted)
	}
	if result.InvalidSkipped != 1 {
		t.Errorf("expected 1 invalid cell skipped, got %d", result.InvalidSkipped)
	}
	if result.Errors != 0 {
		t.Errorf("expected no errors, got %d", result.Errors)
	}

	rows, err := store.GetByAsset(ctx, "GOLD")
	if err != nil {
		t.Fatalf("get gold: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 stored rows, got %d", len(rows))
	}
	if rows[2].Price != 12 {
		t.Errorf("expected last stored price 12, got %v", rows[2].Price)
	}
}

func TestInsertBatches_InvalidRowFallback(t *testing.T) {
	store := memory.NewHistoryStore()
	rows := []*domain.HistoryRow{
		{Date: day(1), Asset: "GOLD", Price: 10, Source: domain.SourceHistoricalCSV},
		{Date: day(2), Asset: "GOLD", Price: -1, Source: domain.SourceHistoricalCSV},
		{Date: day(3), Asset: "GOLD", Price: 12, Source: domain.SourceHistoricalCSV},
	}

	stored, dupes, errs := insertBatches(context.Background(), store, rows, 10, logger.Nop())
	if stored != 2 || dupes != 0 || errs != 1 {
		t.Errorf("expected 2/0/1, got %d/%d/%d", stored, dupes, errs)
	}
}

func seedForecasts(t *testing.T, store storage.ForecastStore, asset string, days ...int) {
	t.Helper()
	for _, d := range days {
		r := domain.NewForecastRecord(day(d), asset, 100, float64(100+d))
		if err := store.Upsert(context.Background(), r); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
}

func TestAppender_AppendValidated(t *testing.T) {
	ctx := context.Background()
	results := memory.NewForecastStore()
	hist := memory.NewHistoryStore()
	a := NewAppender(results, hist, testRegistry(t), nil)

	err := hist.InsertBulk(ctx, []*domain.HistoryRow{
		{Date: day(2), Asset: "GOLD", Price: 99, Source: domain.SourceHistoricalCSV},
	})
	if err != nil {
		t.Fatalf("seed history: %v", err)
	}
	seedForecasts(t, results, "GOLD", 1, 2, 3, 4)

	n, err := a.AppendValidated(ctx, "GOLD")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows after 2024-01-02, got %d", n)
	}

	rows, _ := hist.GetByAsset(ctx, "GOLD")
	if len(rows) != 3 {
		t.Fatalf("expected 3 history rows, got %d", len(rows))
	}
	last := rows[2]
	if !last.Date.Equal(day(4)) || last.Price != 104 || last.Source != domain.SourceValidatedForecast {
		t.Errorf("unexpected last row: %+v", last)
	}

	// Idempotent without new records.
	n, err = a.AppendValidated(ctx, "GOLD")
	if err != nil {
		t.Fatalf("second append: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 rows on second append, got %d", n)
	}
}

func TestAppender_EmptyHistoryTakesAll(t *testing.T) {
	ctx := context.Background()
	results := memory.NewForecastStore()
	hist := memory.NewHistoryStore()
	seedForecasts(t, results, "GOLD", 5, 6)

	n, err := NewAppender(results, hist, testRegistry(t), nil).AppendValidated(ctx, "GOLD")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 rows, got %d", n)
	}
}

func TestAppender_UnknownAsset(t *testing.T) {
	a := NewAppender(memory.NewForecastStore(), memory.NewHistoryStore(), testRegistry(t), nil)
	_, err := a.AppendValidated(context.Background(), "COPPER")
	if !errors.Is(err, domain.ErrUnknownAsset) {
		t.Errorf("expected ErrUnknownAsset, got %v", err)
	}
}

type brokenHistory struct {
	*memory.HistoryStore
	asset string
}

func (s brokenHistory) LastDate(ctx context.Context, asset string) (time.Time, bool, error) {
	if asset == s.asset {
		return time.Time{}, false, errors.New("connection reset")
	}
	return s.HistoryStore.LastDate(ctx, asset)
}

func TestAppender_AppendAll_IsolatesFailures(t *testing.T) {
	ctx := context.Background()
	results := memory.NewForecastStore()
	seedForecasts(t, results, "GOLD", 1)
	seedForecasts(t, results, "LIVE_CATTLE", 1, 2)

	hist := brokenHistory{HistoryStore: memory.NewHistoryStore(), asset: "NATURAL_GAS"}
	result := NewAppender(results, hist, testRegistry(t), nil).AppendAll(ctx)

	if !result.HasFailures() {
		t.Error("expected a failure")
	}
	if result.Total() != 3 {
		t.Errorf("expected 3 rows total, got %d", result.Total())
	}
	if len(result.Assets) != 3 || result.Assets[1].Err == nil {
		t.Errorf("expected NATURAL_GAS failure in position 1, got %+v", result.Assets)
	}
}
