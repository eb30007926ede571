package orchestrator

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"commodity-forecast/internal/domain"
	"commodity-forecast/internal/events"
	"commodity-forecast/internal/forecast"
	"commodity-forecast/internal/history"
	"commodity-forecast/internal/quote"
	"commodity-forecast/internal/storage"
	"commodity-forecast/internal/storage/memory"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

// seriesSource returns fixed series keyed by asset ID.
type seriesSource map[string][]domain.PricePoint

func (s seriesSource) Load(_ context.Context, asset domain.AssetConfig) (domain.AssetSeries, error) {
	points, ok := s[asset.ID]
	if !ok {
		return domain.AssetSeries{}, errors.New("no such column")
	}
	return domain.AssetSeries{Asset: asset.ID, Points: append([]domain.PricePoint(nil), points...)}, nil
}

type failingStore struct {
	storage.ForecastStore
}

func (failingStore) Upsert(context.Context, *domain.ForecastRecord) error {
	return errors.New("disk full")
}

type recordingPublisher struct {
	mu      sync.Mutex
	runID   string
	records []*domain.ForecastRecord
}

func (p *recordingPublisher) Publish(_ context.Context, r *domain.ForecastRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, r)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) WithRunID(runID string) events.Publisher {
	p.runID = runID
	return p
}

func registry(t *testing.T, ids ...string) *domain.Registry {
	t.Helper()
	assets := make([]domain.AssetConfig, len(ids))
	for i, id := range ids {
		assets[i] = domain.AssetConfig{ID: id, HistoricalKey: id, LiveKey: "live_" + id}
	}
	r, err := domain.NewRegistry(assets)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return r
}

func newOrchestrator(t *testing.T, opts Options) *Orchestrator {
	t.Helper()
	if opts.Forecaster == nil {
		opts.Forecaster = forecast.LastValue{}
	}
	o, err := New(opts)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	return o
}

func TestOrchestrator_Run_EndToEnd(t *testing.T) {
	ctx := context.Background()
	results := memory.NewForecastStore()

	orch := newOrchestrator(t, Options{
		Registry: registry(t, "GOLD"),
		History: seriesSource{
			"GOLD": {{Date: day(1), Price: 10}, {Date: day(2), Price: 11}},
		},
		Quotes:      quote.StaticSource{"live_GOLD": {Date: day(3), Price: 12}},
		ResultStore: results,
	})

	result, err := orch.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.HasFailures() {
		t.Fatalf("unexpected failures: %+v", result.Failed())
	}
	if result.RunID == "" {
		t.Error("expected run id")
	}

	out := result.Outcomes[0]
	if out.State != StateDone || out.Origin != "live" {
		t.Errorf("expected done/live, got %s/%s", out.State, out.Origin)
	}

	records, err := results.GetByAsset(ctx, "GOLD")
	if err != nil {
		t.Fatalf("get records: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	r := records[0]
	if !r.Date.Equal(day(3)) {
		t.Errorf("expected date 2024-01-03, got %s", domain.FormatDate(r.Date))
	}
	if r.PredictedPrice != 12 || r.ActualPrice != 12 || r.Error != 0 {
		t.Errorf("expected 12/12/0, got %v/%v/%v", r.PredictedPrice, r.ActualPrice, r.Error)
	}

	// Second run on the same day replaces, never duplicates.
	if _, err := orch.Run(ctx); err != nil {
		t.Fatalf("second run: %v", err)
	}
	records, _ = results.GetByAsset(ctx, "GOLD")
	if len(records) != 1 {
		t.Errorf("expected 1 record after rerun, got %d", len(records))
	}
}

func TestOrchestrator_Run_Fallback(t *testing.T) {
	ctx := context.Background()
	results := memory.NewForecastStore()

	orch := newOrchestrator(t, Options{
		Registry: registry(t, "GOLD"),
		History: seriesSource{
			"GOLD": {{Date: day(4), Price: 98}, {Date: day(5), Price: 100}},
		},
		Quotes:      quote.DisabledSource{},
		ResultStore: results,
	})

	result, err := orch.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Outcomes[0].Origin != "fallback" {
		t.Errorf("expected fallback origin, got %s", result.Outcomes[0].Origin)
	}

	r, err := results.Get(ctx, "GOLD", day(6))
	if err != nil {
		t.Fatalf("get fallback record: %v", err)
	}
	if r.ActualPrice != 100 || r.PredictedPrice != 100 {
		t.Errorf("expected 100/100, got %v/%v", r.PredictedPrice, r.ActualPrice)
	}
}

func TestOrchestrator_Run_FailureIsolation(t *testing.T) {
	ctx := context.Background()
	results := memory.NewForecastStore()

	orch := newOrchestrator(t, Options{
		Registry: registry(t, "GOLD", "SILVER", "CORN", "OIL"),
		History: seriesSource{
			"GOLD":   {{Date: day(1), Price: 10}, {Date: day(2), Price: 11}},
			"SILVER": {{Date: day(1), Price: 5}, {Date: day(1), Price: 6}},
			"OIL":    {},
		},
		Quotes: quote.StaticSource{
			"live_GOLD":   {Date: day(3), Price: 12},
			"live_SILVER": {Date: day(3), Price: 7},
		},
		ResultStore: results,
	})

	result, err := orch.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := result.Succeeded(); len(got) != 1 || got[0] != "GOLD" {
		t.Errorf("expected only GOLD to succeed, got %v", got)
	}

	failed := map[string]AssetOutcome{}
	for _, o := range result.Failed() {
		failed[o.Asset] = o
	}
	if len(failed) != 3 {
		t.Fatalf("expected 3 failures, got %d", len(failed))
	}

	if o := failed["SILVER"]; o.State != StateClean || !errors.Is(o.Err, domain.ErrDuplicateDate) {
		t.Errorf("SILVER: expected clean/ErrDuplicateDate, got %s/%v", o.State, o.Err)
	}
	if o := failed["CORN"]; o.State != StateLoadHistory {
		t.Errorf("CORN: expected load_history failure, got %s", o.State)
	}
	if o := failed["OIL"]; o.State != StateFetchLive || !errors.Is(o.Err, domain.ErrEmptySeries) {
		t.Errorf("OIL: expected fetch_live/ErrEmptySeries, got %s/%v", o.State, o.Err)
	}

	records, _ := results.GetRecent(ctx, "", 0)
	if len(records) != 1 {
		t.Errorf("expected 1 stored record, got %d", len(records))
	}
}

func TestOrchestrator_Run_PersistenceError(t *testing.T) {
	orch := newOrchestrator(t, Options{
		Registry:    registry(t, "GOLD"),
		History:     seriesSource{"GOLD": {{Date: day(1), Price: 10}}},
		Quotes:      quote.StaticSource{"live_GOLD": {Date: day(2), Price: 11}},
		ResultStore: failingStore{},
	})

	result, err := orch.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	out := result.Outcomes[0]
	if out.State != StatePersist {
		t.Fatalf("expected persist failure, got %s", out.State)
	}
	if !errors.Is(out.Err, domain.ErrPersistence) {
		t.Errorf("expected ErrPersistence, got %v", out.Err)
	}
	var perr *domain.PersistenceError
	if !errors.As(out.Err, &perr) {
		t.Fatalf("expected *PersistenceError, got %T", out.Err)
	}
	if perr.Record.Asset != "GOLD" || perr.Record.ActualPrice != 11 {
		t.Errorf("unexpected record in error: %+v", perr.Record)
	}
}

func TestOrchestrator_Run_ForecastError(t *testing.T) {
	orch := newOrchestrator(t, Options{
		Registry:    registry(t, "GOLD"),
		History:     seriesSource{"GOLD": {{Date: day(1), Price: 10}}},
		Quotes:      quote.StaticSource{"live_GOLD": {Date: day(2), Price: 11}},
		Forecaster:  forecast.NewHTTPForecaster("http://127.0.0.1:1/predict", 1, 100*time.Millisecond, nil),
		ResultStore: memory.NewForecastStore(),
	})

	result, err := orch.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	out := result.Outcomes[0]
	if out.State != StateForecast || !errors.Is(out.Err, domain.ErrForecast) {
		t.Errorf("expected forecast/ErrForecast, got %s/%v", out.State, out.Err)
	}
}

// funcForecaster adapts a function to forecast.Forecaster.
type funcForecaster func(domain.AssetSeries) (float64, error)

func (funcForecaster) Name() string { return "func" }

func (f funcForecaster) Predict(_ context.Context, s domain.AssetSeries) (float64, error) {
	return f(s)
}

func TestOrchestrator_Run_InvalidForecastOutput(t *testing.T) {
	tests := []struct {
		name  string
		model funcForecaster
	}{
		{"nan", func(domain.AssetSeries) (float64, error) { return math.NaN(), nil }},
		{"zero", func(domain.AssetSeries) (float64, error) { return 0, nil }},
		{"plain error", func(domain.AssetSeries) (float64, error) { return 0, errors.New("model offline") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := memory.NewForecastStore()
			orch := newOrchestrator(t, Options{
				Registry:    registry(t, "GOLD"),
				History:     seriesSource{"GOLD": {{Date: day(1), Price: 10}}},
				Quotes:      quote.StaticSource{"live_GOLD": {Date: day(2), Price: 11}},
				Forecaster:  tt.model,
				ResultStore: results,
			})

			result, err := orch.Run(context.Background())
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			out := result.Outcomes[0]
			if out.State != StateForecast {
				t.Errorf("expected failure in forecast, got %s", out.State)
			}
			if !errors.Is(out.Err, domain.ErrForecast) {
				t.Errorf("expected ErrForecast, got %v", out.Err)
			}
			if errors.Is(out.Err, domain.ErrPersistence) {
				t.Errorf("must not be a persistence error: %v", out.Err)
			}
			if records, _ := results.GetByAsset(context.Background(), "GOLD"); len(records) != 0 {
				t.Errorf("expected no stored records, got %d", len(records))
			}
		})
	}
}

func TestOrchestrator_Run_ForecasterPanicIsolated(t *testing.T) {
	model := funcForecaster(func(s domain.AssetSeries) (float64, error) {
		if s.Asset == "GOLD" {
			panic("model blew up")
		}
		last, _ := s.Last()
		return last.Price, nil
	})

	for _, concurrency := range []int{1, 2} {
		results := memory.NewForecastStore()
		orch := newOrchestrator(t, Options{
			Registry: registry(t, "GOLD", "SILVER"),
			History: seriesSource{
				"GOLD":   {{Date: day(1), Price: 10}},
				"SILVER": {{Date: day(1), Price: 20}},
			},
			Forecaster:  model,
			ResultStore: results,
			Concurrency: concurrency,
		})

		result, err := orch.Run(context.Background())
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		gold, silver := result.Outcomes[0], result.Outcomes[1]
		if gold.State != StateForecast || !errors.Is(gold.Err, domain.ErrForecast) {
			t.Errorf("concurrency %d: expected GOLD forecast/ErrForecast, got %s/%v", concurrency, gold.State, gold.Err)
		}
		if silver.State != StateDone {
			t.Errorf("concurrency %d: expected SILVER done, got %s (%v)", concurrency, silver.State, silver.Err)
		}
		if records, _ := results.GetByAsset(context.Background(), "SILVER"); len(records) != 1 {
			t.Errorf("concurrency %d: expected 1 SILVER record, got %d", concurrency, len(records))
		}
	}
}

func TestOrchestrator_Run_ModelLabel(t *testing.T) {
	orch := newOrchestrator(t, Options{
		Registry:    registry(t, "GOLD"),
		History:     seriesSource{"GOLD": {{Date: day(1), Price: 10}}},
		ResultStore: memory.NewForecastStore(),
		ModelName:   "time_series_baseline",
	})

	result, err := orch.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Model != "time_series_baseline" {
		t.Errorf("expected model label, got %q", result.Model)
	}
}

func TestOrchestrator_Run_RecordLiveQuotesAndPublish(t *testing.T) {
	ctx := context.Background()
	historyStore := memory.NewHistoryStore()
	err := historyStore.InsertBulk(ctx, []*domain.HistoryRow{
		{Date: day(1), Asset: "GOLD", Price: 10, Source: domain.SourceHistoricalCSV},
		{Date: day(2), Asset: "GOLD", Price: 11, Source: domain.SourceHistoricalCSV},
	})
	if err != nil {
		t.Fatalf("seed history: %v", err)
	}
	pub := &recordingPublisher{}

	orch := newOrchestrator(t, Options{
		Registry:         registry(t, "GOLD"),
		History:          history.NewStoreSource(historyStore),
		Quotes:           quote.StaticSource{"live_GOLD": {Date: day(3), Price: 12}},
		ResultStore:      memory.NewForecastStore(),
		HistoryStore:     historyStore,
		Publisher:        pub,
		RecordLiveQuotes: true,
	})

	for i := 0; i < 2; i++ {
		result, err := orch.Run(ctx)
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if result.HasFailures() {
			t.Fatalf("run %d: unexpected failures: %+v", i, result.Failed())
		}
		if pub.runID != result.RunID {
			t.Errorf("run %d: publisher run id %q, want %q", i, pub.runID, result.RunID)
		}
	}

	rows, err := historyStore.GetByAsset(ctx, "GOLD")
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 history rows, got %d", len(rows))
	}
	if rows[2].Source != domain.SourceLive || !rows[2].Date.Equal(day(3)) {
		t.Errorf("expected live row on 2024-01-03, got %+v", rows[2])
	}
	if len(pub.records) != 2 {
		t.Errorf("expected 2 published records, got %d", len(pub.records))
	}
}

func TestOrchestrator_Run_Concurrent(t *testing.T) {
	ids := []string{"A", "B", "C", "D", "E", "F"}
	src := seriesSource{}
	quotes := quote.StaticSource{}
	for i, id := range ids {
		src[id] = []domain.PricePoint{{Date: day(1), Price: float64(i + 1)}}
		quotes["live_"+id] = domain.PricePoint{Date: day(2), Price: float64(i + 2)}
	}

	orch := newOrchestrator(t, Options{
		Registry:    registry(t, ids...),
		History:     src,
		Quotes:      quotes,
		ResultStore: memory.NewForecastStore(),
		Concurrency: 3,
	})

	result, err := orch.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Outcomes) != len(ids) {
		t.Fatalf("expected %d outcomes, got %d", len(ids), len(result.Outcomes))
	}
	for i, o := range result.Outcomes {
		if o.Asset != ids[i] {
			t.Errorf("outcome %d: expected %s, got %s", i, ids[i], o.Asset)
		}
		if o.Failed() {
			t.Errorf("%s failed: %v", o.Asset, o.Err)
		}
	}
}

func TestOrchestrator_Run_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	orch := newOrchestrator(t, Options{
		Registry:    registry(t, "GOLD"),
		History:     seriesSource{"GOLD": {{Date: day(1), Price: 10}}},
		ResultStore: memory.NewForecastStore(),
	})

	result, err := orch.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !result.HasFailures() {
		t.Error("expected asset failure on cancelled context")
	}
}

func TestNew_Validation(t *testing.T) {
	reg := registry(t, "GOLD")
	tests := []struct {
		name string
		opts Options
	}{
		{"no registry", Options{History: seriesSource{}, Forecaster: forecast.LastValue{}, ResultStore: memory.NewForecastStore()}},
		{"no history", Options{Registry: reg, Forecaster: forecast.LastValue{}, ResultStore: memory.NewForecastStore()}},
		{"no forecaster", Options{Registry: reg, History: seriesSource{}, ResultStore: memory.NewForecastStore()}},
		{"no store", Options{Registry: reg, History: seriesSource{}, Forecaster: forecast.LastValue{}}},
		{"live quotes without history store", Options{
			Registry: reg, History: seriesSource{}, Forecaster: forecast.LastValue{},
			ResultStore: memory.NewForecastStore(), RecordLiveQuotes: true,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}
