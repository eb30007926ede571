// Package orchestrator runs the daily forecast pipeline.
// Per asset: load history → fetch live → merge → clean → forecast → evaluate → persist.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"commodity-forecast/internal/domain"
	"commodity-forecast/internal/events"
	"commodity-forecast/internal/forecast"
	"commodity-forecast/internal/history"
	"commodity-forecast/internal/logger"
	"commodity-forecast/internal/observability"
	"commodity-forecast/internal/quote"
	"commodity-forecast/internal/series"
	"commodity-forecast/internal/storage"
)

// Orchestrator coordinates one pipeline run over every configured asset.
type Orchestrator struct {
	registry   *domain.Registry
	history    history.Source
	quotes     quote.Source
	forecaster forecast.Forecaster
	results    storage.ForecastStore

	// Optional
	historyStore storage.HistoryStore
	publisher    events.Publisher

	stepDays         int
	fetchTimeout     time.Duration
	concurrency      int
	recordLiveQuotes bool
	modelName        string

	log *logger.Logger
	now func() time.Time
}

// Options for creating Orchestrator.
type Options struct {
	// Required
	Registry    *domain.Registry
	History     history.Source
	Quotes      quote.Source
	Forecaster  forecast.Forecaster
	ResultStore storage.ForecastStore

	// HistoryStore receives live quotes when RecordLiveQuotes is set.
	HistoryStore storage.HistoryStore
	// Publisher receives every persisted record. Nil disables publishing.
	Publisher events.Publisher

	StepDays         int           // days between observations, default 1
	FetchTimeout     time.Duration // per-asset live fetch bound, 0 = none
	Concurrency      int           // assets processed in parallel, default 1
	RecordLiveQuotes bool

	ModelName string // run label, e.g. time_series_baseline

	Logger *logger.Logger
	Now    func() time.Time
}

// New creates a new Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	switch {
	case opts.Registry == nil:
		return nil, errors.New("orchestrator: registry is required")
	case opts.History == nil:
		return nil, errors.New("orchestrator: history source is required")
	case opts.Forecaster == nil:
		return nil, errors.New("orchestrator: forecaster is required")
	case opts.ResultStore == nil:
		return nil, errors.New("orchestrator: result store is required")
	case opts.RecordLiveQuotes && opts.HistoryStore == nil:
		return nil, errors.New("orchestrator: history store is required to record live quotes")
	}

	o := &Orchestrator{
		registry:         opts.Registry,
		history:          opts.History,
		quotes:           opts.Quotes,
		forecaster:       opts.Forecaster,
		results:          opts.ResultStore,
		historyStore:     opts.HistoryStore,
		publisher:        opts.Publisher,
		stepDays:         opts.StepDays,
		fetchTimeout:     opts.FetchTimeout,
		concurrency:      opts.Concurrency,
		recordLiveQuotes: opts.RecordLiveQuotes,
		modelName:        opts.ModelName,
		log:              opts.Logger,
		now:              opts.Now,
	}
	if o.quotes == nil {
		o.quotes = quote.DisabledSource{}
	}
	if o.publisher == nil {
		o.publisher = events.Noop{}
	}
	if o.stepDays < 1 {
		o.stepDays = 1
	}
	if o.concurrency < 1 {
		o.concurrency = 1
	}
	if o.log == nil {
		o.log = logger.Nop()
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o, nil
}

// Run processes every asset. Per-asset failures are collected in the result,
// never returned. The error is non-nil only if ctx was cancelled.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{
		RunID:     uuid.NewString(),
		Model:     o.modelName,
		StartedAt: o.now().UTC(),
	}
	log := o.log.With(logger.String("run_id", result.RunID))

	publisher := o.publisher
	if rs, ok := publisher.(events.RunScoped); ok {
		publisher = rs.WithRunID(result.RunID)
	}

	assets := o.registry.Assets()
	result.Outcomes = make([]AssetOutcome, len(assets))

	log.Info("pipeline started",
		logger.Strings("assets", o.registry.IDs()),
		logger.String("model", o.forecaster.Name()),
		logger.String("model_name", o.modelName),
		logger.Int("concurrency", o.concurrency))

	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, asset := range assets {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					result.Outcomes[i] = AssetOutcome{Asset: asset.ID, State: StateFailed, Err: fmt.Errorf("panic: %v", r)}
					log.Error("asset panicked", logger.String("asset", asset.ID), logger.Any("panic", r))
				}
			}()
			result.Outcomes[i] = o.runAsset(ctx, asset, publisher, log.With(logger.String("asset", asset.ID)))
			return nil
		})
	}
	_ = g.Wait()

	result.Duration = o.now().Sub(result.StartedAt)

	status := "success"
	if result.HasFailures() {
		status = "partial"
		if len(result.Succeeded()) == 0 {
			status = "failed"
		}
	}
	observability.RecordPipelineRun("forecast", status, result.Duration.Seconds())

	log.Info("pipeline completed",
		logger.Strings("succeeded", result.Succeeded()),
		logger.Int("failed", len(result.Failed())),
		logger.Duration("duration", result.Duration))

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("pipeline interrupted: %w", err)
	}
	return result, nil
}

// runAsset walks the state machine for one asset.
func (o *Orchestrator) runAsset(ctx context.Context, asset domain.AssetConfig, publisher events.Publisher, log *logger.Logger) AssetOutcome {
	start := time.Now()
	out := AssetOutcome{Asset: asset.ID, State: StateLoadHistory}

	fail := func(err error) AssetOutcome {
		out.Err = err
		out.Duration = time.Since(start)
		observability.RecordAssetOutcome(asset.ID, string(out.State))
		log.Error("asset failed", logger.String("state", string(out.State)), logger.Error(err))
		return out
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	historical, err := o.history.Load(ctx, asset)
	if err != nil {
		return fail(fmt.Errorf("load history: %w", err))
	}
	// Series are keyed by asset ID regardless of the source column name.
	historical.Asset = asset.ID

	out.State = StateFetchLive
	today, err := series.ResolveTodayPrice(ctx, asset, o.quotes, historical, o.stepDays, o.fetchTimeout)
	if err != nil {
		return fail(err)
	}
	out.Origin = today.Origin
	observability.RecordPriceOrigin(asset.ID, string(today.Origin))
	if today.Origin == series.OriginFallback {
		log.Warn("live quote unavailable, using fallback",
			logger.Date("date", today.Point.Date),
			logger.Float64("price", today.Point.Price),
			logger.Error(today.Reason))
	}

	out.State = StateMerge
	merged, err := series.Merge(historical, today.Point)
	if err != nil {
		return fail(err)
	}

	out.State = StateClean
	clean, err := series.Clean(merged)
	if err != nil {
		return fail(err)
	}

	out.State = StateForecast
	forecastStart := time.Now()
	predicted, err := o.predict(ctx, clean)
	if err != nil {
		return fail(err)
	}

	out.State = StateEvaluate
	actual, ok := clean.Last()
	if !ok {
		return fail(domain.ErrEmptySeries)
	}
	record := domain.NewForecastRecord(actual.Date, asset.ID, predicted, actual.Price)
	observability.RecordForecast(o.forecaster.Name(), asset.ID, time.Since(forecastStart).Seconds(), record.Error)

	out.State = StatePersist
	if err := o.results.Upsert(ctx, record); err != nil {
		return fail(&domain.PersistenceError{Record: *record, Err: err})
	}
	out.Record = record

	o.afterPersist(ctx, today, record, publisher, log)

	out.State = StateDone
	out.Duration = time.Since(start)
	observability.RecordAssetOutcome(asset.ID, string(StateDone))
	log.Info("asset forecast stored",
		logger.Date("date", record.Date),
		logger.Float64("predicted", record.PredictedPrice),
		logger.Float64("actual", record.ActualPrice),
		logger.Float64("error", record.Error),
		logger.String("origin", string(today.Origin)))
	return out
}

// predict runs the forecaster, turning errors, panics and unusable output
// into domain.ErrForecast.
func (o *Orchestrator) predict(ctx context.Context, s domain.AssetSeries) (price float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			price, err = 0, fmt.Errorf("%w: %s panicked: %v", domain.ErrForecast, o.forecaster.Name(), r)
		}
	}()

	price, err = o.forecaster.Predict(ctx, s)
	if err != nil {
		if errors.Is(err, domain.ErrForecast) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %s: %v", domain.ErrForecast, o.forecaster.Name(), err)
	}
	if !domain.ValidPrice(price) {
		return 0, fmt.Errorf("%w: %s returned invalid price %v", domain.ErrForecast, o.forecaster.Name(), price)
	}
	return price, nil
}

// afterPersist runs optional side effects. Failures are logged only.
func (o *Orchestrator) afterPersist(ctx context.Context, today series.Resolution, record *domain.ForecastRecord, publisher events.Publisher, log *logger.Logger) {
	if o.recordLiveQuotes && today.Origin == series.OriginLive {
		if err := o.recordLive(ctx, record.Asset, today.Point); err != nil {
			log.Warn("record live quote failed", logger.Error(err))
		}
	}
	if err := publisher.Publish(ctx, record); err != nil {
		log.Warn("publish forecast failed", logger.Error(err))
	}
}

// recordLive appends the live point to history unless that date is already stored.
func (o *Orchestrator) recordLive(ctx context.Context, asset string, p domain.PricePoint) error {
	existing, err := o.historyStore.GetRange(ctx, asset, p.Date, p.Date)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	row := &domain.HistoryRow{Date: p.Date, Asset: asset, Price: p.Price, Source: domain.SourceLive}
	if err := o.historyStore.InsertBulk(ctx, []*domain.HistoryRow{row}); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil
		}
		return err
	}
	observability.RecordHistoryRows(string(domain.SourceLive), 1)
	return nil
}
