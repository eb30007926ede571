// Package app wires configuration into the pipeline components shared by
// every binary.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"commodity-forecast/internal/config"
	"commodity-forecast/internal/domain"
	"commodity-forecast/internal/events"
	"commodity-forecast/internal/export"
	"commodity-forecast/internal/forecast"
	"commodity-forecast/internal/history"
	"commodity-forecast/internal/ingestion"
	"commodity-forecast/internal/logger"
	"commodity-forecast/internal/orchestrator"
	"commodity-forecast/internal/quote"
	"commodity-forecast/internal/reporting"
	"commodity-forecast/internal/storage/stores"
)

// App holds the wired components.
type App struct {
	Config   *config.Config
	Registry *domain.Registry
	Stores   *stores.Stores
	Log      *logger.Logger

	Orchestrator *orchestrator.Orchestrator
	Appender     *ingestion.Appender
	Exporter     *export.S3Exporter // nil when export is disabled

	closers []func() error

	mu        sync.RWMutex
	lastRun   *orchestrator.RunResult
	listeners []func(*orchestrator.RunResult)
}

// New builds every component from cfg. Call Close when done.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (_ *App, err error) {
	if log == nil {
		log = logger.Nop()
	}

	a := &App{Config: cfg, Log: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.Registry, err = cfg.Registry()
	if err != nil {
		return nil, err
	}

	a.Stores, err = stores.Open(ctx, cfg.Storage, log.Component("storage"))
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Backend, err)
	}
	a.closers = append(a.closers, a.Stores.Close)

	quotes, err := a.quoteSource(ctx)
	if err != nil {
		return nil, err
	}

	model, err := forecast.New(cfg.Forecaster, cfg.Settings.PredictionHorizon, log.Component("forecast"))
	if err != nil {
		return nil, err
	}

	var publisher events.Publisher = events.Noop{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return nil, fmt.Errorf("kafka publisher: %w", err)
		}
		publisher = kp
		a.closers = append(a.closers, kp.Close)
	}

	a.Orchestrator, err = orchestrator.New(orchestrator.Options{
		Registry:         a.Registry,
		History:          a.historySource(),
		Quotes:           quotes,
		Forecaster:       model,
		ResultStore:      a.Stores.Forecasts,
		HistoryStore:     a.Stores.History,
		Publisher:        publisher,
		StepDays:         cfg.Settings.StepDays(),
		FetchTimeout:     cfg.Pipeline.FetchTimeout,
		Concurrency:      cfg.Pipeline.Concurrency,
		RecordLiveQuotes: cfg.Pipeline.RecordLiveQuotes,
		ModelName:        cfg.Settings.ModelName,
		Logger:           log.Component("orchestrator"),
	})
	if err != nil {
		return nil, err
	}

	a.Appender = ingestion.NewAppender(a.Stores.Forecasts, a.Stores.History, a.Registry, log.Component("appender"))

	if cfg.Export.Enabled {
		a.Exporter, err = export.NewS3Exporter(ctx, cfg.Export, log.Component("export"))
		if err != nil {
			return nil, err
		}
	}

	return a, nil
}

func (a *App) historySource() history.Source {
	if a.Config.History.Source == "store" {
		return history.NewStoreSource(a.Stores.History)
	}
	return history.NewCSVSource(a.Config.History.CSVPath)
}

func (a *App) quoteSource(ctx context.Context) (quote.Source, error) {
	qc := a.Config.Quote
	if !qc.Enabled {
		a.Log.Warn("live quotes disabled, every asset uses the fallback price")
		return quote.DisabledSource{}, nil
	}

	var src quote.Source = quote.NewHTTPSource(qc.BaseURL, qc.APIKey,
		quote.WithTimeout(qc.Timeout),
		quote.WithRetries(qc.Retries),
		quote.WithRateLimit(qc.RatePerSecond, qc.Burst),
		quote.WithLogger(a.Log.Component("quote")),
	)

	rc := a.Config.Redis
	if rc.Addr == "" {
		return src, nil
	}
	cache, err := quote.NewRedisCache(ctx, rc.Addr, rc.Password, rc.DB, rc.Prefix)
	if err != nil {
		return nil, fmt.Errorf("quote cache: %w", err)
	}
	a.closers = append(a.closers, cache.Close)
	return quote.NewCachedSource(src, cache, qc.CacheTTL, a.Log.Component("quote_cache")), nil
}

// NewBackfiller returns a backfiller reading the configured historical CSV.
func (a *App) NewBackfiller() *ingestion.Backfiller {
	return ingestion.NewBackfiller(ingestion.BackfillOptions{
		Reader:    history.NewCSVSource(a.Config.History.CSVPath),
		Store:     a.Stores.History,
		Registry:  a.Registry,
		BatchSize: a.Config.Backfill.BatchSize,
		Logger:    a.Log.Component("backfill"),
	})
}

// NewGenerator returns a dashboard generator over the result store.
func (a *App) NewGenerator() *reporting.Generator {
	return reporting.NewGenerator(a.Stores.Forecasts, a.Registry.IDs())
}

// OnRun registers fn to receive every pipeline result.
func (a *App) OnRun(fn func(*orchestrator.RunResult)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, fn)
}

// LastRun returns the most recent pipeline result, or nil.
func (a *App) LastRun() *orchestrator.RunResult {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastRun
}

// RunPipeline runs the forecast pipeline once, notifies listeners and
// exports the dashboard when export is enabled. Export failures are logged.
func (a *App) RunPipeline(ctx context.Context) (*orchestrator.RunResult, error) {
	result, err := a.Orchestrator.Run(ctx)
	if result != nil {
		a.mu.Lock()
		a.lastRun = result
		listeners := append([]func(*orchestrator.RunResult){}, a.listeners...)
		a.mu.Unlock()

		for _, fn := range listeners {
			fn(result)
		}
	}
	if err != nil {
		return result, err
	}

	if a.Exporter != nil {
		if _, err := a.ExportDashboard(ctx); err != nil {
			a.Log.Error("dashboard export failed", logger.Error(err))
		}
	}
	return result, nil
}

// ExportDashboard renders all results in the configured format and uploads them.
func (a *App) ExportDashboard(ctx context.Context) (string, error) {
	if a.Exporter == nil {
		return "", errors.New("export is disabled")
	}
	d, err := a.NewGenerator().WithTail(0).Generate(ctx)
	if err != nil {
		return "", err
	}
	rendered, err := reporting.Render(d, a.Config.Export.Format)
	if err != nil {
		return "", err
	}
	return a.Exporter.Export(ctx, rendered)
}

// Close releases connections in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
