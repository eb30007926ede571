// Command server runs the scheduled forecast pipeline and the weekly history
// append, and serves the read-only dashboard API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"commodity-forecast/internal/api"
	"commodity-forecast/internal/app"
	"commodity-forecast/internal/logger"
	"commodity-forecast/internal/scheduler"
)

const (
	jobPipeline = "pipeline"
	jobAppend   = "append"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to YAML config")
	flag.Parse()

	cfg, log, err := app.Bootstrap(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := app.SignalContext()
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("init failed", logger.Error(err))
		os.Exit(1)
	}
	defer a.Close()

	hub := api.NewHub(log.Component("ws"))
	a.OnRun(hub.BroadcastRun)

	sched := scheduler.New(ctx, log.Component("scheduler"))
	if err := registerJobs(sched, a, cfg.Schedule.PipelineCron, cfg.Schedule.AppendCron); err != nil {
		log.Error("register jobs failed", logger.Error(err))
		a.Close()
		os.Exit(1)
	}

	srv, err := api.NewServer(api.Options{
		Registry:  a.Registry,
		Forecasts: a.Stores.Forecasts,
		History:   a.Stores.History,
		Runs:      a,
		Jobs:      sched,
		Hub:       hub,
		Logger:    log.Component("api"),
	})
	if err != nil {
		log.Error("api init failed", logger.Error(err))
		a.Close()
		os.Exit(1)
	}

	srv.Start(cfg.Server.Addr)
	sched.Start()

	if cfg.Schedule.RunOnStart {
		go func() {
			if err := sched.RunNow(jobPipeline); err != nil {
				log.Warn("startup pipeline run failed", logger.Error(err))
			}
		}()
	}

	log.Info("server running",
		logger.String("addr", cfg.Server.Addr),
		logger.String("storage", a.Stores.Backend),
		logger.Int("assets", a.Registry.Len()),
	)

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer stop()

	sched.Stop(shutdownCtx)
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("http shutdown failed", logger.Error(err))
	}
	log.Info("shutdown complete")
}

func registerJobs(sched *scheduler.Scheduler, a *app.App, pipelineSpec, appendSpec string) error {
	err := sched.Register(jobPipeline, pipelineSpec, func(ctx context.Context) error {
		result, err := a.RunPipeline(ctx)
		if err != nil {
			return err
		}
		if result.HasFailures() {
			return fmt.Errorf("%d of %d assets failed", len(result.Failed()), len(result.Outcomes))
		}
		return nil
	})
	if err != nil {
		return err
	}

	return sched.Register(jobAppend, appendSpec, func(ctx context.Context) error {
		result := a.Appender.AppendAll(ctx)
		if result.HasFailures() {
			return fmt.Errorf("append failed for some assets (%d rows appended)", result.Total())
		}
		return nil
	})
}
