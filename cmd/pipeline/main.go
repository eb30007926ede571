// Command pipeline runs the daily forecast pipeline once over all assets.
// It exits with status 1 if any asset fails.
package main

import (
	"flag"
	"fmt"
	"os"

	"commodity-forecast/internal/app"
	"commodity-forecast/internal/logger"
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

	result, err := a.RunPipeline(ctx)
	if err != nil {
		log.Error("pipeline interrupted", logger.Error(err))
		a.Close()
		os.Exit(1)
	}

	fmt.Printf("Run %s finished in %s\n", result.RunID, result.Duration)
	for _, o := range result.Outcomes {
		if o.Failed() {
			fmt.Printf("  FAIL %-12s %s: %v\n", o.Asset, o.State, o.Err)
			continue
		}
		fmt.Printf("  OK   %-12s predicted=%.4f actual=%.4f error=%.4f (%s)\n",
			o.Asset, o.Record.PredictedPrice, o.Record.ActualPrice, o.Record.Error, o.Origin)
	}

	if result.HasFailures() {
		a.Close()
		os.Exit(1)
	}
}
