// Command backfill loads the historical CSV into the configured history store.
// Dates already stored are skipped, so reruns are safe.
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
	csvPath := flag.String("csv", "", "Historical CSV (overrides history.csv_path)")
	batchSize := flag.Int("batch-size", 0, "Rows per insert (overrides backfill.batch_size)")
	flag.Parse()

	cfg, log, err := app.Bootstrap(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup: %v\n", err)
		os.Exit(1)
	}
	if *csvPath != "" {
		cfg.History.CSVPath = *csvPath
	}
	if *batchSize > 0 {
		cfg.Backfill.BatchSize = *batchSize
	}

	ctx, cancel := app.SignalContext()
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("init failed", logger.Error(err))
		os.Exit(1)
	}
	defer a.Close()

	result, err := a.NewBackfiller().Backfill(ctx)
	if err != nil {
		log.Error("backfill failed", logger.Error(err))
		a.Close()
		os.Exit(1)
	}

	fmt.Printf("Backfill completed in %s\n", result.Duration)
	fmt.Printf("  Inserted:   %d\n", result.RowsInserted)
	fmt.Printf("  Duplicates: %d\n", result.DuplicatesSkipped)
	fmt.Printf("  Invalid:    %d\n", result.InvalidSkipped)
	fmt.Printf("  Errors:     %d\n", result.Errors)
	if len(result.AssetsSkipped) > 0 {
		fmt.Printf("  Skipped assets: %v\n", result.AssetsSkipped)
	}
	if result.Errors > 0 {
		a.Close()
		os.Exit(1)
	}
}
