// Command append copies validated forecast results into the price history.
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
	asset := flag.String("asset", "", "Append a single asset (default: all)")
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

	if *asset != "" {
		n, err := a.Appender.AppendValidated(ctx, *asset)
		if err != nil {
			log.Error("append failed", logger.String("asset", *asset), logger.Error(err))
			a.Close()
			os.Exit(1)
		}
		fmt.Printf("%s: %d rows appended\n", *asset, n)
		return
	}

	result := a.Appender.AppendAll(ctx)
	for _, r := range result.Assets {
		if r.Err != nil {
			fmt.Printf("  FAIL %-12s %v\n", r.Asset, r.Err)
			continue
		}
		fmt.Printf("  OK   %-12s %d rows\n", r.Asset, r.Rows)
	}
	fmt.Printf("Total appended: %d\n", result.Total())

	if result.HasFailures() {
		a.Close()
		os.Exit(1)
	}
}
