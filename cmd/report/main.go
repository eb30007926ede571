// Command report prints the forecast dashboard: the latest results and the
// recent error history per asset. It can also write the dashboard to a file
// or upload it to the configured bucket.
package main

import (
	"flag"
	"fmt"
	"os"

	"commodity-forecast/internal/app"
	"commodity-forecast/internal/logger"
	"commodity-forecast/internal/reporting"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to YAML config")
	format := flag.String("format", "", "File format: markdown, csv, xlsx or parquet")
	out := flag.String("out", "", "Output file (requires -format)")
	tail := flag.Int("tail", reporting.DefaultTail, "Number of latest results to show (0 = all)")
	lastN := flag.Int("last-n", reporting.DefaultErrorWindow, "Error history window per asset")
	upload := flag.Bool("export", false, "Upload the dashboard to the configured bucket")
	flag.Parse()

	if *out != "" && *format == "" {
		fmt.Fprintln(os.Stderr, "Error: -out requires -format")
		os.Exit(2)
	}

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

	dashboard, err := a.NewGenerator().WithTail(*tail).WithErrorWindow(*lastN).Generate(ctx)
	if err != nil {
		log.Error("generate dashboard failed", logger.Error(err))
		a.Close()
		os.Exit(1)
	}

	if err := reporting.WriteText(os.Stdout, dashboard); err != nil {
		log.Error("print dashboard failed", logger.Error(err))
	}

	if *format != "" {
		rendered, err := reporting.Render(dashboard, *format)
		if err != nil {
			log.Error("render failed", logger.String("format", *format), logger.Error(err))
			a.Close()
			os.Exit(1)
		}
		path := *out
		if path == "" {
			path = "dashboard" + rendered.Extension
		}
		if err := os.WriteFile(path, rendered.Data, 0o644); err != nil {
			log.Error("write report failed", logger.String("path", path), logger.Error(err))
			a.Close()
			os.Exit(1)
		}
		fmt.Printf("\nWrote %s\n", path)
	}

	if *upload {
		key, err := a.ExportDashboard(ctx)
		if err != nil {
			log.Error("export failed", logger.Error(err))
			a.Close()
			os.Exit(1)
		}
		fmt.Printf("Uploaded %s\n", key)
	}
}
