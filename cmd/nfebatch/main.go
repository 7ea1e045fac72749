package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rcarvalho/nfebatch/internal/bootstrap"
	"github.com/rcarvalho/nfebatch/internal/config"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <input-dir>\n", filepath.Base(os.Args[0]))
		os.Exit(2)
	}
	inputDir := os.Args[1]

	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	if cfg.MetricsPort != "" {
		go serveMetrics(app, cfg.MetricsPort)
	}

	if err := run(ctx, app, inputDir); err != nil {
		app.Log.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, app *bootstrap.App, inputDir string) error {
	cancelled, err := app.Events.Collect(inputDir)
	if err != nil {
		return fmt.Errorf("collect cancellation events: %w", err)
	}

	records, stats, err := app.BatchUC.ProcessDirectory(ctx, inputDir, cancelled)
	if err != nil {
		return fmt.Errorf("process directory: %w", err)
	}

	summary := app.SumUC.Summarize(records, app.Rates)
	app.Log.Info("summary ready",
		"run_id", stats.RunID,
		"documents", summary.DocumentCount,
		"total_sales", summary.TotalSales.StringFixed(2),
		"sequence_gaps", len(summary.MissingNumbers),
		"rate_divergences", len(summary.RateDivergences),
	)

	if app.Sink != nil {
		saveCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := app.Sink.SaveRun(saveCtx, stats, records); err != nil {
			return fmt.Errorf("save run: %w", err)
		}
	}

	if app.Config.ExportDir != "" {
		path := filepath.Join(app.Config.ExportDir, fmt.Sprintf("summary-%s.xlsx", stats.RunID))
		if err := app.Exporter.Export(path, summary); err != nil {
			return fmt.Errorf("export summary: %w", err)
		}
	}
	return nil
}

func serveMetrics(app *bootstrap.App, port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", app.Metrics.Handler())
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		app.Log.Error("metrics server stopped", "error", err)
	}
}
