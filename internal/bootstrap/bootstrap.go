package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rcarvalho/nfebatch/internal/config"
	"github.com/rcarvalho/nfebatch/internal/core/domain"
	"github.com/rcarvalho/nfebatch/internal/core/ports"
	"github.com/rcarvalho/nfebatch/internal/core/usecase"
	"github.com/rcarvalho/nfebatch/internal/infrastructure/cache/fscache"
	"github.com/rcarvalho/nfebatch/internal/infrastructure/export/xlsx"
	"github.com/rcarvalho/nfebatch/internal/infrastructure/nfexml"
	"github.com/rcarvalho/nfebatch/internal/infrastructure/ratetable"
	"github.com/rcarvalho/nfebatch/internal/infrastructure/repository/postgres"
	"github.com/rcarvalho/nfebatch/internal/infrastructure/schema"
	"github.com/rcarvalho/nfebatch/internal/infrastructure/storage/localfs"
	"github.com/rcarvalho/nfebatch/internal/observability/logging"
	"github.com/rcarvalho/nfebatch/internal/observability/metrics"
)

type App struct {
	Config  config.Config
	Log     *slog.Logger
	Metrics *metrics.BatchMetrics

	Events   ports.CancellationCollector
	BatchUC  ports.BatchProcessor
	SumUC    ports.FiscalSummarizer
	Sink     ports.RecordSink
	Exporter ports.SummaryExporter

	// Rates is empty when no table path is configured; the aggregator
	// skips the rate audit for an empty table.
	Rates domain.RateTable

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	log := logging.NewJSONLogger("nfebatch", cfg.LogLevel)
	m := metrics.NewBatchMetrics("nfebatch")

	source := localfs.New()
	cache, err := fscache.New(cfg.CacheDir, log)
	if err != nil {
		return nil, fmt.Errorf("init record cache: %w", err)
	}
	validator := schema.NewValidator(cfg.SchemaDir, log)
	parser := nfexml.NewParser(log)

	app := &App{
		Config:   cfg,
		Log:      log,
		Metrics:  m,
		Events:   nfexml.NewEventCollector(source, log),
		BatchUC:  usecase.NewBatchUseCase(source, cache, validator, parser, m, log, cfg.BatchWorkers),
		SumUC:    usecase.NewSummarizeUseCase(usecase.SummarizeConfig{TopN: cfg.AggTopN, IncludeCancelled: cfg.AggIncludeCancelled}, log),
		Exporter: xlsx.New(log),
		closeFn:  func() {},
	}

	if cfg.RateTablePath != "" {
		rates, err := ratetable.LoadFile(cfg.RateTablePath)
		if err != nil {
			return nil, fmt.Errorf("load rate table: %w", err)
		}
		app.Rates = rates
	}

	if cfg.PostgresDSN != "" {
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		repo := postgres.NewRecordRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		app.Sink = repo
		app.closeFn = func() { _ = db.Close() }
	}

	return app, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
