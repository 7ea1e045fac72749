package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rcarvalho/nfebatch/internal/core/domain"
	"github.com/rcarvalho/nfebatch/internal/core/ports"
	"github.com/rcarvalho/nfebatch/internal/observability/metrics"
)

const serviceName = "nfebatch"

type BatchUseCase struct {
	source    ports.DocumentSource
	cache     ports.RecordCache
	validator ports.SchemaValidator
	parser    ports.DocumentParser
	metrics   *metrics.BatchMetrics
	log       *slog.Logger
	workers   int
}

func NewBatchUseCase(
	source ports.DocumentSource,
	cache ports.RecordCache,
	validator ports.SchemaValidator,
	parser ports.DocumentParser,
	m *metrics.BatchMetrics,
	log *slog.Logger,
	workers int,
) *BatchUseCase {
	if workers <= 0 {
		workers = 8
	}
	return &BatchUseCase{
		source:    source,
		cache:     cache,
		validator: validator,
		parser:    parser,
		metrics:   m,
		log:       log,
		workers:   workers,
	}
}

type fileOutcome int

const (
	outcomeParsed fileOutcome = iota
	outcomeCacheHit
	outcomeParseFailed
	outcomeValidationFailed
)

type fileResult struct {
	records   []domain.InvoiceLineRecord
	outcome   fileOutcome
	defaulted int
}

// ProcessDirectory runs the full pipeline over every invoice document under
// root and blocks until the last dispatched file has completed. Per-file
// failures are counted, never fatal; the only fatal condition is a missing
// input directory. Cancelling the context stops dispatching new files but
// lets in-flight units finish, so cache writes stay whole.
func (uc *BatchUseCase) ProcessDirectory(
	ctx context.Context,
	root string,
	cancelled domain.KeySet,
) ([]domain.InvoiceLineRecord, domain.RunStatistics, error) {
	stats := domain.RunStatistics{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}

	files, err := uc.source.ListInvoices(root)
	if err != nil {
		return nil, stats, err
	}
	stats.FilesSeen = len(files)
	uc.log.Info("batch started", "run_id", stats.RunID, "root", root, "files", len(files))

	// Workers only send; a single collector owns the statistics and the
	// merged record set, so no counter needs a lock.
	results := make(chan fileResult, uc.workers)
	var records []domain.InvoiceLineRecord
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for res := range results {
			switch res.outcome {
			case outcomeParsed:
				stats.FilesParsed++
			case outcomeCacheHit:
				stats.CacheHits++
			case outcomeParseFailed:
				stats.ParseFailures++
			case outcomeValidationFailed:
				stats.ValidationFailures++
			}
			stats.FieldsDefaulted += res.defaulted
			records = append(records, res.records...)
		}
	}()

	g := new(errgroup.Group)
	g.SetLimit(uc.workers)
	for _, path := range files {
		if ctx.Err() != nil {
			uc.log.Warn("batch cancelled, stopping dispatch", "run_id", stats.RunID)
			break
		}
		g.Go(func() error {
			results <- uc.processFile(path, cancelled)
			return nil
		})
	}
	_ = g.Wait()
	close(results)
	<-collectorDone

	stats.FinishedAt = time.Now().UTC()
	uc.log.Info("batch finished",
		"run_id", stats.RunID,
		"parsed", stats.FilesParsed,
		"cache_hits", stats.CacheHits,
		"parse_failures", stats.ParseFailures,
		"validation_failures", stats.ValidationFailures,
		"fields_defaulted", stats.FieldsDefaulted,
	)
	return records, stats, nil
}

func (uc *BatchUseCase) processFile(path string, cancelled domain.KeySet) fileResult {
	start := time.Now()
	uc.metrics.StartFile()

	res := uc.runPipeline(path, cancelled)
	uc.metrics.FinishFile(serviceName, outcomeLabel(res.outcome), time.Since(start))
	return res
}

func (uc *BatchUseCase) runPipeline(path string, cancelled domain.KeySet) fileResult {
	if cached, ok := uc.cache.Get(path); ok {
		return fileResult{records: cached, outcome: outcomeCacheHit}
	}

	content, err := uc.source.Read(path)
	if err != nil {
		uc.log.Warn("unreadable document skipped", "path", path, "error", err)
		return fileResult{outcome: outcomeParseFailed}
	}

	validation := uc.validator.Validate(content)
	if validation.Status == domain.ValidationFailed {
		uc.log.Warn("document failed schema validation", "path", path, "message", validation.Message)
		return fileResult{outcome: outcomeValidationFailed}
	}

	parsed, err := uc.parser.Parse(content, cancelled)
	if err != nil {
		uc.log.Warn("document failed to parse", "path", path, "error", err)
		return fileResult{outcome: outcomeParseFailed}
	}

	uc.cache.Set(path, parsed.Records)
	return fileResult{
		records:   parsed.Records,
		outcome:   outcomeParsed,
		defaulted: parsed.DefaultedFields,
	}
}

func outcomeLabel(o fileOutcome) string {
	switch o {
	case outcomeCacheHit:
		return metrics.OutcomeCacheHit
	case outcomeParseFailed:
		return metrics.OutcomeParseFailed
	case outcomeValidationFailed:
		return metrics.OutcomeValidationFailed
	default:
		return metrics.OutcomeParsed
	}
}
