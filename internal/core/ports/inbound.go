package ports

import (
	"context"

	"github.com/rcarvalho/nfebatch/internal/core/domain"
)

// BatchProcessor is the inbound contract for processing a directory tree of
// fiscal documents. It blocks until every dispatched file has completed.
type BatchProcessor interface {
	ProcessDirectory(ctx context.Context, root string, cancelled domain.KeySet) ([]domain.InvoiceLineRecord, domain.RunStatistics, error)
}

// FiscalSummarizer is the inbound contract for turning a flat record set into
// cross-document fiscal aggregates.
type FiscalSummarizer interface {
	Summarize(records []domain.InvoiceLineRecord, rates domain.RateTable) domain.FiscalSummary
}

// CancellationCollector derives the cancelled-key set from the event
// documents of an input tree.
type CancellationCollector interface {
	Collect(root string) (domain.KeySet, error)
}
