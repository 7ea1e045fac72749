package ports

import (
	"context"

	"github.com/rcarvalho/nfebatch/internal/core/domain"
)

// DocumentParser turns one document's raw XML into flat line records.
type DocumentParser interface {
	Parse(content []byte, cancelled domain.KeySet) (domain.ParsedDocument, error)
}

// SchemaValidator runs the structural check matching a document's declared
// layout version. Failures are reported, never raised.
type SchemaValidator interface {
	Validate(content []byte) domain.ValidationResult
}

// RecordCache stores parse results keyed by file identity. It is a
// performance optimization only: it never errors the caller.
type RecordCache interface {
	Get(path string) ([]domain.InvoiceLineRecord, bool)
	Set(path string, records []domain.InvoiceLineRecord)
}

// DocumentSource enumerates and reads the input tree.
type DocumentSource interface {
	ListInvoices(root string) ([]string, error)
	ListEvents(root string) ([]string, error)
	Read(path string) ([]byte, error)
}

// RecordSink persists a finished run for downstream consumers.
type RecordSink interface {
	EnsureSchema(ctx context.Context) error
	SaveRun(ctx context.Context, stats domain.RunStatistics, records []domain.InvoiceLineRecord) error
}

// SummaryExporter renders a fiscal summary for human consumption.
type SummaryExporter interface {
	Export(path string, summary domain.FiscalSummary) error
}
