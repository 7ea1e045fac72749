package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/rcarvalho/nfebatch/internal/core/domain"
)

// insertBatchSize keeps single INSERT statements well under the 65535
// bind-parameter limit of the postgres wire protocol.
const insertBatchSize = 500

type RecordRepository struct {
	db *sql.DB
}

func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *RecordRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent runner startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS fiscal_runs (
	run_id TEXT PRIMARY KEY,
	files_seen INTEGER NOT NULL,
	files_parsed INTEGER NOT NULL,
	parse_failures INTEGER NOT NULL,
	validation_failures INTEGER NOT NULL,
	cache_hits INTEGER NOT NULL,
	fields_defaulted INTEGER NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS invoice_lines (
	run_id TEXT NOT NULL REFERENCES fiscal_runs(run_id) ON DELETE CASCADE,
	access_key TEXT NOT NULL,
	item_number INTEGER NOT NULL,
	status TEXT NOT NULL,
	series TEXT NOT NULL,
	number TEXT NOT NULL,
	issued_at TEXT NOT NULL,
	emitter_tax_id TEXT NOT NULL,
	emitter_name TEXT NOT NULL,
	recipient_tax_id TEXT,
	recipient_name TEXT,
	document_total NUMERIC(15,2) NOT NULL,
	payments TEXT,
	product_code TEXT,
	description TEXT,
	cfop TEXT,
	ncm TEXT,
	quantity NUMERIC(15,4) NOT NULL,
	unit_price NUMERIC(15,10) NOT NULL,
	line_total NUMERIC(15,2) NOT NULL,
	icms_value NUMERIC(15,2) NOT NULL,
	icms_st_value NUMERIC(15,2) NOT NULL,
	ipi_value NUMERIC(15,2) NOT NULL,
	pis_value NUMERIC(15,2) NOT NULL,
	cofins_value NUMERIC(15,2) NOT NULL,
	PRIMARY KEY (run_id, access_key, item_number)
);

CREATE INDEX IF NOT EXISTS idx_invoice_lines_cfop ON invoice_lines(cfop);
CREATE INDEX IF NOT EXISTS idx_invoice_lines_emitter ON invoice_lines(emitter_tax_id);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// SaveRun writes the run header and its line records atomically. The run is
// either fully persisted or absent, never half-written.
func (r *RecordRepository) SaveRun(
	ctx context.Context,
	stats domain.RunStatistics,
	records []domain.InvoiceLineRecord,
) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin run tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO fiscal_runs (
	run_id, files_seen, files_parsed, parse_failures, validation_failures, cache_hits, fields_defaulted, started_at, finished_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		stats.RunID, stats.FilesSeen, stats.FilesParsed, stats.ParseFailures,
		stats.ValidationFailures, stats.CacheHits, stats.FieldsDefaulted,
		stats.StartedAt, stats.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for start := 0; start < len(records); start += insertBatchSize {
		end := min(start+insertBatchSize, len(records))
		if err := insertLines(ctx, tx, stats.RunID, records[start:end]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run tx: %w", err)
	}
	return nil
}

func insertLines(ctx context.Context, tx *sql.Tx, runID string, records []domain.InvoiceLineRecord) error {
	const stmt = `
INSERT INTO invoice_lines (
	run_id, access_key, item_number, status, series, number, issued_at,
	emitter_tax_id, emitter_name, recipient_tax_id, recipient_name,
	document_total, payments, product_code, description, cfop, ncm,
	quantity, unit_price, line_total,
	icms_value, icms_st_value, ipi_value, pis_value, cofins_value
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25)
`
	for _, rec := range records {
		_, err := tx.ExecContext(ctx, stmt,
			runID, rec.AccessKey, rec.ItemNumber, string(rec.Status), rec.Series, rec.Number, rec.IssuedAt,
			rec.EmitterTaxID, rec.EmitterName, rec.RecipientTaxID, rec.RecipientName,
			rec.DocumentTotal.String(), rec.Payments, rec.ProductCode, rec.Description, rec.CFOP, rec.NCM,
			rec.Quantity.String(), rec.UnitPrice.String(), rec.LineTotal.String(),
			rec.ICMSValue.String(), rec.ICMSSTValue.String(), rec.IPIValue.String(),
			rec.PISValue.String(), rec.COFINSValue.String(),
		)
		if err != nil {
			return fmt.Errorf("insert line %s item %d: %w", rec.AccessKey, rec.ItemNumber, err)
		}
	}
	return nil
}
