package xlsx

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/rcarvalho/nfebatch/internal/core/domain"
)

// Exporter renders a fiscal summary into a multi-sheet workbook for the
// accounting side of the house.
type Exporter struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Exporter {
	return &Exporter{log: log}
}

func (e *Exporter) Export(path string, summary domain.FiscalSummary) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := e.writeOverview(f, summary); err != nil {
		return err
	}
	if err := e.writePayments(f, summary); err != nil {
		return err
	}
	if err := e.writeTopProducts(f, summary); err != nil {
		return err
	}
	if err := e.writeTopCFOPs(f, summary); err != nil {
		return err
	}
	if err := e.writeCFOPTaxes(f, summary); err != nil {
		return err
	}
	if err := e.writeMissingNumbers(f, summary); err != nil {
		return err
	}
	if err := e.writeRateAudit(f, summary); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	e.log.Info("summary exported", "path", path, "documents", summary.DocumentCount)
	return nil
}

func (e *Exporter) writeOverview(f *excelize.File, summary domain.FiscalSummary) error {
	// Reuse the default sheet so the workbook opens on the overview.
	const sheet = "Overview"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename overview sheet: %w", err)
	}
	rows := [][]any{
		{"Documents", summary.DocumentCount},
		{"Total sales", summary.TotalSales.StringFixed(2)},
		{"Sequence gaps", len(summary.MissingNumbers)},
		{"Rate divergences", len(summary.RateDivergences)},
	}
	return writeRows(f, sheet, rows)
}

func (e *Exporter) writePayments(f *excelize.File, summary domain.FiscalSummary) error {
	const sheet = "Payments"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}

	labels := make([]string, 0, len(summary.PaymentTotals))
	for label := range summary.PaymentTotals {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	rows := [][]any{{"Method", "Total"}}
	for _, label := range labels {
		rows = append(rows, []any{label, summary.PaymentTotals[label].StringFixed(2)})
	}
	return writeRows(f, sheet, rows)
}

func (e *Exporter) writeTopProducts(f *excelize.File, summary domain.FiscalSummary) error {
	const sheet = "Top Products"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}
	rows := [][]any{{"Description", "Total"}}
	for _, rank := range summary.TopProducts {
		rows = append(rows, []any{rank.Description, rank.Total.StringFixed(2)})
	}
	return writeRows(f, sheet, rows)
}

func (e *Exporter) writeTopCFOPs(f *excelize.File, summary domain.FiscalSummary) error {
	const sheet = "Top CFOPs"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}
	rows := [][]any{{"CFOP", "Items"}}
	for _, rank := range summary.TopCFOPs {
		rows = append(rows, []any{rank.CFOP, rank.Count})
	}
	return writeRows(f, sheet, rows)
}

func (e *Exporter) writeCFOPTaxes(f *excelize.File, summary domain.FiscalSummary) error {
	const sheet = "CFOP Taxes"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}

	cfops := make([]string, 0, len(summary.CFOPTaxes))
	for cfop := range summary.CFOPTaxes {
		cfops = append(cfops, cfop)
	}
	sort.Strings(cfops)

	rows := [][]any{{"CFOP", "ICMS", "ICMS ST", "IPI", "PIS", "COFINS"}}
	for _, cfop := range cfops {
		totals := summary.CFOPTaxes[cfop]
		rows = append(rows, []any{
			cfop,
			totals.ICMS.StringFixed(2),
			totals.ICMSST.StringFixed(2),
			totals.IPI.StringFixed(2),
			totals.PIS.StringFixed(2),
			totals.COFINS.StringFixed(2),
		})
	}
	return writeRows(f, sheet, rows)
}

func (e *Exporter) writeMissingNumbers(f *excelize.File, summary domain.FiscalSummary) error {
	const sheet = "Missing Numbers"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}
	rows := [][]any{{"Emitter", "Series", "Missing"}}
	for _, gap := range summary.MissingNumbers {
		parts := make([]string, len(gap.Missing))
		for i, n := range gap.Missing {
			parts[i] = fmt.Sprintf("%d", n)
		}
		rows = append(rows, []any{gap.EmitterTaxID, gap.Series, strings.Join(parts, ", ")})
	}
	return writeRows(f, sheet, rows)
}

func (e *Exporter) writeRateAudit(f *excelize.File, summary domain.FiscalSummary) error {
	const sheet = "Rate Audit"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}
	rows := [][]any{{"Access Key", "Item", "Product", "NCM", "Declared", "Expected"}}
	for _, flag := range summary.RateDivergences {
		rows = append(rows, []any{
			flag.AccessKey,
			flag.ItemNumber,
			flag.ProductCode,
			flag.NCM,
			flag.DeclaredRate.StringFixed(2),
			flag.ExpectedRate.StringFixed(2),
		})
	}
	return writeRows(f, sheet, rows)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("cell name for row %d: %w", i+1, err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d of %s: %w", i+1, sheet, err)
		}
	}
	return nil
}
