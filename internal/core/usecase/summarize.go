package usecase

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rcarvalho/nfebatch/internal/core/domain"
)

// rateTolerance is the audit tolerance in percentage points.
var rateTolerance = decimal.RequireFromString("0.01")

type SummarizeConfig struct {
	TopN int

	// IncludeCancelled controls whether cancelled documents contribute to
	// total sales and payment totals. They always stay in the record set,
	// in sequence-gap detection and in the per-item passes: a cancelled
	// number is not a gap and its items still carry auditable tax data.
	IncludeCancelled bool
}

type SummarizeUseCase struct {
	cfg SummarizeConfig
	log *slog.Logger
}

func NewSummarizeUseCase(cfg SummarizeConfig, log *slog.Logger) *SummarizeUseCase {
	if cfg.TopN <= 0 {
		cfg.TopN = 10
	}
	return &SummarizeUseCase{cfg: cfg, log: log}
}

// Summarize is a pure function of the record set and the rate table.
// Document-level figures are computed over de-duplicated documents so an
// N-item document counts its header totals exactly once.
func (uc *SummarizeUseCase) Summarize(
	records []domain.InvoiceLineRecord,
	rates domain.RateTable,
) domain.FiscalSummary {
	summary := domain.FiscalSummary{
		PaymentTotals: make(map[string]decimal.Decimal),
		CFOPTaxes:     make(map[string]domain.CFOPTaxTotals),
	}

	docs := dedupeByAccessKey(records)
	summary.DocumentCount = len(docs)

	for _, doc := range docs {
		if doc.Status == domain.StatusCancelled && !uc.cfg.IncludeCancelled {
			continue
		}
		summary.TotalSales = summary.TotalSales.Add(doc.DocumentTotal)
		for _, entry := range parsePayments(doc.Payments) {
			summary.PaymentTotals[entry.label] = summary.PaymentTotals[entry.label].Add(entry.amount)
		}
	}

	productTotals := make(map[string]decimal.Decimal)
	cfopCounts := make(map[string]int)
	for _, rec := range records {
		if rec.Description != "" {
			productTotals[rec.Description] = productTotals[rec.Description].Add(rec.LineTotal)
		}
		if rec.CFOP == "" {
			continue
		}
		cfopCounts[rec.CFOP]++

		totals := summary.CFOPTaxes[rec.CFOP]
		totals.ICMS = totals.ICMS.Add(rec.ICMSValue)
		totals.ICMSST = totals.ICMSST.Add(rec.ICMSSTValue)
		totals.IPI = totals.IPI.Add(rec.IPIValue)
		totals.PIS = totals.PIS.Add(rec.PISValue)
		totals.COFINS = totals.COFINS.Add(rec.COFINSValue)
		summary.CFOPTaxes[rec.CFOP] = totals
	}
	summary.TopProducts = rankProducts(productTotals, uc.cfg.TopN)
	summary.TopCFOPs = rankCFOPs(cfopCounts, uc.cfg.TopN)

	summary.MissingNumbers = sequenceGaps(docs)
	summary.RateDivergences = uc.rateAudit(records, rates)

	return summary
}

// dedupeByAccessKey keeps the first record of every document, preserving
// input order. Header fields are identical across a document's items.
func dedupeByAccessKey(records []domain.InvoiceLineRecord) []domain.InvoiceLineRecord {
	seen := make(map[string]struct{}, len(records))
	docs := make([]domain.InvoiceLineRecord, 0, len(records))
	for _, rec := range records {
		if _, ok := seen[rec.AccessKey]; ok {
			continue
		}
		seen[rec.AccessKey] = struct{}{}
		docs = append(docs, rec)
	}
	return docs
}

type paymentEntry struct {
	label  string
	amount decimal.Decimal
}

// parsePayments re-parses the rendered "Label=Amount; Label=Amount"
// breakdown. Malformed entries are dropped silently: the breakdown is our
// own rendering, so a parse failure means an empty or legacy value.
func parsePayments(breakdown string) []paymentEntry {
	if breakdown == "" {
		return nil
	}
	var entries []paymentEntry
	for part := range strings.SplitSeq(breakdown, ";") {
		label, rawAmount, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		amount, err := decimal.NewFromString(rawAmount)
		if err != nil {
			continue
		}
		entries = append(entries, paymentEntry{label: label, amount: amount})
	}
	return entries
}

func rankProducts(totals map[string]decimal.Decimal, n int) []domain.ProductRank {
	ranks := make([]domain.ProductRank, 0, len(totals))
	for desc, total := range totals {
		ranks = append(ranks, domain.ProductRank{Description: desc, Total: total})
	}
	sort.Slice(ranks, func(i, j int) bool {
		if !ranks[i].Total.Equal(ranks[j].Total) {
			return ranks[i].Total.GreaterThan(ranks[j].Total)
		}
		return ranks[i].Description < ranks[j].Description
	})
	if len(ranks) > n {
		ranks = ranks[:n]
	}
	return ranks
}

func rankCFOPs(counts map[string]int, n int) []domain.CFOPRank {
	ranks := make([]domain.CFOPRank, 0, len(counts))
	for cfop, count := range counts {
		ranks = append(ranks, domain.CFOPRank{CFOP: cfop, Count: count})
	}
	sort.Slice(ranks, func(i, j int) bool {
		if ranks[i].Count != ranks[j].Count {
			return ranks[i].Count > ranks[j].Count
		}
		return ranks[i].CFOP < ranks[j].CFOP
	})
	if len(ranks) > n {
		ranks = ranks[:n]
	}
	return ranks
}

// sequenceGaps reports, per (emitter, series) group of de-duplicated
// documents, every number absent from the observed [min, max] range.
// Groups containing an unparsable document number are skipped outright.
func sequenceGaps(docs []domain.InvoiceLineRecord) []domain.SequenceGap {
	type groupKey struct {
		emitter string
		series  string
	}

	numbers := make(map[groupKey][]int64)
	broken := make(map[groupKey]bool)
	for _, doc := range docs {
		key := groupKey{emitter: doc.EmitterTaxID, series: doc.Series}
		n, err := strconv.ParseInt(doc.Number, 10, 64)
		if err != nil {
			broken[key] = true
			continue
		}
		numbers[key] = append(numbers[key], n)
	}

	var gaps []domain.SequenceGap
	for key, nums := range numbers {
		if broken[key] {
			continue
		}
		observed := make(map[int64]struct{}, len(nums))
		minN, maxN := nums[0], nums[0]
		for _, n := range nums {
			observed[n] = struct{}{}
			if n < minN {
				minN = n
			}
			if n > maxN {
				maxN = n
			}
		}
		var missing []int64
		for n := minN; n <= maxN; n++ {
			if _, ok := observed[n]; !ok {
				missing = append(missing, n)
			}
		}
		if len(missing) > 0 {
			gaps = append(gaps, domain.SequenceGap{
				EmitterTaxID: key.emitter,
				Series:       key.series,
				Missing:      missing,
			})
		}
	}

	sort.Slice(gaps, func(i, j int) bool {
		if gaps[i].EmitterTaxID != gaps[j].EmitterTaxID {
			return gaps[i].EmitterTaxID < gaps[j].EmitterTaxID
		}
		return gaps[i].Series < gaps[j].Series
	})
	return gaps
}

// rateAudit flags items whose declared ICMS rate strays from the expected
// rate for their NCM by more than the tolerance. Items without a declared
// rate are not audited, and the whole pass is skipped for an empty table.
func (uc *SummarizeUseCase) rateAudit(
	records []domain.InvoiceLineRecord,
	rates domain.RateTable,
) []domain.RateDivergence {
	if rates.Empty() {
		return nil
	}

	var flagged []domain.RateDivergence
	for _, rec := range records {
		if rec.ICMSRate.IsZero() {
			continue
		}
		expected := rates.Expected(rec.NCM)
		if rec.ICMSRate.Sub(expected).Abs().LessThanOrEqual(rateTolerance) {
			continue
		}
		flagged = append(flagged, domain.RateDivergence{
			AccessKey:    rec.AccessKey,
			ItemNumber:   rec.ItemNumber,
			ProductCode:  rec.ProductCode,
			NCM:          rec.NCM,
			DeclaredRate: rec.ICMSRate,
			ExpectedRate: expected,
		})
	}
	return flagged
}
