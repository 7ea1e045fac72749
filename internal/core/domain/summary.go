package domain

import "github.com/shopspring/decimal"

// FiscalSummary aggregates a full run's record set. Built once per Summarize
// call and never mutated afterwards.
type FiscalSummary struct {
	DocumentCount int                      `json:"document_count"`
	TotalSales    decimal.Decimal          `json:"total_sales"`
	PaymentTotals map[string]decimal.Decimal `json:"payment_totals"`

	TopProducts []ProductRank `json:"top_products"`
	TopCFOPs    []CFOPRank    `json:"top_cfops"`

	CFOPTaxes map[string]CFOPTaxTotals `json:"cfop_taxes"`

	MissingNumbers  []SequenceGap    `json:"missing_numbers"`
	RateDivergences []RateDivergence `json:"rate_divergences"`
}

type ProductRank struct {
	Description string          `json:"description"`
	Total       decimal.Decimal `json:"total"`
}

type CFOPRank struct {
	CFOP  string `json:"cfop"`
	Count int    `json:"count"`
}

// CFOPTaxTotals apportions tax values per CFOP across all item records.
type CFOPTaxTotals struct {
	ICMS   decimal.Decimal `json:"icms"`
	ICMSST decimal.Decimal `json:"icms_st"`
	IPI    decimal.Decimal `json:"ipi"`
	PIS    decimal.Decimal `json:"pis"`
	COFINS decimal.Decimal `json:"cofins"`
}

// SequenceGap lists document numbers absent from the observed
// [min, max] range of one (emitter, series) group.
type SequenceGap struct {
	EmitterTaxID string  `json:"emitter_tax_id"`
	Series       string  `json:"series"`
	Missing      []int64 `json:"missing"`
}

// RateDivergence flags an item whose declared ICMS rate strays from the
// expected rate for its NCM by more than the audit tolerance.
type RateDivergence struct {
	AccessKey    string          `json:"access_key"`
	ItemNumber   int             `json:"item_number"`
	ProductCode  string          `json:"product_code"`
	NCM          string          `json:"ncm"`
	DeclaredRate decimal.Decimal `json:"declared_rate"`
	ExpectedRate decimal.Decimal `json:"expected_rate"`
}
