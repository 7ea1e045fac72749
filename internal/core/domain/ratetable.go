package domain

import "github.com/shopspring/decimal"

// RateTable maps NCM commodity codes to the ICMS rate expected for them.
// It is owned by the caller and passed read-only into the aggregator.
type RateTable struct {
	Rates       map[string]decimal.Decimal
	DefaultRate decimal.Decimal
}

// Expected returns the rate for an NCM, falling back to the default rate
// when the code is absent from the table.
func (t RateTable) Expected(ncm string) decimal.Decimal {
	if rate, ok := t.Rates[ncm]; ok {
		return rate
	}
	return t.DefaultRate
}

// Empty reports whether no rate data was configured at all; the rate audit
// is skipped for an empty table.
func (t RateTable) Empty() bool {
	return len(t.Rates) == 0 && t.DefaultRate.IsZero()
}
