package ratetable

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/rcarvalho/nfebatch/internal/core/domain"
)

type fileSchema struct {
	DefaultRate float64            `yaml:"default_rate"`
	Rates       map[string]float64 `yaml:"rates"`
}

// LoadFile reads a YAML rate table mapping NCM codes to expected ICMS rates,
// with a default rate for codes absent from the mapping.
func LoadFile(path string) (domain.RateTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.RateTable{}, fmt.Errorf("read rate table: %w", err)
	}

	var parsed fileSchema
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return domain.RateTable{}, fmt.Errorf("parse rate table: %w", err)
	}

	table := domain.RateTable{
		Rates:       make(map[string]decimal.Decimal, len(parsed.Rates)),
		DefaultRate: decimal.NewFromFloat(parsed.DefaultRate),
	}
	for ncm, rate := range parsed.Rates {
		table.Rates[ncm] = decimal.NewFromFloat(rate)
	}
	return table, nil
}
