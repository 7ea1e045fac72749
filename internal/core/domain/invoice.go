package domain

import "github.com/shopspring/decimal"

type DocumentStatus string

const (
	StatusAuthorized DocumentStatus = "authorized"
	StatusCancelled  DocumentStatus = "cancelled"
)

// KeySet holds the access keys of documents known to be cancelled.
// It is produced by the cancellation-event collector and consumed read-only.
type KeySet map[string]struct{}

func NewKeySet(keys ...string) KeySet {
	s := make(KeySet, len(keys))
	for _, k := range keys {
		s.Add(k)
	}
	return s
}

func (s KeySet) Add(key string) {
	s[key] = struct{}{}
}

func (s KeySet) Contains(key string) bool {
	_, ok := s[key]
	return ok
}

// InvoiceLineRecord is one row per invoice item. Header fields repeat on every
// item of the same document and are byte-identical across them; tax groups
// absent on an item stay at their zero value.
type InvoiceLineRecord struct {
	Status         DocumentStatus  `json:"status"`
	AccessKey      string          `json:"access_key"`
	Model          string          `json:"model"`
	Series         string          `json:"series"`
	Number         string          `json:"number"`
	IssuedAt       string          `json:"issued_at"`
	EmitterTaxID   string          `json:"emitter_tax_id"`
	EmitterName    string          `json:"emitter_name"`
	RecipientTaxID string          `json:"recipient_tax_id"`
	RecipientName  string          `json:"recipient_name"`
	DocumentTotal  decimal.Decimal `json:"document_total"`
	ProductTotal   decimal.Decimal `json:"product_total"`
	Payments       string          `json:"payments"`

	ItemNumber  int             `json:"item_number"`
	ProductCode string          `json:"product_code"`
	Description string          `json:"description"`
	CFOP        string          `json:"cfop"`
	NCM         string          `json:"ncm"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`

	ICMSCode    string          `json:"icms_code,omitempty"`
	ICMSBase    decimal.Decimal `json:"icms_base"`
	ICMSRate    decimal.Decimal `json:"icms_rate"`
	ICMSValue   decimal.Decimal `json:"icms_value"`
	ICMSSTBase  decimal.Decimal `json:"icms_st_base"`
	ICMSSTValue decimal.Decimal `json:"icms_st_value"`

	IPIValue decimal.Decimal `json:"ipi_value"`

	PISCode  string          `json:"pis_code,omitempty"`
	PISBase  decimal.Decimal `json:"pis_base"`
	PISRate  decimal.Decimal `json:"pis_rate"`
	PISValue decimal.Decimal `json:"pis_value"`

	COFINSCode  string          `json:"cofins_code,omitempty"`
	COFINSBase  decimal.Decimal `json:"cofins_base"`
	COFINSRate  decimal.Decimal `json:"cofins_rate"`
	COFINSValue decimal.Decimal `json:"cofins_value"`
}

// ParsedDocument is the parser output for one file. DefaultedFields counts
// numeric leaves whose text was present but unparsable and fell back to zero.
type ParsedDocument struct {
	Records         []InvoiceLineRecord `json:"records"`
	DefaultedFields int                 `json:"defaulted_fields"`
}

type ValidationStatus string

const (
	ValidationPassed  ValidationStatus = "passed"
	ValidationSkipped ValidationStatus = "skipped"
	ValidationFailed  ValidationStatus = "failed"
)

type ValidationResult struct {
	Status  ValidationStatus
	Message string
}
