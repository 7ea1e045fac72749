package nfexml

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/rcarvalho/nfebatch/internal/core/domain"
)

// Parser extracts flat line records from one fiscal-invoice XML document.
// It is stateless and safe for concurrent use.
type Parser struct {
	log *slog.Logger
}

func NewParser(log *slog.Logger) *Parser {
	return &Parser{log: log}
}

// Parse is a pure function of the document bytes and the cancelled-key set.
// Absence of the data block, header, emitter or first item is a hard failure;
// every other group is optional and leaves its fields at zero.
func (p *Parser) Parse(content []byte, cancelled domain.KeySet) (domain.ParsedDocument, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(content); err != nil {
		return domain.ParsedDocument{}, domain.WrapError(domain.ErrMalformedDocument, "read xml", err)
	}

	inf := findInfNFe(doc.Root())
	if inf == nil {
		return domain.ParsedDocument{}, domain.WrapError(domain.ErrMalformedDocument, "locate data block",
			errors.New("infNFe element not found"))
	}

	ide := child(inf, "ide")
	emit := child(inf, "emit")
	items := children(inf, "det")
	switch {
	case ide == nil:
		return domain.ParsedDocument{}, domain.WrapError(domain.ErrMalformedDocument, "locate header",
			errors.New("ide element not found"))
	case emit == nil:
		return domain.ParsedDocument{}, domain.WrapError(domain.ErrMalformedDocument, "locate emitter",
			errors.New("emit element not found"))
	case len(items) == 0:
		return domain.ParsedDocument{}, domain.WrapError(domain.ErrMalformedDocument, "locate items",
			errors.New("no det elements found"))
	}

	nums := &numberReader{}

	accessKey := strings.TrimPrefix(sanitizeText(inf.SelectAttrValue("Id", "")), "NFe")
	status := domain.StatusAuthorized
	if cancelled.Contains(accessKey) {
		status = domain.StatusCancelled
	}

	issuedAt := leafText(ide, "dhEmi")
	if issuedAt == "" {
		issuedAt = leafText(ide, "dEmi")
	}

	emitterTaxID := leafText(emit, "CNPJ")
	if emitterTaxID == "" {
		emitterTaxID = leafText(emit, "CPF")
	}

	dest := child(inf, "dest")
	recipientTaxID := leafText(dest, "CNPJ")
	if recipientTaxID == "" {
		recipientTaxID = leafText(dest, "CPF")
	}

	totals := descend(inf, "total", "ICMSTot")

	header := domain.InvoiceLineRecord{
		Status:         status,
		AccessKey:      accessKey,
		Model:          leafText(ide, "mod"),
		Series:         leafText(ide, "serie"),
		Number:         leafText(ide, "nNF"),
		IssuedAt:       issuedAt,
		EmitterTaxID:   emitterTaxID,
		EmitterName:    leafText(emit, "xNome"),
		RecipientTaxID: recipientTaxID,
		RecipientName:  leafText(dest, "xNome"),
		DocumentTotal:  nums.read(totals, "vNF"),
		ProductTotal:   nums.read(totals, "vProd"),
		Payments:       p.renderPayments(inf, nums),
	}

	records := make([]domain.InvoiceLineRecord, 0, len(items))
	for i, det := range items {
		rec := header

		rec.ItemNumber = i + 1
		if n, err := strconv.Atoi(det.SelectAttrValue("nItem", "")); err == nil {
			rec.ItemNumber = n
		}

		prod := child(det, "prod")
		rec.ProductCode = leafText(prod, "cProd")
		rec.Description = leafText(prod, "xProd")
		rec.CFOP = leafText(prod, "CFOP")
		rec.NCM = leafText(prod, "NCM")
		rec.Quantity = nums.read(prod, "qCom")
		rec.UnitPrice = nums.read(prod, "vUnCom")
		rec.LineTotal = nums.read(prod, "vProd")

		p.extractTaxes(&rec, child(det, "imposto"), nums)

		records = append(records, rec)
	}

	return domain.ParsedDocument{Records: records, DefaultedFields: nums.defaulted}, nil
}

// findInfNFe tolerates both bare NFe documents and nfeProc envelopes, and a
// root that is already the infNFe element.
func findInfNFe(root *etree.Element) *etree.Element {
	if root == nil {
		return nil
	}
	if root.Tag == "infNFe" {
		return root
	}
	if inf := child(root, "infNFe"); inf != nil {
		return inf
	}
	if nfe := child(root, "NFe"); nfe != nil {
		return child(nfe, "infNFe")
	}
	return nil
}

// extractTaxes scans the item's tax container. Tag matching is by substring:
// the concrete sub-tag varies with the tax regime (ICMS00, ICMSSN102, ...).
// The first match per tax wins; for ICMS/PIS/COFINS the regime block is the
// first and only child of the matched group.
func (p *Parser) extractTaxes(rec *domain.InvoiceLineRecord, imposto *etree.Element, nums *numberReader) {
	if imposto == nil {
		return
	}

	var icmsSeen, ipiSeen, pisSeen, cofinsSeen bool
	for _, group := range imposto.ChildElements() {
		switch {
		case !icmsSeen && strings.Contains(group.Tag, "ICMS"):
			icmsSeen = true
			regime := firstChild(group)
			if regime == nil {
				continue
			}
			rec.ICMSCode = leafText(regime, "CST")
			if rec.ICMSCode == "" {
				rec.ICMSCode = leafText(regime, "CSOSN")
			}
			rec.ICMSBase = nums.read(regime, "vBC")
			rec.ICMSRate = nums.read(regime, "pICMS")
			rec.ICMSValue = nums.read(regime, "vICMS")
			rec.ICMSSTBase = nums.read(regime, "vBCST")
			rec.ICMSSTValue = nums.read(regime, "vICMSST")
		case !ipiSeen && strings.Contains(group.Tag, "IPI"):
			ipiSeen = true
			if trib := child(group, "IPITrib"); trib != nil {
				rec.IPIValue = nums.read(trib, "vIPI")
			}
		case !cofinsSeen && strings.Contains(group.Tag, "COFINS"):
			cofinsSeen = true
			regime := firstChild(group)
			if regime == nil {
				continue
			}
			rec.COFINSCode = leafText(regime, "CST")
			rec.COFINSBase = nums.read(regime, "vBC")
			rec.COFINSRate = nums.read(regime, "pCOFINS")
			rec.COFINSValue = nums.read(regime, "vCOFINS")
		case !pisSeen && strings.Contains(group.Tag, "PIS"):
			pisSeen = true
			regime := firstChild(group)
			if regime == nil {
				continue
			}
			rec.PISCode = leafText(regime, "CST")
			rec.PISBase = nums.read(regime, "vBC")
			rec.PISRate = nums.read(regime, "pPIS")
			rec.PISValue = nums.read(regime, "vPIS")
		}
	}
}

// renderPayments maps each payment detail through the code table and renders
// the breakdown as "Label=Amount; Label=Amount".
func (p *Parser) renderPayments(inf *etree.Element, nums *numberReader) string {
	pag := child(inf, "pag")
	if pag == nil {
		return ""
	}

	details := children(pag, "detPag")
	if len(details) == 0 && child(pag, "tPag") != nil {
		// Older layouts carry tPag/vPag directly on the pag element.
		details = []*etree.Element{pag}
	}

	parts := make([]string, 0, len(details))
	for _, det := range details {
		label := paymentLabel(leafText(det, "tPag"))
		amount := nums.read(det, "vPag")
		parts = append(parts, label+"="+amount.StringFixed(2))
	}
	return strings.Join(parts, "; ")
}

// numberReader applies the locale-tolerant numeric rules: comma as decimal
// separator, zero on empty or unparsable text. Non-empty unparsable text is
// counted so data-quality problems stay observable in run statistics.
type numberReader struct {
	defaulted int
}

func (n *numberReader) read(e *etree.Element, path ...string) decimal.Decimal {
	raw := leafText(e, path...)
	if raw == "" {
		return decimal.Zero
	}
	value, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", "."))
	if err != nil {
		n.defaulted++
		return decimal.Zero
	}
	return value
}
