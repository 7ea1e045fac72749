package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rcarvalho/nfebatch/internal/config"
	"github.com/rcarvalho/nfebatch/internal/core/domain"
)

const (
	keyAuthorized = "35260511222333000181550010000000011000000010"
	keyCancelled  = "35260511222333000181550010000000021000000020"
)

const invoiceOne = `<?xml version="1.0" encoding="UTF-8"?>
<nfeProc xmlns="http://www.portalfiscal.inf.br/nfe">
  <NFe>
    <infNFe Id="NFe` + keyAuthorized + `" versao="4.00">
      <ide><mod>55</mod><serie>1</serie><nNF>1</nNF><dhEmi>2026-05-10T09:00:00-03:00</dhEmi></ide>
      <emit><CNPJ>11222333000181</CNPJ><xNome>ACME LTDA</xNome></emit>
      <det nItem="1">
        <prod>
          <cProd>P1</cProd><xProd>RICE 5KG</xProd><NCM>10063021</NCM><CFOP>5101</CFOP>
          <qCom>2.0</qCom><vUnCom>45.00</vUnCom><vProd>90.00</vProd>
        </prod>
        <imposto>
          <ICMS><ICMS00><CST>00</CST><vBC>90.00</vBC><pICMS>18.00</pICMS><vICMS>16.20</vICMS></ICMS00></ICMS>
        </imposto>
      </det>
      <total><ICMSTot><vProd>90.00</vProd><vNF>90.00</vNF></ICMSTot></total>
      <pag><detPag><tPag>01</tPag><vPag>90.00</vPag></detPag></pag>
    </infNFe>
  </NFe>
</nfeProc>`

const invoiceTwo = `<?xml version="1.0" encoding="UTF-8"?>
<NFe xmlns="http://www.portalfiscal.inf.br/nfe">
  <infNFe Id="NFe` + keyCancelled + `" versao="4.00">
    <ide><mod>55</mod><serie>1</serie><nNF>2</nNF><dhEmi>2026-05-11T09:00:00-03:00</dhEmi></ide>
    <emit><CNPJ>11222333000181</CNPJ><xNome>ACME LTDA</xNome></emit>
    <det nItem="1">
      <prod>
        <cProd>P2</cProd><xProd>BEANS 1KG</xProd><NCM>07133399</NCM><CFOP>5102</CFOP>
        <qCom>1.0</qCom><vUnCom>40.00</vUnCom><vProd>40.00</vProd>
      </prod>
      <imposto/>
    </det>
    <total><ICMSTot><vProd>40.00</vProd><vNF>40.00</vNF></ICMSTot></total>
    <pag><detPag><tPag>17</tPag><vPag>40.00</vPag></detPag></pag>
  </infNFe>
</NFe>`

const cancellationEvent = `<?xml version="1.0" encoding="UTF-8"?>
<procEventoNFe xmlns="http://www.portalfiscal.inf.br/nfe" versao="1.00">
  <evento versao="1.00">
    <infEvento>
      <chNFe>` + keyCancelled + `</chNFe>
      <tpEvento>110111</tpEvento>
      <xEvento>Cancelamento</xEvento>
    </infEvento>
  </evento>
</procEventoNFe>`

func writeFixtureTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"nfe-000001.xml":            invoiceOne,
		"sub/nfe-000002.xml":        invoiceTwo,
		"sub/procEvento-000002.xml": cancellationEvent,
	}
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return root
}

func TestFullRunOverFixtureTree(t *testing.T) {
	root := writeFixtureTree(t)
	t.Setenv("CACHE_DIR", filepath.Join(t.TempDir(), "cache"))
	t.Setenv("LOG_LEVEL", "error")

	ctx := context.Background()
	app, err := New(ctx, config.Load())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	cancelled, err := app.Events.Collect(root)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if !cancelled.Contains(keyCancelled) {
		t.Fatalf("cancellation event not collected")
	}

	records, stats, err := app.BatchUC.ProcessDirectory(ctx, root, cancelled)
	if err != nil {
		t.Fatalf("ProcessDirectory() error = %v", err)
	}
	if stats.FilesSeen != 2 || stats.FilesParsed != 2 {
		t.Fatalf("stats = %+v, want 2 invoices parsed", stats)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}

	summary := app.SumUC.Summarize(records, app.Rates)
	if summary.DocumentCount != 2 {
		t.Fatalf("DocumentCount = %d, want 2", summary.DocumentCount)
	}
	// The cancelled document stays out of the monetary figures.
	if summary.TotalSales.StringFixed(2) != "90.00" {
		t.Fatalf("TotalSales = %s, want 90.00", summary.TotalSales)
	}
	if summary.PaymentTotals["Cash"].StringFixed(2) != "90.00" {
		t.Fatalf("PaymentTotals = %v", summary.PaymentTotals)
	}
	if _, ok := summary.PaymentTotals["PIX"]; ok {
		t.Fatalf("cancelled payment leaked: %v", summary.PaymentTotals)
	}
	if summary.CFOPTaxes["5101"].ICMS.StringFixed(2) != "16.20" {
		t.Fatalf("CFOPTaxes[5101].ICMS = %s, want 16.20", summary.CFOPTaxes["5101"].ICMS)
	}

	// Second run over the same tree is answered from the cache.
	_, stats2, err := app.BatchUC.ProcessDirectory(ctx, root, cancelled)
	if err != nil {
		t.Fatalf("second ProcessDirectory() error = %v", err)
	}
	if stats2.CacheHits != 2 {
		t.Fatalf("CacheHits = %d, want 2", stats2.CacheHits)
	}

	// The summary survives a full export round trip.
	exportPath := filepath.Join(t.TempDir(), "summary.xlsx")
	if err := app.Exporter.Export(exportPath, summary); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if _, err := os.Stat(exportPath); err != nil {
		t.Fatalf("exported file missing: %v", err)
	}
}

func TestRunStatusAssignment(t *testing.T) {
	root := writeFixtureTree(t)
	t.Setenv("CACHE_DIR", filepath.Join(t.TempDir(), "cache"))
	t.Setenv("LOG_LEVEL", "error")

	ctx := context.Background()
	app, err := New(ctx, config.Load())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	cancelled, err := app.Events.Collect(root)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	records, _, err := app.BatchUC.ProcessDirectory(ctx, root, cancelled)
	if err != nil {
		t.Fatalf("ProcessDirectory() error = %v", err)
	}

	statuses := make(map[string]domain.DocumentStatus)
	for _, rec := range records {
		statuses[rec.AccessKey] = rec.Status
	}
	if statuses[keyAuthorized] != domain.StatusAuthorized {
		t.Fatalf("authorized key status = %s", statuses[keyAuthorized])
	}
	if statuses[keyCancelled] != domain.StatusCancelled {
		t.Fatalf("cancelled key status = %s", statuses[keyCancelled])
	}
}
