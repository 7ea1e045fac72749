package schema

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/beevik/etree"

	"github.com/rcarvalho/nfebatch/internal/core/domain"
)

// Validator runs the structural check matching a document's declared layout
// version. Validation is best-effort by contract: every problem is reported
// through the result, nothing is raised, and the batch keeps going.
type Validator struct {
	schemaDir       string
	schemaByVersion map[string]string
	log             *slog.Logger
}

func NewValidator(schemaDir string, log *slog.Logger) *Validator {
	return &Validator{
		schemaDir: schemaDir,
		schemaByVersion: map[string]string{
			"4.00": "leiauteNFe_v4.00.xsd",
		},
		log: log,
	}
}

// RegisterSchema maps an additional layout version to a schema file name.
// Supported versions are configuration, not code.
func (v *Validator) RegisterSchema(version, filename string) {
	v.schemaByVersion[version] = filename
}

func (v *Validator) Validate(content []byte) domain.ValidationResult {
	if v.schemaDir == "" {
		return skipped("schema validation disabled: no schema directory configured")
	}
	if _, err := os.Stat(v.schemaDir); err != nil {
		v.log.Warn("schema directory not present, skipping validation", "dir", v.schemaDir)
		return skipped(fmt.Sprintf("schema directory %s not present", v.schemaDir))
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(content); err != nil {
		return failed(fmt.Sprintf("xml syntax error: %v", err))
	}
	root := doc.Root()
	if root == nil {
		return failed("xml syntax error: empty document")
	}

	// Validate the invoice element itself, not the transport envelope;
	// fall back to the document root when it cannot be located.
	target := locateInfNFe(root)
	if target == nil {
		target = root
	}

	version := target.SelectAttrValue("versao", "")
	if version == "" {
		return failed("document declares no layout version")
	}
	filename, ok := v.schemaByVersion[version]
	if !ok {
		return failed(fmt.Sprintf("no schema mapped for layout version %s", version))
	}
	schemaPath := filepath.Join(v.schemaDir, filename)
	if _, err := os.Stat(schemaPath); err != nil {
		return failed(fmt.Sprintf("schema file %s missing for layout version %s", filename, version))
	}

	if msg := checkStructure(target); msg != "" {
		return failed(fmt.Sprintf("document invalid against %s: %s", filename, msg))
	}
	return domain.ValidationResult{
		Status:  domain.ValidationPassed,
		Message: fmt.Sprintf("validated against %s", filename),
	}
}

// checkStructure enforces the structural requirements of the invoice
// element: identifier attribute, header, emitter, and at least one item
// carrying a product group.
func checkStructure(inf *etree.Element) string {
	if inf.SelectAttrValue("Id", "") == "" {
		return "missing Id attribute"
	}

	required := []string{"ide", "emit", "det"}
	for _, name := range required {
		if selectChild(inf, name) == nil {
			return fmt.Sprintf("missing required element %q", name)
		}
	}
	for _, det := range inf.ChildElements() {
		if det.Tag != "det" {
			continue
		}
		if selectChild(det, "prod") == nil {
			return fmt.Sprintf("item %s missing required element %q", det.SelectAttrValue("nItem", "?"), "prod")
		}
	}
	return ""
}

func locateInfNFe(root *etree.Element) *etree.Element {
	if root.Tag == "infNFe" {
		return root
	}
	if inf := selectChild(root, "infNFe"); inf != nil {
		return inf
	}
	if nfe := selectChild(root, "NFe"); nfe != nil {
		return selectChild(nfe, "infNFe")
	}
	return nil
}

func selectChild(e *etree.Element, name string) *etree.Element {
	for _, c := range e.ChildElements() {
		if c.Tag == name {
			return c
		}
	}
	return nil
}

func skipped(message string) domain.ValidationResult {
	return domain.ValidationResult{Status: domain.ValidationSkipped, Message: message}
}

func failed(message string) domain.ValidationResult {
	return domain.ValidationResult{Status: domain.ValidationFailed, Message: message}
}
