package localfs

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rcarvalho/nfebatch/internal/core/domain"
)

// Source enumerates and reads fiscal documents on the local filesystem.
// Invoice enumeration excludes event documents (cancellations, corrections):
// those belong to the cancellation collector, not the parsing pipeline.
type Source struct{}

func New() *Source {
	return &Source{}
}

func (s *Source) ListInvoices(root string) ([]string, error) {
	return s.list(root, func(name string) bool {
		return !isEventDocument(name)
	})
}

func (s *Source) ListEvents(root string) ([]string, error) {
	return s.list(root, isEventDocument)
}

func (s *Source) Read(path string) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrMalformedDocument, "read document", err)
	}
	return content, nil
}

func (s *Source) list(root string, keep func(name string) bool) ([]string, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, domain.WrapError(domain.ErrInputDirMissing, "stat input dir", err)
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := strings.ToLower(d.Name())
		if !strings.HasSuffix(name, ".xml") {
			return nil
		}
		if keep(name) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrInputDirMissing, "walk input dir", err)
	}
	return files, nil
}

// isEventDocument recognizes event files by name. Event files carry the
// event-protocol marker in their name in every layout we have seen.
func isEventDocument(name string) bool {
	return strings.Contains(name, "evento")
}
