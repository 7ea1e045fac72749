package usecase

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/rcarvalho/nfebatch/internal/core/domain"
)

type fakeSource struct {
	files   []string
	content map[string][]byte
}

func (s *fakeSource) ListInvoices(root string) ([]string, error) {
	if root == "missing" {
		return nil, domain.WrapError(domain.ErrInputDirMissing, "list", fmt.Errorf("missing root"))
	}
	return s.files, nil
}

func (s *fakeSource) ListEvents(string) ([]string, error) { return nil, nil }

func (s *fakeSource) Read(path string) ([]byte, error) {
	content, ok := s.content[path]
	if !ok {
		return nil, fmt.Errorf("no such file: %s", path)
	}
	return content, nil
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]domain.InvoiceLineRecord
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]domain.InvoiceLineRecord)}
}

func (c *fakeCache) Get(path string) ([]domain.InvoiceLineRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	records, ok := c.entries[path]
	return records, ok
}

func (c *fakeCache) Set(path string, records []domain.InvoiceLineRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = records
	c.sets++
}

type fakeValidator struct {
	mu    sync.Mutex
	calls int
}

func (v *fakeValidator) Validate(content []byte) domain.ValidationResult {
	v.mu.Lock()
	v.calls++
	v.mu.Unlock()
	if bytes.Contains(content, []byte("invalid")) {
		return domain.ValidationResult{Status: domain.ValidationFailed, Message: "structure"}
	}
	return domain.ValidationResult{Status: domain.ValidationPassed}
}

type fakeParser struct {
	mu    sync.Mutex
	calls int
}

func (p *fakeParser) Parse(content []byte, cancelled domain.KeySet) (domain.ParsedDocument, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if bytes.Contains(content, []byte("malformed")) {
		return domain.ParsedDocument{}, domain.WrapError(domain.ErrMalformedDocument, "parse", fmt.Errorf("bad xml"))
	}
	key := string(content)
	status := domain.StatusAuthorized
	if cancelled.Contains(key) {
		status = domain.StatusCancelled
	}
	return domain.ParsedDocument{
		Records: []domain.InvoiceLineRecord{{
			Status:        status,
			AccessKey:     key,
			DocumentTotal: decimal.NewFromInt(10),
		}},
		DefaultedFields: 1,
	}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestProcessDirectoryCountsFailuresWithoutAborting(t *testing.T) {
	source := &fakeSource{content: make(map[string][]byte)}
	for i := 0; i < 100; i++ {
		path := fmt.Sprintf("inv-%03d.xml", i)
		source.files = append(source.files, path)
		if i%10 == 9 {
			source.content[path] = []byte("malformed " + path)
		} else {
			source.content[path] = []byte("doc-" + path)
		}
	}

	uc := NewBatchUseCase(source, newFakeCache(), &fakeValidator{}, &fakeParser{}, nil, discardLogger(), 4)
	records, stats, err := uc.ProcessDirectory(context.Background(), "in", domain.NewKeySet())
	if err != nil {
		t.Fatalf("ProcessDirectory() error = %v", err)
	}

	if stats.FilesSeen != 100 {
		t.Fatalf("FilesSeen = %d, want 100", stats.FilesSeen)
	}
	if stats.FilesParsed != 90 {
		t.Fatalf("FilesParsed = %d, want 90", stats.FilesParsed)
	}
	if stats.ParseFailures != 10 {
		t.Fatalf("ParseFailures = %d, want 10", stats.ParseFailures)
	}
	if len(records) != 90 {
		t.Fatalf("len(records) = %d, want 90", len(records))
	}
	for _, rec := range records {
		if rec.AccessKey == "" {
			t.Fatalf("record from a failed file leaked into the result set")
		}
	}
	if stats.FieldsDefaulted != 90 {
		t.Fatalf("FieldsDefaulted = %d, want 90", stats.FieldsDefaulted)
	}
	if stats.FinishedAt.Before(stats.StartedAt) {
		t.Fatalf("FinishedAt precedes StartedAt")
	}
	if stats.RunID == "" {
		t.Fatalf("RunID not assigned")
	}
}

func TestProcessDirectoryCacheHitSkipsValidatorAndParser(t *testing.T) {
	source := &fakeSource{
		files:   []string{"cached.xml"},
		content: map[string][]byte{"cached.xml": []byte("doc-cached")},
	}
	cache := newFakeCache()
	cache.Set("cached.xml", []domain.InvoiceLineRecord{{AccessKey: "cached-key"}})
	cache.sets = 0
	validator := &fakeValidator{}
	parser := &fakeParser{}

	uc := NewBatchUseCase(source, cache, validator, parser, nil, discardLogger(), 2)
	records, stats, err := uc.ProcessDirectory(context.Background(), "in", domain.NewKeySet())
	if err != nil {
		t.Fatalf("ProcessDirectory() error = %v", err)
	}

	if stats.CacheHits != 1 || stats.FilesParsed != 0 {
		t.Fatalf("CacheHits = %d, FilesParsed = %d", stats.CacheHits, stats.FilesParsed)
	}
	if validator.calls != 0 || parser.calls != 0 {
		t.Fatalf("cache hit should bypass validator (%d calls) and parser (%d calls)", validator.calls, parser.calls)
	}
	if cache.sets != 0 {
		t.Fatalf("cache hit should not rewrite the entry")
	}
	if len(records) != 1 || records[0].AccessKey != "cached-key" {
		t.Fatalf("cached records not returned: %+v", records)
	}
}

func TestProcessDirectoryValidationFailureSkipsParser(t *testing.T) {
	source := &fakeSource{
		files: []string{"good.xml", "bad.xml"},
		content: map[string][]byte{
			"good.xml": []byte("doc-good"),
			"bad.xml":  []byte("invalid doc"),
		},
	}
	cache := newFakeCache()
	parser := &fakeParser{}

	uc := NewBatchUseCase(source, cache, &fakeValidator{}, parser, nil, discardLogger(), 2)
	records, stats, err := uc.ProcessDirectory(context.Background(), "in", domain.NewKeySet())
	if err != nil {
		t.Fatalf("ProcessDirectory() error = %v", err)
	}

	if stats.ValidationFailures != 1 {
		t.Fatalf("ValidationFailures = %d, want 1", stats.ValidationFailures)
	}
	if parser.calls != 1 {
		t.Fatalf("parser calls = %d, want 1", parser.calls)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	if _, ok := cache.Get("bad.xml"); ok {
		t.Fatalf("invalid document must not be cached")
	}
}

func TestProcessDirectoryUnreadableFileCountsAsParseFailure(t *testing.T) {
	source := &fakeSource{
		files:   []string{"ghost.xml"},
		content: map[string][]byte{},
	}

	uc := NewBatchUseCase(source, newFakeCache(), &fakeValidator{}, &fakeParser{}, nil, discardLogger(), 2)
	_, stats, err := uc.ProcessDirectory(context.Background(), "in", domain.NewKeySet())
	if err != nil {
		t.Fatalf("ProcessDirectory() error = %v", err)
	}
	if stats.ParseFailures != 1 {
		t.Fatalf("ParseFailures = %d, want 1", stats.ParseFailures)
	}
}

func TestProcessDirectoryMissingRootFailsFast(t *testing.T) {
	uc := NewBatchUseCase(&fakeSource{}, newFakeCache(), &fakeValidator{}, &fakeParser{}, nil, discardLogger(), 2)
	_, _, err := uc.ProcessDirectory(context.Background(), "missing", domain.NewKeySet())
	if err == nil {
		t.Fatalf("expected error for missing root")
	}
	if !domain.IsKind(err, domain.ErrInputDirMissing) {
		t.Fatalf("expected ErrInputDirMissing, got %v", err)
	}
}

func TestProcessDirectoryCancelledContextStopsDispatch(t *testing.T) {
	source := &fakeSource{content: make(map[string][]byte)}
	for i := 0; i < 50; i++ {
		path := fmt.Sprintf("inv-%02d.xml", i)
		source.files = append(source.files, path)
		source.content[path] = []byte("doc-" + path)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	uc := NewBatchUseCase(source, newFakeCache(), &fakeValidator{}, &fakeParser{}, nil, discardLogger(), 2)
	records, stats, err := uc.ProcessDirectory(ctx, "in", domain.NewKeySet())
	if err != nil {
		t.Fatalf("ProcessDirectory() error = %v", err)
	}
	if stats.FilesParsed != 0 || len(records) != 0 {
		t.Fatalf("pre-cancelled context should dispatch nothing, parsed %d", stats.FilesParsed)
	}
	if stats.FilesSeen != 50 {
		t.Fatalf("FilesSeen = %d, want 50", stats.FilesSeen)
	}
}

func TestProcessDirectoryMarksCancelledDocuments(t *testing.T) {
	source := &fakeSource{
		files: []string{"a.xml", "b.xml"},
		content: map[string][]byte{
			"a.xml": []byte("key-a"),
			"b.xml": []byte("key-b"),
		},
	}
	cancelled := domain.NewKeySet()
	cancelled.Add("key-b")

	uc := NewBatchUseCase(source, newFakeCache(), &fakeValidator{}, &fakeParser{}, nil, discardLogger(), 2)
	records, _, err := uc.ProcessDirectory(context.Background(), "in", cancelled)
	if err != nil {
		t.Fatalf("ProcessDirectory() error = %v", err)
	}

	statuses := make(map[string]domain.DocumentStatus)
	for _, rec := range records {
		statuses[rec.AccessKey] = rec.Status
	}
	if statuses["key-a"] != domain.StatusAuthorized {
		t.Fatalf("key-a status = %s", statuses["key-a"])
	}
	if statuses["key-b"] != domain.StatusCancelled {
		t.Fatalf("key-b status = %s", statuses["key-b"])
	}
}
