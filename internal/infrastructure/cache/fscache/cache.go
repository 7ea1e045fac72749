package fscache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rcarvalho/nfebatch/internal/core/domain"
)

// envelopeVersion tags the on-disk serialization. Bumping it invalidates
// every existing entry instead of silently misreading it.
const envelopeVersion = 1

type envelope struct {
	Version int                        `json:"version"`
	Records []domain.InvoiceLineRecord `json:"records"`
}

// Cache is a content-addressed store of parse results, keyed by file
// identity (path, size, mtime). Any change to the source file changes the
// key, so stale hits are impossible and entries never need explicit expiry.
// The whole directory is safe to delete at any time.
type Cache struct {
	dir string
	log *slog.Logger
}

func New(dir string, log *slog.Logger) (*Cache, error) {
	if dir == "" {
		dir = "./data/cache"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{dir: dir, log: log}, nil
}

// Get returns the cached records for a file, or reports a miss. Corrupt or
// format-incompatible entries are deleted and reported as misses; no error
// ever reaches the caller.
func (c *Cache) Get(path string) ([]domain.InvoiceLineRecord, bool) {
	key, ok := c.key(path)
	if !ok {
		return nil, false
	}

	entryPath := c.entryPath(key)
	raw, err := os.ReadFile(entryPath)
	if err != nil {
		return nil, false
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Version != envelopeVersion {
		c.log.Warn("discarding unreadable cache entry", "path", path, "entry", entryPath)
		_ = os.Remove(entryPath)
		return nil, false
	}
	return env.Records, true
}

// Set persists the records for a file. Caching is an optimization: a
// failure to persist is logged and swallowed.
func (c *Cache) Set(path string, records []domain.InvoiceLineRecord) {
	key, ok := c.key(path)
	if !ok {
		return
	}

	raw, err := json.Marshal(envelope{Version: envelopeVersion, Records: records})
	if err != nil {
		c.log.Warn("cache entry not serializable", "path", path, "error", err)
		return
	}
	if err := os.WriteFile(c.entryPath(key), raw, 0o644); err != nil {
		c.log.Warn("cache write failed", "path", path, "error", err)
	}
}

// key derives the cache key from file identity. A file that cannot be
// stat'ed produces no key and therefore a guaranteed miss.
func (c *Cache) key(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return "", false
	}
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%d|%d", path, info.Size(), info.ModTime().UnixNano()))
	return hex.EncodeToString(sum[:]), true
}

func (c *Cache) entryPath(key string) string {
	return filepath.Join(c.dir, key+".json")
}
