// Package filecache implements the response cache: a filesystem cache
// keyed by a stable fingerprint over (endpoint, canonical params).
// Entries are long-lived and written atomically (write-then-rename) so
// concurrent writers to the same key never observe a partial file.
package filecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/nbavault/vault/internal/platform/resilience"
)

// Cache is a filesystem-backed, read-through response cache rooted at
// a configurable directory, partitioned by source name.
type Cache struct {
	root   string
	flight resilience.SingleFlight
}

func New(root string) *Cache {
	return &Cache{root: root}
}

// Fingerprint computes the stable hash over an endpoint id and its
// canonicalized parameters that both the cache and the audit trail key
// off of. Params are sorted by key before hashing so callers don't
// need to canonicalize insertion order themselves.
func Fingerprint(endpointID string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf strings.Builder
	buf.WriteString(endpointID)
	for _, k := range keys {
		buf.WriteByte('\x00')
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.WriteString(params[k])
	}

	sum := sha256.Sum256([]byte(buf.String()))
	return hex.EncodeToString(sum[:])
}

func (c *Cache) path(source, fingerprint string) string {
	return filepath.Join(c.root, "cache", source, fingerprint)
}

// Get returns the cached bytes for (source, fingerprint), or false if
// no entry exists.
func (c *Cache) Get(_ context.Context, source, fingerprint string) ([]byte, bool) {
	data, err := os.ReadFile(c.path(source, fingerprint))
	if err != nil {
		return nil, false
	}
	return data, true
}

// Put writes data under (source, fingerprint) with an atomic
// write-then-rename so concurrent writers to the same key are safe;
// the last rename wins.
func (c *Cache) Put(_ context.Context, source, fingerprint string, data []byte) error {
	dest := c.path(source, fingerprint)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("filecache: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-*")
	if err != nil {
		return fmt.Errorf("filecache: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("filecache: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("filecache: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("filecache: rename temp file: %w", err)
	}
	return nil
}

// GetOrLoad reads through the cache, deduplicating concurrent loads
// for the same key via single-flight so a cold cache under concurrent
// callers still issues exactly one fetch.
func (c *Cache) GetOrLoad(ctx context.Context, source, fingerprint string, load func(context.Context) ([]byte, error)) ([]byte, error) {
	if data, ok := c.Get(ctx, source, fingerprint); ok {
		return data, nil
	}

	key := source + "/" + fingerprint
	value, err, _ := c.flight.Do(key, func() (any, error) {
		if cached, ok := c.Get(ctx, source, fingerprint); ok {
			return cached, nil
		}
		data, loadErr := load(ctx)
		if loadErr != nil {
			return nil, loadErr
		}
		if putErr := c.Put(ctx, source, fingerprint, data); putErr != nil {
			return nil, putErr
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return value.([]byte), nil
}

// PruneOlderThan removes cache entries under source whose modification
// time is older than age. It is an operator convenience, not part of
// the fetch/validate/upsert contract; the orchestrator does not call it.
func (c *Cache) PruneOlderThan(source string, age time.Duration) (int, error) {
	dir := filepath.Join(c.root, "cache", source)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("filecache: read dir: %w", err)
	}

	cutoff := time.Now().Add(-age)
	pruned := 0
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, entry.Name())); err == nil {
				pruned++
			}
		}
	}
	return pruned, nil
}
