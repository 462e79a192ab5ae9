// Package localcache is the client-side key-value cache: a TTL'd store kept
// in memory and optionally mirrored to a JSON file, standing in for the
// browser's local storage. It holds the catalog snapshot, per-date attempt
// progress, and header stats.
//
// Expired entries are retained and can be read through GetStale, so callers
// can serve stale data while a fresh fetch is in flight.
package localcache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type entry struct {
	Data      json.RawMessage `json:"data"`
	ExpiresAt time.Time       `json:"expiresAt,omitempty"`
}

// Cache is safe for concurrent use. A zero path keeps the cache memory-only.
type Cache struct {
	mu      sync.Mutex
	path    string
	entries map[string]entry
	now     func() time.Time
}

// Open loads (or initializes) a cache backed by the given file path. An empty
// path yields a memory-only cache. A corrupt cache file is discarded, not an
// error.
func Open(path string) (*Cache, error) {
	c := &Cache{path: path, entries: map[string]entry{}, now: time.Now}
	if path == "" {
		return c, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache: %w", err)
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		c.entries = map[string]entry{}
	}
	return c, nil
}

// Set stores v under key with a time-to-live. ttl <= 0 stores without expiry.
func (c *Cache) Set(key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	e := entry{Data: raw}
	if ttl > 0 {
		e.ExpiresAt = c.now().Add(ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = e
	return c.flushLocked()
}

// Get decodes the entry under key into v. Returns false when the key is
// missing or expired.
func (c *Cache) Get(key string, v any) bool {
	ok, stale := c.GetStale(key, v)
	return ok && !stale
}

// GetStale decodes the entry under key into v even when expired, reporting
// staleness separately so callers can show cached data while refreshing.
func (c *Cache) GetStale(key string, v any) (ok, stale bool) {
	c.mu.Lock()
	e, found := c.entries[key]
	c.mu.Unlock()
	if !found {
		return false, false
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return false, false
	}
	stale = !e.ExpiresAt.IsZero() && c.now().After(e.ExpiresAt)
	return true, stale
}

// Delete removes an entry.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	_ = c.flushLocked()
}

func (c *Cache) flushLocked() error {
	if c.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0o600)
}
