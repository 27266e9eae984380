// Package encodings caches face embeddings per image file so unchanged
// files are never sent to the embedding service twice. Entries are keyed by
// path, modification time and size; when any of those change the old key
// simply never matches again, so invalidation is implicit.
package encodings

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"facesort/internal/faces"
)

// Identity is the cache key for one file state.
type Identity struct {
	Path    string
	ModTime int64 // unix seconds
	Size    int64
}

// IdentityFor stats the file and builds its cache identity.
func IdentityFor(path string) (Identity, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Identity{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return Identity{
		Path:    path,
		ModTime: info.ModTime().Unix(),
		Size:    info.Size(),
	}, nil
}

// Entry holds the cached extraction result for one file state. Embeddings
// may be empty: a faceless image is a valid, cacheable result.
type Entry struct {
	Embeddings [][]float32
	Boxes      []faces.Box
	StoredAt   time.Time
}

// Cache is an in-memory map with explicit Load/Persist. Safe for concurrent
// use by extraction workers; persistence is expected once, at the end of a
// batch.
type Cache struct {
	mu      sync.RWMutex
	entries map[Identity]Entry
	path    string
}

// New returns an empty cache that will persist to path.
func New(path string) *Cache {
	return &Cache{
		entries: make(map[Identity]Entry),
		path:    path,
	}
}

// Open loads the cache from path. A missing or unreadable file is not
// fatal: an empty cache is returned together with the load error so the
// caller can log a warning and continue.
func Open(path string) (*Cache, error) {
	c := New(path)
	if err := c.load(); err != nil {
		return New(path), err
	}
	return c, nil
}

// Get returns the cached embeddings and boxes for the identity, or ok=false
// when the file was never cached or has changed since.
func (c *Cache) Get(id Identity) (embeddings [][]float32, boxes []faces.Box, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[id]
	if !ok {
		return nil, nil, false
	}
	return entry.Embeddings, entry.Boxes, true
}

// Put stores or overwrites the entry for the identity.
func (c *Cache) Put(id Identity, embeddings [][]float32, boxes []faces.Box) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = Entry{
		Embeddings: embeddings,
		Boxes:      boxes,
		StoredAt:   time.Now(),
	}
}

// EvictOlderThan removes entries stored longer than maxAge ago and returns
// how many were removed. Bounds growth; in-flight lookups already holding
// results are unaffected.
func (c *Cache) EvictOlderThan(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id, entry := range c.entries {
		if entry.StoredAt.Before(cutoff) {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear drops all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Identity]Entry)
}

// Persist writes the cache to its backing file. Callers treat failure as a
// warning, not an abort.
func (c *Cache) Persist() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	f, err := os.Create(c.path)
	if err != nil {
		return fmt.Errorf("creating cache file: %w", err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(c.entries); err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}
	return nil
}

func (c *Cache) load() error {
	f, err := os.Open(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("opening cache file: %w", err)
	}
	defer f.Close()

	entries := make(map[Identity]Entry)
	if err := gob.NewDecoder(f).Decode(&entries); err != nil {
		return fmt.Errorf("decoding cache %s: %w", c.path, err)
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	return nil
}
