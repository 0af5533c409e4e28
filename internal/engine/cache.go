// cache.go provides an in-memory cache for parsed certificate templates.
// This is the L1 cache: it avoids re-decoding element JSON on every render.
// Templates are keyed by their database ID and version, so an update
// automatically produces a cache miss.
package engine

import (
	"log/slog"
	"sync"
)

// cacheKey uniquely identifies a parsed template version.
type cacheKey struct {
	id      string
	version int
}

// templateCache is a concurrency-safe cache of normalized templates. Cached
// templates are shared read-only between renders.
type templateCache struct {
	mu      sync.RWMutex
	entries map[cacheKey]*Template
}

func newTemplateCache() *templateCache {
	return &templateCache{
		entries: make(map[cacheKey]*Template),
	}
}

// get returns nil on miss.
func (c *templateCache) get(id string, version int) *Template {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[cacheKey{id: id, version: version}]
}

func (c *templateCache) put(id string, version int, t *Template) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{id: id, version: version}] = t
	slog.Debug("template cached", "id", id, "version", version, "size", len(c.entries))
}

// invalidate removes all cached versions for a given template ID.
func (c *templateCache) invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.id == id {
			delete(c.entries, k)
		}
	}
	slog.Debug("template cache invalidated", "id", id)
}

func (c *templateCache) invalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[cacheKey]*Template)
	slog.Debug("template cache fully cleared")
}
