package rsubprocess

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache wraps a PackageIntrospector with a TTL'd cache of previously
// seen exports, keyed by package name, deduplicating concurrent
// lookups of the same package via singleflight. On a subprocess
// failure (most commonly a timeout), a stale cached entry is served
// instead of the error — spec §7.7's "graceful degradation" — and the
// error is only propagated when nothing has ever been cached for that
// package.
type Cache struct {
	inner PackageIntrospector
	ttl   time.Duration

	group singleflight.Group

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	exports   []string
	expiresAt time.Time
}

// NewCache returns a Cache delegating misses to inner, with entries
// considered fresh for ttl.
func NewCache(inner PackageIntrospector, ttl time.Duration) *Cache {
	return &Cache{inner: inner, ttl: ttl, entries: make(map[string]cacheEntry)}
}

// Exports returns pkg's exports, preferring a fresh cache entry,
// otherwise querying inner (deduplicated across concurrent callers for
// the same pkg) and caching the result. If inner fails and a stale
// entry exists, that stale entry is returned instead of the error.
func (c *Cache) Exports(ctx context.Context, pkg string) ([]string, error) {
	if exports, fresh := c.get(pkg); fresh {
		return exports, nil
	}

	v, err, _ := c.group.Do(pkg, func() (interface{}, error) {
		return c.inner.Exports(ctx, pkg)
	})
	if err != nil {
		if stale, ok := c.getStale(pkg); ok {
			return stale, nil
		}
		return nil, err
	}

	exports := v.([]string)
	c.put(pkg, exports)
	return exports, nil
}

// Depends forwards directly to inner: spec §7.7 only calls for caching
// exports, and dependency lists are consulted far less often (once per
// package-call resolution chain, not per keystroke).
func (c *Cache) Depends(ctx context.Context, pkg string) ([]string, error) {
	return c.inner.Depends(ctx, pkg)
}

func (c *Cache) get(pkg string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[pkg]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.exports, true
}

func (c *Cache) getStale(pkg string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[pkg]
	if !ok {
		return nil, false
	}
	return e.exports, true
}

func (c *Cache) put(pkg string, exports []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[pkg] = cacheEntry{exports: exports, expiresAt: time.Now().Add(c.ttl)}
}

// Invalidate evicts pkg's cached entry, if any.
func (c *Cache) Invalidate(pkg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, pkg)
}
