package school

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

const (
	// DefaultDirectoryTTL is how long a directory page stays cached.
	DefaultDirectoryTTL = 5 * time.Minute

	// MaxDirectoryEntries bounds the number of cached pages.
	MaxDirectoryEntries = 1000
)

type cacheEntry struct {
	dir     Directory
	expires time.Time
}

// DirectoryCache caches pages of the school directory, keyed by (filter shape, page).
// It is owned by whoever serves the directory; there is no package-level instance.
type DirectoryCache struct {
	ttl   time.Duration
	clock clock.Clock

	mu        sync.Mutex
	entries   map[string]cacheEntry
	nextSweep time.Time
}

// NewDirectoryCache returns an empty cache. A zero ttl means DefaultDirectoryTTL.
func NewDirectoryCache(ttl time.Duration, clk clock.Clock) *DirectoryCache {
	if ttl <= 0 {
		ttl = DefaultDirectoryTTL
	}
	if clk == nil {
		clk = clock.New()
	}
	return &DirectoryCache{
		ttl:     ttl,
		clock:   clk,
		entries: make(map[string]cacheEntry),
	}
}

// CacheKey returns the key of a directory page.
func CacheKey(filter QueryFilter, page int) string {
	return fmt.Sprintf("%s|page=%d", filter.Shape(), normalizePage(page))
}

func (c *DirectoryCache) Get(key string) (Directory, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return Directory{}, false
	}
	if !c.clock.Now().Before(entry.expires) {
		delete(c.entries, key)
		return Directory{}, false
	}
	return entry.dir, true
}

// Set stores dir under key. Expired pages are swept at most once per ttl, and
// the page closest to expiry is evicted when the cache is full.
func (c *DirectoryCache) Set(key string, dir Directory) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if !now.Before(c.nextSweep) {
		c.sweep(now)
		c.nextSweep = now.Add(c.ttl)
	}
	if _, ok := c.entries[key]; !ok && len(c.entries) >= MaxDirectoryEntries {
		c.sweep(now)
		if len(c.entries) >= MaxDirectoryEntries {
			c.evictOldest()
		}
	}
	c.entries[key] = cacheEntry{dir: dir, expires: now.Add(c.ttl)}
}

func (c *DirectoryCache) sweep(now time.Time) {
	for key, entry := range c.entries {
		if !now.Before(entry.expires) {
			delete(c.entries, key)
		}
	}
}

func (c *DirectoryCache) evictOldest() {
	var (
		oldest  string
		expires time.Time
	)
	for key, entry := range c.entries {
		if oldest == "" || entry.expires.Before(expires) {
			oldest, expires = key, entry.expires
		}
	}
	delete(c.entries, oldest)
}

// Invalidate drops every cached page. Call it after writing schools.
func (c *DirectoryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// Len returns the number of entries, expired or not.
func (c *DirectoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Query serves a directory page from the cache, querying svc on a miss.
// Failed queries are not cached.
func (c *DirectoryCache) Query(ctx context.Context, svc ServiceInterface, filter QueryFilter, page int) (Directory, error) {
	key := CacheKey(filter, page)
	if dir, ok := c.Get(key); ok {
		return dir, nil
	}
	dir, err := svc.Query(ctx, filter, page)
	if err != nil {
		return Directory{}, err
	}
	c.Set(key, dir)
	return dir, nil
}
