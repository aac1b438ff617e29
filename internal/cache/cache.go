// Package cache implements the in-memory latest-price cache.
//
// Entries are keyed by (provider, source ticker) and carry their own expiry.
// Expiry is enforced lazily on read; there is no background sweep. Positive
// results and not-found sentinels use different TTLs, configured by callers
// at write time.
package cache

import (
	"sync"
	"time"

	"github.com/aristath/quotefeed/internal/domain"
)

// Key identifies a cache entry
type Key struct {
	Provider     string
	SourceTicker string
}

// Entry is a cached lookup outcome with its freshness window
type Entry struct {
	Result    domain.PriceResult
	FetchedAt time.Time
	ExpiresAt time.Time
}

// Cache is a mutex-guarded TTL map. Atomicity is per entry; concurrent
// misses for the same key may each trigger a fetch, with last write winning.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]Entry
	now     func() time.Time
}

// New creates an empty cache
func New() *Cache {
	return &Cache{
		entries: make(map[Key]Entry),
		now:     time.Now,
	}
}

// NewWithClock creates a cache with an injected clock, for tests
func NewWithClock(now func() time.Time) *Cache {
	c := New()
	c.now = now
	return c
}

// Get returns the entry for key if present and fresh. An expired entry is
// removed on the way out and reported as a miss.
func (c *Cache) Get(key Key) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	if !c.now().Before(entry.ExpiresAt) {
		delete(c.entries, key)
		return Entry{}, false
	}
	return entry, true
}

// GetStale returns the entry regardless of expiry, without evicting it.
// Used to degrade gracefully when a refetch fails.
func (c *Cache) GetStale(key Key) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	return entry, ok
}

// Put stores a result with the given TTL, overwriting any previous entry
func (c *Cache) Put(key Key, result domain.PriceResult, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[key] = Entry{
		Result:    result,
		FetchedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Delete removes an entry if present
func (c *Cache) Delete(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of entries, expired ones included
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Info describes one cache entry for introspection endpoints
type Info struct {
	Provider     string    `json:"provider"`
	SourceTicker string    `json:"source_ticker"`
	Found        bool      `json:"found"`
	Price        *float64  `json:"price,omitempty"`
	FetchedAt    time.Time `json:"fetched_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Snapshot returns a point-in-time copy of all entries
func (c *Cache) Snapshot() []Info {
	c.mu.Lock()
	defer c.mu.Unlock()

	infos := make([]Info, 0, len(c.entries))
	for key, entry := range c.entries {
		info := Info{
			Provider:     key.Provider,
			SourceTicker: key.SourceTicker,
			Found:        entry.Result.IsFound(),
			FetchedAt:    entry.FetchedAt,
			ExpiresAt:    entry.ExpiresAt,
		}
		if entry.Result.IsFound() {
			price := entry.Result.Price
			info.Price = &price
		}
		infos = append(infos, info)
	}
	return infos
}
