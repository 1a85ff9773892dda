package enrich

import (
	"sync"
	"time"
)

// Cache memoizes source lookups by (normalized query, source) for a bounded
// time. Negative results are cached too, so a source that had nothing is not
// asked again until the entry expires. Expired entries are evicted lazily on
// the next lookup; there is no background sweep.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[cacheKey]cacheEntry
}

type cacheKey struct {
	query  string
	source Source
}

type cacheEntry struct {
	record   *PartialRecord
	found    bool
	storedAt time.Time
}

// NewCache builds a Cache with the given time-to-live. A non-positive TTL
// disables expiry.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[cacheKey]cacheEntry),
	}
}

// Get returns the memoized record for the query/source pair. ok reports a
// cache hit; found distinguishes a cached record from a cached negative.
func (c *Cache) Get(query string, source Source) (record *PartialRecord, found bool, ok bool) {
	key := cacheKey{query: query, source: source}

	c.mu.RLock()
	entry, present := c.entries[key]
	c.mu.RUnlock()

	if !present {
		return nil, false, false
	}

	if c.expired(entry) {
		c.mu.Lock()
		// Re-check under the write lock; another caller may have refreshed it.
		if current, still := c.entries[key]; still && c.expired(current) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false, false
	}

	return entry.record, entry.found, true
}

// Put stores a lookup result. A nil record memoizes a negative result.
func (c *Cache) Put(query string, source Source, record *PartialRecord) {
	key := cacheKey{query: query, source: source}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{
		record:   record,
		found:    record != nil,
		storedAt: c.now(),
	}
}

// Len reports the number of live entries, counting expired ones that have not
// been evicted yet.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) expired(entry cacheEntry) bool {
	if c.ttl <= 0 {
		return false
	}
	return c.now().Sub(entry.storedAt) > c.ttl
}
