package question

import (
	"fmt"
	"sync"
	"time"
)

// Cache is a TTL cache for generated question batches, keyed by
// skill|difficulty|count. When full, the entry closest to expiry is evicted.
// Safe for concurrent use.
type Cache struct {
	ttl        time.Duration
	maxEntries int

	mu      sync.Mutex
	entries map[string]cacheEntry

	// now is overridable in tests.
	now func() time.Time
}

type cacheEntry struct {
	questions []Question
	expires   time.Time
}

// NewCache creates a cache with the given TTL and capacity. Non-positive
// values fall back to 15 minutes and 64 entries.
func NewCache(ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = 64
	}
	return &Cache{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]cacheEntry),
		now:        time.Now,
	}
}

func cacheKey(req Request) string {
	return fmt.Sprintf("%s|%s|%d", req.Skill, req.Difficulty, req.Count)
}

// Get returns the cached batch for req, or nil if absent or expired.
func (c *Cache) Get(req Request) []Question {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[cacheKey(req)]
	if !ok {
		return nil
	}
	if c.now().After(entry.expires) {
		delete(c.entries, cacheKey(req))
		return nil
	}
	return entry.questions
}

// Put stores a batch for req, evicting the soonest-to-expire entry if the
// cache is full.
func (c *Cache) Put(req Request, questions []Question) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(req)
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		var (
			oldestKey string
			oldest    time.Time
		)
		for k, e := range c.entries {
			if oldestKey == "" || e.expires.Before(oldest) {
				oldestKey, oldest = k, e.expires
			}
		}
		delete(c.entries, oldestKey)
	}

	c.entries[key] = cacheEntry{
		questions: questions,
		expires:   c.now().Add(c.ttl),
	}
}

// Len returns the number of live entries, counting expired but unevicted
// ones.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
