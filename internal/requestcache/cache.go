// Package requestcache provides a small TTL cache for response payloads,
// keyed by request parameters. Entries remember when their content was
// produced so that fresh upstream data can evict stale responses.
package requestcache

import (
	"sync"
	"time"
)

// DefaultTTL is applied by Insert when no explicit TTL is given.
const DefaultTTL = 5 * time.Minute

type entry[V any] struct {
	value    V
	inserted time.Time
	expires  time.Time
}

// Cache is a TTL cache guarded by a reader-writer lock; lookups are the
// common path and only take the read side. The zero value is not usable;
// use New.
type Cache[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	ttl     time.Duration

	// now is swappable for tests.
	now func() time.Time
}

// New creates a cache with the given default TTL. A non-positive TTL falls
// back to DefaultTTL.
func New[V any](ttl time.Duration) *Cache[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache[V]{
		entries: make(map[string]entry[V]),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached value for key. Expired entries are removed and
// reported as a miss.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	now := c.now()
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if now.After(e.expires) {
		c.mu.Lock()
		// The entry may have been replaced between the read and the
		// write lock; only delete it if it is still expired.
		if cur, ok := c.entries[key]; ok && now.After(cur.expires) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Insert stores value under key with the default TTL, stamped at now.
func (c *Cache[V]) Insert(key string, value V) {
	c.InsertStamped(key, value, c.now(), c.ttl)
}

// InsertWithTTL stores value under key with an explicit TTL, stamped at now.
func (c *Cache[V]) InsertWithTTL(key string, value V, ttl time.Duration) {
	c.InsertStamped(key, value, c.now(), ttl)
}

// InsertStamped stores value under key with an explicit content timestamp.
// The stamp is what InvalidateIfNewer and InvalidateStale compare against,
// so callers should pass the time the content was last updated upstream.
// An entry that would expire at or before its stamp is silently dropped.
func (c *Cache[V]) InsertStamped(key string, value V, inserted time.Time, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	expires := c.now().Add(ttl)
	if !expires.After(inserted) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{
		value:    value,
		inserted: inserted,
		expires:  expires,
	}
}

// Invalidate removes the entry for key, if any.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// InvalidateIfNewer removes the entry for key when its content stamp is
// older than t. An entry stamped at or after t survives.
func (c *Cache[V]) InvalidateIfNewer(key string, t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok && e.inserted.Before(t) {
		delete(c.entries, key)
	}
}

// InvalidateStale removes every entry whose content stamp is older than t.
func (c *Cache[V]) InvalidateStale(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if e.inserted.Before(t) {
			delete(c.entries, key)
		}
	}
}

// InvalidateExpired removes every entry past its TTL.
func (c *Cache[V]) InvalidateExpired() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, key)
		}
	}
}

// InvalidateAll empties the cache.
func (c *Cache[V]) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// Extend pushes the expiry of an existing entry further out. It reports
// whether the entry existed.
func (c *Cache[V]) Extend(key string, d time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return false
	}
	e.expires = e.expires.Add(d)
	c.entries[key] = e
	return true
}

// Len reports the number of entries, including any not yet swept expired ones.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
