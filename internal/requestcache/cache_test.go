package requestcache

import (
	"sync"
	"testing"
	"time"
)

// fixedClock returns a swappable clock starting at a fixed instant.
func fixedClock(start time.Time) (*time.Time, func() time.Time) {
	now := start
	return &now, func() time.Time { return now }
}

func newTestCache(t *testing.T, ttl time.Duration) (*Cache[string], *time.Time) {
	t.Helper()
	c := New[string](ttl)
	now, clock := fixedClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	c.now = clock
	return c, now
}

func TestGetMissingKey(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	if v, ok := c.Get("missing"); ok {
		t.Fatalf("Get on empty cache returned %q", v)
	}
}

func TestInsertAndGet(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	c.Insert("key", "value")
	v, ok := c.Get("key")
	if !ok || v != "value" {
		t.Fatalf("Get = (%q, %v), want (value, true)", v, ok)
	}
}

func TestExpiryIsAMiss(t *testing.T) {
	c, now := newTestCache(t, time.Minute)
	c.Insert("key", "value")

	*now = now.Add(time.Minute + time.Second)
	if _, ok := c.Get("key"); ok {
		t.Fatal("expired entry still returned")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry not removed, len = %d", c.Len())
	}
}

func TestInsertWithTTLOverridesDefault(t *testing.T) {
	c, now := newTestCache(t, time.Minute)
	c.InsertWithTTL("key", "value", time.Hour)

	*now = now.Add(30 * time.Minute)
	if _, ok := c.Get("key"); !ok {
		t.Fatal("entry with long TTL expired early")
	}
}

func TestInsertStampedDropsAlreadyExpired(t *testing.T) {
	c, now := newTestCache(t, time.Minute)

	// A stamp at or past the computed expiry means the entry would be
	// born expired, so it is never stored.
	c.InsertStamped("key", "value", now.Add(time.Minute), time.Minute)
	if c.Len() != 0 {
		t.Fatalf("born-expired entry stored, len = %d", c.Len())
	}

	c.InsertStamped("key", "value", now.Add(2*time.Hour), time.Minute)
	if _, ok := c.Get("key"); ok {
		t.Fatal("entry stamped past its expiry was stored")
	}
}

func TestInvalidateIfNewer(t *testing.T) {
	c, now := newTestCache(t, time.Hour)
	stamp := *now
	c.InsertStamped("key", "value", stamp, time.Hour)

	// Content time equal to the stamp does not evict.
	c.InvalidateIfNewer("key", stamp)
	if _, ok := c.Get("key"); !ok {
		t.Fatal("entry evicted by an equal content time")
	}

	// Newer content does.
	c.InvalidateIfNewer("key", stamp.Add(time.Second))
	if _, ok := c.Get("key"); ok {
		t.Fatal("entry survived newer content time")
	}

	// A key that is absent is a no-op.
	c.InvalidateIfNewer("absent", stamp)
}

func TestInvalidateStale(t *testing.T) {
	c, now := newTestCache(t, time.Hour)
	old := now.Add(-10 * time.Minute)
	c.InsertStamped("old", "value", old, time.Hour)
	c.InsertStamped("fresh", "value", *now, time.Hour)

	c.InvalidateStale(now.Add(-time.Minute))

	if _, ok := c.Get("old"); ok {
		t.Fatal("stale entry survived")
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Fatal("fresh entry evicted")
	}
}

func TestInvalidateExpired(t *testing.T) {
	c, now := newTestCache(t, time.Minute)
	c.Insert("short", "value")
	c.InsertWithTTL("long", "value", time.Hour)

	*now = now.Add(2 * time.Minute)
	c.InvalidateExpired()

	if c.Len() != 1 {
		t.Fatalf("len = %d after sweep, want 1", c.Len())
	}
	if _, ok := c.Get("long"); !ok {
		t.Fatal("unexpired entry swept")
	}
}

func TestInvalidateAll(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	c.Insert("a", "1")
	c.Insert("b", "2")
	c.InvalidateAll()
	if c.Len() != 0 {
		t.Fatalf("len = %d after InvalidateAll, want 0", c.Len())
	}
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	c := New[int](time.Minute)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for range 100 {
				c.Insert("key", n)
				c.Get("key")
				c.Len()
			}
		}(i)
	}
	wg.Wait()

	if _, ok := c.Get("key"); !ok {
		t.Fatal("entry missing after concurrent writes")
	}
}

func TestExtend(t *testing.T) {
	c, now := newTestCache(t, time.Minute)
	c.Insert("key", "value")

	if !c.Extend("key", time.Hour) {
		t.Fatal("Extend reported a missing entry")
	}
	if c.Extend("absent", time.Hour) {
		t.Fatal("Extend invented an entry")
	}

	*now = now.Add(30 * time.Minute)
	if _, ok := c.Get("key"); !ok {
		t.Fatal("extended entry expired")
	}
}
