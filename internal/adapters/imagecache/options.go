package imagecache

import "time"

// Option applies a configuration option to the cache.
type Option func(*ttlCache)

// WithCapacity sets the maximum number of entries.
// If capacity > 0: bounded mode, oldest entry evicted first.
// If capacity <= 0: unbounded, entries leave only by expiry.
func WithCapacity(capacity int) Option {
	return func(c *ttlCache) {
		c.capacity = capacity
	}
}

// WithTTL sets how long an entry stays valid. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(c *ttlCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *ttlCache) {
		if now != nil {
			c.now = now
		}
	}
}
