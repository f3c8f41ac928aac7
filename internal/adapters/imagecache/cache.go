// Package imagecache keeps recently resolved images for a bounded time.
package imagecache

import (
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/slashboard/pkg/metrics"
)

// Defaults used when no option overrides them.
const (
	DefaultCapacity = 200
	DefaultTTL      = 10 * time.Minute
)

// Cache maps an asset key to a decoded image. Entries expire after the TTL and
// the oldest entry is evicted when capacity is reached. A miss never changes
// what the caller resolves, only how long it takes.
type Cache interface {
	// Get returns the image stored under key if present and not expired.
	Get(key string) (image.Image, bool)

	// Set stores img under key, replacing and refreshing an existing entry.
	Set(key string, img image.Image)

	// Remove drops key if present.
	Remove(key string)

	Size() int64
}

// node is a single entry in the insertion-ordered list.
type node struct {
	key     string
	img     image.Image
	expires time.Time
	next    *node
}

func (n *node) reset() {
	n.key = ""
	n.img = nil
	n.expires = time.Time{}
	n.next = nil
}

// ttlCache keeps entries in a linked list ordered newest first.
// For bounded mode (capacity > 0) the tail is evicted when full.
// For unbounded mode (capacity <= 0) only expiry removes entries.
type ttlCache struct {
	mu       sync.Mutex
	entries  map[string]*node
	head     *node
	capacity int
	ttl      time.Duration
	now      func() time.Time
	size     atomic.Int64
	nodePool sync.Pool
}

// New creates a cache with configuration options.
func New(opts ...Option) Cache {
	c := &ttlCache{
		capacity: DefaultCapacity,
		ttl:      DefaultTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.entries = make(map[string]*node)
	c.nodePool = sync.Pool{
		New: func() interface{} {
			return &node{}
		},
	}
	return c
}

func (c *ttlCache) Get(key string) (image.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.entries[key]
	if !ok {
		metrics.RecordAssetCacheMiss()
		return nil, false
	}
	if !c.now().Before(n.expires) {
		c.unlink(n)
		metrics.RecordAssetCacheEviction()
		metrics.RecordAssetCacheMiss()
		return nil, false
	}
	metrics.RecordAssetCacheHit()
	return n.img, true
}

func (c *ttlCache) Set(key string, img image.Image) {
	if img == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.unlink(old)
	}

	if c.capacity > 0 {
		c.dropExpired()
		for len(c.entries) >= c.capacity {
			c.evictOldest()
		}
	}

	n := c.nodePool.Get().(*node)
	n.key = key
	n.img = img
	n.expires = c.now().Add(c.ttl)
	n.next = c.head
	c.head = n
	c.entries[key] = n
	c.size.Add(1)
}

func (c *ttlCache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.entries[key]; ok {
		c.unlink(n)
	}
}

func (c *ttlCache) Size() int64 {
	return c.size.Load()
}

// unlink removes n from the map and list and returns it to the pool.
// Must be called with c.mu held.
func (c *ttlCache) unlink(n *node) {
	delete(c.entries, n.key)
	if c.head == n {
		c.head = n.next
	} else {
		cur := c.head
		for cur != nil && cur.next != n {
			cur = cur.next
		}
		if cur != nil {
			cur.next = n.next
		}
	}
	n.reset()
	c.nodePool.Put(n)
	c.size.Add(-1)
}

// dropExpired removes every expired entry. Must be called with c.mu held.
func (c *ttlCache) dropExpired() {
	now := c.now()
	var prev *node
	cur := c.head
	for cur != nil {
		next := cur.next
		if !now.Before(cur.expires) {
			if prev == nil {
				c.head = next
			} else {
				prev.next = next
			}
			delete(c.entries, cur.key)
			cur.reset()
			c.nodePool.Put(cur)
			c.size.Add(-1)
			metrics.RecordAssetCacheEviction()
		} else {
			prev = cur
		}
		cur = next
	}
}

// evictOldest removes the tail of the list. Must be called with c.mu held.
func (c *ttlCache) evictOldest() {
	if c.head == nil {
		return
	}
	var prev *node
	cur := c.head
	for cur.next != nil {
		prev = cur
		cur = cur.next
	}
	if prev == nil {
		c.head = nil
	} else {
		prev.next = nil
	}
	delete(c.entries, cur.key)
	cur.reset()
	c.nodePool.Put(cur)
	c.size.Add(-1)
	metrics.RecordAssetCacheEviction()
}
