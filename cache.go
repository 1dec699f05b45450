package callsite

import (
	"container/list"
	"sync"

	"golang.org/x/sync/singleflight"
)

// cache is a concurrency-safe memo table. Concurrent lookups of a missing
// key share one load; the first successful result is kept and returned to
// every caller, so values are populated at most once per key while cached.
// Failed loads are not stored. With a positive capacity the least recently
// used entry is evicted when the cache is full. A load that overlaps a
// forget is returned to its callers but not stored.
type cache[K comparable, V any] struct {
	name      string
	capacity  int
	metrics   *metrics
	flightKey func(K) string

	mu      sync.Mutex
	items   map[K]*list.Element
	order   *list.List // front = most recently used
	gen     uint64
	pending map[K]int
	group   singleflight.Group
}

type cacheEntry[K comparable, V any] struct {
	key   K
	value V
}

// newCache returns an empty cache. flightKey must map distinct keys to
// distinct strings; it names the shared load of a key.
func newCache[K comparable, V any](name string, capacity int, m *metrics, flightKey func(K) string) *cache[K, V] {
	return &cache[K, V]{
		name:      name,
		capacity:  capacity,
		metrics:   m,
		flightKey: flightKey,
		items:     make(map[K]*list.Element),
		order:     list.New(),
		pending:   make(map[K]int),
	}
}

func (c *cache[K, V]) lookup(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry[K, V]).value, true
}

func (c *cache[K, V]) store(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.storeLocked(key, value)
}

func (c *cache[K, V]) storeLocked(key K, value V) {
	if el, ok := c.items[key]; ok {
		c.order.MoveToFront(el)
		el.Value.(*cacheEntry[K, V]).value = value
		return
	}
	if c.capacity > 0 && c.order.Len() >= c.capacity {
		if back := c.order.Back(); back != nil {
			c.order.Remove(back)
			delete(c.items, back.Value.(*cacheEntry[K, V]).key)
		}
	}
	c.items[key] = c.order.PushFront(&cacheEntry[K, V]{key: key, value: value})
}

// get returns the cached value for key, calling load on a miss.
func (c *cache[K, V]) get(key K, load func() (V, error)) (V, error) {
	if v, ok := c.lookup(key); ok {
		c.metrics.cacheLookup(c.name, true)
		return v, nil
	}
	c.metrics.cacheLookup(c.name, false)

	v, err, _ := c.group.Do(c.flightKey(key), func() (any, error) {
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		gen := c.begin(key)
		v, err := load()
		c.finish(key, gen, v, err)
		if err != nil {
			return nil, err
		}
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// begin marks a load of key as running and returns the generation it
// started in.
func (c *cache[K, V]) begin(key K) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[key]++
	return c.gen
}

// finish ends a load, storing its value unless a forget ran meanwhile.
func (c *cache[K, V]) finish(key K, gen uint64, value V, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending[key]--; c.pending[key] <= 0 {
		delete(c.pending, key)
	}
	if err == nil && gen == c.gen {
		c.storeLocked(key, value)
	}
}

func (c *cache[K, V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// forget drops every key for which match is true. Loads of matching keys
// that are still running are detached, so later lookups load again.
func (c *cache[K, V]) forget(match func(K) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	for key, el := range c.items {
		if match(key) {
			c.order.Remove(el)
			delete(c.items, key)
		}
	}
	for key := range c.pending {
		if match(key) {
			c.group.Forget(c.flightKey(key))
		}
	}
}
