// Package ttlcache implements an associative store with per-entry expiry
// and lazy, tombstone-driven bulk eviction.
//
// Entries never carry a mutable-priority-queue index: re-inserting a key
// with a new TTL simply pushes a fresh tombstone onto the graveyard heap and
// leaves the old one in place. Stale tombstones are discarded on pop. See
// TryEvict for the eviction algorithm.
package ttlcache

import (
	"container/heap"
	"sync/atomic"
	"time"
)

// record is the stored (value, expiry) pair. hasTTL false means immortal,
// and expiry is then unused.
type record[V any] struct {
	value  V
	expiry time.Time
	hasTTL bool
}

func (r record[V]) expired(now time.Time) bool {
	return r.hasTTL && !now.Before(r.expiry)
}

// tombstone is a graveyard entry: a promise that key expires at expiry.
// It may be stale by the time it reaches the front of the heap.
type tombstone[K comparable] struct {
	key    K
	expiry time.Time
}

type graveyard[K comparable] []tombstone[K]

func (g graveyard[K]) Len() int            { return len(g) }
func (g graveyard[K]) Less(i, j int) bool  { return g[i].expiry.Before(g[j].expiry) }
func (g graveyard[K]) Swap(i, j int)       { g[i], g[j] = g[j], g[i] }
func (g *graveyard[K]) Push(x any)         { *g = append(*g, x.(tombstone[K])) }
func (g *graveyard[K]) Pop() any {
	old := *g
	n := len(old)
	x := old[n-1]
	*g = old[:n-1]
	return x
}

// Cache is a map from K to V with optional per-entry TTL and a default TTL
// set at construction. It is not safe for concurrent use; callers that share
// a Cache across goroutines must provide their own synchronization (the
// engine that owns one runs single-threaded, per its own contract).
type Cache[K comparable, V any] struct {
	entries    map[K]record[V]
	graveyard  graveyard[K]
	defaultTTL time.Duration
	hasDefault bool
	now        time.Time

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// New constructs a Cache. now establishes the cache's internal clock. If
// defaultTTL is non-zero it must be strictly positive; passing a negative or
// already-expired default is a programmer error and panics, mirroring the
// original `assert!(ttl > Duration::new(0,0))` contract.
func New[K comparable, V any](defaultTTL time.Duration, now time.Time) *Cache[K, V] {
	if defaultTTL < 0 {
		panic("ttlcache: default TTL must be positive")
	}
	return &Cache[K, V]{
		entries:    make(map[K]record[V]),
		hasDefault: defaultTTL > 0,
		defaultTTL: defaultTTL,
		now:        now,
	}
}

// InsertWithTTL stores value under key, expiring after ttl (if ttl > 0) or
// immortally (ttl == 0). It always overwrites, and returns the previously
// stored value only if that prior entry had not yet expired.
func (c *Cache[K, V]) InsertWithTTL(key K, value V, ttl time.Duration) (previous V, hadPrevious bool) {
	if ttl < 0 {
		panic("ttlcache: TTL must be positive")
	}

	var expiry time.Time
	hasTTL := ttl > 0
	if hasTTL {
		expiry = c.now.Add(ttl)
	}

	if old, ok := c.entries[key]; ok {
		if !old.expired(c.now) {
			previous, hadPrevious = old.value, true
		}
	}

	c.entries[key] = record[V]{value: value, expiry: expiry, hasTTL: hasTTL}

	if hasTTL {
		heap.Push(&c.graveyard, tombstone[K]{key: key, expiry: expiry})
	}

	return previous, hadPrevious
}

// Insert stores value under key using the cache's default TTL.
func (c *Cache[K, V]) Insert(key K, value V) (previous V, hadPrevious bool) {
	return c.InsertWithTTL(key, value, c.defaultTTL)
}

// Remove deletes key, returning the value only if it was present and had
// not yet expired. A stale (expired but not yet evicted) entry returns
// false, even though it may still occupy the underlying map.
func (c *Cache[K, V]) Remove(key K) (value V, ok bool) {
	r, present := c.entries[key]
	if !present {
		return value, false
	}
	delete(c.entries, key)
	if r.expired(c.now) {
		return value, false
	}
	return r.value, true
}

// Get returns the value stored under key, if present. It deliberately does
// not filter by expiry: callers requiring freshness must run TryEvict first.
// Reads are cheap and non-mutating by contract.
func (c *Cache[K, V]) Get(key K) (value V, ok bool) {
	r, present := c.entries[key]
	if !present {
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	c.hits.Add(1)
	return r.value, true
}

// TryEvict advances the cache's clock to now and removes every entry whose
// current expiry is at or before now, returning the evicted pairs. now must
// be strictly after the cache's current clock.
func (c *Cache[K, V]) TryEvict(now time.Time) map[K]V {
	if !now.After(c.now) {
		panic("ttlcache: TryEvict requires now to advance the cache clock")
	}
	c.now = now

	evicted := make(map[K]V)
	for {
		key, value, ok := c.tryEvictOnce()
		if !ok {
			return evicted
		}
		evicted[key] = value
		c.evictions.Add(1)
	}
}

// tryEvictOnce pops and resolves (at most) one tombstone. See package docs
// for the algorithm.
func (c *Cache[K, V]) tryEvictOnce() (key K, value V, ok bool) {
	for {
		if c.graveyard.Len() == 0 {
			return key, value, false
		}

		top := c.graveyard[0]
		if top.expiry.After(c.now) {
			return key, value, false
		}

		heap.Pop(&c.graveyard)

		r, present := c.entries[top.key]
		if !present {
			// already removed by an earlier eviction
			continue
		}

		if !r.hasTTL || !r.expiry.Equal(top.expiry) {
			// stale tombstone: entry was re-inserted with a new expiry
			continue
		}

		delete(c.entries, top.key)
		return top.key, r.value, true
	}
}

// Len reports the number of entries currently tracked, expired or not.
func (c *Cache[K, V]) Len() int {
	return len(c.entries)
}

// Stats reports cumulative hit/miss/eviction counts, for diagnostics.
func (c *Cache[K, V]) Stats() (hits, misses, evictions uint64) {
	return c.hits.Load(), c.misses.Load(), c.evictions.Load()
}
