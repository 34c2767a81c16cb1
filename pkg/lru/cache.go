// Package lru implements a bounded, thread-safe LRU cache, wrapping
// hashicorp/golang-lru/v2's generic Cache with a {size, capacity,
// utilization} stats view.
package lru

import (
	hashlru "github.com/hashicorp/golang-lru/v2"
)

// Stats is a point-in-time snapshot of cache occupancy. Not
// transactionally consistent with any particular Put — it is a snapshot
// taken under the cache's lock at the instant Stats is called, nothing
// more.
type Stats struct {
	Size        int
	Capacity    int
	Utilization float64
}

// Cache is a generic, capacity-bounded map with LRU eviction. A single
// mutex in the underlying hashicorp cache serializes every operation.
type Cache[K comparable, V any] struct {
	capacity int
	inner    *hashlru.Cache[K, V]
}

// New creates a Cache with the given positive capacity.
func New[K comparable, V any](capacity int) *Cache[K, V] {
	if capacity <= 0 {
		capacity = 1
	}
	inner, _ := hashlru.New[K, V](capacity)
	return &Cache[K, V]{capacity: capacity, inner: inner}
}

// Get returns the current value for k and promotes it to most-recently
// used. ok is false on a miss.
func (c *Cache[K, V]) Get(k K) (v V, ok bool) {
	return c.inner.Get(k)
}

// Put inserts or overwrites k. An overwrite promotes k to most-recently
// used; an insert that would exceed capacity evicts the least-recently
// used entry first. Returns true if an eviction occurred.
func (c *Cache[K, V]) Put(k K, v V) (evicted bool) {
	return c.inner.Add(k, v)
}

// Contains reports whether k is present without affecting recency.
func (c *Cache[K, V]) Contains(k K) bool {
	return c.inner.Contains(k)
}

// Len returns the current number of entries.
func (c *Cache[K, V]) Len() int {
	return c.inner.Len()
}

// Clear removes every entry.
func (c *Cache[K, V]) Clear() {
	c.inner.Purge()
}

// Keys returns the cache's keys in least-recently-used-first order.
func (c *Cache[K, V]) Keys() []K {
	return c.inner.Keys()
}

// Remove deletes k if present.
func (c *Cache[K, V]) Remove(k K) bool {
	return c.inner.Remove(k)
}

// Stats returns a point-in-time occupancy snapshot.
func (c *Cache[K, V]) Stats() Stats {
	size := c.inner.Len()
	utilization := 0.0
	if c.capacity > 0 {
		utilization = float64(size) / float64(c.capacity)
	}
	return Stats{Size: size, Capacity: c.capacity, Utilization: utilization}
}
