package lru

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCache_BasicGetPut(t *testing.T) {
	c := New[string, int](2)

	_, ok := c.Get("a")
	require.False(t, ok)

	c.Put("a", 1)
	c.Put("b", 2)

	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)

	// Inserting a third key evicts the LRU entry ("b", since "a" was just
	// promoted by the Get above).
	c.Put("c", 3)
	require.Equal(t, 2, c.Len())
	require.False(t, c.Contains("b"))
	require.True(t, c.Contains("a"))
	require.True(t, c.Contains("c"))
}

func TestCache_CapacityNeverExceededUnderConcurrency(t *testing.T) {
	const capacity = 50
	c := New[int, int](capacity)

	var wg sync.WaitGroup
	for i := 0; i < 1000; i++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			c.Put(k, k*k)
			c.Get(k % capacity)
			_ = c.Stats()
		}(i)
	}
	wg.Wait()

	stats := c.Stats()
	require.LessOrEqual(t, stats.Size, capacity)
	require.Equal(t, capacity, stats.Capacity)
}

func TestCache_ClearAndStats(t *testing.T) {
	c := New[string, int](4)
	c.Put("a", 1)
	c.Put("b", 2)

	stats := c.Stats()
	require.Equal(t, 2, stats.Size)
	require.Equal(t, 4, stats.Capacity)
	require.InDelta(t, 0.5, stats.Utilization, 1e-9)

	c.Clear()
	require.Equal(t, 0, c.Len())
}
