package lru_test

import (
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/traveler/pkg/lru"
)

const (
	// smallMaxEntries limits the cache to 3 entries for eviction tests.
	smallMaxEntries = 3

	// testConcurrentGoroutines is the number of goroutines for concurrency tests.
	testConcurrentGoroutines = 16

	// testConcurrentOps is the number of operations per goroutine.
	testConcurrentOps = 100
)

func TestCache_GetPut(t *testing.T) {
	t.Parallel()

	cache := lru.New[int, string](smallMaxEntries)

	got, found := cache.Get(1)
	assert.False(t, found)
	assert.Empty(t, got)

	cache.Put(1, "hello")

	got, found = cache.Get(1)
	require.True(t, found)
	assert.Equal(t, "hello", got)

	cache.Put(1, "again")

	got, _ = cache.Get(1)
	assert.Equal(t, "again", got)
	assert.Equal(t, 1, cache.Len())
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	cache := lru.New[int, int](smallMaxEntries)

	cache.Put(1, 1)
	cache.Put(2, 2)
	cache.Put(3, 3)

	// Touch 1 so 2 becomes the eviction victim.
	_, _ = cache.Get(1)
	cache.Put(4, 4)

	_, found := cache.Get(2)
	assert.False(t, found)

	for _, k := range []int{1, 3, 4} {
		_, found = cache.Get(k)
		assert.True(t, found, k)
	}

	assert.Equal(t, smallMaxEntries, cache.Len())
}

func TestCache_CloneFunc(t *testing.T) {
	t.Parallel()

	cache := lru.New(smallMaxEntries, lru.WithCloneFunc[string, []float64](slices.Clone[[]float64]))

	series := []float64{1, 2}
	cache.Put("a", series)
	series[0] = 99

	got, found := cache.Get("a")
	require.True(t, found)
	assert.Equal(t, []float64{1, 2}, got)

	got[1] = 42

	again, _ := cache.Get("a")
	assert.Equal(t, []float64{1, 2}, again)
}

func TestCache_RemoveAndClear(t *testing.T) {
	t.Parallel()

	cache := lru.New[string, int](smallMaxEntries)
	cache.Put("a", 1)
	cache.Put("b", 2)

	assert.True(t, cache.Remove("a"))
	assert.False(t, cache.Remove("a"))
	assert.Equal(t, 1, cache.Len())

	cache.Clear()
	assert.Equal(t, 0, cache.Len())

	cache.Put("c", 3)
	assert.Equal(t, 1, cache.Len())
}

func TestCache_Stats(t *testing.T) {
	t.Parallel()

	cache := lru.New[int, int](smallMaxEntries)
	assert.InDelta(t, 0.0, cache.Stats().HitRate(), 0)

	cache.Put(1, 1)
	_, _ = cache.Get(1)
	_, _ = cache.Get(2)

	stats := cache.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, smallMaxEntries, stats.MaxEntries)
	assert.InDelta(t, 0.5, stats.HitRate(), 1e-9)
}

func TestCache_Concurrent(t *testing.T) {
	t.Parallel()

	cache := lru.New[int, int](smallMaxEntries)

	var wg sync.WaitGroup

	for g := range testConcurrentGoroutines {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range testConcurrentOps {
				cache.Put(g*testConcurrentOps+i, i)
				_, _ = cache.Get(i)
			}
		}()
	}

	wg.Wait()

	assert.LessOrEqual(t, cache.Len(), smallMaxEntries)
}

func TestNew_PanicsWithoutCapacity(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { lru.New[int, int](0) })
}
