package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seisview/markermap/internal/marker"
)

func TestMarkerCache_NewMarkerCache(t *testing.T) {
	cache := NewMarkerCache()

	require.NotNil(t, cache)
	assert.NotNil(t, cache.markers)
	assert.Equal(t, 0, cache.Len())
}

func TestMarkerCache_SetAndGet(t *testing.T) {
	cache := NewMarkerCache()

	cache.Set(marker.KindStation, "ATH", 42)

	id, ok := cache.Get(marker.KindStation, "ATH")
	require.True(t, ok, "expected to find ATH")
	assert.Equal(t, uint(42), id)
}

func TestMarkerCache_KindsAreSeparate(t *testing.T) {
	cache := NewMarkerCache()

	cache.Set(marker.KindStation, "X", 1)
	cache.Set(marker.KindEvent, "X", 2)

	s, _ := cache.Get(marker.KindStation, "X")
	e, _ := cache.Get(marker.KindEvent, "X")
	assert.Equal(t, uint(1), s)
	assert.Equal(t, uint(2), e)
	assert.Equal(t, 2, cache.Len())
}

func TestMarkerCache_Get_NotFound(t *testing.T) {
	cache := NewMarkerCache()

	_, ok := cache.Get(marker.KindEvent, "nonexistent")
	assert.False(t, ok, "expected not to find nonexistent marker")
}

func TestMarkerCache_Delete(t *testing.T) {
	cache := NewMarkerCache()

	cache.Set(marker.KindStation, "a", 1)
	cache.Set(marker.KindStation, "b", 2)

	cache.Delete(marker.KindStation, "a")

	_, ok := cache.Get(marker.KindStation, "a")
	assert.False(t, ok, "expected not to find a after delete")

	_, ok = cache.Get(marker.KindStation, "b")
	assert.True(t, ok, "expected b to still exist")

	// Should not panic when deleting a missing marker
	cache.Delete(marker.KindEvent, "missing")
}

func TestMarkerCache_Reset(t *testing.T) {
	cache := NewMarkerCache()
	cache.Set(marker.KindStation, "a", 1)
	cache.Reset()
	assert.Equal(t, 0, cache.Len())
}

func TestMarkerCache_ConcurrentAccess(t *testing.T) {
	cache := NewMarkerCache()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			cache.Set(marker.KindEvent, fmt.Sprintf("e%d", i), uint(i))
		}(i)
		go func(i int) {
			defer wg.Done()
			_, _ = cache.Get(marker.KindEvent, fmt.Sprintf("e%d", i))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, cache.Len())
}
