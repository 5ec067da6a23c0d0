// Package cache maps markers to their database row ids.
package cache

import (
	"sync"

	"github.com/seisview/markermap/internal/marker"
)

// Key identifies a marker across both registries.
type Key struct {
	Kind marker.Kind
	ID   string
}

// MarkerCache maps markers to their database row IDs
type MarkerCache struct {
	mu      sync.RWMutex
	markers map[Key]uint
}

// NewMarkerCache creates a new MarkerCache
func NewMarkerCache() *MarkerCache {
	return &MarkerCache{
		markers: make(map[Key]uint),
	}
}

// Get retrieves a row ID
func (c *MarkerCache) Get(kind marker.Kind, id string) (uint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rowID, ok := c.markers[Key{kind, id}]
	return rowID, ok
}

// Set stores a row ID
func (c *MarkerCache) Set(kind marker.Kind, id string, rowID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markers[Key{kind, id}] = rowID
}

// Delete removes a marker
func (c *MarkerCache) Delete(kind marker.Kind, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.markers, Key{kind, id})
}

// Len returns the number of cached markers
func (c *MarkerCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.markers)
}

// Reset clears all markers from the cache
func (c *MarkerCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markers = make(map[Key]uint)
}
