// Package memory keeps markers and their status history in memory and
// exports them to a JSON file when the backend is closed.
package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/seisview/markermap/internal/config"
	"github.com/seisview/markermap/internal/marker"
	"github.com/seisview/markermap/internal/session"
	"github.com/seisview/markermap/internal/storage"
)

// MarkerRecord groups a marker with all its status changes
type MarkerRecord struct {
	Marker  marker.Marker
	History []storage.StatusChange
}

// Backend stores markers in memory and exports to JSON
type Backend struct {
	cfg     config.MemoryConfig
	session *session.Context

	records map[marker.Kind]map[string]*MarkerRecord

	lastExportPath string
	closed         bool
	mu             sync.RWMutex
}

// New creates a new memory backend. sess names the export file and may be nil.
func New(cfg config.MemoryConfig, sess *session.Context) *Backend {
	return &Backend{
		cfg:     cfg,
		session: sess,
		records: map[marker.Kind]map[string]*MarkerRecord{
			marker.KindStation: {},
			marker.KindEvent:   {},
		},
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close exports the recorded markers. A second Close is a no-op.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.exportJSON()
}

// SaveMarker stores m, keeping the history of an overwritten marker.
func (b *Backend) SaveMarker(m *marker.Marker) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	byID, ok := b.records[m.Kind]
	if !ok {
		return fmt.Errorf("unknown marker kind: %q", m.Kind)
	}

	if rec, exists := byID[m.ID]; exists {
		status := rec.Marker.Status
		rec.Marker = m.Clone()
		if rec.Marker.Status == marker.StatusInitial {
			rec.Marker.Status = status
		}
		return nil
	}

	byID[m.ID] = &MarkerRecord{Marker: m.Clone()}
	return nil
}

// RecordStatus appends c to the marker's history and updates its status.
func (b *Backend) RecordStatus(c *storage.StatusChange) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.records[c.Kind][c.ID]
	if !ok {
		return fmt.Errorf("record status: %s %q not saved", c.Kind, c.ID)
	}
	rec.History = append(rec.History, *c)
	rec.Marker.Status = c.Status
	return nil
}

// LoadMarkers returns the stored markers of a kind, sorted by id.
func (b *Backend) LoadMarkers(kind marker.Kind) ([]marker.Marker, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	byID := b.records[kind]
	out := make([]marker.Marker, 0, len(byID))
	for _, rec := range byID {
		out = append(out, rec.Marker.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetMarker returns the record for a marker (for testing)
func (b *Backend) GetMarker(kind marker.Kind, id string) (*MarkerRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.records[kind][id]
	return rec, ok
}

// GetExportedFilePath returns the path of the file written by Close.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
