// Package storage persists registered markers and their status history.
package storage

import (
	"time"

	"github.com/seisview/markermap/internal/marker"
)

// StatusChange is a style applied to a marker at a point in time.
type StatusChange struct {
	Kind   marker.Kind   `json:"kind"`
	ID     string        `json:"id"`
	Status marker.Status `json:"status"`
	Style  marker.Style  `json:"style"`
	Time   time.Time     `json:"time"`
}

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// SaveMarker inserts the marker or overwrites the stored one with the same kind and id.
	SaveMarker(m *marker.Marker) error

	// RecordStatus appends to the status history and updates the marker's stored status.
	RecordStatus(c *StatusChange) error

	// LoadMarkers returns the stored markers of a kind, sorted by id.
	LoadMarkers(kind marker.Kind) ([]marker.Marker, error)
}

// Exportable is an optional interface for storage backends that write an
// export file on Close.
type Exportable interface {
	GetExportedFilePath() string
}
