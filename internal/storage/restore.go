package storage

import (
	"fmt"
	"log/slog"

	"github.com/seisview/markermap/internal/marker"
	"github.com/seisview/markermap/internal/registry"
)

// Restore registers the stored markers of reg's kind and re-activates those
// stored as active. Attach the Recorder after restoring so restored markers
// are not written back. It returns the number of markers restored.
func Restore(b Backend, reg *registry.Registry, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}

	markers, err := b.LoadMarkers(reg.Kind())
	if err != nil {
		return 0, fmt.Errorf("load %s markers: %w", reg.Kind(), err)
	}

	var active []string
	restored := 0
	for _, m := range markers {
		if _, err := reg.Register(m); err != nil {
			logger.Warn("Skipping stored marker", "kind", m.Kind, "id", m.ID, "error", err)
			continue
		}
		restored++
		if m.Status == marker.StatusActive {
			active = append(active, m.ID)
		}
	}
	for _, id := range active {
		reg.Activate(id)
	}

	logger.Info("Restored markers", "kind", reg.Kind(), "count", restored, "active", len(active))
	return restored, nil
}
