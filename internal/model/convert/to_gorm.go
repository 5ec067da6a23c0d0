// Package convert provides functions to convert between GORM models and domain markers
package convert

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/seisview/markermap/internal/marker"
	"github.com/seisview/markermap/internal/model"
	"github.com/seisview/markermap/internal/storage"
)

// MarkerToGorm converts a marker to its database row.
func MarkerToGorm(m marker.Marker) (model.Marker, error) {
	var visual any
	switch m.Kind {
	case marker.KindStation:
		visual = m.Icons
	case marker.KindEvent:
		visual = m.Colors
	}
	data, err := json.Marshal(visual)
	if err != nil {
		return model.Marker{}, fmt.Errorf("marshal %s %s visual: %w", m.Kind, m.ID, err)
	}

	return model.Marker{
		Kind:      string(m.Kind),
		MarkerID:  m.ID,
		Latitude:  m.Position.Latitude,
		Longitude: m.Position.Longitude,
		Location:  m.Position.WKT(),
		Visual:    datatypes.JSON(data),
		Status:    string(m.Status),
		SourceID:  m.SourceID,
		RowIndex:  m.RowIndex,
	}, nil
}

// StatusChangeToGorm converts a status change to its database row.
func StatusChangeToGorm(c storage.StatusChange, markerRowID uint) (model.MarkerStatusChange, error) {
	style, err := json.Marshal(c.Style)
	if err != nil {
		return model.MarkerStatusChange{}, fmt.Errorf("marshal %s %s style: %w", c.Kind, c.ID, err)
	}
	return model.MarkerStatusChange{
		Time:        c.Time,
		MarkerRowID: markerRowID,
		Kind:        string(c.Kind),
		MarkerID:    c.ID,
		Status:      string(c.Status),
		Style:       datatypes.JSON(style),
	}, nil
}
