package convert

import (
	"encoding/json"
	"fmt"

	"github.com/seisview/markermap/internal/geo"
	"github.com/seisview/markermap/internal/marker"
	"github.com/seisview/markermap/internal/model"
)

// GormToMarker converts a database row back to a marker.
func GormToMarker(row model.Marker) (marker.Marker, error) {
	kind, err := marker.ParseKind(row.Kind)
	if err != nil {
		return marker.Marker{}, err
	}

	// Location wins when present; rows written by other tools may carry only it.
	var pos geo.Position
	if row.Location != "" {
		pos, err = geo.PositionFromWKT(row.Location)
	} else {
		pos, err = geo.NewPosition(row.Latitude, row.Longitude)
	}
	if err != nil {
		return marker.Marker{}, fmt.Errorf("marker %s: %w", row.MarkerID, err)
	}

	m := marker.Marker{
		ID:       row.MarkerID,
		Kind:     kind,
		Position: pos,
		Status:   marker.Status(row.Status),
		SourceID: row.SourceID,
		RowIndex: row.RowIndex,
	}

	switch kind {
	case marker.KindStation:
		var v marker.StationVisual
		if len(row.Visual) > 0 {
			if err := json.Unmarshal(row.Visual, &v); err != nil {
				return marker.Marker{}, fmt.Errorf("unmarshal station %s visual: %w", row.MarkerID, err)
			}
		}
		m.Icons = &v
	case marker.KindEvent:
		v := marker.EventVisual{Radius: marker.DefaultEventRadius}
		if len(row.Visual) > 0 {
			if err := json.Unmarshal(row.Visual, &v); err != nil {
				return marker.Marker{}, fmt.Errorf("unmarshal event %s visual: %w", row.MarkerID, err)
			}
		}
		m.Colors = &v
	}
	return m, nil
}
