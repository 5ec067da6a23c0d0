// Package marker defines the station and event marker records and the
// styles they resolve to when they become active or passive.
package marker

import (
	"fmt"

	"github.com/seisview/markermap/internal/geo"
)

// Kind identifies the collection a marker belongs to.
type Kind string

const (
	KindStation Kind = "station"
	KindEvent   Kind = "event"
)

// ParseKind converts a string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindStation, KindEvent:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown marker kind: %q", s)
	}
}

// Status is the visual selection state of a marker.
type Status string

const (
	// StatusInitial is only observed before the first style is applied.
	StatusInitial Status = ""
	StatusPassive Status = "passive"
	StatusActive  Status = "active"
)

// DefaultEventRadius is the circle radius of event markers in pixels.
const DefaultEventRadius = 10.0

// Marker is a positioned map marker. Station markers carry Icons, event
// markers carry Colors and the host row they were created from.
type Marker struct {
	ID       string       `json:"id"`
	Kind     Kind         `json:"kind"`
	Position geo.Position `json:"position"`
	Status   Status       `json:"status"`

	Icons  *StationVisual `json:"icons,omitempty"`
	Colors *EventVisual   `json:"colors,omitempty"`

	SourceID string `json:"sourceId,omitempty"`
	RowIndex int    `json:"rowIndex"`
}

// NewStation builds a station marker. An empty passiveIcon selects the
// default passive triangle.
func NewStation(id string, pos geo.Position, passiveIcon string) Marker {
	return Marker{
		ID:       id,
		Kind:     KindStation,
		Position: pos,
		Icons:    NewStationVisual(passiveIcon),
	}
}

// NewEvent builds an event marker linked to a host table row.
func NewEvent(id, sourceID string, rowIndex int, pos geo.Position, activeColor, passiveColor string) Marker {
	return Marker{
		ID:       id,
		Kind:     KindEvent,
		Position: pos,
		Colors: &EventVisual{
			ActiveColor:  activeColor,
			PassiveColor: passiveColor,
			Radius:       DefaultEventRadius,
		},
		SourceID: sourceID,
		RowIndex: rowIndex,
	}
}

// PopupText is the text shown in the marker popup.
func (m Marker) PopupText() string {
	return m.ID
}

// Clone returns a deep copy of m.
func (m Marker) Clone() Marker {
	c := m
	if m.Icons != nil {
		icons := *m.Icons
		c.Icons = &icons
	}
	if m.Colors != nil {
		colors := *m.Colors
		c.Colors = &colors
	}
	return c
}

// Style resolves the visual style of m for the given status. zoom is the
// reference zoom used to order station icons.
func (m Marker) Style(status Status, zoom int) Style {
	switch m.Kind {
	case KindStation:
		if m.Icons == nil {
			return Style{}
		}
		return m.Icons.style(status, m.Position, zoom)
	case KindEvent:
		if m.Colors == nil {
			return Style{}
		}
		return m.Colors.style(status)
	default:
		return Style{}
	}
}
