package marker

import "github.com/seisview/markermap/internal/geo"

const (
	activeStationIconHTML  = `<svg xmlns="http://www.w3.org/2000/svg" version="1.1" style="margin: 0 auto; width: 20px; height:20px;"><polygon style="fill:Red; stroke:#666666; stroke-width:2; stroke-opacity:0.5" points="0,0 20,0 10,20"/></svg>`
	passiveStationIconHTML = `<svg xmlns="http://www.w3.org/2000/svg" version="1.1" style="margin: 0 auto; width: 20px; height:20px;"><polygon style="fill:#3D8EC9; stroke:#666666; stroke-width:2; stroke-opacity:0.5" points="0,0 20,0 10,20"/></svg>`

	activeZIndexBase  = 101
	passiveZIndexBase = 100

	activeOpacity      = 0.8
	activeFillOpacity  = 0.5
	passiveOpacity     = 0.6
	passiveFillOpacity = 0.3
)

// Point is a pixel offset.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// DivIcon is an HTML icon as understood by the map widget.
type DivIcon struct {
	ClassName   string `json:"className"`
	HTML        string `json:"html"`
	IconSize    Point  `json:"iconSize"`
	IconAnchor  Point  `json:"iconAnchor"`
	PopupAnchor Point  `json:"popupAnchor"`
}

// NewDivIcon returns a 20x20 svg-marker icon anchored at its bottom tip.
func NewDivIcon(html string) DivIcon {
	return DivIcon{
		ClassName:   "svg-marker",
		HTML:        html,
		IconSize:    Point{X: 20, Y: 20},
		IconAnchor:  Point{X: 10, Y: 20},
		PopupAnchor: Point{X: 0, Y: -20},
	}
}

// PathStyle is the style of a vector circle marker.
type PathStyle struct {
	Color       string  `json:"color"`
	Opacity     float64 `json:"opacity"`
	FillOpacity float64 `json:"fillOpacity"`
	Radius      float64 `json:"radius"`
}

// Style is the resolved visual state pushed to map views. Exactly one of
// Icon and Path is set for a known marker kind.
type Style struct {
	Icon         *DivIcon   `json:"icon,omitempty"`
	Path         *PathStyle `json:"path,omitempty"`
	ZIndexOffset int        `json:"zIndexOffset,omitempty"`
	BringToFront bool       `json:"bringToFront,omitempty"`
}

// StationVisual holds the two icons of a station marker.
type StationVisual struct {
	ActiveIcon  DivIcon `json:"activeIcon"`
	PassiveIcon DivIcon `json:"passiveIcon"`
}

// NewStationVisual returns the red active icon and the given passive markup.
func NewStationVisual(passiveHTML string) *StationVisual {
	if passiveHTML == "" {
		passiveHTML = passiveStationIconHTML
	}
	return &StationVisual{
		ActiveIcon:  NewDivIcon(activeStationIconHTML),
		PassiveIcon: NewDivIcon(passiveHTML),
	}
}

// Active station icons sit one step above passive ones at the same latitude;
// southern markers overlap northern ones.
func (v *StationVisual) style(status Status, pos geo.Position, zoom int) Style {
	_, y := pos.LayerPoint(zoom)
	if status == StatusActive {
		icon := v.ActiveIcon
		return Style{Icon: &icon, ZIndexOffset: activeZIndexBase - y}
	}
	icon := v.PassiveIcon
	return Style{Icon: &icon, ZIndexOffset: passiveZIndexBase - y}
}

// EventVisual holds the colours and circle radius of an event marker.
type EventVisual struct {
	ActiveColor  string  `json:"activeColor"`
	PassiveColor string  `json:"passiveColor"`
	Radius       float64 `json:"radius"`
}

func (v *EventVisual) style(status Status) Style {
	radius := v.Radius
	if radius <= 0 {
		radius = DefaultEventRadius
	}
	if status == StatusActive {
		return Style{
			Path: &PathStyle{
				Color:       v.ActiveColor,
				Opacity:     activeOpacity,
				FillOpacity: activeFillOpacity,
				Radius:      radius,
			},
			BringToFront: true,
		}
	}
	return Style{
		Path: &PathStyle{
			Color:       v.PassiveColor,
			Opacity:     passiveOpacity,
			FillOpacity: passiveFillOpacity,
			Radius:      radius,
		},
	}
}
