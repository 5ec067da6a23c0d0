// Package geojson renders registered markers as a GeoJSON FeatureCollection.
package geojson

import (
	"fmt"

	geojson "github.com/paulmach/go.geojson"

	"github.com/seisview/markermap/internal/marker"
	"github.com/seisview/markermap/internal/registry"
)

// Feature converts an entry into a point feature. The resolved style is
// kept as the "style" property so a map view can render it unchanged.
func Feature(e registry.Entry) *geojson.Feature {
	m := e.Marker
	f := geojson.NewPointFeature([]float64{m.Position.Longitude, m.Position.Latitude})
	f.ID = string(m.Kind) + ":" + m.ID
	f.SetProperty("id", m.ID)
	f.SetProperty("kind", string(m.Kind))
	f.SetProperty("status", string(m.Status))
	f.SetProperty("popup", m.PopupText())
	f.SetProperty("style", e.Style)
	if m.Kind == marker.KindEvent {
		f.SetProperty("sourceId", m.SourceID)
		f.SetProperty("rowIndex", m.RowIndex)
	}
	return f
}

// FeatureCollection converts the entries of every registry, in order.
func FeatureCollection(registries ...*registry.Registry) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range registries {
		if r == nil {
			continue
		}
		for _, e := range r.Entries() {
			fc.AddFeature(Feature(e))
		}
	}
	return fc
}

// Marshal encodes the markers of the given registries.
func Marshal(registries ...*registry.Registry) ([]byte, error) {
	data, err := FeatureCollection(registries...).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal feature collection: %w", err)
	}
	return data, nil
}
