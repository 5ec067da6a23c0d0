// Package seed loads stations and events from an HCL file and registers
// them at start-up.
//
//	station "ATH" {
//	  latitude     = 37.97
//	  longitude    = 23.72
//	  passive_icon = "<svg .../>"   # optional
//	}
//
//	event "2024-001" {
//	  source        = "catalogue"
//	  row           = 0
//	  latitude      = 38.1
//	  longitude     = 23.9
//	  active_color  = "Red"
//	  passive_color = "#3388ff"
//	}
package seed

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/seisview/markermap/internal/geo"
	"github.com/seisview/markermap/internal/marker"
	"github.com/seisview/markermap/internal/registry"
)

// File is the decoded seed file.
type File struct {
	Stations []Station `hcl:"station,block"`
	Events   []Event   `hcl:"event,block"`
}

// Station is a station block.
type Station struct {
	ID          string  `hcl:"id,label"`
	Latitude    float64 `hcl:"latitude"`
	Longitude   float64 `hcl:"longitude"`
	PassiveIcon string  `hcl:"passive_icon,optional"`
}

// Event is an event block.
type Event struct {
	ID           string  `hcl:"id,label"`
	Source       string  `hcl:"source"`
	Row          int     `hcl:"row"`
	Latitude     float64 `hcl:"latitude"`
	Longitude    float64 `hcl:"longitude"`
	ActiveColor  string  `hcl:"active_color"`
	PassiveColor string  `hcl:"passive_color"`
}

// DecodeFile parses and decodes an HCL seed file.
func DecodeFile(path string) (*File, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %s", path, diags.Error())
	}
	return decode(path, file.Body)
}

// Decode parses and decodes HCL source; filename is used in diagnostics.
func Decode(src []byte, filename string) (*File, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %s", filename, diags.Error())
	}
	return decode(filename, file.Body)
}

func decode(filename string, body hcl.Body) (*File, error) {
	var f File
	if diags := gohcl.DecodeBody(body, nil, &f); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %s", filename, diags.Error())
	}
	return &f, nil
}

// Markers validates every block and converts it into a marker. All invalid
// blocks are reported together.
func (f *File) Markers() (stations, events []marker.Marker, err error) {
	var errs []error
	seen := map[marker.Kind]map[string]bool{
		marker.KindStation: {},
		marker.KindEvent:   {},
	}

	for _, s := range f.Stations {
		pos, perr := geo.NewPosition(s.Latitude, s.Longitude)
		if perr != nil {
			errs = append(errs, fmt.Errorf("station %q: %w", s.ID, perr))
			continue
		}
		if seen[marker.KindStation][s.ID] {
			errs = append(errs, fmt.Errorf("station %q: duplicate block", s.ID))
			continue
		}
		seen[marker.KindStation][s.ID] = true
		stations = append(stations, marker.NewStation(s.ID, pos, s.PassiveIcon))
	}

	for _, e := range f.Events {
		pos, perr := geo.NewPosition(e.Latitude, e.Longitude)
		if perr != nil {
			errs = append(errs, fmt.Errorf("event %q: %w", e.ID, perr))
			continue
		}
		if seen[marker.KindEvent][e.ID] {
			errs = append(errs, fmt.Errorf("event %q: duplicate block", e.ID))
			continue
		}
		seen[marker.KindEvent][e.ID] = true
		events = append(events, marker.NewEvent(e.ID, e.Source, e.Row, pos, e.ActiveColor, e.PassiveColor))
	}

	return stations, events, errors.Join(errs...)
}

// Load decodes the seed file at path and registers its markers. Nothing is
// registered when any block is invalid. It returns the number of markers registered.
func Load(path string, stations, events *registry.Registry, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}

	f, err := DecodeFile(path)
	if err != nil {
		return 0, err
	}
	return Apply(f, stations, events, logger)
}

// Apply registers the markers of f.
func Apply(f *File, stations, events *registry.Registry, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}

	st, ev, err := f.Markers()
	if err != nil {
		return 0, fmt.Errorf("invalid seed file: %w", err)
	}

	n := 0
	for _, m := range st {
		replaced, err := stations.Register(m)
		if err != nil {
			return n, err
		}
		if replaced {
			logger.Warn("Seed station overwrote existing marker", "id", m.ID)
		}
		n++
	}
	for _, m := range ev {
		replaced, err := events.Register(m)
		if err != nil {
			return n, err
		}
		if replaced {
			logger.Warn("Seed event overwrote existing marker", "id", m.ID)
		}
		n++
	}

	logger.Info("Seed markers registered", "stations", len(st), "events", len(ev))
	return n, nil
}
