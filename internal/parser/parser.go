// Package parser converts host command arguments into marker records.
package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/seisview/markermap/internal/geo"
	"github.com/seisview/markermap/internal/marker"
	"github.com/seisview/markermap/internal/util"
)

// ErrArgCount is returned when a command carries too few arguments.
var ErrArgCount = errors.New("wrong number of arguments")

// parseIntFromFloat parses a string that may be an integer ("3") or a float
// with a zero fraction ("3.0"); hosts serialising table rows often send the latter.
func parseIntFromFloat(s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("parseIntFromFloat: %q is not a valid int64", s)
	}
	return int64(f), nil
}

// Parser provides pure []string -> marker conversion.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a new parser with only a logger dependency
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

func requireArgs(data []string, n int, what string) error {
	if len(data) < n {
		return fmt.Errorf("%w: %s needs %d, got %d", ErrArgCount, what, n, len(data))
	}
	return nil
}

// ParseID returns the single marker id argument.
func (p *Parser) ParseID(data []string) (string, error) {
	if err := requireArgs(data, 1, "marker id"); err != nil {
		return "", err
	}
	id := strings.TrimSpace(util.CleanArgs(data[:1])[0])
	if id == "" {
		return "", errors.New("empty marker id")
	}
	return id, nil
}

// ParseStation parses [id, lat, lon, passiveIconMarkup?] into a station marker.
func (p *Parser) ParseStation(data []string) (marker.Marker, error) {
	if err := requireArgs(data, 3, "station"); err != nil {
		return marker.Marker{}, err
	}
	data = util.CleanArgs(data)

	id := strings.TrimSpace(data[0])
	if id == "" {
		return marker.Marker{}, errors.New("empty station id")
	}

	pos, err := geo.PositionFromStrings(data[1], data[2])
	if err != nil {
		return marker.Marker{}, fmt.Errorf("error parsing station %s position: %w", id, err)
	}

	var icon string
	if len(data) > 3 {
		icon = data[3]
	}
	if icon == "" {
		p.logger.Debug("No passive icon given, using default", "station", id)
	}

	return marker.NewStation(id, pos, icon), nil
}

// ParseEvent parses [id, sourceId, rowIndex, lat, lon, activeColor, passiveColor]
// into an event marker.
func (p *Parser) ParseEvent(data []string) (marker.Marker, error) {
	if err := requireArgs(data, 7, "event"); err != nil {
		return marker.Marker{}, err
	}
	data = util.CleanArgs(data)

	id := strings.TrimSpace(data[0])
	if id == "" {
		return marker.Marker{}, errors.New("empty event id")
	}

	row, err := parseIntFromFloat(strings.TrimSpace(data[2]))
	if err != nil {
		return marker.Marker{}, fmt.Errorf("error parsing event %s row index: %w", id, err)
	}

	pos, err := geo.PositionFromStrings(data[3], data[4])
	if err != nil {
		return marker.Marker{}, fmt.Errorf("error parsing event %s position: %w", id, err)
	}

	activeColor, passiveColor := data[5], data[6]
	if activeColor == "" || passiveColor == "" {
		p.logger.Warn("Event registered without colours", "event", id)
	}

	return marker.NewEvent(id, data[1], int(row), pos, activeColor, passiveColor), nil
}
