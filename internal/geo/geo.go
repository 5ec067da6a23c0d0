package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// Positions arrive in EPSG:4326 degrees. Ordering of station icons needs the
// web mercator (EPSG:3857) layer pixel, which is derived on demand and never stored.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

const (
	// mercatorHalfExtent is half the width of the EPSG:3857 world in metres.
	mercatorHalfExtent = 20037508.342789244
	// mercatorMaxLatitude is the latitude at which web mercator is clipped.
	mercatorMaxLatitude = 85.0511287798
	// tileSize is the pixel size of a zoom 0 world.
	tileSize = 256
)

// Position is a WGS84 latitude/longitude pair in degrees.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NewPosition validates and returns a Position.
func NewPosition(latitude, longitude float64) (Position, error) {
	p := Position{Latitude: latitude, Longitude: longitude}
	if err := p.Validate(); err != nil {
		return Position{}, err
	}
	return p, nil
}

// PositionFromStrings parses latitude and longitude given as decimal strings.
func PositionFromStrings(latitude, longitude string) (Position, error) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(latitude), 64)
	if err != nil {
		return Position{}, ErrInvalidCoordinates
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(longitude), 64)
	if err != nil {
		return Position{}, ErrInvalidCoordinates
	}
	return NewPosition(lat, lon)
}

// Validate reports ErrInvalidCoordinates for NaN, infinite or out of range values.
func (p Position) Validate() error {
	if math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude) ||
		math.IsInf(p.Latitude, 0) || math.IsInf(p.Longitude, 0) {
		return ErrInvalidCoordinates
	}
	if p.Latitude < -90 || p.Latitude > 90 || p.Longitude < -180 || p.Longitude > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}

// Point returns the position as a 2D point with X=longitude and Y=latitude.
func (p Position) Point() geom.Point {
	return geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: p.Longitude, Y: p.Latitude},
			Type: geom.DimXY,
		},
	)
}

// WKT returns the well-known text form of the position, e.g. "POINT(lon lat)".
func (p Position) WKT() string {
	return p.Point().AsText()
}

// PositionFromPoint converts a 2D point back into a Position.
func PositionFromPoint(point geom.Point) (Position, error) {
	coords, ok := point.Coordinates()
	if !ok {
		return Position{}, ErrInvalidCoordinates
	}
	return NewPosition(coords.Y, coords.X)
}

// PositionFromWKT parses a "POINT(lon lat)" string as written by WKT.
func PositionFromWKT(wkt string) (Position, error) {
	g, err := geom.UnmarshalWKT(wkt)
	if err != nil {
		return Position{}, fmt.Errorf("parse WKT %q: %w", wkt, err)
	}
	if !g.IsPoint() {
		return Position{}, fmt.Errorf("WKT %q is a %s, not a point", wkt, g.Type())
	}
	return PositionFromPoint(g.AsPoint())
}

// Mercator projects the position to EPSG:3857 metres.
func (p Position) Mercator() (x, y float64) {
	lat := math.Max(-mercatorMaxLatitude, math.Min(mercatorMaxLatitude, p.Latitude))
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ = f(p.Longitude, lat, 0)
	return x, y
}

// LayerPoint returns the rounded pixel position of p on a web mercator world
// rendered with 256px tiles at the given zoom. The origin is the top-left
// corner of the world, so y grows southwards.
func (p Position) LayerPoint(zoom int) (x, y int) {
	mx, my := p.Mercator()
	scale := float64(tileSize) * math.Exp2(float64(zoom))
	px := (mx + mercatorHalfExtent) / (2 * mercatorHalfExtent) * scale
	py := (mercatorHalfExtent - my) / (2 * mercatorHalfExtent) * scale
	return int(math.Round(px)), int(math.Round(py))
}
