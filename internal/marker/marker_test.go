package marker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seisview/markermap/internal/geo"
)

func TestParseKind(t *testing.T) {
	k, err := ParseKind("station")
	require.NoError(t, err)
	assert.Equal(t, KindStation, k)

	k, err = ParseKind("event")
	require.NoError(t, err)
	assert.Equal(t, KindEvent, k)

	_, err = ParseKind("network")
	assert.Error(t, err)
}

func TestNewStation_DefaultPassiveIcon(t *testing.T) {
	m := NewStation("IU.ANMO", geo.Position{}, "")

	require.NotNil(t, m.Icons)
	assert.Equal(t, KindStation, m.Kind)
	assert.Contains(t, m.Icons.PassiveIcon.HTML, "#3D8EC9")
	assert.Contains(t, m.Icons.ActiveIcon.HTML, "fill:Red")
	assert.Equal(t, StatusInitial, m.Status)
}

func TestNewStation_CustomPassiveIcon(t *testing.T) {
	m := NewStation("IU.ANMO", geo.Position{}, "<b>x</b>")
	assert.Equal(t, "<b>x</b>", m.Icons.PassiveIcon.HTML)
	assert.Equal(t, "svg-marker", m.Icons.PassiveIcon.ClassName)
	assert.Equal(t, Point{X: 10, Y: 20}, m.Icons.PassiveIcon.IconAnchor)
}

func TestStationStyle_ZIndex(t *testing.T) {
	m := NewStation("A", geo.Position{}, "")

	active := m.Style(StatusActive, 0)
	passive := m.Style(StatusPassive, 0)

	require.NotNil(t, active.Icon)
	require.NotNil(t, passive.Icon)
	// Equator sits at y=128 on a zoom 0 world.
	assert.Equal(t, 101-128, active.ZIndexOffset)
	assert.Equal(t, 100-128, passive.ZIndexOffset)
	assert.Nil(t, active.Path)
	assert.False(t, active.BringToFront)
}

func TestEventStyle(t *testing.T) {
	m := NewEvent("ev1", "catalog", 3, geo.Position{}, "Red", "Blue")

	active := m.Style(StatusActive, 0)
	require.NotNil(t, active.Path)
	assert.Equal(t, "Red", active.Path.Color)
	assert.Equal(t, 0.8, active.Path.Opacity)
	assert.Equal(t, 0.5, active.Path.FillOpacity)
	assert.Equal(t, DefaultEventRadius, active.Path.Radius)
	assert.True(t, active.BringToFront)

	passive := m.Style(StatusPassive, 0)
	require.NotNil(t, passive.Path)
	assert.Equal(t, "Blue", passive.Path.Color)
	assert.Equal(t, 0.6, passive.Path.Opacity)
	assert.Equal(t, 0.3, passive.Path.FillOpacity)
	assert.False(t, passive.BringToFront)
}

func TestStyle_MissingVisual(t *testing.T) {
	assert.Equal(t, Style{}, Marker{Kind: KindStation}.Style(StatusActive, 0))
	assert.Equal(t, Style{}, Marker{Kind: KindEvent}.Style(StatusActive, 0))
}

func TestClone_IsDeep(t *testing.T) {
	m := NewEvent("ev1", "catalog", 3, geo.Position{}, "Red", "Blue")
	c := m.Clone()
	c.Colors.Radius = 99

	assert.Equal(t, DefaultEventRadius, m.Colors.Radius)
}
