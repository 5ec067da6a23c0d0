package gormstorage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seisview/markermap/internal/cache"
	"github.com/seisview/markermap/internal/database"
	"github.com/seisview/markermap/internal/geo"
	"github.com/seisview/markermap/internal/marker"
	"github.com/seisview/markermap/internal/storage"
)

// Compile-time interface check
var _ storage.Backend = (*Backend)(nil)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	db, err := database.GetSqliteDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	b := New(Dependencies{DB: db, MarkerCache: cache.NewMarkerCache()})
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func station(id string, lat, lon float64) *marker.Marker {
	m := marker.NewStation(id, geo.Position{Latitude: lat, Longitude: lon}, "")
	m.Status = marker.StatusPassive
	return &m
}

func TestInit_NoDB(t *testing.T) {
	b := New(Dependencies{})
	assert.Error(t, b.Init())
	assert.NoError(t, b.Close())
}

func TestSaveAndLoad(t *testing.T) {
	b := newTestBackend(t)

	require.NoError(t, b.SaveMarker(station("B", 2, 2)))
	require.NoError(t, b.SaveMarker(station("A", 1, 1)))

	ev := marker.NewEvent("E1", "quakes", 5, geo.Position{Latitude: 3, Longitude: 4}, "Red", "Blue")
	require.NoError(t, b.SaveMarker(&ev))

	stations, err := b.LoadMarkers(marker.KindStation)
	require.NoError(t, err)
	require.Len(t, stations, 2)
	assert.Equal(t, "A", stations[0].ID)
	assert.Equal(t, "B", stations[1].ID)
	assert.Equal(t, marker.StatusPassive, stations[0].Status)
	require.NotNil(t, stations[0].Icons)

	events, err := b.LoadMarkers(marker.KindEvent)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "quakes", events[0].SourceID)
	assert.Equal(t, 5, events[0].RowIndex)
	assert.Equal(t, "Red", events[0].Colors.ActiveColor)
}

func TestSaveMarker_Overwrites(t *testing.T) {
	b := newTestBackend(t)

	require.NoError(t, b.SaveMarker(station("A", 1, 1)))
	require.NoError(t, b.SaveMarker(station("A", 5, 6)))

	stations, err := b.LoadMarkers(marker.KindStation)
	require.NoError(t, err)
	require.Len(t, stations, 1)
	assert.Equal(t, 5.0, stations[0].Position.Latitude)
	assert.Equal(t, 6.0, stations[0].Position.Longitude)
}

func TestRecordStatus(t *testing.T) {
	b := newTestBackend(t)
	require.NoError(t, b.SaveMarker(station("A", 1, 1)))

	now := time.Now().UTC()
	require.NoError(t, b.RecordStatus(&storage.StatusChange{
		Kind: marker.KindStation, ID: "A", Status: marker.StatusActive, Time: now,
	}))
	require.NoError(t, b.RecordStatus(&storage.StatusChange{
		Kind: marker.KindStation, ID: "A", Status: marker.StatusPassive, Time: now.Add(time.Second),
	}))

	history, err := b.StatusHistory(marker.KindStation, "A")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "active", history[0].Status)
	assert.Equal(t, "passive", history[1].Status)

	stations, err := b.LoadMarkers(marker.KindStation)
	require.NoError(t, err)
	assert.Equal(t, marker.StatusPassive, stations[0].Status)
}

func TestRecordStatus_UnknownMarker(t *testing.T) {
	b := newTestBackend(t)
	err := b.RecordStatus(&storage.StatusChange{Kind: marker.KindEvent, ID: "ghost", Status: marker.StatusActive})
	assert.Error(t, err)
}

func TestRecordStatus_ColdCache(t *testing.T) {
	b := newTestBackend(t)
	require.NoError(t, b.SaveMarker(station("A", 1, 1)))
	b.deps.MarkerCache.Reset()

	require.NoError(t, b.RecordStatus(&storage.StatusChange{Kind: marker.KindStation, ID: "A", Status: marker.StatusActive}))
	_, ok := b.deps.MarkerCache.Get(marker.KindStation, "A")
	assert.True(t, ok)
}
