package influx

import (
	"bufio"
	"compress/gzip"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seisview/markermap/internal/click"
	"github.com/seisview/markermap/internal/config"
	"github.com/seisview/markermap/internal/marker"
)

// Compile-time interface check
var _ click.Observer = (*Manager)(nil)

func TestNilManager(t *testing.T) {
	var m *Manager
	assert.False(t, m.Active())
	assert.NoError(t, m.WritePoint(nil))
	assert.NoError(t, m.WriteRegistryStats(RegistryStats{Stations: 1}))
	m.MarkerClicked(marker.KindStation, "ATH")
	m.MarkerSelected("src", 1, nil)
	assert.NoError(t, m.Close())
}

func TestConnect_Disabled(t *testing.T) {
	m := NewManager(config.InfluxConfig{Enabled: false}, "", nil)
	assert.Error(t, m.Connect(context.Background()))
	assert.False(t, m.Active())
	assert.NoError(t, m.WriteRegistryStats(RegistryStats{}))
	assert.NoError(t, m.Close())
}

// unreachableConfig points at a server whose /ping always fails.
func unreachableConfig(t *testing.T) config.InfluxConfig {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	host, port, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)
	return config.InfluxConfig{
		Enabled:  true,
		Protocol: "http",
		Host:     host,
		Port:     port,
		Org:      "markermap",
		Bucket:   "markermap",
	}
}

func readBackup(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gr, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gr.Close()

	var lines []string
	sc := bufio.NewScanner(gr)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())
	return lines
}

func TestConnect_UnreachableUsesBackup(t *testing.T) {
	backup := filepath.Join(t.TempDir(), "influx_backup.log.gz")
	m := NewManager(unreachableConfig(t), backup, nil)

	require.NoError(t, m.Connect(context.Background()))
	assert.True(t, m.Active())

	m.MarkerClicked(marker.KindEvent, "E1")
	m.MarkerSelected("catalogue", 7, errors.New("down"))
	require.NoError(t, m.WriteRegistryStats(RegistryStats{Stations: 3, Events: 2, ActiveStations: 1}))
	require.NoError(t, m.Close())
	assert.False(t, m.Active())

	lines := readBackup(t, backup)
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "marker_click,kind=event id=\"E1\""))
	assert.True(t, strings.HasPrefix(lines[1], "marker_selected,source=catalogue"))
	assert.Contains(t, lines[1], "delivered=false")
	assert.Contains(t, lines[1], "row=7i")
	assert.True(t, strings.HasPrefix(lines[2], "marker_registry "))
	assert.Contains(t, lines[2], "stations=3i")
	assert.Contains(t, lines[2], "active_stations=1i")
}
