package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	geojson "github.com/paulmach/go.geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seisview/markermap/internal/config"
	"github.com/seisview/markermap/internal/dispatcher"
	"github.com/seisview/markermap/internal/geo"
	"github.com/seisview/markermap/internal/marker"
	"github.com/seisview/markermap/internal/registry"
)

func postCommand(t *testing.T, srv *httptest.Server, body string) (int, []any) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/v1/command", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out []any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestCommand_AddAndHighlight(t *testing.T) {
	f := newFixture(t)

	status, out := postCommand(t, f.srv, `{"command":":STATION:ADD:","args":["ATH", 37.97, "23.72", ""]}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{"ok", ":STATION:ADD:"}, out)
	assert.Equal(t, 1, f.stations.Len())

	status, out = postCommand(t, f.srv, `{"command":":STATION:HIGHLIGHT:","args":["ATH"]}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{"ok", ":STATION:HIGHLIGHT:"}, out)
	assert.Equal(t, []string{"ATH"}, f.stations.ActiveIDs())

	status, out = postCommand(t, f.srv, `{"command":":STATION:CLICK:","args":["nope"]}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{"ok", ":STATION:CLICK:", "unknown"}, out)
}

func TestCommand_AddKeepsIconMarkup(t *testing.T) {
	f := newFixture(t)

	status, _ := postCommand(t, f.srv, `{"command":":STATION:ADD:","args":["ATH", 37.97, 23.72, "<i class=\"\" title=\"\"></i>"]}`)
	require.Equal(t, http.StatusOK, status)

	m, ok := f.stations.Get("ATH")
	require.True(t, ok)
	assert.Equal(t, `<i class="" title=""></i>`, m.Icons.PassiveIcon.HTML)
}

func TestCommand_Errors(t *testing.T) {
	f := newFixture(t)

	status, out := postCommand(t, f.srv, `{"command":":STATION:ADD:","args":["ATH", "north", "23.72"]}`)
	assert.Equal(t, http.StatusBadRequest, status)
	require.Len(t, out, 3)
	assert.Equal(t, "error", out[0])
	assert.Contains(t, out[2], "invalid coordinates")

	status, out = postCommand(t, f.srv, `{"command":":VOLCANO:ADD:","args":[]}`)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "error", out[0])

	status, out = postCommand(t, f.srv, `not json`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "error", out[0])
}

func TestCommand_WrongMethod(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.srv.URL + "/api/v1/command")
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEqual(t, http.StatusOK, resp.StatusCode)
}

func TestMarkers(t *testing.T) {
	f := newFixture(t)
	_, err := f.stations.Register(station("A", 37.9))
	require.NoError(t, err)
	_, err = f.events.Register(marker.NewEvent("E1", "src", 1, geo.Position{Latitude: 1, Longitude: 1}, "Red", "Blue"))
	require.NoError(t, err)

	resp, err := http.Get(f.srv.URL + "/api/v1/markers")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var out markersResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Stations, 1)
	require.Len(t, out.Events, 1)
	assert.Equal(t, "E1", out.Events[0].Marker.ID)
}

func TestGeoJSON(t *testing.T) {
	f := newFixture(t)
	_, err := f.stations.Register(station("A", 37.9))
	require.NoError(t, err)
	_, err = f.events.Register(marker.NewEvent("E1", "src", 1, geo.Position{Latitude: 1, Longitude: 1}, "Red", "Blue"))
	require.NoError(t, err)

	get := func(query string) (*http.Response, []byte) {
		resp, err := http.Get(f.srv.URL + "/api/v1/markers.geojson" + query)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp, body
	}

	resp, body := get("")
	assert.Equal(t, "application/geo+json", resp.Header.Get("Content-Type"))
	fc, err := geojson.UnmarshalFeatureCollection(body)
	require.NoError(t, err)
	assert.Len(t, fc.Features, 2)

	_, body = get("?kind=event")
	fc, err = geojson.UnmarshalFeatureCollection(body)
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "E1", fc.Features[0].PropertyMustString("id"))

	resp, _ = get("?kind=volcano")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthcheckConfigAndIndex(t *testing.T) {
	stations := registry.New(marker.KindStation)
	events := registry.New(marker.KindEvent)
	d, err := dispatcher.New(nil)
	require.NoError(t, err)

	s := New(Dependencies{
		Map:      config.MapConfig{CenterLat: 38, CenterLon: 23.7, ReferenceZoom: 8, TileURL: "https://tiles/{z}/{x}/{y}.png"},
		Stations: stations,
		Events:   events,
		Commands: d,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("metrics"))
		}),
	})
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthcheck")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/v1/config")
	require.NoError(t, err)
	var cfg mapSettings
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cfg))
	resp.Body.Close()
	assert.Equal(t, 8, cfg.ReferenceZoom)
	assert.Equal(t, "https://tiles/{z}/{x}/{y}.png", cfg.TileURL)

	resp, err = http.Get(srv.URL + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "/api/v1/config")

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "metrics", string(body))

	// no hub configured
	resp, err = http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	d, err := dispatcher.New(nil)
	require.NoError(t, err)
	s := New(Dependencies{
		Config:   config.ServerConfig{Addr: addr, ShutdownTimeout: time.Second},
		Stations: registry.New(marker.KindStation),
		Events:   registry.New(marker.KindEvent),
		Commands: d,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthcheck")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
