package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seisview/markermap/internal/click"
	"github.com/seisview/markermap/internal/dispatcher"
	"github.com/seisview/markermap/internal/geo"
	"github.com/seisview/markermap/internal/handlers"
	"github.com/seisview/markermap/internal/marker"
	"github.com/seisview/markermap/internal/registry"
	"github.com/seisview/markermap/internal/session"
	"github.com/seisview/markermap/pkg/streaming"
)

// Compile-time interface checks
var (
	_ registry.Sink   = (*Hub)(nil)
	_ click.PopupSink = (*Hub)(nil)
)

type selection struct {
	sourceID string
	rowIndex int
}

type fakeHost struct {
	mu    sync.Mutex
	calls []selection
}

func (h *fakeHost) MarkerSelected(_ context.Context, sourceID string, rowIndex int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, selection{sourceID, rowIndex})
	return nil
}

func (h *fakeHost) Close() error { return nil }

func (h *fakeHost) selections() []selection {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]selection(nil), h.calls...)
}

type fakeHubMetrics struct {
	mu           sync.Mutex
	connected    int
	disconnected int
	dropped      int
}

func (m *fakeHubMetrics) ClientConnected()    { m.mu.Lock(); m.connected++; m.mu.Unlock() }
func (m *fakeHubMetrics) ClientDisconnected() { m.mu.Lock(); m.disconnected++; m.mu.Unlock() }
func (m *fakeHubMetrics) MessageDropped()     { m.mu.Lock(); m.dropped++; m.mu.Unlock() }

type fixture struct {
	stations *registry.Registry
	events   *registry.Registry
	hub      *Hub
	clicks   *click.Dispatcher
	host     *fakeHost
	metrics  *fakeHubMetrics
	srv      *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		stations: registry.New(marker.KindStation, registry.WithZoom(8)),
		events:   registry.New(marker.KindEvent),
		host:     &fakeHost{},
		metrics:  &fakeHubMetrics{},
	}
	f.hub = NewHub(f.stations, f.events, WithClientBuffer(64), WithHubMetrics(f.metrics))
	f.stations.AddSink(f.hub)
	f.events.AddSink(f.hub)
	f.clicks = click.New(f.stations, f.events, click.WithHost(f.host), click.WithPopupSink(f.hub))
	f.hub.SetClicks(f.clicks)

	d, err := dispatcher.New(nil)
	require.NoError(t, err)
	handlers.NewService(handlers.Dependencies{
		Stations: f.stations,
		Events:   f.events,
		Clicks:   f.clicks,
		Session:  session.NewContext(),
	}).Register(d)

	s := New(Dependencies{
		Stations: f.stations,
		Events:   f.events,
		Commands: d,
		Hub:      f.hub,
	})
	f.srv = httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		f.hub.Close()
		f.srv.Close()
	})
	return f
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn, v any) streaming.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	env, err := streaming.Decode(data, v)
	require.NoError(t, err)
	return env
}

func station(id string, lat float64) marker.Marker {
	return marker.NewStation(id, geo.Position{Latitude: lat, Longitude: 23.7}, "")
}

func TestHub_SnapshotOnConnect(t *testing.T) {
	f := newFixture(t)
	_, err := f.stations.Register(station("A", 37.9))
	require.NoError(t, err)
	_, err = f.events.Register(marker.NewEvent("E1", "src", 2, geo.Position{Latitude: 38, Longitude: 24}, "Red", "Blue"))
	require.NoError(t, err)
	f.stations.Highlight("A")

	conn := f.dial(t)
	var snap streaming.SnapshotPayload[registry.Entry]
	env := readEnvelope(t, conn, &snap)

	assert.Equal(t, streaming.TypeSnapshot, env.Type)
	require.Len(t, snap.Stations, 1)
	assert.Equal(t, marker.StatusActive, snap.Stations[0].Marker.Status)
	require.NotNil(t, snap.Stations[0].Style.Icon)
	require.Len(t, snap.Events, 1)
	require.NotNil(t, snap.Events[0].Style.Path)
	assert.Equal(t, "Blue", snap.Events[0].Style.Path.Color)
	assert.Nil(t, snap.Popup)

	require.Eventually(t, func() bool { return f.hub.Clients() == 1 }, time.Second, 5*time.Millisecond)
}

func TestHub_StreamsRegistryChanges(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	readEnvelope(t, conn, nil)

	_, err := f.stations.Register(station("B", 38))
	require.NoError(t, err)

	var added marker.Marker
	env := readEnvelope(t, conn, &added)
	assert.Equal(t, streaming.TypeMarkerAdded, env.Type)
	assert.Equal(t, "B", added.ID)

	var change registry.Change
	env = readEnvelope(t, conn, &change)
	assert.Equal(t, streaming.TypeMarkerStyle, env.Type)
	assert.Equal(t, marker.StatusPassive, change.Status)
}

func TestHub_StationClick(t *testing.T) {
	f := newFixture(t)
	_, err := f.stations.Register(station("A", 37.9))
	require.NoError(t, err)

	conn := f.dial(t)
	readEnvelope(t, conn, nil)

	msg, err := streaming.Marshal(streaming.TypeMarkerClick, streaming.ClickPayload{Kind: streaming.KindStation, ID: "A"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, msg))

	var change registry.Change
	env := readEnvelope(t, conn, &change)
	assert.Equal(t, streaming.TypeMarkerStyle, env.Type)
	assert.Equal(t, "A", change.ID)
	assert.Equal(t, marker.StatusActive, change.Status)

	var popup streaming.PopupPayload
	env = readEnvelope(t, conn, &popup)
	assert.Equal(t, streaming.TypePopupOpen, env.Type)
	assert.Equal(t, "A", popup.ID)
	assert.Equal(t, "A", popup.Text)

	// a late view sees the open popup in its snapshot
	late := f.dial(t)
	var snap streaming.SnapshotPayload[registry.Entry]
	readEnvelope(t, late, &snap)
	require.NotNil(t, snap.Popup)
	assert.Equal(t, "A", snap.Popup.ID)
}

func TestHub_EventClickNotifiesHost(t *testing.T) {
	f := newFixture(t)
	_, err := f.events.Register(marker.NewEvent("E1", "catalogue", 7, geo.Position{Latitude: 38, Longitude: 24}, "Red", "Blue"))
	require.NoError(t, err)

	conn := f.dial(t)
	readEnvelope(t, conn, nil)

	msg, err := streaming.Marshal(streaming.TypeMarkerClick, streaming.ClickPayload{Kind: streaming.KindEvent, ID: "E1"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, msg))

	var popup streaming.PopupPayload
	env := readEnvelope(t, conn, &popup)
	assert.Equal(t, streaming.TypePopupOpen, env.Type)

	require.Eventually(t, func() bool { return len(f.host.selections()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, selection{"catalogue", 7}, f.host.selections()[0])
	assert.Empty(t, f.events.ActiveIDs(), "event clicks do not highlight")
}

func TestHub_IgnoresBadMessages(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	readEnvelope(t, conn, nil)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"other","payload":{}}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"marker_click","payload":{"kind":"volcano","id":"C"}}`)))

	// the connection is still served
	_, err := f.stations.Register(station("C", 1))
	require.NoError(t, err)
	env := readEnvelope(t, conn, nil)
	assert.Equal(t, streaming.TypeMarkerAdded, env.Type)
}

func TestHub_Close(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	readEnvelope(t, conn, nil)
	require.Eventually(t, func() bool { return f.hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	f.hub.Close()
	assert.Equal(t, 0, f.hub.Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	f.metrics.mu.Lock()
	defer f.metrics.mu.Unlock()
	assert.Equal(t, 1, f.metrics.connected)
	assert.Equal(t, 1, f.metrics.disconnected)
}

func TestHub_DropsForSlowClient(t *testing.T) {
	m := &fakeHubMetrics{}
	h := NewHub(registry.New(marker.KindStation), registry.New(marker.KindEvent), WithClientBuffer(1), WithHubMetrics(m))
	c := &client{hub: h, send: make(chan []byte, 1), done: make(chan struct{})}
	require.True(t, h.add(c))

	h.PopupsClosed()
	h.PopupsClosed()

	assert.Len(t, c.send, 1)
	assert.Equal(t, 1, m.dropped)
}

func TestHub_UpgradeRequired(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.srv.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
