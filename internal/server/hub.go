package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/seisview/markermap/internal/click"
	"github.com/seisview/markermap/internal/marker"
	"github.com/seisview/markermap/internal/registry"
	"github.com/seisview/markermap/pkg/streaming"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	defaultBuffer  = 256
)

// HubMetrics observes map view connections. *metrics.Collector satisfies it.
type HubMetrics interface {
	ClientConnected()
	ClientDisconnected()
	MessageDropped()
}

// Hub streams registry and popup changes to connected map views and routes
// their clicks back to the click dispatcher. It is a registry.Sink and a
// click.PopupSink; both are called under other locks, so broadcasting only
// enqueues onto bounded per-client channels and drops for slow clients.
type Hub struct {
	stations *registry.Registry
	events   *registry.Registry
	clicks   *click.Dispatcher
	buffer   int
	metrics  HubMetrics
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithClientBuffer sets the per-client queue length.
func WithClientBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithHubMetrics sets the connection observer.
func WithHubMetrics(m HubMetrics) HubOption {
	return func(h *Hub) { h.metrics = m }
}

// WithHubLogger sets the logger.
func WithHubLogger(l *slog.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHub creates a hub. SetClicks must be called before clients may click.
func NewHub(stations, events *registry.Registry, opts ...HubOption) *Hub {
	h := &Hub{
		stations: stations,
		events:   events,
		buffer:   defaultBuffer,
		logger:   slog.Default(),
		clients:  make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetClicks attaches the click dispatcher. The dispatcher itself takes the
// hub as popup sink, so the two are wired after construction.
func (h *Hub) SetClicks(d *click.Dispatcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clicks = d
}

// Clients returns the number of connected map views.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) MarkerAdded(m marker.Marker) {
	h.broadcast(streaming.TypeMarkerAdded, m)
}

func (h *Hub) StyleApplied(c registry.Change) {
	h.broadcast(streaming.TypeMarkerStyle, c)
}

func (h *Hub) PopupOpened(p click.Popup) {
	h.broadcast(streaming.TypePopupOpen, streaming.PopupPayload{Kind: string(p.Kind), ID: p.ID, Text: p.Text})
}

func (h *Hub) PopupsClosed() {
	h.broadcast(streaming.TypePopupClose, nil)
}

func (h *Hub) broadcast(msgType string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) == 0 {
		return
	}

	data, err := streaming.Marshal(msgType, payload)
	if err != nil {
		h.logger.Error("Failed to encode map message", "type", msgType, "error", err)
		return
	}
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			if h.metrics != nil {
				h.metrics.MessageDropped()
			}
			h.logger.Warn("Map view too slow, message dropped", "remote", c.remote, "type", msgType)
		}
	}
}

// snapshot must not be called with h.mu held: it takes the registry locks.
func (h *Hub) snapshot() ([]byte, error) {
	p := streaming.SnapshotPayload[registry.Entry]{
		Stations: h.stations.Entries(),
		Events:   h.events.Entries(),
	}
	h.mu.Lock()
	clicks := h.clicks
	h.mu.Unlock()
	if clicks != nil {
		if open, ok := clicks.OpenPopup(); ok {
			p.Popup = &streaming.PopupPayload{Kind: string(open.Kind), ID: open.ID, Text: open.Text}
		}
	}
	return streaming.Marshal(streaming.TypeSnapshot, p)
}

// ServeWS upgrades the request and serves the map view until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &client{
		hub:    h,
		conn:   conn,
		remote: r.RemoteAddr,
		send:   make(chan []byte, h.buffer),
		done:   make(chan struct{}),
	}

	// Register before taking the snapshot: changes made in between are
	// queued and replayed after it, so the view converges.
	if !h.add(c) {
		conn.Close()
		return
	}
	snap, err := h.snapshot()
	if err != nil {
		h.logger.Error("Failed to build snapshot", "error", err)
		h.remove(c)
		conn.Close()
		return
	}

	go c.writePump(snap)
	c.readPump(r.Context())
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	if h.metrics != nil {
		h.metrics.ClientConnected()
	}
	h.logger.Debug("Map view connected", "remote", c.remote, "clients", len(h.clients))
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	c.stop()
	if h.metrics != nil {
		h.metrics.ClientDisconnected()
	}
	h.logger.Debug("Map view disconnected", "remote", c.remote, "clients", len(h.clients))
}

// Close disconnects every map view and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.remove(c)
	}
}

func (h *Hub) handleClick(ctx context.Context, c *client, data []byte) {
	var p streaming.ClickPayload
	env, err := streaming.Decode(data, &p)
	if err != nil {
		h.logger.Warn("Bad message from map view", "remote", c.remote, "error", err)
		return
	}
	if env.Type != streaming.TypeMarkerClick {
		h.logger.Debug("Ignoring map view message", "type", env.Type)
		return
	}

	h.mu.Lock()
	clicks := h.clicks
	h.mu.Unlock()
	if clicks == nil {
		return
	}
	kind, err := marker.ParseKind(p.Kind)
	if err != nil {
		h.logger.Warn("Bad message from map view", "remote", c.remote, "error", err)
		return
	}
	if _, err := clicks.Clicked(ctx, kind, p.ID); err != nil {
		h.logger.Warn("Click failed", "kind", p.Kind, "id", p.ID, "error", err)
	}
}

// client is one connected map view.
type client struct {
	hub      *Hub
	conn     *websocket.Conn
	remote   string
	send     chan []byte
	done     chan struct{}
	stopOnce sync.Once
}

func (c *client) stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

// readPump routes clicks until the connection fails.
func (c *client) readPump(ctx context.Context) {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("Map view read error", "remote", c.remote, "error", err)
			}
			return
		}
		c.hub.handleClick(ctx, c, data)
	}
}

// writePump sends the snapshot, then queued messages and pings. It is the
// only writer on the connection.
func (c *client) writePump(snapshot []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	if err := c.write(websocket.TextMessage, snapshot); err != nil {
		return
	}

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) write(messageType int, data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}
