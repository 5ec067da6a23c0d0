package host

import (
	"context"
	"errors"
	"log/slog"

	"github.com/seisview/markermap/pkg/streaming"
)

// Version is reported to websocket hosts in the hello message.
var Version = "dev"

// ErrDropped is returned when the outbound queue is full.
var ErrDropped = errors.New("host send queue full")

// ErrDisconnected is returned while the host connection is down.
var ErrDisconnected = errors.New("host not connected")

// Websocket streams marker selections to the host over a persistent
// WebSocket connection.
type Websocket struct {
	conn *connection
	cfg  Config
}

// NewWebsocket creates a websocket notifier. Call Init to connect.
func NewWebsocket(cfg Config, logger *slog.Logger) *Websocket {
	return &Websocket{
		conn: newConnection(logger),
		cfg:  cfg,
	}
}

// Init connects to the host and announces this process. If the host is
// not reachable the error is returned and the notifier keeps dialing in
// the background until Close.
func (w *Websocket) Init() error {
	hello, err := streaming.Marshal(streaming.TypeHello, streaming.HelloPayload{Name: "markermap", Version: Version})
	if err != nil {
		return err
	}
	return w.conn.dial(w.cfg.URL, w.cfg.Secret, hello)
}

// MarkerSelected queues a marker_selected envelope (fire-and-forget). It
// fails with ErrDisconnected while the host connection is down.
func (w *Websocket) MarkerSelected(_ context.Context, sourceID string, rowIndex int) error {
	data, err := streaming.Marshal(streaming.TypeMarkerSelected, streaming.MarkerSelectedPayload{
		SourceID: sourceID,
		RowIndex: rowIndex,
	})
	if err != nil {
		return err
	}
	if !w.conn.connected() {
		return ErrDisconnected
	}
	if !w.conn.send(data) {
		return ErrDropped
	}
	return nil
}

// Close disconnects from the host.
func (w *Websocket) Close() error {
	return w.conn.close()
}
