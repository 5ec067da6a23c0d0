// Package streaming defines the JSON envelopes exchanged with browser map
// views and websocket hosts.
package streaming

import (
	"encoding/json"
	"fmt"
)

// Message type constants matching the streaming protocol.
const (
	// server -> map view
	TypeSnapshot    = "snapshot"
	TypeMarkerAdded = "marker_added"
	TypeMarkerStyle = "marker_style"
	TypePopupOpen   = "popup_open"
	TypePopupClose  = "popup_close"

	// map view -> server
	TypeMarkerClick = "marker_click"

	// server -> host
	TypeHello          = "hello"
	TypeMarkerSelected = "marker_selected"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is a peer's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// Marker kinds as they appear on the wire.
const (
	KindStation = "station"
	KindEvent   = "event"
)

// SnapshotPayload carries every marker with its current style and the open
// popup. E is the entry type; clients that only relay snapshots can use
// json.RawMessage.
type SnapshotPayload[E any] struct {
	Stations []E           `json:"stations"`
	Events   []E           `json:"events"`
	Popup    *PopupPayload `json:"popup,omitempty"`
}

// PopupPayload opens a popup on a marker.
type PopupPayload struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
	Text string `json:"text"`
}

// ClickPayload reports a click on a marker in a map view.
type ClickPayload struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// HelloPayload identifies this process to a websocket host. It is resent
// after every reconnect.
type HelloPayload struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// MarkerSelectedPayload is forwarded to the host when an event marker is clicked.
type MarkerSelectedPayload struct {
	SourceID string `json:"sourceId"`
	RowIndex int    `json:"rowIndex"`
}

// Marshal builds a JSON-encoded Envelope from a message type and payload.
func Marshal(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// Decode splits a raw message into its envelope and unmarshals the payload into v.
func Decode(data []byte, v any) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return env, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if v != nil && len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, v); err != nil {
			return env, fmt.Errorf("unmarshal %s payload: %w", env.Type, err)
		}
	}
	return env, nil
}
