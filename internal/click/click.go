// Package click routes marker clicks from map views to the registries,
// the popup state and the host application.
package click

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/seisview/markermap/internal/host"
	"github.com/seisview/markermap/internal/marker"
	"github.com/seisview/markermap/internal/registry"
)

// Popup is the popup currently open on the map.
type Popup struct {
	Kind marker.Kind `json:"kind"`
	ID   string      `json:"id"`
	Text string      `json:"text"`
}

// PopupSink is told when popups open and close. Implementations must not block.
type PopupSink interface {
	PopupOpened(p Popup)
	PopupsClosed()
}

// Observer records clicks and host selections for telemetry.
type Observer interface {
	MarkerClicked(kind marker.Kind, id string)
	MarkerSelected(sourceID string, rowIndex int, err error)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHost enables the integrated variant: event clicks are forwarded to n.
// A nil notifier keeps the standalone variant.
func WithHost(n host.Notifier) Option {
	return func(d *Dispatcher) {
		d.host = n
	}
}

// WithPopupSink adds a popup sink.
func WithPopupSink(s PopupSink) Option {
	return func(d *Dispatcher) {
		if s != nil {
			d.popupSinks = append(d.popupSinks, s)
		}
	}
}

// WithObserver adds a click observer.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) {
		if o != nil {
			d.observers = append(d.observers, o)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// Dispatcher handles station and event clicks.
type Dispatcher struct {
	stations *registry.Registry
	events   *registry.Registry
	host     host.Notifier

	popupSinks []PopupSink
	observers  []Observer
	logger     *slog.Logger

	mu   sync.Mutex
	open *Popup
}

// New creates a click dispatcher over the station and event registries.
func New(stations, events *registry.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		stations: stations,
		events:   events,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Integrated reports whether event clicks are forwarded to a host.
func (d *Dispatcher) Integrated() bool {
	return d.host != nil
}

// StationClicked closes open popups, highlights the station and opens its
// popup. Unknown ids are ignored; the result reports whether id exists.
func (d *Dispatcher) StationClicked(_ context.Context, id string) bool {
	m, ok := d.stations.Get(id)
	if !ok {
		d.logger.Debug("Click on unknown station", "id", id)
		return false
	}
	d.notifyClicked(marker.KindStation, id)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.closePopups()
	d.stations.Highlight(id)
	d.openPopup(Popup{Kind: marker.KindStation, ID: id, Text: m.PopupText()})
	return true
}

// EventClicked opens the event popup and, in the integrated variant,
// forwards (sourceId, rowIndex) to the host. Events are not highlighted.
// A host failure is logged and returned; the popup is open either way.
func (d *Dispatcher) EventClicked(ctx context.Context, id string) (bool, error) {
	m, ok := d.events.Get(id)
	if !ok {
		d.logger.Debug("Click on unknown event", "id", id)
		return false, nil
	}
	d.notifyClicked(marker.KindEvent, id)

	d.mu.Lock()
	d.closePopups()
	d.openPopup(Popup{Kind: marker.KindEvent, ID: id, Text: m.PopupText()})
	d.mu.Unlock()

	if d.host == nil {
		return true, nil
	}

	err := d.host.MarkerSelected(ctx, m.SourceID, m.RowIndex)
	for _, o := range d.observers {
		o.MarkerSelected(m.SourceID, m.RowIndex, err)
	}
	if err != nil {
		d.logger.Error("Failed to notify host of selection",
			"event", id, "sourceId", m.SourceID, "rowIndex", m.RowIndex, "error", err)
		return true, fmt.Errorf("notify host: %w", err)
	}
	d.logger.Debug("Host notified of selection", "event", id, "sourceId", m.SourceID, "rowIndex", m.RowIndex)
	return true, nil
}

// Clicked routes a click by marker kind.
func (d *Dispatcher) Clicked(ctx context.Context, kind marker.Kind, id string) (bool, error) {
	switch kind {
	case marker.KindStation:
		return d.StationClicked(ctx, id), nil
	case marker.KindEvent:
		return d.EventClicked(ctx, id)
	default:
		return false, fmt.Errorf("unknown marker kind: %q", kind)
	}
}

// OpenPopup returns the popup currently open.
func (d *Dispatcher) OpenPopup() (Popup, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open == nil {
		return Popup{}, false
	}
	return *d.open, true
}

// ClosePopups closes any open popup.
func (d *Dispatcher) ClosePopups() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closePopups()
}

func (d *Dispatcher) closePopups() {
	if d.open == nil {
		return
	}
	d.open = nil
	for _, s := range d.popupSinks {
		s.PopupsClosed()
	}
}

func (d *Dispatcher) openPopup(p Popup) {
	d.open = &p
	for _, s := range d.popupSinks {
		s.PopupOpened(p)
	}
}

func (d *Dispatcher) notifyClicked(kind marker.Kind, id string) {
	for _, o := range d.observers {
		o.MarkerClicked(kind, id)
	}
}
