// Package registry keeps the marker records of one collection (stations or
// events) and applies their active/passive styles.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/seisview/markermap/internal/marker"
)

// ErrKindMismatch is returned when a marker is registered in the registry of another kind.
var ErrKindMismatch = errors.New("marker kind does not match registry")

// Change describes a style applied to a marker.
type Change struct {
	Kind   marker.Kind   `json:"kind"`
	ID     string        `json:"id"`
	Status marker.Status `json:"status"`
	Style  marker.Style  `json:"style"`
}

// Entry is a marker together with the style it currently shows.
type Entry struct {
	Marker marker.Marker `json:"marker"`
	Style  marker.Style  `json:"style"`
}

// Sink observes registry mutations. Sinks are called with the registry lock
// held, in mutation order; they must not block or call back into the registry.
type Sink interface {
	MarkerAdded(m marker.Marker)
	StyleApplied(c Change)
}

// Option configures a Registry.
type Option func(*Registry)

// WithZoom sets the reference zoom used to order station icons.
func WithZoom(zoom int) Option {
	return func(r *Registry) {
		r.zoom = zoom
	}
}

// WithSink adds a sink.
func WithSink(s Sink) Option {
	return func(r *Registry) {
		if s != nil {
			r.sinks = append(r.sinks, s)
		}
	}
}

// Registry maps marker ids to records of a single kind.
type Registry struct {
	mu      sync.Mutex
	kind    marker.Kind
	zoom    int
	records map[string]*marker.Marker
	sinks   []Sink
}

// New creates an empty registry for the given kind.
func New(kind marker.Kind, opts ...Option) *Registry {
	r := &Registry{
		kind:    kind,
		records: make(map[string]*marker.Marker),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Kind returns the marker kind held by the registry.
func (r *Registry) Kind() marker.Kind {
	return r.kind
}

// AddSink attaches a sink after construction.
func (r *Registry) AddSink(s Sink) {
	if s == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, s)
}

// Register stores m under m.ID and shows it passive. An existing record with
// the same id is replaced; replaced reports whether that happened.
func (r *Registry) Register(m marker.Marker) (replaced bool, err error) {
	if m.Kind != r.kind {
		return false, fmt.Errorf("%w: %s into %s", ErrKindMismatch, m.Kind, r.kind)
	}

	rec := m.Clone()
	rec.Status = marker.StatusInitial

	r.mu.Lock()
	defer r.mu.Unlock()

	_, replaced = r.records[rec.ID]
	r.records[rec.ID] = &rec

	for _, s := range r.sinks {
		s.MarkerAdded(rec.Clone())
	}
	r.setInactive(&rec)

	return replaced, nil
}

// Activate shows the marker active. Unknown ids are ignored; the result
// reports whether the id exists.
func (r *Registry) Activate(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return false
	}
	r.setActive(rec)
	return true
}

// Deactivate shows the marker passive. Unknown ids are ignored.
func (r *Registry) Deactivate(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return false
	}
	r.setInactive(rec)
	return true
}

// SetAllInactive shows every marker passive.
func (r *Registry) SetAllInactive() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setAllInactive()
}

// SetAllActive shows every marker active.
func (r *Registry) SetAllActive() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.sortedIDs() {
		r.setActive(r.records[id])
	}
}

// ResetRadius restores the default circle radius of every event marker and
// re-announces its current style. Station registries are unaffected.
func (r *Registry) ResetRadius() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.sortedIDs() {
		rec := r.records[id]
		if rec.Colors == nil {
			continue
		}
		rec.Colors.Radius = marker.DefaultEventRadius
		r.apply(rec)
	}
}

// Get returns a copy of the record for id.
func (r *Registry) Get(id string) (marker.Marker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return marker.Marker{}, false
	}
	return rec.Clone(), true
}

// List returns copies of all records sorted by id.
func (r *Registry) List() []marker.Marker {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]marker.Marker, 0, len(r.records))
	for _, id := range r.sortedIDs() {
		out = append(out, r.records[id].Clone())
	}
	return out
}

// Entries returns all records with their current style, sorted by id.
func (r *Registry) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, 0, len(r.records))
	for _, id := range r.sortedIDs() {
		rec := r.records[id]
		out = append(out, Entry{
			Marker: rec.Clone(),
			Style:  rec.Style(rec.Status, r.zoom),
		})
	}
	return out
}

// Len returns the number of records.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func (r *Registry) setActive(rec *marker.Marker) {
	if rec.Status == marker.StatusActive {
		return
	}
	rec.Status = marker.StatusActive
	r.apply(rec)
}

func (r *Registry) setInactive(rec *marker.Marker) {
	if rec.Status == marker.StatusPassive {
		return
	}
	rec.Status = marker.StatusPassive
	r.apply(rec)
}

func (r *Registry) setAllInactive() {
	for _, id := range r.sortedIDs() {
		r.setInactive(r.records[id])
	}
}

func (r *Registry) apply(rec *marker.Marker) {
	if len(r.sinks) == 0 {
		return
	}
	c := Change{
		Kind:   rec.Kind,
		ID:     rec.ID,
		Status: rec.Status,
		Style:  rec.Style(rec.Status, r.zoom),
	}
	for _, s := range r.sinks {
		s.StyleApplied(c)
	}
}

func (r *Registry) sortedIDs() []string {
	ids := make([]string, 0, len(r.records))
	for id := range r.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
