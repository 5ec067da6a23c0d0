package registry

import "github.com/seisview/markermap/internal/marker"

// MultiSink fans out registry notifications to several sinks.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink creates a sink that forwards to all non-nil sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	valid := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			valid = append(valid, s)
		}
	}
	return &MultiSink{sinks: valid}
}

// MarkerAdded forwards to every sink.
func (m *MultiSink) MarkerAdded(mk marker.Marker) {
	for _, s := range m.sinks {
		s.MarkerAdded(mk)
	}
}

// StyleApplied forwards to every sink.
func (m *MultiSink) StyleApplied(c Change) {
	for _, s := range m.sinks {
		s.StyleApplied(c)
	}
}
