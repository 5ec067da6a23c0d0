package storage

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/seisview/markermap/internal/marker"
	"github.com/seisview/markermap/internal/queue"
	"github.com/seisview/markermap/internal/registry"
)

// Recorder is a registry sink that queues marker additions and style
// changes and writes them to a Backend from a background goroutine, so the
// registry lock is never held across storage I/O.
type Recorder struct {
	backend  Backend
	interval time.Duration
	logger   *slog.Logger

	markers *queue.Queue[marker.Marker]
	changes *queue.Queue[StatusChange]

	flushMu  sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
	started  bool
	dropped  atomic.Int64
}

// maxPending bounds each recorder queue; beyond it items are dropped.
const maxPending = 100_000

// NewRecorder creates a recorder writing to b every interval once started.
func NewRecorder(b Backend, interval time.Duration, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Recorder{
		backend:  b,
		interval: interval,
		logger:   logger,
		markers:  queue.NewBounded[marker.Marker](maxPending),
		changes:  queue.NewBounded[StatusChange](maxPending),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// MarkerAdded queues the marker for saving.
func (r *Recorder) MarkerAdded(m marker.Marker) {
	if n := r.markers.Push(m); n > 0 {
		r.dropped.Add(int64(n))
	}
}

// StyleApplied queues the status change.
func (r *Recorder) StyleApplied(c registry.Change) {
	n := r.changes.Push(StatusChange{
		Kind:   c.Kind,
		ID:     c.ID,
		Status: c.Status,
		Style:  c.Style,
		Time:   time.Now().UTC(),
	})
	if n > 0 {
		r.dropped.Add(int64(n))
	}
}

// Pending returns the number of queued items.
func (r *Recorder) Pending() int {
	return r.markers.Len() + r.changes.Len()
}

// Dropped returns the number of items lost to a full queue or rejected by the backend.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Start launches the background writer.
func (r *Recorder) Start() {
	r.started = true
	go r.writeLoop()
}

func (r *Recorder) writeLoop() {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopChan:
			return
		case <-ticker.C:
			if err := r.Flush(); err != nil {
				r.logger.Error("Failed to write markers to storage", "error", err)
			}
		}
	}
}

// Flush writes everything queued so far. Markers are written before status
// changes so history rows always find their marker. Items the backend
// rejects are logged and dropped; the joined errors are returned.
func (r *Recorder) Flush() error {
	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	// Changes are taken before markers: a registry queues a marker before
	// its styles, so every change taken here has its marker in the second
	// snapshot.
	changes := r.changes.GetAndEmpty()
	markers := r.markers.GetAndEmpty()

	var errs []error

	for _, m := range markers {
		if err := r.backend.SaveMarker(&m); err != nil {
			r.dropped.Add(1)
			errs = append(errs, err)
		}
	}
	for _, c := range changes {
		if err := r.backend.RecordStatus(&c); err != nil {
			r.dropped.Add(1)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Close stops the writer and flushes what is left.
func (r *Recorder) Close() error {
	select {
	case <-r.stopChan:
		return nil
	default:
	}
	close(r.stopChan)
	if r.started {
		<-r.done
	}
	return r.Flush()
}
