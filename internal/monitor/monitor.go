// Package monitor periodically reports registry statistics to the log, an
// optional status file and InfluxDB.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/seisview/markermap/internal/influx"
	"github.com/seisview/markermap/internal/registry"
)

// WriteQueue reports the recorder backlog. *storage.Recorder satisfies it.
type WriteQueue interface {
	Pending() int
	Dropped() int64
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Stations   *registry.Registry
	Events     *registry.Registry
	Recorder   WriteQueue      // optional
	Influx     *influx.Manager // optional
	Logger     *slog.Logger
	Interval   time.Duration
	StatusPath string // optional; rewritten on every tick
}

// Status is one statistics snapshot.
type Status struct {
	Time           time.Time `json:"time"`
	Stations       int       `json:"stations"`
	Events         int       `json:"events"`
	ActiveStations []string  `json:"activeStations"`
	ActiveEvents   []string  `json:"activeEvents"`
	PendingWrites  int       `json:"pendingWrites"`
	DroppedWrites  int64     `json:"droppedWrites"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = time.Minute
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Snapshot collects the current statistics.
func (s *Service) Snapshot() Status {
	st := Status{
		Time:           time.Now().UTC(),
		ActiveStations: []string{},
		ActiveEvents:   []string{},
	}
	if s.deps.Stations != nil {
		st.Stations = s.deps.Stations.Len()
		if ids := s.deps.Stations.ActiveIDs(); ids != nil {
			st.ActiveStations = ids
		}
	}
	if s.deps.Events != nil {
		st.Events = s.deps.Events.Len()
		if ids := s.deps.Events.ActiveIDs(); ids != nil {
			st.ActiveEvents = ids
		}
	}
	if s.deps.Recorder != nil {
		st.PendingWrites = s.deps.Recorder.Pending()
		st.DroppedWrites = s.deps.Recorder.Dropped()
	}
	return st
}

// Report takes a snapshot and writes it to every configured output.
func (s *Service) Report() Status {
	st := s.Snapshot()
	logger := s.deps.Logger

	logger.Info("Registry status",
		"stations", st.Stations,
		"events", st.Events,
		"activeStations", st.ActiveStations,
		"activeEvents", st.ActiveEvents,
		"pendingWrites", st.PendingWrites,
		"droppedWrites", st.DroppedWrites,
	)

	if s.deps.StatusPath != "" {
		if err := writeStatusFile(s.deps.StatusPath, st); err != nil {
			logger.Error("Error writing status file", "path", s.deps.StatusPath, "error", err)
		}
	}

	if err := s.deps.Influx.WriteRegistryStats(influx.RegistryStats{
		Stations:       st.Stations,
		Events:         st.Events,
		ActiveStations: len(st.ActiveStations),
		ActiveEvents:   len(st.ActiveEvents),
		PendingWrites:  st.PendingWrites,
		DroppedWrites:  st.DroppedWrites,
	}); err != nil {
		logger.Error("Error writing registry point", "error", err)
	}

	return st
}

func writeStatusFile(path string, st Status) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Start starts the status monitor goroutine. It stops when ctx is done or
// Stop is called.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
			close(done)
		}()

		s.deps.Logger.Debug("Starting status monitor", "interval", s.deps.Interval)
		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				s.Report()
			}
		}
	}()
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	stop, done := s.stopChan, s.done
	select {
	case <-stop:
	default:
		close(stop)
	}
	s.mu.Unlock()
	<-done
}
