// Package handlers binds host commands to the marker registries.
package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/seisview/markermap/internal/click"
	"github.com/seisview/markermap/internal/dispatcher"
	"github.com/seisview/markermap/internal/marker"
	"github.com/seisview/markermap/internal/parser"
	"github.com/seisview/markermap/internal/registry"
	"github.com/seisview/markermap/internal/session"
	"github.com/seisview/markermap/internal/util"
)

// Dependencies holds all dependencies needed by handlers.
type Dependencies struct {
	Stations *registry.Registry
	Events   *registry.Registry
	Clicks   *click.Dispatcher
	Session  *session.Context
	Logger   *slog.Logger
}

// Service provides handler methods for host commands.
type Service struct {
	deps   Dependencies
	parser *parser.Parser
	logger *slog.Logger
}

// NewService creates a new handler service.
func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Session == nil {
		deps.Session = session.NewContext()
	}
	return &Service{
		deps:   deps,
		parser: parser.NewParser(logger),
		logger: logger,
	}
}

// Status is the result of :STATUS:.
type Status struct {
	Session        string   `json:"session"`
	Uptime         string   `json:"uptime"`
	Stations       int      `json:"stations"`
	Events         int      `json:"events"`
	ActiveStations []string `json:"activeStations"`
	ActiveEvents   []string `json:"activeEvents"`
	Integrated     bool     `json:"integrated"`
}

// Register binds every command to d.
func (s *Service) Register(d *dispatcher.Dispatcher) {
	s.registerKind(d, "STATION", s.deps.Stations, s.parser.ParseStation, s.stationClick)
	s.registerKind(d, "EVENT", s.deps.Events, s.parser.ParseEvent, s.eventClick)

	d.Register(":EVENT:RESET:SIZE:", func(_ context.Context, _ dispatcher.Event) (any, error) {
		s.deps.Events.ResetRadius()
		return nil, nil
	}, dispatcher.Logged())

	d.Register(":SESSION:NAME:", s.handleSessionName, dispatcher.Logged())
	d.Register(":STATUS:", func(_ context.Context, _ dispatcher.Event) (any, error) {
		return s.Status(), nil
	})
	d.Register(":TIMESTAMP:", func(_ context.Context, _ dispatcher.Event) (any, error) {
		return time.Now().UTC().UnixNano(), nil
	})
}

type parseFunc func([]string) (marker.Marker, error)

type clickFunc func(context.Context, string) (bool, error)

func (s *Service) registerKind(d *dispatcher.Dispatcher, prefix string, reg *registry.Registry, parse parseFunc, onClick clickFunc) {
	cmd := func(verb string) string { return ":" + prefix + ":" + verb + ":" }

	d.Register(cmd("ADD"), func(_ context.Context, e dispatcher.Event) (any, error) {
		m, err := parse(e.Args)
		if err != nil {
			return nil, err
		}
		replaced, err := reg.Register(m)
		if err != nil {
			return nil, err
		}
		if replaced {
			s.logger.Warn("Marker id registered twice, overwriting", "kind", m.Kind, "id", m.ID)
		}
		return nil, nil
	}, dispatcher.Logged())

	d.Register(cmd("HIGHLIGHT"), s.withID(func(id string) (any, error) {
		if !reg.Highlight(id) {
			s.logger.Debug("Highlight of unknown marker, all cleared", "kind", reg.Kind(), "id", id)
		}
		return nil, nil
	}), dispatcher.Logged())

	d.Register(cmd("ACTIVATE"), s.withID(func(id string) (any, error) {
		reg.Activate(id)
		return nil, nil
	}), dispatcher.Logged())

	d.Register(cmd("DEACTIVATE"), s.withID(func(id string) (any, error) {
		reg.Deactivate(id)
		return nil, nil
	}), dispatcher.Logged())

	d.Register(cmd("CLICK"), func(ctx context.Context, e dispatcher.Event) (any, error) {
		id, err := s.parser.ParseID(e.Args)
		if err != nil {
			return nil, err
		}
		found, err := onClick(ctx, id)
		if err != nil {
			return nil, err
		}
		if !found {
			return "unknown", nil
		}
		return nil, nil
	}, dispatcher.Logged())

	d.Register(cmd("ALL:INACTIVE"), func(_ context.Context, _ dispatcher.Event) (any, error) {
		reg.SetAllInactive()
		return nil, nil
	}, dispatcher.Logged())

	d.Register(cmd("ALL:ACTIVE"), func(_ context.Context, _ dispatcher.Event) (any, error) {
		reg.SetAllActive()
		return nil, nil
	}, dispatcher.Logged())
}

func (s *Service) withID(fn func(id string) (any, error)) dispatcher.HandlerFunc {
	return func(_ context.Context, e dispatcher.Event) (any, error) {
		id, err := s.parser.ParseID(e.Args)
		if err != nil {
			return nil, err
		}
		return fn(id)
	}
}

func (s *Service) stationClick(ctx context.Context, id string) (bool, error) {
	if s.deps.Clicks == nil {
		return s.deps.Stations.Highlight(id), nil
	}
	return s.deps.Clicks.StationClicked(ctx, id), nil
}

func (s *Service) eventClick(ctx context.Context, id string) (bool, error) {
	if s.deps.Clicks == nil {
		_, ok := s.deps.Events.Get(id)
		return ok, nil
	}
	return s.deps.Clicks.EventClicked(ctx, id)
}

func (s *Service) handleSessionName(_ context.Context, e dispatcher.Event) (any, error) {
	if len(e.Args) < 1 {
		return nil, fmt.Errorf("%w: session name needs 1, got 0", parser.ErrArgCount)
	}
	name := util.CleanArgs(e.Args[:1])[0]
	s.deps.Session.SetName(name)
	s.logger.Info("Session renamed", "session", name)
	return nil, nil
}

// Status reports marker counts and active ids.
func (s *Service) Status() Status {
	st := Status{
		Session:        s.deps.Session.Name(),
		Uptime:         time.Since(s.deps.Session.StartedAt()).Round(time.Second).String(),
		Stations:       s.deps.Stations.Len(),
		Events:         s.deps.Events.Len(),
		ActiveStations: s.deps.Stations.ActiveIDs(),
		ActiveEvents:   s.deps.Events.ActiveIDs(),
	}
	if s.deps.Clicks != nil {
		st.Integrated = s.deps.Clicks.Integrated()
	}
	return st
}
