// Package server serves the map page, the map view websocket and the HTTP
// API used by hosts that do not embed the registries directly.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/seisview/markermap/internal/config"
	"github.com/seisview/markermap/internal/dispatcher"
	"github.com/seisview/markermap/internal/geojson"
	"github.com/seisview/markermap/internal/handlers"
	"github.com/seisview/markermap/internal/marker"
	"github.com/seisview/markermap/internal/registry"
)

//go:embed web
var webFS embed.FS

const maxCommandBody = 1 << 20

// CommandMetrics counts HTTP commands by outcome. *metrics.Collector satisfies it.
type CommandMetrics interface {
	CommandHandled(err error)
}

// Dependencies holds all dependencies of the server.
type Dependencies struct {
	Config   config.ServerConfig
	Map      config.MapConfig
	Stations *registry.Registry
	Events   *registry.Registry
	Commands *dispatcher.Dispatcher
	Hub      *Hub
	Metrics  http.Handler   // optional, served at /metrics
	Counter  CommandMetrics // optional
	Logger   *slog.Logger
}

// Server is the HTTP front end.
type Server struct {
	deps   Dependencies
	mux    *http.ServeMux
	logger *slog.Logger
}

// New creates the server and its routes.
func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &Server{deps: deps, mux: http.NewServeMux(), logger: deps.Logger}
	s.routes()
	return s
}

func (s *Server) routes() {
	static, err := fs.Sub(webFS, "web")
	if err != nil {
		panic(err)
	}

	s.mux.Handle("GET /", http.FileServer(http.FS(static)))
	s.mux.HandleFunc("GET /healthcheck", s.handleHealthcheck)
	s.mux.HandleFunc("GET /api/v1/config", s.handleConfig)
	s.mux.HandleFunc("GET /api/v1/markers", s.handleMarkers)
	s.mux.HandleFunc("GET /api/v1/markers.geojson", s.handleGeoJSON)
	s.mux.HandleFunc("POST /api/v1/command", s.handleCommand)
	if s.deps.Hub != nil {
		s.mux.HandleFunc("GET /ws", s.deps.Hub.ServeWS)
	}
	if s.deps.Metrics != nil {
		s.mux.Handle("GET /metrics", s.deps.Metrics)
	}
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves on the configured address until ctx is done, then shuts down
// gracefully and disconnects map views.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.deps.Config.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := s.deps.Config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if s.deps.Hub != nil {
		s.deps.Hub.Close()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealthcheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// mapSettings is what the map page needs to draw the base layer.
type mapSettings struct {
	CenterLat     float64 `json:"centerLat"`
	CenterLon     float64 `json:"centerLon"`
	ReferenceZoom int     `json:"referenceZoom"`
	TileURL       string  `json:"tileUrl"`
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, mapSettings{
		CenterLat:     s.deps.Map.CenterLat,
		CenterLon:     s.deps.Map.CenterLon,
		ReferenceZoom: s.deps.Map.ReferenceZoom,
		TileURL:       s.deps.Map.TileURL,
	})
}

type markersResponse struct {
	Stations []registry.Entry `json:"stations"`
	Events   []registry.Entry `json:"events"`
}

func (s *Server) handleMarkers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, markersResponse{
		Stations: s.deps.Stations.Entries(),
		Events:   s.deps.Events.Entries(),
	})
}

func (s *Server) handleGeoJSON(w http.ResponseWriter, r *http.Request) {
	regs := []*registry.Registry{s.deps.Stations, s.deps.Events}
	if k := r.URL.Query().Get("kind"); k != "" {
		kind, err := marker.ParseKind(k)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if kind == marker.KindStation {
			regs = regs[:1]
		} else {
			regs = regs[1:]
		}
	}

	data, err := geojson.Marshal(regs...)
	if err != nil {
		s.logger.Error("GeoJSON export failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(data)
}

// commandRequest is the body of POST /api/v1/command. Arguments may be JSON
// strings or any other JSON value, which is passed on as its literal text.
type commandRequest struct {
	Command string            `json:"command"`
	Args    []json.RawMessage `json:"args"`
}

func (r commandRequest) stringArgs() []string {
	out := make([]string, len(r.Args))
	for i, raw := range r.Args {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			out[i] = s
			continue
		}
		out[i] = strings.TrimSpace(string(raw))
	}
	return out
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	body := io.LimitReader(r.Body, maxCommandBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		resp := handlers.FormatResponse("", nil, fmt.Errorf("invalid request body: %w", err))
		s.count(err)
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	result, err := s.deps.Commands.Dispatch(r.Context(), dispatcher.Event{
		Command:   req.Command,
		Args:      req.stringArgs(),
		Timestamp: time.Now(),
	})
	s.count(err)

	resp := handlers.FormatResponse(req.Command, result, err)
	status := http.StatusOK
	if err != nil {
		status = http.StatusBadRequest
		if !s.deps.Commands.HasHandler(req.Command) {
			status = http.StatusNotFound
		}
	}
	writeJSON(w, status, resp)
}

func (s *Server) count(err error) {
	if s.deps.Counter != nil {
		s.deps.Counter.CommandHandled(err)
	}
}
