// Package postgres implements the storage.Backend interface on PostgreSQL.
// The connection is opened lazily in Init so a Backend can be constructed
// before the database is reachable.
package postgres

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/seisview/markermap/internal/cache"
	"github.com/seisview/markermap/internal/config"
	"github.com/seisview/markermap/internal/database"
	"github.com/seisview/markermap/internal/marker"
	"github.com/seisview/markermap/internal/model"
	"github.com/seisview/markermap/internal/storage"
	gormstorage "github.com/seisview/markermap/internal/storage/gorm"
)

var errNotInitialized = errors.New("postgres backend not initialized")

// Backend implements storage.Backend using GORM/PostgreSQL.
type Backend struct {
	cfg   config.PostgresConfig
	cache *cache.MarkerCache
	log   *slog.Logger

	gorm *gormstorage.Backend
}

// New creates a PostgreSQL backend. No connection is made until Init.
func New(cfg config.PostgresConfig, markerCache *cache.MarkerCache, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	if markerCache == nil {
		markerCache = cache.NewMarkerCache()
	}
	return &Backend{cfg: cfg, cache: markerCache, log: logger}
}

// Init connects to the database and migrates the schema.
func (b *Backend) Init() error {
	b.log.Info("Connecting to Postgres", "host", b.cfg.Host, "port", b.cfg.Port, "database", b.cfg.Database)

	db, err := database.GetPostgresDB(b.cfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	g := gormstorage.New(gormstorage.Dependencies{
		DB:          db,
		MarkerCache: b.cache,
		Logger:      b.log,
	})
	if err := g.Init(); err != nil {
		_ = g.Close()
		return err
	}
	b.gorm = g
	return nil
}

// Close closes the connection if Init succeeded.
func (b *Backend) Close() error {
	if b.gorm == nil {
		return nil
	}
	return b.gorm.Close()
}

func (b *Backend) SaveMarker(m *marker.Marker) error {
	if b.gorm == nil {
		return errNotInitialized
	}
	return b.gorm.SaveMarker(m)
}

func (b *Backend) RecordStatus(c *storage.StatusChange) error {
	if b.gorm == nil {
		return errNotInitialized
	}
	return b.gorm.RecordStatus(c)
}

func (b *Backend) LoadMarkers(kind marker.Kind) ([]marker.Marker, error) {
	if b.gorm == nil {
		return nil, errNotInitialized
	}
	return b.gorm.LoadMarkers(kind)
}

// StatusHistory returns the recorded status changes of one marker, oldest first.
func (b *Backend) StatusHistory(kind marker.Kind, id string) ([]model.MarkerStatusChange, error) {
	if b.gorm == nil {
		return nil, errNotInitialized
	}
	return b.gorm.StatusHistory(kind, id)
}
