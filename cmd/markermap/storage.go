package main

import (
	"fmt"
	"log/slog"

	"github.com/seisview/markermap/internal/cache"
	"github.com/seisview/markermap/internal/config"
	"github.com/seisview/markermap/internal/session"
	"github.com/seisview/markermap/internal/storage"
	"github.com/seisview/markermap/internal/storage/memory"
	pgstorage "github.com/seisview/markermap/internal/storage/postgres"
	sqlitestorage "github.com/seisview/markermap/internal/storage/sqlite"
)

// createStorageBackend returns the backend named by cfg.Type, not yet
// initialised. "none" returns a nil backend and disables persistence.
func createStorageBackend(cfg config.StorageConfig, sess *session.Context, markerCache *cache.MarkerCache, logger *slog.Logger) (storage.Backend, error) {
	switch cfg.Type {
	case "", "none":
		logger.Info("Storage disabled")
		return nil, nil
	case "memory":
		logger.Info("Memory storage backend selected", "outputDir", cfg.Memory.OutputDir)
		return memory.New(cfg.Memory, sess), nil
	case "sqlite":
		b, err := sqlitestorage.New(cfg.SQLite, markerCache, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "postgres":
		logger.Info("Postgres storage backend selected", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		return pgstorage.New(cfg.Postgres, markerCache, logger), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
