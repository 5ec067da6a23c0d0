// Package sqlitestorage implements the storage.Backend interface on SQLite.
// It wraps the GORM backend via composition; the only SQLite-specific
// concerns are (a) opening the file or in-memory DB and (b) the periodic
// VACUUM INTO dump of an in-memory DB.
package sqlitestorage

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/seisview/markermap/internal/cache"
	"github.com/seisview/markermap/internal/config"
	"github.com/seisview/markermap/internal/database"
	gormstorage "github.com/seisview/markermap/internal/storage/gorm"
)

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db        *gorm.DB
	cfg       config.SQLiteConfig
	log       *slog.Logger
	stopChan  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New opens the SQLite database. An empty cfg.Path keeps it in memory.
func New(cfg config.SQLiteConfig, markerCache *cache.MarkerCache, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := database.GetSqliteDB(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite DB: %w", err)
	}
	if cfg.Path == "" {
		logger.Info("Using SQLite DB in memory with periodic disk dump", "dumpPath", cfg.DumpPath, "interval", cfg.DumpInterval)
	} else {
		logger.Info("Using local SQLite DB", "path", cfg.Path)
	}

	gormBackend := gormstorage.New(gormstorage.Dependencies{
		DB:          db,
		MarkerCache: markerCache,
		Logger:      logger,
	})

	return &Backend{
		Backend:  gormBackend,
		db:       db,
		cfg:      cfg,
		log:      logger,
		stopChan: make(chan struct{}),
	}, nil
}

func (b *Backend) dumping() bool {
	return b.cfg.Path == "" && b.cfg.DumpPath != ""
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.dumping() && b.cfg.DumpInterval > 0 {
		b.wg.Add(1)
		go b.dumpLoop()
	}

	return nil
}

// Close stops the dump goroutine, writes a final dump and closes the DB.
func (b *Backend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.stopChan)
		b.wg.Wait()
		if b.dumping() {
			if dumpErr := b.Dump(); dumpErr != nil {
				b.log.Error("Final dump failed", "error", dumpErr)
			}
		}
		err = b.Backend.Close()
	})
	return err
}

// Dump writes a point-in-time copy of the database to cfg.DumpPath.
func (b *Backend) Dump() error {
	return database.DumpMemoryDBToDisk(b.db, b.cfg.DumpPath)
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := b.Dump(); err != nil {
				b.log.Error("Error dumping to disk", "error", err)
			} else {
				b.log.Debug("Dumped to disk", "duration", time.Since(start))
			}
		}
	}
}
