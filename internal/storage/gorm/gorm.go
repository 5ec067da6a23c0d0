// Package gormstorage implements storage.Backend on any GORM dialect. The
// sqlite and postgres backends wrap it and only add connection handling.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/seisview/markermap/internal/cache"
	"github.com/seisview/markermap/internal/database"
	"github.com/seisview/markermap/internal/marker"
	"github.com/seisview/markermap/internal/model"
	"github.com/seisview/markermap/internal/model/convert"
	"github.com/seisview/markermap/internal/storage"
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB          *gorm.DB
	MarkerCache *cache.MarkerCache
	Logger      *slog.Logger
}

// Backend implements storage.Backend using GORM.
type Backend struct {
	deps Dependencies
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.MarkerCache == nil {
		deps.MarkerCache = cache.NewMarkerCache()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Backend{deps: deps}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init runs schema migration.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return errors.New("gorm backend: no database")
	}
	b.deps.Logger.Info("Migrating schema", "dialect", b.deps.DB.Name())
	if err := database.Migrate(b.deps.DB); err != nil {
		return err
	}
	b.deps.Logger.Info("Database setup complete")
	return nil
}

// Close closes the underlying connection.
func (b *Backend) Close() error {
	if b.deps.DB == nil {
		return nil
	}
	sqlDB, err := b.deps.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveMarker upserts the marker on (kind, marker_id) and caches its row id.
func (b *Backend) SaveMarker(m *marker.Marker) error {
	row, err := convert.MarkerToGorm(*m)
	if err != nil {
		return err
	}

	err = b.deps.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "kind"}, {Name: "marker_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"updated_at", "latitude", "longitude", "location", "visual", "status", "source_id", "row_index",
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save %s %s: %w", m.Kind, m.ID, err)
	}

	// ID is not returned on every dialect when the upsert updates
	b.deps.MarkerCache.Delete(m.Kind, m.ID)
	if _, err := b.rowID(m.Kind, m.ID); err != nil {
		return err
	}
	return nil
}

// RecordStatus appends a status change row and updates the marker's status.
func (b *Backend) RecordStatus(c *storage.StatusChange) error {
	rowID, err := b.rowID(c.Kind, c.ID)
	if err != nil {
		return err
	}

	row, err := convert.StatusChangeToGorm(*c, rowID)
	if err != nil {
		return err
	}

	return b.deps.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to record %s %s status: %w", c.Kind, c.ID, err)
		}
		if err := tx.Model(&model.Marker{}).Where("id = ?", rowID).Update("status", string(c.Status)).Error; err != nil {
			return fmt.Errorf("failed to update %s %s status: %w", c.Kind, c.ID, err)
		}
		return nil
	})
}

// LoadMarkers returns the stored markers of a kind, sorted by id.
func (b *Backend) LoadMarkers(kind marker.Kind) ([]marker.Marker, error) {
	var rows []model.Marker
	if err := b.deps.DB.Where("kind = ?", string(kind)).Order("marker_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load %s markers: %w", kind, err)
	}

	out := make([]marker.Marker, 0, len(rows))
	for _, row := range rows {
		m, err := convert.GormToMarker(row)
		if err != nil {
			b.deps.Logger.Warn("Skipping unreadable marker row", "id", row.ID, "error", err)
			continue
		}
		b.deps.MarkerCache.Set(kind, m.ID, row.ID)
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// StatusHistory returns the recorded status changes of one marker, oldest first.
func (b *Backend) StatusHistory(kind marker.Kind, id string) ([]model.MarkerStatusChange, error) {
	var rows []model.MarkerStatusChange
	err := b.deps.DB.Where("kind = ? AND marker_id = ?", string(kind), id).Order("id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load %s %s history: %w", kind, id, err)
	}
	return rows, nil
}

func (b *Backend) rowID(kind marker.Kind, id string) (uint, error) {
	if rowID, ok := b.deps.MarkerCache.Get(kind, id); ok {
		return rowID, nil
	}
	var row model.Marker
	err := b.deps.DB.Select("id").Where("kind = ? AND marker_id = ?", string(kind), id).First(&row).Error
	if err != nil {
		return 0, fmt.Errorf("%s %s not stored: %w", kind, id, err)
	}
	b.deps.MarkerCache.Set(kind, id, row.ID)
	return row.ID, nil
}
