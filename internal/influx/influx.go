// Package influx writes click, selection and registry statistics points to
// InfluxDB v2. When the server cannot be reached, points are appended in
// line protocol to a gzipped backup file instead. A nil *Manager is valid
// and discards everything.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"

	"github.com/seisview/markermap/internal/config"
	"github.com/seisview/markermap/internal/marker"
)

// Measurement names.
const (
	MeasurementClick     = "marker_click"
	MeasurementSelection = "marker_selected"
	MeasurementRegistry  = "marker_registry"
)

// retention of a bucket created by Connect.
const retentionSeconds = 60 * 60 * 24 * 90

// Manager handles the InfluxDB connection and writes.
type Manager struct {
	cfg        config.InfluxConfig
	backupPath string
	logger     *slog.Logger

	mu         sync.Mutex
	client     influxdb2.Client
	writer     influxdb2_api.WriteAPI
	backup     *gzip.Writer
	backupFile *os.File
	valid      bool
}

// NewManager creates a manager. Nothing is contacted until Connect.
func NewManager(cfg config.InfluxConfig, backupPath string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{cfg: cfg, backupPath: backupPath, logger: logger}
}

// Connect establishes a connection to InfluxDB and makes sure the org and
// bucket exist. If the server does not answer, points go to the backup file.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return errors.New("influx.enabled is false")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.client = influxdb2.NewClientWithOptions(
		m.cfg.URL(),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	running, err := m.client.Ping(ctx)
	if err != nil || !running {
		m.valid = false
		m.logger.Warn("InfluxDB unreachable, writing to backup file", "url", m.cfg.URL(), "backupPath", m.backupPath, "error", err)
		if m.backup == nil {
			file, err := os.OpenFile(m.backupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				return fmt.Errorf("error creating backup file: %w", err)
			}
			m.backupFile = file
			m.backup = gzip.NewWriter(file)
		}
		return nil
	}

	if err := m.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}

	m.writer = m.client.WriteAPI(m.cfg.Org, m.cfg.Bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			m.logger.Error("Error sending data to InfluxDB", "bucket", m.cfg.Bucket, "error", writeErr)
		}
	}(m.writer.Errors())

	m.valid = true
	m.logger.Info("InfluxDB client initialized", "url", m.cfg.URL(), "bucket", m.cfg.Bucket)
	return nil
}

func (m *Manager) setupOrganizationAndBucket(ctx context.Context) error {
	orgs := m.client.OrganizationsAPI()
	org, err := orgs.FindOrganizationByName(ctx, m.cfg.Org)
	if err != nil {
		m.logger.Info("Organization not found, creating", "org", m.cfg.Org)
		org, err = orgs.CreateOrganizationWithName(ctx, m.cfg.Org)
		if err != nil {
			return fmt.Errorf("create organization %s: %w", m.cfg.Org, err)
		}
	}

	buckets := m.client.BucketsAPI()
	if _, err := buckets.FindBucketByName(ctx, m.cfg.Bucket); err != nil {
		m.logger.Info("Bucket not found, creating", "bucket", m.cfg.Bucket)
		rule := domain.RetentionRuleTypeExpire
		_, err = buckets.CreateBucketWithName(ctx, org, m.cfg.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: retentionSeconds,
		})
		if err != nil {
			return fmt.Errorf("create bucket %s: %w", m.cfg.Bucket, err)
		}
	}
	return nil
}

// Active reports whether points are written anywhere.
func (m *Manager) Active() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.valid || m.backup != nil
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.valid {
		m.writer.WritePoint(point)
		return nil
	}
	if m.backup == nil {
		return nil
	}

	line := strings.TrimRight(influxdb2_write.PointToLineProtocol(point, time.Nanosecond), "\n")
	if _, err := m.backup.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// MarkerClicked records a click on a marker in a map view.
func (m *Manager) MarkerClicked(kind marker.Kind, id string) {
	if m == nil {
		return
	}
	p := influxdb2.NewPoint(MeasurementClick,
		map[string]string{"kind": string(kind)},
		map[string]interface{}{"id": id},
		time.Now(),
	)
	if err := m.WritePoint(p); err != nil {
		m.logger.Error("Failed to write click point", "error", err)
	}
}

// MarkerSelected records a selection forwarded to the host.
func (m *Manager) MarkerSelected(sourceID string, rowIndex int, err error) {
	if m == nil {
		return
	}
	p := influxdb2.NewPoint(MeasurementSelection,
		map[string]string{"source": sourceID},
		map[string]interface{}{"row": rowIndex, "delivered": err == nil},
		time.Now(),
	)
	if werr := m.WritePoint(p); werr != nil {
		m.logger.Error("Failed to write selection point", "error", werr)
	}
}

// RegistryStats is a snapshot of both registries.
type RegistryStats struct {
	Stations       int
	Events         int
	ActiveStations int
	ActiveEvents   int
	PendingWrites  int
	DroppedWrites  int64
}

// WriteRegistryStats records a registry statistics point.
func (m *Manager) WriteRegistryStats(s RegistryStats) error {
	if m == nil {
		return nil
	}
	return m.WritePoint(influxdb2.NewPoint(MeasurementRegistry,
		nil,
		map[string]interface{}{
			"stations":        s.Stations,
			"events":          s.Events,
			"active_stations": s.ActiveStations,
			"active_events":   s.ActiveEvents,
			"pending_writes":  s.PendingWrites,
			"dropped_writes":  s.DroppedWrites,
		},
		time.Now(),
	))
}

// Close flushes pending points and releases the client and backup file.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if m.writer != nil {
		m.writer.Flush()
	}
	if m.client != nil {
		m.client.Close()
		m.client = nil
	}
	if m.backup != nil {
		errs = append(errs, m.backup.Close())
		errs = append(errs, m.backupFile.Close())
		m.backup = nil
		m.backupFile = nil
	}
	m.valid = false
	return errors.Join(errs...)
}
