package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/seisview/markermap/internal/marker"
	"github.com/seisview/markermap/internal/storage"
)

// Export is the root JSON structure
type Export struct {
	Session    string         `json:"session"`
	StartedAt  time.Time      `json:"startedAt"`
	ExportedAt time.Time      `json:"exportedAt"`
	Stations   []MarkerExport `json:"stations"`
	Events     []MarkerExport `json:"events"`
}

// MarkerExport is a marker with its status history
type MarkerExport struct {
	marker.Marker
	History []storage.StatusChange `json:"history"`
}

// exportJSON writes the recorded markers to a (optionally gzipped) JSON file.
// Callers hold b.mu.
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	name := strings.ReplaceAll(export.Session, " ", "_")
	name = strings.ReplaceAll(name, ":", "_")
	name = strings.ReplaceAll(name, string(filepath.Separator), "_")
	timestamp := export.StartedAt.Format("20060102_150405")

	var filename string
	if b.cfg.CompressOutput {
		filename = fmt.Sprintf("markermap_%s_%s.json.gz", name, timestamp)
	} else {
		filename = fmt.Sprintf("markermap_%s_%s.json", name, timestamp)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if b.cfg.CompressOutput {
		if err := writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport() Export {
	export := Export{
		Session:    "session",
		StartedAt:  time.Now().UTC(),
		ExportedAt: time.Now().UTC(),
		Stations:   b.exportKind(marker.KindStation),
		Events:     b.exportKind(marker.KindEvent),
	}
	if b.session != nil {
		export.Session = b.session.Name()
		export.StartedAt = b.session.StartedAt()
	}
	return export
}

func (b *Backend) exportKind(kind marker.Kind) []MarkerExport {
	byID := b.records[kind]
	out := make([]MarkerExport, 0, len(byID))
	for _, rec := range byID {
		history := rec.History
		if history == nil {
			history = []storage.StatusChange{}
		}
		out = append(out, MarkerExport{Marker: rec.Marker, History: history})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func writeJSON(path string, data any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return f.Close()
}

func writeGzipJSON(path string, data any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gw := gzip.NewWriter(f)
	encoder := json.NewEncoder(gw)
	if err := encoder.Encode(data); err != nil {
		gw.Close()
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("failed to finish gzip stream: %w", err)
	}
	return f.Close()
}
