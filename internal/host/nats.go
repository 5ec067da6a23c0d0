package host

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/seisview/markermap/pkg/streaming"
)

// NATS publishes marker selections on <subject>.<sourceId>.
type NATS struct {
	nc      *nats.Conn
	subject string
	logger  *slog.Logger
}

// NewNATS connects to the NATS server at cfg.URL.
func NewNATS(cfg Config, logger *slog.Logger) (*NATS, error) {
	subject := cfg.Subject
	if subject == "" {
		subject = "markermap.selected"
	}

	opts := []nats.Option{
		nats.Name("markermap"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("NATS reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}
	if cfg.Secret != "" {
		opts = append(opts, nats.Token(cfg.Secret))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect failed: %w", err)
	}
	return &NATS{nc: nc, subject: subject, logger: logger}, nil
}

// MarkerSelected publishes the selection as JSON.
func (p *NATS) MarkerSelected(_ context.Context, sourceID string, rowIndex int) error {
	b, err := json.Marshal(streaming.MarkerSelectedPayload{SourceID: sourceID, RowIndex: rowIndex})
	if err != nil {
		return err
	}
	subject := p.subject + "." + subjectToken(sourceID)
	if err := p.nc.Publish(subject, b); err != nil {
		return fmt.Errorf("nats publish to %s failed: %w", subject, err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATS) Close() error {
	if p.nc == nil {
		return nil
	}
	err := p.nc.Drain()
	p.nc.Close()
	return err
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
