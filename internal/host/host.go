// Package host forwards marker selections to the host application.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Notifier delivers onMarkerSelected(sourceId, rowIndex) to the host.
type Notifier interface {
	MarkerSelected(ctx context.Context, sourceID string, rowIndex int) error
	Close() error
}

// Config selects and configures a notifier.
type Config struct {
	Type    string // none, websocket, http or nats
	URL     string
	Secret  string
	Subject string
	Timeout time.Duration
}

// New creates the notifier named by cfg.Type. It returns a nil Notifier for
// "none", which selects the standalone click behaviour.
func New(cfg Config, logger *slog.Logger) (Notifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "websocket":
		n := NewWebsocket(cfg, logger)
		if err := n.Init(); err != nil {
			if errors.Is(err, errInvalidURL) {
				return nil, err
			}
			logger.Warn("Host not reachable yet, retrying in background", "url", cfg.URL, "error", err)
		}
		return n, nil
	case "http":
		return NewHTTP(cfg), nil
	case "nats":
		n, err := NewNATS(cfg, logger)
		if err != nil {
			return nil, err
		}
		return n, nil
	default:
		return nil, fmt.Errorf("unknown host notifier type: %s", cfg.Type)
	}
}
