package host

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/seisview/markermap/pkg/streaming"
)

// HTTP posts marker selections to the host's web endpoint.
type HTTP struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTP creates a new HTTP notifier.
func NewHTTP(cfg Config) *HTTP {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTP{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.Secret,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Healthcheck checks if the host endpoint is reachable.
func (c *HTTP) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthcheck", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// MarkerSelected posts {"sourceId","rowIndex"} to /api/v1/marker-selected.
func (c *HTTP) MarkerSelected(ctx context.Context, sourceID string, rowIndex int) error {
	body, err := json.Marshal(streaming.MarkerSelectedPayload{SourceID: sourceID, RowIndex: rowIndex})
	if err != nil {
		return fmt.Errorf("failed to encode selection: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/marker-selected", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("selection request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("selection returned status %d", resp.StatusCode)
	}
	return nil
}

// Close is a no-op; the HTTP client holds no persistent connection state.
func (c *HTTP) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
