// Package session holds the label of the dataset currently shown on the map.
package session

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultName is used until the host names the session.
const DefaultName = "No session loaded"

// Context holds the current session name and start time.
type Context struct {
	mu        sync.RWMutex
	name      string
	startedAt time.Time
}

// NewContext creates a new Context with default values.
func NewContext() *Context {
	return &Context{
		name:      DefaultName,
		startedAt: time.Now().UTC(),
	}
}

// Name returns the current session name.
func (c *Context) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// StartedAt returns when the current session began.
func (c *Context) StartedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.startedAt
}

// SetName renames the session and restarts its clock.
func (c *Context) SetName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = name
	c.startedAt = time.Now().UTC()
}

// LogAttrs returns the session attributes added to every log record.
func (c *Context) LogAttrs() []slog.Attr {
	return []slog.Attr{slog.String("session", c.Name())}
}
