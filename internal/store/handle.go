package store

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Handle shares one configuration between the monitoring loop and the
// presentation layer. Readers get private copies; writers swap the whole value.
type Handle struct {
	mu  sync.RWMutex
	cfg Config
}

func NewHandle(c *Config) *Handle {
	h := &Handle{}
	h.cfg = c.clone()
	return h
}

// Snapshot returns a deep copy safe to keep for the duration of an iteration.
func (h *Handle) Snapshot() Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg.clone()
}

// Update applies fn to a copy and installs it only if the result validates.
func (h *Handle) Update(fn func(*Config)) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	next := h.cfg.clone()
	fn(&next)
	if err := next.Validate(); err != nil {
		return fmt.Errorf("rejected config update: %w", err)
	}
	h.cfg = next
	return nil
}

func (c Config) clone() Config {
	out := c
	out.Monitoring.RSSFeeds = slices.Clone(c.Monitoring.RSSFeeds)
	out.Monitoring.RSSKeywords = slices.Clone(c.Monitoring.RSSKeywords)
	out.UI = maps.Clone(c.UI)
	return out
}
