// Package lifecycle coordinates app foreground/background transitions for
// the realtime layer. The transport does not replay events missed while
// the app was suspended, so every resume runs the invalidate-then-
// resubscribe cycle for each registered topic.
package lifecycle

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/campuslink/appcore/internal/realtime"
)

// Coordinator drives suspend and resume over the subscription registry.
type Coordinator struct {
	mu        sync.Mutex
	log       zerolog.Logger
	registry  *realtime.Registry
	reconnect *realtime.Reconnector
	suspended bool
}

// NewCoordinator creates a lifecycle coordinator.
func NewCoordinator(log zerolog.Logger, registry *realtime.Registry, reconnect *realtime.Reconnector) *Coordinator {
	return &Coordinator{
		log:       log.With().Str("component", "lifecycle").Logger(),
		registry:  registry,
		reconnect: reconnect,
	}
}

// Suspend closes every live channel in place. Entries stay registered so
// Resume can recreate them. Repeated calls are no-ops.
func (c *Coordinator) Suspend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.suspended {
		return
	}
	c.suspended = true
	c.registry.Suspend()
	c.log.Info().Msg("app suspended, channels closed")
}

// Resume runs invalidate-then-resubscribe for each registered topic and
// returns the first error encountered, after attempting every topic.
// Cached data that drifted while backgrounded must be dropped before the
// fresh handle lands, never after.
func (c *Coordinator) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.suspended {
		return nil
	}
	c.suspended = false

	var firstErr error
	for _, name := range c.registry.Names() {
		if err := c.reconnect.InvalidateThenResubscribe(name); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.log.Info().Int("topics", c.registry.Len()).Msg("app resumed")
	return firstErr
}

// Suspended reports whether the app is currently backgrounded.
func (c *Coordinator) Suspended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.suspended
}
