package realtime

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/campuslink/appcore/internal/events"
	"github.com/campuslink/appcore/internal/metrics"
)

// Invalidator drops cached query results so a resumed channel starts from
// refetched state. Implemented by the query cache.
type Invalidator interface {
	Invalidate(keys ...string)
}

// KeyMapper resolves which cache keys a topic's data lives under.
type KeyMapper func(topic string) []string

// Reconnector performs the resume-time reconnect for a topic. The transport
// does not replay events that occurred while the client was disconnected,
// so cached data may have drifted; invalidation must happen BEFORE the new
// handle is installed, otherwise a freshly delivered event could be
// invalidated away by a cache refresh racing its own cache update.
type Reconnector struct {
	log      zerolog.Logger
	rec      events.Recorder
	registry *Registry
	cache    Invalidator
	keysFor  KeyMapper
}

// ReconnectorOption configures a Reconnector.
type ReconnectorOption func(*Reconnector)

// WithKeyMapper overrides the topic-to-cache-keys mapping. The default
// invalidates the key equal to the topic name.
func WithKeyMapper(fn KeyMapper) ReconnectorOption {
	return func(rc *Reconnector) {
		if fn != nil {
			rc.keysFor = fn
		}
	}
}

// WithReconnectRecorder attaches a coordination event recorder.
func WithReconnectRecorder(rec events.Recorder) ReconnectorOption {
	return func(rc *Reconnector) {
		if rec != nil {
			rc.rec = rec
		}
	}
}

// NewReconnector creates a Reconnector over a registry and a cache.
func NewReconnector(log zerolog.Logger, registry *Registry, cache Invalidator, opts ...ReconnectorOption) *Reconnector {
	rc := &Reconnector{
		log:      log.With().Str("component", "reconnect").Logger(),
		rec:      events.Discard{},
		registry: registry,
		cache:    cache,
		keysFor:  func(topic string) []string { return []string{topic} },
	}
	for _, opt := range opts {
		opt(rc)
	}
	return rc
}

// InvalidateThenResubscribe drops the topic's cached query keys and then
// installs a fresh channel handle from the stored factory. The two-step
// signature exists so the ordering contract cannot regress into caller
// discipline.
func (rc *Reconnector) InvalidateThenResubscribe(name string) error {
	start := time.Now()
	rc.rec.Record(events.Event{Type: events.ReconnectStarted, Topic: name})

	keys := rc.keysFor(name)
	if rc.cache != nil && len(keys) > 0 {
		rc.cache.Invalidate(keys...)
	}

	err := rc.registry.Resubscribe(name)
	metrics.ObserveReconnect(time.Since(start), err)
	if err != nil {
		rc.rec.Record(events.Event{Type: events.ReconnectFailed, Topic: name, Error: err.Error()})
		rc.log.Warn().Err(err).Str("topic", name).Msg("reconnect failed")
		return err
	}

	rc.rec.Record(events.Event{Type: events.ReconnectCompleted, Topic: name})
	rc.log.Debug().Str("topic", name).Msg("reconnect completed")
	return nil
}
