// Package realtime implements the named-channel subscription registry.
//
// The registry maps a logical topic name to the currently active realtime
// channel handle and the factory that can recreate it. It guarantees at
// most one live handle per name: two stacked subscriptions for one topic
// both firing on the same insert is the most common realtime bug class,
// and the teardown-before-install ordering here prevents it structurally.
package realtime

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/campuslink/appcore/internal/events"
	"github.com/campuslink/appcore/internal/metrics"
)

// ChannelHandle is the minimal surface the registry needs from a live
// realtime channel. Close must be idempotent: the registry may close a
// handle that the transport already tore down.
type ChannelHandle interface {
	Close() error
}

// Factory recreates a channel handle for a topic, used on app resume.
type Factory func() ChannelHandle

type entry struct {
	handle   ChannelHandle
	recreate Factory
}

// Registry holds the active channel per logical topic name.
type Registry struct {
	mu      sync.Mutex
	log     zerolog.Logger
	rec     events.Recorder
	entries map[string]*entry
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRecorder attaches a coordination event recorder.
func WithRecorder(rec events.Recorder) RegistryOption {
	return func(r *Registry) {
		if rec != nil {
			r.rec = rec
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(log zerolog.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		log:     log.With().Str("component", "realtime").Logger(),
		rec:     events.Discard{},
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe installs a handle and its recreate factory under name. An
// existing handle for the same name is torn down first, so there is never
// a moment where two handles for one topic are simultaneously active.
func (r *Registry) Subscribe(name string, handle ChannelHandle, recreate Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.entries[name]; ok {
		r.closeHandle(name, old.handle)
		metrics.ObserveTeardown(metrics.TeardownReplaced)
		r.rec.Record(events.Event{Type: events.ChannelReplaced, Topic: name})
	}

	r.entries[name] = &entry{handle: handle, recreate: recreate}
	metrics.SetActiveChannels(len(r.entries))
	r.rec.Record(events.Event{Type: events.ChannelSubscribed, Topic: name})
	r.log.Debug().Str("topic", name).Msg("channel subscribed")
}

// Unsubscribe tears down the handle for name and removes the entry.
// No-op when the name is not registered.
func (r *Registry) Unsubscribe(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return
	}
	r.closeHandle(name, e.handle)
	delete(r.entries, name)
	metrics.SetActiveChannels(len(r.entries))
	metrics.ObserveTeardown(metrics.TeardownUnsubscribed)
	r.rec.Record(events.Event{Type: events.ChannelClosed, Topic: name})
	r.log.Debug().Str("topic", name).Msg("channel unsubscribed")
}

// Resubscribe tears down the current handle for name and installs a fresh
// one from the stored factory. Callers that need cache invalidation first
// go through Reconnector instead of calling this directly.
func (r *Registry) Resubscribe(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return fmt.Errorf("subscription not found: %s", name)
	}
	if e.recreate == nil {
		return fmt.Errorf("subscription %s has no recreate factory", name)
	}

	r.closeHandle(name, e.handle)
	metrics.ObserveTeardown(metrics.TeardownReplaced)
	e.handle = e.recreate()
	r.rec.Record(events.Event{Type: events.ChannelSubscribed, Topic: name})
	r.log.Debug().Str("topic", name).Msg("channel resubscribed")
	return nil
}

// Suspend closes every handle in place, keeping the entries and their
// factories registered so Resume can recreate them. Used on app background:
// the transport does not replay events missed while suspended, so keeping
// the sockets open buys nothing.
func (r *Registry) Suspend() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, e := range r.entries {
		r.closeHandle(name, e.handle)
		metrics.ObserveTeardown(metrics.TeardownSuspended)
		r.rec.Record(events.Event{Type: events.ChannelSuspended, Topic: name})
	}
	r.log.Debug().Int("topics", len(r.entries)).Msg("channels suspended")
}

// Close tears down every handle and empties the registry. Used on sign-out
// and route unmount, where leaked background subscriptions must not survive.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, e := range r.entries {
		r.closeHandle(name, e.handle)
		delete(r.entries, name)
		metrics.ObserveTeardown(metrics.TeardownClosed)
		r.rec.Record(events.Event{Type: events.ChannelClosed, Topic: name})
	}
	metrics.SetActiveChannels(0)
	r.log.Debug().Msg("registry closed")
}

// Active returns the current handle for name, or nil.
func (r *Registry) Active(name string) ChannelHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[name]; ok {
		return e.handle
	}
	return nil
}

// Names returns the registered topic names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered topics.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) closeHandle(name string, h ChannelHandle) {
	if h == nil {
		return
	}
	if err := h.Close(); err != nil {
		r.log.Warn().Err(err).Str("topic", name).Msg("error closing channel handle")
	}
}
