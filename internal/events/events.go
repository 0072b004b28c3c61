// Package events provides structured event logging for the client
// coordination layer. Events capture significant occurrences such as
// deep-link queue transitions, readiness gate changes, channel lifecycle
// and reconnect actions.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type classifies the kind of coordination event.
type Type string

const (
	// Deep-link queue events
	LinkEnqueued         Type = "link.enqueued"
	LinkDeduped          Type = "link.deduped"
	LinkBypassedCallback Type = "link.bypassed_auth_callback"
	LinkFlushed          Type = "link.flushed"
	LinkDroppedMalformed Type = "link.dropped_malformed"

	// Readiness gate events
	GateNavReady  Type = "gate.nav_ready"
	GateAuthReady Type = "gate.auth_ready"
	QueueReset    Type = "queue.reset"

	// Channel registry events
	ChannelSubscribed Type = "channel.subscribed"
	ChannelReplaced   Type = "channel.replaced"
	ChannelClosed     Type = "channel.closed"
	ChannelSuspended  Type = "channel.suspended"

	// Reconnect events
	ReconnectStarted   Type = "reconnect.started"
	ReconnectCompleted Type = "reconnect.completed"
	ReconnectFailed    Type = "reconnect.failed"

	// Session boundary events
	SessionAdopted Type = "session.adopted"
	SessionCleared Type = "session.cleared"
)

// Event represents a structured coordination event.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	// Topic is the channel name for registry events.
	Topic string `json:"topic,omitempty"`

	// Path is the normalized deep-link path for queue events.
	Path string `json:"path,omitempty"`

	Message  string            `json:"message,omitempty"`
	Error    string            `json:"error,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// String returns a human-readable representation.
func (e Event) String() string {
	data, _ := json.Marshal(e)
	return string(data)
}

// Handler processes events as they occur.
type Handler func(Event)

// Recorder is the interface components log coordination events to.
type Recorder interface {
	Record(event Event)
}

// Discard is a Recorder that drops all events.
type Discard struct{}

func (Discard) Record(Event) {}

// Log is a thread-safe circular buffer of coordination events.
type Log struct {
	mu       sync.RWMutex
	events   []Event
	size     int
	head     int
	count    int
	handlers []handlerEntry
	nextID   int64
}

type handlerEntry struct {
	id      int64
	handler Handler
}

// NewLog creates a new event log holding up to size events.
func NewLog(size int) *Log {
	if size <= 0 {
		size = 512
	}
	return &Log{
		events: make([]Event, size),
		size:   size,
	}
}

// Record adds an event to the buffer and notifies handlers.
func (l *Log) Record(event Event) {
	l.mu.Lock()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	l.events[l.head] = event
	l.head = (l.head + 1) % l.size
	if l.count < l.size {
		l.count++
	}

	handlers := make([]handlerEntry, len(l.handlers))
	copy(handlers, l.handlers)
	l.mu.Unlock()

	// Notify handlers outside the lock
	for _, h := range handlers {
		h.handler(event)
	}
}

// Subscribe registers a handler for all events. The returned function
// removes the registration.
func (l *Log) Subscribe(handler Handler) func() {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.handlers = append(l.handlers, handlerEntry{id: id, handler: handler})
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, h := range l.handlers {
			if h.id == id {
				l.handlers = append(l.handlers[:i], l.handlers[i+1:]...)
				return
			}
		}
	}
}

// Recent returns the most recent N events in reverse chronological order.
func (l *Log) Recent(n int) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || l.count == 0 {
		return nil
	}
	if n > l.count {
		n = l.count
	}

	result := make([]Event, n)
	for i := 0; i < n; i++ {
		idx := (l.head - 1 - i + l.size) % l.size
		result[i] = l.events[idx]
	}
	return result
}

// RecentByType returns recent events of a specific type.
func (l *Log) RecentByType(eventType Type, n int) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || l.count == 0 {
		return nil
	}

	var result []Event
	for i := 0; i < l.count && len(result) < n; i++ {
		idx := (l.head - 1 - i + l.size) % l.size
		if l.events[idx].Type == eventType {
			result = append(result, l.events[idx])
		}
	}
	return result
}

// RecentByTopic returns recent events for a specific channel topic.
func (l *Log) RecentByTopic(topic string, n int) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || l.count == 0 {
		return nil
	}

	var result []Event
	for i := 0; i < l.count && len(result) < n; i++ {
		idx := (l.head - 1 - i + l.size) % l.size
		if l.events[idx].Topic == topic {
			result = append(result, l.events[idx])
		}
	}
	return result
}

// Count returns the number of events in the buffer.
func (l *Log) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}

// Clear removes all events from the buffer.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = make([]Event, l.size)
	l.head = 0
	l.count = 0
}
