// Package deeplink implements the readiness-gated deep-link queue.
//
// Deep-link arrival, navigation mount and auth-state resolution are three
// independently timed signals. The queue holds at most one pending link and
// delivers it to the registered flush callback only once both readiness
// gates are open, regardless of arrival order. Auth-callback URLs bypass
// the queue entirely and identical raw URLs redelivered by the OS within a
// short window are collapsed into one logical event.
package deeplink

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/campuslink/appcore/internal/events"
	"github.com/campuslink/appcore/internal/metrics"
)

// DefaultDedupWindow is the interval during which an identical raw URL is
// treated as an OS redelivery of the same open-URL event.
const DefaultDedupWindow = 500 * time.Millisecond

// PendingLink is the single buffered deep link awaiting readiness.
type PendingLink struct {
	NormalizedPath string
	RawURL         string
	EnqueuedAt     time.Time
}

// FlushFunc delivers a normalized path to the navigation layer.
type FlushFunc func(path string)

// Queue is the single-slot, readiness-gated deep-link buffer.
// All methods are safe for concurrent use and none of them blocks; the
// flush callback itself may perform asynchronous work, which is opaque
// to the queue.
type Queue struct {
	mu  sync.Mutex
	log zerolog.Logger
	rec events.Recorder

	pending  *PendingLink
	navReady bool
	auth     AuthState
	flush    FlushFunc

	lastRawURL string
	lastSeenAt time.Time

	dedupWindow time.Duration
	now         func() time.Time
}

// Option configures a Queue.
type Option func(*Queue)

// WithDedupWindow overrides the identical-URL dedup window.
func WithDedupWindow(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.dedupWindow = d
		}
	}
}

// WithRecorder attaches a coordination event recorder.
func WithRecorder(rec events.Recorder) Option {
	return func(q *Queue) {
		if rec != nil {
			q.rec = rec
		}
	}
}

// NewQueue creates an empty queue with both gates closed.
func NewQueue(log zerolog.Logger, opts ...Option) *Queue {
	q := &Queue{
		log:         log.With().Str("component", "deeplink").Logger(),
		rec:         events.Discard{},
		auth:        AuthUnknown,
		dedupWindow: DefaultDedupWindow,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue classifies, normalizes and buffers a raw deep-link URL, flushing
// immediately when both readiness gates are already open. Auth-callback
// URLs never touch the queue: they are handled synchronously by the auth
// subsystem, and buffering a stale redelivery would re-trigger session
// side effects. Malformed URLs are logged and dropped; a bad URL must
// never block app startup.
func (q *Queue) Enqueue(rawURL string) {
	if IsAuthCallback(rawURL) {
		q.log.Debug().Str("url", rawURL).Msg("auth callback bypassed queue")
		metrics.ObserveEnqueue(metrics.EnqueueBypassed)
		q.rec.Record(events.Event{Type: events.LinkBypassedCallback})
		return
	}

	path, err := Normalize(rawURL)
	if err != nil {
		q.log.Warn().Err(err).Str("url", rawURL).Msg("dropping malformed deep link")
		metrics.ObserveEnqueue(metrics.EnqueueMalformed)
		q.rec.Record(events.Event{Type: events.LinkDroppedMalformed, Error: err.Error()})
		return
	}

	q.mu.Lock()
	now := q.now()
	if rawURL == q.lastRawURL && now.Sub(q.lastSeenAt) < q.dedupWindow {
		q.mu.Unlock()
		q.log.Debug().Str("url", rawURL).Msg("duplicate deep link within dedup window")
		metrics.ObserveEnqueue(metrics.EnqueueDeduped)
		q.rec.Record(events.Event{Type: events.LinkDeduped, Path: path})
		return
	}
	q.lastRawURL = rawURL
	q.lastSeenAt = now

	// A newer enqueue unconditionally replaces an older unflushed link.
	q.pending = &PendingLink{
		NormalizedPath: path,
		RawURL:         rawURL,
		EnqueuedAt:     now,
	}
	fn, flushPath := q.takeFlushLocked()
	q.mu.Unlock()

	metrics.ObserveEnqueue(metrics.EnqueueStored)
	q.rec.Record(events.Event{Type: events.LinkEnqueued, Path: path})
	q.log.Debug().Str("path", path).Msg("deep link pending")

	q.deliver(fn, flushPath)
}

// SetNavReady opens the navigation gate. Called once by the navigation
// subsystem after the screen tree is mounted.
func (q *Queue) SetNavReady() {
	q.mu.Lock()
	q.navReady = true
	fn, path := q.takeFlushLocked()
	q.mu.Unlock()

	q.rec.Record(events.Event{Type: events.GateNavReady})
	q.deliver(fn, path)
}

// SetAuthReady resolves the auth gate. A signed-out resolution never
// flushes: an unauthenticated session must not auto-navigate to a
// deep-linked destination. The pending link is kept either way; only
// Reset discards it at the session boundary.
func (q *Queue) SetAuthReady(signedIn bool) {
	q.mu.Lock()
	if signedIn {
		q.auth = AuthSignedIn
	} else {
		q.auth = AuthSignedOut
	}
	fn, path := q.takeFlushLocked()
	q.mu.Unlock()

	q.rec.Record(events.Event{
		Type:    events.GateAuthReady,
		Message: q.AuthState().String(),
	})
	q.deliver(fn, path)
}

// SetFlushCallback installs the single active flush callback, replacing any
// previous registration. If a link is already pending with both gates open
// (cold start where readiness resolved before the router registered), it
// flushes immediately.
func (q *Queue) SetFlushCallback(fn FlushFunc) {
	q.mu.Lock()
	q.flush = fn
	pendingFn, path := q.takeFlushLocked()
	q.mu.Unlock()

	q.deliver(pendingFn, path)
}

// Reset clears the pending link, both readiness gates and the dedup memory.
// Called on sign-out so a link captured under a previous identity can never
// replay into a new session.
func (q *Queue) Reset() {
	q.mu.Lock()
	q.pending = nil
	q.navReady = false
	q.auth = AuthUnknown
	q.lastRawURL = ""
	q.lastSeenAt = time.Time{}
	q.mu.Unlock()

	metrics.ObserveReset()
	q.rec.Record(events.Event{Type: events.QueueReset})
	q.log.Debug().Msg("deep-link queue reset")
}

// Pending returns the currently buffered link, or nil.
func (q *Queue) Pending() *PendingLink {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending == nil {
		return nil
	}
	link := *q.pending
	return &link
}

// NavReady reports whether the navigation gate is open.
func (q *Queue) NavReady() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.navReady
}

// AuthState reports the current state of the auth gate.
func (q *Queue) AuthState() AuthState {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.auth
}

// takeFlushLocked clears and returns the pending link when both gates are
// open and a callback is registered. The caller must hold q.mu and invoke
// the returned function after releasing it.
func (q *Queue) takeFlushLocked() (FlushFunc, string) {
	if q.pending == nil || q.flush == nil || !q.navReady || !q.auth.IsSignedIn() {
		return nil, ""
	}
	path := q.pending.NormalizedPath
	q.pending = nil
	return q.flush, path
}

// deliver invokes the flush callback outside the queue lock.
func (q *Queue) deliver(fn FlushFunc, path string) {
	if fn == nil {
		return
	}
	metrics.ObserveFlush()
	q.rec.Record(events.Event{Type: events.LinkFlushed, Path: path})
	q.log.Info().Str("path", path).Msg("deep link flushed")
	fn(path)
}
