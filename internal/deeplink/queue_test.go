package deeplink

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/campuslink/appcore/internal/events"
)

// fakeClock lets tests drive the dedup window deterministically.
type fakeClock struct {
	mu  sync.Mutex
	cur time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{cur: time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.cur = c.cur.Add(d)
	c.mu.Unlock()
}

// flushSpy records every delivery from the queue.
type flushSpy struct {
	mu    sync.Mutex
	paths []string
}

func (s *flushSpy) Flush(path string) {
	s.mu.Lock()
	s.paths = append(s.paths, path)
	s.mu.Unlock()
}

func (s *flushSpy) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.paths))
	copy(out, s.paths)
	return out
}

func (s *flushSpy) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.paths)
}

func newTestQueue(opts ...Option) (*Queue, *fakeClock) {
	clock := newFakeClock()
	q := NewQueue(zerolog.Nop(), opts...)
	q.now = clock.Now
	return q, clock
}

func TestQueue_AuthCallbackBypass(t *testing.T) {
	q, _ := newTestQueue()

	for i := 0; i < 5; i++ {
		q.Enqueue("campuslink://auth/callback?code=abc123")
	}

	if p := q.Pending(); p != nil {
		t.Fatalf("Pending() = %+v, want nil after auth-callback enqueues", p)
	}

	// The bypass must also skip dedup tracking: a real link right after
	// the callback is stored normally.
	q.Enqueue("campuslink://post/9")
	if p := q.Pending(); p == nil || p.NormalizedPath != "/post/9" {
		t.Fatalf("Pending() = %+v, want /post/9", p)
	}
}

func TestQueue_OAuthCallbackRouteIsBuffered(t *testing.T) {
	q, _ := newTestQueue()

	// An in-app route whose path merely contains the text auth/callback
	// inside another segment must not take the bypass.
	q.Enqueue("campuslink://oauth/callback?code=xyz")

	p := q.Pending()
	if p == nil || p.NormalizedPath != "/oauth/callback?code=xyz" {
		t.Fatalf("Pending() = %+v, want /oauth/callback?code=xyz", p)
	}
}

func TestQueue_DedupWindow(t *testing.T) {
	q, _ := newTestQueue()
	spy := &flushSpy{}
	q.SetFlushCallback(spy.Flush)

	// Three identical enqueues within the window, then both
	// gates open, flushes exactly once with the normalized path.
	q.Enqueue("campuslink://post/123")
	q.Enqueue("campuslink://post/123")
	q.Enqueue("campuslink://post/123")
	q.SetNavReady()
	q.SetAuthReady(true)

	if got := spy.Paths(); len(got) != 1 || got[0] != "/post/123" {
		t.Fatalf("flush paths = %v, want exactly [/post/123]", got)
	}
}

func TestQueue_DedupWindowExpires(t *testing.T) {
	q, clock := newTestQueue()
	spy := &flushSpy{}
	q.SetFlushCallback(spy.Flush)
	q.SetNavReady()
	q.SetAuthReady(true)

	q.Enqueue("campuslink://post/123")
	clock.Advance(DefaultDedupWindow + time.Millisecond)
	q.Enqueue("campuslink://post/123")

	if got := spy.Count(); got != 2 {
		t.Fatalf("flush count = %d, want 2 once the window expired", got)
	}
}

func TestQueue_DistinctURLsNotCollapsed(t *testing.T) {
	q, _ := newTestQueue()
	spy := &flushSpy{}
	q.SetFlushCallback(spy.Flush)

	q.Enqueue("campuslink://post/1")
	q.Enqueue("campuslink://post/2")
	q.SetNavReady()
	q.SetAuthReady(true)

	got := spy.Paths()
	if len(got) != 1 || got[0] != "/post/2" {
		t.Fatalf("flush paths = %v, want the newer link [/post/2]", got)
	}
}

func TestQueue_ImmediateFlushWhenReady(t *testing.T) {
	q, _ := newTestQueue()
	spy := &flushSpy{}
	q.SetFlushCallback(spy.Flush)
	q.SetNavReady()
	q.SetAuthReady(true)

	q.Enqueue("campuslink://jobs/7?ref=push")

	if got := spy.Paths(); len(got) != 1 || got[0] != "/jobs/7?ref=push" {
		t.Fatalf("flush paths = %v, want [/jobs/7?ref=push]", got)
	}
	if p := q.Pending(); p != nil {
		t.Errorf("Pending() = %+v, want nil after flush", p)
	}
}

func TestQueue_ReadinessGating(t *testing.T) {
	t.Run("signed-out never flushes", func(t *testing.T) {
		q, _ := newTestQueue()
		spy := &flushSpy{}
		q.SetFlushCallback(spy.Flush)

		q.Enqueue("campuslink://post/123")
		q.SetAuthReady(false)
		q.SetNavReady()

		if got := spy.Count(); got != 0 {
			t.Fatalf("flush count = %d, want 0 while signed out", got)
		}
		if p := q.Pending(); p == nil {
			t.Error("Pending() = nil, want link kept for the current epoch")
		}
	})

	t.Run("unknown auth never flushes", func(t *testing.T) {
		q, _ := newTestQueue()
		spy := &flushSpy{}
		q.SetFlushCallback(spy.Flush)

		q.Enqueue("campuslink://post/123")
		q.SetNavReady()

		if got := spy.Count(); got != 0 {
			t.Fatalf("flush count = %d, want 0 while auth unresolved", got)
		}
	})

	t.Run("nav gate alone is not enough", func(t *testing.T) {
		q, _ := newTestQueue()
		spy := &flushSpy{}
		q.SetFlushCallback(spy.Flush)

		q.Enqueue("campuslink://post/123")
		q.SetAuthReady(true)

		if got := spy.Count(); got != 0 {
			t.Fatalf("flush count = %d, want 0 before navigation mounts", got)
		}

		q.SetNavReady()
		if got := spy.Paths(); len(got) != 1 || got[0] != "/post/123" {
			t.Fatalf("flush paths = %v, want [/post/123] once both gates open", got)
		}
	})
}

func TestQueue_AuthRevokedKeepsPending(t *testing.T) {
	// Auth resolved signed-in before navigation mounted, then flipped to
	// signed-out: the link stays pending and flushes on the next signed-in
	// transition. Only Reset discards it.
	q, _ := newTestQueue()
	spy := &flushSpy{}
	q.SetFlushCallback(spy.Flush)

	q.Enqueue("campuslink://mentorship/5")
	q.SetAuthReady(true)
	q.SetAuthReady(false)
	q.SetNavReady()

	if got := spy.Count(); got != 0 {
		t.Fatalf("flush count = %d, want 0 after auth revoked", got)
	}

	q.SetAuthReady(true)
	if got := spy.Paths(); len(got) != 1 || got[0] != "/mentorship/5" {
		t.Fatalf("flush paths = %v, want [/mentorship/5]", got)
	}
}

func TestQueue_Reset(t *testing.T) {
	q, _ := newTestQueue()
	spy := &flushSpy{}
	q.SetFlushCallback(spy.Flush)

	q.Enqueue("campuslink://post/123")
	if p := q.Pending(); p == nil {
		t.Fatal("Pending() = nil, want a buffered link before reset")
	}

	q.Reset()
	if p := q.Pending(); p != nil {
		t.Fatalf("Pending() = %+v, want nil after reset", p)
	}
	if q.NavReady() {
		t.Error("NavReady() = true, want false after reset")
	}
	if got := q.AuthState(); got != AuthUnknown {
		t.Errorf("AuthState() = %v, want AuthUnknown after reset", got)
	}

	// No replay of pre-reset state with a fresh callback.
	fresh := &flushSpy{}
	q.SetFlushCallback(fresh.Flush)
	q.SetNavReady()
	q.SetAuthReady(true)

	if got := fresh.Count(); got != 0 {
		t.Fatalf("flush count = %d, want 0 after reset", got)
	}
}

func TestQueue_ResetClearsDedupMemory(t *testing.T) {
	q, _ := newTestQueue()
	spy := &flushSpy{}
	q.SetFlushCallback(spy.Flush)
	q.SetNavReady()
	q.SetAuthReady(true)

	q.Enqueue("campuslink://post/123")
	q.Reset()
	q.SetNavReady()
	q.SetAuthReady(true)

	// Same raw URL inside the window: without the reset it would be
	// deduped, after the reset it is a fresh event.
	q.Enqueue("campuslink://post/123")

	if got := spy.Count(); got != 2 {
		t.Fatalf("flush count = %d, want 2 (dedup memory cleared by reset)", got)
	}
}

func TestQueue_SessionIsolation(t *testing.T) {
	q, _ := newTestQueue()
	spy := &flushSpy{}
	q.SetFlushCallback(spy.Flush)

	// Session 1: link arrives while signed out.
	q.SetNavReady()
	q.SetAuthReady(false)
	q.Enqueue("campuslink://messages/old-identity")

	// Session boundary.
	q.Reset()

	// Session 2: fresh sign-in must not replay the session-1 link.
	q.SetNavReady()
	q.SetAuthReady(true)

	if got := spy.Count(); got != 0 {
		t.Fatalf("flush count = %d, want 0 (session-1 link leaked)", got)
	}
}

func TestQueue_SetFlushCallback(t *testing.T) {
	t.Run("replaces previous registration", func(t *testing.T) {
		q, _ := newTestQueue()
		old := &flushSpy{}
		q.SetFlushCallback(old.Flush)
		replacement := &flushSpy{}
		q.SetFlushCallback(replacement.Flush)

		q.SetNavReady()
		q.SetAuthReady(true)
		q.Enqueue("campuslink://post/3")

		if got := old.Count(); got != 0 {
			t.Errorf("old callback count = %d, want 0", got)
		}
		if got := replacement.Paths(); len(got) != 1 || got[0] != "/post/3" {
			t.Errorf("replacement paths = %v, want [/post/3]", got)
		}
	})

	t.Run("flushes a link already waiting on registration", func(t *testing.T) {
		q, _ := newTestQueue()
		q.Enqueue("campuslink://post/4")
		q.SetNavReady()
		q.SetAuthReady(true)

		spy := &flushSpy{}
		q.SetFlushCallback(spy.Flush)

		if got := spy.Paths(); len(got) != 1 || got[0] != "/post/4" {
			t.Fatalf("flush paths = %v, want [/post/4]", got)
		}
	})

	t.Run("re-registration does not re-trigger", func(t *testing.T) {
		q, _ := newTestQueue()
		spy := &flushSpy{}
		q.SetFlushCallback(spy.Flush)
		q.SetNavReady()
		q.SetAuthReady(true)
		q.Enqueue("campuslink://post/5")

		q.SetFlushCallback(spy.Flush)

		if got := spy.Count(); got != 1 {
			t.Fatalf("flush count = %d, want 1 (nothing pending on re-registration)", got)
		}
	})
}

func TestQueue_MalformedDropped(t *testing.T) {
	q, _ := newTestQueue()
	spy := &flushSpy{}
	q.SetFlushCallback(spy.Flush)
	q.SetNavReady()
	q.SetAuthReady(true)

	q.Enqueue("://nope")
	q.Enqueue("")

	if got := spy.Count(); got != 0 {
		t.Fatalf("flush count = %d, want 0 for malformed input", got)
	}
	if p := q.Pending(); p != nil {
		t.Fatalf("Pending() = %+v, want nil", p)
	}
}

func TestQueue_EventLog(t *testing.T) {
	log := events.NewLog(64)
	q, _ := newTestQueue(WithRecorder(log))
	spy := &flushSpy{}
	q.SetFlushCallback(spy.Flush)

	q.Enqueue("campuslink://post/123")
	q.Enqueue("campuslink://post/123")
	q.Enqueue("campuslink://post/123")
	q.SetNavReady()
	q.SetAuthReady(true)

	if got := len(log.RecentByType(events.LinkFlushed, 10)); got != 1 {
		t.Errorf("link.flushed events = %d, want 1", got)
	}
	if got := len(log.RecentByType(events.LinkDeduped, 10)); got != 2 {
		t.Errorf("link.deduped events = %d, want 2", got)
	}
	if got := len(log.RecentByType(events.LinkEnqueued, 10)); got != 1 {
		t.Errorf("link.enqueued events = %d, want 1", got)
	}
}
