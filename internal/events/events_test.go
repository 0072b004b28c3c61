package events

import (
	"sync"
	"testing"
)

func TestLog_RecordAndRecent(t *testing.T) {
	l := NewLog(4)

	l.Record(Event{Type: LinkEnqueued, Path: "/post/1"})
	l.Record(Event{Type: LinkFlushed, Path: "/post/1"})

	recent := l.Recent(10)
	if len(recent) != 2 {
		t.Fatalf("Recent(10) = %d events, want 2", len(recent))
	}
	if recent[0].Type != LinkFlushed {
		t.Errorf("newest event type = %s, want %s", recent[0].Type, LinkFlushed)
	}
	if recent[0].ID == "" || recent[0].Timestamp.IsZero() {
		t.Error("recorded event missing id or timestamp")
	}
}

func TestLog_WrapAround(t *testing.T) {
	l := NewLog(3)

	for _, p := range []string{"/a", "/b", "/c", "/d", "/e"} {
		l.Record(Event{Type: LinkEnqueued, Path: p})
	}

	if got := l.Count(); got != 3 {
		t.Fatalf("Count() = %d, want buffer size 3", got)
	}
	recent := l.Recent(3)
	if recent[0].Path != "/e" || recent[2].Path != "/c" {
		t.Errorf("Recent(3) paths = [%s %s %s], want [/e /d /c]",
			recent[0].Path, recent[1].Path, recent[2].Path)
	}
}

func TestLog_RecentByTypeAndTopic(t *testing.T) {
	l := NewLog(16)
	l.Record(Event{Type: ChannelSubscribed, Topic: "messages:u1"})
	l.Record(Event{Type: ChannelSubscribed, Topic: "posts:campus"})
	l.Record(Event{Type: ChannelClosed, Topic: "messages:u1"})

	if got := len(l.RecentByType(ChannelSubscribed, 10)); got != 2 {
		t.Errorf("RecentByType(subscribed) = %d, want 2", got)
	}
	if got := len(l.RecentByTopic("messages:u1", 10)); got != 2 {
		t.Errorf("RecentByTopic(messages:u1) = %d, want 2", got)
	}
}

func TestLog_Subscribe(t *testing.T) {
	l := NewLog(16)

	var mu sync.Mutex
	var seen []Type
	unsub := l.Subscribe(func(e Event) {
		mu.Lock()
		seen = append(seen, e.Type)
		mu.Unlock()
	})

	l.Record(Event{Type: QueueReset})
	unsub()
	l.Record(Event{Type: QueueReset})

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 {
		t.Fatalf("handler saw %d events, want 1 (unsubscribed before second)", len(seen))
	}
}

func TestLog_Clear(t *testing.T) {
	l := NewLog(8)
	l.Record(Event{Type: LinkEnqueued})
	l.Clear()

	if got := l.Count(); got != 0 {
		t.Errorf("Count() = %d, want 0 after Clear", got)
	}
	if got := l.Recent(5); got != nil {
		t.Errorf("Recent(5) = %v, want nil after Clear", got)
	}
}
