package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// RealtimeClient opens websocket channels to the Supabase Realtime server.
// The transport does not replay events missed while disconnected; callers
// that suspend and resume must refetch state through the cache layer.
type RealtimeClient struct {
	client  *Client
	nextRef int64
}

// Channel creates a channel builder for a logical topic name.
func (r *RealtimeClient) Channel(name string) *ChannelBuilder {
	return &ChannelBuilder{
		client: r,
		name:   name,
		events: make([]SubscriptionConfig, 0),
	}
}

func (r *RealtimeClient) ref() string {
	return strconv.FormatInt(atomic.AddInt64(&r.nextRef, 1), 10)
}

// ChannelBuilder accumulates the postgres_changes bindings for a topic
// before the websocket is dialed.
type ChannelBuilder struct {
	client      *RealtimeClient
	name        string
	events      []SubscriptionConfig
	handler     RealtimeHandler
	accessToken string
}

// On subscribes to a specific event type on a table.
func (b *ChannelBuilder) On(event RealtimeEventType, schema, table string, handler RealtimeHandler) *ChannelBuilder {
	b.events = append(b.events, SubscriptionConfig{
		Schema: schema,
		Table:  table,
		Event:  event,
	})
	b.handler = handler
	return b
}

// OnPostgresChanges subscribes to postgres changes with a full config.
func (b *ChannelBuilder) OnPostgresChanges(config SubscriptionConfig, handler RealtimeHandler) *ChannelBuilder {
	b.events = append(b.events, config)
	b.handler = handler
	return b
}

// WithToken attaches the user's access token so row-level security applies
// to the delivered changes.
func (b *ChannelBuilder) WithToken(token string) *ChannelBuilder {
	b.accessToken = token
	return b
}

// Subscribe dials the realtime server, joins the topic and starts the read
// and heartbeat pumps. The returned Channel is live until Close.
func (b *ChannelBuilder) Subscribe(ctx context.Context) (*Channel, error) {
	if len(b.events) == 0 {
		return nil, fmt.Errorf("channel %s has no event bindings", b.name)
	}

	dialURL := b.client.client.realtimeURL + "?vsn=1.0.0&apikey=" + url.QueryEscape(b.client.client.config.AnonKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, dialURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial realtime: %w", err)
	}

	ch := &Channel{
		client:  b.client,
		name:    b.name,
		topic:   "realtime:" + b.name,
		conn:    conn,
		handler: b.handler,
		done:    make(chan struct{}),
	}

	joinPayload := map[string]interface{}{
		"config": map[string]interface{}{
			"postgres_changes": b.events,
		},
	}
	if b.accessToken != "" {
		joinPayload["access_token"] = b.accessToken
	}

	if err := ch.send(phoenixMessage{
		Topic:   ch.topic,
		Event:   "phx_join",
		Payload: joinPayload,
		Ref:     b.client.ref(),
	}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("join %s: %w", ch.topic, err)
	}

	go ch.readPump()
	go ch.heartbeat(b.client.client.config.HeartbeatInterval)

	return ch, nil
}

// phoenixMessage is the wire frame of the realtime protocol.
type phoenixMessage struct {
	Topic   string      `json:"topic"`
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
	Ref     string      `json:"ref"`
}

// Channel is a live realtime subscription for one topic. It satisfies the
// registry's ChannelHandle interface.
type Channel struct {
	client  *RealtimeClient
	name    string
	topic   string
	conn    *websocket.Conn
	handler RealtimeHandler

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// Name returns the logical topic name.
func (c *Channel) Name() string {
	return c.name
}

// Close leaves the topic and tears down the websocket. Closing an
// already-closed channel is a no-op.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		// Best effort: the server drops the topic on socket close anyway.
		_ = c.send(phoenixMessage{
			Topic:   c.topic,
			Event:   "phx_leave",
			Payload: map[string]interface{}{},
			Ref:     c.client.ref(),
		})
		c.conn.Close()
	})
	return nil
}

func (c *Channel) send(msg phoenixMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(msg)
}

func (c *Channel) readPump() {
	for {
		var frame struct {
			Topic   string          `json:"topic"`
			Event   string          `json:"event"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := c.conn.ReadJSON(&frame); err != nil {
			select {
			case <-c.done:
			default:
				// The registry recreates the channel on the next resume;
				// a broken socket is not recoverable in place.
				c.Close()
			}
			return
		}

		if frame.Event != "postgres_changes" || c.handler == nil {
			continue
		}

		var payload struct {
			Data RealtimeEvent `json:"data"`
		}
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			continue
		}
		if payload.Data.Timestamp.IsZero() {
			payload.Data.Timestamp = time.Now().UTC()
		}
		c.handler(payload.Data)
	}
}

func (c *Channel) heartbeat(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.send(phoenixMessage{
				Topic:   "phoenix",
				Event:   "heartbeat",
				Payload: map[string]interface{}{},
				Ref:     c.client.ref(),
			}); err != nil {
				c.Close()
				return
			}
		}
	}
}
