package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Bus fans room frames out to every process that may hold members of the
// room. Each process delivers to its own local connections.
type Bus interface {
	Publish(ctx context.Context, room, event string, frame []byte) error
}

// LocalBus delivers straight to the hub of a single process.
type LocalBus struct {
	hub *Hub
}

func NewLocalBus(hub *Hub) *LocalBus {
	return &LocalBus{hub: hub}
}

func (b *LocalBus) Publish(ctx context.Context, room, event string, frame []byte) error {
	b.hub.deliver(ctx, room, event, frame)
	return nil
}

type busMessage struct {
	Event string          `json:"e"`
	Frame json.RawMessage `json:"f"`
}

// RedisBus publishes on <prefix>:room:<room> and delivers messages received
// on the pattern subscription to the local hub.
type RedisBus struct {
	client redis.UniversalClient
	prefix string
	hub    *Hub
	logger *slog.Logger
}

func NewRedisBus(client redis.UniversalClient, prefix string, hub *Hub, logger *slog.Logger) *RedisBus {
	if prefix == "" {
		prefix = "live-voting"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisBus{client: client, prefix: prefix + ":room:", hub: hub, logger: logger}
}

func (b *RedisBus) Channel(room string) string {
	return b.prefix + room
}

func (b *RedisBus) Publish(ctx context.Context, room, event string, frame []byte) error {
	msg, err := json.Marshal(busMessage{Event: event, Frame: frame})
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.Channel(room), msg).Err()
}

// Run subscribes and delivers until ctx is cancelled. ready, when non-nil, is
// closed once the subscription is confirmed.
func (b *RedisBus) Run(ctx context.Context, ready chan<- struct{}) error {
	sub := b.client.PSubscribe(ctx, b.prefix+"*")
	defer func() { _ = sub.Close() }()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	if ready != nil {
		close(ready)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg busMessage
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				b.logger.WarnContext(ctx, "discarding malformed bus message", "channel", m.Channel, "error", err)
				continue
			}
			b.hub.deliver(ctx, strings.TrimPrefix(m.Channel, b.prefix), msg.Event, msg.Frame)
		}
	}
}
