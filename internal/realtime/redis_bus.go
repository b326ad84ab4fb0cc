package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// redisBus fans feed events out across instances via Redis pub/sub. Each
// instance publishes terminal updates to a shared channel and forwards
// everything it receives to its local hub, so SSE subscribers see changes
// regardless of which instance performed the write.
type redisBus struct {
	rdb     *goredis.Client
	hub     *Hub
	channel string
}

// NewRedisBus connects to Redis at addr and returns a Bus bound to the
// given hub and channel. The connection is verified with a short ping so a
// misconfigured address fails at startup, not at first publish.
func NewRedisBus(addr, channel string, hub *Hub) (Bus, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address required")
	}
	if channel == "" {
		channel = "lessons"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisBus{rdb: rdb, hub: hub, channel: channel}, nil
}

// Publish implements Bus. The event reaches the local hub through the
// forwarder like any other instance's events, keeping delivery uniform.
func (b *redisBus) Publish(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// Start implements Bus: it subscribes to the channel and forwards decoded
// events to the hub until ctx is canceled.
func (b *redisBus) Start(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, b.channel)

	// Ensures the subscription actually started.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					log.Warn().Err(err).Msg("feed: malformed bus payload")
					continue
				}
				b.hub.Broadcast(ev)
			}
		}
	}()
	return nil
}

// Close implements Bus.
func (b *redisBus) Close() error { return b.rdb.Close() }
