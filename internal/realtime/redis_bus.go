package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"golang.org/x/exp/slog"
)

// RedisBus fans events out to every instance through Redis pub/sub. Each
// instance forwards received events to its local hub.
type RedisBus struct {
	rdb     redis.UniversalClient
	channel string
	log     *slog.Logger
}

// NewRedisBus creates a RedisBus on channel
func NewRedisBus(rdb redis.UniversalClient, channel string, log *slog.Logger) *RedisBus {
	if channel == "" {
		channel = "calmcoins:realtime"
	}
	if log == nil {
		log = slog.Default()
	}
	return &RedisBus{rdb: rdb, channel: channel, log: log.With("service", "RedisBus")}
}

// Publish implements Publisher
func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// StartForwarder subscribes to the channel and hands every event to local
// until ctx is done. It returns once the subscription is confirmed.
func (b *RedisBus) StartForwarder(ctx context.Context, local Publisher) error {
	if local == nil {
		return errors.New("local publisher required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					b.log.Warn("Bad realtime payload", "error", err)
					continue
				}
				if err := local.Publish(ctx, ev); err != nil {
					b.log.Warn("Failed to forward realtime event", "event", ev.Name, "userId", ev.UserID, "error", err)
				}
			}
		}
	}()

	return nil
}
