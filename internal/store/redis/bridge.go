// Package redis bridges swarm-published state updates into the relay. The
// scanning swarm publishes update JSON to a Redis channel; the bridge
// subscribes and feeds each payload into the hub's ingest path. This lets a
// remote swarm, or several relay replicas, feed one dashboard.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DefaultChannel is the channel swarm processes publish updates to.
const DefaultChannel = "scanwatch:updates"

// PubSub wraps the Redis client used by the update bridge.
type PubSub struct {
	client *redis.Client
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, addr, password string, db int) (*PubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis.New: ping: %w", err)
	}

	return &PubSub{client: client}, nil
}

func (ps *PubSub) Close() error {
	if err := ps.client.Close(); err != nil {
		return fmt.Errorf("redis.PubSub.Close: %w", err)
	}
	return nil
}

// Publish sends an update payload to a channel. Used by swarm-side
// processes publishing into the dashboard.
func (ps *PubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := ps.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis.PubSub.Publish: %w", err)
	}
	return nil
}

// Subscribe returns a channel of raw payloads published to the given Redis
// channel. The returned cleanup closes the subscription; the channel closes
// when ctx is cancelled.
func (ps *PubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error) {
	sub := ps.client.Subscribe(ctx, channel)

	// Wait for subscription confirmation.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("redis.PubSub.Subscribe: receive confirmation: %w", err)
	}

	out := make(chan []byte, 64)
	redisCh := sub.Channel()

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-redisCh:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	cleanup := func() {
		_ = sub.Close()
	}

	return out, cleanup, nil
}

// Ingester accepts one raw update payload; malformed payloads return an
// error and are dropped.
type Ingester func(raw []byte) error

// Bridge pumps payloads from a Redis channel into an Ingester.
type Bridge struct {
	pubsub  *PubSub
	channel string
	ingest  Ingester
}

// NewBridge creates a bridge. An empty channel selects DefaultChannel.
func NewBridge(pubsub *PubSub, channel string, ingest Ingester) *Bridge {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Bridge{pubsub: pubsub, channel: channel, ingest: ingest}
}

// Run consumes the channel until ctx is cancelled. A malformed payload is
// logged and skipped; it never stops the bridge.
func (b *Bridge) Run(ctx context.Context) error {
	messages, cleanup, err := b.pubsub.Subscribe(ctx, b.channel)
	if err != nil {
		return fmt.Errorf("redis.Bridge.Run: %w", err)
	}
	defer cleanup()

	log.Info().Str("channel", b.channel).Msg("redis update bridge attached")

	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-messages:
			if !ok {
				return nil
			}
			if err := b.ingest(raw); err != nil {
				log.Warn().Err(err).Msg("dropped redis update payload")
			}
		}
	}
}
