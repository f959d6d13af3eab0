package event

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisBus fans room events out over Redis Pub/Sub so that every process
// in a multi-node deployment sees them, keyed by room code.
type RedisBus struct {
	client *redis.Client
	prefix string
	logger zerolog.Logger
}

var _ Bus = (*RedisBus)(nil)

// NewRedisBus creates a Redis-backed bus. channelPrefix defaults to
// "room:events".
func NewRedisBus(client *redis.Client, channelPrefix string, logger zerolog.Logger) *RedisBus {
	if channelPrefix == "" {
		channelPrefix = "room:events"
	}
	return &RedisBus{
		client: client,
		prefix: channelPrefix,
		logger: logger.With().Str("component", "event_bus").Logger(),
	}
}

func (b *RedisBus) channel(roomCode string) string {
	return b.prefix + ":" + roomCode
}

// Publish serializes evt and fires it at the room's channel. Failures are
// logged, never propagated to the mutation path.
func (b *RedisBus) Publish(ctx context.Context, roomCode string, evt Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		b.logger.Warn().Err(err).Str("room_code", roomCode).Msg("failed to encode event")
		return
	}
	if err := b.client.Publish(ctx, b.channel(roomCode), data).Err(); err != nil {
		b.logger.Warn().Err(err).Str("room_code", roomCode).Msg("failed to publish event")
	}
}

// Subscribe attaches to the room's channel and decodes events onto the
// subscription until it is closed.
func (b *RedisBus) Subscribe(ctx context.Context, roomCode string) (*Subscription, error) {
	pubsub := b.client.Subscribe(ctx, b.channel(roomCode))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	sub := &Subscription{ch: make(chan Event, subscriptionBuffer)}
	sub.cancel = func() { pubsub.Close() }

	go func() {
		defer close(sub.ch)
		for msg := range pubsub.Channel() {
			var evt Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				b.logger.Warn().Err(err).Str("room_code", roomCode).Msg("failed to decode event payload")
				continue
			}
			select {
			case sub.ch <- evt:
			default:
				b.logger.Warn().Str("room_code", roomCode).Msg("subscriber buffer full, event dropped")
			}
		}
	}()

	return sub, nil
}
