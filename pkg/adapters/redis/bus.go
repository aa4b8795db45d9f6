package redis

import (
	"context"

	"github.com/activepieces/activepieces-sub025/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// Bus implements ports.MessageBus over Redis pub/sub. Each Subscribe
// opens its own PubSub connection; the handler runs on that
// connection's receive loop goroutine, so it must hand off promptly.
type Bus struct {
	client *backend.Client
}

// NewBus creates a Redis-backed bus from an existing client.
func NewBus(client *backend.Client) *Bus {
	return &Bus{client: client}
}

// Publish sends the payload to all current subscribers of the channel.
func (b *Bus) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.client.Publish(ctx, channel, payload).Err()
}

// Subscribe starts a receive loop for the channel. Close on the
// returned subscription stops it.
func (b *Bus) Subscribe(ctx context.Context, channel string, handler func(payload []byte)) (ports.Subscription, error) {
	pubsub := b.client.Subscribe(ctx, channel)

	// Force the subscription to be established before returning, so a
	// publish issued right after Subscribe is not lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	go func() {
		for msg := range pubsub.Channel() {
			handler([]byte(msg.Payload))
		}
	}()

	return pubsub, nil
}
