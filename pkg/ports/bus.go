package ports

import "context"

// Subscription is a live channel subscription. Close tears it down.
type Subscription interface {
	Close() error
}

// MessageBus is a publish/subscribe transport addressable by channel
// name. A published message reaches every current subscriber of the
// channel; there is no replay for late subscribers.
//
// Handlers must not block: implementations deliver from a shared
// subscriber loop and hand off to waiters, they never run caller logic
// inline on it.
type MessageBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string, handler func(payload []byte)) (Subscription, error)
}
