// Package nats provides a MessageBus over core NATS subjects.
// Per-node response channels map one-to-one onto subjects, which gives
// the same "only the owning node's subscriber sees it" semantics as
// Redis pub/sub with lower fan-out cost across a cluster.
package nats

import (
	"context"

	"github.com/activepieces/activepieces-sub025/pkg/ports"
	"github.com/nats-io/nats.go"
)

// Bus implements ports.MessageBus over a NATS connection.
type Bus struct {
	conn *nats.Conn
}

// NewBus creates a bus from an existing connection. The caller owns the
// connection's lifecycle.
func NewBus(conn *nats.Conn) *Bus {
	return &Bus{conn: conn}
}

// Connect dials the NATS server and returns a bus owning the
// connection.
func Connect(url string) (*Bus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	return &Bus{conn: conn}, nil
}

// Publish sends the payload on the subject named by channel.
func (b *Bus) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.conn.Publish(channel, payload)
}

// Subscribe delivers messages for the subject to the handler. NATS runs
// handlers on its own delivery goroutines, which satisfies the bus
// hand-off requirement directly.
func (b *Bus) Subscribe(ctx context.Context, channel string, handler func(payload []byte)) (ports.Subscription, error) {
	sub, err := b.conn.Subscribe(channel, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return nil, err
	}
	return &subscription{sub: sub}, nil
}

// Close drains the underlying connection.
func (b *Bus) Close() error {
	return b.conn.Drain()
}

type subscription struct {
	sub *nats.Subscription
}

func (s *subscription) Close() error {
	return s.sub.Unsubscribe()
}
