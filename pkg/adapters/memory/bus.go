// Package memory provides in-process implementations of the ports,
// used by tests and single-node runs.
package memory

import (
	"context"
	"sync"

	"github.com/activepieces/activepieces-sub025/pkg/ports"
)

// Bus implements ports.MessageBus in memory.
// Safe for concurrent use. Delivery is asynchronous: handlers run on
// their own goroutine, mirroring how a networked bus hands off from
// its subscriber loop.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]map[int]func([]byte)
	nextID      int
}

// NewBus creates a new in-memory bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string]map[int]func([]byte)),
	}
}

// Publish delivers the payload to every current subscriber of the
// channel. Publishing to a channel with no subscribers is a no-op.
func (b *Bus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	handlers := make([]func([]byte), 0, len(b.subscribers[channel]))
	for _, h := range b.subscribers[channel] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		data := make([]byte, len(payload))
		copy(data, payload)
		go h(data)
	}
	return nil
}

// Subscribe registers a handler for the channel.
func (b *Bus) Subscribe(ctx context.Context, channel string, handler func(payload []byte)) (ports.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscribers[channel] == nil {
		b.subscribers[channel] = make(map[int]func([]byte))
	}
	id := b.nextID
	b.nextID++
	b.subscribers[channel][id] = handler

	return &busSubscription{bus: b, channel: channel, id: id}, nil
}

type busSubscription struct {
	bus     *Bus
	channel string
	id      int
}

func (s *busSubscription) Close() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	delete(s.bus.subscribers[s.channel], s.id)
	return nil
}
