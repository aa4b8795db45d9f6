package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/activepieces/activepieces-sub025/internal/logging"
	"github.com/activepieces/activepieces-sub025/pkg/domain"
	"github.com/activepieces/activepieces-sub025/pkg/observability"
	"github.com/activepieces/activepieces-sub025/pkg/ports"
	"github.com/google/uuid"
)

// ResponseChannel derives the private response channel name for a node.
// Workers publish here to "call home" to the exact node that is waiting,
// without any shared waiter table.
func ResponseChannel(nodeID string) string {
	return "engine.response." + nodeID
}

// Watcher is the process-local registry of pending waiters, keyed by
// request id. It subscribes once, for the process lifetime, to this
// node's own response channel and resolves waiters as envelopes arrive.
type Watcher struct {
	nodeID string
	bus    ports.MessageBus
	logger *slog.Logger

	mu      sync.Mutex
	waiters map[string]chan json.RawMessage
	closed  bool
	sub     ports.Subscription
}

// WatcherOption configures the Watcher.
type WatcherOption func(*Watcher)

// WithLogger configures a logger for the watcher.
func WithLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithNodeID overrides the generated node id. Useful in tests where a
// deterministic channel name is needed.
func WithNodeID(nodeID string) WatcherOption {
	return func(w *Watcher) {
		w.nodeID = nodeID
	}
}

// NewWatcher creates a watcher with a freshly generated node id.
// Call Start before registering waiters.
func NewWatcher(bus ports.MessageBus, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		nodeID:  uuid.NewString(),
		bus:     bus,
		logger:  logging.NewNop(),
		waiters: make(map[string]chan json.RawMessage),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// NodeID returns this node's identifier.
func (w *Watcher) NodeID() string {
	return w.nodeID
}

// Start subscribes to this node's response channel. It must be called
// exactly once, at process start.
func (w *Watcher) Start(ctx context.Context) error {
	sub, err := w.bus.Subscribe(ctx, ResponseChannel(w.nodeID), w.deliver)
	if err != nil {
		return fmt.Errorf("failed to subscribe to response channel: %w", err)
	}
	w.mu.Lock()
	w.sub = sub
	w.mu.Unlock()
	w.logger.Debug("response watcher started", "node_id", w.nodeID)
	return nil
}

// Close tears down the subscription and fails all outstanding waiters
// with ErrWatcherClosed.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	sub := w.sub
	for id, ch := range w.waiters {
		close(ch)
		delete(w.waiters, id)
		observability.PendingWaiters.Dec()
	}
	w.mu.Unlock()

	if sub != nil {
		return sub.Close()
	}
	return nil
}

// deliver runs on the bus subscriber loop. It only moves the payload to
// the waiter's channel; caller logic resumes on the waiter's goroutine.
func (w *Watcher) deliver(payload []byte) {
	var env domain.ResponseEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		w.logger.Warn("dropping malformed response envelope", "err", err)
		return
	}

	w.mu.Lock()
	ch, ok := w.waiters[env.RequestID]
	if ok {
		delete(w.waiters, env.RequestID)
		observability.PendingWaiters.Dec()
	}
	w.mu.Unlock()

	if !ok {
		// Abandoned or duplicate response. Dropping it is correct: the
		// waiter either timed out already or was resolved first.
		w.logger.Debug("response with no waiter dropped", "request_id", env.RequestID)
		return
	}

	ch <- env.Response
}

// Pending is a registered waiter. Exactly one of Wait or Cancel must be
// called.
type Pending struct {
	requestID string
	ch        chan json.RawMessage
	watcher   *Watcher
}

// WaitOptions bound a single wait.
type WaitOptions struct {
	// Timeout caps the wait; zero means no deadline (the wait is then
	// bounded only by ctx).
	Timeout time.Duration

	// Default is the value the wait resolves with when Timeout fires.
	Default json.RawMessage
}

// Register inserts a waiter for requestID. At most one waiter may exist
// per request id per node.
func (w *Watcher) Register(requestID string) (*Pending, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, domain.ErrWatcherClosed
	}
	if _, exists := w.waiters[requestID]; exists {
		return nil, domain.ErrDuplicateWaiter
	}

	ch := make(chan json.RawMessage, 1)
	w.waiters[requestID] = ch
	observability.PendingWaiters.Inc()

	return &Pending{requestID: requestID, ch: ch, watcher: w}, nil
}

// Wait blocks until the response arrives, the timeout fires, or ctx is
// done. A timeout is not an error: it resolves with opts.Default.
func (p *Pending) Wait(ctx context.Context, opts WaitOptions) (json.RawMessage, error) {
	defer p.Cancel()

	var timeout <-chan time.Time
	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case resp, ok := <-p.ch:
		if !ok {
			return nil, domain.ErrWatcherClosed
		}
		return resp, nil
	case <-timeout:
		return opts.Default, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel removes the waiter if it is still registered. Safe to call
// after resolution; idempotent.
func (p *Pending) Cancel() {
	p.watcher.mu.Lock()
	defer p.watcher.mu.Unlock()

	if _, ok := p.watcher.waiters[p.requestID]; ok {
		delete(p.watcher.waiters, p.requestID)
		observability.PendingWaiters.Dec()
	}
}

// RegisterAndWait is the one-shot form of Register + Wait.
func (w *Watcher) RegisterAndWait(ctx context.Context, requestID string, opts WaitOptions) (json.RawMessage, error) {
	pending, err := w.Register(requestID)
	if err != nil {
		return nil, err
	}
	return pending.Wait(ctx, opts)
}

// Publish sends a response envelope to the private channel of
// targetNodeID. Any node may call this; only the target's subscriber
// will see it.
func (w *Watcher) Publish(ctx context.Context, requestID, targetNodeID string, response json.RawMessage) error {
	data, err := json.Marshal(domain.ResponseEnvelope{
		RequestID: requestID,
		Response:  response,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal response envelope: %w", err)
	}
	return w.bus.Publish(ctx, ResponseChannel(targetNodeID), data)
}
