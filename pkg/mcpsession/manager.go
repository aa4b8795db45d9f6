// Package mcpsession makes stateful protocol sessions sticky to the
// node that created them. Session ownership lives in a shared
// key-value store; requests landing on the wrong node are relayed to
// the owner over the message bus and answered through the same
// response-correlation machinery the dispatch layer uses.
package mcpsession

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/activepieces/activepieces-sub025/internal/logging"
	"github.com/activepieces/activepieces-sub025/pkg/domain"
	"github.com/activepieces/activepieces-sub025/pkg/engine"
	"github.com/activepieces/activepieces-sub025/pkg/observability"
	"github.com/activepieces/activepieces-sub025/pkg/ports"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

// HeaderSessionID carries the session id on the transport surface.
const HeaderSessionID = "Mcp-Session-Id"

const ownershipPrefix = "session:"

// DefaultTTL is the idle period after which a session is evicted.
const DefaultTTL = 30 * time.Minute

// DefaultRelayTimeout bounds a cross-node relay round trip.
const DefaultRelayTimeout = 30 * time.Second

// RelayChannel derives the bus channel a node receives relayed session
// messages on.
func RelayChannel(nodeID string) string {
	return "mcp.relay." + nodeID
}

// NoSessionError is the protocol-level error object returned when a
// request names a session no node knows about.
func NoSessionError() json.RawMessage {
	return json.RawMessage(`{"jsonrpc":"2.0","error":{"code":-32000,"message":"Bad Request: No valid session ID provided"},"id":null}`)
}

// InternalError is the protocol-level error object for a failure on a
// session that does exist.
func InternalError() json.RawMessage {
	return json.RawMessage(`{"jsonrpc":"2.0","error":{"code":-32603,"message":"Internal error"},"id":null}`)
}

// ServerHandle is the protocol server a session fronts.
// *server.MCPServer satisfies it.
type ServerHandle interface {
	HandleMessage(ctx context.Context, message json.RawMessage) mcp.JSONRPCMessage
}

// Session is a sticky protocol session owned by this node. It doubles
// as the transport handle callers use to answer requests.
type Session struct {
	ID string

	server  ServerHandle
	manager *Manager

	mu           sync.Mutex
	lastActivity time.Time
	timer        *time.Timer
	closed       bool
}

// Apply feeds a raw protocol message to the session's server and
// returns the marshaled response. Notifications produce a nil response.
// Messages within one session are serialized.
func (s *Session) Apply(ctx context.Context, message json.RawMessage) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, domain.ErrSessionNotFound
	}

	result := s.server.HandleMessage(ctx, message)
	if result == nil {
		return nil, nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal protocol response: %w", err)
	}
	return data, nil
}

// touch refreshes the activity clock and reschedules eviction.
// Cancel-and-reschedule, never stacked timers.
func (s *Session) touch(ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.lastActivity = time.Now()
	s.timer.Reset(ttl)
}

// Manager owns this node's session table and the relay subscription.
type Manager struct {
	nodeID  string
	kv      ports.KeyValueStore
	bus     ports.MessageBus
	watcher *engine.Watcher
	logger  *slog.Logger

	ttl          time.Duration
	relayTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
	relaySub ports.Subscription
}

// ManagerOption configures the Manager.
type ManagerOption func(*Manager)

// WithTTL sets the idle eviction period.
func WithTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		m.ttl = ttl
	}
}

// WithRelayTimeout bounds cross-node relay round trips.
func WithRelayTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.relayTimeout = d
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a session manager bound to the watcher's node
// identity.
func NewManager(kv ports.KeyValueStore, bus ports.MessageBus, watcher *engine.Watcher, opts ...ManagerOption) *Manager {
	m := &Manager{
		nodeID:       watcher.NodeID(),
		kv:           kv,
		bus:          bus,
		watcher:      watcher,
		logger:       logging.NewNop(),
		ttl:          DefaultTTL,
		relayTimeout: DefaultRelayTimeout,
		sessions:     make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NodeID returns the node identity sessions created here are bound to.
func (m *Manager) NodeID() string {
	return m.nodeID
}

// Start subscribes to this node's relay channel.
func (m *Manager) Start(ctx context.Context) error {
	sub, err := m.bus.Subscribe(ctx, RelayChannel(m.nodeID), m.handleRelay)
	if err != nil {
		return fmt.Errorf("failed to subscribe to relay channel: %w", err)
	}
	m.mu.Lock()
	m.relaySub = sub
	m.mu.Unlock()
	return nil
}

// Close drops the relay subscription and removes every local session,
// including its ownership record.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	sub := m.relaySub
	m.relaySub = nil
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.Remove(ctx, id); err != nil {
			m.logger.Warn("failed to remove session at shutdown", "session_id", id, "err", err)
		}
	}
	if sub != nil {
		return sub.Close()
	}
	return nil
}

// Create generates a session id, records ownership in the shared store,
// and installs the session locally. The ownership record is written
// before the session is returned so relays never race a missing owner.
func (m *Manager) Create(ctx context.Context, server ServerHandle) (*Session, error) {
	id := uuid.NewString()

	if err := m.kv.Put(ctx, ownershipPrefix+id, m.nodeID); err != nil {
		return nil, fmt.Errorf("failed to record session ownership: %w", err)
	}

	sess := &Session{
		ID:           id,
		server:       server,
		manager:      m,
		lastActivity: time.Now(),
	}
	sess.timer = time.AfterFunc(m.ttl, func() {
		m.maybeEvict(id)
	})

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()
	observability.ActiveSessions.Inc()

	m.logger.Debug("session created", "session_id", id)
	return sess, nil
}

// Get returns the locally owned session, refreshing its activity clock
// on a hit.
func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return nil, false
	}
	sess.touch(m.ttl)
	return sess, true
}

// Remove closes and deletes a session, local record and ownership
// record both. Removing an absent session is a no-op.
func (m *Manager) Remove(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()

	if !ok {
		return nil
	}

	sess.mu.Lock()
	sess.closed = true
	sess.timer.Stop()
	sess.mu.Unlock()
	observability.ActiveSessions.Dec()

	if closer, ok := sess.server.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			m.logger.Warn("session server close failed", "session_id", sessionID, "err", err)
		}
	}

	if err := m.kv.Delete(ctx, ownershipPrefix+sessionID); err != nil {
		return fmt.Errorf("failed to delete session ownership: %w", err)
	}
	m.logger.Debug("session removed", "session_id", sessionID)
	return nil
}

// maybeEvict fires on the session timer. A late firing can occur when
// activity refreshed lastActivity moments before; in that case the
// timer is merely rescheduled for the remainder.
func (m *Manager) maybeEvict(sessionID string) {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return
	}

	sess.mu.Lock()
	idle := time.Since(sess.lastActivity)
	if idle < m.ttl {
		sess.timer.Reset(m.ttl - idle)
		sess.mu.Unlock()
		return
	}
	sess.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Remove(ctx, sessionID); err != nil {
		m.logger.Warn("session eviction incomplete", "session_id", sessionID, "err", err)
		return
	}
	observability.SessionsEvicted.Inc()
	m.logger.Info("session evicted after idle TTL", "session_id", sessionID, "idle", idle)
}

// relayRequest is the wire shape of a forwarded session message.
type relayRequest struct {
	SessionID   string          `json:"sessionId"`
	RequestID   string          `json:"requestId"`
	ReplyNodeID string          `json:"replyNodeId"`
	Message     json.RawMessage `json:"message"`
}

// Route applies a message to the named session wherever it lives:
// locally when this node owns it, otherwise relayed to the owner found
// in the shared store. Returns domain.ErrSessionNotFound when no owner
// record exists.
func (m *Manager) Route(ctx context.Context, sessionID string, message json.RawMessage) (json.RawMessage, error) {
	if sess, ok := m.Get(sessionID); ok {
		return sess.Apply(ctx, message)
	}

	owner, err := m.kv.Get(ctx, ownershipPrefix+sessionID)
	if err != nil {
		if err == domain.ErrKeyNotFound {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to resolve session owner: %w", err)
	}

	requestID := uuid.NewString()
	pending, err := m.watcher.Register(requestID)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(relayRequest{
		SessionID:   sessionID,
		RequestID:   requestID,
		ReplyNodeID: m.nodeID,
		Message:     message,
	})
	if err != nil {
		pending.Cancel()
		return nil, fmt.Errorf("failed to marshal relay request: %w", err)
	}

	if err := m.bus.Publish(ctx, RelayChannel(owner), payload); err != nil {
		pending.Cancel()
		return nil, fmt.Errorf("failed to relay to session owner: %w", err)
	}
	observability.RelayedMessages.Inc()

	resp, err := pending.Wait(ctx, engine.WaitOptions{Timeout: m.relayTimeout})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, domain.ErrRelayTimeout
	}
	return resp, nil
}

// handleRelay runs on the bus subscriber loop; the message is handed
// off so session work never blocks it.
func (m *Manager) handleRelay(payload []byte) {
	var req relayRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		m.logger.Warn("dropping malformed relay request", "err", err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.relayTimeout)
		defer cancel()

		var resp json.RawMessage
		if sess, ok := m.Get(req.SessionID); ok {
			var err error
			resp, err = sess.Apply(ctx, req.Message)
			if err != nil {
				// The session exists; this is not a missing-session case.
				m.logger.Error("relayed message failed", "session_id", req.SessionID, "err", err)
				resp = InternalError()
			}
		} else {
			// Stale ownership record: the session died here already.
			resp = NoSessionError()
		}

		if resp == nil {
			// Notification. Relayed notifications still get an empty
			// reply so the requester is not left waiting.
			resp = json.RawMessage(`null`)
		}
		if err := m.watcher.Publish(ctx, req.RequestID, req.ReplyNodeID, resp); err != nil {
			m.logger.Error("failed to answer relay", "request_id", req.RequestID, "err", err)
		}
	}()
}
