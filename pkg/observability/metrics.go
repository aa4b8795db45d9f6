// Package observability holds the process-wide prometheus collectors.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PendingWaiters tracks in-flight response registrations on this node.
	PendingWaiters = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dispatch_pending_waiters",
		Help: "Number of requests currently waiting for an engine response.",
	})

	// JobsEnqueued counts jobs placed on the dispatch queue by type.
	JobsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_jobs_enqueued_total",
		Help: "Jobs enqueued on the dispatch queue.",
	}, []string{"type"})

	// WebhookRequests counts inbound webhook calls by terminal outcome.
	WebhookRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_requests_total",
		Help: "Inbound webhook calls by outcome.",
	}, []string{"outcome"})

	// ActiveSessions tracks protocol sessions owned by this node.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mcp_active_sessions",
		Help: "Protocol sessions currently owned by this node.",
	})

	// SessionsEvicted counts idle-TTL evictions.
	SessionsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mcp_sessions_evicted_total",
		Help: "Protocol sessions evicted after idle TTL.",
	})

	// RelayedMessages counts session messages forwarded to another node.
	RelayedMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mcp_relayed_messages_total",
		Help: "Session messages relayed to their owning node.",
	})
)
