package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/activepieces/activepieces-sub025/internal/logging"
	"github.com/activepieces/activepieces-sub025/pkg/domain"
	"github.com/activepieces/activepieces-sub025/pkg/observability"
	"github.com/activepieces/activepieces-sub025/pkg/ports"
	"github.com/google/uuid"
)

// Gateway is the uniform entry point for "run this unit of work
// somewhere, give me a typed result". Every request/response-style
// background interaction flows through it: exactly one job is enqueued
// per call, and the response is correlated back via the Watcher.
type Gateway struct {
	queue   ports.Queue
	watcher *Watcher
	logger  *slog.Logger
}

// GatewayOption configures the Gateway.
type GatewayOption func(*Gateway)

// WithGatewayLogger configures a logger for the gateway.
func WithGatewayLogger(logger *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// NewGateway creates a gateway over the given queue and watcher.
func NewGateway(queue ports.Queue, watcher *Watcher, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		queue:   queue,
		watcher: watcher,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NodeID returns the identity this gateway stamps on submitted jobs.
func (g *Gateway) NodeID() string {
	return g.watcher.NodeID()
}

// Submit stamps the job with this node's identity, registers the waiter
// and enqueues the job. The returned Pending lets the caller choose its
// own wait policy. The waiter is registered before the enqueue so a
// fast worker cannot respond into a void; it is cancelled again if the
// enqueue fails, in which case the job was never submitted.
func (g *Gateway) Submit(ctx context.Context, job *domain.Job) (*Pending, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.RequestID == "" {
		job.RequestID = job.ID
	}
	job.OriginNodeID = g.watcher.NodeID()

	pending, err := g.watcher.Register(job.RequestID)
	if err != nil {
		return nil, err
	}

	if err := g.queue.Enqueue(ctx, job); err != nil {
		pending.Cancel()
		return nil, fmt.Errorf("failed to enqueue job %s: %w", job.ID, err)
	}

	observability.JobsEnqueued.WithLabelValues(string(job.Type)).Inc()
	g.logger.Debug("job submitted", "job_id", job.ID, "type", job.Type)
	return pending, nil
}

// SubmitDetached enqueues the job without registering a waiter. The
// worker's eventual response is published to this node and dropped
// there, which is the intended fate of fire-and-forget dispatch.
func (g *Gateway) SubmitDetached(ctx context.Context, job *domain.Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.RequestID == "" {
		job.RequestID = job.ID
	}
	job.OriginNodeID = g.watcher.NodeID()

	if err := g.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", job.ID, err)
	}

	observability.JobsEnqueued.WithLabelValues(string(job.Type)).Inc()
	g.logger.Debug("job submitted detached", "job_id", job.ID, "type", job.Type)
	return nil
}

// SubmitAndWait submits the job and waits for its response with no
// deadline. The wait is bounded only by ctx; the caller is typically
// itself inside a bounded outer operation such as an HTTP request.
// Retries are not performed here; retry policy belongs to the queue.
func (g *Gateway) SubmitAndWait(ctx context.Context, job *domain.Job) (json.RawMessage, error) {
	pending, err := g.Submit(ctx, job)
	if err != nil {
		return nil, err
	}
	return pending.Wait(ctx, WaitOptions{})
}
