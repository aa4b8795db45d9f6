// Package webhook turns inbound webhook calls into queued or blocking
// flow executions while enforcing flow lifecycle rules.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/activepieces/activepieces-sub025/internal/logging"
	"github.com/activepieces/activepieces-sub025/pkg/domain"
	"github.com/activepieces/activepieces-sub025/pkg/engine"
	"github.com/activepieces/activepieces-sub025/pkg/observability"
	"github.com/activepieces/activepieces-sub025/pkg/ports"
	"github.com/google/uuid"
)

// RequestIDHeader echoes the correlation id on every webhook response.
const RequestIDHeader = "X-Webhook-Request-Id"

// DefaultTimeout bounds the synchronous path when no timeout is
// configured.
const DefaultTimeout = 30 * time.Second

// Coordinator resolves the target flow, gates on its lifecycle state,
// short-circuits handshakes, and dispatches execution sync or async.
type Coordinator struct {
	flows   ports.FlowService
	samples ports.SampleStore
	gateway *engine.Gateway
	locker  ports.DistributedLocker
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures the Coordinator.
type Option func(*Coordinator)

// WithTimeout bounds the synchronous webhook wait.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.timeout = d
	}
}

// WithLogger configures a logger for the Coordinator.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithLocker makes sample capture single-writer across replicas.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(c *Coordinator) {
		c.locker = locker
	}
}

// NewCoordinator creates a Coordinator over the flow service, sample
// store and interaction gateway.
func NewCoordinator(flows ports.FlowService, samples ports.SampleStore, gateway *engine.Gateway, opts ...Option) *Coordinator {
	c := &Coordinator{
		flows:   flows,
		samples: samples,
		gateway: gateway,
		timeout: DefaultTimeout,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handle runs the per-call state machine. It always produces a terminal
// result; post-dispatch failures are encoded in the result body, never
// surfaced as transport errors.
func (c *Coordinator) Handle(ctx context.Context, flowID string, payload *domain.WebhookPayload, opts domain.WebhookOptions) *domain.WebhookResult {
	requestID := uuid.NewString()

	result := c.handle(ctx, requestID, flowID, payload, opts)
	if result.Headers == nil {
		result.Headers = make(map[string]string)
	}
	result.Headers[RequestIDHeader] = requestID
	return result
}

func (c *Coordinator) handle(ctx context.Context, requestID, flowID string, payload *domain.WebhookPayload, opts domain.WebhookOptions) *domain.WebhookResult {
	flow, err := c.flows.GetFlow(ctx, flowID)
	if err != nil {
		if errors.Is(err, domain.ErrFlowNotFound) {
			// The flow's execution context no longer exists.
			observability.WebhookRequests.WithLabelValues("gone").Inc()
			return &domain.WebhookResult{Status: http.StatusGone}
		}
		c.logger.Error("flow lookup failed", "flow_id", flowID, "err", err)
		observability.WebhookRequests.WithLabelValues("error").Inc()
		return &domain.WebhookResult{Status: http.StatusInternalServerError}
	}

	versionID := flow.ResolveVersion(opts.VersionPolicy)

	// The route exists, the automation is just off. Sample capture mode
	// may still run a disabled flow, but only against the testing
	// version; the published version never runs while the flow is off.
	if flow.Status == domain.FlowDisabled {
		if !opts.SaveSampleData {
			observability.WebhookRequests.WithLabelValues("disabled").Inc()
			return &domain.WebhookResult{Status: http.StatusNotFound}
		}
		versionID = flow.LatestVersionID
	}

	if IsHandshake(payload, flow.Handshake) {
		return c.handleHandshake(ctx, requestID, flow, versionID, payload)
	}

	if opts.SaveSampleData {
		if result := c.captureSample(ctx, flow, versionID, payload); result != nil {
			return result
		}
		if !opts.Execute {
			observability.WebhookRequests.WithLabelValues("sample").Inc()
			return &domain.WebhookResult{Status: http.StatusOK}
		}
	}

	rawPayload, err := json.Marshal(payload)
	if err != nil {
		observability.WebhookRequests.WithLabelValues("error").Inc()
		return &domain.WebhookResult{Status: http.StatusInternalServerError}
	}

	job := &domain.Job{
		ID:            requestID,
		Type:          domain.JobTypeExecuteWebhook,
		RequestID:     requestID,
		FlowID:        flow.ID,
		FlowVersionID: versionID,
		Payload:       rawPayload,
	}

	if opts.Async {
		if err := c.gateway.SubmitDetached(ctx, job); err != nil {
			c.logger.Error("async dispatch failed", "flow_id", flowID, "err", err)
			observability.WebhookRequests.WithLabelValues("error").Inc()
			return &domain.WebhookResult{Status: http.StatusInternalServerError}
		}
		observability.WebhookRequests.WithLabelValues("async").Inc()
		return &domain.WebhookResult{Status: http.StatusOK}
	}

	return c.handleSync(ctx, job)
}

// handleSync blocks for the execution's HTTP-shaped result, bounded by
// the configured webhook timeout. A timeout resolves as 204 No Content.
func (c *Coordinator) handleSync(ctx context.Context, job *domain.Job) *domain.WebhookResult {
	job.SynchronousHandlerID = c.gateway.NodeID()

	pending, err := c.gateway.Submit(ctx, job)
	if err != nil {
		c.logger.Error("sync dispatch failed", "flow_id", job.FlowID, "err", err)
		observability.WebhookRequests.WithLabelValues("error").Inc()
		return &domain.WebhookResult{Status: http.StatusInternalServerError}
	}

	timeoutResult := domain.WebhookResult{Status: http.StatusNoContent}
	raw, err := pending.Wait(ctx, engine.WaitOptions{
		Timeout: c.timeout,
		Default: timeoutResult.Marshal(),
	})
	if err != nil {
		observability.WebhookRequests.WithLabelValues("error").Inc()
		return &domain.WebhookResult{Status: http.StatusInternalServerError}
	}

	var result domain.WebhookResult
	if err := json.Unmarshal(raw, &result); err != nil {
		c.logger.Error("malformed execution result", "request_id", job.RequestID, "err", err)
		observability.WebhookRequests.WithLabelValues("error").Inc()
		return &domain.WebhookResult{Status: http.StatusInternalServerError}
	}

	observability.WebhookRequests.WithLabelValues("sync").Inc()
	return &result
}

// handleHandshake runs the trigger's challenge-response path through
// the gateway and returns its result verbatim. No execution job is ever
// enqueued for a handshake request.
func (c *Coordinator) handleHandshake(ctx context.Context, requestID string, flow *domain.Flow, versionID string, payload *domain.WebhookPayload) *domain.WebhookResult {
	rawPayload, err := json.Marshal(payload)
	if err != nil {
		observability.WebhookRequests.WithLabelValues("error").Inc()
		return &domain.WebhookResult{Status: http.StatusInternalServerError}
	}

	raw, err := c.gateway.SubmitAndWait(ctx, &domain.Job{
		ID:            requestID,
		Type:          domain.JobTypeTriggerHook,
		RequestID:     requestID,
		FlowID:        flow.ID,
		FlowVersionID: versionID,
		Payload:       rawPayload,
	})
	if err != nil {
		c.logger.Error("handshake dispatch failed", "flow_id", flow.ID, "err", err)
		observability.WebhookRequests.WithLabelValues("error").Inc()
		return &domain.WebhookResult{Status: http.StatusInternalServerError}
	}

	var result domain.WebhookResult
	if err := json.Unmarshal(raw, &result); err != nil {
		observability.WebhookRequests.WithLabelValues("error").Inc()
		return &domain.WebhookResult{Status: http.StatusInternalServerError}
	}

	observability.WebhookRequests.WithLabelValues("handshake").Inc()
	return &result
}

// captureSample persists the raw payload and disables the simulation
// flag so the next call is not captured again. Returns a non-nil
// result only on failure.
func (c *Coordinator) captureSample(ctx context.Context, flow *domain.Flow, versionID string, payload *domain.WebhookPayload) *domain.WebhookResult {
	capture := func(ctx context.Context) error {
		if err := c.samples.Save(ctx, &domain.Sample{
			FlowID:        flow.ID,
			FlowVersionID: versionID,
			Payload:       *payload,
		}); err != nil {
			return fmt.Errorf("failed to save sample: %w", err)
		}
		if err := c.samples.DisableSimulation(ctx, flow.ID); err != nil {
			return fmt.Errorf("failed to disable simulation: %w", err)
		}
		return nil
	}

	var err error
	if c.locker != nil {
		err = c.withSampleLock(ctx, flow.ID, capture)
	} else {
		err = capture(ctx)
	}
	if err != nil {
		c.logger.Error("sample capture failed", "flow_id", flow.ID, "err", err)
		observability.WebhookRequests.WithLabelValues("error").Inc()
		return &domain.WebhookResult{Status: http.StatusInternalServerError}
	}
	return nil
}

func (c *Coordinator) withSampleLock(ctx context.Context, flowID string, fn func(context.Context) error) error {
	unlock, err := c.locker.Lock(ctx, "sample:"+flowID, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to acquire sample lock: %w", err)
	}
	defer func() {
		if err := unlock(ctx); err != nil {
			c.logger.Warn("Failed to release sample lock (will expire via TTL)",
				"flow_id", flowID,
				"err", err,
			)
		}
	}()
	return fn(ctx)
}
