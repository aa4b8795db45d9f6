// Package worker drains the dispatch queue and calls home with results.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/activepieces/activepieces-sub025/internal/logging"
	"github.com/activepieces/activepieces-sub025/pkg/domain"
	"github.com/activepieces/activepieces-sub025/pkg/engine"
	"github.com/activepieces/activepieces-sub025/pkg/ports"
)

// Worker consumes jobs one at a time, delegates them to the executor,
// and publishes the result to the job's origin node. A delivery is
// acked only after the publish, so a crash mid-flight redelivers.
type Worker struct {
	consumer ports.Consumer
	executor ports.Executor
	watcher  *engine.Watcher
	logger   *slog.Logger
	backoff  time.Duration
}

// DefaultReceiveBackoff is the pause between retries when the queue
// backend is unreachable.
const DefaultReceiveBackoff = time.Second

// Option configures the Worker.
type Option func(*Worker)

// WithLogger configures a logger for the Worker.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// WithReceiveBackoff sets the pause between receive retries after a
// backend error.
func WithReceiveBackoff(d time.Duration) Option {
	return func(w *Worker) {
		w.backoff = d
	}
}

// New creates a worker over the given consumer and executor. The
// watcher is used only for its publish side; the worker registers no
// waiters of its own.
func New(consumer ports.Consumer, executor ports.Executor, watcher *engine.Watcher, opts ...Option) *Worker {
	w := &Worker{
		consumer: consumer,
		executor: executor,
		watcher:  watcher,
		logger:   logging.NewNop(),
		backoff:  DefaultReceiveBackoff,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run drains the queue until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	for {
		delivery, err := w.consumer.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			// Pause before retrying so an unreachable backend is not
			// hammered in a tight loop.
			w.logger.Error("receive failed", "err", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.backoff):
			}
			continue
		}
		w.process(ctx, delivery)
	}
}

func (w *Worker) process(ctx context.Context, delivery *domain.Delivery) {
	job := delivery.Job
	w.logger.Debug("executing job", "job_id", job.ID, "type", job.Type)

	result, err := w.executor.Execute(ctx, &job)
	if err != nil {
		// Execution failure is still a delivered response: the waiter
		// must resolve, with the failure encoded in the payload.
		w.logger.Warn("job execution failed", "job_id", job.ID, "err", err)
		result = failurePayload(err)
	}

	if err := w.watcher.Publish(ctx, job.RequestID, job.OriginNodeID, result); err != nil {
		// Leave the delivery unacked; the queue redelivers it.
		w.logger.Error("failed to publish job result", "job_id", job.ID, "err", err)
		return
	}

	if err := delivery.Ack(ctx); err != nil {
		w.logger.Warn("failed to ack delivery", "job_id", job.ID, "err", err)
	}
}

func failurePayload(err error) json.RawMessage {
	return domain.WebhookResult{
		Status: http.StatusInternalServerError,
		Body:   mustMarshal(map[string]string{"error": err.Error()}),
	}.Marshal()
}

func mustMarshal(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}
