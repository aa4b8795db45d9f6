package ports

import (
	"context"

	"github.com/activepieces/activepieces-sub025/pkg/domain"
)

// Queue is the enqueue side of the job dispatch queue.
// Implementations guarantee at-least-once delivery to exactly one
// consumer at a time per job id.
type Queue interface {
	// Enqueue places a job on the queue. The job is not considered
	// submitted unless Enqueue returns nil.
	Enqueue(ctx context.Context, job *domain.Job) error
}

// Consumer is the worker side of the queue.
type Consumer interface {
	// Receive blocks until a job is available or ctx is done.
	// The returned delivery must be acked after the job's outcome has
	// been published; unacked deliveries are redelivered.
	Receive(ctx context.Context) (*domain.Delivery, error)
}
