package memory

import (
	"context"
	"sync"

	"github.com/activepieces/activepieces-sub025/pkg/domain"
)

// Queue implements ports.Queue and ports.Consumer over a buffered
// channel. Acks are no-ops: an in-memory queue cannot survive the
// process anyway.
type Queue struct {
	jobs chan domain.Job
	once sync.Once
}

// NewQueue creates an in-memory queue with a fixed buffer.
func NewQueue(capacity int) *Queue {
	return &Queue{
		jobs: make(chan domain.Job, capacity),
	}
}

// Enqueue places a job on the queue, blocking when the buffer is full.
func (q *Queue) Enqueue(ctx context.Context, job *domain.Job) error {
	select {
	case q.jobs <- *job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive blocks until a job is available or ctx is done.
func (q *Queue) Receive(ctx context.Context) (*domain.Delivery, error) {
	select {
	case job := <-q.jobs:
		return &domain.Delivery{
			Job: job,
			Ack: func(ctx context.Context) error { return nil },
		}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close releases the queue. Subsequent Enqueue calls panic; intended
// for test teardown only.
func (q *Queue) Close() {
	q.once.Do(func() {
		close(q.jobs)
	})
}
