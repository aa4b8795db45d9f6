package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/activepieces/activepieces-sub025/pkg/domain"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

// Queue implements ports.Queue and ports.Consumer over a Redis stream
// with a consumer group: at-least-once, and each entry goes to exactly
// one consumer of the group until acked.
type Queue struct {
	client   *backend.Client
	stream   string
	group    string
	consumer string
	block    time.Duration
}

// QueueOption configures the Queue.
type QueueOption func(*Queue)

// WithBlock sets how long a single Receive poll blocks on the stream.
func WithBlock(d time.Duration) QueueOption {
	return func(q *Queue) {
		q.block = d
	}
}

// WithConsumerName overrides the generated consumer name.
func WithConsumerName(name string) QueueOption {
	return func(q *Queue) {
		q.consumer = name
	}
}

// NewQueue creates a stream-backed queue. The consumer group is created
// lazily on the first Receive.
func NewQueue(client *backend.Client, stream, group string, opts ...QueueOption) *Queue {
	q := &Queue{
		client:   client,
		stream:   stream,
		group:    group,
		consumer: "consumer-" + uuid.NewString(),
		block:    time.Second,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends the job to the stream.
func (q *Queue) Enqueue(ctx context.Context, job *domain.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	err = q.client.XAdd(ctx, &backend.XAddArgs{
		Stream: q.stream,
		Values: map[string]any{"job": data},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// ensureGroup creates the consumer group, tolerating a pre-existing one.
func (q *Queue) ensureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// Receive blocks until a job is available or ctx is done. The returned
// delivery's Ack issues XACK; unacked entries stay pending and are
// redelivered by the queue's recovery policy.
func (q *Queue) Receive(ctx context.Context) (*domain.Delivery, error) {
	if err := q.ensureGroup(ctx); err != nil {
		return nil, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		streams, err := q.client.XReadGroup(ctx, &backend.XReadGroupArgs{
			Group:    q.group,
			Consumer: q.consumer,
			Streams:  []string{q.stream, ">"},
			Count:    1,
			Block:    q.block,
		}).Result()
		if err != nil {
			if err == backend.Nil {
				continue // poll timeout, try again
			}
			return nil, fmt.Errorf("failed to read from stream: %w", err)
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				return q.delivery(msg)
			}
		}
	}
}

func (q *Queue) delivery(msg backend.XMessage) (*domain.Delivery, error) {
	raw, ok := msg.Values["job"].(string)
	if !ok {
		return nil, fmt.Errorf("stream entry %s has no job field", msg.ID)
	}

	var job domain.Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job from entry %s: %w", msg.ID, err)
	}

	entryID := msg.ID
	return &domain.Delivery{
		Job: job,
		Ack: func(ctx context.Context) error {
			return q.client.XAck(ctx, q.stream, q.group, entryID).Err()
		},
	}, nil
}
