package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/activepieces/activepieces-sub025/pkg/adapters/memory"
	"github.com/activepieces/activepieces-sub025/pkg/domain"
	"github.com/activepieces/activepieces-sub025/pkg/engine"
	"github.com/activepieces/activepieces-sub025/pkg/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExecutor struct {
	result json.RawMessage
	err    error
}

func (s *stubExecutor) Execute(ctx context.Context, job *domain.Job) (json.RawMessage, error) {
	return s.result, s.err
}

func TestWorker_PublishesResultHome(t *testing.T) {
	bus := memory.NewBus()
	queue := memory.NewQueue(4)
	ctx := context.Background()

	origin := engine.NewWatcher(bus)
	require.NoError(t, origin.Start(ctx))
	defer origin.Close()

	workerWatcher := engine.NewWatcher(bus)
	w := worker.New(queue, &stubExecutor{result: json.RawMessage(`{"done":true}`)}, workerWatcher)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = w.Run(runCtx) }()

	require.NoError(t, queue.Enqueue(ctx, &domain.Job{
		ID:           "job-1",
		Type:         domain.JobTypeExecuteWebhook,
		RequestID:    "job-1",
		OriginNodeID: origin.NodeID(),
	}))

	resp, err := origin.RegisterAndWait(ctx, "job-1", engine.WaitOptions{Timeout: 2 * time.Second})
	require.NoError(t, err)
	assert.JSONEq(t, `{"done":true}`, string(resp))
}

func TestWorker_ExecutionFailureStillResolvesWaiter(t *testing.T) {
	bus := memory.NewBus()
	queue := memory.NewQueue(4)
	ctx := context.Background()

	origin := engine.NewWatcher(bus)
	require.NoError(t, origin.Start(ctx))
	defer origin.Close()

	w := worker.New(queue, &stubExecutor{err: errors.New("piece exploded")}, engine.NewWatcher(bus))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = w.Run(runCtx) }()

	require.NoError(t, queue.Enqueue(ctx, &domain.Job{
		ID:           "job-2",
		RequestID:    "job-2",
		Type:         domain.JobTypeExecuteWebhook,
		OriginNodeID: origin.NodeID(),
	}))

	raw, err := origin.RegisterAndWait(ctx, "job-2", engine.WaitOptions{Timeout: 2 * time.Second})
	require.NoError(t, err, "failure is delivered as a response, not an error")

	var result domain.WebhookResult
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, 500, result.Status)
	assert.Contains(t, string(result.Body), "piece exploded")
}

type failingConsumer struct {
	mu    sync.Mutex
	calls int
}

func (c *failingConsumer) Receive(ctx context.Context) (*domain.Delivery, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return nil, errors.New("backend unreachable")
}

func (c *failingConsumer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestWorker_BacksOffOnReceiveError(t *testing.T) {
	bus := memory.NewBus()
	consumer := &failingConsumer{}

	w := worker.New(consumer, &stubExecutor{}, engine.NewWatcher(bus),
		worker.WithReceiveBackoff(50*time.Millisecond))

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(runCtx) }()

	time.Sleep(200 * time.Millisecond)
	assert.LessOrEqual(t, consumer.count(), 6, "receive retries must be paced, not spun")
	assert.GreaterOrEqual(t, consumer.count(), 2, "worker must keep retrying")
}

func TestEchoExecutor(t *testing.T) {
	raw, err := worker.NewEchoExecutor().Execute(context.Background(), &domain.Job{
		ID:     "job-3",
		Type:   domain.JobTypeExecuteTool,
		FlowID: "f1",
	})
	require.NoError(t, err)

	var result domain.WebhookResult
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, 200, result.Status)
	assert.Contains(t, string(result.Body), "job-3")
}
