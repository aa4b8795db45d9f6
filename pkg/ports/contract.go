package ports

import (
	"context"
	"testing"
	"time"

	"github.com/activepieces/activepieces-sub025/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunKeyValueStoreContract runs a suite of tests to verify that a
// KeyValueStore implementation adheres to the interface contract.
func RunKeyValueStoreContract(t *testing.T, store KeyValueStore) {
	ctx := context.Background()
	key := "contract-test-" + time.Now().Format("20060102150405")

	t.Run("Put and Get", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, key, "node-a"))

		val, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "node-a", val)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, key, "node-b"))

		val, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "node-b", val)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.Get(ctx, "missing-"+key)
		assert.ErrorIs(t, err, domain.ErrKeyNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, key))

		_, err := store.Get(ctx, key)
		assert.ErrorIs(t, err, domain.ErrKeyNotFound, "Get after Delete should return ErrKeyNotFound")
	})

	t.Run("Delete Non-Existent", func(t *testing.T) {
		assert.NoError(t, store.Delete(ctx, "missing-"+key), "deleting an absent key is a no-op")
	})
}

// RunMessageBusContract verifies a MessageBus implementation: channel
// isolation, fan-out to current subscribers, and clean unsubscribe.
func RunMessageBusContract(t *testing.T, bus MessageBus) {
	ctx := context.Background()

	t.Run("Publish reaches subscriber", func(t *testing.T) {
		got := make(chan []byte, 1)
		sub, err := bus.Subscribe(ctx, "contract.a", func(payload []byte) {
			got <- payload
		})
		require.NoError(t, err)
		defer sub.Close()

		require.NoError(t, bus.Publish(ctx, "contract.a", []byte("hello")))

		select {
		case payload := <-got:
			assert.Equal(t, []byte("hello"), payload)
		case <-time.After(2 * time.Second):
			t.Fatal("subscriber never received the message")
		}
	})

	t.Run("Channels are isolated", func(t *testing.T) {
		got := make(chan []byte, 1)
		sub, err := bus.Subscribe(ctx, "contract.b", func(payload []byte) {
			got <- payload
		})
		require.NoError(t, err)
		defer sub.Close()

		require.NoError(t, bus.Publish(ctx, "contract.other", []byte("stray")))

		select {
		case <-got:
			t.Fatal("message leaked across channels")
		case <-time.After(200 * time.Millisecond):
		}
	})

	t.Run("Publish without subscriber is a no-op", func(t *testing.T) {
		assert.NoError(t, bus.Publish(ctx, "contract.nobody", []byte("void")))
	})

	t.Run("Closed subscription stops delivery", func(t *testing.T) {
		got := make(chan []byte, 1)
		sub, err := bus.Subscribe(ctx, "contract.c", func(payload []byte) {
			got <- payload
		})
		require.NoError(t, err)
		require.NoError(t, sub.Close())

		require.NoError(t, bus.Publish(ctx, "contract.c", []byte("late")))

		select {
		case <-got:
			t.Fatal("received a message after Close")
		case <-time.After(200 * time.Millisecond):
		}
	})
}

// RunQueueContract verifies an enqueue/consume pair: jobs round-trip
// intact and each delivery goes to a single consumer.
func RunQueueContract(t *testing.T, queue Queue, consumer Consumer) {
	ctx := context.Background()

	t.Run("Round trip", func(t *testing.T) {
		job := &domain.Job{
			ID:           "contract-job-1",
			Type:         domain.JobTypeExecuteWebhook,
			RequestID:    "contract-job-1",
			OriginNodeID: "node-x",
			FlowID:       "flow-1",
		}
		require.NoError(t, queue.Enqueue(ctx, job))

		recvCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		delivery, err := consumer.Receive(recvCtx)
		require.NoError(t, err)
		assert.Equal(t, job.ID, delivery.Job.ID)
		assert.Equal(t, job.Type, delivery.Job.Type)
		assert.Equal(t, job.OriginNodeID, delivery.Job.OriginNodeID)
		require.NoError(t, delivery.Ack(ctx))
	})

	t.Run("FIFO within a consumer", func(t *testing.T) {
		for _, id := range []string{"fifo-1", "fifo-2"} {
			require.NoError(t, queue.Enqueue(ctx, &domain.Job{ID: id, RequestID: id, Type: domain.JobTypeExecuteTool}))
		}

		recvCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		first, err := consumer.Receive(recvCtx)
		require.NoError(t, err)
		second, err := consumer.Receive(recvCtx)
		require.NoError(t, err)

		assert.Equal(t, "fifo-1", first.Job.ID)
		assert.Equal(t, "fifo-2", second.Job.ID)
		require.NoError(t, first.Ack(ctx))
		require.NoError(t, second.Ack(ctx))
	})

	t.Run("Receive honors context", func(t *testing.T) {
		recvCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()

		_, err := consumer.Receive(recvCtx)
		assert.Error(t, err, "Receive on an empty queue should fail once ctx expires")
	})
}
