package engine_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/activepieces/activepieces-sub025/pkg/adapters/memory"
	"github.com/activepieces/activepieces-sub025/pkg/domain"
	"github.com/activepieces/activepieces-sub025/pkg/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, bus *memory.Bus) *engine.Watcher {
	t.Helper()
	w := engine.NewWatcher(bus)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestWatcher_ResolvesWaiter(t *testing.T) {
	bus := memory.NewBus()
	w := startWatcher(t, bus)
	ctx := context.Background()

	done := make(chan json.RawMessage, 1)
	pending, err := w.Register("req-1")
	require.NoError(t, err)
	go func() {
		resp, err := pending.Wait(ctx, engine.WaitOptions{})
		assert.NoError(t, err)
		done <- resp
	}()

	require.NoError(t, w.Publish(ctx, "req-1", w.NodeID(), json.RawMessage(`{"ok":true}`)))

	select {
	case resp := <-done:
		assert.JSONEq(t, `{"ok":true}`, string(resp))
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never resolved")
	}
}

func TestWatcher_TimeoutResolvesWithDefault(t *testing.T) {
	bus := memory.NewBus()
	w := startWatcher(t, bus)

	start := time.Now()
	resp, err := w.RegisterAndWait(context.Background(), "req-timeout", engine.WaitOptions{
		Timeout: 100 * time.Millisecond,
		Default: json.RawMessage(`{"status":204}`),
	})
	require.NoError(t, err, "timeout is not an error")
	assert.JSONEq(t, `{"status":204}`, string(resp))
	assert.WithinDuration(t, start.Add(100*time.Millisecond), time.Now(), 80*time.Millisecond)
}

func TestWatcher_AtMostOneResolution(t *testing.T) {
	bus := memory.NewBus()
	w := startWatcher(t, bus)
	ctx := context.Background()

	pending, err := w.Register("req-dup")
	require.NoError(t, err)

	// Two envelopes for the same request id: only the first resolves,
	// the second is dropped silently.
	require.NoError(t, w.Publish(ctx, "req-dup", w.NodeID(), json.RawMessage(`"first"`)))

	resp, err := pending.Wait(ctx, engine.WaitOptions{})
	require.NoError(t, err)
	assert.Equal(t, `"first"`, string(resp))

	assert.NoError(t, w.Publish(ctx, "req-dup", w.NodeID(), json.RawMessage(`"second"`)))
}

func TestWatcher_PublishWithoutWaiterIsNoOp(t *testing.T) {
	bus := memory.NewBus()
	w := startWatcher(t, bus)

	assert.NoError(t, w.Publish(context.Background(), "nobody-home", w.NodeID(), json.RawMessage(`{}`)))
	// Give the subscriber loop a beat; nothing should crash or leak.
	time.Sleep(50 * time.Millisecond)
}

func TestWatcher_DuplicateRegistration(t *testing.T) {
	bus := memory.NewBus()
	w := startWatcher(t, bus)

	pending, err := w.Register("req-x")
	require.NoError(t, err)
	defer pending.Cancel()

	_, err = w.Register("req-x")
	assert.ErrorIs(t, err, domain.ErrDuplicateWaiter)
}

func TestWatcher_RoundTripAcrossNodes(t *testing.T) {
	// Two nodes on the same bus, each waiting on its own request id.
	// A publish addressed to node X resolves exactly X's waiter.
	bus := memory.NewBus()
	nodeX := startWatcher(t, bus)
	nodeY := startWatcher(t, bus)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(map[string]string)
	var mu sync.Mutex

	wait := func(w *engine.Watcher, requestID string) {
		defer wg.Done()
		resp, err := w.RegisterAndWait(ctx, requestID, engine.WaitOptions{Timeout: 2 * time.Second})
		assert.NoError(t, err)
		mu.Lock()
		results[requestID] = string(resp)
		mu.Unlock()
	}

	wg.Add(2)
	go wait(nodeX, "req-x")
	go wait(nodeY, "req-y")

	time.Sleep(50 * time.Millisecond) // let both register

	// A third party (a worker) calls home to each origin node.
	worker := engine.NewWatcher(bus)
	require.NoError(t, worker.Publish(ctx, "req-x", nodeX.NodeID(), json.RawMessage(`"for-x"`)))
	require.NoError(t, worker.Publish(ctx, "req-y", nodeY.NodeID(), json.RawMessage(`"for-y"`)))

	wg.Wait()
	assert.Equal(t, `"for-x"`, results["req-x"])
	assert.Equal(t, `"for-y"`, results["req-y"])
}

func TestWatcher_CloseFailsOutstandingWaiters(t *testing.T) {
	bus := memory.NewBus()
	w := engine.NewWatcher(bus)
	require.NoError(t, w.Start(context.Background()))

	pending, err := w.Register("req-shutdown")
	require.NoError(t, err)

	errs := make(chan error, 1)
	go func() {
		_, err := pending.Wait(context.Background(), engine.WaitOptions{})
		errs <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, w.Close())

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, domain.ErrWatcherClosed)
	case <-time.After(time.Second):
		t.Fatal("waiter survived Close")
	}

	_, err = w.Register("after-close")
	assert.ErrorIs(t, err, domain.ErrWatcherClosed)
}
