package domain

import "errors"

// ErrFlowNotFound is returned when a flow id cannot be resolved.
var ErrFlowNotFound = errors.New("flow not found")

// ErrSessionNotFound is returned when a session ID cannot be found locally
// or in the ownership store.
var ErrSessionNotFound = errors.New("session not found")

// ErrKeyNotFound is returned by a key-value store when the key is absent.
var ErrKeyNotFound = errors.New("key not found")

// ErrWatcherClosed is returned when a wait is attempted on a watcher
// that has already been shut down.
var ErrWatcherClosed = errors.New("response watcher closed")

// ErrDuplicateWaiter is returned when two waits are registered for the
// same request id on the same node.
var ErrDuplicateWaiter = errors.New("waiter already registered for request id")

// ErrRelayTimeout is returned when the owning node of a session does not
// answer a relayed message in time.
var ErrRelayTimeout = errors.New("session relay timed out")
