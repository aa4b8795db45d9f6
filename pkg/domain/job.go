package domain

import (
	"context"
	"encoding/json"
)

// JobType identifies the kind of work a queued job carries.
// Dispatch on it happens exactly once, at the worker boundary.
type JobType string

const (
	// JobTypeExecuteWebhook runs a flow in response to a webhook call.
	JobTypeExecuteWebhook JobType = "EXECUTE_WEBHOOK"

	// JobTypeExecuteTool runs a single tool invocation requested by an
	// agent over a protocol session.
	JobTypeExecuteTool JobType = "EXECUTE_TOOL"

	// JobTypeExecuteProperty resolves a dynamic property of a piece.
	JobTypeExecuteProperty JobType = "EXECUTE_PROPERTY"

	// JobTypeTriggerHook runs a trigger lifecycle hook, e.g. the
	// handshake challenge-response path.
	JobTypeTriggerHook JobType = "EXECUTE_TRIGGER_HOOK"
)

// Job is a single unit of work placed on the dispatch queue.
// Exactly one worker consumes it; the response travels back to
// OriginNodeID over the response bus, keyed by RequestID.
type Job struct {
	ID   string  `json:"id"`
	Type JobType `json:"type"`

	// RequestID correlates the eventual response with the waiter that
	// submitted this job. Usually equal to ID.
	RequestID string `json:"requestId"`

	// OriginNodeID is the node that must receive the response.
	OriginNodeID string `json:"originNodeId"`

	// SynchronousHandlerID is set when a caller blocks for the result
	// of a webhook execution. Empty for fire-and-forget dispatch.
	SynchronousHandlerID string `json:"synchronousHandlerId,omitempty"`

	FlowID        string `json:"flowId,omitempty"`
	FlowVersionID string `json:"flowVersionId,omitempty"`
	PieceName     string `json:"pieceName,omitempty"`
	ActionName    string `json:"actionName,omitempty"`

	// Payload carries the kind-specific input (webhook payload, tool
	// arguments, property context).
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Delivery is a job handed to a consumer. Ack must be called only
// after the job's outcome has been published; the queue redelivers
// unacked jobs.
type Delivery struct {
	Job Job
	Ack func(ctx context.Context) error
}
