package domain

import "encoding/json"

// WebhookPayload is the transport-agnostic shape of an inbound webhook
// call, captured once at the HTTP boundary.
type WebhookPayload struct {
	Method      string            `json:"method"`
	Headers     map[string]string `json:"headers"`
	QueryParams map[string]string `json:"queryParams"`
	Body        json.RawMessage   `json:"body,omitempty"`
}

// WebhookOptions parameterize a single webhook dispatch.
type WebhookOptions struct {
	// Async acknowledges immediately instead of blocking for the
	// execution's HTTP-shaped result.
	Async bool

	// SaveSampleData persists the raw payload against the flow version
	// for trigger testing, and allows disabled flows to run.
	SaveSampleData bool

	// Execute can be switched off to capture a sample without running
	// the flow at all.
	Execute bool

	VersionPolicy VersionPolicy
}

// Sample is a captured raw payload stored against a flow version.
type Sample struct {
	FlowID        string         `json:"flowId"`
	FlowVersionID string         `json:"flowVersionId"`
	Payload       WebhookPayload `json:"payload"`
}
