package domain

import "encoding/json"

// ResponseEnvelope is the message shape published on a node's private
// response channel. Response is opaque to the correlation layer; worker
// failures are encoded inside it, never as a transport error.
type ResponseEnvelope struct {
	RequestID string          `json:"requestId"`
	Response  json.RawMessage `json:"response"`
}

// WebhookResult is the HTTP-shaped outcome of a webhook execution,
// produced by a worker and mirrored to the original caller.
type WebhookResult struct {
	Status  int               `json:"status"`
	Body    json.RawMessage   `json:"body,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Marshal returns the result as a raw response payload.
func (r WebhookResult) Marshal() json.RawMessage {
	data, _ := json.Marshal(r)
	return data
}
