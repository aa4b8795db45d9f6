package worker

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/activepieces/activepieces-sub025/pkg/domain"
)

// EchoExecutor is the development executor: it mirrors the job back as
// a successful HTTP-shaped result. Real deployments wire the flow
// execution engine behind ports.Executor instead.
type EchoExecutor struct{}

// NewEchoExecutor creates a new EchoExecutor.
func NewEchoExecutor() *EchoExecutor {
	return &EchoExecutor{}
}

// Execute returns a 200 result whose body echoes the job metadata.
func (e *EchoExecutor) Execute(ctx context.Context, job *domain.Job) (json.RawMessage, error) {
	body, err := json.Marshal(map[string]any{
		"jobId":         job.ID,
		"type":          job.Type,
		"flowId":        job.FlowID,
		"flowVersionId": job.FlowVersionID,
	})
	if err != nil {
		return nil, err
	}
	return domain.WebhookResult{
		Status:  http.StatusOK,
		Body:    body,
		Headers: map[string]string{"Content-Type": "application/json"},
	}.Marshal(), nil
}
