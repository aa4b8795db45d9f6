package ports

import (
	"context"

	"github.com/activepieces/activepieces-sub025/pkg/domain"
)

// FlowService is the narrow view of flow persistence the coordinator
// needs. The full flow model lives in an external service.
type FlowService interface {
	// GetFlow returns domain.ErrFlowNotFound when the id is unknown.
	GetFlow(ctx context.Context, flowID string) (*domain.Flow, error)
}

// SampleStore persists captured webhook payloads for trigger testing.
type SampleStore interface {
	Save(ctx context.Context, sample *domain.Sample) error

	// DisableSimulation turns off sample capture for the flow after a
	// payload has been recorded, so the next call is not captured twice.
	DisableSimulation(ctx context.Context, flowID string) error
}
