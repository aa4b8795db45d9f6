package memory

import (
	"context"
	"sync"

	"github.com/activepieces/activepieces-sub025/pkg/domain"
)

// FlowService implements ports.FlowService and ports.SampleStore over a
// fixed in-memory flow table. Tests and single-node runs seed it
// directly; production wires the real flow persistence service instead.
type FlowService struct {
	mu      sync.RWMutex
	flows   map[string]*domain.Flow
	samples []*domain.Sample
}

// NewFlowService creates an empty flow table.
func NewFlowService() *FlowService {
	return &FlowService{
		flows: make(map[string]*domain.Flow),
	}
}

// PutFlow seeds or replaces a flow.
func (s *FlowService) PutFlow(flow *domain.Flow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flows[flow.ID] = flow
}

// GetFlow looks up a flow by id.
func (s *FlowService) GetFlow(ctx context.Context, flowID string) (*domain.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	flow, ok := s.flows[flowID]
	if !ok {
		return nil, domain.ErrFlowNotFound
	}
	copied := *flow
	return &copied, nil
}

// Save records a captured sample.
func (s *FlowService) Save(ctx context.Context, sample *domain.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sample)
	return nil
}

// DisableSimulation is a no-op beyond bookkeeping in memory.
func (s *FlowService) DisableSimulation(ctx context.Context, flowID string) error {
	return nil
}

// Samples returns the captured samples, newest last.
func (s *FlowService) Samples() []*domain.Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*domain.Sample(nil), s.samples...)
}
