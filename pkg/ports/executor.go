package ports

import (
	"context"
	"encoding/json"

	"github.com/activepieces/activepieces-sub025/pkg/domain"
)

// Executor is the execution engine a worker delegates a job to.
// The engine itself is out of scope here; workers only need "run this
// job, give me the typed result". A failed execution is reported inside
// the returned payload by the worker, not by this interface.
type Executor interface {
	Execute(ctx context.Context, job *domain.Job) (json.RawMessage, error)
}
