package workflow

import (
	"context"

	"github.com/fvgm-spec/disaster-recovery-agent/id"
)

// ListOpts controls filtering and pagination for execution list queries.
type ListOpts struct {
	// Limit is the maximum number of executions to return. Zero means no
	// limit.
	Limit int
	// Offset is the number of executions to skip.
	Offset int
	// Status filters by execution status. Empty means all statuses.
	Status Status
	// Workflow filters by workflow name. Empty means all workflows.
	Workflow string
}

// Store defines the persistence contract for executions.
type Store interface {
	// CreateExecution persists a new execution.
	CreateExecution(ctx context.Context, exec *Execution) error

	// GetExecution retrieves an execution by ID.
	GetExecution(ctx context.Context, execID id.ExecutionID) (*Execution, error)

	// UpdateExecution persists changes to an existing execution.
	UpdateExecution(ctx context.Context, exec *Execution) error

	// ListExecutions returns executions matching the given options,
	// newest first.
	ListExecutions(ctx context.Context, opts ListOpts) ([]*Execution, error)
}
