package recovery

import (
	"context"

	"github.com/fvgm-spec/disaster-recovery-agent/id"
)

type ctxKey int

const executionInfoKey ctxKey = iota

// ExecutionInfo identifies the execution a task invocation belongs to.
// The engine attaches it to the context before driving an execution so
// middleware and handlers can attribute their work.
type ExecutionInfo struct {
	ExecutionID id.ExecutionID
	Workflow    string
}

// WithExecutionInfo returns a context carrying the execution identity.
func WithExecutionInfo(ctx context.Context, info ExecutionInfo) context.Context {
	return context.WithValue(ctx, executionInfoKey, info)
}

// ExecutionInfoFromContext returns the execution identity attached by the
// engine, if any.
func ExecutionInfoFromContext(ctx context.Context) (ExecutionInfo, bool) {
	info, ok := ctx.Value(executionInfoKey).(ExecutionInfo)
	return info, ok
}
