package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fvgm-spec/disaster-recovery-agent/task"
	"github.com/fvgm-spec/disaster-recovery-agent/workflow"
)

// Handler is the terminal function that executes the task.
type Handler func(ctx context.Context) (json.RawMessage, error)

// Middleware wraps a Handler with cross-cutting logic.
// It receives the current context, the invocation being executed, and
// the next handler to call. Middleware MUST call next to continue the
// chain (unless short-circuiting on error).
type Middleware func(ctx context.Context, inv *task.Invocation, next Handler) (json.RawMessage, error)

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, recover, tracing) executes as:
//
//	logging → recover → tracing → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, inv *task.Invocation, next Handler) (json.RawMessage, error) {
		// Build the chain from the end backwards.
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) (json.RawMessage, error) {
				return mw(ctx, inv, prev)
			}
		}
		return h(ctx)
	}
}

// Wrap applies a middleware chain around a task invoker, preserving the
// invoker contract the interpreter calls.
func Wrap(invoker workflow.TaskInvoker, mws ...Middleware) workflow.TaskInvoker {
	chain := Chain(mws...)
	return workflow.InvokerFunc(func(ctx context.Context, resource string, input json.RawMessage, timeout time.Duration) (json.RawMessage, error) {
		inv := &task.Invocation{Resource: resource, Input: input, Timeout: timeout}
		return chain(ctx, inv, func(ctx context.Context) (json.RawMessage, error) {
			return invoker.Invoke(ctx, resource, input, timeout)
		})
	})
}
