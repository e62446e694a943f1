package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/fvgm-spec/disaster-recovery-agent/task"
)

// Recover returns middleware that recovers from panics in the handler
// chain. Panics are converted to errors and logged with a stack trace.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, inv *task.Invocation, next Handler) (out json.RawMessage, retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("task handler panicked",
					slog.String("resource", inv.Resource),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				out = nil
				retErr = fmt.Errorf("panic in task %s: %v", inv.Resource, r)
			}
		}()
		return next(ctx)
	}
}
