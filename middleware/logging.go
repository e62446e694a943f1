package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	recovery "github.com/fvgm-spec/disaster-recovery-agent"
	"github.com/fvgm-spec/disaster-recovery-agent/task"
)

// Logging returns middleware that logs task start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, inv *task.Invocation, next Handler) (json.RawMessage, error) {
		args := []any{slog.String("resource", inv.Resource)}
		if info, ok := recovery.ExecutionInfoFromContext(ctx); ok {
			args = append(args,
				slog.String("execution_id", info.ExecutionID.String()),
				slog.String("workflow", info.Workflow),
			)
		}

		logger.Info("task started", args...)

		start := time.Now()
		out, err := next(ctx)
		elapsed := time.Since(start)

		args = append(args, slog.Duration("elapsed", elapsed))
		if err != nil {
			logger.Error("task failed", append(args, slog.String("error", err.Error()))...)
		} else {
			logger.Info("task completed", args...)
		}

		return out, err
	}
}
