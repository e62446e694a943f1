package middleware

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	recovery "github.com/fvgm-spec/disaster-recovery-agent"
	"github.com/fvgm-spec/disaster-recovery-agent/task"
)

// tracerName is the instrumentation scope name for task tracing.
const tracerName = "github.com/fvgm-spec/disaster-recovery-agent"

// Tracing returns middleware that wraps task invocation in an
// OpenTelemetry span. If no TracerProvider is configured globally, the
// default noop tracer is used and this middleware becomes a pass-through
// with zero overhead.
//
// Span attributes include: recovery.task.resource,
// recovery.task.timeout_ms, recovery.execution.id, recovery.workflow.
// On error, the span status is set to codes.Error with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, inv *task.Invocation, next Handler) (json.RawMessage, error) {
		attrs := []attribute.KeyValue{
			attribute.String("recovery.task.resource", inv.Resource),
			attribute.Int64("recovery.task.timeout_ms", inv.Timeout.Milliseconds()),
		}
		if info, ok := recovery.ExecutionInfoFromContext(ctx); ok {
			attrs = append(attrs,
				attribute.String("recovery.execution.id", info.ExecutionID.String()),
				attribute.String("recovery.workflow", info.Workflow),
			)
		}

		ctx, span := tracer.Start(ctx, "recovery.task.invoke",
			trace.WithAttributes(attrs...),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		out, err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return out, err
	}
}
