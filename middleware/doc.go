// Package middleware provides composable middleware for task invocation.
//
// A [Middleware] is a function that wraps a task handler. Middleware are
// composed into a chain using [Chain] and applied before each invocation.
// They are applied right-to-left: the first middleware in the slice is
// the outermost wrapper.
//
//	// logging → recover → handler
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// [Wrap] applies a chain around an invoker so the result can be handed
// straight to the workflow interpreter:
//
//	invoker := middleware.Wrap(task.NewInvoker(registry),
//	    middleware.Recover(logger),
//	    middleware.Tracing(),
//	    middleware.Logging(logger),
//	)
//
// # Built-in Middleware
//
//   - [Logging] — logs resource, execution, duration, and outcome
//   - [Recover] — catches panics and converts them to errors
//   - [Tracing] — wraps invocation in an OpenTelemetry span
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, inv *task.Invocation, next middleware.Handler) (json.RawMessage, error) {
//	        // pre-processing
//	        out, err := next(ctx)
//	        // post-processing
//	        return out, err
//	    }
//	}
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting (e.g. admission control).
package middleware
