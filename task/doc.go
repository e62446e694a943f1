// Package task defines typed task handlers, the handler registry, and
// the invoker the workflow interpreter calls.
//
// # Defining a Task
//
// Use [Definition] with a typed handler. The execution payload is
// JSON-deserialized into the input type before the handler runs and the
// result is serialized back into the payload:
//
//	var AssessSituation = task.NewDefinition("assess-situation",
//	    func(ctx context.Context, input Assessment) (AssessmentResult, error) {
//	        return assess(ctx, input)
//	    },
//	)
//
// # Reporting Failures
//
// Handlers report failures under error identifiers so workflow Retry and
// Catch policies can target them:
//
//	return result, task.Fail("ResourcesUnavailable", err)
//
// A plain error is reported as States.TaskFailed. Handlers that block
// should honor ctx and return ctx.Err() on cancellation so the
// interpreter classifies timeouts and cancellations correctly.
//
// # Registry
//
// [Registry] maps resource names to type-erased [HandlerFunc] values.
// Register definitions at startup via [RegisterDefinition]; registering
// a name twice is rejected:
//
//	if err := task.RegisterDefinition(registry, AssessSituation); err != nil {
//	    log.Fatal(err)
//	}
//
// The engine package provides the higher-level engine.RegisterTask
// wrapper, and [Invoker] adapts a registry to the interpreter's invoker
// port.
package task
