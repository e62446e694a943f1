// Package engine wires all recovery subsystems together and provides the
// primary application-level API for registering workflows and responding
// to emergencies.
//
// The engine package exists to break a fundamental import cycle: the root
// recovery package defines Config, the shared error sentinels and the
// execution context helpers (imported by workflow, task, emergency, etc.)
// and therefore cannot import those packages back. Engine sits above all
// subsystem packages and below the application layer.
//
// # Building an Engine
//
//	eng, err := engine.New(
//	    engine.WithStore(st),
//	    engine.WithConfig(recovery.DefaultConfig()),
//	    engine.WithLogger(logger),
//	    engine.WithWorkflowConfig(admission.Config{
//	        Workflow:      "natural-disaster-response",
//	        MaxConcurrent: 8,
//	    }),
//	)
//
// # Registering Workflows and Tasks
//
//	// Workflow definitions, usually decoded from JSON documents.
//	def, err := eng.RegisterWorkflowJSON(data)
//
//	// Task handlers referenced by Task states.
//	engine.RegisterTask(eng, "notify-responders", NotifyResponders)
//
// # Running Responses
//
//	// Direct trigger of a registered workflow.
//	exec, err := eng.Trigger(ctx, "natural-disaster-response", input)
//
//	// Full intake path: triage, persist, route and launch.
//	rec, err := eng.Report(ctx, report)
//
// Executions run on a background context owned by the engine, so the
// caller's context ending does not cancel an in-flight response. Stop
// drains running executions; ResumeAll re-drives executions left RUNNING
// by a previous process.
//
// # Options
//
//   - [WithStore] — set the persistence backend (required)
//   - [WithConfig] — override timeouts, limits and workflow routing
//   - [WithLogger] — set the slog logger
//   - [WithMiddleware] — append a middleware to the task invocation chain
//   - [WithWorkflowConfig] — configure per-workflow admission limits
//   - [WithTracerProvider] — set the OpenTelemetry tracer provider
package engine
