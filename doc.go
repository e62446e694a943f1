// Package recovery provides an embeddable workflow orchestration engine for
// emergency-response procedures. It drives declaratively defined state
// machines (ordered and parallel sequences of tasks with retry, fallback,
// and timeout semantics) and keeps an ordered audit history for every
// execution.
//
// Recovery is designed as a library, not a service. Import it, configure a
// store, register workflow definitions and task handlers as ordinary Go
// functions, and trigger executions.
//
// # Quick Start
//
//	eng, err := engine.New(
//	    engine.WithStore(memStore),
//	    engine.WithLogger(logger),
//	)
//	engine.RegisterTask(eng, "assess-situation", assessFn)
//	exec, err := eng.Trigger(ctx, "natural-disaster-response", input)
//
// # Architecture
//
// The engine follows a composable store pattern where each subsystem
// (workflow executions, emergency records) defines its own store interface.
// A single backend implements all of them; memory, sqlite, redis, and
// postgres backends ship in store/.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers.
package recovery
