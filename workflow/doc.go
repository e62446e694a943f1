// Package workflow defines typed workflow definitions, the static
// validator, the retry/catch policy engine, and the state machine
// interpreter that drives executions.
//
// A workflow is a directed graph of named states: Task states invoke
// external handlers, Parallel states fork concurrent branches, Pass
// states transform the payload, and Succeed/Fail states terminate.
// Cycles are legal; the interpreter walks the graph as an explicit loop,
// never by recursion.
//
// # Defining a Workflow
//
// Definitions are usually loaded from their JSON document form:
//
//	def, err := workflow.DecodeDefinition(data)
//	if err := workflow.Validate(def); err != nil {
//	    // *workflow.ValidationError lists every violation found.
//	}
//
// # Running
//
//	it := workflow.NewInterpreter(invoker, workflow.WithStore(store))
//	exec := workflow.NewExecution("natural-disaster-response", input, time.Now().UTC(), 30*time.Minute)
//	err := it.Run(ctx, def, exec)
//
// # Failure Handling
//
// A failed Task or Parallel state resolves its error in this precedence:
// retry (per the state's Retry policies, with exponential backoff), catch
// (transition to a fallback state, recording the error in the payload),
// propagate (fail the enclosing state or the whole execution). Matching
// compares error identifiers against ErrorEquals lists; ErrorWildcard
// matches everything.
//
// # State Machine
//
// An [Execution] moves through these statuses:
//
//	RUNNING → SUCCEEDED
//	RUNNING → FAILED
//	RUNNING → TIMED_OUT
//	RUNNING → CANCELLED
//
// All four non-RUNNING statuses are absorbing.
//
// # Key Types
//
//   - [Definition] — immutable workflow graph, shared across executions
//   - [State] — one node: Task, Parallel, Pass, Succeed, or Fail
//   - [Execution] — a single run with payload, history, and deadline
//   - [Interpreter] — the execution driver
//   - [Registry] — maps workflow names to validated definitions
package workflow
