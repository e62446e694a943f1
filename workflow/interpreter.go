package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// TaskInvoker is the port the interpreter calls to execute a named unit
// of work against an external collaborator. Implementations must be safe
// for concurrent use across unrelated executions and must honor the
// timeout by returning an error rather than hanging.
type TaskInvoker interface {
	Invoke(ctx context.Context, resource string, input json.RawMessage, timeout time.Duration) (json.RawMessage, error)
}

// InvokerFunc adapts a function to the TaskInvoker interface.
type InvokerFunc func(ctx context.Context, resource string, input json.RawMessage, timeout time.Duration) (json.RawMessage, error)

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, resource string, input json.RawMessage, timeout time.Duration) (json.RawMessage, error) {
	return f(ctx, resource, input, timeout)
}

// InterpreterOption configures an Interpreter.
type InterpreterOption func(*Interpreter)

// WithStore sets the execution store the interpreter persists progress
// to. Without a store the execution lives only in memory, which is how
// branch children run.
func WithStore(store Store) InterpreterOption {
	return func(it *Interpreter) { it.store = store }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) InterpreterOption {
	return func(it *Interpreter) { it.logger = logger }
}

// WithClock overrides the time source. Intended for tests.
func WithClock(clock func() time.Time) InterpreterOption {
	return func(it *Interpreter) { it.clock = clock }
}

// WithSleep overrides how retry delays are waited out. The function must
// return early with the context error when ctx is done. Intended for
// tests, which record the requested delays instead of sleeping.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) InterpreterOption {
	return func(it *Interpreter) { it.sleep = sleep }
}

// WithTaskTimeout sets the default timeout for a single task invocation,
// used when a Task state does not set TimeoutSeconds.
func WithTaskTimeout(d time.Duration) InterpreterOption {
	return func(it *Interpreter) { it.taskTimeout = d }
}

// Interpreter drives executions through a definition graph: it invokes
// task handlers, applies retry/catch policy on failures, coordinates
// parallel branches, and records the audit history. One interpreter can
// drive many executions concurrently; each execution is owned by exactly
// one Run call for its lifetime.
type Interpreter struct {
	invoker     TaskInvoker
	store       Store
	logger      *slog.Logger
	clock       func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
	taskTimeout time.Duration
}

// NewInterpreter creates an interpreter that resolves task resources
// through the given invoker.
func NewInterpreter(invoker TaskInvoker, opts ...InterpreterOption) *Interpreter {
	it := &Interpreter{
		invoker:     invoker,
		logger:      slog.Default(),
		clock:       time.Now,
		sleep:       sleepContext,
		taskTimeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(it)
	}
	return it
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives exec through def until a terminal status and returns the
// terminal error (nil for SUCCEEDED). The walk is an explicit loop over
// a current-state variable, so cyclic graphs run in constant stack space.
// An execution with a recorded CurrentState resumes from there; a fresh
// one starts at def.StartAt.
//
// The workflow deadline and external cancellation are observed at every
// suspension point: before each state, while awaiting a task result,
// during retry delays, and at branch joins.
func (it *Interpreter) Run(ctx context.Context, def *Definition, exec *Execution) error {
	current := exec.CurrentState
	if current == "" {
		current = def.StartAt
	}

	for {
		if ierr := it.interrupted(ctx, exec); ierr != nil {
			it.finish(ctx, exec, ierr)
			return ierr
		}

		state, ok := def.States[current]
		if !ok || state == nil {
			err := NewInvocationError(ErrorTaskFailed, fmt.Errorf("state %q is not defined", current))
			it.finish(ctx, exec, err)
			return err
		}

		exec.CurrentState = current
		exec.AppendEvent(it.clock(), current, EventEntered, "")
		it.persist(ctx, exec)

		it.logger.Debug("state entered",
			"execution_id", exec.ID.String(),
			"state", current,
			"type", string(state.Type),
		)

		var (
			next string
			err  error
		)

		switch state.Type {
		case StateTask:
			next, err = it.runTask(ctx, current, state, exec)
		case StateParallel:
			next, err = it.runParallel(ctx, current, state, exec)
		case StatePass:
			next = it.runPass(ctx, current, state, exec)
		case StateSucceed:
			it.succeed(ctx, exec)
			return nil
		case StateFail:
			failErr := &FailError{Name: state.Error, Cause: state.Cause}
			if failErr.Name == "" {
				failErr.Name = current
			}
			it.finish(ctx, exec, failErr)
			return failErr
		default:
			err = NewInvocationError(ErrorTaskFailed, fmt.Errorf("state %q has unknown type %q", current, state.Type))
		}

		if err != nil {
			it.finish(ctx, exec, err)
			return err
		}

		if next == "" {
			it.succeed(ctx, exec)
			return nil
		}
		current = next
	}
}

// runTask invokes the state's resource, applying retry and catch policy
// on failure. Attempt counters live on the stack of this call, so they
// reset naturally when the state is re-entered through a loop. Returns
// the next state name ("" when End is set) or the propagated error.
func (it *Interpreter) runTask(ctx context.Context, name string, state *State, exec *Execution) (string, error) {
	attempts := make([]int, len(state.Retry))

	for {
		out, err := it.invoke(ctx, state, exec.Payload, exec.Deadline)
		if err == nil {
			exec.Payload = out
			exec.AppendEvent(it.clock(), name, EventExited, "")
			it.persist(ctx, exec)
			return state.Next, nil
		}

		if ierr := it.interrupted(ctx, exec); ierr != nil {
			return "", ierr
		}

		next, rerr := it.resolveFailure(ctx, name, state, exec, err, attempts, "")
		if next != "" || rerr != nil {
			return next, rerr
		}
		// Retry resolved: loop re-invokes.
	}
}

// runParallel delegates to the branch coordinator and applies the
// Parallel state's own retry/catch policy to branch failures. A retry
// re-runs every branch from scratch; partial results from the failed
// attempt are discarded.
func (it *Interpreter) runParallel(ctx context.Context, name string, state *State, exec *Execution) (string, error) {
	attempts := make([]int, len(state.Retry))

	for {
		exec.AppendEvent(it.clock(), name, EventBranched, fmt.Sprintf("%d branches", len(state.Branches)))
		it.persist(ctx, exec)

		results, children, err := it.runBranches(ctx, name, state, exec)
		if err == nil {
			for i, child := range children {
				it.foldHistory(exec, name, i, child)
			}
			joined, jerr := json.Marshal(results)
			if jerr != nil {
				return "", NewInvocationError(ErrorTaskFailed, fmt.Errorf("join branch results: %w", jerr))
			}
			exec.Payload = joined
			exec.AppendEvent(it.clock(), name, EventJoined, fmt.Sprintf("%d branches succeeded", len(results)))
			exec.AppendEvent(it.clock(), name, EventExited, "")
			it.persist(ctx, exec)
			return state.Next, nil
		}

		if ierr := it.interrupted(ctx, exec); ierr != nil {
			return "", ierr
		}

		exec.AppendEvent(it.clock(), name, EventJoined, fmt.Sprintf("failed: %s", ErrorNameOf(err)))

		next, rerr := it.resolveFailure(ctx, name, state, exec, err, attempts, " (all branches restart)")
		if next != "" || rerr != nil {
			return next, rerr
		}
	}
}

// resolveFailure routes one failure through the state's policies.
// It returns ("", nil) when a retry was taken and the caller should
// re-run the state, (next, nil) when a catcher routed to a fallback,
// and ("", err) when the error propagates.
func (it *Interpreter) resolveFailure(
	ctx context.Context,
	name string,
	state *State,
	exec *Execution,
	err error,
	attempts []int,
	retryNote string,
) (string, error) {
	errName := ErrorNameOf(err)
	decision := ResolveFailure(state, errName, attempts)

	switch decision.Action {
	case ActionRetry:
		attempts[decision.Retrier]++
		exec.AppendEvent(it.clock(), name, EventRetried,
			fmt.Sprintf("attempt %d after %s, retrying in %s%s", attempts[decision.Retrier], errName, decision.Delay, retryNote))
		it.persist(ctx, exec)

		it.logger.Debug("retrying state",
			"execution_id", exec.ID.String(),
			"state", name,
			"error", errName,
			"attempt", attempts[decision.Retrier],
			"delay", decision.Delay.String(),
		)

		if sleepErr := it.sleep(ctx, decision.Delay); sleepErr != nil {
			return "", it.ctxError(ctx)
		}
		if ierr := it.interrupted(ctx, exec); ierr != nil {
			return "", ierr
		}
		return "", nil

	case ActionCatch:
		merged, mergeErr := MergeErrorAt(exec.Payload, decision.Catcher.ResultPath, errName, ErrorCauseOf(err))
		if mergeErr != nil {
			return "", NewInvocationError(ErrorTaskFailed, mergeErr)
		}
		exec.Payload = merged
		exec.AppendEvent(it.clock(), name, EventCaught, fmt.Sprintf("%s -> %s", errName, decision.Catcher.Next))
		it.persist(ctx, exec)
		return decision.Catcher.Next, nil

	default:
		if n, ok := exhaustedRetries(state, errName, attempts); ok {
			err = &RetryExhaustedError{Attempts: n, Err: err}
		}
		return "", err
	}
}

// invoke calls the task invoker under the state's timeout, capped by the
// remaining workflow deadline. A deadline hit scoped to the invocation
// surfaces as a TimeoutError, which Retry/Catch matchers see as
// ErrorTimeout.
func (it *Interpreter) invoke(ctx context.Context, state *State, payload json.RawMessage, deadline time.Time) (json.RawMessage, error) {
	timeout := it.taskTimeout
	if state.TimeoutSeconds > 0 {
		timeout = secondsToDuration(state.TimeoutSeconds)
	}
	if !deadline.IsZero() {
		if remaining := deadline.Sub(it.clock()); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return nil, &TimeoutError{Message: "workflow deadline exceeded"}
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := it.invoker.Invoke(cctx, state.Resource, payload, timeout)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &TimeoutError{Message: fmt.Sprintf("task %q timed out after %s", state.Resource, timeout)}
		}
		return nil, err
	}
	return out, nil
}

func (it *Interpreter) runPass(ctx context.Context, name string, state *State, exec *Execution) string {
	if len(state.Result) > 0 {
		exec.Payload = state.Result
	}
	exec.AppendEvent(it.clock(), name, EventExited, "")
	it.persist(ctx, exec)
	return state.Next
}

// foldHistory appends a branch child's events into the parent history,
// prefixing state names with the parallel state and branch index so the
// parent trail stays totally ordered and attributable.
func (it *Interpreter) foldHistory(exec *Execution, parallelState string, branch int, child *Execution) {
	for _, ev := range child.History {
		exec.AppendEvent(ev.Timestamp, fmt.Sprintf("%s[%d].%s", parallelState, branch, ev.State), ev.Kind, ev.Detail)
	}
}

// interrupted checks the workflow deadline and external cancellation.
// Both are observed here, at every suspension point.
func (it *Interpreter) interrupted(ctx context.Context, exec *Execution) error {
	if !exec.Deadline.IsZero() && !it.clock().Before(exec.Deadline) {
		return &TimeoutError{Message: "workflow deadline exceeded"}
	}
	select {
	case <-ctx.Done():
		return it.ctxError(ctx)
	default:
		return nil
	}
}

func (it *Interpreter) ctxError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Message: "workflow deadline exceeded"}
	}
	return &CancelledError{}
}

// finish moves the execution to the terminal status the error calls for:
// CANCELLED for cancellation, TIMED_OUT for a deadline hit, FAILED for
// everything else. FAILED executions always carry a non-empty identifier.
func (it *Interpreter) finish(ctx context.Context, exec *Execution, err error) {
	now := it.clock()

	var (
		toErr   *TimeoutError
		cancErr *CancelledError
	)
	switch {
	case errors.As(err, &cancErr):
		exec.Finish(now, StatusCancelled, ErrorCancelled, err.Error())
	case errors.As(err, &toErr) && it.pastDeadline(exec):
		exec.Finish(now, StatusTimedOut, ErrorTimeout, toErr.Error())
	default:
		exec.Finish(now, StatusFailed, ErrorNameOf(err), ErrorCauseOf(err))
	}

	it.persist(context.WithoutCancel(ctx), exec)

	it.logger.Error("execution finished with error",
		"execution_id", exec.ID.String(),
		"workflow", exec.WorkflowName,
		"status", string(exec.Status),
		"error_name", exec.ErrorName,
		"error", exec.ErrorCause,
	)
}

func (it *Interpreter) succeed(ctx context.Context, exec *Execution) {
	exec.Finish(it.clock(), StatusSucceeded, "", "")
	it.persist(context.WithoutCancel(ctx), exec)

	it.logger.Info("execution succeeded",
		"execution_id", exec.ID.String(),
		"workflow", exec.WorkflowName,
	)
}

func (it *Interpreter) pastDeadline(exec *Execution) bool {
	return !exec.Deadline.IsZero() && !it.clock().Before(exec.Deadline)
}

func (it *Interpreter) persist(ctx context.Context, exec *Execution) {
	if it.store == nil {
		return
	}
	if err := it.store.UpdateExecution(ctx, exec); err != nil {
		it.logger.Error("failed to persist execution",
			"execution_id", exec.ID.String(),
			"error", err.Error(),
		)
	}
}
