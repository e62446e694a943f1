package workflow

import (
	"errors"
	"fmt"
	"strings"
)

// Built-in error identifiers. Matchers in Retry/Catch policies compare
// against these and against handler-reported identifiers.
const (
	// ErrorWildcard matches every error identifier. It must appear alone
	// in its ErrorEquals list and only in the last policy of that list.
	ErrorWildcard = "States.ALL"

	// ErrorTimeout identifies a task invocation that exceeded its timeout.
	ErrorTimeout = "States.Timeout"

	// ErrorTaskFailed identifies a handler failure that did not report
	// its own identifier.
	ErrorTaskFailed = "States.TaskFailed"

	// ErrorBranchFailed identifies a parallel branch failure whose inner
	// error carried no identifier of its own.
	ErrorBranchFailed = "States.BranchFailed"

	// ErrorCancelled identifies an execution stopped by external request.
	ErrorCancelled = "States.Cancelled"
)

// InvocationError is a task handler failure. Name is the identifier
// compared against Retry/Catch matchers; Cause carries the underlying
// failure.
type InvocationError struct {
	Name  string
	Cause error
}

// NewInvocationError wraps a handler error under the given identifier.
// An empty name becomes ErrorTaskFailed.
func NewInvocationError(name string, cause error) *InvocationError {
	if name == "" {
		name = ErrorTaskFailed
	}
	return &InvocationError{Name: name, Cause: cause}
}

func (e *InvocationError) Error() string {
	if e.Cause == nil {
		return e.Name
	}
	return fmt.Sprintf("%s: %v", e.Name, e.Cause)
}

func (e *InvocationError) Unwrap() error { return e.Cause }

// TimeoutError reports an exceeded deadline, either for a single task
// invocation or for the whole workflow.
type TimeoutError struct {
	Message string
}

func (e *TimeoutError) Error() string {
	if e.Message == "" {
		return "deadline exceeded"
	}
	return e.Message
}

// RetryExhaustedError wraps the final failure after the last permitted
// retry attempt. It matches Catch policies by the identifier of the
// wrapped error, so a catcher written for the original error still fires.
type RetryExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Err }

// BranchFailureError wraps the first failing branch of a Parallel state,
// by declaration order. It matches Catch policies by the identifier of
// the inner error; ErrorBranchFailed is used when the inner error has no
// identifier of its own.
type BranchFailureError struct {
	Branch int
	Err    error
}

func (e *BranchFailureError) Error() string {
	return fmt.Sprintf("branch %d failed: %v", e.Branch, e.Err)
}

func (e *BranchFailureError) Unwrap() error { return e.Err }

// CancelledError reports that the execution was stopped by an external
// cancellation request.
type CancelledError struct{}

func (e *CancelledError) Error() string { return "execution cancelled" }

// FailError is the terminal error produced by a Fail state.
type FailError struct {
	Name  string
	Cause string
}

func (e *FailError) Error() string {
	if e.Cause == "" {
		return e.Name
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Cause)
}

// ErrorNameOf extracts the identifier used for Retry/Catch matching.
// Wrapper errors (retry exhaustion, branch failure) resolve to the
// identifier of the error they wrap; untyped errors resolve to
// ErrorTaskFailed.
func ErrorNameOf(err error) string {
	var (
		invErr    *InvocationError
		toErr     *TimeoutError
		rexErr    *RetryExhaustedError
		branchErr *BranchFailureError
		cancErr   *CancelledError
		failErr   *FailError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &rexErr):
		return ErrorNameOf(rexErr.Err)
	case errors.As(err, &branchErr):
		if name := ErrorNameOf(branchErr.Err); name != ErrorTaskFailed {
			return name
		}
		return ErrorBranchFailed
	case errors.As(err, &invErr):
		return invErr.Name
	case errors.As(err, &toErr):
		return ErrorTimeout
	case errors.As(err, &cancErr):
		return ErrorCancelled
	case errors.As(err, &failErr):
		return failErr.Name
	default:
		return ErrorTaskFailed
	}
}

// ErrorCauseOf extracts the human-readable detail recorded alongside an
// identifier in history events and catch records.
func ErrorCauseOf(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// validIdentifier reports whether s looks like an error identifier a
// matcher could target. Identifiers are non-empty and contain no spaces.
func validIdentifier(s string) bool {
	return s != "" && !strings.ContainsAny(s, " \t\n")
}
