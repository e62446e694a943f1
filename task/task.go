package task

import (
	"encoding/json"
	"time"

	"github.com/fvgm-spec/disaster-recovery-agent/workflow"
)

// Invocation is one task call passing through the middleware chain.
type Invocation struct {
	// Resource is the task name the workflow state referenced.
	Resource string

	// Input is the execution payload handed to the handler.
	Input json.RawMessage

	// Timeout is the invocation deadline the interpreter applied.
	Timeout time.Duration
}

// Fail reports a handler failure under the given error identifier, which
// Retry and Catch matchers in workflow definitions can target:
//
//	return task.Fail("DatabaseUnavailable", err)
//
// Handlers that return a plain error are reported as States.TaskFailed.
func Fail(name string, cause error) error {
	return workflow.NewInvocationError(name, cause)
}
