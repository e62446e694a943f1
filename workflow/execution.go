package workflow

import (
	"encoding/json"
	"time"

	"github.com/fvgm-spec/disaster-recovery-agent/id"
)

// Status is the lifecycle state of an execution. RUNNING is the only
// non-terminal status; the other four are absorbing.
type Status string

const (
	// StatusRunning means the interpreter is driving the execution.
	StatusRunning Status = "RUNNING"
	// StatusSucceeded means a terminal state completed without error.
	StatusSucceeded Status = "SUCCEEDED"
	// StatusFailed means a Fail state was reached or an error propagated
	// past the top level.
	StatusFailed Status = "FAILED"
	// StatusTimedOut means the workflow deadline was exceeded.
	StatusTimedOut Status = "TIMED_OUT"
	// StatusCancelled means an external cancellation request was observed.
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether the status is absorbing.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusTimedOut || s == StatusCancelled
}

// EventKind classifies a history event.
type EventKind string

const (
	// EventEntered is appended once for every state entry, before the
	// state begins processing.
	EventEntered EventKind = "ENTERED"
	// EventRetried is appended before each retry delay.
	EventRetried EventKind = "RETRIED"
	// EventCaught is appended when a catcher routes an error to a
	// fallback state.
	EventCaught EventKind = "CAUGHT"
	// EventBranched is appended when a Parallel state forks its branches.
	EventBranched EventKind = "BRANCHED"
	// EventJoined is appended when all branches of a Parallel state have
	// reached a terminal state.
	EventJoined EventKind = "JOINED"
	// EventExited is appended when a state completes successfully.
	EventExited EventKind = "EXITED"
)

// Event is one entry in an execution's append-only audit history.
// Events are totally ordered by Seq within one execution.
type Event struct {
	Seq       int       `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	State     string    `json:"state"`
	Kind      EventKind `json:"kind"`
	Detail    string    `json:"detail,omitempty"`
}

// Execution is a single run of a workflow definition from its start state
// to a terminal status. The payload and history are owned exclusively by
// the interpreter driving the execution.
type Execution struct {
	ID           id.ExecutionID  `json:"id"`
	WorkflowName string          `json:"workflow_name"`
	Status       Status          `json:"status"`
	CurrentState string          `json:"current_state,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	History      []Event         `json:"history,omitempty"`
	ErrorName    string          `json:"error_name,omitempty"`
	ErrorCause   string          `json:"error_cause,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	Deadline     time.Time       `json:"deadline"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// NewExecution creates a RUNNING execution for the named workflow with
// the given input payload and wall-clock deadline.
func NewExecution(workflowName string, input json.RawMessage, now time.Time, timeout time.Duration) *Execution {
	return &Execution{
		ID:           id.NewExecutionID(),
		WorkflowName: workflowName,
		Status:       StatusRunning,
		Payload:      input,
		StartedAt:    now,
		Deadline:     now.Add(timeout),
	}
}

// AppendEvent records a history event with the next sequence number.
func (e *Execution) AppendEvent(now time.Time, state string, kind EventKind, detail string) {
	e.History = append(e.History, Event{
		Seq:       len(e.History) + 1,
		Timestamp: now,
		State:     state,
		Kind:      kind,
		Detail:    detail,
	})
}

// Finish moves the execution to a terminal status. It is a no-op if the
// execution is already terminal, so the first terminal outcome wins.
func (e *Execution) Finish(now time.Time, status Status, errName, errCause string) {
	if e.Status.Terminal() {
		return
	}
	e.Status = status
	e.ErrorName = errName
	e.ErrorCause = errCause
	t := now
	e.CompletedAt = &t
}
