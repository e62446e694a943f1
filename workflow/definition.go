package workflow

import "encoding/json"

// StateType discriminates the variants of a State.
type StateType string

const (
	// StateTask invokes a named task handler against the current payload.
	StateTask StateType = "Task"
	// StateParallel forks the payload across concurrent branches and joins
	// their results in declaration order.
	StateParallel StateType = "Parallel"
	// StatePass transforms the payload without invoking a handler.
	StatePass StateType = "Pass"
	// StateSucceed terminates the execution successfully.
	StateSucceed StateType = "Succeed"
	// StateFail terminates the execution with an error.
	StateFail StateType = "Fail"
)

// Definition is an immutable workflow graph: a start state plus a mapping
// of named states. Definitions are validated once at registration and
// safely shared read-only across all concurrent executions.
type Definition struct {
	// Name is the unique identifier for this workflow type. Nested branch
	// definitions may leave it empty.
	Name string `json:"Name,omitempty"`

	// StartAt names the state where every execution begins.
	StartAt string `json:"StartAt"`

	// States maps each state name to its node in the graph.
	States map[string]*State `json:"States"`
}

// State is one node in a workflow graph. The Type field selects the
// variant; the remaining fields apply only to the variants noted on each.
type State struct {
	// Type selects the state variant.
	Type StateType `json:"Type"`

	// Resource names the task handler to invoke (Task only).
	Resource string `json:"Resource,omitempty"`

	// TimeoutSeconds bounds a single task invocation (Task only).
	// Zero means the engine default applies.
	TimeoutSeconds float64 `json:"TimeoutSeconds,omitempty"`

	// Branches holds the ordered sub-definitions run concurrently
	// (Parallel only, at least one).
	Branches []*Definition `json:"Branches,omitempty"`

	// Result replaces the payload when set (Pass only). When nil the
	// payload passes through unchanged.
	Result json.RawMessage `json:"Result,omitempty"`

	// Error is the error identifier reported by a Fail state. When empty
	// the state name is used.
	Error string `json:"Error,omitempty"`

	// Cause is the human-readable detail reported by a Fail state.
	Cause string `json:"Cause,omitempty"`

	// Next names the state entered after this one completes.
	// Exactly one of Next or End must be set on Task, Parallel, and Pass.
	Next string `json:"Next,omitempty"`

	// End marks this state as terminal with a successful outcome.
	End bool `json:"End,omitempty"`

	// Retry lists retry policies scanned in declared order on failure
	// (Task and Parallel only).
	Retry []RetryPolicy `json:"Retry,omitempty"`

	// Catch lists fallback transitions scanned after retries are
	// exhausted or unmatched (Task and Parallel only).
	Catch []CatchPolicy `json:"Catch,omitempty"`
}

// Terminal reports whether this state ends the execution on its own:
// Succeed and Fail always do, other states do when End is set.
func (s *State) Terminal() bool {
	return s.Type == StateSucceed || s.Type == StateFail || s.End
}

// RetryPolicy describes when and how a failed state is retried.
// Attempt counts are local to a single state entry and reset when the
// state is re-entered (for example through a loop).
type RetryPolicy struct {
	// ErrorEquals lists the error identifiers this policy matches.
	// The wildcard ErrorWildcard matches every identifier.
	ErrorEquals []string `json:"ErrorEquals"`

	// IntervalSeconds is the delay before the first retry.
	IntervalSeconds float64 `json:"IntervalSeconds"`

	// MaxAttempts caps the number of retries. Zero disables retrying
	// for matched errors.
	MaxAttempts int `json:"MaxAttempts"`

	// BackoffRate multiplies the delay after each retry.
	BackoffRate float64 `json:"BackoffRate"`
}

// CatchPolicy routes a matched error to a fallback state, recording the
// error detail in the payload at ResultPath.
type CatchPolicy struct {
	// ErrorEquals lists the error identifiers this policy matches.
	ErrorEquals []string `json:"ErrorEquals"`

	// ResultPath is where the error record is merged into the payload.
	// "$" replaces the whole payload; "$.a.b" sets a nested key.
	// Empty defaults to "$".
	ResultPath string `json:"ResultPath,omitempty"`

	// Next names the fallback state.
	Next string `json:"Next"`
}
