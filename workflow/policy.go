package workflow

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/fvgm-spec/disaster-recovery-agent/backoff"
)

// Action is the outcome of resolving a failure against a state's policies.
type Action string

const (
	// ActionRetry re-invokes the state after a delay.
	ActionRetry Action = "retry"
	// ActionCatch merges the error into the payload and transitions to a
	// fallback state.
	ActionCatch Action = "catch"
	// ActionPropagate fails the state; the error bubbles to the enclosing
	// state or, at the top level, fails the execution.
	ActionPropagate Action = "propagate"
)

// Decision is the resolved action for one failure. Retrier and Delay are
// set for ActionRetry; Catcher is set for ActionCatch.
type Decision struct {
	Action  Action
	Retrier int
	Delay   time.Duration
	Catcher *CatchPolicy
}

// ResolveFailure applies a state's Retry and Catch policies to a failure,
// in that precedence. attempts holds the number of retries already taken
// under each retrier during this state entry, index-aligned with
// State.Retry.
//
// Retriers are scanned in declared order; the first that matches the
// identifier and still has attempts left wins, with delay
// IntervalSeconds * BackoffRate^(n-1) for retry number n. Catchers are
// scanned next, first match winning. The function is pure: the caller
// increments the attempt counter when it acts on an ActionRetry decision.
func ResolveFailure(s *State, errName string, attempts []int) Decision {
	for i, r := range s.Retry {
		if !Matches(r.ErrorEquals, errName) {
			continue
		}
		if attempts[i] >= r.MaxAttempts {
			continue
		}
		strategy := backoff.NewExponential(secondsToDuration(r.IntervalSeconds), r.BackoffRate, 0)
		return Decision{
			Action:  ActionRetry,
			Retrier: i,
			Delay:   strategy.Delay(attempts[i] + 1),
		}
	}

	for i := range s.Catch {
		if Matches(s.Catch[i].ErrorEquals, errName) {
			return Decision{Action: ActionCatch, Catcher: &s.Catch[i]}
		}
	}

	return Decision{Action: ActionPropagate}
}

// Matches reports whether an ErrorEquals list matches the identifier.
// The wildcard matches every identifier.
func Matches(errorEquals []string, errName string) bool {
	return slices.Contains(errorEquals, ErrorWildcard) || slices.Contains(errorEquals, errName)
}

// exhaustedRetries reports whether a retrier matching errName ran out of
// attempts after at least one retry, and how many retries it took. Used
// to wrap the final failure in a RetryExhaustedError.
func exhaustedRetries(s *State, errName string, attempts []int) (int, bool) {
	for i, r := range s.Retry {
		if !Matches(r.ErrorEquals, errName) {
			continue
		}
		if attempts[i] > 0 && attempts[i] >= r.MaxAttempts {
			return attempts[i], true
		}
	}
	return 0, false
}

// MergeErrorAt merges an {"error", "cause"} record into the payload at
// the given result path. "$" (or empty) replaces the whole payload;
// "$.a.b" sets a nested key, creating intermediate objects as needed.
func MergeErrorAt(payload json.RawMessage, path, errName, cause string) (json.RawMessage, error) {
	record := map[string]string{"error": errName, "cause": cause}
	return mergeAt(payload, path, record)
}

func mergeAt(payload json.RawMessage, path string, value any) (json.RawMessage, error) {
	segments, err := parseResultPath(path)
	if err != nil {
		return nil, err
	}

	if len(segments) == 0 {
		out, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("workflow: merge at %q: %w", path, err)
		}
		return out, nil
	}

	// A non-object payload cannot hold a nested key; start fresh.
	root := map[string]any{}
	if len(payload) > 0 {
		_ = json.Unmarshal(payload, &root)
	}

	node := root
	for _, seg := range segments[:len(segments)-1] {
		child, ok := node[seg].(map[string]any)
		if !ok {
			child = map[string]any{}
			node[seg] = child
		}
		node = child
	}
	node[segments[len(segments)-1]] = value

	out, err := json.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("workflow: merge at %q: %w", path, err)
	}
	return out, nil
}

// parseResultPath splits a result path into its key segments. "$" and ""
// mean the payload root and yield no segments. Anything else must be
// "$." followed by dot-separated non-empty keys.
func parseResultPath(path string) ([]string, error) {
	if path == "" || path == "$" {
		return nil, nil
	}
	rest, ok := strings.CutPrefix(path, "$.")
	if !ok {
		return nil, fmt.Errorf("workflow: result path %q must start with $", path)
	}
	segments := strings.Split(rest, ".")
	for _, seg := range segments {
		if seg == "" {
			return nil, fmt.Errorf("workflow: result path %q has an empty segment", path)
		}
	}
	return segments, nil
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
