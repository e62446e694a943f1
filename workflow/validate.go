package workflow

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Violation is one problem found in a workflow definition. State names
// the offending state, prefixed with the branch path for states inside
// Parallel branches (for example "Stabilize[1].Notify"). Definition-level
// problems leave State empty.
type Violation struct {
	State  string `json:"state,omitempty"`
	Reason string `json:"reason"`
}

// ValidationError reports every violation found in a definition, not just
// the first, so authors see all problems at once. Violations are ordered
// deterministically (by state, then reason): validating the same
// definition twice yields identical results.
type ValidationError struct {
	Workflow   string
	Violations []Violation
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	if e.Workflow != "" {
		fmt.Fprintf(&b, "workflow %q: ", e.Workflow)
	}
	fmt.Fprintf(&b, "%d validation violation(s)", len(e.Violations))
	for _, v := range e.Violations {
		b.WriteString("; ")
		if v.State != "" {
			fmt.Fprintf(&b, "%s: ", v.State)
		}
		b.WriteString(v.Reason)
	}
	return b.String()
}

// Validate statically checks a definition: the start state exists, every
// transition resolves, every state is reachable, branches are themselves
// well-formed, and policy fields are within bounds. It is pure and
// idempotent. Returns nil or a *ValidationError.
func Validate(def *Definition) error {
	v := &validator{}
	v.definition("", def)

	if len(v.violations) == 0 {
		return nil
	}

	sort.Slice(v.violations, func(i, j int) bool {
		a, b := v.violations[i], v.violations[j]
		if a.State != b.State {
			return a.State < b.State
		}
		return a.Reason < b.Reason
	})

	return &ValidationError{Workflow: def.Name, Violations: v.violations}
}

type validator struct {
	violations []Violation
}

func (v *validator) addf(state, format string, args ...any) {
	v.violations = append(v.violations, Violation{State: state, Reason: fmt.Sprintf(format, args...)})
}

// definition validates one graph. prefix is empty at the top level and
// "Parent[i]." inside branch i of Parallel state Parent.
func (v *validator) definition(prefix string, def *Definition) {
	label := strings.TrimSuffix(prefix, ".")

	if len(def.States) == 0 {
		v.addf(label, "at least one state is required")
		return
	}

	switch {
	case def.StartAt == "":
		v.addf(label, "StartAt is required")
	default:
		if _, ok := def.States[def.StartAt]; !ok {
			v.addf(label, "start state %q is not defined", def.StartAt)
		}
	}

	for _, name := range sortedStateNames(def) {
		v.state(prefix, def, name, def.States[name])
	}

	v.reachability(prefix, def)
}

func (v *validator) state(prefix string, def *Definition, name string, s *State) {
	full := prefix + name

	if s == nil {
		v.addf(full, "state is null")
		return
	}

	switch s.Type {
	case StateTask:
		if s.Resource == "" {
			v.addf(full, "Task state requires a Resource")
		}
		if s.TimeoutSeconds < 0 {
			v.addf(full, "TimeoutSeconds must not be negative")
		}
		v.transition(full, def, s)
		v.policies(full, def, s)

	case StateParallel:
		if len(s.Branches) == 0 {
			v.addf(full, "Parallel state requires at least one branch")
		}
		for i, branch := range s.Branches {
			v.definition(fmt.Sprintf("%s%s[%d].", prefix, name, i), branch)
		}
		v.transition(full, def, s)
		v.policies(full, def, s)

	case StatePass:
		v.transition(full, def, s)
		if len(s.Retry) > 0 || len(s.Catch) > 0 {
			v.addf(full, "Retry and Catch are only allowed on Task and Parallel states")
		}

	case StateSucceed, StateFail:
		if s.Next != "" {
			v.addf(full, "terminal state cannot have a Next")
		}
		if s.End {
			v.addf(full, "terminal state cannot set End")
		}
		if len(s.Retry) > 0 || len(s.Catch) > 0 {
			v.addf(full, "Retry and Catch are only allowed on Task and Parallel states")
		}

	default:
		v.addf(full, "unknown state type %q", string(s.Type))
	}
}

func (v *validator) transition(full string, def *Definition, s *State) {
	hasNext := s.Next != ""
	if hasNext == s.End {
		v.addf(full, "exactly one of Next or End is required")
		return
	}
	if hasNext {
		if _, ok := def.States[s.Next]; !ok {
			v.addf(full, "Next %q is not defined", s.Next)
		}
	}
}

func (v *validator) policies(full string, def *Definition, s *State) {
	for i, r := range s.Retry {
		v.matchers(full, fmt.Sprintf("retrier %d", i), r.ErrorEquals, i == len(s.Retry)-1)
		if r.IntervalSeconds <= 0 {
			v.addf(full, "retrier %d: IntervalSeconds must be positive", i)
		}
		if r.MaxAttempts < 0 {
			v.addf(full, "retrier %d: MaxAttempts must not be negative", i)
		}
		if r.BackoffRate < 1 {
			v.addf(full, "retrier %d: BackoffRate must be at least 1", i)
		}
	}

	for i, c := range s.Catch {
		v.matchers(full, fmt.Sprintf("catcher %d", i), c.ErrorEquals, i == len(s.Catch)-1)
		switch {
		case c.Next == "":
			v.addf(full, "catcher %d: Next is required", i)
		default:
			if _, ok := def.States[c.Next]; !ok {
				v.addf(full, "catcher %d: Next %q is not defined", i, c.Next)
			}
		}
		if c.ResultPath != "" {
			if _, err := parseResultPath(c.ResultPath); err != nil {
				v.addf(full, "catcher %d: invalid ResultPath %q", i, c.ResultPath)
			}
		}
	}
}

// matchers checks one ErrorEquals list. The wildcard must appear alone
// and only in the last policy of its list, so that declared order alone
// decides matching and the wildcard is always tried last.
func (v *validator) matchers(full, policy string, errorEquals []string, last bool) {
	if len(errorEquals) == 0 {
		v.addf(full, "%s: ErrorEquals must not be empty", policy)
		return
	}

	for _, m := range errorEquals {
		if !validIdentifier(m) {
			v.addf(full, "%s: invalid error matcher %q", policy, m)
		}
	}

	if slices.Contains(errorEquals, ErrorWildcard) {
		if len(errorEquals) > 1 {
			v.addf(full, "%s: %s must be the only matcher in its list", policy, ErrorWildcard)
		}
		if !last {
			v.addf(full, "%s: %s is only allowed in the last policy of its list", policy, ErrorWildcard)
		}
	}
}

// reachability walks the graph from the start state over Next and
// catcher transitions, reporting unreachable states and a graph with no
// reachable terminal.
func (v *validator) reachability(prefix string, def *Definition) {
	if def.StartAt == "" {
		return
	}
	if _, ok := def.States[def.StartAt]; !ok {
		return
	}

	reachable := map[string]bool{}
	queue := []string{def.StartAt}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if reachable[name] {
			continue
		}
		reachable[name] = true

		s := def.States[name]
		if s == nil {
			continue
		}
		if s.Next != "" {
			if _, ok := def.States[s.Next]; ok {
				queue = append(queue, s.Next)
			}
		}
		for _, c := range s.Catch {
			if _, ok := def.States[c.Next]; ok {
				queue = append(queue, c.Next)
			}
		}
	}

	terminal := false
	for _, name := range sortedStateNames(def) {
		if !reachable[name] {
			v.addf(prefix+name, "unreachable from the start state")
			continue
		}
		if s := def.States[name]; s != nil && s.Terminal() {
			terminal = true
		}
	}
	if !terminal {
		v.addf(strings.TrimSuffix(prefix, "."), "no terminal state is reachable from the start state")
	}
}

func sortedStateNames(def *Definition) []string {
	names := make([]string, 0, len(def.States))
	for name := range def.States {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
