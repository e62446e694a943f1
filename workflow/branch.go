package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/fvgm-spec/disaster-recovery-agent/id"
)

// errBranchDone is the errgroup sentinel that cancels sibling branches
// as soon as any branch fails. The real per-branch error is kept aside
// so the join can pick the first failure in declared order.
var errBranchDone = errors.New("workflow: branch failed")

// runBranches forks the current payload across the state's branches and
// joins them deterministically. Every branch gets an independent child
// execution with a deep-copied payload, driven concurrently by a nested
// interpreter that shares this interpreter's invoker, clock, and sleep
// seams but has no store: children are ephemeral, and their histories
// fold into the parent at the join.
//
// Join rule: if all branches succeed, results are index-aligned to
// declaration order regardless of completion order. If any branch fails
// after its own internal retries and catches, in-flight siblings are
// cancelled and the first failing branch in declared order is reported,
// wrapped in a BranchFailureError.
func (it *Interpreter) runBranches(ctx context.Context, name string, state *State, exec *Execution) ([]json.RawMessage, []*Execution, error) {
	n := len(state.Branches)
	results := make([]json.RawMessage, n)
	children := make([]*Execution, n)
	errs := make([]error, n)

	sub := it.branchInterpreter()

	g, gctx := errgroup.WithContext(ctx)
	for i, branchDef := range state.Branches {
		child := &Execution{
			ID:           id.NewExecutionID(),
			WorkflowName: fmt.Sprintf("%s.%s[%d]", exec.WorkflowName, name, i),
			Status:       StatusRunning,
			Payload:      bytes.Clone(exec.Payload),
			StartedAt:    it.clock(),
			Deadline:     exec.Deadline,
		}
		children[i] = child

		g.Go(func() error {
			if err := sub.Run(gctx, branchDef, child); err != nil {
				errs[i] = err
				return errBranchDone
			}
			results[i] = child.Payload
			return nil
		})
	}
	_ = g.Wait()

	if ierr := it.interrupted(ctx, exec); ierr != nil {
		return nil, nil, ierr
	}

	// First failure in declared order wins. Branches that were cancelled
	// because a sibling failed first are not themselves the failure.
	var firstCancelled error
	for i, berr := range errs {
		if berr == nil {
			continue
		}
		var cancErr *CancelledError
		if errors.As(berr, &cancErr) {
			if firstCancelled == nil {
				firstCancelled = berr
			}
			continue
		}
		return nil, nil, &BranchFailureError{Branch: i, Err: berr}
	}
	if firstCancelled != nil {
		return nil, nil, firstCancelled
	}

	return results, children, nil
}

// branchInterpreter clones this interpreter for driving branch children:
// same seams, no store.
func (it *Interpreter) branchInterpreter() *Interpreter {
	return &Interpreter{
		invoker:     it.invoker,
		logger:      it.logger,
		clock:       it.clock,
		sleep:       it.sleep,
		taskTimeout: it.taskTimeout,
	}
}
