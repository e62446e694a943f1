package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	recovery "github.com/fvgm-spec/disaster-recovery-agent"
	"github.com/fvgm-spec/disaster-recovery-agent/emergency"
	"github.com/fvgm-spec/disaster-recovery-agent/event"
	"github.com/fvgm-spec/disaster-recovery-agent/id"
	"github.com/fvgm-spec/disaster-recovery-agent/workflow"
)

// Trigger starts an execution of the named workflow with the given input
// payload. The execution is persisted and driven on a background
// goroutine; the returned Execution is a snapshot at creation time.
func (eng *Engine) Trigger(ctx context.Context, workflowName string, input json.RawMessage) (*workflow.Execution, error) {
	exec, launch, err := eng.prepare(ctx, workflowName, input)
	if err != nil {
		return nil, err
	}
	launch(id.Nil)
	return exec, nil
}

// prepare admits and persists a new execution and returns it with a
// launch function. Separating the two lets Report link the execution to
// its emergency record before the run can reach a terminal status.
func (eng *Engine) prepare(ctx context.Context, workflowName string, input json.RawMessage) (*workflow.Execution, func(id.EmergencyID), error) {
	eng.mu.Lock()
	stopped := eng.stopped
	eng.mu.Unlock()
	if stopped {
		return nil, nil, recovery.ErrEngineStopped
	}

	def, ok := eng.registry.Get(workflowName)
	if !ok {
		return nil, nil, fmt.Errorf("engine: workflow %q: %w", workflowName, recovery.ErrWorkflowNotFound)
	}

	if err := eng.admission.Admit(workflowName); err != nil {
		return nil, nil, err
	}

	exec := workflow.NewExecution(workflowName, input, time.Now().UTC(), eng.config.WorkflowTimeout)
	if err := eng.store.CreateExecution(ctx, exec); err != nil {
		eng.admission.Release(workflowName)
		return nil, nil, fmt.Errorf("engine: create execution: %w", err)
	}

	eng.logger.Info("execution triggered",
		"execution_id", exec.ID.String(),
		"workflow", workflowName,
	)
	eng.publishExecution(ctx, event.TopicExecutionStarted, exec)

	// The caller gets a snapshot; the run goroutine owns the live copy.
	snap := *exec
	snap.History = append([]workflow.Event(nil), exec.History...)
	return &snap, func(emergencyID id.EmergencyID) {
		eng.launch(def, exec, emergencyID)
	}, nil
}

// launch drives exec to a terminal status on its own goroutine. The run
// context is detached from the trigger context so an HTTP request ending
// does not cancel the response workflow.
func (eng *Engine) launch(def *workflow.Definition, exec *workflow.Execution, emergencyID id.EmergencyID) {
	runCtx, cancel := context.WithCancel(context.Background())

	eng.mu.Lock()
	eng.running[exec.ID.String()] = &runHandle{cancel: cancel, emergencyID: emergencyID}
	eng.mu.Unlock()

	eng.wg.Add(1)
	go func() {
		defer eng.wg.Done()
		defer cancel()
		defer eng.admission.Release(exec.WorkflowName)

		runCtx = recovery.WithExecutionInfo(runCtx, recovery.ExecutionInfo{
			ExecutionID: exec.ID,
			Workflow:    exec.WorkflowName,
		})

		// The interpreter persists the terminal status itself; the
		// returned error is already folded into the execution.
		_ = eng.interp.Run(runCtx, def, exec)

		eng.mu.Lock()
		delete(eng.running, exec.ID.String())
		eng.mu.Unlock()

		eng.settle(context.WithoutCancel(runCtx), exec, emergencyID)
	}()
}

// settle publishes the terminal lifecycle event and closes out the
// linked emergency record, if any.
func (eng *Engine) settle(ctx context.Context, exec *workflow.Execution, emergencyID id.EmergencyID) {
	if topic := topicForStatus(exec.Status); topic != "" {
		eng.publishExecution(ctx, topic, exec)
	}
	if emergencyID.IsNil() {
		return
	}

	rec, err := eng.store.GetEmergency(ctx, emergencyID)
	if err != nil {
		eng.logger.Error("load emergency for settlement",
			"emergency_id", emergencyID.String(),
			"error", err.Error(),
		)
		return
	}

	status := emergency.StatusResolved
	if exec.Status != workflow.StatusSucceeded {
		status = emergency.StatusFailed
	}
	rec.SetStatus(status, time.Now().UTC())
	if err := eng.store.UpdateEmergency(ctx, rec); err != nil {
		eng.logger.Error("update emergency status",
			"emergency_id", emergencyID.String(),
			"error", err.Error(),
		)
		return
	}
	eng.publishEmergency(ctx, event.TopicEmergencyUpdated, rec)

	eng.logger.Info("emergency settled",
		"emergency_id", rec.ID.String(),
		"status", string(rec.Status),
		"execution_id", exec.ID.String(),
	)
}

// Status returns the current state of an execution.
func (eng *Engine) Status(ctx context.Context, execID id.ExecutionID) (*workflow.Execution, error) {
	return eng.store.GetExecution(ctx, execID)
}

// History returns the ordered audit trail of an execution.
func (eng *Engine) History(ctx context.Context, execID id.ExecutionID) ([]workflow.Event, error) {
	exec, err := eng.store.GetExecution(ctx, execID)
	if err != nil {
		return nil, err
	}
	return exec.History, nil
}

// List returns executions matching opts, newest first.
func (eng *Engine) List(ctx context.Context, opts workflow.ListOpts) ([]*workflow.Execution, error) {
	return eng.store.ListExecutions(ctx, opts)
}

// Cancel stops an execution. A run in flight in this process observes
// the cancellation at its next suspension point; an execution not in
// flight here is marked CANCELLED directly in the store if still
// RUNNING.
func (eng *Engine) Cancel(ctx context.Context, execID id.ExecutionID) error {
	eng.mu.Lock()
	handle, ok := eng.running[execID.String()]
	eng.mu.Unlock()
	if ok {
		handle.cancel()
		eng.logger.Info("execution cancel requested", "execution_id", execID.String())
		return nil
	}

	exec, err := eng.store.GetExecution(ctx, execID)
	if err != nil {
		return err
	}
	if exec.Status.Terminal() {
		return fmt.Errorf("engine: execution %s is %s: %w", execID, exec.Status, recovery.ErrExecutionTerminal)
	}

	exec.Finish(time.Now().UTC(), workflow.StatusCancelled, workflow.ErrorCancelled, "execution cancelled")
	if err := eng.store.UpdateExecution(ctx, exec); err != nil {
		return fmt.Errorf("engine: cancel execution: %w", err)
	}
	eng.publishExecution(ctx, event.TopicExecutionCancelled, exec)
	eng.logger.Info("execution cancelled in store", "execution_id", execID.String())
	return nil
}

// ResumeAll re-drives every RUNNING execution from its recorded current
// state, honoring the original deadline. Called at startup for crash
// recovery. Executions whose workflow is no longer registered, or that
// admission rejects, are left RUNNING in the store and logged.
func (eng *Engine) ResumeAll(ctx context.Context) error {
	execs, err := eng.store.ListExecutions(ctx, workflow.ListOpts{Status: workflow.StatusRunning})
	if err != nil {
		return fmt.Errorf("engine: list running executions: %w", err)
	}
	if len(execs) == 0 {
		return nil
	}

	links := eng.respondingLinks(ctx)

	for _, exec := range execs {
		def, ok := eng.registry.Get(exec.WorkflowName)
		if !ok {
			eng.logger.Error("cannot resume execution, workflow not registered",
				"execution_id", exec.ID.String(),
				"workflow", exec.WorkflowName,
			)
			continue
		}
		if admitErr := eng.admission.Admit(exec.WorkflowName); admitErr != nil {
			eng.logger.Warn("resume rejected by admission",
				"execution_id", exec.ID.String(),
				"workflow", exec.WorkflowName,
				"error", admitErr.Error(),
			)
			continue
		}

		eng.logger.Info("resuming execution",
			"execution_id", exec.ID.String(),
			"workflow", exec.WorkflowName,
			"state", exec.CurrentState,
		)
		eng.launch(def, exec, links[exec.ID.String()])
	}
	return nil
}

// respondingLinks rebuilds the execution → emergency linkage for resumed
// runs from RESPONDING records, so settlement still closes them out
// after a restart.
func (eng *Engine) respondingLinks(ctx context.Context) map[string]id.EmergencyID {
	recs, err := eng.store.ListEmergencies(ctx, emergency.ListOpts{Status: emergency.StatusResponding})
	if err != nil {
		eng.logger.Warn("list responding emergencies", "error", err.Error())
		return nil
	}
	links := make(map[string]id.EmergencyID, len(recs))
	for _, rec := range recs {
		if !rec.ExecutionID.IsNil() {
			links[rec.ExecutionID.String()] = rec.ID
		}
	}
	return links
}

func (eng *Engine) publishExecution(ctx context.Context, topic string, exec *workflow.Execution) {
	_, err := eng.bus.Publish(ctx, topic, event.ExecutionEvent{
		ExecutionID: exec.ID.String(),
		Workflow:    exec.WorkflowName,
		Status:      string(exec.Status),
		ErrorName:   exec.ErrorName,
		ErrorCause:  exec.ErrorCause,
	})
	if err != nil {
		eng.logger.Warn("publish execution event", "topic", topic, "error", err.Error())
	}
}

func (eng *Engine) publishEmergency(ctx context.Context, topic string, rec *emergency.Record) {
	_, err := eng.bus.Publish(ctx, topic, event.EmergencyEvent{
		EmergencyID: rec.ID.String(),
		Type:        string(rec.Type),
		Severity:    string(rec.Severity),
		Status:      string(rec.Status),
	})
	if err != nil {
		eng.logger.Warn("publish emergency event", "topic", topic, "error", err.Error())
	}
}

func topicForStatus(status workflow.Status) string {
	switch status {
	case workflow.StatusSucceeded:
		return event.TopicExecutionSucceeded
	case workflow.StatusFailed:
		return event.TopicExecutionFailed
	case workflow.StatusTimedOut:
		return event.TopicExecutionTimedOut
	case workflow.StatusCancelled:
		return event.TopicExecutionCancelled
	default:
		return ""
	}
}
