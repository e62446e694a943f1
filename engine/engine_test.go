package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	recovery "github.com/fvgm-spec/disaster-recovery-agent"
	"github.com/fvgm-spec/disaster-recovery-agent/emergency"
	"github.com/fvgm-spec/disaster-recovery-agent/engine"
	"github.com/fvgm-spec/disaster-recovery-agent/event"
	"github.com/fvgm-spec/disaster-recovery-agent/id"
	"github.com/fvgm-spec/disaster-recovery-agent/store/memory"
	"github.com/fvgm-spec/disaster-recovery-agent/triage"
	"github.com/fvgm-spec/disaster-recovery-agent/workflow"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEngine(t *testing.T, opts ...engine.Option) *engine.Engine {
	t.Helper()
	opts = append([]engine.Option{
		engine.WithStore(memory.New()),
		engine.WithLogger(testLogger()),
	}, opts...)
	eng, err := engine.New(opts...)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	return eng
}

func stopEngine(t *testing.T, eng *engine.Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := eng.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

// waitForExecution polls until the execution reaches the wanted status.
func waitForExecution(t *testing.T, eng *engine.Engine, execID id.ExecutionID, want workflow.Status) *workflow.Execution {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		exec, err := eng.Status(context.Background(), execID)
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if exec.Status == want {
			return exec
		}
		if exec.Status.Terminal() {
			t.Fatalf("execution reached %s, want %s (error %s: %s)",
				exec.Status, want, exec.ErrorName, exec.ErrorCause)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for execution %s to reach %s", execID, want)
	return nil
}

// waitForEmergency polls until the record reaches the wanted status.
func waitForEmergency(t *testing.T, eng *engine.Engine, emergencyID id.EmergencyID, want emergency.Status) *emergency.Record {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := eng.Emergency(context.Background(), emergencyID)
		if err != nil {
			t.Fatalf("Emergency: %v", err)
		}
		if rec.Status == want {
			return rec
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for emergency %s to reach %s", emergencyID, want)
	return nil
}

func recvEnvelope(t *testing.T, sub *event.Subscription, topic string) event.Envelope {
	t.Helper()
	select {
	case env, ok := <-sub.C:
		if !ok {
			t.Fatalf("subscription closed waiting for %s", topic)
		}
		if env.Topic != topic {
			t.Fatalf("envelope topic = %q, want %q", env.Topic, topic)
		}
		return env
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s envelope", topic)
	}
	return event.Envelope{}
}

// ──────────────────────────────────────────────────
// End-to-end: Register → Trigger → Succeed
// ──────────────────────────────────────────────────

type assessInput struct {
	EmergencyID string `json:"emergency_id"`
	Region      string `json:"region"`
}

type assessOutput struct {
	Severity string `json:"severity"`
	Region   string `json:"region"`
}

func TestEngine_EndToEnd_TriggerProcess(t *testing.T) {
	eng := newEngine(t)

	var gotInput atomic.Value
	err := engine.RegisterTask(eng, "assess-situation", func(_ context.Context, in assessInput) (assessOutput, error) {
		gotInput.Store(in)
		return assessOutput{Severity: "HIGH", Region: in.Region}, nil
	})
	if err != nil {
		t.Fatalf("RegisterTask: %v", err)
	}

	def, err := eng.RegisterWorkflowJSON([]byte(`{
		"Name": "flood-response",
		"StartAt": "Assess",
		"States": {
			"Assess": {"Type": "Task", "Resource": "assess-situation", "Next": "Done"},
			"Done":   {"Type": "Succeed"}
		}
	}`))
	if err != nil {
		t.Fatalf("RegisterWorkflowJSON: %v", err)
	}
	if def.Name != "flood-response" {
		t.Errorf("def.Name = %q, want %q", def.Name, "flood-response")
	}

	sub := eng.Events().Subscribe(event.TopicExecutionStarted, event.TopicExecutionSucceeded)
	defer sub.Cancel()

	exec, err := eng.Trigger(context.Background(), "flood-response", json.RawMessage(`{"emergency_id":"emg_1","region":"riverside"}`))
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if exec.WorkflowName != "flood-response" {
		t.Errorf("exec.WorkflowName = %q, want %q", exec.WorkflowName, "flood-response")
	}
	if exec.Status != workflow.StatusRunning {
		t.Errorf("exec.Status = %q, want %q", exec.Status, workflow.StatusRunning)
	}

	final := waitForExecution(t, eng, exec.ID, workflow.StatusSucceeded)

	in, _ := gotInput.Load().(assessInput)
	if in.EmergencyID != "emg_1" || in.Region != "riverside" {
		t.Errorf("task input = %+v, want emergency_id emg_1 in riverside", in)
	}

	var out assessOutput
	if err := json.Unmarshal(final.Payload, &out); err != nil {
		t.Fatalf("unmarshal final payload: %v", err)
	}
	if out.Severity != "HIGH" || out.Region != "riverside" {
		t.Errorf("final payload = %+v, want severity HIGH in riverside", out)
	}

	history, err := eng.History(context.Background(), exec.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	var exited bool
	for _, ev := range history {
		if ev.State == "Assess" && ev.Kind == workflow.EventExited {
			exited = true
		}
	}
	if !exited {
		t.Errorf("history missing EXITED event for Assess: %+v", history)
	}

	startedEnv := recvEnvelope(t, sub, event.TopicExecutionStarted)
	var started event.ExecutionEvent
	if err := json.Unmarshal(startedEnv.Payload, &started); err != nil {
		t.Fatalf("unmarshal started payload: %v", err)
	}
	if started.ExecutionID != exec.ID.String() || started.Status != string(workflow.StatusRunning) {
		t.Errorf("started event = %+v, want execution %s RUNNING", started, exec.ID)
	}

	succeededEnv := recvEnvelope(t, sub, event.TopicExecutionSucceeded)
	var succeeded event.ExecutionEvent
	if err := json.Unmarshal(succeededEnv.Payload, &succeeded); err != nil {
		t.Fatalf("unmarshal succeeded payload: %v", err)
	}
	if succeeded.Status != string(workflow.StatusSucceeded) {
		t.Errorf("succeeded event status = %q, want %q", succeeded.Status, workflow.StatusSucceeded)
	}

	stopEngine(t, eng)
}

func TestEngine_RequiresStore(t *testing.T) {
	_, err := engine.New(engine.WithLogger(testLogger()))
	if !errors.Is(err, recovery.ErrNoStore) {
		t.Fatalf("New without store = %v, want ErrNoStore", err)
	}
}

func TestEngine_TriggerUnknownWorkflow(t *testing.T) {
	eng := newEngine(t)
	_, err := eng.Trigger(context.Background(), "no-such-workflow", nil)
	if !errors.Is(err, recovery.ErrWorkflowNotFound) {
		t.Fatalf("Trigger = %v, want ErrWorkflowNotFound", err)
	}
	stopEngine(t, eng)
}

func TestEngine_TriggerAfterStop(t *testing.T) {
	eng := newEngine(t)
	stopEngine(t, eng)

	_, err := eng.Trigger(context.Background(), "flood-response", nil)
	if !errors.Is(err, recovery.ErrEngineStopped) {
		t.Fatalf("Trigger after Stop = %v, want ErrEngineStopped", err)
	}
}

// ──────────────────────────────────────────────────
// Cancellation
// ──────────────────────────────────────────────────

// registerBlockingWorkflow registers a workflow whose single task blocks
// until the returned channel is closed or the invocation is cancelled.
func registerBlockingWorkflow(t *testing.T, eng *engine.Engine, name string) (release chan struct{}, started chan struct{}) {
	t.Helper()
	release = make(chan struct{})
	started = make(chan struct{}, 16)

	err := eng.RegisterTaskFunc("hold", func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		started <- struct{}{}
		select {
		case <-release:
			return input, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	if err != nil {
		t.Fatalf("RegisterTaskFunc: %v", err)
	}

	err = eng.RegisterWorkflow(&workflow.Definition{
		Name:    name,
		StartAt: "Hold",
		States: map[string]*workflow.State{
			"Hold": {Type: workflow.StateTask, Resource: "hold", Next: "Done"},
			"Done": {Type: workflow.StateSucceed},
		},
	})
	if err != nil {
		t.Fatalf("RegisterWorkflow: %v", err)
	}
	return release, started
}

func TestEngine_CancelInFlight(t *testing.T) {
	eng := newEngine(t)
	_, started := registerBlockingWorkflow(t, eng, "long-response")

	exec, err := eng.Trigger(context.Background(), "long-response", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	<-started

	if err := eng.Cancel(context.Background(), exec.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	final := waitForExecution(t, eng, exec.ID, workflow.StatusCancelled)
	if final.ErrorName != workflow.ErrorCancelled {
		t.Errorf("ErrorName = %q, want %q", final.ErrorName, workflow.ErrorCancelled)
	}

	stopEngine(t, eng)
}

func TestEngine_CancelStored(t *testing.T) {
	eng := newEngine(t)

	// An execution left RUNNING by another process: present in the store
	// but not in-flight here.
	exec := workflow.NewExecution("orphan-response", json.RawMessage(`{}`), time.Now(), 30*time.Minute)
	if err := eng.Store().CreateExecution(context.Background(), exec); err != nil {
		t.Fatalf("CreateExecution: %v", err)
	}

	if err := eng.Cancel(context.Background(), exec.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	got, err := eng.Status(context.Background(), exec.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if got.Status != workflow.StatusCancelled {
		t.Errorf("Status = %q, want %q", got.Status, workflow.StatusCancelled)
	}
	if got.ErrorName != workflow.ErrorCancelled {
		t.Errorf("ErrorName = %q, want %q", got.ErrorName, workflow.ErrorCancelled)
	}

	err = eng.Cancel(context.Background(), exec.ID)
	if !errors.Is(err, recovery.ErrExecutionTerminal) {
		t.Fatalf("second Cancel = %v, want ErrExecutionTerminal", err)
	}

	stopEngine(t, eng)
}

// ──────────────────────────────────────────────────
// Report: triage → route → respond → resolve
// ──────────────────────────────────────────────────

func TestEngine_ReportRoutesAndResolves(t *testing.T) {
	eng := newEngine(t)

	var gotEmergencyID atomic.Value
	err := engine.RegisterTask(eng, "assess-situation", func(_ context.Context, in map[string]any) (map[string]any, error) {
		if v, ok := in["emergency_id"].(string); ok {
			gotEmergencyID.Store(v)
		}
		in["assessed"] = true
		return in, nil
	})
	if err != nil {
		t.Fatalf("RegisterTask: %v", err)
	}
	err = eng.RegisterWorkflow(&workflow.Definition{
		Name:    "natural-disaster-response",
		StartAt: "Assess",
		States: map[string]*workflow.State{
			"Assess": {Type: workflow.StateTask, Resource: "assess-situation", Next: "Done"},
			"Done":   {Type: workflow.StateSucceed},
		},
	})
	if err != nil {
		t.Fatalf("RegisterWorkflow: %v", err)
	}

	sub := eng.Events().Subscribe(event.TopicEmergencyReported, event.TopicEmergencyUpdated)
	defer sub.Cancel()

	rec, err := eng.Report(context.Background(), triage.Report{
		Description:       "severe flood near the river district",
		Location:          "Springfield",
		ImpactScore:       4,
		UrgencyScore:      4,
		AffectedResources: []string{"pumping-station-7"},
		ReporterContact:   "ops@example.com",
	})
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if rec.Type != triage.TypeNaturalDisaster {
		t.Errorf("rec.Type = %q, want %q", rec.Type, triage.TypeNaturalDisaster)
	}
	if rec.Status != emergency.StatusResponding {
		t.Errorf("rec.Status = %q, want %q", rec.Status, emergency.StatusResponding)
	}
	if rec.ExecutionID.IsNil() {
		t.Fatal("rec.ExecutionID is nil, want linked execution")
	}

	reportedEnv := recvEnvelope(t, sub, event.TopicEmergencyReported)
	var reported event.EmergencyEvent
	if err := json.Unmarshal(reportedEnv.Payload, &reported); err != nil {
		t.Fatalf("unmarshal reported payload: %v", err)
	}
	if reported.EmergencyID != rec.ID.String() || reported.Status != string(emergency.StatusResponding) {
		t.Errorf("reported event = %+v, want emergency %s RESPONDING", reported, rec.ID)
	}

	final := waitForEmergency(t, eng, rec.ID, emergency.StatusResolved)
	if final.ExecutionID != rec.ExecutionID {
		t.Errorf("ExecutionID = %s, want %s", final.ExecutionID, rec.ExecutionID)
	}
	waitForExecution(t, eng, rec.ExecutionID, workflow.StatusSucceeded)

	if got, _ := gotEmergencyID.Load().(string); got != rec.ID.String() {
		t.Errorf("workflow input emergency_id = %q, want %q", got, rec.ID)
	}

	updatedEnv := recvEnvelope(t, sub, event.TopicEmergencyUpdated)
	var updated event.EmergencyEvent
	if err := json.Unmarshal(updatedEnv.Payload, &updated); err != nil {
		t.Fatalf("unmarshal updated payload: %v", err)
	}
	if updated.Status != string(emergency.StatusResolved) {
		t.Errorf("updated event status = %q, want %q", updated.Status, emergency.StatusResolved)
	}

	report, err := eng.SituationReport(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("SituationReport: %v", err)
	}
	if report == "" {
		t.Error("SituationReport returned empty text")
	}

	stopEngine(t, eng)
}

func TestEngine_ReportFailedResponseMarksFailed(t *testing.T) {
	eng := newEngine(t)

	err := eng.RegisterTaskFunc("assess-situation", func(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
		return nil, errors.New("responders unavailable")
	})
	if err != nil {
		t.Fatalf("RegisterTaskFunc: %v", err)
	}
	err = eng.RegisterWorkflow(&workflow.Definition{
		Name:    "natural-disaster-response",
		StartAt: "Assess",
		States: map[string]*workflow.State{
			"Assess": {Type: workflow.StateTask, Resource: "assess-situation", End: true},
		},
	})
	if err != nil {
		t.Fatalf("RegisterWorkflow: %v", err)
	}

	rec, err := eng.Report(context.Background(), triage.Report{
		Description: "flood in the basement levels",
	})
	if err != nil {
		t.Fatalf("Report: %v", err)
	}

	waitForEmergency(t, eng, rec.ID, emergency.StatusFailed)
	exec, err := eng.Status(context.Background(), rec.ExecutionID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if exec.Status != workflow.StatusFailed {
		t.Errorf("execution status = %q, want %q", exec.Status, workflow.StatusFailed)
	}

	stopEngine(t, eng)
}

func TestEngine_ReportUnmappedType(t *testing.T) {
	eng := newEngine(t)

	rec, err := eng.Report(context.Background(), triage.Report{
		Description: "cat stuck in a tree on elm street",
	})
	if !errors.Is(err, recovery.ErrNoWorkflowForType) {
		t.Fatalf("Report = %v, want ErrNoWorkflowForType", err)
	}
	if rec == nil {
		t.Fatal("Report returned nil record alongside ErrNoWorkflowForType")
	}
	if rec.Type != triage.TypeGeneralEmergency {
		t.Errorf("rec.Type = %q, want %q", rec.Type, triage.TypeGeneralEmergency)
	}
	if rec.Status != emergency.StatusInitiated {
		t.Errorf("rec.Status = %q, want %q", rec.Status, emergency.StatusInitiated)
	}

	// The record is persisted even though no response launched.
	got, err := eng.Emergency(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("Emergency: %v", err)
	}
	if !got.ExecutionID.IsNil() {
		t.Errorf("ExecutionID = %s, want nil", got.ExecutionID)
	}

	stopEngine(t, eng)
}

// ──────────────────────────────────────────────────
// Resume after restart
// ──────────────────────────────────────────────────

func TestEngine_ResumeAll(t *testing.T) {
	st := memory.New()

	// Seed the store the way a crashed process would leave it: a RUNNING
	// execution mid-workflow and its RESPONDING emergency record.
	exec := workflow.NewExecution("natural-disaster-response", json.RawMessage(`{"region":"riverside"}`), time.Now(), 30*time.Minute)
	exec.CurrentState = "Notify"
	if err := st.CreateExecution(context.Background(), exec); err != nil {
		t.Fatalf("CreateExecution: %v", err)
	}

	rep, err := triage.DecodeReport([]byte(`{"description":"severe flood near the river district"}`))
	if err != nil {
		t.Fatalf("DecodeReport: %v", err)
	}
	rec := emergency.NewRecord(rep, triage.Assess(rep), time.Now())
	rec.LinkExecution(exec.ID, time.Now())
	rec.SetStatus(emergency.StatusResponding, time.Now())
	if err := st.CreateEmergency(context.Background(), rec); err != nil {
		t.Fatalf("CreateEmergency: %v", err)
	}

	eng := newEngine(t, engine.WithStore(st))

	var notified atomic.Bool
	err = eng.RegisterTaskFunc("notify-responders", func(_ context.Context, input json.RawMessage) (json.RawMessage, error) {
		notified.Store(true)
		return input, nil
	})
	if err != nil {
		t.Fatalf("RegisterTaskFunc: %v", err)
	}
	err = eng.RegisterWorkflow(&workflow.Definition{
		Name:    "natural-disaster-response",
		StartAt: "Assess",
		States: map[string]*workflow.State{
			"Assess": {Type: workflow.StatePass, Next: "Notify"},
			"Notify": {Type: workflow.StateTask, Resource: "notify-responders", Next: "Done"},
			"Done":   {Type: workflow.StateSucceed},
		},
	})
	if err != nil {
		t.Fatalf("RegisterWorkflow: %v", err)
	}

	if err := eng.ResumeAll(context.Background()); err != nil {
		t.Fatalf("ResumeAll: %v", err)
	}

	waitForExecution(t, eng, exec.ID, workflow.StatusSucceeded)
	if !notified.Load() {
		t.Error("resumed execution never ran the Notify task")
	}
	waitForEmergency(t, eng, rec.ID, emergency.StatusResolved)

	stopEngine(t, eng)
}

// ──────────────────────────────────────────────────
// Admission limits
// ──────────────────────────────────────────────────

func TestEngine_AdmissionLimit(t *testing.T) {
	cfg := recovery.DefaultConfig()
	cfg.MaxConcurrent = 1

	eng := newEngine(t, engine.WithConfig(cfg))
	release, started := registerBlockingWorkflow(t, eng, "long-response")

	first, err := eng.Trigger(context.Background(), "long-response", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("first Trigger: %v", err)
	}
	<-started

	_, err = eng.Trigger(context.Background(), "long-response", json.RawMessage(`{}`))
	if !errors.Is(err, recovery.ErrLimitExceeded) {
		t.Fatalf("second Trigger = %v, want ErrLimitExceeded", err)
	}

	close(release)
	waitForExecution(t, eng, first.ID, workflow.StatusSucceeded)

	// The slot frees once the first execution settles.
	deadline := time.Now().Add(5 * time.Second)
	for {
		_, err = eng.Trigger(context.Background(), "long-response", json.RawMessage(`{}`))
		if err == nil {
			break
		}
		if !errors.Is(err, recovery.ErrLimitExceeded) {
			t.Fatalf("Trigger after release = %v", err)
		}
		if !time.Now().Before(deadline) {
			t.Fatal("admission slot never freed after execution finished")
		}
		time.Sleep(10 * time.Millisecond)
	}

	stopEngine(t, eng)
}

// ──────────────────────────────────────────────────
// Shutdown
// ──────────────────────────────────────────────────

func TestEngine_StopDrainsInFlight(t *testing.T) {
	eng := newEngine(t)
	release, started := registerBlockingWorkflow(t, eng, "long-response")

	exec, err := eng.Trigger(context.Background(), "long-response", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	<-started

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(release)
	}()

	stopEngine(t, eng)

	got, err := eng.Status(context.Background(), exec.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if got.Status != workflow.StatusSucceeded {
		t.Errorf("Status after Stop = %q, want %q", got.Status, workflow.StatusSucceeded)
	}
}

func TestEngine_StopDeadlineCancelsInFlight(t *testing.T) {
	eng := newEngine(t)
	_, started := registerBlockingWorkflow(t, eng, "long-response")

	exec, err := eng.Trigger(context.Background(), "long-response", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := eng.Stop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Stop = %v, want DeadlineExceeded", err)
	}

	// The forced cancel still drives the execution to a terminal status.
	deadline := time.Now().Add(5 * time.Second)
	for {
		got, err := eng.Status(context.Background(), exec.ID)
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if got.Status.Terminal() {
			if got.Status != workflow.StatusCancelled {
				t.Errorf("Status = %q, want %q", got.Status, workflow.StatusCancelled)
			}
			break
		}
		if !time.Now().Before(deadline) {
			t.Fatal("execution never reached a terminal status after forced stop")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
