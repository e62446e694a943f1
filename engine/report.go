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
	"github.com/fvgm-spec/disaster-recovery-agent/triage"
	"github.com/fvgm-spec/disaster-recovery-agent/workflow"
)

// Report triages an incoming emergency report, persists a record for it and
// routes it to the response workflow mapped to its classified type.
//
// The record is created in every case except a store failure, so Report can
// return both a record and an error: an unmapped type yields the record plus
// recovery.ErrNoWorkflowForType, and a routing failure (unknown workflow,
// admission denied, execution not persisted) yields the record plus the
// routing error. Callers that only care about intake can keep the record and
// surface the error separately.
func (eng *Engine) Report(ctx context.Context, rep triage.Report) (*emergency.Record, error) {
	now := time.Now().UTC()
	rec := emergency.NewRecord(rep, triage.Assess(rep), now)

	if err := eng.store.CreateEmergency(ctx, rec); err != nil {
		return nil, fmt.Errorf("engine: create emergency: %w", err)
	}
	eng.logger.Info("emergency reported",
		"emergency_id", rec.ID.String(),
		"type", string(rec.Type),
		"severity", string(rec.Severity),
		"priority", rec.Priority,
	)

	workflowName := eng.config.WorkflowMapping[string(rec.Type)]
	if workflowName == "" {
		eng.publishEmergency(ctx, event.TopicEmergencyReported, rec)
		return rec, fmt.Errorf("engine: emergency type %s: %w", rec.Type, recovery.ErrNoWorkflowForType)
	}

	input, err := json.Marshal(map[string]any{
		"emergency_id":       rec.ID.String(),
		"emergency_type":     rec.Type,
		"severity":           rec.Severity,
		"location":           rec.Location,
		"timestamp":          rec.CreatedAt.Format(time.RFC3339),
		"affected_resources": rec.AffectedResources,
	})
	if err != nil {
		eng.publishEmergency(ctx, event.TopicEmergencyReported, rec)
		return rec, fmt.Errorf("engine: encode workflow input: %w", err)
	}

	exec, launch, err := eng.prepare(ctx, workflowName, input)
	if err != nil {
		eng.publishEmergency(ctx, event.TopicEmergencyReported, rec)
		return rec, err
	}

	// Link before launch so the run goroutine never races the status flip
	// to RESPONDING.
	rec.LinkExecution(exec.ID, time.Now().UTC())
	rec.SetStatus(emergency.StatusResponding, time.Now().UTC())
	if err := eng.store.UpdateEmergency(ctx, rec); err != nil {
		eng.publishEmergency(ctx, event.TopicEmergencyReported, rec)
		launch(id.Nil)
		return rec, fmt.Errorf("engine: link emergency %s: %w", rec.ID, err)
	}
	eng.publishEmergency(ctx, event.TopicEmergencyReported, rec)
	eng.logger.Info("emergency routed",
		"emergency_id", rec.ID.String(),
		"workflow", workflowName,
		"execution_id", exec.ID.String(),
	)

	launch(rec.ID)
	return rec, nil
}

// Emergency returns the stored record for an emergency.
func (eng *Engine) Emergency(ctx context.Context, emergencyID id.EmergencyID) (*emergency.Record, error) {
	return eng.store.GetEmergency(ctx, emergencyID)
}

// ListEmergencies returns stored emergency records, newest first.
func (eng *Engine) ListEmergencies(ctx context.Context, opts emergency.ListOpts) ([]*emergency.Record, error) {
	return eng.store.ListEmergencies(ctx, opts)
}

// SituationReport renders a human-readable summary of an emergency and, when
// one is linked, its response execution.
func (eng *Engine) SituationReport(ctx context.Context, emergencyID id.EmergencyID) (string, error) {
	rec, err := eng.store.GetEmergency(ctx, emergencyID)
	if err != nil {
		return "", err
	}
	exec, _ := eng.execFor(ctx, rec)
	return emergency.SituationReport(rec, exec), nil
}

// execFor loads the execution linked to a record. A missing or unreadable
// execution is not an error for reporting purposes.
func (eng *Engine) execFor(ctx context.Context, rec *emergency.Record) (*workflow.Execution, error) {
	if rec.ExecutionID.IsNil() {
		return nil, nil
	}
	exec, err := eng.store.GetExecution(ctx, rec.ExecutionID)
	if err != nil {
		eng.logger.Warn("linked execution lookup failed",
			"emergency_id", rec.ID.String(),
			"execution_id", rec.ExecutionID.String(),
			"error", err.Error(),
		)
		return nil, err
	}
	return exec, nil
}
