// Package emergency tracks incident records from intake through response
// to resolution, linking each record to the workflow execution that
// handles it.
package emergency

import (
	"time"

	"github.com/fvgm-spec/disaster-recovery-agent/id"
	"github.com/fvgm-spec/disaster-recovery-agent/triage"
)

// Status tracks where an emergency record is in its lifecycle.
type Status string

// Record lifecycle. INITIATED means recorded but not yet handled,
// RESPONDING means a workflow execution is driving the response, and
// RESOLVED / FAILED mirror the execution's terminal outcome.
const (
	StatusInitiated  Status = "INITIATED"
	StatusResponding Status = "RESPONDING"
	StatusResolved   Status = "RESOLVED"
	StatusFailed     Status = "FAILED"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusFailed
}

// Record is one emergency incident.
type Record struct {
	ID                id.EmergencyID  `json:"id"`
	Type              triage.Type     `json:"type"`
	Severity          triage.Severity `json:"severity"`
	Priority          int             `json:"priority"`
	Status            Status          `json:"status"`
	Description       string          `json:"description,omitempty"`
	Location          string          `json:"location"`
	ReporterContact   string          `json:"reporter_contact,omitempty"`
	AffectedResources []string        `json:"affected_resources,omitempty"`

	// ExecutionID links the workflow execution responding to this
	// emergency. Nil until the workflow is triggered.
	ExecutionID id.ExecutionID `json:"execution_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewRecord builds an INITIATED record from a triaged report.
func NewRecord(report triage.Report, a triage.Assessment, now time.Time) *Record {
	now = now.UTC()
	return &Record{
		ID:                id.NewEmergencyID(),
		Type:              a.Type,
		Severity:          a.Severity,
		Priority:          a.Priority,
		Status:            StatusInitiated,
		Description:       report.Description,
		Location:          a.Location,
		ReporterContact:   report.ReporterContact,
		AffectedResources: report.AffectedResources,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// SetStatus moves the record to a new status. Terminal records do not
// change again.
func (r *Record) SetStatus(status Status, now time.Time) {
	if r.Status.Terminal() {
		return
	}
	r.Status = status
	r.UpdatedAt = now.UTC()
}

// LinkExecution records the execution responding to this emergency.
func (r *Record) LinkExecution(execID id.ExecutionID, now time.Time) {
	r.ExecutionID = execID
	r.UpdatedAt = now.UTC()
}
