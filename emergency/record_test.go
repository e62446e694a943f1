package emergency

import (
	"testing"
	"time"

	"github.com/fvgm-spec/disaster-recovery-agent/id"
	"github.com/fvgm-spec/disaster-recovery-agent/triage"
)

func sampleReport() (triage.Report, triage.Assessment) {
	r, err := triage.DecodeReport([]byte(`{
		"description": "Wildfire spreading through the northern hills",
		"location": "Ridge Road",
		"impact_score": 4,
		"urgency_score": 4,
		"affected_resources": ["power-grid", "cell-towers"],
		"reporter_contact": "ranger@parks.example"
	}`))
	if err != nil {
		panic(err)
	}
	return r, triage.Assess(r)
}

func TestNewRecord(t *testing.T) {
	report, assessment := sampleReport()
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	rec := NewRecord(report, assessment, now)

	if rec.ID.IsNil() {
		t.Fatal("expected ID to be set")
	}
	if rec.ID.Prefix() != id.PrefixEmergency {
		t.Errorf("ID prefix = %q, want %q", rec.ID.Prefix(), id.PrefixEmergency)
	}
	if rec.Type != triage.TypeNaturalDisaster {
		t.Errorf("Type = %q, want %q", rec.Type, triage.TypeNaturalDisaster)
	}
	if rec.Severity != triage.SeverityCritical {
		t.Errorf("Severity = %q, want %q", rec.Severity, triage.SeverityCritical)
	}
	if rec.Priority != 1 {
		t.Errorf("Priority = %d, want 1", rec.Priority)
	}
	if rec.Status != StatusInitiated {
		t.Errorf("Status = %q, want %q", rec.Status, StatusInitiated)
	}
	if rec.Location != "Ridge Road" {
		t.Errorf("Location = %q, want %q", rec.Location, "Ridge Road")
	}
	if rec.ReporterContact != "ranger@parks.example" {
		t.Errorf("ReporterContact = %q", rec.ReporterContact)
	}
	if len(rec.AffectedResources) != 2 {
		t.Errorf("AffectedResources = %v, want 2 entries", rec.AffectedResources)
	}
	if !rec.CreatedAt.Equal(now) || !rec.UpdatedAt.Equal(now) {
		t.Errorf("timestamps = %v / %v, want %v", rec.CreatedAt, rec.UpdatedAt, now)
	}
	if !rec.ExecutionID.IsNil() {
		t.Errorf("ExecutionID = %v, want nil before trigger", rec.ExecutionID)
	}
}

func TestSetStatus(t *testing.T) {
	report, assessment := sampleReport()
	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	rec := NewRecord(report, assessment, created)

	later := created.Add(time.Minute)
	rec.SetStatus(StatusResponding, later)
	if rec.Status != StatusResponding {
		t.Errorf("Status = %q, want %q", rec.Status, StatusResponding)
	}
	if !rec.UpdatedAt.Equal(later) {
		t.Errorf("UpdatedAt = %v, want %v", rec.UpdatedAt, later)
	}

	rec.SetStatus(StatusResolved, later.Add(time.Minute))
	if rec.Status != StatusResolved {
		t.Errorf("Status = %q, want %q", rec.Status, StatusResolved)
	}

	// Terminal records do not change again.
	rec.SetStatus(StatusFailed, later.Add(2*time.Minute))
	if rec.Status != StatusResolved {
		t.Errorf("Status = %q, want terminal %q to stick", rec.Status, StatusResolved)
	}
}

func TestStatusTerminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusInitiated, false},
		{StatusResponding, false},
		{StatusResolved, true},
		{StatusFailed, true},
	}
	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestLinkExecution(t *testing.T) {
	report, assessment := sampleReport()
	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	rec := NewRecord(report, assessment, created)

	execID := id.NewExecutionID()
	rec.LinkExecution(execID, created.Add(time.Second))

	if rec.ExecutionID != execID {
		t.Errorf("ExecutionID = %v, want %v", rec.ExecutionID, execID)
	}
	if !rec.UpdatedAt.After(rec.CreatedAt) {
		t.Error("expected UpdatedAt to advance on link")
	}
}
