package workflow_test

import (
	"testing"

	"github.com/fvgm-spec/disaster-recovery-agent/workflow"
)

const incidentDocument = `{
	"Name": "infrastructure-failure-response",
	"StartAt": "AssessImpact",
	"States": {
		"AssessImpact": {
			"Type": "Task",
			"Resource": "assess-impact",
			"Next": "Recover",
			"Retry": [
				{"ErrorEquals": ["States.Timeout"], "IntervalSeconds": 3, "MaxAttempts": 2, "BackoffRate": 1.5},
				{"ErrorEquals": ["States.ALL"]}
			],
			"Catch": [
				{"ErrorEquals": ["States.ALL"], "ResultPath": "$.error", "Next": "Escalate"}
			]
		},
		"Recover": {
			"Type": "Parallel",
			"Branches": [
				{
					"StartAt": "RestoreService",
					"States": {
						"RestoreService": {"Type": "Task", "Resource": "restore-service", "End": true}
					}
				},
				{
					"StartAt": "NotifyCustomers",
					"States": {
						"NotifyCustomers": {"Type": "Task", "Resource": "notify-customers", "End": true}
					}
				}
			],
			"Next": "Done"
		},
		"Escalate": {"Type": "Task", "Resource": "escalate-to-oncall", "Next": "Done"},
		"Done": {"Type": "Succeed"}
	}
}`

func TestDecodeDefinition(t *testing.T) {
	def, err := workflow.DecodeDefinition([]byte(incidentDocument))
	if err != nil {
		t.Fatalf("DecodeDefinition: %v", err)
	}

	if def.Name != "infrastructure-failure-response" {
		t.Errorf("Name = %q, want %q", def.Name, "infrastructure-failure-response")
	}
	if def.StartAt != "AssessImpact" {
		t.Errorf("StartAt = %q, want %q", def.StartAt, "AssessImpact")
	}
	if len(def.States) != 4 {
		t.Fatalf("len(States) = %d, want 4", len(def.States))
	}

	assess := def.States["AssessImpact"]
	if assess.Type != workflow.StateTask {
		t.Errorf("AssessImpact type = %q, want Task", assess.Type)
	}
	if got := len(assess.Retry); got != 2 {
		t.Fatalf("len(Retry) = %d, want 2", got)
	}
	if got := len(assess.Catch); got != 1 {
		t.Fatalf("len(Catch) = %d, want 1", got)
	}

	par := def.States["Recover"]
	if par.Type != workflow.StateParallel {
		t.Errorf("Recover type = %q, want Parallel", par.Type)
	}
	if got := len(par.Branches); got != 2 {
		t.Fatalf("len(Branches) = %d, want 2", got)
	}
	if got := par.Branches[0].StartAt; got != "RestoreService" {
		t.Errorf("branch 0 StartAt = %q, want RestoreService", got)
	}

	done := def.States["Done"]
	if !done.Terminal() {
		t.Error("Done should be terminal")
	}

	if err := workflow.Validate(def); err != nil {
		t.Fatalf("decoded definition failed validation: %v", err)
	}
}

func TestDecodeRetryDefaults(t *testing.T) {
	def, err := workflow.DecodeDefinition([]byte(incidentDocument))
	if err != nil {
		t.Fatalf("DecodeDefinition: %v", err)
	}
	retry := def.States["AssessImpact"].Retry

	explicit := retry[0]
	if explicit.IntervalSeconds != 3 || explicit.MaxAttempts != 2 || explicit.BackoffRate != 1.5 {
		t.Errorf("explicit retrier = %+v, want interval 3, attempts 2, rate 1.5", explicit)
	}

	defaulted := retry[1]
	if defaulted.IntervalSeconds != workflow.DefaultIntervalSeconds {
		t.Errorf("IntervalSeconds = %v, want default %v", defaulted.IntervalSeconds, workflow.DefaultIntervalSeconds)
	}
	if defaulted.MaxAttempts != workflow.DefaultMaxAttempts {
		t.Errorf("MaxAttempts = %v, want default %v", defaulted.MaxAttempts, workflow.DefaultMaxAttempts)
	}
	if defaulted.BackoffRate != workflow.DefaultBackoffRate {
		t.Errorf("BackoffRate = %v, want default %v", defaulted.BackoffRate, workflow.DefaultBackoffRate)
	}
}

func TestDecodeExplicitZeroMaxAttempts(t *testing.T) {
	doc := `{
		"StartAt": "A",
		"States": {
			"A": {
				"Type": "Task",
				"Resource": "r",
				"End": true,
				"Retry": [{"ErrorEquals": ["States.ALL"], "MaxAttempts": 0}]
			}
		}
	}`

	def, err := workflow.DecodeDefinition([]byte(doc))
	if err != nil {
		t.Fatalf("DecodeDefinition: %v", err)
	}

	// Explicit zero disables retries for matching errors; it must not be
	// replaced by the default.
	if got := def.States["A"].Retry[0].MaxAttempts; got != 0 {
		t.Errorf("MaxAttempts = %d, want 0", got)
	}
}

func TestDecodeInvalidJSON(t *testing.T) {
	if _, err := workflow.DecodeDefinition([]byte(`{"StartAt": `)); err == nil {
		t.Fatal("DecodeDefinition: expected error for truncated document")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	def, err := workflow.DecodeDefinition([]byte(incidentDocument))
	if err != nil {
		t.Fatalf("DecodeDefinition: %v", err)
	}

	data, err := workflow.EncodeDefinition(def)
	if err != nil {
		t.Fatalf("EncodeDefinition: %v", err)
	}

	again, err := workflow.DecodeDefinition(data)
	if err != nil {
		t.Fatalf("DecodeDefinition (round trip): %v", err)
	}
	if again.StartAt != def.StartAt || len(again.States) != len(def.States) {
		t.Errorf("round trip changed shape: StartAt %q -> %q, states %d -> %d",
			def.StartAt, again.StartAt, len(def.States), len(again.States))
	}
	if err := workflow.Validate(again); err != nil {
		t.Fatalf("round-tripped definition failed validation: %v", err)
	}
}
