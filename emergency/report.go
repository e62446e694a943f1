package emergency

import (
	"fmt"
	"strings"
	"time"

	"github.com/fvgm-spec/disaster-recovery-agent/workflow"
)

// SituationReport renders the five-section incident report for a record.
// exec is the linked workflow execution and may be nil when no workflow
// has been triggered yet.
func SituationReport(rec *Record, exec *workflow.Execution) string {
	var b strings.Builder

	b.WriteString("# Situation Report\n\n")

	b.WriteString("## Executive Summary\n")
	fmt.Fprintf(&b, "%s at %s with %s severity (priority %d).\n\n",
		rec.Type, rec.Location, rec.Severity, rec.Priority)

	b.WriteString("## Situation Overview\n")
	fmt.Fprintf(&b, "Emergency %s reported at %s.\n",
		rec.ID, rec.CreatedAt.Format(time.RFC3339))
	if rec.Description != "" {
		fmt.Fprintf(&b, "%s\n", rec.Description)
	}
	if rec.ReporterContact != "" {
		fmt.Fprintf(&b, "Reporter contact: %s.\n", rec.ReporterContact)
	}
	if exec != nil && len(exec.History) > 0 {
		b.WriteString("\nResponse timeline:\n")
		for _, ev := range exec.History {
			line := fmt.Sprintf("  %s  %-10s %s",
				ev.Timestamp.UTC().Format(time.RFC3339), ev.Kind, ev.State)
			if ev.Detail != "" {
				line += ": " + ev.Detail
			}
			b.WriteString(line + "\n")
		}
	}
	b.WriteString("\n")

	b.WriteString("## Current Status\n")
	fmt.Fprintf(&b, "Current status is %s.\n", rec.Status)
	switch {
	case exec == nil:
		b.WriteString("No response workflow has been triggered.\n")
	case exec.ErrorName != "":
		fmt.Fprintf(&b, "Execution %s is %s (workflow %q): %s.\n",
			exec.ID, exec.Status, exec.WorkflowName, exec.ErrorName)
	case exec.Status == workflow.StatusRunning:
		fmt.Fprintf(&b, "Execution %s is %s (workflow %q, state %q).\n",
			exec.ID, exec.Status, exec.WorkflowName, exec.CurrentState)
	default:
		fmt.Fprintf(&b, "Execution %s is %s (workflow %q).\n",
			exec.ID, exec.Status, exec.WorkflowName)
	}
	b.WriteString("\n")

	b.WriteString("## Resource Allocation\n")
	if len(rec.AffectedResources) == 0 {
		b.WriteString("No affected resources reported.\n")
	} else {
		fmt.Fprintf(&b, "%d affected resources:\n", len(rec.AffectedResources))
		for _, res := range rec.AffectedResources {
			fmt.Fprintf(&b, "  - %s\n", res)
		}
	}
	b.WriteString("\n")

	b.WriteString("## Next Steps and Recommendations\n")
	b.WriteString(nextSteps(rec.Status) + "\n")

	return b.String()
}

func nextSteps(s Status) string {
	switch s {
	case StatusInitiated:
		return "Awaiting workflow dispatch. Verify a response workflow is mapped for this emergency type."
	case StatusResponding:
		return "Response workflow in progress. Continue monitoring the situation."
	case StatusResolved:
		return "Response completed. Schedule the after-action review."
	case StatusFailed:
		return "Response workflow failed. Escalate to the duty officer before re-triggering."
	default:
		return "Continue monitoring the situation."
	}
}
