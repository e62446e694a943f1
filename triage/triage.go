// Package triage classifies incoming emergency reports into a type,
// a severity and a dispatch priority, mirroring how a human dispatcher
// would read a raw report before routing it.
package triage

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Type identifies the emergency category used for workflow routing.
type Type string

// Emergency types. GENERAL_EMERGENCY is the fallback when no keyword
// matches; it typically has no workflow mapped.
const (
	TypeNaturalDisaster       Type = "NATURAL_DISASTER"
	TypeInfrastructureFailure Type = "INFRASTRUCTURE_FAILURE"
	TypeSecurityIncident      Type = "SECURITY_INCIDENT"
	TypeGeneralEmergency      Type = "GENERAL_EMERGENCY"
)

// Severity ranks how bad an emergency is.
type Severity string

// Severity levels, most severe first.
const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// DefaultScore is used for impact and urgency when a report does not
// provide them. Two defaults multiply to 9, which lands in the HIGH band:
// an unscored report is treated as serious until someone says otherwise.
const DefaultScore = 3

// DefaultLocation is recorded when a report carries no location.
const DefaultLocation = "UNKNOWN"

// Report is an incoming emergency report before classification. An
// explicit Type or Severity overrides the derived values.
type Report struct {
	Type              string   `json:"emergency_type,omitempty"`
	Severity          string   `json:"severity,omitempty"`
	Description       string   `json:"description,omitempty"`
	Location          string   `json:"location,omitempty"`
	ImpactScore       int      `json:"impact_score,omitempty"`
	UrgencyScore      int      `json:"urgency_score,omitempty"`
	AffectedResources []string `json:"affected_resources,omitempty"`
	ReporterContact   string   `json:"reporter_contact,omitempty"`

	// raw preserves the full report document so classification can scan
	// fields the struct does not model.
	raw json.RawMessage
}

// DecodeReport parses a raw report document, keeping the original bytes
// for keyword classification.
func DecodeReport(data []byte) (Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return Report{}, fmt.Errorf("triage: decode report: %w", err)
	}
	r.raw = append(json.RawMessage(nil), data...)
	return r, nil
}

// Assessment is the outcome of triaging one report.
type Assessment struct {
	Type     Type
	Severity Severity
	Priority int
	Location string
}

// Assess classifies a report and derives its severity, priority and
// location in one pass.
func Assess(r Report) Assessment {
	sev := SeverityOf(r)
	loc := r.Location
	if loc == "" {
		loc = DefaultLocation
	}
	return Assessment{
		Type:     Classify(r),
		Severity: sev,
		Priority: PriorityOf(sev),
		Location: loc,
	}
}

// Keyword lists scanned in order. The first matching category wins, so a
// report mentioning both a flood and an outage is a natural disaster.
var (
	naturalDisasterKeywords = []string{
		"flood", "earthquake", "hurricane", "tornado", "wildfire", "tsunami",
	}
	infrastructureKeywords = []string{
		"outage", "failure", "downtime", "unavailable", "crash",
	}
	securityKeywords = []string{
		"breach", "attack", "hack", "malware", "ransomware", "phishing",
	}
)

// Classify returns the report's emergency type. An explicit type is
// honored verbatim, even if unknown; routing rejects unmapped types
// later. Otherwise the whole report document is scanned for keywords.
func Classify(r Report) Type {
	if r.Type != "" {
		return Type(r.Type)
	}

	doc := r.raw
	if len(doc) == 0 {
		doc, _ = json.Marshal(r)
	}
	text := strings.ToLower(string(doc))

	switch {
	case containsAny(text, naturalDisasterKeywords):
		return TypeNaturalDisaster
	case containsAny(text, infrastructureKeywords):
		return TypeInfrastructureFailure
	case containsAny(text, securityKeywords):
		return TypeSecurityIncident
	default:
		return TypeGeneralEmergency
	}
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// SeverityOf returns the report's severity. An explicit severity is
// honored verbatim; otherwise it is derived from the impact and urgency
// scores.
func SeverityOf(r Report) Severity {
	if r.Severity != "" {
		return Severity(r.Severity)
	}
	return SeverityFromScores(r.ImpactScore, r.UrgencyScore)
}

// SeverityFromScores derives severity from impact and urgency scores
// (1 to 5 each). Scores outside the band fall back to DefaultScore.
func SeverityFromScores(impact, urgency int) Severity {
	if impact < 1 || impact > 5 {
		impact = DefaultScore
	}
	if urgency < 1 || urgency > 5 {
		urgency = DefaultScore
	}

	score := impact * urgency
	switch {
	case score >= 12:
		return SeverityCritical
	case score >= 8:
		return SeverityHigh
	case score >= 4:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// PriorityOf converts severity to a dispatch priority. 1 is the most
// urgent; unknown severities map to the middle of the scale.
func PriorityOf(s Severity) int {
	switch s {
	case SeverityCritical:
		return 1
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 4
	default:
		return 3
	}
}
