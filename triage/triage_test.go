package triage

import "testing"

func TestClassifyKeywords(t *testing.T) {
	tests := []struct {
		name        string
		description string
		want        Type
	}{
		{"flood", "River flood threatening the east district", TypeNaturalDisaster},
		{"earthquake", "Magnitude 6.1 earthquake reported downtown", TypeNaturalDisaster},
		{"hurricane", "Hurricane approaching the coast", TypeNaturalDisaster},
		{"tornado", "Tornado touched down near the airport", TypeNaturalDisaster},
		{"wildfire", "Wildfire spreading through the northern hills", TypeNaturalDisaster},
		{"tsunami", "Tsunami warning issued for the harbor", TypeNaturalDisaster},
		{"outage", "Regional power outage across three substations", TypeInfrastructureFailure},
		{"failure", "Cooling system failure in the data center", TypeInfrastructureFailure},
		{"downtime", "Unplanned downtime on the booking platform", TypeInfrastructureFailure},
		{"unavailable", "Payment gateway unavailable since 04:00", TypeInfrastructureFailure},
		{"crash", "Core switch crash took the campus offline", TypeInfrastructureFailure},
		{"breach", "Data breach detected on the customer portal", TypeSecurityIncident},
		{"attack", "DDoS attack against the public site", TypeSecurityIncident},
		{"hack", "Suspected hack of the admin console", TypeSecurityIncident},
		{"malware", "Malware found on two workstations", TypeSecurityIncident},
		{"ransomware", "Ransomware note on the file server", TypeSecurityIncident},
		{"phishing", "Phishing campaign targeting finance staff", TypeSecurityIncident},
		{"case insensitive", "WILDFIRE NEAR RIDGE ROAD", TypeNaturalDisaster},
		{"no match", "Crowd gathering outside the stadium", TypeGeneralEmergency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(Report{Description: tt.description})
			if got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.description, got, tt.want)
			}
		})
	}
}

func TestClassifyExplicitTypeWins(t *testing.T) {
	r := Report{
		Type:        string(TypeSecurityIncident),
		Description: "Flood in the server room", // keyword would say natural disaster
	}
	if got := Classify(r); got != TypeSecurityIncident {
		t.Errorf("Classify = %q, want %q", got, TypeSecurityIncident)
	}

	// Unknown explicit types pass through; routing rejects them later.
	r = Report{Type: "ALIEN_INVASION"}
	if got := Classify(r); got != Type("ALIEN_INVASION") {
		t.Errorf("Classify = %q, want verbatim explicit type", got)
	}
}

func TestClassifyKeywordOrder(t *testing.T) {
	// Natural-disaster keywords are checked first.
	r := Report{Description: "Flood caused a power outage and a suspected breach"}
	if got := Classify(r); got != TypeNaturalDisaster {
		t.Errorf("Classify = %q, want %q", got, TypeNaturalDisaster)
	}
}

func TestClassifyScansWholeDocument(t *testing.T) {
	// Keywords outside the modeled fields still count.
	raw := []byte(`{"details": {"cause": "ransomware"}, "location": "HQ"}`)
	r, err := DecodeReport(raw)
	if err != nil {
		t.Fatalf("DecodeReport: %v", err)
	}
	if got := Classify(r); got != TypeSecurityIncident {
		t.Errorf("Classify = %q, want %q", got, TypeSecurityIncident)
	}
}

func TestSeverityFromScores(t *testing.T) {
	tests := []struct {
		impact, urgency int
		want            Severity
	}{
		{5, 5, SeverityCritical}, // 25
		{4, 3, SeverityCritical}, // 12
		{3, 3, SeverityHigh},     // 9
		{4, 2, SeverityHigh},     // 8
		{2, 3, SeverityMedium},   // 6
		{2, 2, SeverityMedium},   // 4
		{1, 3, SeverityLow},      // 3
		{1, 1, SeverityLow},      // 1
		{0, 0, SeverityHigh},     // both default to 3
		{9, 1, SeverityLow},      // out-of-band impact defaults to 3
	}
	for _, tt := range tests {
		got := SeverityFromScores(tt.impact, tt.urgency)
		if got != tt.want {
			t.Errorf("SeverityFromScores(%d, %d) = %q, want %q",
				tt.impact, tt.urgency, got, tt.want)
		}
	}
}

func TestSeverityOfExplicitWins(t *testing.T) {
	r := Report{Severity: string(SeverityLow), ImpactScore: 5, UrgencyScore: 5}
	if got := SeverityOf(r); got != SeverityLow {
		t.Errorf("SeverityOf = %q, want %q", got, SeverityLow)
	}
}

func TestPriorityOf(t *testing.T) {
	tests := []struct {
		severity Severity
		want     int
	}{
		{SeverityCritical, 1},
		{SeverityHigh, 2},
		{SeverityMedium, 3},
		{SeverityLow, 4},
		{Severity("UNRATED"), 3},
	}
	for _, tt := range tests {
		if got := PriorityOf(tt.severity); got != tt.want {
			t.Errorf("PriorityOf(%q) = %d, want %d", tt.severity, got, tt.want)
		}
	}
}

func TestAssess(t *testing.T) {
	raw := []byte(`{
		"description": "Hurricane expected to make landfall tonight",
		"location": "Gulf Coast",
		"impact_score": 5,
		"urgency_score": 4,
		"affected_resources": ["power-grid", "hospital-network"]
	}`)
	r, err := DecodeReport(raw)
	if err != nil {
		t.Fatalf("DecodeReport: %v", err)
	}

	a := Assess(r)
	if a.Type != TypeNaturalDisaster {
		t.Errorf("Type = %q, want %q", a.Type, TypeNaturalDisaster)
	}
	if a.Severity != SeverityCritical {
		t.Errorf("Severity = %q, want %q", a.Severity, SeverityCritical)
	}
	if a.Priority != 1 {
		t.Errorf("Priority = %d, want 1", a.Priority)
	}
	if a.Location != "Gulf Coast" {
		t.Errorf("Location = %q, want %q", a.Location, "Gulf Coast")
	}
	if len(r.AffectedResources) != 2 {
		t.Errorf("AffectedResources = %v, want 2 entries", r.AffectedResources)
	}
}

func TestAssessDefaults(t *testing.T) {
	r, err := DecodeReport([]byte(`{"description": "Strange smell reported in the lobby"}`))
	if err != nil {
		t.Fatalf("DecodeReport: %v", err)
	}

	a := Assess(r)
	if a.Type != TypeGeneralEmergency {
		t.Errorf("Type = %q, want %q", a.Type, TypeGeneralEmergency)
	}
	if a.Severity != SeverityHigh {
		t.Errorf("Severity = %q, want %q (default scores)", a.Severity, SeverityHigh)
	}
	if a.Location != DefaultLocation {
		t.Errorf("Location = %q, want %q", a.Location, DefaultLocation)
	}
}

func TestDecodeReportInvalid(t *testing.T) {
	if _, err := DecodeReport([]byte(`{"description": `)); err == nil {
		t.Fatal("expected error for malformed report")
	}
}
