package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	recovery "github.com/fvgm-spec/disaster-recovery-agent"
	"github.com/fvgm-spec/disaster-recovery-agent/emergency"
	"github.com/fvgm-spec/disaster-recovery-agent/triage"
)

// ReportEmergencyResponse is the body of POST /v1/emergencies and
// POST /v1/public-report. Detail is set when the record was created but
// no response workflow could be launched.
type ReportEmergencyResponse struct {
	Emergency *emergency.Record `json:"emergency"`
	Detail    string            `json:"detail,omitempty"`
}

// SituationReportResponse is the body of GET /v1/emergencies/{id}/report.
type SituationReportResponse struct {
	EmergencyID string `json:"emergency_id"`
	Report      string `json:"report"`
}

func (a *API) handleReportEmergency(w http.ResponseWriter, r *http.Request) {
	rep, ok := a.decodeReport(w, r)
	if !ok {
		return
	}
	a.report(w, r, rep)
}

// handlePublicReport is the unauthenticated intake endpoint. It requires
// reporter contact details and a description, and is rate limited per
// client IP.
func (a *API) handlePublicReport(w http.ResponseWriter, r *http.Request) {
	if !a.public.allow(clientIP(r)) {
		respondWithError(w, http.StatusTooManyRequests, "too many reports from this address")
		return
	}

	rep, ok := a.decodeReport(w, r)
	if !ok {
		return
	}
	if rep.ReporterContact == "" {
		respondMapped(w, recovery.ErrMissingContact)
		return
	}
	if rep.Description == "" {
		respondMapped(w, recovery.ErrMissingDescription)
		return
	}
	a.report(w, r, rep)
}

// report runs intake and shapes the response around partial outcomes:
// the record can exist even when routing failed.
func (a *API) report(w http.ResponseWriter, r *http.Request, rep triage.Report) {
	rec, err := a.eng.Report(r.Context(), rep)
	switch {
	case err == nil:
		respondWithJSON(w, http.StatusCreated, ReportEmergencyResponse{Emergency: rec})
	case rec == nil:
		respondMapped(w, err)
	case errors.Is(err, recovery.ErrNoWorkflowForType):
		respondWithJSON(w, http.StatusCreated, ReportEmergencyResponse{Emergency: rec, Detail: err.Error()})
	default:
		// Intake persisted but the response workflow did not launch;
		// surface both.
		respondWithJSON(w, statusForError(err), map[string]string{
			"error":        err.Error(),
			"emergency_id": rec.ID.String(),
		})
	}
}

func (a *API) decodeReport(w http.ResponseWriter, r *http.Request) (triage.Report, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
		return triage.Report{}, false
	}
	defer r.Body.Close()

	rep, err := triage.DecodeReport(body)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("invalid report: %v", err))
		return triage.Report{}, false
	}
	return rep, true
}

func (a *API) handleListEmergencies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := emergency.ListOpts{
		Limit:  defaultLimit(queryInt(q.Get("limit"))),
		Offset: queryInt(q.Get("offset")),
	}
	if s := q.Get("status"); s != "" {
		opts.Status = emergency.Status(s)
	}
	if s := q.Get("type"); s != "" {
		opts.Type = triage.Type(s)
	}
	if s := q.Get("severity"); s != "" {
		opts.Severity = triage.Severity(s)
	}

	recs, err := a.eng.ListEmergencies(r.Context(), opts)
	if err != nil {
		respondMapped(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, recs)
}

func (a *API) handleGetEmergency(w http.ResponseWriter, r *http.Request) {
	emergencyID, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, err := a.eng.Emergency(r.Context(), emergencyID)
	if err != nil {
		respondMapped(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, rec)
}

func (a *API) handleSituationReport(w http.ResponseWriter, r *http.Request) {
	emergencyID, ok := pathID(w, r)
	if !ok {
		return
	}
	text, err := a.eng.SituationReport(r.Context(), emergencyID)
	if err != nil {
		respondMapped(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, SituationReportResponse{
		EmergencyID: emergencyID.String(),
		Report:      text,
	})
}
