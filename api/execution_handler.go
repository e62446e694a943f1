package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/fvgm-spec/disaster-recovery-agent/id"
	"github.com/fvgm-spec/disaster-recovery-agent/workflow"
)

// TriggerExecutionRequest is the body of POST /v1/executions.
type TriggerExecutionRequest struct {
	Workflow string          `json:"workflow"`
	Input    json.RawMessage `json:"input,omitempty"`
}

func (a *API) handleTriggerExecution(w http.ResponseWriter, r *http.Request) {
	var req TriggerExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	defer r.Body.Close()
	if req.Workflow == "" {
		respondWithError(w, http.StatusBadRequest, "workflow is required")
		return
	}

	exec, err := a.eng.Trigger(r.Context(), req.Workflow, req.Input)
	if err != nil {
		respondMapped(w, err)
		return
	}
	respondWithJSON(w, http.StatusAccepted, exec)
}

func (a *API) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := workflow.ListOpts{
		Limit:    defaultLimit(queryInt(q.Get("limit"))),
		Offset:   queryInt(q.Get("offset")),
		Workflow: q.Get("workflow"),
	}
	if s := q.Get("status"); s != "" {
		opts.Status = workflow.Status(s)
	}

	execs, err := a.eng.List(r.Context(), opts)
	if err != nil {
		respondMapped(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, execs)
}

func (a *API) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	execID, ok := pathID(w, r)
	if !ok {
		return
	}
	exec, err := a.eng.Status(r.Context(), execID)
	if err != nil {
		respondMapped(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, exec)
}

func (a *API) handleExecutionHistory(w http.ResponseWriter, r *http.Request) {
	execID, ok := pathID(w, r)
	if !ok {
		return
	}
	history, err := a.eng.History(r.Context(), execID)
	if err != nil {
		respondMapped(w, err)
		return
	}
	if history == nil {
		history = []workflow.Event{}
	}
	respondWithJSON(w, http.StatusOK, history)
}

func (a *API) handleCancelExecution(w http.ResponseWriter, r *http.Request) {
	execID, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := a.eng.Cancel(r.Context(), execID); err != nil {
		respondMapped(w, err)
		return
	}
	respondWithJSON(w, http.StatusAccepted, map[string]string{"status": "cancellation requested"})
}

// pathID parses the {id} path variable, responding 400 on garbage.
func pathID(w http.ResponseWriter, r *http.Request) (id.ID, bool) {
	parsed, err := id.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("invalid ID: %v", err))
		return id.Nil, false
	}
	return parsed, true
}

func queryInt(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
