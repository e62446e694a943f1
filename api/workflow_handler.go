package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
)

// ListWorkflowsResponse is the body of GET /v1/workflows.
type ListWorkflowsResponse struct {
	Workflows []string `json:"workflows"`
}

func (a *API) handleRegisterWorkflow(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
		return
	}
	defer r.Body.Close()

	def, err := a.eng.RegisterWorkflowJSON(body)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("invalid workflow definition: %v", err))
		return
	}

	a.logger.Info("workflow registered", "workflow", def.Name)
	respondWithJSON(w, http.StatusCreated, def)
}

func (a *API) handleListWorkflows(w http.ResponseWriter, _ *http.Request) {
	respondWithJSON(w, http.StatusOK, ListWorkflowsResponse{Workflows: a.eng.WorkflowNames()})
}

func (a *API) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	def, ok := a.eng.Workflow(name)
	if !ok {
		respondWithError(w, http.StatusNotFound, fmt.Sprintf("workflow %q not registered", name))
		return
	}
	respondWithJSON(w, http.StatusOK, def)
}
