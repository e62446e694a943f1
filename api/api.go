package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	recovery "github.com/fvgm-spec/disaster-recovery-agent"
	"github.com/fvgm-spec/disaster-recovery-agent/engine"
)

// API assembles the REST surface over an engine.
type API struct {
	eng    *engine.Engine
	logger *slog.Logger
	public *ipLimiter
}

// Option configures an API.
type Option func(*API)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) { a.logger = l }
}

// WithPublicReportLimit sets the per-IP rate limit for the
// unauthenticated public report endpoint.
func WithPublicReportLimit(perSecond float64, burst int) Option {
	return func(a *API) { a.public = newIPLimiter(perSecond, burst) }
}

// New creates an API from an engine.
func New(eng *engine.Engine, opts ...Option) *API {
	a := &API{
		eng:    eng,
		logger: slog.Default(),
		public: newIPLimiter(1, 5),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns the fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(a.logRequests)
	a.registerRoutes(r)
	return r
}

func (a *API) registerRoutes(r *mux.Router) {
	v1 := r.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/workflows", a.handleRegisterWorkflow).Methods(http.MethodPut)
	v1.HandleFunc("/workflows", a.handleListWorkflows).Methods(http.MethodGet)
	v1.HandleFunc("/workflows/{name}", a.handleGetWorkflow).Methods(http.MethodGet)

	v1.HandleFunc("/executions", a.handleTriggerExecution).Methods(http.MethodPost)
	v1.HandleFunc("/executions", a.handleListExecutions).Methods(http.MethodGet)
	v1.HandleFunc("/executions/{id}", a.handleGetExecution).Methods(http.MethodGet)
	v1.HandleFunc("/executions/{id}/history", a.handleExecutionHistory).Methods(http.MethodGet)
	v1.HandleFunc("/executions/{id}/cancel", a.handleCancelExecution).Methods(http.MethodPost)

	v1.HandleFunc("/emergencies", a.handleReportEmergency).Methods(http.MethodPost)
	v1.HandleFunc("/emergencies", a.handleListEmergencies).Methods(http.MethodGet)
	v1.HandleFunc("/emergencies/{id}", a.handleGetEmergency).Methods(http.MethodGet)
	v1.HandleFunc("/emergencies/{id}/report", a.handleSituationReport).Methods(http.MethodGet)
	v1.HandleFunc("/public-report", a.handlePublicReport).Methods(http.MethodPost)

	r.HandleFunc("/healthz", a.handleHealth).Methods(http.MethodGet)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := a.eng.Ping(r.Context()); err != nil {
		respondWithError(w, http.StatusServiceUnavailable, "store unreachable")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// logRequests logs one line per request with the final status code.
func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondMapped maps engine and store sentinel errors to HTTP statuses.
func respondMapped(w http.ResponseWriter, err error) {
	respondWithError(w, statusForError(err), err.Error())
}

func statusForError(err error) int {
	switch {
	case isNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, recovery.ErrExecutionTerminal):
		return http.StatusConflict
	case errors.Is(err, recovery.ErrLimitExceeded), errors.Is(err, recovery.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, recovery.ErrEngineStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, recovery.ErrMissingDescription), errors.Is(err, recovery.ErrMissingContact):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, recovery.ErrWorkflowNotFound) ||
		errors.Is(err, recovery.ErrExecutionNotFound) ||
		errors.Is(err, recovery.ErrEmergencyNotFound) ||
		errors.Is(err, recovery.ErrTaskNotFound)
}

// defaultLimit caps list endpoints that do not ask for a page size.
func defaultLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}
