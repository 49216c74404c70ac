package webapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/membench/membench/internal/dataset"
	"github.com/membench/membench/internal/leaderboard"
	"github.com/membench/membench/internal/models"
	"github.com/membench/membench/internal/providers"
	"github.com/membench/membench/internal/runmanager"
	"github.com/membench/membench/internal/store"
)

// Version is set at build time or defaults to dev.
var Version = "0.1.0-dev"

// Service is the run lifecycle surface the handlers need. *runmanager.Manager
// satisfies it.
type Service interface {
	Start(ctx context.Context, cfg runmanager.StartConfig) (*models.Run, error)
	Continue(ctx context.Context, runID string) (*models.Run, error)
	Stop(runID string) error
	Delete(runID string) error
	ListRuns() ([]*models.Run, error)
	GetSummary(runID string) (*models.Run, error)
	Questions(runID string) ([]*models.Question, error)
	QuestionDetail(runID, questionID string) (*models.Question, error)
}

// Handlers holds the HTTP handler methods for the web API.
type Handlers struct {
	service Service
	board   *leaderboard.Board
}

// NewHandlers creates a new Handlers over the given service. board may be nil,
// in which case the leaderboard endpoint reports an empty list.
func NewHandlers(service Service, board *leaderboard.Board) *Handlers {
	return &Handlers{service: service, board: board}
}

// HandleHealth returns a simple health check response.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: Version,
	})
}

// HandleRuns returns a list of all runs.
func (h *Handlers) HandleRuns(w http.ResponseWriter, _ *http.Request) {
	runs, err := h.service.ListRuns()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]RunResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, runToResponse(run))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleRunDetail returns one run's summary.
func (h *Handlers) HandleRunDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "run id is required")
		return
	}

	run, err := h.service.GetSummary(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runToResponse(run))
}

// HandleRunQuestions returns every question in a run with phase detail.
func (h *Handlers) HandleRunQuestions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	questions, err := h.service.Questions(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]QuestionResponse, 0, len(questions))
	for _, q := range questions {
		out = append(out, questionToResponse(q))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleQuestionDetail returns one question with full phase detail.
func (h *Handlers) HandleQuestionDetail(w http.ResponseWriter, r *http.Request) {
	q, err := h.service.QuestionDetail(r.PathValue("id"), r.PathValue("qid"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, questionToResponse(q))
}

// HandleStartRun creates a run from a request body. The dataset is loaded
// server-side from the path in the request; the run proceeds in the
// background and the initial run state is returned.
func (h *Handlers) HandleStartRun(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Dataset == "" {
		writeError(w, http.StatusBadRequest, "dataset path is required")
		return
	}
	benchmark, err := dataset.Load(req.Dataset)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	settings := models.RunConfig{
		Workers:        req.Workers,
		MaxAttempts:    req.MaxAttempts,
		RetryBackoffMs: req.RetryBackoffMs,
		ProviderParams: req.ProviderParams,
	}
	if settings.Workers == 0 {
		settings.Workers = models.DefaultWorkers
	}
	if settings.MaxAttempts == 0 {
		settings.MaxAttempts = models.DefaultMaxAttempts
	}
	if settings.RetryBackoffMs == 0 {
		settings.RetryBackoffMs = models.DefaultRetryBackoffMs
	}
	if req.FailThreshold != nil {
		settings.FailThreshold = *req.FailThreshold
	}

	judgeModel := req.JudgeModel
	if judgeModel == "" {
		judgeModel = models.DefaultJudgeModel
	}
	answeringModel := req.AnsweringModel
	if answeringModel == "" {
		answeringModel = models.DefaultAnswerModel
	}

	run, err := h.service.Start(r.Context(), runmanager.StartConfig{
		RunID:          req.RunID,
		Provider:       req.Provider,
		Benchmark:      benchmark,
		JudgeModel:     judgeModel,
		AnsweringModel: answeringModel,
		Settings:       settings,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, runToResponse(run))
}

// HandleStopRun requests cooperative stop and waits for in-flight phases to
// drain before returning the stopped run.
func (h *Handlers) HandleStopRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.service.Stop(id); err != nil {
		writeServiceError(w, err)
		return
	}
	run, err := h.service.GetSummary(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runToResponse(run))
}

// HandleContinueRun resumes a stopped or failed run in the background.
func (h *Handlers) HandleContinueRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.Continue(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, runToResponse(run))
}

// HandleDeleteRun removes a run and its question records.
func (h *Handlers) HandleDeleteRun(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleLeaderboard returns leaderboard entries sorted by accuracy.
func (h *Handlers) HandleLeaderboard(w http.ResponseWriter, _ *http.Request) {
	if h.board == nil {
		writeJSON(w, http.StatusOK, []leaderboard.Entry{})
		return
	}
	entries, err := h.board.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// RegisterRoutes registers all web API routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, service Service, board *leaderboard.Board) {
	h := NewHandlers(service, board)
	mux.HandleFunc("GET /api/health", h.HandleHealth)
	mux.HandleFunc("GET /api/runs", h.HandleRuns)
	mux.HandleFunc("POST /api/runs", h.HandleStartRun)
	mux.HandleFunc("GET /api/runs/{id}", h.HandleRunDetail)
	mux.HandleFunc("DELETE /api/runs/{id}", h.HandleDeleteRun)
	mux.HandleFunc("GET /api/runs/{id}/questions", h.HandleRunQuestions)
	mux.HandleFunc("GET /api/runs/{id}/questions/{qid}", h.HandleQuestionDetail)
	mux.HandleFunc("POST /api/runs/{id}/stop", h.HandleStopRun)
	mux.HandleFunc("POST /api/runs/{id}/continue", h.HandleContinueRun)
	mux.HandleFunc("GET /api/leaderboard", h.HandleLeaderboard)
}

// CORSMiddleware wraps a handler with CORS headers.
// If allowedOrigins is empty, no CORS header is set (same-origin only).
// Otherwise, the request Origin is checked against the allowed list.
func CORSMiddleware(next http.Handler, allowedOrigins ...string) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if len(allowedOrigins) > 0 && origin != "" && allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrRunActive), errors.Is(err, store.ErrInvalidState):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, providers.ErrUnsupportedBenchmark):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResponse{Error: msg, Code: code})
}
