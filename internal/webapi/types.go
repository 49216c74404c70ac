package webapi

import (
	"time"

	"github.com/membench/membench/internal/models"
)

// RunResponse is the API form of a run. Accuracy is null until at least one
// question has been evaluated.
type RunResponse struct {
	ID             string          `json:"id"`
	Provider       string          `json:"provider"`
	Benchmark      string          `json:"benchmark"`
	JudgeModel     string          `json:"judgeModel"`
	AnsweringModel string          `json:"answeringModel"`
	Status         string          `json:"status"`
	CreatedAt      time.Time       `json:"createdAt"`
	Summary        SummaryResponse `json:"summary"`
	Accuracy       *float64        `json:"accuracy"`
}

// SummaryResponse carries the per-phase completion counts.
type SummaryResponse struct {
	Total            int `json:"total"`
	Ingested         int `json:"ingested"`
	Indexed          int `json:"indexed"`
	Searched         int `json:"searched"`
	Answered         int `json:"answered"`
	Evaluated        int `json:"evaluated"`
	EvaluatedCorrect int `json:"evaluatedCorrect"`
}

// QuestionResponse is the API form of one question with full phase detail,
// raw search results included for inspection.
type QuestionResponse struct {
	ID           string                 `json:"id"`
	Question     string                 `json:"question"`
	GroundTruth  string                 `json:"groundTruth"`
	QuestionType string                 `json:"questionType,omitempty"`
	ContainerTag string                 `json:"containerTag"`
	Phases       map[string]PhaseDetail `json:"phases"`
	FailedPhase  string                 `json:"failedPhase,omitempty"`
	LastError    string                 `json:"lastError,omitempty"`
}

// PhaseDetail is one phase's recorded artifact.
type PhaseDetail struct {
	CompletedAt time.Time             `json:"completedAt"`
	IngestUnits *int                  `json:"ingestUnits,omitempty"`
	SearchHits  []models.SearchResult `json:"searchHits,omitempty"`
	Hypothesis  string                `json:"hypothesis,omitempty"`
	Verdict     *models.Verdict       `json:"verdict,omitempty"`
}

// StartRequest starts or continues a run.
type StartRequest struct {
	RunID          string         `json:"runId,omitempty"`
	Provider       string         `json:"provider,omitempty"`
	Dataset        string         `json:"dataset,omitempty"`
	JudgeModel     string         `json:"judgeModel,omitempty"`
	AnsweringModel string         `json:"answeringModel,omitempty"`
	Workers        int            `json:"workers,omitempty"`
	MaxAttempts    int            `json:"maxAttempts,omitempty"`
	RetryBackoffMs int            `json:"retryBackoffMs,omitempty"`
	FailThreshold  *float64       `json:"failThreshold,omitempty"`
	ProviderParams map[string]any `json:"providerParams,omitempty"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResponse is returned for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func runToResponse(run *models.Run) RunResponse {
	resp := RunResponse{
		ID:             run.RunID,
		Provider:       run.Provider,
		Benchmark:      run.Benchmark,
		JudgeModel:     run.JudgeModel,
		AnsweringModel: run.AnsweringModel,
		Status:         string(run.Status),
		CreatedAt:      run.CreatedAt,
		Summary: SummaryResponse{
			Total:            run.Summary.Total,
			Ingested:         run.Summary.Ingested,
			Indexed:          run.Summary.Indexed,
			Searched:         run.Summary.Searched,
			Answered:         run.Summary.Answered,
			Evaluated:        run.Summary.Evaluated,
			EvaluatedCorrect: run.Summary.EvaluatedCorrect,
		},
	}
	if accuracy, ok := run.Summary.Accuracy(); ok {
		resp.Accuracy = &accuracy
	}
	return resp
}

func questionToResponse(q *models.Question) QuestionResponse {
	resp := QuestionResponse{
		ID:           q.QuestionID,
		Question:     q.Question,
		GroundTruth:  q.GroundTruth,
		QuestionType: q.QuestionType,
		ContainerTag: q.ContainerTag,
		Phases:       make(map[string]PhaseDetail, len(q.Phases)),
		FailedPhase:  string(q.FailedPhase),
		LastError:    q.LastError,
	}
	for phase, result := range q.Phases {
		detail := PhaseDetail{
			CompletedAt: result.CompletedAt,
			SearchHits:  result.SearchHits,
			Hypothesis:  result.Hypothesis,
			Verdict:     result.Verdict,
		}
		if result.Ingest != nil {
			units := result.Ingest.Units
			detail.IngestUnits = &units
		}
		resp.Phases[string(phase)] = detail
	}
	return resp
}
