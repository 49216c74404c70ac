package pipeline

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/membench/membench/internal/dataset"
	"github.com/membench/membench/internal/evaluate"
	"github.com/membench/membench/internal/llm"
	"github.com/membench/membench/internal/models"
	"github.com/membench/membench/internal/providers"
	"github.com/membench/membench/internal/store"
)

// stubAdapter records calls and fails on demand.
type stubAdapter struct {
	mu           sync.Mutex
	addCalls     int
	searchCalls  int
	searchErrs   []error
	searchResult []models.SearchResult
}

func (a *stubAdapter) Name() string { return "stub" }

func (a *stubAdapter) Prepare(string, []dataset.Item) ([]providers.PreparedQuestion, error) {
	return nil, nil
}

func (a *stubAdapter) AddContext(context.Context, string, string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.addCalls++
	return nil
}

func (a *stubAdapter) SearchQuery(context.Context, string, string) ([]models.SearchResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.searchCalls++
	if len(a.searchErrs) > 0 {
		err := a.searchErrs[0]
		a.searchErrs = a.searchErrs[1:]
		return nil, err
	}
	return a.searchResult, nil
}

func newPipelineFixture(t *testing.T, adapter providers.Adapter, client *llm.FakeClient, maxAttempts int) (*Executor, store.Store, *models.Question) {
	t.Helper()

	st := store.NewMemoryStore()
	q := &models.Question{
		QuestionID:   "q-1",
		Question:     "What color is the sky?",
		GroundTruth:  "Blue",
		ContainerTag: "run-q-1",
		Contexts:     []string{"The sky is blue.", "Grass is green."},
		Phases:       make(map[models.Phase]*models.PhaseResult),
	}
	run := &models.Run{RunID: "run-1", Status: models.StatusPending}
	require.NoError(t, st.CreateRun(run, []*models.Question{q}))

	exec := New(Config{
		Store:          st,
		Adapter:        adapter,
		Evaluator:      evaluate.New(client, "judge-model"),
		Client:         client,
		AnsweringModel: "answer-model",
		MaxAttempts:    maxAttempts,
	})

	loaded, err := st.GetQuestion("run-1", "q-1")
	require.NoError(t, err)
	return exec, st, loaded
}

func TestExecuteQuestionHappyPath(t *testing.T) {
	adapter := &stubAdapter{searchResult: []models.SearchResult{{Text: "The sky is blue."}}}
	client := llm.NewFakeClient("")
	client.Script("answer-model", "The sky is blue.")
	client.Script("judge-model", `{"label": "correct", "explanation": "matches"}`)

	exec, st, q := newPipelineFixture(t, adapter, client, 3)
	require.NoError(t, exec.ExecuteQuestion(context.Background(), "run-1", q))

	stored, err := st.GetQuestion("run-1", "q-1")
	require.NoError(t, err)
	assert.True(t, stored.Complete())
	assert.Equal(t, 2, stored.Phases[models.PhaseIngest].Ingest.Units)
	assert.Equal(t, "The sky is blue.", stored.Phases[models.PhaseAnswer].Hypothesis)
	assert.Equal(t, models.LabelCorrect, stored.Phases[models.PhaseEvaluate].Verdict.Label)

	run, err := st.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, 1, run.Summary.Evaluated)
	assert.Equal(t, 1, run.Summary.EvaluatedCorrect)
	assert.True(t, run.Summary.Consistent())

	assert.Equal(t, 2, adapter.addCalls, "one AddContext per context unit")
	assert.Equal(t, 1, adapter.searchCalls)
}

func TestExecuteQuestionSkipsRecordedPhases(t *testing.T) {
	adapter := &stubAdapter{searchResult: []models.SearchResult{{Text: "hit"}}}
	client := llm.NewFakeClient("")
	client.Script("answer-model", "answer")
	client.Script("judge-model", `{"label": "incorrect", "explanation": "wrong"}`)

	exec, st, q := newPipelineFixture(t, adapter, client, 3)

	// Ingest and index already completed on an earlier pass.
	require.NoError(t, st.AppendPhaseResult("run-1", "q-1", &models.PhaseResult{
		Phase:  models.PhaseIngest,
		Ingest: &models.IngestMarker{Units: 2},
	}))
	require.NoError(t, st.AppendPhaseResult("run-1", "q-1", &models.PhaseResult{Phase: models.PhaseIndex}))
	q, err := st.GetQuestion("run-1", "q-1")
	require.NoError(t, err)

	require.NoError(t, exec.ExecuteQuestion(context.Background(), "run-1", q))

	assert.Equal(t, 0, adapter.addCalls, "completed ingest is never re-executed")
	assert.Equal(t, 1, adapter.searchCalls)

	run, err := st.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, 1, run.Summary.Ingested)
	assert.Equal(t, 1, run.Summary.Evaluated)
	assert.Equal(t, 0, run.Summary.EvaluatedCorrect)
}

func TestExecuteQuestionFullyCompleteIsNoOp(t *testing.T) {
	adapter := &stubAdapter{}
	client := llm.NewFakeClient("")
	exec, st, q := newPipelineFixture(t, adapter, client, 3)

	for _, p := range models.PhaseOrder {
		result := &models.PhaseResult{Phase: p}
		if p == models.PhaseEvaluate {
			result.Verdict = &models.Verdict{Label: models.LabelCorrect}
		}
		require.NoError(t, st.AppendPhaseResult("run-1", "q-1", result))
	}
	q, err := st.GetQuestion("run-1", "q-1")
	require.NoError(t, err)

	require.NoError(t, exec.ExecuteQuestion(context.Background(), "run-1", q))
	assert.Equal(t, 0, adapter.addCalls)
	assert.Equal(t, 0, adapter.searchCalls)
	assert.Equal(t, 0, client.Calls())
}

func TestExecuteQuestionRetriesTransientFailures(t *testing.T) {
	adapter := &stubAdapter{
		searchErrs:   []error{providers.Transient(errors.New("backend busy"))},
		searchResult: []models.SearchResult{{Text: "hit"}},
	}
	client := llm.NewFakeClient("")
	client.Script("answer-model", "answer")
	client.Script("judge-model", `{"label": "correct", "explanation": "ok"}`)

	exec, st, q := newPipelineFixture(t, adapter, client, 3)
	require.NoError(t, exec.ExecuteQuestion(context.Background(), "run-1", q))

	assert.Equal(t, 2, adapter.searchCalls, "transient failure retried")

	stored, err := st.GetQuestion("run-1", "q-1")
	require.NoError(t, err)
	assert.True(t, stored.Complete())
}

func TestExecuteQuestionPermanentFailureMarksQuestion(t *testing.T) {
	adapter := &stubAdapter{searchErrs: []error{errors.New("bad request")}}
	client := llm.NewFakeClient("")

	exec, st, q := newPipelineFixture(t, adapter, client, 3)
	err := exec.ExecuteQuestion(context.Background(), "run-1", q)
	require.Error(t, err)

	var phaseErr *PhaseError
	require.True(t, errors.As(err, &phaseErr))
	assert.Equal(t, models.PhaseSearch, phaseErr.Phase)
	assert.Equal(t, 1, adapter.searchCalls, "non-transient failures are not retried")

	stored, err := st.GetQuestion("run-1", "q-1")
	require.NoError(t, err)
	assert.Equal(t, models.PhaseSearch, stored.FailedPhase)
	assert.NotEmpty(t, stored.LastError)
	assert.NotNil(t, stored.Phases[models.PhaseIngest], "earlier phase results are kept")
	assert.Nil(t, stored.Phases[models.PhaseSearch], "no partial artifact for the failed phase")
}

func TestExecuteQuestionExhaustsRetries(t *testing.T) {
	adapter := &stubAdapter{searchErrs: []error{
		providers.Transient(errors.New("busy")),
		providers.Transient(errors.New("busy")),
		providers.Transient(errors.New("busy")),
	}}
	client := llm.NewFakeClient("")

	exec, st, q := newPipelineFixture(t, adapter, client, 3)
	err := exec.ExecuteQuestion(context.Background(), "run-1", q)
	require.Error(t, err)
	assert.Equal(t, 3, adapter.searchCalls)

	stored, err := st.GetQuestion("run-1", "q-1")
	require.NoError(t, err)
	assert.Equal(t, models.PhaseSearch, stored.FailedPhase)
}

func TestExecuteQuestionModelAuthRejectionNotRetried(t *testing.T) {
	adapter := &stubAdapter{searchResult: []models.SearchResult{{Text: "hit"}}}
	client := llm.NewFakeClient("")
	client.FailWith("answer-model", &openai.APIError{
		HTTPStatusCode: http.StatusUnauthorized,
		Message:        "invalid api key",
	})

	exec, st, q := newPipelineFixture(t, adapter, client, 3)
	err := exec.ExecuteQuestion(context.Background(), "run-1", q)
	require.Error(t, err)

	var phaseErr *PhaseError
	require.True(t, errors.As(err, &phaseErr))
	assert.Equal(t, models.PhaseAnswer, phaseErr.Phase)
	assert.Equal(t, 1, client.Calls(), "permanent model rejections fail on the first attempt")

	stored, err := st.GetQuestion("run-1", "q-1")
	require.NoError(t, err)
	assert.Equal(t, models.PhaseAnswer, stored.FailedPhase)
}

func TestExecuteQuestionModelRateLimitIsRetried(t *testing.T) {
	adapter := &stubAdapter{searchResult: []models.SearchResult{{Text: "hit"}}}
	client := llm.NewFakeClient("")
	client.FailWith("answer-model", &openai.APIError{
		HTTPStatusCode: http.StatusTooManyRequests,
		Message:        "rate limit exceeded",
	})

	exec, _, q := newPipelineFixture(t, adapter, client, 2)
	err := exec.ExecuteQuestion(context.Background(), "run-1", q)
	require.Error(t, err)
	assert.Equal(t, 2, client.Calls(), "rate limits burn every attempt before failing")
}

func TestExecuteQuestionMalformedJudgeOutputIsRetried(t *testing.T) {
	adapter := &stubAdapter{searchResult: []models.SearchResult{{Text: "hit"}}}
	client := llm.NewFakeClient("")
	client.Script("answer-model", "answer")
	client.Script("judge-model", "not json", `{"label": "correct", "explanation": "ok"}`)

	exec, st, q := newPipelineFixture(t, adapter, client, 3)
	require.NoError(t, exec.ExecuteQuestion(context.Background(), "run-1", q))

	stored, err := st.GetQuestion("run-1", "q-1")
	require.NoError(t, err)
	assert.Equal(t, models.LabelCorrect, stored.Phases[models.PhaseEvaluate].Verdict.Label)
}

func TestExecuteQuestionCancellationLeavesNoFailureMarker(t *testing.T) {
	adapter := &stubAdapter{}
	client := llm.NewFakeClient("")
	exec, st, q := newPipelineFixture(t, adapter, client, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := exec.ExecuteQuestion(ctx, "run-1", q)
	assert.ErrorIs(t, err, context.Canceled)

	stored, err := st.GetQuestion("run-1", "q-1")
	require.NoError(t, err)
	assert.Empty(t, stored.FailedPhase, "a stop is not a failure")
}

func TestExecuteQuestionNotifiesPhaseCompletions(t *testing.T) {
	adapter := &stubAdapter{searchResult: []models.SearchResult{{Text: "hit"}}}
	client := llm.NewFakeClient("")
	client.Script("answer-model", "answer")
	client.Script("judge-model", `{"label": "correct", "explanation": "ok"}`)

	st := store.NewMemoryStore()
	q := &models.Question{
		QuestionID:   "q-1",
		Question:     "q?",
		GroundTruth:  "a",
		ContainerTag: "tag",
		Phases:       make(map[models.Phase]*models.PhaseResult),
	}
	require.NoError(t, st.CreateRun(&models.Run{RunID: "run-1", Status: models.StatusPending}, []*models.Question{q}))

	var completed []models.Phase
	exec := New(Config{
		Store:          st,
		Adapter:        adapter,
		Evaluator:      evaluate.New(client, "judge-model"),
		Client:         client,
		AnsweringModel: "answer-model",
		MaxAttempts:    1,
		OnPhaseComplete: func(_ *models.Question, phase models.Phase) {
			completed = append(completed, phase)
		},
	})

	loaded, err := st.GetQuestion("run-1", "q-1")
	require.NoError(t, err)
	require.NoError(t, exec.ExecuteQuestion(context.Background(), "run-1", loaded))
	assert.Equal(t, models.PhaseOrder, completed)
}
