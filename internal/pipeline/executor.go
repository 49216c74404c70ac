// Package pipeline drives a single question through the fixed phase
// sequence, persisting each phase's artifact as it completes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/membench/membench/internal/evaluate"
	"github.com/membench/membench/internal/llm"
	"github.com/membench/membench/internal/models"
	"github.com/membench/membench/internal/prompts"
	"github.com/membench/membench/internal/providers"
	"github.com/membench/membench/internal/store"
)

// PhaseError reports which phase a question's pipeline failed at after
// exhausting its retries.
type PhaseError struct {
	QuestionID string
	Phase      models.Phase
	Err        error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("question %s: phase %s: %v", e.QuestionID, e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// Executor runs one question at a time through the phase list. It is safe
// for concurrent use across questions: all mutable state lives in the store.
type Executor struct {
	store          store.Store
	adapter        providers.Adapter
	evaluator      *evaluate.Evaluator
	client         llm.Client
	answeringModel string
	maxAttempts    int
	backoff        time.Duration
	logger         *slog.Logger
	onPhase        func(q *models.Question, phase models.Phase)
}

// Config collects the executor's collaborators and retry policy.
type Config struct {
	Store          store.Store
	Adapter        providers.Adapter
	Evaluator      *evaluate.Evaluator
	Client         llm.Client
	AnsweringModel string
	MaxAttempts    int
	Backoff        time.Duration
	Logger         *slog.Logger

	// OnPhaseComplete, when set, is invoked after each phase result is
	// durably recorded.
	OnPhaseComplete func(q *models.Question, phase models.Phase)
}

// New creates an executor. MaxAttempts below 1 is clamped to 1.
func New(cfg Config) *Executor {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Executor{
		store:          cfg.Store,
		adapter:        cfg.Adapter,
		evaluator:      cfg.Evaluator,
		client:         cfg.Client,
		answeringModel: cfg.AnsweringModel,
		maxAttempts:    cfg.MaxAttempts,
		backoff:        cfg.Backoff,
		logger:         cfg.Logger,
		onPhase:        cfg.OnPhaseComplete,
	}
}

// ExecuteQuestion advances the question through every remaining phase.
// Phases with a recorded result are skipped and their artifacts reused:
// that single rule is what makes continue idempotent and restart-safe.
// A phase that exhausts its retries marks the question failed and returns a
// PhaseError; a context cancellation returns without marking anything.
func (e *Executor) ExecuteQuestion(ctx context.Context, runID string, q *models.Question) error {
	for _, phase := range models.PhaseOrder {
		if q.Phases[phase] != nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		result, err := e.runPhaseWithRetry(ctx, phase, q)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
				return err
			}
			msg := err.Error()
			if markErr := e.store.MarkQuestionFailed(runID, q.QuestionID, phase, msg); markErr != nil {
				e.logger.Error("failed to record question failure",
					"run_id", runID, "question_id", q.QuestionID, "error", markErr)
			}
			return &PhaseError{QuestionID: q.QuestionID, Phase: phase, Err: err}
		}

		// A phase either completes and records a full artifact or is not
		// recorded at all; the append is the durability point phase N+1
		// waits on.
		if err := e.store.AppendPhaseResult(runID, q.QuestionID, result); err != nil {
			return fmt.Errorf("recording %s result for %s: %w", phase, q.QuestionID, err)
		}
		q.Phases[phase] = result

		if e.onPhase != nil {
			e.onPhase(q, phase)
		}

		e.logger.Debug("phase complete",
			"run_id", runID, "question_id", q.QuestionID, "phase", phase)
	}
	return nil
}

func (e *Executor) runPhaseWithRetry(ctx context.Context, phase models.Phase, q *models.Question) (*models.PhaseResult, error) {
	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		result, err := e.runPhase(ctx, phase, q)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !retryable(err) {
			return nil, err
		}
		if attempt == e.maxAttempts {
			break
		}

		e.logger.Debug("retrying phase",
			"question_id", q.QuestionID, "phase", phase,
			"attempt", attempt, "max_attempts", e.maxAttempts, "error", err)

		if err := sleepCtx(ctx, e.backoff*time.Duration(attempt)); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("exhausted %d attempt(s): %w", e.maxAttempts, lastErr)
}

// retryable reports whether a phase failure is worth another attempt:
// transient provider/model errors, call timeouts, and judge responses that
// failed to parse.
func retryable(err error) bool {
	return providers.IsTransient(err) || errors.Is(err, evaluate.ErrMalformedJudgeOutput)
}

func (e *Executor) runPhase(ctx context.Context, phase models.Phase, q *models.Question) (*models.PhaseResult, error) {
	switch phase {
	case models.PhaseIngest:
		return e.runIngest(ctx, q)
	case models.PhaseIndex:
		return e.runIndex(ctx, q)
	case models.PhaseSearch:
		return e.runSearch(ctx, q)
	case models.PhaseAnswer:
		return e.runAnswer(ctx, q)
	case models.PhaseEvaluate:
		return e.runEvaluate(ctx, q)
	default:
		return nil, fmt.Errorf("unknown phase %q", phase)
	}
}

func (e *Executor) runIngest(ctx context.Context, q *models.Question) (*models.PhaseResult, error) {
	for _, data := range q.Contexts {
		if err := e.adapter.AddContext(ctx, q.ContainerTag, data); err != nil {
			return nil, fmt.Errorf("add context: %w", err)
		}
	}
	return &models.PhaseResult{
		Phase:  models.PhaseIngest,
		Ingest: &models.IngestMarker{Units: len(q.Contexts)},
	}, nil
}

func (e *Executor) runIndex(ctx context.Context, q *models.Question) (*models.PhaseResult, error) {
	if finalizer, ok := e.adapter.(providers.IndexFinalizer); ok {
		if err := finalizer.FlushIndex(ctx, q.ContainerTag); err != nil {
			return nil, fmt.Errorf("flush index: %w", err)
		}
	}
	// Adapters without a separate indexing step record an empty marker.
	return &models.PhaseResult{Phase: models.PhaseIndex}, nil
}

func (e *Executor) runSearch(ctx context.Context, q *models.Question) (*models.PhaseResult, error) {
	results, err := e.adapter.SearchQuery(ctx, q.ContainerTag, q.Question)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	// An empty result list is a valid search outcome, recorded as-is.
	return &models.PhaseResult{Phase: models.PhaseSearch, SearchHits: results}, nil
}

func (e *Executor) runAnswer(ctx context.Context, q *models.Question) (*models.PhaseResult, error) {
	searchResult := q.Phases[models.PhaseSearch]
	if searchResult == nil {
		return nil, fmt.Errorf("answer phase requires a search result")
	}

	var prompt string
	if builder, ok := e.adapter.(providers.AnswerPromptBuilder); ok {
		prompt = builder.BuildAnswerPrompt(q.Question, searchResult.SearchHits)
	} else {
		prompt = prompts.DefaultAnswer(q.Question, searchResult.SearchHits)
	}

	hypothesis, err := e.client.Complete(ctx, e.answeringModel, prompts.AnswerSystem, prompt)
	if err != nil {
		return nil, classifyModelErr(fmt.Errorf("answer generation: %w", err))
	}

	return &models.PhaseResult{Phase: models.PhaseAnswer, Hypothesis: hypothesis}, nil
}

func (e *Executor) runEvaluate(ctx context.Context, q *models.Question) (*models.PhaseResult, error) {
	answerResult := q.Phases[models.PhaseAnswer]
	if answerResult == nil {
		return nil, fmt.Errorf("evaluate phase requires an answer result")
	}

	verdict, err := e.evaluator.Evaluate(ctx, q.Question, q.GroundTruth, answerResult.Hypothesis)
	if err != nil {
		if errors.Is(err, evaluate.ErrMalformedJudgeOutput) {
			return nil, err
		}
		return nil, classifyModelErr(err)
	}

	return &models.PhaseResult{Phase: models.PhaseEvaluate, Verdict: verdict}, nil
}

// classifyModelErr marks a model-call failure transient only when another
// attempt could succeed. Permanent rejections (auth, unknown model, bad
// request) fail the question on the first attempt.
func classifyModelErr(err error) error {
	if llm.IsRetryable(err) {
		return providers.Transient(err)
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
