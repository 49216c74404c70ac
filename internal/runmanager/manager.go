// Package runmanager owns the run lifecycle: creating and resuming runs,
// fanning questions out to phase executors under bounded concurrency, and
// exposing snapshot reads of run and question state.
package runmanager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/membench/membench/internal/dataset"
	"github.com/membench/membench/internal/evaluate"
	"github.com/membench/membench/internal/llm"
	"github.com/membench/membench/internal/models"
	"github.com/membench/membench/internal/pipeline"
	"github.com/membench/membench/internal/providers"
	"github.com/membench/membench/internal/store"
)

// StartConfig describes a run to create or resume. When RunID names an
// existing run this is a resume and every other field except the lifecycle
// settings is taken from the stored run.
type StartConfig struct {
	RunID          string
	Provider       string
	Benchmark      *dataset.Benchmark
	JudgeModel     string
	AnsweringModel string
	Settings       models.RunConfig
}

// Manager coordinates run lifecycles over a shared store. Lifecycle
// operations on the same run serialize through the manager mutex; work on
// different runs proceeds independently.
type Manager struct {
	store    store.Store
	registry *providers.Registry
	client   llm.Client
	logger   *slog.Logger

	mu     sync.Mutex
	active map[string]*activeRun

	progressMu sync.Mutex
	listeners  []Listener
}

type activeRun struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a manager.
func New(st store.Store, registry *providers.Registry, client llm.Client, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:    st,
		registry: registry,
		client:   client,
		logger:   logger,
		active:   make(map[string]*activeRun),
	}
}

// Start creates a new run or resumes an existing one.
//
// Fresh runs load the benchmark's question set through the adapter's Prepare
// step, record every question with an empty phase map, and fan execution out
// across workers. Resumes pick up each question at its first phase without a
// result; fully completed questions are skipped entirely.
//
// Start on a run that is already running is a no-op returning the current
// state, which guarantees at most one active execution per run ID.
func (m *Manager) Start(ctx context.Context, cfg StartConfig) (*models.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cfg.RunID != "" {
		run, err := m.store.GetRun(cfg.RunID)
		switch {
		case err == nil:
			return m.resumeLocked(ctx, run)
		case !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
	}

	return m.createLocked(ctx, cfg)
}

// Continue resumes a stopped or failed run. It is Start with only a run ID;
// the stored run supplies everything else.
func (m *Manager) Continue(ctx context.Context, runID string) (*models.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, err := m.store.GetRun(runID)
	if err != nil {
		return nil, err
	}
	return m.resumeLocked(ctx, run)
}

func (m *Manager) createLocked(ctx context.Context, cfg StartConfig) (*models.Run, error) {
	if cfg.Benchmark == nil {
		return nil, fmt.Errorf("starting run: benchmark dataset is required")
	}

	adapter, err := m.registry.Create(cfg.Provider, cfg.Settings.ProviderParams)
	if err != nil {
		return nil, err
	}

	prepared, err := adapter.Prepare(cfg.Benchmark.Type, cfg.Benchmark.Items)
	if err != nil {
		return nil, fmt.Errorf("preparing provider %q: %w", cfg.Provider, err)
	}

	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	run := &models.Run{
		RunID:          runID,
		Provider:       cfg.Provider,
		Benchmark:      cfg.Benchmark.Name,
		JudgeModel:     cfg.JudgeModel,
		AnsweringModel: cfg.AnsweringModel,
		Status:         models.StatusPending,
		CreatedAt:      time.Now().UTC(),
		Settings:       cfg.Settings,
	}

	questions := make([]*models.Question, 0, len(prepared))
	for _, pq := range prepared {
		questions = append(questions, &models.Question{
			QuestionID:   pq.QuestionID,
			Question:     pq.Question,
			GroundTruth:  pq.GroundTruth,
			QuestionType: pq.QuestionType,
			ContainerTag: runID + "-" + uuid.NewString(),
			Contexts:     pq.Contexts,
			Phases:       make(map[models.Phase]*models.PhaseResult),
		})
	}

	if err := m.store.CreateRun(run, questions); err != nil {
		return nil, err
	}
	if err := m.store.UpdateRunStatus(runID, models.StatusInitializing); err != nil {
		return nil, err
	}
	if err := m.store.UpdateRunStatus(runID, models.StatusRunning); err != nil {
		return nil, err
	}

	m.launchLocked(ctx, runID, adapter)
	return m.store.GetRun(runID)
}

func (m *Manager) resumeLocked(ctx context.Context, run *models.Run) (*models.Run, error) {
	// Already executing: no-op returning current state.
	if _, executing := m.active[run.RunID]; executing {
		return run, nil
	}

	// Fully evaluated runs have nothing to resume; continue is idempotent.
	if run.Status == models.StatusCompleted {
		return run, nil
	}

	switch run.Status {
	case models.StatusStopped, models.StatusFailed:
	default:
		return nil, fmt.Errorf("run %q cannot be resumed from %s: %w", run.RunID, run.Status, store.ErrInvalidState)
	}

	adapter, err := m.registry.Create(run.Provider, run.Settings.ProviderParams)
	if err != nil {
		return nil, err
	}

	if err := m.store.UpdateRunStatus(run.RunID, models.StatusRunning); err != nil {
		return nil, err
	}

	m.launchLocked(ctx, run.RunID, adapter)
	return m.store.GetRun(run.RunID)
}

// launchLocked registers the execution context and starts the fan-out
// goroutine. Callers hold m.mu.
func (m *Manager) launchLocked(ctx context.Context, runID string, adapter providers.Adapter) {
	// The run outlives the Start call; only Stop cancels it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	ar := &activeRun{cancel: cancel, done: make(chan struct{})}
	m.active[runID] = ar

	go m.fanOut(runCtx, runID, adapter, ar)
}

func (m *Manager) fanOut(ctx context.Context, runID string, adapter providers.Adapter, ar *activeRun) {
	defer close(ar.done)
	defer func() {
		m.mu.Lock()
		delete(m.active, runID)
		m.mu.Unlock()
	}()

	run, err := m.store.GetRun(runID)
	if err != nil {
		m.logger.Error("fan-out: run vanished", "run_id", runID, "error", err)
		return
	}
	questions, err := m.store.Questions(runID)
	if err != nil {
		m.logger.Error("fan-out: loading questions", "run_id", runID, "error", err)
		return
	}

	m.notify(Event{Type: EventRunStart, RunID: runID})

	executor := pipeline.New(pipeline.Config{
		Store:          m.store,
		Adapter:        adapter,
		Evaluator:      evaluate.New(m.client, run.JudgeModel),
		Client:         m.client,
		AnsweringModel: run.AnsweringModel,
		MaxAttempts:    run.Settings.MaxAttempts,
		Backoff:        time.Duration(run.Settings.RetryBackoffMs) * time.Millisecond,
		Logger:         m.logger,
		OnPhaseComplete: func(q *models.Question, phase models.Phase) {
			m.notify(Event{
				Type:       EventPhaseComplete,
				RunID:      runID,
				QuestionID: q.QuestionID,
				Phase:      phase,
			})
		},
	})

	workers := int64(run.Settings.Workers)
	if workers <= 0 {
		workers = int64(models.DefaultWorkers)
	}
	sem := semaphore.NewWeighted(workers)

	var wg sync.WaitGroup
	var failed atomic.Int64

	for _, q := range questions {
		if q.Complete() {
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			// Stop requested while waiting for a worker slot.
			break
		}

		wg.Add(1)
		go func(q *models.Question) {
			defer wg.Done()
			defer sem.Release(1)

			if err := executor.ExecuteQuestion(ctx, runID, q); err != nil {
				var phaseErr *pipeline.PhaseError
				if errors.As(err, &phaseErr) {
					failed.Add(1)
					m.notify(Event{
						Type:       EventQuestionFailed,
						RunID:      runID,
						QuestionID: q.QuestionID,
						Phase:      phaseErr.Phase,
					})
				}
			}
		}(q)
	}

	wg.Wait()

	final := m.finalStatus(ctx, run, int(failed.Load()))
	if err := m.store.UpdateRunStatus(runID, final); err != nil {
		m.logger.Error("fan-out: recording final status", "run_id", runID, "status", final, "error", err)
	}

	m.notify(Event{Type: EventRunComplete, RunID: runID, Status: final})
}

// finalStatus decides what a drained run pass becomes. Stop wins over
// everything; otherwise the configured fail threshold (fraction of
// permanently-failed questions) decides failed versus completed.
func (m *Manager) finalStatus(ctx context.Context, run *models.Run, failed int) models.RunStatus {
	if ctx.Err() != nil {
		return models.StatusStopped
	}
	if failed > 0 {
		total := run.Summary.Total
		if total == 0 {
			total = 1
		}
		if float64(failed)/float64(total) >= run.Settings.FailThreshold {
			return models.StatusFailed
		}
		// Below threshold: the pass finishes as stopped so the failed
		// questions stay eligible for continue.
		return models.StatusStopped
	}
	return models.StatusCompleted
}

// Stop signals the run's in-flight work to stop accepting new phases and
// blocks until it drains. Completed phase results are retained.
func (m *Manager) Stop(runID string) error {
	m.mu.Lock()
	ar, ok := m.active[runID]
	m.mu.Unlock()

	if !ok {
		run, err := m.store.GetRun(runID)
		if err != nil {
			return err
		}
		return fmt.Errorf("run %q is not running (status %s): %w", runID, run.Status, store.ErrInvalidState)
	}

	ar.cancel()
	<-ar.done
	return nil
}

// Delete removes a run and all its question records. Running runs must be
// stopped first.
func (m *Manager) Delete(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, executing := m.active[runID]; executing {
		return fmt.Errorf("run %q: %w", runID, store.ErrRunActive)
	}
	return m.store.DeleteRun(runID)
}

// Wait blocks until the run's current execution pass drains. It returns
// immediately when the run is not executing.
func (m *Manager) Wait(runID string) {
	m.mu.Lock()
	ar, ok := m.active[runID]
	m.mu.Unlock()
	if !ok {
		return
	}
	<-ar.done
}

// GetSummary returns a consistent snapshot of one run.
func (m *Manager) GetSummary(runID string) (*models.Run, error) {
	return m.store.GetRun(runID)
}

// ListRuns returns snapshots of all runs.
func (m *Manager) ListRuns() ([]*models.Run, error) {
	return m.store.ListRuns()
}

// Questions returns snapshots of a run's questions.
func (m *Manager) Questions(runID string) ([]*models.Question, error) {
	return m.store.Questions(runID)
}

// QuestionDetail returns one question with its full phase results, raw
// search hits included.
func (m *Manager) QuestionDetail(runID, questionID string) (*models.Question, error) {
	return m.store.GetQuestion(runID, questionID)
}
