package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/membench/membench/internal/models"
)

// runRecord keeps a run together with its questions. questionOrder preserves
// dataset order for listing.
type runRecord struct {
	run           *models.Run
	questions     map[string]*models.Question
	questionOrder []string
}

// MemoryStore is an in-memory Store guarded by a single RWMutex, for tests
// and ephemeral runs.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*runRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]*runRecord)}
}

func (s *MemoryStore) CreateRun(run *models.Run, questions []*models.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.RunID]; exists {
		return fmt.Errorf("run %q: already exists", run.RunID)
	}

	rec := &runRecord{
		run:       cloneRun(run),
		questions: make(map[string]*models.Question, len(questions)),
	}
	for _, q := range questions {
		if q.Phases == nil {
			q.Phases = make(map[models.Phase]*models.PhaseResult)
		}
		rec.questions[q.QuestionID] = q.Clone()
		rec.questionOrder = append(rec.questionOrder, q.QuestionID)
	}
	rec.run.Summary.Total = len(questions)
	s.runs[run.RunID] = rec
	return nil
}

func (s *MemoryStore) GetRun(runID string) (*models.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %q: %w", runID, ErrNotFound)
	}
	return cloneRun(rec.run), nil
}

func (s *MemoryStore) ListRuns() ([]*models.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]*models.Run, 0, len(s.runs))
	for _, rec := range s.runs {
		runs = append(runs, cloneRun(rec.run))
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].RunID < runs[j].RunID
		}
		return runs[i].CreatedAt.Before(runs[j].CreatedAt)
	})
	return runs, nil
}

func (s *MemoryStore) UpdateRunStatus(runID string, status models.RunStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateRunStatusLocked(runID, status)
}

func (s *MemoryStore) updateRunStatusLocked(runID string, status models.RunStatus) error {
	rec, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("run %q: %w", runID, ErrNotFound)
	}
	if !models.CanTransition(rec.run.Status, status) {
		return fmt.Errorf("run %q: %s -> %s: %w", runID, rec.run.Status, status, ErrInvalidState)
	}
	rec.run.Status = status
	return nil
}

func (s *MemoryStore) DeleteRun(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("run %q: %w", runID, ErrNotFound)
	}
	if rec.run.Status == models.StatusRunning || rec.run.Status == models.StatusInitializing {
		return fmt.Errorf("run %q: %w", runID, ErrRunActive)
	}
	delete(s.runs, runID)
	return nil
}

func (s *MemoryStore) Questions(runID string) ([]*models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %q: %w", runID, ErrNotFound)
	}
	questions := make([]*models.Question, 0, len(rec.questionOrder))
	for _, id := range rec.questionOrder {
		questions = append(questions, rec.questions[id].Clone())
	}
	return questions, nil
}

func (s *MemoryStore) GetQuestion(runID, questionID string) (*models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %q: %w", runID, ErrNotFound)
	}
	q, ok := rec.questions[questionID]
	if !ok {
		return nil, fmt.Errorf("question %q: %w", questionID, ErrNotFound)
	}
	return q.Clone(), nil
}

func (s *MemoryStore) AppendPhaseResult(runID, questionID string, result *models.PhaseResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("run %q: %w", runID, ErrNotFound)
	}
	q, ok := rec.questions[questionID]
	if !ok {
		return fmt.Errorf("question %q: %w", questionID, ErrNotFound)
	}
	if q.Phases[result.Phase] != nil {
		return fmt.Errorf("question %q phase %s: %w", questionID, result.Phase, ErrPhaseRecorded)
	}

	stored := *result
	if stored.CompletedAt.IsZero() {
		stored.CompletedAt = time.Now().UTC()
	}
	q.Phases[result.Phase] = &stored

	// Clear any prior failure marker once the question advances again.
	q.FailedPhase = ""
	q.LastError = ""

	bumpCounter(&rec.run.Summary, &stored)
	return nil
}

func (s *MemoryStore) MarkQuestionFailed(runID, questionID string, phase models.Phase, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("run %q: %w", runID, ErrNotFound)
	}
	q, ok := rec.questions[questionID]
	if !ok {
		return fmt.Errorf("question %q: %w", questionID, ErrNotFound)
	}
	q.FailedPhase = phase
	q.LastError = errMsg
	return nil
}

// bumpCounter increments the summary counter for a completed phase. Counters
// are monotone: they are only ever incremented here, under the store lock.
func bumpCounter(s *models.RunSummary, result *models.PhaseResult) {
	switch result.Phase {
	case models.PhaseIngest:
		s.Ingested++
	case models.PhaseIndex:
		s.Indexed++
	case models.PhaseSearch:
		s.Searched++
	case models.PhaseAnswer:
		s.Answered++
	case models.PhaseEvaluate:
		s.Evaluated++
		if result.Verdict != nil && result.Verdict.Label == models.LabelCorrect {
			s.EvaluatedCorrect++
		}
	}
}

func cloneRun(r *models.Run) *models.Run {
	cp := *r
	if r.Settings.ProviderParams != nil {
		cp.Settings.ProviderParams = make(map[string]any, len(r.Settings.ProviderParams))
		for k, v := range r.Settings.ProviderParams {
			cp.Settings.ProviderParams[k] = v
		}
	}
	return &cp
}

var _ Store = (*MemoryStore)(nil)
