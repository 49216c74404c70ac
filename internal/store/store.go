// Package store holds run and question records. It is the only shared
// mutable state in the system; all mutations arrive through the run manager
// and phase executor, never from provider adapters.
package store

import (
	"errors"

	"github.com/membench/membench/internal/models"
)

// ErrNotFound is returned when a run or question ID matches nothing.
var ErrNotFound = errors.New("not found")

// ErrRunActive is returned when an operation requires the run to not be
// running (e.g. delete).
var ErrRunActive = errors.New("run is active")

// ErrInvalidState is returned for lifecycle transitions the state machine
// does not allow.
var ErrInvalidState = errors.New("invalid run state transition")

// ErrPhaseRecorded is returned when a phase result would overwrite an
// existing one. Phase results are immutable once written.
var ErrPhaseRecorded = errors.New("phase result already recorded")

// Store provides atomic access to run and question records. Reads return
// deep copies so callers always observe a consistent snapshot: no partially
// updated counters, no aliasing of internal state.
type Store interface {
	// CreateRun atomically records a run and its full question set.
	CreateRun(run *models.Run, questions []*models.Question) error

	// GetRun returns a snapshot of one run.
	GetRun(runID string) (*models.Run, error)

	// ListRuns returns snapshots of all runs, ordered by creation time.
	ListRuns() ([]*models.Run, error)

	// UpdateRunStatus applies a lifecycle transition, enforcing the state
	// machine.
	UpdateRunStatus(runID string, status models.RunStatus) error

	// DeleteRun removes a run and all its questions. Fails with ErrRunActive
	// while the run is running.
	DeleteRun(runID string) error

	// Questions returns snapshots of all questions for a run, in dataset
	// order.
	Questions(runID string) ([]*models.Question, error)

	// GetQuestion returns a snapshot of one question.
	GetQuestion(runID, questionID string) (*models.Question, error)

	// AppendPhaseResult records a completed phase for a question and bumps
	// the run's counter for that phase in the same atomic step. Appending to
	// an already-recorded phase fails with ErrPhaseRecorded.
	AppendPhaseResult(runID, questionID string, result *models.PhaseResult) error

	// MarkQuestionFailed records that a question exhausted its retries at
	// the given phase on this pass.
	MarkQuestionFailed(runID, questionID string, phase models.Phase, errMsg string) error
}
