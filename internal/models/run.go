package models

import "time"

// RunStatus represents the lifecycle state of a run.
type RunStatus string

const (
	StatusPending      RunStatus = "pending"
	StatusInitializing RunStatus = "initializing"
	StatusRunning      RunStatus = "running"
	StatusCompleted    RunStatus = "completed"
	StatusStopped      RunStatus = "stopped"
	StatusFailed       RunStatus = "failed"
)

// validTransitions is the run lifecycle state machine. Stopped and failed are
// terminal for a single start invocation but can transition back to running
// when the run is continued.
var validTransitions = map[RunStatus][]RunStatus{
	StatusPending:      {StatusInitializing},
	StatusInitializing: {StatusRunning, StatusFailed},
	StatusRunning:      {StatusCompleted, StatusStopped, StatusFailed},
	StatusStopped:      {StatusRunning},
	StatusFailed:       {StatusRunning},
	StatusCompleted:    {},
}

// CanTransition reports whether a run may move from one status to another.
func CanTransition(from, to RunStatus) bool {
	for _, t := range validTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Run is one execution of a provider against a benchmark dataset.
type Run struct {
	RunID          string     `json:"run_id"`
	Provider       string     `json:"provider"`
	Benchmark      string     `json:"benchmark"`
	JudgeModel     string     `json:"judge_model"`
	AnsweringModel string     `json:"answering_model"`
	Status         RunStatus  `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	Settings       RunConfig  `json:"settings"`
	Summary        RunSummary `json:"summary"`
}

// RunConfig carries the execution parameters a run was started with, so that
// continuing the run after a restart uses the same policy.
type RunConfig struct {
	Workers        int            `json:"workers"`
	MaxAttempts    int            `json:"max_attempts"`
	RetryBackoffMs int            `json:"retry_backoff_ms"`
	FailThreshold  float64        `json:"fail_threshold"`
	ProviderParams map[string]any `json:"provider_params,omitempty"`
}

// RunSummary holds per-phase completion counts for a run. Counts only ever
// increase, and each later phase count is bounded by the one before it.
type RunSummary struct {
	Total            int `json:"total"`
	Ingested         int `json:"ingested"`
	Indexed          int `json:"indexed"`
	Searched         int `json:"searched"`
	Answered         int `json:"answered"`
	Evaluated        int `json:"evaluated"`
	EvaluatedCorrect int `json:"evaluated_correct"`
}

// Count returns the completion counter for the given phase.
func (s RunSummary) Count(p Phase) int {
	switch p {
	case PhaseIngest:
		return s.Ingested
	case PhaseIndex:
		return s.Indexed
	case PhaseSearch:
		return s.Searched
	case PhaseAnswer:
		return s.Answered
	case PhaseEvaluate:
		return s.Evaluated
	default:
		return 0
	}
}

// Accuracy returns evaluated-correct over evaluated. The second return is
// false until at least one question has been evaluated; rounding is left to
// presentation.
func (s RunSummary) Accuracy() (float64, bool) {
	if s.Evaluated == 0 {
		return 0, false
	}
	return float64(s.EvaluatedCorrect) / float64(s.Evaluated), true
}

// Consistent reports whether the summary satisfies the pipeline ordering
// invariant: total >= ingested >= indexed >= searched >= answered >= evaluated.
func (s RunSummary) Consistent() bool {
	return s.Total >= s.Ingested &&
		s.Ingested >= s.Indexed &&
		s.Indexed >= s.Searched &&
		s.Searched >= s.Answered &&
		s.Answered >= s.Evaluated &&
		s.Evaluated >= s.EvaluatedCorrect &&
		s.EvaluatedCorrect >= 0
}
