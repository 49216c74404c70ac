package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    RunStatus
		to      RunStatus
		allowed bool
	}{
		{"pending to initializing", StatusPending, StatusInitializing, true},
		{"pending to running skips initializing", StatusPending, StatusRunning, false},
		{"initializing to running", StatusInitializing, StatusRunning, true},
		{"initializing to failed", StatusInitializing, StatusFailed, true},
		{"running to completed", StatusRunning, StatusCompleted, true},
		{"running to stopped", StatusRunning, StatusStopped, true},
		{"running to failed", StatusRunning, StatusFailed, true},
		{"stopped resumes to running", StatusStopped, StatusRunning, true},
		{"failed resumes to running", StatusFailed, StatusRunning, true},
		{"completed is terminal", StatusCompleted, StatusRunning, false},
		{"completed cannot fail", StatusCompleted, StatusFailed, false},
		{"stopped cannot complete directly", StatusStopped, StatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to))
		})
	}
}

func TestRunSummaryAccuracy(t *testing.T) {
	s := RunSummary{}
	_, ok := s.Accuracy()
	assert.False(t, ok, "accuracy is undefined with no evaluated questions")

	s = RunSummary{Evaluated: 10, EvaluatedCorrect: 7}
	accuracy, ok := s.Accuracy()
	assert.True(t, ok)
	assert.InDelta(t, 0.7, accuracy, 1e-9)
}

func TestRunSummaryConsistent(t *testing.T) {
	s := RunSummary{Total: 5, Ingested: 4, Indexed: 4, Searched: 3, Answered: 2, Evaluated: 1}
	assert.True(t, s.Consistent())

	s.Searched = 5
	assert.False(t, s.Consistent(), "searched cannot exceed indexed")
}

func TestRunSummaryCount(t *testing.T) {
	s := RunSummary{Ingested: 5, Indexed: 4, Searched: 3, Answered: 2, Evaluated: 1}
	assert.Equal(t, 5, s.Count(PhaseIngest))
	assert.Equal(t, 4, s.Count(PhaseIndex))
	assert.Equal(t, 3, s.Count(PhaseSearch))
	assert.Equal(t, 2, s.Count(PhaseAnswer))
	assert.Equal(t, 1, s.Count(PhaseEvaluate))
}
