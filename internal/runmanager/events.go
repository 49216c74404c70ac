package runmanager

import "github.com/membench/membench/internal/models"

// EventType identifies a progress event.
type EventType string

const (
	EventRunStart       EventType = "run_start"
	EventRunComplete    EventType = "run_complete"
	EventPhaseComplete  EventType = "phase_complete"
	EventQuestionFailed EventType = "question_failed"
)

// Event is a progress update emitted while a run executes. Events are
// advisory; the authoritative state is always the snapshot read.
type Event struct {
	Type       EventType
	RunID      string
	QuestionID string
	Phase      models.Phase
	Status     models.RunStatus
}

// Listener receives progress events. Listeners must not block.
type Listener func(event Event)

// OnProgress registers a progress listener.
func (m *Manager) OnProgress(listener Listener) {
	m.progressMu.Lock()
	defer m.progressMu.Unlock()
	m.listeners = append(m.listeners, listener)
}

func (m *Manager) notify(event Event) {
	m.progressMu.Lock()
	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.progressMu.Unlock()

	for _, listener := range listeners {
		listener(event)
	}
}
