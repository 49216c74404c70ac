package models

import "time"

// Phase is one stage of the per-question pipeline.
type Phase string

const (
	PhaseIngest   Phase = "ingest"
	PhaseIndex    Phase = "index"
	PhaseSearch   Phase = "search"
	PhaseAnswer   Phase = "answer"
	PhaseEvaluate Phase = "evaluate"
)

// PhaseOrder is the fixed execution order. The executor iterates this list
// rather than hardcoding the sequence, so ordering lives in exactly one place.
var PhaseOrder = []Phase{PhaseIngest, PhaseIndex, PhaseSearch, PhaseAnswer, PhaseEvaluate}

// VerdictLabel is the binary outcome of judging a hypothesis.
type VerdictLabel string

const (
	LabelCorrect   VerdictLabel = "correct"
	LabelIncorrect VerdictLabel = "incorrect"
)

// Verdict is the judge model's decision for one question.
type Verdict struct {
	Label       VerdictLabel `json:"label"`
	Explanation string       `json:"explanation"`
}

// SearchResult is one retrieved passage, ordered by provider-reported
// relevance where available.
type SearchResult struct {
	Text     string            `json:"text"`
	Score    float64           `json:"score,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// IngestMarker records that a question's source context was submitted to the
// provider.
type IngestMarker struct {
	Units int `json:"units"`
}

// PhaseResult is the output artifact of one completed phase. A result is
// immutable once written; retries either reuse it or never wrote it.
// Exactly one artifact field is populated, matching the phase.
type PhaseResult struct {
	Phase       Phase          `json:"phase"`
	CompletedAt time.Time      `json:"completed_at"`
	Ingest      *IngestMarker  `json:"ingest,omitempty"`
	SearchHits  []SearchResult `json:"search_hits,omitempty"`
	Hypothesis  string         `json:"hypothesis,omitempty"`
	Verdict     *Verdict       `json:"verdict,omitempty"`
}

// Question is one benchmark item within a run. Created once when the run is
// initialized, mutated in place as phases complete, never deleted individually.
type Question struct {
	QuestionID   string `json:"question_id"`
	Question     string `json:"question"`
	GroundTruth  string `json:"ground_truth"`
	QuestionType string `json:"question_type,omitempty"`

	// ContainerTag correlates the question to its execution context within
	// the provider (e.g. a session or collection name).
	ContainerTag string `json:"container_tag"`

	// Contexts holds the normalized context units the provider ingests for
	// this question, produced by the adapter's Prepare step. Persisting them
	// lets a continued run re-ingest after a restart.
	Contexts []string `json:"contexts,omitempty"`

	// Phases maps each completed phase to its result. A phase's entry exists
	// if and only if that phase has completed for this question.
	Phases map[Phase]*PhaseResult `json:"phases"`

	// FailedPhase is set when a phase exhausted its retries on the most
	// recent pass. A continued run retries from that phase.
	FailedPhase Phase  `json:"failed_phase,omitempty"`
	LastError   string `json:"last_error,omitempty"`
}

// NextPhase returns the first phase without a result, or false when every
// phase has completed.
func (q *Question) NextPhase() (Phase, bool) {
	for _, p := range PhaseOrder {
		if q.Phases[p] == nil {
			return p, true
		}
	}
	return "", false
}

// Complete reports whether every phase has a recorded result.
func (q *Question) Complete() bool {
	_, more := q.NextPhase()
	return !more
}

// Clone returns a deep copy, so stores can hand out snapshots without
// exposing their internal records.
func (q *Question) Clone() *Question {
	cp := *q
	cp.Contexts = append([]string(nil), q.Contexts...)
	cp.Phases = make(map[Phase]*PhaseResult, len(q.Phases))
	for p, r := range q.Phases {
		rc := *r
		if r.Ingest != nil {
			m := *r.Ingest
			rc.Ingest = &m
		}
		if r.Verdict != nil {
			v := *r.Verdict
			rc.Verdict = &v
		}
		if r.SearchHits != nil {
			rc.SearchHits = make([]SearchResult, len(r.SearchHits))
			copy(rc.SearchHits, r.SearchHits)
		}
		cp.Phases[p] = &rc
	}
	return &cp
}
