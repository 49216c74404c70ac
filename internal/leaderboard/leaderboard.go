// Package leaderboard records completed runs as comparable score entries.
// Adding a run is a read-only transformation of run state; the leaderboard
// never feeds back into the pipeline.
package leaderboard

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/membench/membench/internal/models"
)

// Entry is one completed run's standing.
type Entry struct {
	RunID     string  `json:"run_id"`
	Provider  string  `json:"provider"`
	Benchmark string  `json:"benchmark"`
	Accuracy  float64 `json:"accuracy"`
	Evaluated int     `json:"evaluated"`
	Total     int     `json:"total"`
	CreatedAt string  `json:"created_at"`
}

// FromRun converts a completed run into a leaderboard entry. Runs that are
// not completed, or have no evaluated questions, are rejected.
func FromRun(run *models.Run) (Entry, error) {
	if run.Status != models.StatusCompleted {
		return Entry{}, fmt.Errorf("run %q is %s, only completed runs join the leaderboard", run.RunID, run.Status)
	}
	accuracy, ok := run.Summary.Accuracy()
	if !ok {
		return Entry{}, fmt.Errorf("run %q has no evaluated questions", run.RunID)
	}
	return Entry{
		RunID:     run.RunID,
		Provider:  run.Provider,
		Benchmark: run.Benchmark,
		Accuracy:  accuracy,
		Evaluated: run.Summary.Evaluated,
		Total:     run.Summary.Total,
		CreatedAt: run.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}, nil
}

// Board is a JSON-file-backed leaderboard.
type Board struct {
	path string
	mu   sync.Mutex
}

// NewBoard creates a board persisted at path. The file is created on first
// append.
func NewBoard(path string) *Board {
	return &Board{path: path}
}

// Add appends a completed run, replacing any prior entry for the same run.
func (b *Board) Add(run *models.Run) (Entry, error) {
	entry, err := FromRun(run)
	if err != nil {
		return Entry{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	entries, err := b.readLocked()
	if err != nil {
		return Entry{}, err
	}

	replaced := false
	for i := range entries {
		if entries[i].RunID == entry.RunID {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}

	if err := b.writeLocked(entries); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// List returns all entries ordered by accuracy, best first.
func (b *Board) List() ([]Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries, err := b.readLocked()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Accuracy > entries[j].Accuracy
	})
	return entries, nil
}

func (b *Board) readLocked() ([]Entry, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading leaderboard: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing leaderboard: %w", err)
	}
	return entries, nil
}

func (b *Board) writeLocked(entries []Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling leaderboard: %w", err)
	}
	if err := os.WriteFile(b.path, data, 0o644); err != nil {
		return fmt.Errorf("writing leaderboard: %w", err)
	}
	return nil
}
