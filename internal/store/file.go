package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/membench/membench/internal/models"
)

// runDocument is the on-disk form of a run: the run record plus its full
// question set in dataset order.
type runDocument struct {
	Run       *models.Run        `json:"run"`
	Questions []*models.Question `json:"questions"`
}

// FileStore is a Store that persists each run as one JSON file under a
// results directory, so a continued run survives process restarts. All reads
// and mutations go through an in-memory copy; every mutation is written
// through to disk with a temp-file rename, so a crash never leaves a
// half-written run file.
type FileStore struct {
	dir string
	mem *MemoryStore

	// writeMu serializes the write-through renames per store.
	writeMu sync.Mutex
}

// OpenFileStore loads all existing run files from dir, creating it if
// needed.
func OpenFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating results directory: %w", err)
	}

	fs := &FileStore{dir: dir, mem: NewMemoryStore()}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading results directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading run file %s: %w", e.Name(), err)
		}
		var doc runDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing run file %s: %w", e.Name(), err)
		}
		if doc.Run == nil {
			continue
		}

		// A run that was mid-flight when the process died is resumable, not
		// running. Pending covers a crash between creation and launch.
		switch doc.Run.Status {
		case models.StatusPending, models.StatusInitializing, models.StatusRunning:
			doc.Run.Status = models.StatusStopped
		}

		// CreateRun would reset counters from the question set; restoring the
		// persisted summary keeps counts that were already durably recorded.
		summary := doc.Run.Summary
		if err := fs.mem.CreateRun(doc.Run, doc.Questions); err != nil {
			return nil, fmt.Errorf("restoring run %s: %w", doc.Run.RunID, err)
		}
		fs.mem.mu.Lock()
		fs.mem.runs[doc.Run.RunID].run.Summary = summary
		fs.mem.mu.Unlock()
	}

	return fs, nil
}

func (s *FileStore) CreateRun(run *models.Run, questions []*models.Question) error {
	if err := s.mem.CreateRun(run, questions); err != nil {
		return err
	}
	return s.persist(run.RunID)
}

func (s *FileStore) GetRun(runID string) (*models.Run, error) {
	return s.mem.GetRun(runID)
}

func (s *FileStore) ListRuns() ([]*models.Run, error) {
	return s.mem.ListRuns()
}

func (s *FileStore) UpdateRunStatus(runID string, status models.RunStatus) error {
	if err := s.mem.UpdateRunStatus(runID, status); err != nil {
		return err
	}
	return s.persist(runID)
}

func (s *FileStore) DeleteRun(runID string) error {
	if err := s.mem.DeleteRun(runID); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := os.Remove(s.runPath(runID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing run file: %w", err)
	}
	return nil
}

func (s *FileStore) Questions(runID string) ([]*models.Question, error) {
	return s.mem.Questions(runID)
}

func (s *FileStore) GetQuestion(runID, questionID string) (*models.Question, error) {
	return s.mem.GetQuestion(runID, questionID)
}

func (s *FileStore) AppendPhaseResult(runID, questionID string, result *models.PhaseResult) error {
	if err := s.mem.AppendPhaseResult(runID, questionID, result); err != nil {
		return err
	}
	return s.persist(runID)
}

func (s *FileStore) MarkQuestionFailed(runID, questionID string, phase models.Phase, errMsg string) error {
	if err := s.mem.MarkQuestionFailed(runID, questionID, phase, errMsg); err != nil {
		return err
	}
	return s.persist(runID)
}

// persist writes the current snapshot of one run to disk atomically. The
// snapshot is taken under writeMu so a concurrent append can never be
// overwritten by a rename carrying an older snapshot.
func (s *FileStore) persist(runID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	run, err := s.mem.GetRun(runID)
	if err != nil {
		return err
	}
	questions, err := s.mem.Questions(runID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(runDocument{Run: run, Questions: questions}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling run %s: %w", runID, err)
	}

	tmp, err := os.CreateTemp(s.dir, runID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp run file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing run file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing run file: %w", err)
	}
	if err := os.Rename(tmpPath, s.runPath(runID)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming run file: %w", err)
	}
	return nil
}

func (s *FileStore) runPath(runID string) string {
	return filepath.Join(s.dir, runID+".json")
}

var _ Store = (*FileStore)(nil)
