package adapter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	m "flakyfence.dev/pkg/flakyfence/internal/model"
)

// ReportStore persists analysis runs for later inspection.
type ReportStore interface {
	// SaveRun writes the run under dir, assigning it a fresh ID when it
	// has none, and returns the file path.
	SaveRun(dir string, run *m.Run) (string, error)
	// LoadRuns reads every saved run under dir, most recent first.
	LoadRuns(dir string) ([]m.Run, error)
	// LoadRun reads one run by ID.
	LoadRun(dir, id string) (m.Run, error)
}

const runFilePrefix = "findings-"

// LocalReportStore stores runs as JSON files in a reports directory.
type LocalReportStore struct{}

// NewLocalReportStore constructs a LocalReportStore.
func NewLocalReportStore() *LocalReportStore {
	return &LocalReportStore{}
}

// SaveRun implements ReportStore.
func (s *LocalReportStore) SaveRun(dir string, run *m.Run) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating reports directory: %w", err)
	}

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Findings == nil {
		run.Findings = []m.Finding{}
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding run %s: %w", run.ID, err)
	}

	path := filepath.Join(dir, runFilePrefix+run.ID+".json")
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("writing run %s: %w", run.ID, err)
	}
	return path, nil
}

// LoadRuns implements ReportStore.
func (s *LocalReportStore) LoadRuns(dir string) ([]m.Run, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading reports directory: %w", err)
	}

	var runs []m.Run
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, runFilePrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading run file %s: %w", name, err)
		}

		var run m.Run
		if err := json.Unmarshal(data, &run); err != nil {
			return nil, fmt.Errorf("decoding run file %s: %w", name, err)
		}
		runs = append(runs, run)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return runs, nil
}

// LoadRun implements ReportStore.
func (s *LocalReportStore) LoadRun(dir, id string) (m.Run, error) {
	data, err := os.ReadFile(filepath.Join(dir, runFilePrefix+id+".json"))
	if err != nil {
		return m.Run{}, fmt.Errorf("reading run %s: %w", id, err)
	}

	var run m.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return m.Run{}, fmt.Errorf("decoding run %s: %w", id, err)
	}
	return run, nil
}
