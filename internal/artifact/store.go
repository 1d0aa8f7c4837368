package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Store keeps the records of one run under <root>/runs/<run_id>.
type Store struct {
	RunID   string
	BaseDir string
}

// New creates the run directory.
func New(root, runID string) (*Store, error) {
	if runID == "" {
		return nil, fmt.Errorf("artifact: run id is required")
	}
	base := filepath.Join(root, "runs", runID)
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("creating run dir: %w", err)
	}
	return &Store{RunID: runID, BaseDir: base}, nil
}

// WriteResult writes the executor result as result.json.
func (s *Store) WriteResult(result any) error {
	return s.writeJSON("result.json", result)
}

// WriteContext writes the final context as context.json.
func (s *Store) WriteContext(ctx any) error {
	return s.writeJSON("context.json", ctx)
}

func (s *Store) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	return os.WriteFile(filepath.Join(s.BaseDir, name), data, 0o644)
}
