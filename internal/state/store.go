package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeromine/zeromine/internal/errors"
)

// FileName is the state snapshot file name within a run directory.
const FileName = "state.json"

// Store reads and writes the state snapshot for one run directory.
type Store struct {
	path string
}

// NewStore creates a Store for the given run directory.
func NewStore(runDir string) *Store {
	return &Store{path: filepath.Join(runDir, FileName)}
}

// Path returns the snapshot file path.
func (st *Store) Path() string {
	return st.path
}

// Load reads the snapshot. A missing file yields an empty state with the
// given run ID; an unparseable file yields ErrStateCorrupt so the caller
// can decide to rebuild from the ledger.
func (st *Store) Load(runID string) (*State, error) {
	data, err := os.ReadFile(st.path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(runID), nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStateCorrupt, err)
	}
	s.normalize()
	return &s, nil
}

// Save writes the snapshot atomically: data is written to a temporary
// file first, then renamed into place. A crash mid-save leaves the
// previous snapshot intact, never a partially written file.
func (st *Store) Save(s *State) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := st.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, st.path); err != nil {
		_ = os.Remove(tmp) // best-effort cleanup
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
