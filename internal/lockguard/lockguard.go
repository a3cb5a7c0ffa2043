// Package lockguard enforces the single-writer invariant: at most one
// orchestrator process may hold write access to a run directory. The lock
// is a well-known marker file containing the owner's PID. Acquire fails
// fast when the marker exists; there is no automatic takeover of a stale
// marker, because guessing staleness risks split-brain writes. Removal of
// a dead owner's marker is an explicit operator action (ForceRelease).
package lockguard

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/zeromine/zeromine/internal/errors"
)

// FileName is the lock marker name within a run directory.
const FileName = "orchestrator.lock"

// Handle represents an acquired orchestrator lock.
type Handle struct {
	PID        int       `json:"pid"`
	Hostname   string    `json:"hostname"`
	AcquiredAt time.Time `json:"acquired_at"`

	path string
}

// Acquire attempts to take exclusive write ownership of the run directory.
// It fails with ErrLocked if the marker exists, whether or not the owning
// process is still alive: a crashed orchestrator's marker must be removed
// deliberately, not silently stepped over.
func Acquire(runDir string) (*Handle, error) {
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("create run directory: %w", err)
	}
	lockPath := filepath.Join(runDir, FileName)

	if existing, err := Read(runDir); err == nil {
		state := "stale (owner dead); remove with the unlock command if no orchestrator is running"
		if isProcessAlive(existing.PID) {
			state = "owner is alive"
		}
		return nil, fmt.Errorf("%w: held by PID %d on %s, %s",
			errors.ErrLocked, existing.PID, existing.Hostname, state)
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	h := &Handle{
		PID:        os.Getpid(),
		Hostname:   hostname,
		AcquiredAt: time.Now().UTC(),
		path:       lockPath,
	}

	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal lock: %w", err)
	}

	// O_EXCL closes the window between the existence check and creation.
	f, err := os.OpenFile(lockPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: lost creation race", errors.ErrLocked)
		}
		return nil, fmt.Errorf("create lock file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		_ = os.Remove(lockPath)
		return nil, fmt.Errorf("write lock file: %w", err)
	}
	return h, nil
}

// Release removes the lock marker. Only the owning process's handle can
// release; a marker written by someone else is left alone. Safe to call
// multiple times.
func (h *Handle) Release() error {
	if h == nil || h.path == "" {
		return nil
	}
	existing, err := readPath(h.path)
	if err != nil {
		return nil // already gone
	}
	if existing.PID != h.PID {
		return nil
	}
	return os.Remove(h.path)
}

// Read returns the current lock marker for a run directory, if any.
func Read(runDir string) (*Handle, error) {
	return readPath(filepath.Join(runDir, FileName))
}

func readPath(lockPath string) (*Handle, error) {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		return nil, err
	}
	var h Handle
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("parse lock file: %w", err)
	}
	h.path = lockPath
	return &h, nil
}

// ForceRelease removes the lock marker regardless of who wrote it, as
// long as the recorded owner is no longer running. This is the explicit
// operator action for cleaning up after an unclean shutdown. It refuses
// to remove the marker of a live process.
func ForceRelease(runDir string) (bool, error) {
	h, err := Read(runDir)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		// Unparseable marker: still an operator-requested removal.
		return true, os.Remove(filepath.Join(runDir, FileName))
	}
	if isProcessAlive(h.PID) {
		return false, fmt.Errorf("%w: owner PID %d is still running", errors.ErrLocked, h.PID)
	}
	if err := os.Remove(h.path); err != nil {
		return false, fmt.Errorf("remove lock file: %w", err)
	}
	return true, nil
}

// isProcessAlive checks whether a PID refers to a running process.
// Signal 0 probes existence without affecting the target.
func isProcessAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
