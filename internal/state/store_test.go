package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zeromine/zeromine/internal/contract"
	"github.com/zeromine/zeromine/internal/errors"
)

func TestLoadMissingReturnsEmpty(t *testing.T) {
	st := NewStore(t.TempDir())
	s, err := st.Load("run-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.RunID != "run-1" {
		t.Errorf("RunID = %q, want %q", s.RunID, "run-1")
	}
	if len(s.Jobs) != 0 || s.Accepted != 0 || s.Seq != 0 {
		t.Errorf("empty state = %+v", s)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	st := NewStore(dir)

	s := New("run-1")
	s.Jobs["job-1"] = &contract.Job{
		ID:        "job-1",
		TStart:    0,
		TEnd:      10,
		Stride:    0.5,
		Status:    contract.StatusRunning,
		CreatedAt: time.Now().UTC(),
	}
	s.JobOrder = []string{"job-1"}
	s.Accepted = 3
	s.RejectedByReason["DUPLICATE"] = 2
	s.Rejected = 2
	s.Seq = 5

	if err := st.Save(s); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := st.Load("ignored")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.RunID != "run-1" {
		t.Errorf("RunID = %q, want run-1", loaded.RunID)
	}
	if loaded.Jobs["job-1"] == nil || loaded.Jobs["job-1"].Status != contract.StatusRunning {
		t.Errorf("job-1 = %+v", loaded.Jobs["job-1"])
	}
	if loaded.Accepted != 3 || loaded.Rejected != 2 || loaded.Seq != 5 {
		t.Errorf("counters = %+v", loaded)
	}
	if loaded.RejectedByReason["DUPLICATE"] != 2 {
		t.Errorf("RejectedByReason = %v", loaded.RejectedByReason)
	}
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	st := NewStore(dir)
	if err := st.Save(New("run-1")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, FileName+".tmp")); !os.IsNotExist(err) {
		t.Error("temporary file left behind after Save")
	}
}

func TestLoadCorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := NewStore(dir).Load("run-1")
	if !errors.Is(err, errors.ErrStateCorrupt) {
		t.Errorf("error = %v, want ErrStateCorrupt", err)
	}
}

func TestCountByStatus(t *testing.T) {
	s := New("run-1")
	for i, status := range []contract.JobStatus{
		contract.StatusPending, contract.StatusPending, contract.StatusDone,
	} {
		id := string(rune('a' + i))
		s.Jobs[id] = &contract.Job{ID: id, Status: status}
	}
	if got := s.CountByStatus(contract.StatusPending); got != 2 {
		t.Errorf("pending = %d, want 2", got)
	}
	if got := s.CountByStatus(contract.StatusFailed); got != 0 {
		t.Errorf("failed = %d, want 0", got)
	}
}
