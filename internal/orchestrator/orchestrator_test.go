package orchestrator

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/zeromine/zeromine/internal/config"
	"github.com/zeromine/zeromine/internal/contract"
	apperrors "github.com/zeromine/zeromine/internal/errors"
	"github.com/zeromine/zeromine/internal/ledger"
	"github.com/zeromine/zeromine/internal/logging"
	"github.com/zeromine/zeromine/internal/state"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Run.Dir = t.TempDir()
	cfg.Run.EpsRoot = 1e-9
	cfg.Workers.Count = 2
	return *cfg
}

// dupWorker returns the same root for every job, so every job past the
// first produces only duplicates.
type dupWorker struct{}

func (dupWorker) Compute(_ context.Context, job contract.Job) ([]contract.ResultPayload, error) {
	return []contract.ResultPayload{
		{T: math.Pi, RootVal: 1e-14, Meta: contract.Meta{Method: "bisect", Iters: 30}},
	}, nil
}

func specs(ids ...string) []contract.JobSpec {
	out := make([]contract.JobSpec, 0, len(ids))
	for i, id := range ids {
		lo := float64(i)
		out = append(out, contract.JobSpec{ID: id, TStart: lo, TEnd: lo + 1, Stride: 0.5})
	}
	return out
}

func countKinds(t *testing.T, runDir string) (accepted, rejected int) {
	t.Helper()
	err := ledger.ReplayFile(filepath.Join(runDir, ledger.FileName), func(e ledger.Event) error {
		switch e.Kind {
		case ledger.KindAccepted:
			accepted++
		case ledger.KindRejected:
			rejected++
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ReplayFile: %v", err)
	}
	return accepted, rejected
}

func TestRunDeduplicatesAcrossJobs(t *testing.T) {
	cfg := testConfig(t)
	o, err := New(cfg, "run-1", logging.Nop(), WithWorker(dupWorker{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer o.Close()

	if err := o.Run(context.Background(), specs("a", "b", "c")); err != nil {
		t.Fatalf("Run: %v", err)
	}

	accepted, rejected := countKinds(t, cfg.Run.Dir)
	if accepted != 1 {
		t.Errorf("accepted = %d, want exactly 1", accepted)
	}
	if rejected != 2 {
		t.Errorf("rejected = %d, want 2 duplicates", rejected)
	}

	st := o.State()
	if st.Done != 3 || st.Failed != 0 {
		t.Errorf("done/failed = %d/%d, want 3/0", st.Done, st.Failed)
	}
	if st.RejectedByReason["DUPLICATE"] != 2 {
		t.Errorf("RejectedByReason = %v", st.RejectedByReason)
	}
	if err := ledger.VerifyFile(filepath.Join(cfg.Run.Dir, ledger.FileName)); err != nil {
		t.Errorf("chain broken after run: %v", err)
	}
}

func TestRunWithScanWorker(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workers.Target = "sin"
	o, err := New(cfg, "run-1", logging.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer o.Close()

	// One bracketing range per root of sin in (2, 13).
	err = o.Run(context.Background(), []contract.JobSpec{
		{ID: "pi", TStart: 2, TEnd: 4, Stride: 2},
		{ID: "2pi", TStart: 6, TEnd: 7, Stride: 1},
		{ID: "3pi", TStart: 9, TEnd: 10, Stride: 1},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	accepted, _ := countKinds(t, cfg.Run.Dir)
	if accepted != 3 {
		t.Errorf("accepted = %d, want 3 distinct roots", accepted)
	}
}

func TestSecondWriterRefused(t *testing.T) {
	cfg := testConfig(t)
	first, err := New(cfg, "run-1", logging.Nop(), WithWorker(dupWorker{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer first.Close()

	_, err = New(cfg, "run-2", logging.Nop(), WithWorker(dupWorker{}))
	if !apperrors.Is(err, apperrors.ErrLocked) {
		t.Fatalf("second writer err = %v, want ErrLocked", err)
	}
}

func TestRestartPreservesDedup(t *testing.T) {
	cfg := testConfig(t)

	o, err := New(cfg, "run-1", logging.Nop(), WithWorker(dupWorker{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := o.Run(context.Background(), specs("a")); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if err := o.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Same discovery in a fresh process must be rejected as a duplicate.
	o2, err := New(cfg, "run-1", logging.Nop(), WithWorker(dupWorker{}))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer o2.Close()
	if err := o2.Run(context.Background(), specs("a", "d")); err != nil {
		t.Fatalf("second Run: %v", err)
	}

	accepted, rejected := countKinds(t, cfg.Run.Dir)
	if accepted != 1 {
		t.Errorf("accepted = %d across restart, want 1", accepted)
	}
	if rejected != 1 {
		t.Errorf("rejected = %d, want 1 (the post-restart duplicate)", rejected)
	}

	st := o2.State()
	if st.Jobs["a"].Status != contract.StatusDone || st.Jobs["d"].Status != contract.StatusDone {
		t.Errorf("job statuses = %s/%s", st.Jobs["a"].Status, st.Jobs["d"].Status)
	}
}

func TestCorruptSnapshotRebuiltFromLedger(t *testing.T) {
	cfg := testConfig(t)

	o, err := New(cfg, "run-1", logging.Nop(), WithWorker(dupWorker{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := o.Run(context.Background(), specs("a")); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if err := o.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// The snapshot is a cache; mangling it must not block a restart.
	snapshot := filepath.Join(cfg.Run.Dir, state.FileName)
	if err := os.WriteFile(snapshot, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	o2, err := New(cfg, "run-1", logging.Nop(), WithWorker(dupWorker{}))
	if err != nil {
		t.Fatalf("reopen with corrupt snapshot: %v", err)
	}
	defer o2.Close()

	st := o2.State()
	if st.Accepted != 1 {
		t.Errorf("accepted = %d after rebuild, want 1 from the ledger", st.Accepted)
	}

	// Re-running the same job converges: its result is already accepted.
	if err := o2.Run(context.Background(), specs("a")); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	accepted, _ := countKinds(t, cfg.Run.Dir)
	if accepted != 1 {
		t.Errorf("accepted = %d across rebuild, want 1", accepted)
	}
}

func TestStateSnapshotOnDisk(t *testing.T) {
	cfg := testConfig(t)
	o, err := New(cfg, "run-1", logging.Nop(), WithWorker(dupWorker{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := o.Run(context.Background(), specs("a", "b")); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := o.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st, err := state.NewStore(cfg.Run.Dir).Load("run-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st.Accepted != 1 || st.Done != 2 {
		t.Errorf("snapshot accepted=%d done=%d, want 1/2", st.Accepted, st.Done)
	}
	if st.Seq == 0 {
		t.Error("snapshot seq not advanced")
	}
}
