package scheduler

import (
	"context"
	"testing"

	"github.com/zeromine/zeromine/internal/contract"
	"github.com/zeromine/zeromine/internal/errors"
	"github.com/zeromine/zeromine/internal/event"
	"github.com/zeromine/zeromine/internal/logging"
	"github.com/zeromine/zeromine/internal/queue"
	"github.com/zeromine/zeromine/internal/state"
)

func testScheduler(t *testing.T, maxInflight, maxAttempts int) (*Scheduler, *queue.Queue, *state.State) {
	t.Helper()
	st := state.New("run-test")
	store := state.NewStore(t.TempDir())
	q := queue.New(maxInflight)
	s := New(st, store, q, event.NewBus(), logging.Nop(), maxInflight, maxAttempts)
	return s, q, st
}

func specs(ids ...string) []contract.JobSpec {
	out := make([]contract.JobSpec, len(ids))
	for i, id := range ids {
		out[i] = contract.JobSpec{ID: id, TStart: float64(i), TEnd: float64(i + 1), Stride: 0.1}
	}
	return out
}

func TestRegisterIsIdempotent(t *testing.T) {
	s, _, st := testScheduler(t, 2, 3)

	if err := s.Register(specs("a", "b")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Register(specs("a", "b", "c")); err != nil {
		t.Fatalf("second Register: %v", err)
	}
	if len(st.Jobs) != 3 {
		t.Errorf("registered %d jobs, want 3", len(st.Jobs))
	}
	if len(st.JobOrder) != 3 {
		t.Errorf("job order has %d entries, want 3", len(st.JobOrder))
	}
}

func TestRegisterRejectsInvalidSpec(t *testing.T) {
	s, _, _ := testScheduler(t, 2, 3)
	err := s.Register([]contract.JobSpec{{ID: "bad", TStart: 5, TEnd: 1, Stride: 0.1}})
	if err == nil {
		t.Fatal("Register accepted an invalid spec")
	}
}

func TestFillRespectsInflightBoundFIFO(t *testing.T) {
	s, q, st := testScheduler(t, 2, 3)
	ctx := context.Background()

	if err := s.Register(specs("a", "b", "c", "d")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Fill(ctx); err != nil {
		t.Fatalf("Fill: %v", err)
	}

	first := <-q.Jobs()
	second := <-q.Jobs()
	if first.ID != "a" || second.ID != "b" {
		t.Errorf("dispatched %s, %s; want a, b (FIFO)", first.ID, second.ID)
	}
	if st.CountByStatus(contract.StatusRunning) != 2 {
		t.Errorf("running = %d, want 2", st.CountByStatus(contract.StatusRunning))
	}
	if st.Jobs["c"].Status != contract.StatusPending {
		t.Errorf("job c status = %s, want PENDING", st.Jobs["c"].Status)
	}
}

func TestMarkDoneRefills(t *testing.T) {
	s, q, st := testScheduler(t, 1, 3)
	ctx := context.Background()

	if err := s.Register(specs("a", "b")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Fill(ctx); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	<-q.Jobs() // worker takes a

	if err := s.MarkDone(ctx, "a"); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}
	if st.Jobs["a"].Status != contract.StatusDone {
		t.Errorf("job a = %s, want DONE", st.Jobs["a"].Status)
	}

	next := <-q.Jobs()
	if next.ID != "b" {
		t.Errorf("refill dispatched %s, want b", next.ID)
	}
}

func TestRecordAcceptedCompletesJob(t *testing.T) {
	s, q, st := testScheduler(t, 2, 3)
	ctx := context.Background()

	if err := s.Register(specs("a")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Fill(ctx); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	<-q.Jobs()

	if err := s.RecordAccepted(ctx, "a", 7, true); err != nil {
		t.Fatalf("RecordAccepted: %v", err)
	}
	if st.Accepted != 1 || st.Seq != 7 {
		t.Errorf("counters = accepted %d seq %d", st.Accepted, st.Seq)
	}
	if st.Jobs["a"].Status != contract.StatusDone {
		t.Errorf("job a = %s, want DONE", st.Jobs["a"].Status)
	}

	select {
	case <-s.Done():
	default:
		t.Error("Done() not signaled with all jobs terminal")
	}
}

func TestSeqNeverRegresses(t *testing.T) {
	s, q, st := testScheduler(t, 2, 3)
	ctx := context.Background()

	if err := s.Register(specs("a", "b")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Fill(ctx); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	<-q.Jobs()
	<-q.Jobs()

	if err := s.RecordAccepted(ctx, "a", 9, false); err != nil {
		t.Fatalf("RecordAccepted: %v", err)
	}
	if err := s.RecordRejected("b", "DUPLICATE", 5); err != nil {
		t.Fatalf("RecordRejected: %v", err)
	}
	if err := s.RecordAccepted(ctx, "b", 7, false); err != nil {
		t.Fatalf("RecordAccepted: %v", err)
	}
	if st.Seq != 9 {
		t.Errorf("seq = %d after out-of-order records, want 9", st.Seq)
	}
}

func TestRejectedIsNotJobFailure(t *testing.T) {
	s, q, st := testScheduler(t, 1, 3)
	ctx := context.Background()

	if err := s.Register(specs("a")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Fill(ctx); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	<-q.Jobs()

	if err := s.RecordRejected("a", "OUT_OF_TOLERANCE", 3); err != nil {
		t.Fatalf("RecordRejected: %v", err)
	}
	if st.Rejected != 1 || st.RejectedByReason["OUT_OF_TOLERANCE"] != 1 {
		t.Errorf("rejected counters = %d / %v", st.Rejected, st.RejectedByReason)
	}
	if st.Jobs["a"].Status != contract.StatusRunning {
		t.Errorf("job a = %s after rejection, want RUNNING", st.Jobs["a"].Status)
	}
}

func TestMarkFailedRetriesThenFails(t *testing.T) {
	s, q, st := testScheduler(t, 1, 2)
	ctx := context.Background()

	if err := s.Register(specs("a")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Fill(ctx); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	<-q.Jobs()

	// First failure: re-dispatched.
	if err := s.MarkFailed(ctx, "a", "bracket error"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	redispatched := <-q.Jobs()
	if redispatched.ID != "a" {
		t.Fatalf("re-dispatched %s, want a", redispatched.ID)
	}
	if st.Jobs["a"].Attempts != 1 {
		t.Errorf("attempts = %d, want 1", st.Jobs["a"].Attempts)
	}

	// Second failure: exhausted.
	if err := s.MarkFailed(ctx, "a", "bracket error"); err != nil {
		t.Fatalf("second MarkFailed: %v", err)
	}
	if st.Jobs["a"].Status != contract.StatusFailed {
		t.Errorf("job a = %s, want FAILED", st.Jobs["a"].Status)
	}
	if st.Failed != 1 {
		t.Errorf("failed counter = %d, want 1", st.Failed)
	}
	if st.Jobs["a"].LastError != "bracket error" {
		t.Errorf("last error = %q", st.Jobs["a"].LastError)
	}
}

func TestMarkDoneUnknownJob(t *testing.T) {
	s, _, _ := testScheduler(t, 1, 3)
	if err := s.MarkDone(context.Background(), "ghost"); !errors.Is(err, errors.ErrJobNotFound) {
		t.Errorf("error = %v, want ErrJobNotFound", err)
	}
}

func TestRunningJobSurvivesWithoutTimeout(t *testing.T) {
	// A job recovered in RUNNING state is not re-dispatched by Fill.
	s, q, st := testScheduler(t, 2, 3)
	ctx := context.Background()

	if err := s.Register(specs("a", "b")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	st.Jobs["a"].Status = contract.StatusRunning // as left by a crash

	if err := s.Fill(ctx); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	got := <-q.Jobs()
	if got.ID != "b" {
		t.Errorf("dispatched %s, want b (RUNNING job must stay abandoned)", got.ID)
	}
	select {
	case extra := <-q.Jobs():
		t.Errorf("unexpected second dispatch: %s", extra.ID)
	default:
	}
}
