package worker

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/zeromine/zeromine/internal/contract"
	"github.com/zeromine/zeromine/internal/logging"
	"github.com/zeromine/zeromine/internal/queue"
)

func TestScanWorkerFindsSineRoots(t *testing.T) {
	w := NewScanWorker(math.Sin, 200)
	job := contract.Job{ID: "job-1", TStart: 0.5, TEnd: 10.0, Stride: 0.5}

	results, err := w.Compute(context.Background(), job)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	// sin has roots at pi, 2pi, 3pi inside (0.5, 10).
	want := []float64{math.Pi, 2 * math.Pi, 3 * math.Pi}
	if len(results) != len(want) {
		t.Fatalf("got %d roots, want %d: %+v", len(results), len(want), results)
	}
	for i, root := range want {
		if math.Abs(results[i].T-root) > 1e-9 {
			t.Errorf("root %d: t = %v, want %v", i, results[i].T, root)
		}
		if math.Abs(results[i].RootVal) > 1e-9 {
			t.Errorf("root %d: root_val = %v, want ~0", i, results[i].RootVal)
		}
		if results[i].Meta.Method != "bisect" || results[i].Meta.Iters == 0 {
			t.Errorf("root %d: meta = %+v", i, results[i].Meta)
		}
	}
}

func TestScanWorkerNoRoots(t *testing.T) {
	w := NewScanWorker(math.Sin, 200)
	job := contract.Job{ID: "job-1", TStart: 0.1, TEnd: 3.0, Stride: 5.0}

	// Stride overshoots the range, leaving the single bracket [0.1, 3.0]
	// where sin is positive at both ends.
	results, err := w.Compute(context.Background(), job)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0: %+v", len(results), results)
	}
}

func TestScanWorkerIterationCap(t *testing.T) {
	w := NewScanWorker(math.Sin, 5)
	job := contract.Job{ID: "job-1", TStart: 3.0, TEnd: 3.5, Stride: 0.5}

	results, err := w.Compute(context.Background(), job)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Meta.Iters > 5 {
		t.Errorf("iters = %d, want <= cap 5", results[0].Meta.Iters)
	}
}

func TestScanWorkerCanceled(t *testing.T) {
	w := NewScanWorker(math.Sin, 200)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Compute(ctx, contract.Job{TStart: 0, TEnd: 100, Stride: 0.1})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestLookupTarget(t *testing.T) {
	for _, name := range []string{"sin", "j0", "j1"} {
		if _, err := LookupTarget(name); err != nil {
			t.Errorf("LookupTarget(%q): %v", name, err)
		}
	}
	if _, err := LookupTarget("tan"); err == nil {
		t.Error("LookupTarget(tan) should fail")
	}
}

// fixedWorker returns canned results per job ID.
type fixedWorker struct {
	results map[string][]contract.ResultPayload
	errs    map[string]error
}

func (f *fixedWorker) Compute(_ context.Context, job contract.Job) ([]contract.ResultPayload, error) {
	if err := f.errs[job.ID]; err != nil {
		return nil, err
	}
	return f.results[job.ID], nil
}

func drain(t *testing.T, q *queue.Queue) []queue.Message {
	t.Helper()
	var msgs []queue.Message
	timeout := time.After(2 * time.Second)
	for {
		select {
		case msg, ok := <-q.Messages():
			if !ok {
				return msgs
			}
			msgs = append(msgs, msg)
		case <-timeout:
			t.Fatalf("timed out draining queue, have %d messages", len(msgs))
		}
	}
}

func TestPoolTerminalMessages(t *testing.T) {
	w := &fixedWorker{
		results: map[string][]contract.ResultPayload{
			"job-multi": {
				{T: 1, RootVal: 0, Meta: contract.Meta{Method: "bisect"}},
				{T: 2, RootVal: 0, Meta: contract.Meta{Method: "bisect"}},
			},
			"job-empty": nil,
		},
		errs: map[string]error{"job-err": errors.New("numerical blowup")},
	}

	q := queue.New(4)
	ctx := context.Background()
	pool := NewPool(w, q, logging.Nop(), 2)
	pool.Start(ctx)

	for _, id := range []string{"job-multi", "job-empty", "job-err"} {
		if err := q.Dispatch(ctx, contract.Job{ID: id}); err != nil {
			t.Fatal(err)
		}
	}
	q.CloseJobs()
	pool.Wait()
	q.CloseMessages()

	var results, dones, failures int
	var finals int
	for _, msg := range drain(t, q) {
		switch m := msg.(type) {
		case queue.Result:
			results++
			if m.JobDone {
				finals++
			}
		case queue.Done:
			dones++
			if m.JobID != "job-empty" {
				t.Errorf("Done for %s, want job-empty", m.JobID)
			}
		case queue.Failure:
			failures++
			if m.JobID != "job-err" || m.Err == "" {
				t.Errorf("Failure = %+v", m)
			}
		}
	}
	if results != 2 || finals != 1 {
		t.Errorf("results = %d (finals %d), want 2 results with 1 final", results, finals)
	}
	if dones != 1 || failures != 1 {
		t.Errorf("dones = %d failures = %d, want 1 each", dones, failures)
	}
}
