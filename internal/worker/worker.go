// Package worker implements the compute side of a run: functions that
// scan an interval for roots and the pool that moves jobs from the queue
// to workers and candidate results back.
package worker

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/zeromine/zeromine/internal/contract"
)

// Target is a scalar function whose roots the workers hunt for.
type Target func(float64) float64

// Targets maps the configurable target names onto their functions.
var Targets = map[string]Target{
	"sin": math.Sin,
	"j0":  math.J0,
	"j1":  math.J1,
}

// TargetNames returns the configurable target names, sorted.
func TargetNames() []string {
	names := make([]string, 0, len(Targets))
	for name := range Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupTarget resolves a target by name.
func LookupTarget(name string) (Target, error) {
	fn, ok := Targets[name]
	if !ok {
		return nil, fmt.Errorf("unknown target %q (have %v)", name, TargetNames())
	}
	return fn, nil
}

// Worker computes candidate results for one job. Implementations must be
// safe for concurrent use; the pool runs one goroutine per worker slot
// against a shared Worker.
type Worker interface {
	Compute(ctx context.Context, job contract.Job) ([]contract.ResultPayload, error)
}

// ScanWorker walks a job's interval at the job's stride and bisects every
// bracket where the target changes sign. Strides wider than the spacing
// between roots will skip roots; that is the job author's tradeoff.
type ScanWorker struct {
	fn       Target
	maxIters int
}

// NewScanWorker builds a ScanWorker over fn with a per-root iteration cap.
func NewScanWorker(fn Target, maxIters int) *ScanWorker {
	if maxIters < 1 {
		maxIters = 1
	}
	return &ScanWorker{fn: fn, maxIters: maxIters}
}

// Compute scans [TStart, TEnd] and returns one payload per bracketed root,
// in ascending t order.
func (w *ScanWorker) Compute(ctx context.Context, job contract.Job) ([]contract.ResultPayload, error) {
	var out []contract.ResultPayload
	for lo := job.TStart; lo < job.TEnd; lo += job.Stride {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hi := lo + job.Stride
		if hi > job.TEnd {
			hi = job.TEnd
		}
		flo, fhi := w.fn(lo), w.fn(hi)
		switch {
		case flo == 0:
			out = append(out, contract.ResultPayload{
				T:       lo,
				RootVal: 0,
				Meta:    contract.Meta{Method: "bisect", Iters: 0},
			})
		case flo*fhi < 0:
			t, iters := w.bisect(lo, hi, flo)
			out = append(out, contract.ResultPayload{
				T:       t,
				RootVal: w.fn(t),
				Meta:    contract.Meta{Method: "bisect", Iters: iters},
			})
		}
	}
	return out, nil
}

// bisect narrows a sign-change bracket down to a root. It runs until the
// bracket collapses or the iteration cap is hit, whichever comes first.
func (w *ScanWorker) bisect(lo, hi, flo float64) (float64, int) {
	var mid float64
	iters := 0
	for ; iters < w.maxIters; iters++ {
		mid = (lo + hi) / 2
		if mid == lo || mid == hi {
			break
		}
		fmid := w.fn(mid)
		if fmid == 0 {
			return mid, iters + 1
		}
		if flo*fmid < 0 {
			hi = mid
		} else {
			lo = mid
			flo = fmid
		}
	}
	return (lo + hi) / 2, iters
}
