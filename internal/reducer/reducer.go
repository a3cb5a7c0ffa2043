// Package reducer implements the acceptance pipeline: the single
// serialization point through which every candidate result must pass.
// Each result is gated in order by structural validation, the numeric
// tolerance, and hash deduplication; survivors are durably appended to
// the ledger before the acceptance is acknowledged. Because one goroutine
// drains the queue, no two results can both observe "not a duplicate" for
// the same hash.
package reducer

import (
	"context"
	"math"

	"github.com/zeromine/zeromine/internal/contract"
	"github.com/zeromine/zeromine/internal/event"
	"github.com/zeromine/zeromine/internal/hash"
	"github.com/zeromine/zeromine/internal/ledger"
	"github.com/zeromine/zeromine/internal/logging"
	"github.com/zeromine/zeromine/internal/queue"
)

// Status is the outcome of the acceptance gate.
type Status string

const (
	// StatusAccepted indicates the result was durably recorded.
	StatusAccepted Status = "ACCEPTED"

	// StatusRejected indicates the result failed a gate.
	StatusRejected Status = "REJECTED"
)

// Reject reasons recorded on REJECTED ledger events.
const (
	ReasonSchemaInvalid  = "SCHEMA_INVALID"
	ReasonOutOfTolerance = "OUT_OF_TOLERANCE"
	ReasonDuplicate      = "DUPLICATE"
)

// Verdict is the acceptance decision for one result.
type Verdict struct {
	Status Status
	Reason string // set when Status is StatusRejected
	Hash   string
	Seq    uint64
}

// Tracker is the scheduler-side surface the reducer reports outcomes to.
// It is the sole mutator of the state store.
type Tracker interface {
	RecordAccepted(ctx context.Context, jobID string, seq uint64, jobDone bool) error
	RecordRejected(jobID string, reason string, seq uint64) error
	MarkDone(ctx context.Context, jobID string) error
	MarkFailed(ctx context.Context, jobID, errMsg string) error
	Checkpoint() error
}

// Reducer validates, deduplicates, and persists candidate results.
// Not safe for concurrent use: exactly one goroutine runs the gate.
type Reducer struct {
	log     *logging.Logger
	led     *ledger.Ledger
	tracker Tracker
	bus     *event.Bus
	runID   string

	epsRoot float64
	dedup   map[string]struct{}

	checkpointEvery int
	sinceCheckpoint int
}

// New creates a Reducer. dedup is the set of canonical hashes already
// accepted, as rebuilt by recovery; the reducer takes ownership of it.
func New(log *logging.Logger, led *ledger.Ledger, tracker Tracker, bus *event.Bus, runID string, epsRoot float64, checkpointEvery int, dedup map[string]struct{}) *Reducer {
	if dedup == nil {
		dedup = make(map[string]struct{})
	}
	return &Reducer{
		log:             log.WithComponent("reducer"),
		led:             led,
		tracker:         tracker,
		bus:             bus,
		runID:           runID,
		epsRoot:         epsRoot,
		dedup:           dedup,
		checkpointEvery: checkpointEvery,
	}
}

// Accept runs one result through the gate and records the outcome in the
// ledger. The returned error is non-nil only for systemic failures
// (ledger IO); rejection is a verdict, not an error.
func (r *Reducer) Accept(ctx context.Context, res queue.Result) (Verdict, error) {
	h := hash.Result(res.Payload)

	// Gate 1: structural validation.
	if verr := contract.ValidateResult(res.Payload); verr != nil {
		return r.reject(ctx, res, h, ReasonSchemaInvalid, verr.Error())
	}

	// Gate 2: numeric tolerance.
	if math.Abs(res.Payload.RootVal) >= r.epsRoot {
		return r.reject(ctx, res, h, ReasonOutOfTolerance, "")
	}

	// Gate 3: deduplication by canonical hash.
	if _, seen := r.dedup[h]; seen {
		return r.reject(ctx, res, h, ReasonDuplicate, "")
	}

	// Acceptance is durable only once the append has been confirmed.
	payload := res.Payload
	seq, err := r.led.Append(ledger.Event{
		Kind:     ledger.KindAccepted,
		RunID:    r.runID,
		WorkerID: res.WorkerID,
		JobID:    res.JobID,
		JobDone:  res.JobDone,
		Payload:  &payload,
		Hash:     h,
	})
	if err != nil {
		return Verdict{}, err
	}

	r.dedup[h] = struct{}{}
	if err := r.tracker.RecordAccepted(ctx, res.JobID, seq, res.JobDone); err != nil {
		return Verdict{}, err
	}

	r.bus.Publish(event.NewResultAccepted(res.JobID, h, seq))
	r.log.Info("result accepted", "job_id", res.JobID, "seq", seq, "hash", h, "t", res.Payload.T)

	r.sinceCheckpoint++
	if r.sinceCheckpoint >= r.checkpointEvery {
		if err := r.tracker.Checkpoint(); err != nil {
			return Verdict{}, err
		}
		r.sinceCheckpoint = 0
	}

	return Verdict{Status: StatusAccepted, Hash: h, Seq: seq}, nil
}

func (r *Reducer) reject(ctx context.Context, res queue.Result, h, reason, detail string) (Verdict, error) {
	// Rejections are retained in the ledger for auditability.
	seq, err := r.led.Append(ledger.Event{
		Kind:     ledger.KindRejected,
		RunID:    r.runID,
		WorkerID: res.WorkerID,
		JobID:    res.JobID,
		JobDone:  res.JobDone,
		Reason:   reason,
		Hash:     h,
	})
	if err != nil {
		return Verdict{}, err
	}

	if err := r.tracker.RecordRejected(res.JobID, reason, seq); err != nil {
		return Verdict{}, err
	}

	// A rejected final result still completes its job: the candidate was
	// delivered and judged, the job is not at fault.
	if res.JobDone {
		if err := r.tracker.MarkDone(ctx, res.JobID); err != nil {
			return Verdict{}, err
		}
	}

	r.bus.Publish(event.NewResultRejected(res.JobID, h, reason))
	r.log.Info("result rejected", "job_id", res.JobID, "reason", reason, "hash", h, "detail", detail)
	return Verdict{Status: StatusRejected, Reason: reason, Hash: h, Seq: seq}, nil
}

// Run drains the queue until it is closed or the context is canceled.
// This is the only code path that writes to the ledger. Systemic errors
// abort the loop; per-result rejections do not.
func (r *Reducer) Run(ctx context.Context, q *queue.Queue) error {
	for {
		select {
		case <-ctx.Done():
			return r.tracker.Checkpoint()
		case msg, ok := <-q.Messages():
			if !ok {
				return r.tracker.Checkpoint()
			}
			if err := r.handle(ctx, msg); err != nil {
				return err
			}
		}
	}
}

func (r *Reducer) handle(ctx context.Context, msg queue.Message) error {
	switch m := msg.(type) {
	case queue.Result:
		_, err := r.Accept(ctx, m)
		return err
	case queue.Done:
		return r.tracker.MarkDone(ctx, m.JobID)
	case queue.Failure:
		return r.tracker.MarkFailed(ctx, m.JobID, m.Err)
	default:
		r.log.Warn("unknown queue message", "kind", msg.Kind())
		return nil
	}
}

// DedupSize returns the number of distinct accepted hashes.
func (r *Reducer) DedupSize() int {
	return len(r.dedup)
}
