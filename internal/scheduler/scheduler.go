// Package scheduler owns the job lifecycle. It registers jobs, dispatches
// PENDING jobs FIFO under an in-flight bound, and applies every status
// transition. It is the only component that mutates the state store; the
// acceptance pipeline reports outcomes through it.
//
// A job left RUNNING by a crash stays RUNNING after restart. There is no
// stale-job detector or timeout; re-dispatch requires operator
// intervention. This is a deliberate gap, not an oversight.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zeromine/zeromine/internal/contract"
	"github.com/zeromine/zeromine/internal/errors"
	"github.com/zeromine/zeromine/internal/event"
	"github.com/zeromine/zeromine/internal/logging"
	"github.com/zeromine/zeromine/internal/queue"
	"github.com/zeromine/zeromine/internal/state"
)

// Scheduler drives jobs through PENDING -> RUNNING -> DONE/FAILED.
// All methods are safe for concurrent use via an internal mutex.
type Scheduler struct {
	mu    sync.Mutex
	st    *state.State
	store *state.Store
	q     *queue.Queue
	bus   *event.Bus
	log   *logging.Logger

	maxInflight int
	maxAttempts int

	done     chan struct{}
	doneOnce sync.Once
}

// New creates a Scheduler over previously recovered state.
func New(st *state.State, store *state.Store, q *queue.Queue, bus *event.Bus, log *logging.Logger, maxInflight, maxAttempts int) *Scheduler {
	return &Scheduler{
		st:          st,
		store:       store,
		q:           q,
		bus:         bus,
		log:         log.WithComponent("scheduler"),
		maxInflight: maxInflight,
		maxAttempts: maxAttempts,
		done:        make(chan struct{}),
	}
}

// Register validates and registers job specs. Idempotent: already-known
// job IDs are skipped, so re-running with the same manifest resumes
// instead of duplicating work.
func (s *Scheduler) Register(specs []contract.JobSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, spec := range specs {
		if _, known := s.st.Jobs[spec.ID]; known {
			continue
		}
		job, verr := contract.ValidateJob(spec)
		if verr != nil {
			return fmt.Errorf("job %q: %w", spec.ID, verr)
		}
		job.CreatedAt = time.Now().UTC()
		s.st.Jobs[job.ID] = job
		s.st.JobOrder = append(s.st.JobOrder, job.ID)
		added++
	}
	s.log.Info("jobs registered", "added", added, "total", len(s.st.Jobs))
	return s.store.Save(s.st)
}

// Fill dispatches PENDING jobs in FIFO order until the in-flight bound is
// reached. If every job is already terminal it signals completion.
func (s *Scheduler) Fill(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fillLocked(ctx)
}

func (s *Scheduler) fillLocked(ctx context.Context) error {
	running := s.st.CountByStatus(contract.StatusRunning)
	for _, id := range s.st.JobOrder {
		if running >= s.maxInflight {
			break
		}
		job := s.st.Jobs[id]
		if job.Status != contract.StatusPending {
			continue
		}
		if err := s.transitionLocked(job, contract.StatusRunning); err != nil {
			return err
		}
		if err := s.q.Dispatch(ctx, *job); err != nil {
			return err
		}
		running++
		s.log.Debug("job dispatched", "job_id", job.ID, "attempt", job.Attempts+1)
	}
	s.checkCompleteLocked()
	return s.store.Save(s.st)
}

// RecordAccepted applies an accepted result: bumps counters, advances the
// last-seen sequence, and completes the job when the result was its final
// one. Called only from the acceptance pipeline, after a durable append.
func (s *Scheduler) RecordAccepted(ctx context.Context, jobID string, seq uint64, jobDone bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.st.Accepted++
	if seq > s.st.Seq {
		s.st.Seq = seq
	}
	if jobDone {
		return s.markDoneLocked(ctx, jobID)
	}
	return nil
}

// RecordRejected applies a rejected result: bumps counters and the
// per-reason breakdown.
func (s *Scheduler) RecordRejected(jobID string, reason string, seq uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.st.Rejected++
	s.st.RejectedByReason[reason]++
	if seq > s.st.Seq {
		s.st.Seq = seq
	}
	return nil
}

// MarkDone completes a job that finished with no pending result (its
// worker found nothing further to report).
func (s *Scheduler) MarkDone(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markDoneLocked(ctx, jobID)
}

func (s *Scheduler) markDoneLocked(ctx context.Context, jobID string) error {
	job, ok := s.st.Jobs[jobID]
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrJobNotFound, jobID)
	}
	if job.Status == contract.StatusDone {
		return nil // duplicate completion signal, e.g. after a resume
	}
	if err := s.transitionLocked(job, contract.StatusDone); err != nil {
		return err
	}
	s.st.Done++
	if err := s.store.Save(s.st); err != nil {
		return err
	}
	return s.fillLocked(ctx)
}

// MarkFailed records an explicit worker failure. The job is re-dispatched
// until its attempts reach the configured bound, then marked FAILED.
// A REJECTED result never lands here: rejection is not job failure.
func (s *Scheduler) MarkFailed(ctx context.Context, jobID, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.st.Jobs[jobID]
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrJobNotFound, jobID)
	}
	job.Attempts++
	job.LastError = errMsg

	target := contract.StatusPending
	if job.Attempts >= s.maxAttempts {
		target = contract.StatusFailed
	}
	if err := s.transitionLocked(job, target); err != nil {
		return err
	}
	if target == contract.StatusFailed {
		s.st.Failed++
		s.log.Warn("job failed permanently", "job_id", jobID, "attempts", job.Attempts, "error", errMsg)
	} else {
		s.log.Warn("job failed, will re-dispatch", "job_id", jobID, "attempts", job.Attempts, "error", errMsg)
	}
	if err := s.store.Save(s.st); err != nil {
		return err
	}
	return s.fillLocked(ctx)
}

// Checkpoint flushes the state snapshot. Called by the acceptance
// pipeline after each batch of ledger appends.
func (s *Scheduler) Checkpoint() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Save(s.st)
}

// Done is closed once every registered job is terminal.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Remaining returns the number of non-terminal jobs.
func (s *Scheduler) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remainingLocked()
}

func (s *Scheduler) remainingLocked() int {
	n := 0
	for _, job := range s.st.Jobs {
		if !job.Status.IsTerminal() {
			n++
		}
	}
	return n
}

func (s *Scheduler) checkCompleteLocked() {
	if len(s.st.Jobs) > 0 && s.remainingLocked() == 0 {
		s.doneOnce.Do(func() { close(s.done) })
	}
}

func (s *Scheduler) transitionLocked(job *contract.Job, to contract.JobStatus) error {
	if !contract.CanTransition(job.Status, to) {
		return fmt.Errorf("%w: %s from %s to %s", errors.ErrInvalidTransition, job.ID, job.Status, to)
	}
	from := job.Status
	job.Status = to
	s.bus.Publish(event.NewJobTransition(job.ID, from.String(), to.String()))
	s.checkCompleteLocked()
	return nil
}
