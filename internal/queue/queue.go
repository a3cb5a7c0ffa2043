// Package queue carries jobs out to workers and results back to the
// acceptance pipeline. The job channel is bounded by the in-flight limit,
// so dispatch provides backpressure; the return channel funnels every
// worker message through the single-threaded reducer.
package queue

import (
	"context"
	"sync"

	"github.com/zeromine/zeromine/internal/contract"
)

// Message is a worker-to-orchestrator message.
type Message interface {
	// Kind returns a string identifier for the message kind.
	Kind() string
}

// Result carries one candidate result. JobDone marks the final result of
// a job; the job is only considered complete once this result has passed
// through the acceptance gate.
type Result struct {
	WorkerID int
	JobID    string
	Payload  contract.ResultPayload
	JobDone  bool
}

// Kind implements Message.
func (Result) Kind() string { return "RESULT" }

// Done signals that a job finished without any (further) candidates.
type Done struct {
	WorkerID int
	JobID    string
}

// Kind implements Message.
func (Done) Kind() string { return "DONE" }

// Failure signals an explicit worker failure for a job. A rejected
// candidate is not a failure; this is for compute errors.
type Failure struct {
	WorkerID int
	JobID    string
	Err      string
}

// Kind implements Message.
func (Failure) Kind() string { return "FAILURE" }

// Queue is the in-process handoff between scheduler, workers, and reducer.
type Queue struct {
	jobs chan contract.Job
	msgs chan Message

	closeJobs sync.Once
	closeMsgs sync.Once
}

// New creates a Queue. The job channel capacity equals the in-flight
// limit so a full pipeline blocks dispatch instead of growing unbounded.
func New(inflight int) *Queue {
	if inflight < 1 {
		inflight = 1
	}
	return &Queue{
		jobs: make(chan contract.Job, inflight),
		msgs: make(chan Message, inflight*4),
	}
}

// Dispatch hands a job to the worker pool. It blocks when the pipeline is
// full, honoring ctx cancellation.
func (q *Queue) Dispatch(ctx context.Context, job contract.Job) error {
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Jobs returns the channel workers pull from.
func (q *Queue) Jobs() <-chan contract.Job {
	return q.jobs
}

// Submit pushes a worker message toward the reducer. It blocks when the
// reducer falls behind, honoring ctx cancellation.
func (q *Queue) Submit(ctx context.Context, msg Message) error {
	select {
	case q.msgs <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Messages returns the channel the reducer drains.
func (q *Queue) Messages() <-chan Message {
	return q.msgs
}

// CloseJobs signals workers that no further jobs will be dispatched.
// Safe to call multiple times.
func (q *Queue) CloseJobs() {
	q.closeJobs.Do(func() { close(q.jobs) })
}

// CloseMessages signals the reducer that all workers have exited.
// Safe to call multiple times.
func (q *Queue) CloseMessages() {
	q.closeMsgs.Do(func() { close(q.msgs) })
}
