// Package contract defines the record shapes exchanged between the
// orchestrator, its workers, and the ledger, together with the structural
// validation every record must pass before it can affect persistent state.
package contract

import (
	"time"
)

// JobStatus represents the current state of a registered job.
type JobStatus string

const (
	// StatusPending indicates the job is waiting to be dispatched.
	StatusPending JobStatus = "PENDING"

	// StatusRunning indicates the job has been handed to a worker.
	StatusRunning JobStatus = "RUNNING"

	// StatusDone indicates the job completed.
	StatusDone JobStatus = "DONE"

	// StatusFailed indicates the job failed and exhausted its attempts.
	StatusFailed JobStatus = "FAILED"
)

// String returns the string representation of the job status.
func (s JobStatus) String() string {
	return string(s)
}

// IsTerminal returns true if this status represents a final state.
func (s JobStatus) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed
}

// validTransitions enumerates the legal job status transitions.
// A RUNNING job that never reports back stays RUNNING across restarts;
// there is deliberately no timeout edge out of RUNNING.
var validTransitions = map[JobStatus][]JobStatus{
	StatusPending: {StatusRunning},
	StatusRunning: {StatusDone, StatusFailed, StatusPending}, // PENDING = re-dispatch after a worker failure
	StatusDone:    {},
	StatusFailed:  {},
}

// CanTransition reports whether a job may move from one status to another.
func CanTransition(from, to JobStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// JobSpec describes a unit of work before it is registered: a scan range
// with a stride. The numeric interpretation is opaque to the orchestrator.
type JobSpec struct {
	ID     string  `json:"id" yaml:"id"`
	TStart float64 `json:"t_start" yaml:"t_start"`
	TEnd   float64 `json:"t_end" yaml:"t_end"`
	Stride float64 `json:"stride" yaml:"stride"`
}

// Job is a registered unit of work. Jobs are created by the scheduler,
// mutated only by the scheduler, and never deleted.
type Job struct {
	ID        string    `json:"job_id"`
	TStart    float64   `json:"t_start"`
	TEnd      float64   `json:"t_end"`
	Stride    float64   `json:"stride"`
	Status    JobStatus `json:"status"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Meta carries free-form provenance for a result. Iteration counts are
// volatile: they never participate in the canonical identity of a result.
type Meta struct {
	Method string `json:"method"`
	Iters  int    `json:"iters"`
}

// ResultPayload is the value a worker returns for a job: a position t and
// the function value at that position, which must be within tolerance of
// zero to be eligible for acceptance.
type ResultPayload struct {
	T       float64 `json:"t"`
	RootVal float64 `json:"root_val"`
	Meta    Meta    `json:"meta"`
}
