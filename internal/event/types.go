// Package event defines orchestrator notification events and a small
// synchronous pub-sub bus, decoupling the acceptance pipeline and
// scheduler from anything that wants to observe them (logging, status
// rendering) without direct dependencies.
package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g. "result.accepted").
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{eventType: eventType, timestamp: time.Now()}
}

// ResultAccepted is emitted after a result is durably appended.
type ResultAccepted struct {
	baseEvent
	JobID string
	Hash  string
	Seq   uint64
}

// NewResultAccepted creates a ResultAccepted event.
func NewResultAccepted(jobID, hash string, seq uint64) ResultAccepted {
	return ResultAccepted{
		baseEvent: newBaseEvent("result.accepted"),
		JobID:     jobID,
		Hash:      hash,
		Seq:       seq,
	}
}

// ResultRejected is emitted when a result fails the acceptance gate.
type ResultRejected struct {
	baseEvent
	JobID  string
	Hash   string
	Reason string
}

// NewResultRejected creates a ResultRejected event.
func NewResultRejected(jobID, hash, reason string) ResultRejected {
	return ResultRejected{
		baseEvent: newBaseEvent("result.rejected"),
		JobID:     jobID,
		Hash:      hash,
		Reason:    reason,
	}
}

// JobTransition is emitted on every job status change.
type JobTransition struct {
	baseEvent
	JobID string
	From  string
	To    string
}

// NewJobTransition creates a JobTransition event.
func NewJobTransition(jobID, from, to string) JobTransition {
	return JobTransition{
		baseEvent: newBaseEvent("job.transition"),
		JobID:     jobID,
		From:      from,
		To:        to,
	}
}
