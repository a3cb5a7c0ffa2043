// Package state persists the orchestrator's job/counter snapshot. The
// snapshot is a restart accelerator, never the source of truth: recovery
// rebuilds it from the ledger, and the ledger wins on any disagreement.
package state

import (
	"github.com/zeromine/zeromine/internal/contract"
)

// State is a snapshot of all job statuses and summary counters.
type State struct {
	RunID    string                   `json:"run_id"`
	Jobs     map[string]*contract.Job `json:"jobs"`
	JobOrder []string                 `json:"job_order"`
	Accepted int                      `json:"accepted"`
	Rejected int                      `json:"rejected"`
	// RejectedByReason breaks the rejected counter down by gate.
	RejectedByReason map[string]int `json:"rejected_by_reason"`
	Done             int            `json:"done"`
	Failed           int            `json:"failed"`
	Seq              uint64         `json:"seq"`
}

// New returns an empty state for a fresh run.
func New(runID string) *State {
	return &State{
		RunID:            runID,
		Jobs:             make(map[string]*contract.Job),
		JobOrder:         []string{},
		RejectedByReason: make(map[string]int),
	}
}

// normalize repairs nil maps/slices after JSON decoding an older or
// hand-edited snapshot.
func (s *State) normalize() {
	if s.Jobs == nil {
		s.Jobs = make(map[string]*contract.Job)
	}
	if s.RejectedByReason == nil {
		s.RejectedByReason = make(map[string]int)
	}
	if s.JobOrder == nil {
		s.JobOrder = []string{}
		for id := range s.Jobs {
			s.JobOrder = append(s.JobOrder, id)
		}
	}
}

// CountByStatus returns the number of jobs in the given status.
func (s *State) CountByStatus(status contract.JobStatus) int {
	n := 0
	for _, j := range s.Jobs {
		if j.Status == status {
			n++
		}
	}
	return n
}
