// Package recovery rebuilds orchestrator state from the ledger after a
// restart. The ledger is authoritative for everything it records: the
// accepted hash set, acceptance counters, the sequence position, and job
// completion. The state snapshot supplements it only where the ledger is
// silent, such as jobs that finished without emitting any event.
package recovery

import (
	"path/filepath"

	"github.com/zeromine/zeromine/internal/contract"
	"github.com/zeromine/zeromine/internal/ledger"
	"github.com/zeromine/zeromine/internal/logging"
	"github.com/zeromine/zeromine/internal/state"
)

// Summary reports what a rebuild reconstructed from the ledger.
type Summary struct {
	LastSeq   uint64
	Accepted  int
	Rejected  int
	Completed int // jobs resolved to DONE from ledger evidence

	// Dedup holds every accepted canonical hash, ready to seed the
	// acceptance pipeline.
	Dedup map[string]struct{}
}

// Rebuild replays the run's ledger and reconciles st against it. The
// chain is verified first, so a tampered or mid-file-corrupted ledger
// fails recovery instead of silently feeding bad state forward.
//
// Jobs left RUNNING by a crash are not touched here: the ledger says
// nothing about them, so they keep their snapshot status.
func Rebuild(log *logging.Logger, runDir string, st *state.State) (*Summary, error) {
	path := filepath.Join(runDir, ledger.FileName)
	if err := ledger.VerifyFile(path); err != nil {
		return nil, err
	}

	sum := &Summary{Dedup: make(map[string]struct{})}

	// Counters are recomputed wholesale; a stale snapshot must not
	// survive a replay that contradicts it.
	st.Accepted = 0
	st.Rejected = 0
	st.RejectedByReason = make(map[string]int)

	err := ledger.ReplayFile(path, func(e ledger.Event) error {
		sum.LastSeq = e.Seq
		switch e.Kind {
		case ledger.KindAccepted:
			sum.Accepted++
			st.Accepted++
			if e.Hash != "" {
				sum.Dedup[e.Hash] = struct{}{}
			}
		case ledger.KindRejected:
			sum.Rejected++
			st.Rejected++
			st.RejectedByReason[e.Reason]++
		}
		// A final result reaching the ledger means the job completed,
		// whatever the snapshot last recorded.
		if e.JobDone {
			if job, ok := st.Jobs[e.JobID]; ok && job.Status != contract.StatusDone {
				job.Status = contract.StatusDone
				job.LastError = ""
				sum.Completed++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	st.Seq = sum.LastSeq
	st.Done = st.CountByStatus(contract.StatusDone)
	st.Failed = st.CountByStatus(contract.StatusFailed)

	log.WithComponent("recovery").Info("state rebuilt from ledger",
		"last_seq", sum.LastSeq,
		"accepted", sum.Accepted,
		"rejected", sum.Rejected,
		"jobs_completed", sum.Completed,
		"dedup_size", len(sum.Dedup),
	)
	return sum, nil
}
