// Package ledger implements the append-only, hash-chained log that is the
// sole durable source of truth for accepted results. Entries are one JSON
// record per line; each carries a chaining digest over the previous digest
// and its own canonical serialization, so retroactive tampering is
// detectable by replaying the chain.
package ledger

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/zeromine/zeromine/internal/contract"
	"github.com/zeromine/zeromine/internal/errors"
	"github.com/zeromine/zeromine/internal/hash"
)

// FileName is the ledger file name within a run directory.
const FileName = "ledger.jsonl"

// Kind identifies the outcome recorded by a ledger event.
type Kind string

const (
	// KindAccepted records a result that passed the acceptance gate.
	KindAccepted Kind = "ACCEPTED"

	// KindRejected records a result that failed the gate, retained for
	// auditability.
	KindRejected Kind = "REJECTED"
)

// Event is an immutable ledger record. Payload is set for ACCEPTED events,
// Reason for REJECTED events. Chain is the chaining digest over the
// previous event's Chain and this event's serialization with Chain blank.
type Event struct {
	Seq      uint64                  `json:"seq"`
	Kind     Kind                    `json:"kind"`
	RunID    string                  `json:"run_id"`
	WorkerID int                     `json:"worker_id"`
	JobID    string                  `json:"job_id"`
	JobDone  bool                    `json:"job_done,omitempty"`
	Payload  *contract.ResultPayload `json:"payload,omitempty"`
	Reason   string                  `json:"reason,omitempty"`
	Hash     string                  `json:"hash"`
	TS       time.Time               `json:"ts"`
	Chain    string                  `json:"chain"`
}

// chainBody returns the canonical serialization the chain digest covers:
// the event with its Chain field blank.
func chainBody(e Event) ([]byte, error) {
	e.Chain = ""
	return json.Marshal(e)
}

// Ledger appends events to and replays events from a single JSONL file.
// Appends are serialized by the acceptance pipeline; the internal mutex
// only guards against concurrent use from auxiliary readers.
type Ledger struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	lastSeq  uint64
	lastHash string
}

// Open opens (or creates) the ledger at path for appending. Existing
// events are replayed once to recover the last sequence number and chain
// head, so new appends continue the chain. A torn final line left by a
// crash mid-append is truncated away before the file is reopened; the
// next append must start on a fresh line, never glued onto the fragment.
func Open(path string) (*Ledger, error) {
	l := &Ledger{path: path}

	valid, err := replayFile(path, func(e Event) error {
		l.lastSeq = e.Seq
		l.lastHash = e.Chain
		return nil
	})
	if err != nil {
		return nil, err
	}

	if info, statErr := os.Stat(path); statErr == nil && info.Size() > valid {
		if err := os.Truncate(path, valid); err != nil {
			return nil, errors.NewLedgerError("truncate", path, err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.NewLedgerError("open", path, err)
	}
	l.file = f
	return l, nil
}

// Path returns the ledger file path.
func (l *Ledger) Path() string {
	return l.path
}

// LastSeq returns the sequence number of the most recent event.
func (l *Ledger) LastSeq() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastSeq
}

// Append assigns the next sequence number and chain digest to the event,
// durably writes it, and returns the sequence number. The write is synced
// to disk before Append returns: an acceptance is not durable until then.
// Any failure is wrapped in ErrLedgerIO; callers must treat it as fatal.
func (l *Ledger) Append(e Event) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return 0, errors.NewLedgerError("append", l.path, errors.ErrLedgerIO)
	}

	e.Seq = l.lastSeq + 1
	if e.TS.IsZero() {
		e.TS = time.Now().UTC()
	}

	body, err := chainBody(e)
	if err != nil {
		return 0, errors.NewLedgerError("append", l.path, errors.Join(errors.ErrLedgerIO, err))
	}
	e.Chain = hash.Chain(l.lastHash, body)

	line, err := json.Marshal(e)
	if err != nil {
		return 0, errors.NewLedgerError("append", l.path, errors.Join(errors.ErrLedgerIO, err))
	}
	line = append(line, '\n')

	if _, err := l.file.Write(line); err != nil {
		return 0, errors.NewLedgerError("append", l.path, errors.Join(errors.ErrLedgerIO, err))
	}
	if err := l.file.Sync(); err != nil {
		return 0, errors.NewLedgerError("sync", l.path, errors.Join(errors.ErrLedgerIO, err))
	}

	l.lastSeq = e.Seq
	l.lastHash = e.Chain
	return e.Seq, nil
}

// Close closes the underlying file. Further appends fail.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
