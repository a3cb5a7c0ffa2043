// Package compactor derives a minimal snapshot from a run's ledger: the
// first accepted occurrence of every distinct result, in ledger order.
// Compaction is a pure read; the ledger itself is never rewritten, so the
// audit trail survives intact.
package compactor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeromine/zeromine/internal/contract"
	apperrors "github.com/zeromine/zeromine/internal/errors"
	"github.com/zeromine/zeromine/internal/ledger"
)

// FileName is the conventional compacted output name inside a run directory.
const FileName = "compact.jsonl"

// Record is one line of compacted output: where the result first entered
// the ledger, its canonical hash, and the payload itself.
type Record struct {
	Seq     uint64                  `json:"seq"`
	Hash    string                  `json:"hash"`
	Payload *contract.ResultPayload `json:"payload"`
}

// Stats summarizes a compaction pass.
type Stats struct {
	Kept    int // distinct accepted results written out
	Dropped int // rejections and duplicate acceptances skipped
}

// Compact reads the ledger at src and writes the compacted form to dst.
// Only ACCEPTED events survive, one per canonical hash, keeping the
// earliest occurrence. The output is deterministic: compacting the same
// ledger twice produces byte-identical files. The write goes through a
// temp file so a crash never leaves a half-written dst behind.
func Compact(src, dst string) (Stats, error) {
	var stats Stats
	seen := make(map[string]struct{})
	var records []Record

	err := ledger.ReplayFile(src, func(e ledger.Event) error {
		if e.Kind != ledger.KindAccepted {
			stats.Dropped++
			return nil
		}
		if _, dup := seen[e.Hash]; dup {
			stats.Dropped++
			return nil
		}
		seen[e.Hash] = struct{}{}
		records = append(records, Record{Seq: e.Seq, Hash: e.Hash, Payload: e.Payload})
		return nil
	})
	if err != nil {
		return Stats{}, err
	}
	stats.Kept = len(records)

	tmp := dst + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return Stats{}, &apperrors.LedgerError{Op: "compact", Path: dst, Err: err}
	}
	enc := json.NewEncoder(f)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			f.Close()
			os.Remove(tmp)
			return Stats{}, &apperrors.LedgerError{Op: "compact", Path: dst, Err: err}
		}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return Stats{}, &apperrors.LedgerError{Op: "compact", Path: dst, Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return Stats{}, &apperrors.LedgerError{Op: "compact", Path: dst, Err: err}
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return Stats{}, &apperrors.LedgerError{Op: "compact", Path: dst, Err: err}
	}
	return stats, nil
}

// CompactRun compacts the ledger inside runDir to the conventional
// output path and returns that path with the stats.
func CompactRun(runDir string) (string, Stats, error) {
	src := filepath.Join(runDir, ledger.FileName)
	if _, err := os.Stat(src); err != nil {
		return "", Stats{}, fmt.Errorf("no ledger in %s: %w", runDir, err)
	}
	dst := filepath.Join(runDir, FileName)
	stats, err := Compact(src, dst)
	return dst, stats, err
}
