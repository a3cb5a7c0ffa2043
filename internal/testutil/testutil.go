// Package testutil provides run-directory fixtures for zeromine tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/zeromine/zeromine/internal/contract"
	"github.com/zeromine/zeromine/internal/hash"
	"github.com/zeromine/zeromine/internal/ledger"
)

// Payload builds a well-formed result payload at position t.
func Payload(t, rootVal float64) contract.ResultPayload {
	return contract.ResultPayload{
		T:       t,
		RootVal: rootVal,
		Meta:    contract.Meta{Method: "bisect", Iters: 20},
	}
}

// AcceptedEvent builds an ACCEPTED ledger event for jobID with a payload
// at position t. The canonical hash is computed for the caller.
func AcceptedEvent(jobID string, t float64) ledger.Event {
	p := Payload(t, 1e-14)
	return ledger.Event{
		Kind:    ledger.KindAccepted,
		RunID:   "run-test",
		JobID:   jobID,
		Payload: &p,
		Hash:    hash.Result(p),
	}
}

// WriteLedger creates a chained ledger in dir from the given events and
// returns its path. Sequence numbers and chain digests are assigned by
// the append path, exactly as a live run would.
func WriteLedger(t *testing.T, dir string, events ...ledger.Event) string {
	t.Helper()
	path := filepath.Join(dir, ledger.FileName)
	led, err := ledger.Open(path)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	defer led.Close()
	for i, e := range events {
		if _, err := led.Append(e); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}
	return path
}
