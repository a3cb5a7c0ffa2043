package ledger

import (
	"github.com/zeromine/zeromine/internal/errors"
	"github.com/zeromine/zeromine/internal/hash"
)

// VerifyFile recomputes the chain digest over a full replay of the ledger
// at path. It returns nil if the stored and recomputed digests agree for
// every event; otherwise it returns a *errors.ChainError identifying the
// first divergent sequence number. Corruption is reported, never repaired.
func VerifyFile(path string) error {
	prev := ""
	return ReplayFile(path, func(e Event) error {
		body, err := chainBody(e)
		if err != nil {
			return errors.NewLedgerError("verify", path, err)
		}
		want := hash.Chain(prev, body)
		if e.Chain != want {
			return &errors.ChainError{Seq: e.Seq, Want: e.Chain, Got: want}
		}
		prev = e.Chain
		return nil
	})
}

// Verify recomputes the chain over this ledger's file.
func (l *Ledger) Verify() error {
	return VerifyFile(l.path)
}
