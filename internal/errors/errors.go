// Package errors provides centralized error definitions for the zeromine
// codebase. It defines sentinel errors for each failure class, typed errors
// that carry context, and the classification that separates per-result
// conditions (recovered locally, recorded, never fatal) from systemic
// conditions (which abort the orchestrator rather than risk violating the
// single-writer or durability invariants).
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Systemic sentinel errors. Any error wrapping one of these aborts the
// orchestrator process.
var (
	// ErrLocked indicates another orchestrator holds the write lock.
	ErrLocked = New("run directory is locked by another orchestrator")

	// ErrLedgerIO indicates a durable ledger write failed. The process
	// must stop: an ambiguous ledger state is never acceptable.
	ErrLedgerIO = New("ledger write failed")

	// ErrLedgerCorrupt indicates the ledger contains an unparseable
	// record before the final line.
	ErrLedgerCorrupt = New("ledger is corrupt")

	// ErrChainMismatch indicates chain verification found a divergence
	// between stored and recomputed digests.
	ErrChainMismatch = New("ledger chain mismatch")
)

// Bookkeeping sentinel errors.
var (
	// ErrJobNotFound indicates a job ID is not registered.
	ErrJobNotFound = New("job not found")

	// ErrInvalidTransition indicates an illegal job status transition.
	ErrInvalidTransition = New("invalid status transition")

	// ErrStateCorrupt indicates the state snapshot could not be parsed.
	// The snapshot is a cache; recovery rebuilds it from the ledger.
	ErrStateCorrupt = New("state snapshot corrupt")
)

// LedgerError wraps a ledger failure with the operation and file involved.
type LedgerError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface.
func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *LedgerError) Unwrap() error {
	return e.Err
}

// NewLedgerError creates a LedgerError for the given operation.
func NewLedgerError(op, path string, err error) *LedgerError {
	return &LedgerError{Op: op, Path: path, Err: err}
}

// ChainError reports the first position at which the stored and recomputed
// chain digests diverge.
type ChainError struct {
	Seq  uint64
	Want string
	Got  string
}

// Error implements the error interface.
func (e *ChainError) Error() string {
	return fmt.Sprintf("chain mismatch at seq %d: stored %s, recomputed %s", e.Seq, e.Want, e.Got)
}

// Unwrap makes the error match ErrChainMismatch via errors.Is.
func (e *ChainError) Unwrap() error {
	return ErrChainMismatch
}

// IsFatal reports whether an error is systemic: the orchestrator must stop
// rather than continue with the next result. Per-result rejections are not
// errors at all; they travel as verdicts through the acceptance pipeline.
func IsFatal(err error) bool {
	return Is(err, ErrLocked) || Is(err, ErrLedgerIO) || Is(err, ErrLedgerCorrupt)
}
