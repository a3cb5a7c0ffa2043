package contract

import (
	"encoding/json"
	"fmt"
	"math"
)

// ReasonCode classifies why a record failed validation. Codes are
// machine-readable so rejection events can record a precise cause.
type ReasonCode string

const (
	// ReasonMissingField indicates a required field was absent.
	ReasonMissingField ReasonCode = "MISSING_FIELD"

	// ReasonTypeMismatch indicates a field had the wrong type.
	ReasonTypeMismatch ReasonCode = "TYPE_MISMATCH"

	// ReasonOutOfRange indicates a field value violated a domain constraint.
	ReasonOutOfRange ReasonCode = "OUT_OF_RANGE"
)

// ValidationError describes a single contract violation.
type ValidationError struct {
	Field  string
	Reason ReasonCode
	Detail string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Field, e.Reason, e.Detail)
}

// ValidateJob checks a job spec for structural and domain violations and
// returns the registered Job shape on success. Side-effect free.
func ValidateJob(spec JobSpec) (*Job, *ValidationError) {
	if spec.ID == "" {
		return nil, &ValidationError{Field: "id", Reason: ReasonMissingField}
	}
	for _, f := range []struct {
		name string
		val  float64
	}{
		{"t_start", spec.TStart},
		{"t_end", spec.TEnd},
		{"stride", spec.Stride},
	} {
		if math.IsNaN(f.val) || math.IsInf(f.val, 0) {
			return nil, &ValidationError{Field: f.name, Reason: ReasonOutOfRange, Detail: "must be finite"}
		}
	}
	if spec.TEnd <= spec.TStart {
		return nil, &ValidationError{Field: "t_end", Reason: ReasonOutOfRange, Detail: "must be greater than t_start"}
	}
	if spec.Stride <= 0 {
		return nil, &ValidationError{Field: "stride", Reason: ReasonOutOfRange, Detail: "must be positive"}
	}
	return &Job{
		ID:     spec.ID,
		TStart: spec.TStart,
		TEnd:   spec.TEnd,
		Stride: spec.Stride,
		Status: StatusPending,
	}, nil
}

// ValidateResult checks a result payload already in typed form.
// Side-effect free.
func ValidateResult(p ResultPayload) *ValidationError {
	if math.IsNaN(p.T) || math.IsInf(p.T, 0) {
		return &ValidationError{Field: "t", Reason: ReasonOutOfRange, Detail: "must be finite"}
	}
	if math.IsNaN(p.RootVal) || math.IsInf(p.RootVal, 0) {
		return &ValidationError{Field: "root_val", Reason: ReasonOutOfRange, Detail: "must be finite"}
	}
	if p.Meta.Method == "" {
		return &ValidationError{Field: "meta.method", Reason: ReasonMissingField}
	}
	if p.Meta.Iters < 0 {
		return &ValidationError{Field: "meta.iters", Reason: ReasonOutOfRange, Detail: "must be non-negative"}
	}
	return nil
}

// DecodeResult validates and decodes a raw JSON result, as returned by an
// out-of-process collaborator. Field presence and types are checked before
// the domain constraints in ValidateResult.
func DecodeResult(raw []byte) (*ResultPayload, *ValidationError) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, &ValidationError{Field: "payload", Reason: ReasonTypeMismatch, Detail: "not a JSON object"}
	}
	for _, field := range []string{"t", "root_val", "meta"} {
		if _, ok := obj[field]; !ok {
			return nil, &ValidationError{Field: field, Reason: ReasonMissingField}
		}
	}
	var p ResultPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &ValidationError{Field: "payload", Reason: ReasonTypeMismatch, Detail: err.Error()}
	}
	if verr := ValidateResult(p); verr != nil {
		return nil, verr
	}
	return &p, nil
}
