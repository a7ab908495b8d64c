package engine

import (
	"errors"
	"fmt"
	"sort"

	"github.com/motivelab/motive/internal/ir"
)

// RuntimeError represents a fault detected while executing a frame.
//
// Runtime faults include:
//   - Non-finite value: an expression produced NaN or an infinity
//   - Bad program: a step references an expression or slot that does not exist
//   - Unknown domain: a field expression's instance domain has no declaration
//   - Continuity miss: a remap could not match an element
//
// Numeric faults are recoverable: the offending value is clamped and the
// frame continues. Structural faults abort the frame.
type RuntimeError struct {
	// Code identifies the fault category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Expr identifies the offending expression, when known.
	Expr ir.ExprID

	// Key is the debug key of the affected slot, when known.
	Key string

	// Frame is the frame number the fault was first seen on.
	Frame int64

	// Count is how many times this exact fault has occurred. Repeated
	// identical faults are counted here instead of reported again.
	Count int
}

// RuntimeErrorCode categorizes runtime faults.
type RuntimeErrorCode string

const (
	// ErrCodeNonFinite indicates an expression produced NaN or +/-Inf.
	ErrCodeNonFinite RuntimeErrorCode = "NON_FINITE_VALUE"

	// ErrCodeBadProgram indicates a schedule step references a missing
	// expression, slot or state register.
	ErrCodeBadProgram RuntimeErrorCode = "BAD_PROGRAM"

	// ErrCodeUnknownDomain indicates a field expression is bound to an
	// instance domain the program does not declare.
	ErrCodeUnknownDomain RuntimeErrorCode = "UNKNOWN_DOMAIN"

	// ErrCodeContinuityMiss indicates a hot-swap remap left elements with
	// no source state; they were reset to defaults.
	ErrCodeContinuityMiss RuntimeErrorCode = "CONTINUITY_MISS"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s: %s (slot=%s)", e.Code, e.Message, e.Key)
	}
	if e.Expr != ir.NoExpr {
		return fmt.Sprintf("%s: %s (expr=e%d)", e.Code, e.Message, e.Expr)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsNonFinite reports whether err is a non-finite-value fault.
// Uses errors.As to handle wrapped errors.
func IsNonFinite(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeNonFinite
	}
	return false
}

// diagKey identifies one distinct fault for deduplication.
type diagKey struct {
	code RuntimeErrorCode
	expr ir.ExprID
	key  string
}

// diagnostics deduplicates runtime faults: the first occurrence is stored,
// repeats only bump the count. The frame loop never spams identical faults.
type diagnostics struct {
	byKey map[diagKey]*RuntimeError
}

func newDiagnostics() *diagnostics {
	return &diagnostics{byKey: make(map[diagKey]*RuntimeError)}
}

func (d *diagnostics) report(code RuntimeErrorCode, expr ir.ExprID, key, msg string, frame int64) {
	k := diagKey{code: code, expr: expr, key: key}
	if existing, ok := d.byKey[k]; ok {
		existing.Count++
		return
	}
	d.byKey[k] = &RuntimeError{
		Code:    code,
		Message: msg,
		Expr:    expr,
		Key:     key,
		Frame:   frame,
		Count:   1,
	}
}

// all returns the collected faults ordered by first-seen frame, then key.
func (d *diagnostics) all() []*RuntimeError {
	out := make([]*RuntimeError, 0, len(d.byKey))
	for _, re := range d.byKey {
		out = append(out, re)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Frame != out[j].Frame {
			return out[i].Frame < out[j].Frame
		}
		if out[i].Expr != out[j].Expr {
			return out[i].Expr < out[j].Expr
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func (d *diagnostics) reset() { d.byKey = make(map[diagKey]*RuntimeError) }
