package compiler

import (
	"fmt"
	"strings"
)

// DiagCode categorizes compile diagnostics.
type DiagCode string

const (
	// Type errors - collected across the whole compile.
	DiagUnresolvedVar   DiagCode = "UNRESOLVED_TYPE_VAR"
	DiagUnitConflict    DiagCode = "UNIT_CONFLICT"
	DiagPayloadConflict DiagCode = "PAYLOAD_CONFLICT"
	DiagUnitNotAllowed  DiagCode = "UNIT_NOT_ALLOWED"
	DiagNoAdapter       DiagCode = "NO_ADAPTER"

	// Cycle errors - fatal.
	DiagUnbrokenCycle DiagCode = "UNBROKEN_CYCLE"

	// Lowering errors - fatal.
	DiagMissingInput     DiagCode = "MISSING_INPUT"
	DiagInstanceMismatch DiagCode = "INSTANCE_MISMATCH"
	DiagFieldOnlyBlock   DiagCode = "FIELD_ONLY_BLOCK"
	DiagUnknownInstance  DiagCode = "UNKNOWN_INSTANCE"
	DiagLowering         DiagCode = "LOWERING"
)

// Diagnostic is one compile error, addressable by block/port/edge id so the
// editor can attach it to the offending graph element.
type Diagnostic struct {
	Code    DiagCode `json:"code"`
	Message string   `json:"message"`
	Block   string   `json:"block,omitempty"`
	Port    string   `json:"port,omitempty"`
	Edge    string   `json:"edge,omitempty"`
	// Blocks lists every member of an offending cycle.
	Blocks []string `json:"blocks,omitempty"`
}

func (d Diagnostic) Error() string {
	where := d.Block
	if d.Port != "" {
		where += "." + d.Port
	}
	if where == "" {
		where = d.Edge
	}
	if len(d.Blocks) > 0 {
		where = strings.Join(d.Blocks, ", ")
	}
	if where == "" {
		return fmt.Sprintf("%s: %s", d.Code, d.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", d.Code, d.Message, where)
}

// CompileError aggregates every diagnostic of a failed compilation.
// Compilation either fully succeeds or fails with this error; there is no
// partial compiled state.
type CompileError struct {
	Diags []Diagnostic
}

func (e *CompileError) Error() string {
	if len(e.Diags) == 1 {
		return e.Diags[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d compile errors:", len(e.Diags))
	for _, d := range e.Diags {
		b.WriteString("\n  ")
		b.WriteString(d.Error())
	}
	return b.String()
}

// diagSink collects diagnostics during a compile. Type errors accumulate;
// fatal phases (structural, cycle, lowering) stop the pipeline after their
// phase completes.
type diagSink struct {
	diags []Diagnostic
}

func (s *diagSink) add(d Diagnostic) {
	s.diags = append(s.diags, d)
}

func (s *diagSink) addf(code DiagCode, block, port string, format string, args ...any) {
	s.add(Diagnostic{Code: code, Message: fmt.Sprintf(format, args...), Block: block, Port: port})
}

func (s *diagSink) empty() bool { return len(s.diags) == 0 }

func (s *diagSink) err() error {
	if s.empty() {
		return nil
	}
	return &CompileError{Diags: s.diags}
}
