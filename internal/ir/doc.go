// Package ir defines the shared vocabulary of the compiler and runtime:
// the canonical type system (payload x unit x extent with intrinsic
// strides), lowered expressions, scheduled steps, value slots, and the
// immutable CompiledProgram that one compilation produces and many frame
// executions consume.
//
// Nothing in this package computes; it is pure data plus the canonical
// JSON / hashing primitives that give patches and synthesized blocks
// deterministic identity.
package ir
