// Package blocks is the built-in block catalog: signal generators and
// arithmetic, per-element field primitives, stateful registers, render sinks
// and the unit/contract conversions the normalizer can splice between them.
//
// Each block is a declarative spec (ports, type variables, defaults) plus a
// lowering function that emits value expressions through the compiler's
// builder. The catalog carries no graph or scheduling logic of its own.
package blocks
