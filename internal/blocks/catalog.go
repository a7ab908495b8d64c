package blocks

import (
	"math"

	"github.com/motivelab/motive/internal/compiler"
	"github.com/motivelab/motive/internal/ir"
)

// Catalog assembles the built-in block registry: generic signal blocks,
// per-element field blocks, stateful primitives, render sinks and the
// registered unit/contract conversions the normalizer may splice in.
func Catalog() *compiler.Registry {
	r := compiler.NewRegistry()
	compiler.RegisterAdapterBlock(r)

	registerSignalBlocks(r)
	registerFieldBlocks(r)
	registerStateBlocks(r)
	registerRenderBlocks(r)
	registerAdapters(r)
	return r
}

// registerAdapters installs the pure unit and contract conversions.
func registerAdapters(r *compiler.Registry) {
	r.RegisterAdapter(compiler.AdapterSpec{
		Name: "degreesToRadians", Payload: ir.PayloadFloat,
		FromUnit: ir.UnitDegrees, ToUnit: ir.UnitRadians,
		Op: ir.OpScale, K: math.Pi / 180,
	})
	r.RegisterAdapter(compiler.AdapterSpec{
		Name: "radiansToDegrees", Payload: ir.PayloadFloat,
		FromUnit: ir.UnitRadians, ToUnit: ir.UnitDegrees,
		Op: ir.OpScale, K: 180 / math.Pi,
	})
	r.RegisterAdapter(compiler.AdapterSpec{
		Name: "phase01ToRadians", Payload: ir.PayloadFloat,
		FromUnit: ir.UnitPhase01, ToUnit: ir.UnitRadians,
		Op: ir.OpScale, K: 2 * math.Pi,
	})
	r.RegisterAdapter(compiler.AdapterSpec{
		Name: "msToSeconds", Payload: ir.PayloadFloat,
		FromUnit: ir.UnitMilliseconds, ToUnit: ir.UnitScalar,
		Op: ir.OpScale, K: 0.001,
	})
	r.RegisterAdapter(compiler.AdapterSpec{
		Name: "normalizedToScalar", Payload: ir.PayloadFloat,
		FromUnit: ir.UnitNormalized01, ToUnit: ir.UnitScalar,
		Op: ir.OpScale, K: 1,
	})
	r.RegisterAdapter(compiler.AdapterSpec{
		Name: "scalarToNormalized", Payload: ir.PayloadFloat,
		FromUnit: ir.UnitScalar, ToUnit: ir.UnitNormalized01,
		Op: ir.OpClamp01,
	})
	// Contract conversion: raw normalized values feeding a clamped input.
	r.RegisterAdapter(compiler.AdapterSpec{
		Name: "clamp01Contract", Payload: ir.PayloadFloat,
		FromUnit: ir.UnitNormalized01, ToUnit: ir.UnitNormalized01,
		FromContract: "", ToContract: "clamped01",
		Op: ir.OpClamp01,
	})
}
