package blocks

import (
	"github.com/motivelab/motive/internal/compiler"
	"github.com/motivelab/motive/internal/ir"
)

// registerSignalBlocks installs the generic value blocks. Most are
// cardinality-polymorphic: the same block works on signals and fields, with
// dispatch centralized in the lowering framework's MapOp.
func registerSignalBlocks(r *compiler.Registry) {
	r.MustRegister(&compiler.BlockSpec{
		Type: "Const",
		Outputs: []compiler.PortSpec{
			{Name: "out", PolyPayload: true, PolyUnit: true},
		},
		Lower: func(ctx *compiler.LowerCtx) (compiler.Outputs, error) {
			t := ctx.PortType("out")
			t.Extent = ir.Signal()
			return compiler.Outputs{"out": ctx.B.ConstSplat(t, ctx.Param("value", 0))}, nil
		},
	})

	r.MustRegister(&compiler.BlockSpec{
		Type: "Time",
		Outputs: []compiler.PortSpec{
			{Name: "out", Type: ir.Concrete(ir.PayloadFloat, ir.UnitMilliseconds, ir.Signal())},
		},
		Lower: func(ctx *compiler.LowerCtx) (compiler.Outputs, error) {
			t := ir.Concrete(ir.PayloadFloat, ir.UnitMilliseconds, ir.Signal())
			return compiler.Outputs{"out": ctx.B.Input(ir.InputTimeMS, t)}, nil
		},
	})

	// Phasor ramps 0..1 at freq cycles per second, wrapping each cycle.
	r.MustRegister(&compiler.BlockSpec{
		Type: "Phasor",
		Inputs: []compiler.PortSpec{
			{
				Name: "time",
				Type: ir.Concrete(ir.PayloadFloat, ir.UnitMilliseconds, ir.Signal()),
				Optional: true, Default: &compiler.DefaultSpec{TimeSource: true},
			},
			{
				Name: "freq",
				Type: ir.Concrete(ir.PayloadFloat, ir.UnitScalar, ir.Signal()),
				Optional: true, Default: &compiler.DefaultSpec{Value: 1},
				PolyCard: true,
			},
		},
		Outputs: []compiler.PortSpec{
			{Name: "out", Type: ir.Concrete(ir.PayloadFloat, ir.UnitPhase01, ir.Signal()), PolyCard: true},
		},
		Lower: func(ctx *compiler.LowerCtx) (compiler.Outputs, error) {
			timeMS, err := ctx.Input("time")
			if err != nil {
				return nil, err
			}
			freq, err := ctx.Input("freq")
			if err != nil {
				return nil, err
			}
			ms := ctx.B.ConstSplat(ir.Concrete(ir.PayloadFloat, ir.UnitScalar, ir.Signal()), 0.001)
			seconds, err := ctx.MapOp(ir.OpMul, ir.PayloadFloat, ir.UnitScalar, timeMS, ms)
			if err != nil {
				return nil, err
			}
			cycles, err := ctx.MapOp(ir.OpMul, ir.PayloadFloat, ir.UnitScalar, seconds, freq)
			if err != nil {
				return nil, err
			}
			phase, err := ctx.MapOp(ir.OpFract, ir.PayloadFloat, ir.UnitPhase01, cycles)
			if err != nil {
				return nil, err
			}
			return compiler.Outputs{"out": phase}, nil
		},
	})

	for _, def := range []struct {
		name string
		op   ir.Opcode
	}{
		{"Add", ir.OpAdd},
		{"Sub", ir.OpSub},
		{"Multiply", ir.OpMul},
		{"Min", ir.OpMin},
		{"Max", ir.OpMax},
	} {
		r.MustRegister(binaryPoly(def.name, def.op))
	}
	r.MustRegister(unaryPoly("Negate", ir.OpNeg))
	r.MustRegister(unaryPoly("Abs", ir.OpAbs))

	// Trig blocks fix their input unit to radians; feeding degrees or
	// phase01 exercises the adapter pass rather than a special case here.
	r.MustRegister(&compiler.BlockSpec{
		Type: "Sin",
		Inputs: []compiler.PortSpec{
			{Name: "in", Type: ir.Concrete(ir.PayloadFloat, ir.UnitRadians, ir.Signal()), PolyCard: true},
		},
		Outputs: []compiler.PortSpec{
			{Name: "out", Type: ir.Concrete(ir.PayloadFloat, ir.UnitScalar, ir.Signal()), PolyCard: true},
		},
		Lower: unaryLower(ir.OpSin, ir.UnitScalar),
	})
	r.MustRegister(&compiler.BlockSpec{
		Type: "Cos",
		Inputs: []compiler.PortSpec{
			{Name: "in", Type: ir.Concrete(ir.PayloadFloat, ir.UnitRadians, ir.Signal()), PolyCard: true},
		},
		Outputs: []compiler.PortSpec{
			{Name: "out", Type: ir.Concrete(ir.PayloadFloat, ir.UnitScalar, ir.Signal()), PolyCard: true},
		},
		Lower: unaryLower(ir.OpCos, ir.UnitScalar),
	})

	r.MustRegister(&compiler.BlockSpec{
		Type: "Clamp01",
		Inputs: []compiler.PortSpec{
			{Name: "in", Type: ir.Concrete(ir.PayloadFloat, ir.UnitScalar, ir.Signal()), PolyCard: true},
		},
		Outputs: []compiler.PortSpec{
			{
				Name: "out", Type: ir.Concrete(ir.PayloadFloat, ir.UnitNormalized01, ir.Signal()),
				PolyCard: true, Contract: "clamped01",
			},
		},
		Lower: unaryLower(ir.OpClamp01, ir.UnitNormalized01),
	})

	r.MustRegister(&compiler.BlockSpec{
		Type: "Mix",
		Inputs: []compiler.PortSpec{
			{Name: "a", Group: "v", PolyPayload: true, PolyUnit: true, PolyCard: true},
			{Name: "b", Group: "v", PolyPayload: true, PolyUnit: true, PolyCard: true},
			{
				Name: "t", Type: ir.Concrete(ir.PayloadFloat, ir.UnitNormalized01, ir.Signal()),
				PolyCard: true, Optional: true, Default: &compiler.DefaultSpec{Value: 0.5},
			},
		},
		Outputs: []compiler.PortSpec{
			{Name: "out", Group: "v", PolyPayload: true, PolyUnit: true, PolyCard: true},
		},
		Lower: func(ctx *compiler.LowerCtx) (compiler.Outputs, error) {
			a, err := ctx.Input("a")
			if err != nil {
				return nil, err
			}
			b, err := ctx.Input("b")
			if err != nil {
				return nil, err
			}
			t, err := ctx.Input("t")
			if err != nil {
				return nil, err
			}
			out := ctx.PortType("out")
			mixed, err := ctx.MapOp(ir.OpMix, out.Payload, out.Unit, a, b, t)
			if err != nil {
				return nil, err
			}
			return compiler.Outputs{"out": mixed}, nil
		},
	})

	// Scale multiplies by a unitless factor without disturbing the unit.
	r.MustRegister(&compiler.BlockSpec{
		Type: "Scale",
		Inputs: []compiler.PortSpec{
			{Name: "in", Group: "v", PolyPayload: true, PolyUnit: true, PolyCard: true},
			{
				Name: "factor", Type: ir.Concrete(ir.PayloadFloat, ir.UnitScalar, ir.Signal()),
				PolyCard: true, Optional: true, Default: &compiler.DefaultSpec{Value: 1},
			},
		},
		Outputs: []compiler.PortSpec{
			{Name: "out", Group: "v", PolyPayload: true, PolyUnit: true, PolyCard: true},
		},
		Lower: func(ctx *compiler.LowerCtx) (compiler.Outputs, error) {
			in, err := ctx.Input("in")
			if err != nil {
				return nil, err
			}
			factor, err := ctx.Input("factor")
			if err != nil {
				return nil, err
			}
			out := ctx.PortType("out")
			scaled, err := ctx.MapOp(ir.OpMul, out.Payload, out.Unit, in, factor)
			if err != nil {
				return nil, err
			}
			return compiler.Outputs{"out": scaled}, nil
		},
	})
}

// binaryPoly builds a two-input cardinality- and type-polymorphic block
// whose inputs and output share one per-instance variable group.
func binaryPoly(name string, op ir.Opcode) *compiler.BlockSpec {
	return &compiler.BlockSpec{
		Type: name,
		Inputs: []compiler.PortSpec{
			{Name: "a", Group: "v", PolyPayload: true, PolyUnit: true, PolyCard: true},
			{Name: "b", Group: "v", PolyPayload: true, PolyUnit: true, PolyCard: true},
		},
		Outputs: []compiler.PortSpec{
			{Name: "out", Group: "v", PolyPayload: true, PolyUnit: true, PolyCard: true},
		},
		Lower: func(ctx *compiler.LowerCtx) (compiler.Outputs, error) {
			a, err := ctx.Input("a")
			if err != nil {
				return nil, err
			}
			b, err := ctx.Input("b")
			if err != nil {
				return nil, err
			}
			out := ctx.PortType("out")
			res, err := ctx.MapOp(op, out.Payload, out.Unit, a, b)
			if err != nil {
				return nil, err
			}
			return compiler.Outputs{"out": res}, nil
		},
	}
}

func unaryPoly(name string, op ir.Opcode) *compiler.BlockSpec {
	return &compiler.BlockSpec{
		Type: name,
		Inputs: []compiler.PortSpec{
			{Name: "in", Group: "v", PolyPayload: true, PolyUnit: true, PolyCard: true},
		},
		Outputs: []compiler.PortSpec{
			{Name: "out", Group: "v", PolyPayload: true, PolyUnit: true, PolyCard: true},
		},
		Lower: func(ctx *compiler.LowerCtx) (compiler.Outputs, error) {
			in, err := ctx.Input("in")
			if err != nil {
				return nil, err
			}
			out := ctx.PortType("out")
			res, err := ctx.MapOp(op, out.Payload, out.Unit, in)
			if err != nil {
				return nil, err
			}
			return compiler.Outputs{"out": res}, nil
		},
	}
}

// unaryLower lowers a fixed-unit unary block: float in, float out with the
// given output unit.
func unaryLower(op ir.Opcode, outUnit ir.Unit) compiler.LowerFunc {
	return func(ctx *compiler.LowerCtx) (compiler.Outputs, error) {
		in, err := ctx.Input("in")
		if err != nil {
			return nil, err
		}
		res, err := ctx.MapOp(op, ir.PayloadFloat, outUnit, in)
		if err != nil {
			return nil, err
		}
		return compiler.Outputs{"out": res}, nil
	}
}
