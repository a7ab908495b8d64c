package blocks

import (
	"github.com/motivelab/motive/internal/compiler"
	"github.com/motivelab/motive/internal/ir"
)

// registerFieldBlocks installs the per-element blocks. Intrinsic blocks are
// field-only: they require per-element identity and reject signal-only
// instantiation at compile time.
func registerFieldBlocks(r *compiler.Registry) {
	r.MustRegister(&compiler.BlockSpec{
		Type:      "ElementIndex",
		FieldOnly: true,
		Outputs: []compiler.PortSpec{
			{Name: "out", Type: ir.Concrete(ir.PayloadInt, ir.UnitIndex, ir.Signal()), PolyCard: true},
		},
		Lower: func(ctx *compiler.LowerCtx) (compiler.Outputs, error) {
			decl, err := ctx.Instance()
			if err != nil {
				return nil, err
			}
			t := ir.Concrete(ir.PayloadInt, ir.UnitIndex, ir.Field(decl.ID))
			return compiler.Outputs{"out": ctx.B.Intrinsic(ir.IntrinsicIndex, t, decl.ID)}, nil
		},
	})

	r.MustRegister(&compiler.BlockSpec{
		Type:      "NormalizedIndex",
		FieldOnly: true,
		Outputs: []compiler.PortSpec{
			{Name: "out", Type: ir.Concrete(ir.PayloadFloat, ir.UnitNormalized01, ir.Signal()), PolyCard: true},
		},
		Lower: func(ctx *compiler.LowerCtx) (compiler.Outputs, error) {
			decl, err := ctx.Instance()
			if err != nil {
				return nil, err
			}
			t := ir.Concrete(ir.PayloadFloat, ir.UnitNormalized01, ir.Field(decl.ID))
			return compiler.Outputs{"out": ctx.B.Intrinsic(ir.IntrinsicNormIndex, t, decl.ID)}, nil
		},
	})

	// RandomSeed yields a stable per-element pseudo-random value in [0,1),
	// derived from the element's stable id so it survives recompiles and
	// domain resizes.
	r.MustRegister(&compiler.BlockSpec{
		Type:      "RandomSeed",
		FieldOnly: true,
		Outputs: []compiler.PortSpec{
			{Name: "out", Type: ir.Concrete(ir.PayloadFloat, ir.UnitNormalized01, ir.Signal()), PolyCard: true},
		},
		Lower: func(ctx *compiler.LowerCtx) (compiler.Outputs, error) {
			decl, err := ctx.Instance()
			if err != nil {
				return nil, err
			}
			t := ir.Concrete(ir.PayloadFloat, ir.UnitNormalized01, ir.Field(decl.ID))
			return compiler.Outputs{"out": ctx.B.Intrinsic(ir.IntrinsicRandSeed, t, decl.ID)}, nil
		},
	})

	// Spread interpolates min..max across the domain by normalized index.
	r.MustRegister(&compiler.BlockSpec{
		Type:      "Spread",
		FieldOnly: true,
		Inputs: []compiler.PortSpec{
			{
				Name: "min", Type: ir.Concrete(ir.PayloadFloat, ir.UnitScalar, ir.Signal()),
				Optional: true, Default: &compiler.DefaultSpec{Value: 0},
			},
			{
				Name: "max", Type: ir.Concrete(ir.PayloadFloat, ir.UnitScalar, ir.Signal()),
				Optional: true, Default: &compiler.DefaultSpec{Value: 1},
			},
		},
		Outputs: []compiler.PortSpec{
			{Name: "out", Type: ir.Concrete(ir.PayloadFloat, ir.UnitScalar, ir.Signal()), PolyCard: true},
		},
		Lower: func(ctx *compiler.LowerCtx) (compiler.Outputs, error) {
			decl, err := ctx.Instance()
			if err != nil {
				return nil, err
			}
			min, err := ctx.Input("min")
			if err != nil {
				return nil, err
			}
			max, err := ctx.Input("max")
			if err != nil {
				return nil, err
			}
			nt := ir.Concrete(ir.PayloadFloat, ir.UnitNormalized01, ir.Field(decl.ID))
			norm := ctx.B.Intrinsic(ir.IntrinsicNormIndex, nt, decl.ID)
			out, err := ctx.MapOp(ir.OpMix, ir.PayloadFloat, ir.UnitScalar, min, max, norm)
			if err != nil {
				return nil, err
			}
			return compiler.Outputs{"out": out}, nil
		},
	})

	r.MustRegister(reduceBlock("SumReduce", ir.OpAdd))
	r.MustRegister(reduceBlock("MaxReduce", ir.OpMax))

	// Vec2 packs two float lanes into a vector; the componentwise opcode
	// machinery treats pack as concatenation.
	r.MustRegister(&compiler.BlockSpec{
		Type: "Vec2",
		Inputs: []compiler.PortSpec{
			{
				Name: "x", Type: ir.Concrete(ir.PayloadFloat, ir.UnitScalar, ir.Signal()),
				PolyCard: true, Optional: true, Default: &compiler.DefaultSpec{Value: 0},
			},
			{
				Name: "y", Type: ir.Concrete(ir.PayloadFloat, ir.UnitScalar, ir.Signal()),
				PolyCard: true, Optional: true, Default: &compiler.DefaultSpec{Value: 0},
			},
		},
		Outputs: []compiler.PortSpec{
			{Name: "out", Type: ir.Concrete(ir.PayloadVec2, ir.UnitWorld2D, ir.Signal()), PolyCard: true},
		},
		Lower: func(ctx *compiler.LowerCtx) (compiler.Outputs, error) {
			x, err := ctx.Input("x")
			if err != nil {
				return nil, err
			}
			y, err := ctx.Input("y")
			if err != nil {
				return nil, err
			}
			out, err := ctx.MapOp(ir.OpPack, ir.PayloadVec2, ir.UnitWorld2D, x, y)
			if err != nil {
				return nil, err
			}
			return compiler.Outputs{"out": out}, nil
		},
	})

	r.MustRegister(&compiler.BlockSpec{
		Type: "ColorRGBA",
		Inputs: []compiler.PortSpec{
			colorLane("r"), colorLane("g"), colorLane("b"), colorLane("a"),
		},
		Outputs: []compiler.PortSpec{
			{Name: "out", Type: ir.Concrete(ir.PayloadColor, ir.UnitSRGB, ir.Signal()), PolyCard: true},
		},
		Lower: func(ctx *compiler.LowerCtx) (compiler.Outputs, error) {
			var lanes []ir.ExprID
			for _, name := range []string{"r", "g", "b", "a"} {
				lane, err := ctx.Input(name)
				if err != nil {
					return nil, err
				}
				lanes = append(lanes, lane)
			}
			out, err := ctx.MapOp(ir.OpPack, ir.PayloadColor, ir.UnitSRGB, lanes...)
			if err != nil {
				return nil, err
			}
			return compiler.Outputs{"out": out}, nil
		},
	})
}

func colorLane(name string) compiler.PortSpec {
	return compiler.PortSpec{
		Name: name, Type: ir.Concrete(ir.PayloadFloat, ir.UnitNormalized01, ir.Signal()),
		PolyCard: true, Optional: true, Default: &compiler.DefaultSpec{Value: 1},
	}
}

// reduceBlock folds a field into a signal with an associative opcode.
// The input must actually be a field; reducing a signal is a lowering
// error, since there is no domain to fold over.
func reduceBlock(name string, op ir.Opcode) *compiler.BlockSpec {
	return &compiler.BlockSpec{
		Type: name,
		Inputs: []compiler.PortSpec{
			{Name: "in", Group: "v", PolyPayload: true, PolyUnit: true, PolyCard: true},
		},
		Outputs: []compiler.PortSpec{
			{Name: "out", Group: "v", PolyPayload: true, PolyUnit: true},
		},
		Lower: func(ctx *compiler.LowerCtx) (compiler.Outputs, error) {
			in, err := ctx.Input("in")
			if err != nil {
				return nil, err
			}
			if ctx.B.TypeOf(in).Extent.Card != ir.CardMany {
				return nil, compiler.Diagnostic{
					Code:    compiler.DiagFieldOnlyBlock,
					Message: "reduce needs a field input, got a signal",
					Block:   ctx.BlockID(),
					Port:    "in",
				}
			}
			return compiler.Outputs{"out": ctx.B.Reduce(op, in)}, nil
		},
	}
}
