package blocks

import (
	"github.com/motivelab/motive/internal/compiler"
	"github.com/motivelab/motive/internal/ir"
)

// registerStateBlocks installs the stateful primitives. Their output for
// the current frame is defined by the previous frame's state, which is what
// legally breaks a feedback cycle: the output-only half lowers before the
// rest of the cycle, the input-consuming half after.
func registerStateBlocks(r *compiler.Registry) {
	r.MustRegister(&compiler.BlockSpec{
		Type:     "UnitDelay",
		Stateful: true,
		Inputs: []compiler.PortSpec{
			{Name: "in", Group: "v", PolyPayload: true, PolyUnit: true, PolyCard: true},
		},
		Outputs: []compiler.PortSpec{
			{Name: "out", Group: "v", PolyPayload: true, PolyUnit: true, PolyCard: true},
		},
		LowerStateRead: stateReadHalf,
		LowerStateWrite: func(ctx *compiler.LowerCtx) error {
			in, err := ctx.Input("in")
			if err != nil {
				return err
			}
			in, err = normalizeStateInput(ctx, in)
			if err != nil {
				return err
			}
			ctx.B.WriteState(ctx.StateID(), in)
			return nil
		},
	})

	// Accumulate integrates its input: out[n] = out[n-1] + in[n-1..n].
	r.MustRegister(&compiler.BlockSpec{
		Type:     "Accumulate",
		Stateful: true,
		Inputs: []compiler.PortSpec{
			{Name: "in", Group: "v", PolyPayload: true, PolyUnit: true, PolyCard: true},
		},
		Outputs: []compiler.PortSpec{
			{Name: "out", Group: "v", PolyPayload: true, PolyUnit: true, PolyCard: true},
		},
		LowerStateRead: stateReadHalf,
		LowerStateWrite: func(ctx *compiler.LowerCtx) error {
			in, err := ctx.Input("in")
			if err != nil {
				return err
			}
			in, err = normalizeStateInput(ctx, in)
			if err != nil {
				return err
			}
			t := stateType(ctx)
			prev := ctx.B.StateRead(ctx.StateID(), t)
			next, err := ctx.MapOp(ir.OpAdd, t.Payload, t.Unit, prev, in)
			if err != nil {
				return err
			}
			ctx.B.WriteState(ctx.StateID(), next)
			return nil
		},
	})
}

// stateType resolves the register type: the block's resolved value type,
// lifted to a field when an "instance" parameter names a domain.
func stateType(ctx *compiler.LowerCtx) ir.Type {
	t := ctx.PortType("out")
	if inst := ctx.ParamString("instance", ""); inst != "" {
		t.Extent = ir.Field(inst)
	} else {
		t.Extent = ir.Signal()
	}
	return t
}

// stateReadHalf is the shared output-only lowering: declare the register
// with its initial value and read the previous frame's contents. It never
// touches inputs - they are not lowered yet when the block sits in a cycle.
func stateReadHalf(ctx *compiler.LowerCtx) (compiler.Outputs, error) {
	t := stateType(ctx)
	if ctx.ParamString("instance", "") != "" {
		if _, err := ctx.Instance(); err != nil {
			return nil, err
		}
	}
	stride := t.Payload.Stride()
	init := make([]float64, stride)
	initial := ctx.Param("initial", 0)
	for i := range init {
		init[i] = initial
	}
	ctx.B.DeclareState(ctx.StateID(), t, init)
	return compiler.Outputs{"out": ctx.B.StateRead(ctx.StateID(), t)}, nil
}

// normalizeStateInput reconciles the input's cardinality with the register
// shape fixed by the read half: a signal feeding a field register is lifted
// by broadcast, a field feeding a signal register (or a foreign domain's
// field) is an error.
func normalizeStateInput(ctx *compiler.LowerCtx, in ir.ExprID) (ir.ExprID, error) {
	declared := stateType(ctx)
	got := ctx.B.TypeOf(in)

	if declared.Extent.Card == ir.CardOne {
		if got.Extent.Card == ir.CardMany {
			return ir.NoExpr, compiler.Diagnostic{
				Code:    compiler.DiagInstanceMismatch,
				Message: "field input flows into a signal register; add an \"instance\" parameter or reduce the input",
				Block:   ctx.BlockID(),
				Port:    "in",
			}
		}
		return in, nil
	}

	if got.Extent.Card == ir.CardOne {
		return ctx.B.Broadcast(in, declared.Extent.Instance), nil
	}
	if got.Extent.Instance != declared.Extent.Instance {
		return ir.NoExpr, compiler.Diagnostic{
			Code:    compiler.DiagInstanceMismatch,
			Message: "stateful block input comes from a different instance domain than its register",
			Block:   ctx.BlockID(),
			Port:    "in",
		}
	}
	return in, nil
}
