package blocks

import (
	"github.com/motivelab/motive/internal/compiler"
	"github.com/motivelab/motive/internal/ir"
)

// registerRenderBlocks installs the render sinks. A sink consumes fields and
// contributes typed buffers to a draw pass; it produces no value outputs.
func registerRenderBlocks(r *compiler.Registry) {
	r.MustRegister(&compiler.BlockSpec{
		Type:      "RenderPoints",
		FieldOnly: true,
		Inputs: []compiler.PortSpec{
			{Name: "position", Type: ir.Concrete(ir.PayloadVec2, ir.UnitWorld2D, ir.Signal()), PolyCard: true},
			{Name: "size", Type: ir.Concrete(ir.PayloadFloat, ir.UnitScalar, ir.Signal()), PolyCard: true, Optional: true,
				Default: &compiler.DefaultSpec{Value: 4}},
			{Name: "color", Type: ir.Concrete(ir.PayloadColor, ir.UnitSRGB, ir.Signal()), PolyCard: true, Optional: true},
		},
		Lower: func(ctx *compiler.LowerCtx) (compiler.Outputs, error) {
			pos, err := ctx.Input("position")
			if err != nil {
				return nil, err
			}
			pt := ctx.B.TypeOf(pos)
			if pt.Extent.Card != ir.CardMany {
				return nil, compiler.Diagnostic{
					Code:    compiler.DiagFieldOnlyBlock,
					Message: "RenderPoints draws an instance domain; its position input must be a field",
					Block:   ctx.BlockID(),
					Port:    "position",
				}
			}
			domain := pt.Extent.Instance

			buffers := []compiler.RenderBufferRef{{Name: "position", Expr: pos}}
			for _, name := range []string{"size", "color"} {
				src, ok := ctx.OptionalInput(name)
				if !ok {
					continue
				}
				src, err := liftToField(ctx, src, domain)
				if err != nil {
					return nil, err
				}
				buffers = append(buffers, compiler.RenderBufferRef{Name: name, Expr: src})
			}

			ctx.B.RenderPass(domain, buffers...)
			return compiler.Outputs{}, nil
		},
	})
}

// liftToField broadcasts a signal-valued buffer input over the pass domain.
// A field input must already live on the same domain.
func liftToField(ctx *compiler.LowerCtx, src ir.ExprID, domain string) (ir.ExprID, error) {
	t := ctx.B.TypeOf(src)
	if t.Extent.Card == ir.CardOne {
		return ctx.B.Broadcast(src, domain), nil
	}
	if t.Extent.Instance != domain {
		return ir.NoExpr, compiler.Diagnostic{
			Code:    compiler.DiagInstanceMismatch,
			Message: "render buffer field comes from a different instance domain than the position field",
			Block:   ctx.BlockID(),
		}
	}
	return src, nil
}
