package compiler

import (
	"fmt"

	"github.com/motivelab/motive/internal/ir"
)

// Builder accumulates the IR of one compilation: expressions in emission
// order (emission order is dependency order by construction - an argument
// id must exist before it is used), state declarations, pending state
// writes and render passes. The scheduling pass flattens all of it into
// Steps and slots.
type Builder struct {
	exprs  []ir.Expr
	states []ir.StateDecl
	writes []pendingWrite
	passes []pendingPass
}

type pendingWrite struct {
	state ir.StateID
	src   ir.ExprID
}

type pendingPass struct {
	instance string
	buffers  []pendingBuffer
}

type pendingBuffer struct {
	name string
	expr ir.ExprID
}

func newBuilder() *Builder { return &Builder{} }

func (b *Builder) emit(e ir.Expr) ir.ExprID {
	if !e.Type.Resolved() {
		// Lowering must never emit an unresolved type; the solver and
		// normalizer guarantee resolution before lowering begins.
		panic(fmt.Sprintf("builder: unresolved type %s on %s expression", e.Type, e.Kind))
	}
	e.ID = ir.ExprID(len(b.exprs))
	b.exprs = append(b.exprs, e)
	return e.ID
}

// Const emits a compile-time constant. comps must be stride-many.
func (b *Builder) Const(t ir.Type, comps ...float64) ir.ExprID {
	if len(comps) != t.Payload.Stride() {
		panic(fmt.Sprintf("builder: const with %d components for payload %s", len(comps), t.Payload))
	}
	return b.emit(ir.Expr{Kind: ir.ExprConst, Type: t, Const: comps})
}

// ConstSplat emits a constant with one value replicated across components.
func (b *Builder) ConstSplat(t ir.Type, v float64) ir.ExprID {
	comps := make([]float64, t.Payload.Stride())
	for i := range comps {
		comps[i] = v
	}
	return b.emit(ir.Expr{Kind: ir.ExprConst, Type: t, Const: comps})
}

// Input emits an external per-frame input read.
func (b *Builder) Input(kind ir.InputKind, t ir.Type) ir.ExprID {
	return b.emit(ir.Expr{Kind: ir.ExprInput, Type: t, Input: kind})
}

// Op emits a componentwise scalar opcode over signal arguments.
func (b *Builder) Op(op ir.Opcode, t ir.Type, args ...ir.ExprID) ir.ExprID {
	for _, a := range args {
		if b.exprs[a].IsField() {
			panic("builder: Op over a field argument, use Kernel")
		}
	}
	return b.emit(ir.Expr{Kind: ir.ExprOp, Type: t, Op: op, Args: args})
}

// Kernel emits a per-element componentwise opcode over field arguments that
// all share the output's InstanceDecl.
func (b *Builder) Kernel(op ir.Opcode, t ir.Type, args ...ir.ExprID) ir.ExprID {
	if t.Extent.Card != ir.CardMany {
		panic("builder: Kernel with a signal output type")
	}
	for _, a := range args {
		arg := &b.exprs[a]
		if !arg.IsField() || arg.Type.Extent.Instance != t.Extent.Instance {
			panic("builder: kernel argument not a field of the output's instance")
		}
	}
	return b.emit(ir.Expr{Kind: ir.ExprKernel, Type: t, Op: op, Args: args, Instance: t.Extent.Instance})
}

// Intrinsic emits a per-element intrinsic bound to an instance domain.
// Intrinsics are only legal on fields.
func (b *Builder) Intrinsic(kind ir.IntrinsicKind, t ir.Type, instance string) ir.ExprID {
	if t.Extent.Card != ir.CardMany {
		panic("builder: intrinsic on a signal type")
	}
	return b.emit(ir.Expr{Kind: ir.ExprIntrinsic, Type: t, Intrinsic: kind, Instance: instance})
}

// StateRead emits a read of a state register's previous-frame value.
func (b *Builder) StateRead(id ir.StateID, t ir.Type) ir.ExprID {
	return b.emit(ir.Expr{Kind: ir.ExprStateRead, Type: t, State: id})
}

// Broadcast replicates a signal across an instance domain's elements.
func (b *Builder) Broadcast(arg ir.ExprID, instance string) ir.ExprID {
	src := b.exprs[arg]
	if src.IsField() {
		panic("builder: broadcast of a field")
	}
	t := src.Type
	t.Extent = ir.Field(instance)
	return b.emit(ir.Expr{Kind: ir.ExprBroadcast, Type: t, Args: []ir.ExprID{arg}, Instance: instance})
}

// Reduce folds a field into a signal with an associative opcode.
func (b *Builder) Reduce(op ir.Opcode, arg ir.ExprID) ir.ExprID {
	src := b.exprs[arg]
	if !src.IsField() {
		panic("builder: reduce of a signal")
	}
	t := src.Type
	t.Extent = ir.Signal()
	return b.emit(ir.Expr{Kind: ir.ExprReduce, Type: t, Op: op, Args: []ir.ExprID{arg}})
}

// DeclareState registers a persistent state register with its initial
// value (stride-many components, per element for field registers).
func (b *Builder) DeclareState(id ir.StateID, t ir.Type, init []float64) {
	b.states = append(b.states, ir.StateDecl{ID: id, Type: t, Init: init})
}

// WriteState schedules persisting src into a register for the next frame.
// All writes run after every evaluation step of the frame, so no read in
// the same frame can observe a current-frame write.
func (b *Builder) WriteState(id ir.StateID, src ir.ExprID) {
	b.writes = append(b.writes, pendingWrite{state: id, src: src})
}

// RenderPass registers a draw pass over an instance domain. Buffer order is
// preserved into the compiled pass.
func (b *Builder) RenderPass(instance string, buffers ...RenderBufferRef) {
	pp := pendingPass{instance: instance}
	for _, buf := range buffers {
		pp.buffers = append(pp.buffers, pendingBuffer{name: buf.Name, expr: buf.Expr})
	}
	b.passes = append(b.passes, pp)
}

// RenderBufferRef names one typed buffer contributed to a render pass.
type RenderBufferRef struct {
	Name string
	Expr ir.ExprID
}

// TypeOf returns the (resolved) type of an already emitted expression.
func (b *Builder) TypeOf(id ir.ExprID) ir.Type { return b.exprs[id].Type }

// LowerCtx is the per-block lowering context: resolved input references,
// resolved port types, block parameters and the builder.
type LowerCtx struct {
	g      *normGraph
	node   *blockNode
	B      *Builder
	inputs map[string]ir.ExprID
}

// BlockID returns the block instance id being lowered.
func (c *LowerCtx) BlockID() string { return c.node.b.ID }

// Input returns the resolved reference for a required input. A missing
// required input is a fatal lowering error.
func (c *LowerCtx) Input(name string) (ir.ExprID, error) {
	id, ok := c.inputs[name]
	if !ok {
		return ir.NoExpr, Diagnostic{
			Code:    DiagMissingInput,
			Message: fmt.Sprintf("required input %q has no incoming value", name),
			Block:   c.node.b.ID,
			Port:    name,
		}
	}
	return id, nil
}

// OptionalInput returns the reference for an optional input, if connected.
func (c *LowerCtx) OptionalInput(name string) (ir.ExprID, bool) {
	id, ok := c.inputs[name]
	return id, ok
}

// PortType returns the resolved canonical type of one of the block's ports.
func (c *LowerCtx) PortType(name string) ir.Type {
	t := c.node.ports[name]
	if t == nil {
		panic(fmt.Sprintf("lower %s: unknown port %q", c.node.b.ID, name))
	}
	return *t
}

// Param reads a numeric block parameter.
func (c *LowerCtx) Param(name string, fallback float64) float64 {
	return c.node.b.ParamFloat(name, fallback)
}

// ParamString reads a string block parameter.
func (c *LowerCtx) ParamString(name, fallback string) string {
	return c.node.b.ParamString(name, fallback)
}

// StateID returns the block's state register id. Derived from the stable
// block id so state correlates across recompiles.
func (c *LowerCtx) StateID() ir.StateID {
	return ir.StateID("state$" + c.node.b.ID)
}

// Instance resolves the block's "instance" parameter against the declared
// domains. Blocks that operate per element name their domain this way.
func (c *LowerCtx) Instance() (ir.InstanceDecl, error) {
	id := c.node.b.ParamString("instance", "")
	if id == "" {
		return ir.InstanceDecl{}, Diagnostic{
			Code:    DiagUnknownInstance,
			Message: "block needs an \"instance\" parameter naming a declared domain",
			Block:   c.node.b.ID,
		}
	}
	decl, ok := c.g.instance(id)
	if !ok {
		return ir.InstanceDecl{}, Diagnostic{
			Code:    DiagUnknownInstance,
			Message: fmt.Sprintf("instance %q is not declared in the patch", id),
			Block:   c.node.b.ID,
		}
	}
	return decl, nil
}

// MapOp is the centralized cardinality-polymorphic dispatch. If every
// argument is a signal it emits the scalar opcode path; if any argument is
// a field it broadcasts the remaining signal arguments to that field's
// InstanceDecl and emits the per-element kernel path. Zipping fields from
// different InstanceDecls is a fatal lowering error. All polymorphic blocks
// go through here; none re-implement the branch.
func (c *LowerCtx) MapOp(op ir.Opcode, payload ir.Payload, unit ir.Unit, args ...ir.ExprID) (ir.ExprID, error) {
	instance := ""
	for _, a := range args {
		t := c.B.TypeOf(a)
		if t.Extent.Card != ir.CardMany {
			continue
		}
		if instance == "" {
			instance = t.Extent.Instance
			continue
		}
		if t.Extent.Instance != instance {
			return ir.NoExpr, Diagnostic{
				Code: DiagInstanceMismatch,
				Message: fmt.Sprintf("cannot combine fields over %q and %q elementwise",
					instance, t.Extent.Instance),
				Block: c.node.b.ID,
			}
		}
	}

	if instance == "" {
		return c.B.Op(op, ir.Concrete(payload, unit, ir.Signal()), args...), nil
	}

	lifted := make([]ir.ExprID, len(args))
	for i, a := range args {
		if c.B.TypeOf(a).Extent.Card == ir.CardMany {
			lifted[i] = a
		} else {
			lifted[i] = c.B.Broadcast(a, instance)
		}
	}
	return c.B.Kernel(op, ir.Concrete(payload, unit, ir.Field(instance)), lifted...), nil
}

// lowerAdapter is the lowering for synthesized adapter blocks: look up the
// registered conversion and apply its opcode through the normal dispatch.
func lowerAdapter(ctx *LowerCtx) (Outputs, error) {
	in, err := ctx.Input("in")
	if err != nil {
		return nil, err
	}
	name := ctx.ParamString("conversion", "")
	var spec AdapterSpec
	found := false
	for _, a := range ctx.g.reg.adapters {
		if a.Name == name {
			spec, found = a, true
			break
		}
	}
	if !found {
		return nil, Diagnostic{
			Code:    DiagLowering,
			Message: fmt.Sprintf("adapter references unregistered conversion %q", name),
			Block:   ctx.BlockID(),
		}
	}
	out := ctx.PortType("out")

	args := []ir.ExprID{in}
	switch spec.Op {
	case ir.OpScale, ir.OpOffset:
		k := ctx.B.ConstSplat(ir.Concrete(out.Payload, out.Unit, ir.Signal()), spec.K)
		args = append(args, k)
	}
	result, err := ctx.MapOp(spec.Op, out.Payload, out.Unit, args...)
	if err != nil {
		return nil, err
	}
	return Outputs{"out": result}, nil
}

// RegisterAdapterBlock installs the synthesized adapter block type into a
// registry. Called once per catalog setup.
func RegisterAdapterBlock(r *Registry) {
	r.MustRegister(&BlockSpec{
		Type: AdapterBlockType,
		Inputs: []PortSpec{
			{Name: "in", PolyPayload: true, PolyUnit: true, PolyCard: true},
		},
		Outputs: []PortSpec{
			{Name: "out", Group: "outg", PolyPayload: true, PolyUnit: true, PolyCard: true},
		},
		Lower: lowerAdapter,
	})
}
