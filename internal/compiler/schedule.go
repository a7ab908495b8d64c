package compiler

import (
	"fmt"
	"sort"

	"github.com/motivelab/motive/internal/ir"
	"github.com/motivelab/motive/internal/patch"
)

// scheduler lowers every block in dependency order and flattens the result
// into the compiled program's steps and slots.
//
// The algorithm:
//  1. Build the block dependency graph (edge = depends-on) over dense
//     indices.
//  2. Find strongly connected components (Tarjan). The pop order of SCCs
//     has dependencies first, so it doubles as the lowering order.
//  3. A non-trivial SCC (more than one member, or a self-loop) must contain
//     a stateful primitive; otherwise the cycle is unbroken and fatal.
//     Stateful members lower in two phases: the output-only state-read half
//     before the SCC body, the input-consuming state-write half after.
//  4. Flatten emitted expressions into steps, allocating stride-correct
//     value slots.
type scheduler struct {
	g    *normGraph
	b    *Builder
	sink *diagSink

	outRefs map[patch.PortRef]ir.ExprID
	inRefs  map[patch.PortRef]ir.ExprID
}

func newScheduler(g *normGraph, sink *diagSink) *scheduler {
	return &scheduler{
		g:       g,
		b:       newBuilder(),
		sink:    sink,
		outRefs: make(map[patch.PortRef]ir.ExprID),
		inRefs:  make(map[patch.PortRef]ir.ExprID),
	}
}

// dependencyGraph returns, per dense block index, the sorted indices it
// depends on (its input edges' source blocks).
func (s *scheduler) dependencyGraph() [][]int {
	deps := make([][]int, len(s.g.order))
	for i := range s.g.edges {
		e := s.g.edges[i].edge
		from := s.g.node(e.From.Block)
		to := s.g.node(e.To.Block)
		if from == nil || to == nil {
			continue
		}
		deps[to.index] = append(deps[to.index], from.index)
	}
	for i := range deps {
		sort.Ints(deps[i])
	}
	return deps
}

// tarjanSCC finds strongly connected components over dense indices.
// SCCs pop in reverse topological order of the condensation: because edges
// point at dependencies, every SCC pops after the SCCs it depends on, so
// the returned order is directly usable as a lowering order.
func tarjanSCC(graph [][]int) [][]int {
	n := len(graph)
	var (
		index    = 0
		stack    []int
		indices  = make([]int, n)
		lowlink  = make([]int, n)
		onStack  = make([]bool, n)
		assigned = make([]bool, n)
		sccs     [][]int
	)
	for i := range indices {
		indices[i] = -1
	}

	var strongConnect func(v int)
	strongConnect = func(v int) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if indices[w] == -1 {
				strongConnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if indices[w] < lowlink[v] {
					lowlink[v] = indices[w]
				}
			}
		}

		if lowlink[v] == indices[v] {
			var scc []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				assigned[w] = true
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sort.Ints(scc)
			sccs = append(sccs, scc)
		}
	}

	for v := 0; v < n; v++ {
		if indices[v] == -1 {
			strongConnect(v)
		}
	}
	return sccs
}

func hasSelfLoop(v int, graph [][]int) bool {
	for _, w := range graph[v] {
		if w == v {
			return true
		}
	}
	return false
}

// run lowers every block. Returns false when a fatal error was recorded.
func (s *scheduler) run() bool {
	deps := s.dependencyGraph()
	sccs := tarjanSCC(deps)

	for _, scc := range sccs {
		if len(scc) == 1 && !hasSelfLoop(scc[0], deps) {
			if !s.lowerSingle(s.g.order[scc[0]]) {
				return false
			}
			continue
		}
		if !s.lowerCycle(scc, deps) {
			return false
		}
	}
	return s.sink.empty()
}

// lowerSingle lowers an acyclic block. A stateful primitive outside any
// cycle still lowers in both halves, back to back.
func (s *scheduler) lowerSingle(n *blockNode) bool {
	if n.spec.Stateful {
		if !s.lowerStateRead(n) {
			return false
		}
		return s.lowerStateWrite(n)
	}
	return s.lowerStateless(n)
}

// lowerCycle performs two-phase lowering of a non-trivial SCC.
func (s *scheduler) lowerCycle(scc []int, deps [][]int) bool {
	var stateful, rest []*blockNode
	inSCC := make(map[int]bool, len(scc))
	for _, v := range scc {
		inSCC[v] = true
		n := s.g.order[v]
		if n.spec.Stateful {
			stateful = append(stateful, n)
		} else {
			rest = append(rest, n)
		}
	}

	if len(stateful) == 0 {
		members := make([]string, 0, len(scc))
		for _, v := range scc {
			members = append(members, s.g.order[v].b.ID)
		}
		s.sink.add(Diagnostic{
			Code:    DiagUnbrokenCycle,
			Message: "feedback cycle contains no stateful primitive",
			Blocks:  members,
		})
		return false
	}

	// Phase 1: the output-only halves. They read previous-frame state and
	// need no current-frame input, which is what makes the cycle legal.
	for _, n := range stateful {
		if !s.lowerStateRead(n) {
			return false
		}
	}

	// Phase 2: topologically lower the rest of the SCC. Dependencies on a
	// stateful member resolve against its phase-1 output, so edges from
	// stateful members are ignored for ordering.
	indegree := make(map[int]int, len(rest))
	dependents := make(map[int][]int)
	statefulIdx := make(map[int]bool, len(stateful))
	for _, n := range stateful {
		statefulIdx[n.index] = true
	}
	for _, n := range rest {
		indegree[n.index] = 0
	}
	for _, n := range rest {
		for _, d := range deps[n.index] {
			if inSCC[d] && !statefulIdx[d] && d != n.index {
				indegree[n.index]++
				dependents[d] = append(dependents[d], n.index)
			}
		}
	}
	var ready []int
	for _, n := range rest {
		if indegree[n.index] == 0 {
			ready = append(ready, n.index)
		}
	}
	sort.Ints(ready)
	lowered := 0
	for len(ready) > 0 {
		v := ready[0]
		ready = ready[1:]
		if !s.lowerStateless(s.g.order[v]) {
			return false
		}
		lowered++
		for _, w := range dependents[v] {
			indegree[w]--
			if indegree[w] == 0 {
				ready = append(ready, w)
				sort.Ints(ready)
			}
		}
	}
	if lowered < len(rest) {
		var stuck []string
		for _, n := range rest {
			if indegree[n.index] > 0 {
				stuck = append(stuck, n.b.ID)
			}
		}
		sort.Strings(stuck)
		s.sink.add(Diagnostic{
			Code:    DiagUnbrokenCycle,
			Message: "cycle not broken by any stateful primitive",
			Blocks:  stuck,
		})
		return false
	}

	// Re-invoke the stateful primitives' input-consuming halves now that
	// their inputs are lowered.
	for _, n := range stateful {
		if !s.lowerStateWrite(n) {
			return false
		}
	}
	return true
}

// ctxFor builds the lowering context, combining multi-writer inputs.
func (s *scheduler) ctxFor(n *blockNode) (*LowerCtx, bool) {
	ctx := &LowerCtx{g: s.g, node: n, B: s.b, inputs: make(map[string]ir.ExprID)}
	for _, ps := range n.spec.Inputs {
		ref := patch.PortRef{Block: n.b.ID, Port: ps.Name}
		edgeIdxs := s.g.inEdges[ref]
		if len(edgeIdxs) == 0 {
			continue
		}
		var srcs []ir.ExprID
		combine := patch.CombineSum
		for _, ei := range edgeIdxs {
			e := s.g.edges[ei].edge
			src, ok := s.outRefs[e.From]
			if !ok {
				// Scheduling guarantees dependencies lower first; a miss
				// here is a scheduler bug.
				panic(fmt.Sprintf("schedule: input %s reads unlowered output %s", ref, e.From))
			}
			srcs = append(srcs, src)
			if e.Combine != "" {
				combine = e.Combine
			}
		}
		combined, err := s.combine(ctx, srcs, combine)
		if err != nil {
			s.addLowerErr(n, err)
			return nil, false
		}
		ctx.inputs[ps.Name] = combined
		s.inRefs[ref] = combined
	}
	return ctx, true
}

// combine folds multiple writers into one reference using the edge-declared
// combine mode. Fold order follows edge dense order; sum and max are
// associative and commutative so the order only affects expression shape.
func (s *scheduler) combine(ctx *LowerCtx, srcs []ir.ExprID, mode patch.CombineMode) (ir.ExprID, error) {
	if len(srcs) == 1 {
		return srcs[0], nil
	}
	if mode == patch.CombineLast {
		return srcs[len(srcs)-1], nil
	}
	op := ir.OpAdd
	if mode == patch.CombineMax {
		op = ir.OpMax
	}
	acc := srcs[0]
	t := s.b.TypeOf(acc)
	for _, src := range srcs[1:] {
		var err error
		acc, err = ctx.MapOp(op, t.Payload, t.Unit, acc, src)
		if err != nil {
			return ir.NoExpr, err
		}
	}
	return acc, nil
}

func (s *scheduler) addLowerErr(n *blockNode, err error) {
	if d, ok := err.(Diagnostic); ok {
		s.sink.add(d)
		return
	}
	s.sink.addf(DiagLowering, n.b.ID, "", "%v", err)
}

// recordOutputs binds lowered output references and finalizes the port
// types' extents for the editor's type display.
func (s *scheduler) recordOutputs(n *blockNode, outs Outputs) bool {
	for _, ps := range n.spec.Outputs {
		refID, ok := outs[ps.Name]
		if !ok {
			s.sink.addf(DiagLowering, n.b.ID, ps.Name, "block lowering produced no output %q", ps.Name)
			return false
		}
		s.outRefs[patch.PortRef{Block: n.b.ID, Port: ps.Name}] = refID
		t := s.b.TypeOf(refID)
		*n.ports[ps.Name] = t
	}
	return true
}

func (s *scheduler) lowerStateless(n *blockNode) bool {
	ctx, ok := s.ctxFor(n)
	if !ok {
		return false
	}
	outs, err := n.spec.Lower(ctx)
	if err != nil {
		s.addLowerErr(n, err)
		return false
	}
	return s.recordOutputs(n, outs)
}

func (s *scheduler) lowerStateRead(n *blockNode) bool {
	// The read half may not touch inputs: they are not lowered yet when the
	// block sits in a cycle. The context carries none.
	ctx := &LowerCtx{g: s.g, node: n, B: s.b, inputs: make(map[string]ir.ExprID)}
	outs, err := n.spec.LowerStateRead(ctx)
	if err != nil {
		s.addLowerErr(n, err)
		return false
	}
	return s.recordOutputs(n, outs)
}

func (s *scheduler) lowerStateWrite(n *blockNode) bool {
	ctx, ok := s.ctxFor(n)
	if !ok {
		return false
	}
	if err := n.spec.LowerStateWrite(ctx); err != nil {
		s.addLowerErr(n, err)
		return false
	}
	return true
}

// flatten turns the builder's accumulation into the program's steps, slots
// and metadata. Slot offsets advance by each slot's stride within its bank;
// field banks are scoped per InstanceDecl.
func (s *scheduler) flatten(prog *ir.Program) {
	prog.Exprs = s.b.exprs
	prog.States = s.b.states
	prog.FieldWidths = make(map[string]int)
	prog.PortTypes = make(map[string]ir.Type)
	prog.DebugSlots = make(map[string]ir.SlotID)

	// Debug keys: the first output port bound to an expression names it.
	debugKeys := make(map[ir.ExprID]string)
	for _, n := range s.g.order {
		for _, ps := range n.spec.Outputs {
			ref := patch.PortRef{Block: n.b.ID, Port: ps.Name}
			if e, ok := s.outRefs[ref]; ok {
				if _, claimed := debugKeys[e]; !claimed {
					debugKeys[e] = ref.String()
				}
			}
		}
	}

	signalOffset := 0
	fieldOffsets := make(map[string]int)
	exprSlot := make([]ir.SlotID, len(s.b.exprs))

	for i := range s.b.exprs {
		e := &s.b.exprs[i]
		stride := e.Type.Payload.Stride()
		slot := ir.ValueSlot{
			ID:       ir.SlotID(len(prog.Slots)),
			Stride:   stride,
			Payload:  e.Type.Payload,
			DebugKey: debugKeys[e.ID],
		}
		var step ir.Step
		if e.IsField() {
			inst := e.Type.Extent.Instance
			slot.Bank = ir.BankField
			slot.Instance = inst
			slot.Offset = fieldOffsets[inst]
			fieldOffsets[inst] += stride
			step = ir.Step{Kind: ir.StepMaterializeField, Expr: e.ID, Slot: slot.ID, Instance: inst}
		} else {
			slot.Bank = ir.BankSignal
			slot.Offset = signalOffset
			signalOffset += stride
			step = ir.Step{Kind: ir.StepEvalSignal, Expr: e.ID, Slot: slot.ID}
		}
		e.Debug = slot.DebugKey
		prog.Slots = append(prog.Slots, slot)
		prog.Steps = append(prog.Steps, step)
		exprSlot[i] = slot.ID
	}
	prog.SignalWidth = signalOffset
	for inst, w := range fieldOffsets {
		prog.FieldWidths[inst] = w
	}

	// State writes run after every evaluation, so reads within the frame
	// always observe previous-frame values.
	for _, w := range s.b.writes {
		prog.Steps = append(prog.Steps, ir.Step{Kind: ir.StepStateWrite, State: w.state, Src: w.src})
	}

	// Continuity for every domain the program materializes.
	usedInstances := make([]string, 0, len(fieldOffsets))
	for inst := range fieldOffsets {
		usedInstances = append(usedInstances, inst)
	}
	sort.Strings(usedInstances)
	for _, inst := range usedInstances {
		if decl, ok := s.g.instance(inst); ok {
			prog.Instances = append(prog.Instances, decl)
		}
		prog.Steps = append(prog.Steps, ir.Step{Kind: ir.StepContinuityBuild, Instance: inst})
		prog.Steps = append(prog.Steps, ir.Step{Kind: ir.StepContinuityApply, Instance: inst})
	}

	// Render passes last: they package already materialized buffers.
	for _, pp := range s.b.passes {
		decl := ir.RenderPassDecl{Instance: pp.instance}
		for _, buf := range pp.buffers {
			decl.Buffers = append(decl.Buffers, ir.RenderBuffer{
				Name:    buf.name,
				Slot:    exprSlot[buf.expr],
				Payload: s.b.exprs[buf.expr].Type.Payload,
			})
		}
		prog.Passes = append(prog.Passes, decl)
		prog.Steps = append(prog.Steps, ir.Step{
			Kind: ir.StepRenderAssemble, Pass: len(prog.Passes) - 1, Instance: pp.instance,
		})
	}

	// Editor metadata: resolved port types and the slot debug index.
	for _, n := range s.g.order {
		for _, name := range n.portOrder {
			key := n.b.ID + "." + name
			prog.PortTypes[key] = *n.ports[name]
		}
	}
	for ref, e := range s.outRefs {
		prog.DebugSlots[ref.String()] = exprSlot[e]
	}
	for ref, e := range s.inRefs {
		prog.DebugSlots["in:"+ref.String()] = exprSlot[e]
	}
}
