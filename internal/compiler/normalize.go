package compiler

import (
	"fmt"

	"github.com/motivelab/motive/internal/ir"
	"github.com/motivelab/motive/internal/patch"
)

// AdapterBlockType is the synthesized block type the normalizer splices
// onto unit- or contract-mismatched edges. Registered by NewRegistry's
// callers via RegisterAdapterBlock.
const AdapterBlockType = "__adapter"

// blockNode is one instantiated block: its patch record, catalog spec and
// per-instance port types. Port names are unique across inputs and outputs
// of a block type (catalog rule), so one map serves both.
type blockNode struct {
	b     *patch.Block
	spec  *BlockSpec
	index int // dense index, assigned by the final normalizer sub-pass

	ports     map[string]*ir.Type
	portOrder []string // inputs first, then outputs, declaration order
}

// outType returns the node's type for an output port.
func (n *blockNode) outType(port string) *ir.Type { return n.ports[port] }

type edgeNode struct {
	edge  patch.Edge
	index int
}

// normGraph is the compiler's working copy of the graph: the editor's
// snapshot plus synthesized default-source and adapter blocks. It never
// aliases the live editor-owned patch.
type normGraph struct {
	reg   *Registry
	sink  *diagSink
	nodes map[string]*blockNode
	order []*blockNode // deterministic: snapshot order, synthesized appended
	edges []edgeNode

	instances []ir.InstanceDecl

	// Dense lookup tables, built by the indexing sub-pass.
	inEdges  map[patch.PortRef][]int
	outEdges map[patch.PortRef][]int
}

// buildGraph instantiates every block's ports with per-instance type
// variables. Ports sharing a declared group within one block share their
// variable; nothing is ever shared across instances.
func buildGraph(reg *Registry, snapshot *patch.Patch, sink *diagSink) *normGraph {
	g := &normGraph{
		reg:       reg,
		sink:      sink,
		nodes:     make(map[string]*blockNode),
		instances: append([]ir.InstanceDecl(nil), snapshot.Instances...),
	}
	for _, b := range snapshot.Blocks {
		g.addBlock(b)
	}
	for _, e := range snapshot.Edges {
		g.addEdge(e)
	}
	return g
}

func (g *normGraph) addBlock(b *patch.Block) *blockNode {
	spec, ok := g.reg.Lookup(b.Type)
	if !ok {
		// Structural validation already rejected unknown types.
		return nil
	}
	n := &blockNode{
		b:     b,
		spec:  spec,
		ports: make(map[string]*ir.Type),
	}
	instantiate := func(ps PortSpec) {
		t := ps.Type
		ref := ir.VarRef{Block: b.ID, Port: ps.group()}
		if ps.PolyPayload {
			t.Payload = ir.PayloadNone
			t.PayloadVar = ref
		}
		if ps.PolyUnit {
			t.Unit = ir.UnitNone
			t.UnitVar = ref
		}
		g.fillPortDefaults(&t)
		n.ports[ps.Name] = &t
		n.portOrder = append(n.portOrder, ps.Name)
	}
	for _, ps := range spec.Inputs {
		instantiate(ps)
	}
	for _, ps := range spec.Outputs {
		instantiate(ps)
	}
	g.nodes[b.ID] = n
	g.order = append(g.order, n)
	return n
}

// fillPortDefaults completes a concrete-payload port that left its unit
// implicit where the payload admits exactly one unit.
func (g *normGraph) fillPortDefaults(t *ir.Type) {
	if t.Payload.Known() && t.Unit == ir.UnitNone && t.UnitVar.IsZero() {
		t.Unit = ir.DefaultUnit(t.Payload)
	}
	if t.Extent.Card == "" {
		t.Extent = ir.Signal()
	}
}

func (g *normGraph) addEdge(e patch.Edge) {
	g.edges = append(g.edges, edgeNode{edge: e, index: len(g.edges)})
}

func (g *normGraph) node(id string) *blockNode { return g.nodes[id] }

// portType returns the working type of an edge endpoint, or nil for an
// endpoint structural validation already rejected.
func (g *normGraph) portType(ref patch.PortRef, isOutput bool) *ir.Type {
	n := g.nodes[ref.Block]
	if n == nil {
		return nil
	}
	return n.ports[ref.Port]
}

// portContract returns the declared value contract of an endpoint.
func (g *normGraph) portContract(ref patch.PortRef, isOutput bool) string {
	n := g.nodes[ref.Block]
	if n == nil {
		return ""
	}
	specs := n.spec.Inputs
	if isOutput {
		specs = n.spec.Outputs
	}
	for _, ps := range specs {
		if ps.Name == ref.Port {
			return ps.Contract
		}
	}
	return ""
}

// resolvePayloads is normalizer sub-pass 1: propagate concrete payloads
// across edges in both directions, independent of unit resolution. Runs to
// a fixpoint; per-instance variable bindings fan out to every port sharing
// the variable's group.
func (g *normGraph) resolvePayloads() {
	bindings := make(map[ir.VarRef]ir.Payload)
	for {
		changed := false

		propagate := func(from, to *ir.Type) {
			if from == nil || to == nil {
				return
			}
			if from.Payload.Known() && to.Payload == ir.PayloadNone {
				if _, bound := bindings[to.PayloadVar]; !bound {
					bindings[to.PayloadVar] = from.Payload
					changed = true
				}
			}
		}
		for i := range g.edges {
			e := &g.edges[i].edge
			src := g.portType(e.From, true)
			dst := g.portType(e.To, false)
			propagate(src, dst)
			propagate(dst, src)
		}

		// Apply bindings to every port sharing a bound variable.
		for _, n := range g.order {
			for _, name := range n.portOrder {
				t := n.ports[name]
				if t.Payload == ir.PayloadNone {
					if p, ok := bindings[t.PayloadVar]; ok {
						t.Payload = p
						changed = true
					}
				}
			}
		}

		if !changed {
			return
		}
	}
}

// materializeDefaults is normalizer sub-pass 2: every optional input with
// no incoming edge gets a synthesized upstream source - a constant block or
// the system time source. Synthesized ids are deterministic functions of
// (ownerBlockID, portID) so recompiles correlate for state and debugging.
// Idempotent: a port that already has any incoming edge is skipped, so the
// pass can run again after unit resolution.
func (g *normGraph) materializeDefaults(timeBlockType, constBlockType string) {
	hasIn := make(map[patch.PortRef]bool)
	for i := range g.edges {
		hasIn[g.edges[i].edge.To] = true
	}

	// Snapshot the order: appended synthesized blocks have no optional
	// inputs of their own worth defaulting this round.
	owners := append([]*blockNode(nil), g.order...)
	for _, n := range owners {
		for _, ps := range n.spec.Inputs {
			if !ps.Optional || ps.Default == nil {
				continue
			}
			target := patch.PortRef{Block: n.b.ID, Port: ps.Name}
			if hasIn[target] {
				continue
			}
			id := ir.DefaultSourceID(n.b.ID, ps.Name)
			if g.nodes[id] == nil {
				blockType := constBlockType
				params := map[string]any{"value": ps.Default.Value}
				if ps.Default.TimeSource {
					blockType = timeBlockType
					params = nil
				}
				g.addBlock(&patch.Block{ID: id, Type: blockType, Params: params})
			}
			source := g.nodes[id]
			if source == nil {
				continue
			}
			out := source.spec.Outputs[0].Name
			g.addEdge(patch.Edge{
				From: patch.PortRef{Block: id, Port: out},
				To:   target,
				Role: patch.RoleDefault,
			})
			hasIn[target] = true
		}
	}
}

// insertAdapters is normalizer sub-pass 3: for every edge whose resolved
// endpoint types are payload-compatible but differ in unit or contract,
// splice a registered pure conversion onto the edge. No silent coercion:
// a mismatch with no registered conversion is a diagnostic.
//
// Unit variables were already given the chance to unify across each edge by
// the solver; what reaches this pass unequal is concrete-vs-concrete.
func (g *normGraph) insertAdapters() []ir.AdapterNote {
	var notes []ir.AdapterNote

	existing := len(g.edges)
	for i := 0; i < existing; i++ {
		e := g.edges[i].edge
		if e.Role == patch.RoleAdapter {
			continue
		}
		src := g.portType(e.From, true)
		dst := g.portType(e.To, false)
		if src == nil || dst == nil || !src.Resolved() || !dst.Resolved() {
			continue // unresolved endpoints are reported by the final solver run
		}

		srcContract := g.portContract(e.From, true)
		dstContract := g.portContract(e.To, false)

		if src.Payload != dst.Payload {
			g.sink.add(Diagnostic{
				Code: DiagNoAdapter,
				Message: fmt.Sprintf("no conversion from %s to %s",
					src, dst),
				Edge: e.Key().String(),
			})
			continue
		}
		if src.Unit == dst.Unit && srcContract == dstContract {
			continue
		}

		adapter, ok := g.reg.FindAdapter(src.Payload, src.Unit, dst.Unit, srcContract, dstContract)
		if !ok {
			g.sink.add(Diagnostic{
				Code: DiagNoAdapter,
				Message: fmt.Sprintf("no conversion from %s to %s (contract %q -> %q)",
					src, dst, srcContract, dstContract),
				Edge: e.Key().String(),
			})
			continue
		}

		id := ir.AdapterID(e.Key(), adapter.Name)
		node := g.addBlock(&patch.Block{
			ID:     id,
			Type:   AdapterBlockType,
			Params: map[string]any{"conversion": adapter.Name},
		})
		if node == nil {
			continue
		}
		// Pin the adapter's port types to the edge's endpoint types; its
		// poly ports exist only to satisfy instantiation.
		*node.ports["in"] = *src
		*node.ports["out"] = *dst

		g.edges[i].edge = patch.Edge{
			From: e.From,
			To:   patch.PortRef{Block: id, Port: "in"},
			Role: patch.RoleAdapter, Combine: e.Combine,
		}
		g.addEdge(patch.Edge{
			From: patch.PortRef{Block: id, Port: "out"},
			To:   e.To,
			Role: patch.RoleAdapter, Combine: e.Combine,
		})
		notes = append(notes, ir.AdapterNote{
			Edge:    e.Key(),
			Adapter: adapter.Name,
			Block:   id,
		})
	}
	return notes
}

// checkSoundness verifies the type-soundness property after normalization:
// every edge's endpoint types are exactly equal. A violation here is a
// normalizer bug surfacing, not a user error, but it must never reach
// lowering silently.
func (g *normGraph) checkSoundness() {
	for i := range g.edges {
		e := g.edges[i].edge
		src := g.portType(e.From, true)
		dst := g.portType(e.To, false)
		if src == nil || dst == nil {
			continue
		}
		if !src.Resolved() || !dst.Resolved() {
			continue // already reported as unresolved variables
		}
		if src.Payload != dst.Payload || src.Unit != dst.Unit {
			g.sink.add(Diagnostic{
				Code:    DiagNoAdapter,
				Message: fmt.Sprintf("edge types unequal after normalization: %s vs %s", src, dst),
				Edge:    e.Key().String(),
			})
		}
	}
}

// denseIndex is normalizer sub-pass 4: assign stable integer indices to
// blocks and edges and build O(1) per-port edge lookups for the scheduling
// pass. Structure is frozen from here on; later passes only annotate.
func (g *normGraph) denseIndex() {
	g.inEdges = make(map[patch.PortRef][]int)
	g.outEdges = make(map[patch.PortRef][]int)
	for i, n := range g.order {
		n.index = i
	}
	for i := range g.edges {
		g.edges[i].index = i
		e := g.edges[i].edge
		g.inEdges[e.To] = append(g.inEdges[e.To], i)
		g.outEdges[e.From] = append(g.outEdges[e.From], i)
	}
}

// instance returns a declared instance domain.
func (g *normGraph) instance(id string) (ir.InstanceDecl, bool) {
	for _, decl := range g.instances {
		if decl.ID == id {
			return decl, true
		}
	}
	return ir.InstanceDecl{}, false
}
