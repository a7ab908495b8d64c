package compiler

import (
	"github.com/motivelab/motive/internal/ir"
)

// varKind separates the payload and unit variable spaces: one port may have
// its payload resolved while its unit is still open.
type varKind int

const (
	payloadVar varKind = iota
	unitVar
)

// varKey identifies one type variable. The embedded VarRef carries the
// per-block-instance scope; see ir.VarRef.
type varKey struct {
	ref  ir.VarRef
	kind varKind
}

// solver is the union-find unifier for the polymorphic ports of one
// normalized graph. Constraints come from edges (variable side unifies with
// the other side) and from block-declared intra-block unit equalities.
// Concrete-vs-concrete mismatches are NOT this solver's business: they are
// left for the adapter pass, which either splices a registered conversion
// or reports the edge.
type solver struct {
	parent   map[varKey]varKey
	payloads map[varKey]ir.Payload // binding on class root
	units    map[varKey]ir.Unit   // binding on class root
	sink     *diagSink
}

func newSolver(sink *diagSink) *solver {
	return &solver{
		parent:   make(map[varKey]varKey),
		payloads: make(map[varKey]ir.Payload),
		units:    make(map[varKey]ir.Unit),
		sink:     sink,
	}
}

// find returns the class root with path compression.
func (s *solver) find(k varKey) varKey {
	p, ok := s.parent[k]
	if !ok {
		s.parent[k] = k
		return k
	}
	if p == k {
		return k
	}
	root := s.find(p)
	s.parent[k] = root
	return root
}

// union merges two classes, reconciling their bindings. A binding conflict
// is recorded once per union, tagged with the variable that lost.
func (s *solver) union(a, b varKey) {
	ra, rb := s.find(a), s.find(b)
	if ra == rb {
		return
	}
	s.parent[rb] = ra

	if pb, ok := s.payloads[rb]; ok {
		s.bindPayloadRoot(ra, pb, b.ref)
		delete(s.payloads, rb)
	}
	if ub, ok := s.units[rb]; ok {
		s.bindUnitRoot(ra, ub, b.ref)
		delete(s.units, rb)
	}
}

// bindPayload constrains a variable to a concrete payload.
func (s *solver) bindPayload(k varKey, p ir.Payload) {
	s.bindPayloadRoot(s.find(k), p, k.ref)
}

func (s *solver) bindPayloadRoot(root varKey, p ir.Payload, at ir.VarRef) {
	if existing, ok := s.payloads[root]; ok {
		if existing != p {
			s.sink.addf(DiagPayloadConflict, at.Block, at.Port,
				"payload variable forced to both %s and %s", existing, p)
		}
		return
	}
	s.payloads[root] = p
}

// bindUnit constrains a variable to a concrete unit.
func (s *solver) bindUnit(k varKey, u ir.Unit) {
	s.bindUnitRoot(s.find(k), u, k.ref)
}

func (s *solver) bindUnitRoot(root varKey, u ir.Unit, at ir.VarRef) {
	if existing, ok := s.units[root]; ok {
		if existing != u {
			s.sink.addf(DiagUnitConflict, at.Block, at.Port,
				"unit variable forced to both %s and %s", existing, u)
		}
		return
	}
	s.units[root] = u
}

// payloadOf returns the concrete payload a variable resolved to, if any.
func (s *solver) payloadOf(k varKey) (ir.Payload, bool) {
	p, ok := s.payloads[s.find(k)]
	return p, ok
}

// unitOf returns the concrete unit a variable resolved to, if any.
func (s *solver) unitOf(k varKey) (ir.Unit, bool) {
	u, ok := s.units[s.find(k)]
	return u, ok
}

// unifyEdge applies one edge's constraint to the port types at its two
// ends. Exactly the variable sides get bound; a fully concrete edge is left
// for the adapter pass.
func (s *solver) unifyEdge(src, dst *ir.Type) {
	// Payload dimension.
	switch {
	case src.Payload == ir.PayloadNone && dst.Payload == ir.PayloadNone:
		s.union(varKey{src.PayloadVar, payloadVar}, varKey{dst.PayloadVar, payloadVar})
	case src.Payload == ir.PayloadNone:
		s.bindPayload(varKey{src.PayloadVar, payloadVar}, dst.Payload)
	case dst.Payload == ir.PayloadNone:
		s.bindPayload(varKey{dst.PayloadVar, payloadVar}, src.Payload)
	}

	// Unit dimension.
	switch {
	case src.Unit == ir.UnitNone && dst.Unit == ir.UnitNone:
		s.union(varKey{src.UnitVar, unitVar}, varKey{dst.UnitVar, unitVar})
	case src.Unit == ir.UnitNone:
		s.bindUnit(varKey{src.UnitVar, unitVar}, dst.Unit)
	case dst.Unit == ir.UnitNone:
		s.bindUnit(varKey{dst.UnitVar, unitVar}, src.Unit)
	}
}

// solve runs unification over the normalized graph and applies the
// resulting substitution to every port type in place. Variables that end up
// without a binding are reported (never silently defaulted) unless they can
// still be resolved at an adapter boundary, which the caller's adapter pass
// handles before the final resolution check.
func (s *solver) solve(g *normGraph, final bool) {
	// Edge constraints.
	for i := range g.edges {
		e := &g.edges[i]
		src := g.portType(e.edge.From, true)
		dst := g.portType(e.edge.To, false)
		if src == nil || dst == nil {
			continue
		}
		s.unifyEdge(src, dst)
	}

	// Block-declared intra-block unit equalities.
	for _, n := range g.order {
		for _, c := range n.spec.UnitConstraints {
			a := ir.VarRef{Block: n.b.ID, Port: c.A}
			b := ir.VarRef{Block: n.b.ID, Port: c.B}
			s.union(varKey{a, unitVar}, varKey{b, unitVar})
		}
	}

	s.apply(g, final)
}

// apply writes bindings back into the port types. With final set, leftovers
// become diagnostics; without it, leftovers are permitted (an adapter pass
// or a re-run may still bind them).
func (s *solver) apply(g *normGraph, final bool) {
	reported := make(map[ir.VarRef]bool)
	for _, n := range g.order {
		for _, name := range n.portOrder {
			t := n.ports[name]
			if t.Payload == ir.PayloadNone {
				if p, ok := s.payloadOf(varKey{t.PayloadVar, payloadVar}); ok {
					t.Payload = p
				} else if final && !reported[t.PayloadVar] {
					reported[t.PayloadVar] = true
					s.sink.addf(DiagUnresolvedVar, t.PayloadVar.Block, t.PayloadVar.Port,
						"payload variable has no constraining edge")
				}
			}
			if t.Unit == ir.UnitNone {
				if u, ok := s.unitOf(varKey{t.UnitVar, unitVar}); ok {
					t.Unit = u
				} else if final && !reported[t.UnitVar] {
					reported[t.UnitVar] = true
					s.sink.addf(DiagUnresolvedVar, t.UnitVar.Block, t.UnitVar.Port,
						"unit variable has no constraining edge")
				}
			}
			if t.Payload.Known() && t.Unit != ir.UnitNone && !ir.UnitAllowed(t.Payload, t.Unit) {
				key := ir.VarRef{Block: n.b.ID, Port: name}
				if !reported[key] {
					reported[key] = true
					s.sink.addf(DiagUnitNotAllowed, n.b.ID, name,
						"unit %s is not valid for payload %s", t.Unit, t.Payload)
				}
			}
		}
	}
}
