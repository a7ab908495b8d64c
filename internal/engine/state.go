package engine

import (
	"github.com/motivelab/motive/internal/ir"
)

// stateReg is one persistent register. Signal registers hold stride-many
// components; field registers hold one row per element, addressed by the
// element's stable key so rows survive recompiles and domain resizes.
type stateReg struct {
	decl   ir.StateDecl
	signal []float64
	rows   map[string][]float64
}

func (r *stateReg) stride() int { return r.decl.Type.Payload.Stride() }

func (r *stateReg) isField() bool { return r.decl.Type.Extent.Card == ir.CardMany }

// initRow returns a fresh copy of the register's declared initial value.
func (r *stateReg) initRow() []float64 {
	row := make([]float64, r.stride())
	copy(row, r.decl.Init)
	return row
}

// stateTable owns every register across program generations. Registers are
// keyed by StateID, which the compiler derives from the owning block's
// stable id, so the same block keeps its state through a hot-swap.
type stateTable struct {
	regs map[ir.StateID]*stateReg
}

func newStateTable() *stateTable {
	return &stateTable{regs: make(map[ir.StateID]*stateReg)}
}

// adopt reconciles the table with a newly swapped-in program: registers the
// program declares are created if absent (initialized from their declared
// value), registers it no longer declares are dropped. Surviving registers
// keep their contents untouched.
func (t *stateTable) adopt(p *ir.Program) {
	live := make(map[ir.StateID]bool, len(p.States))
	for _, decl := range p.States {
		live[decl.ID] = true
		if existing, ok := t.regs[decl.ID]; ok {
			// A type change resets the register: old components are
			// meaningless under a different payload.
			if existing.decl.Type.Payload == decl.Type.Payload &&
				existing.decl.Type.Extent.Card == decl.Type.Extent.Card {
				existing.decl = decl
				continue
			}
		}
		reg := &stateReg{decl: decl}
		if decl.Type.Extent.Card == ir.CardMany {
			reg.rows = make(map[string][]float64)
		} else {
			reg.signal = reg.initRow()
		}
		t.regs[decl.ID] = reg
	}
	for id := range t.regs {
		if !live[id] {
			delete(t.regs, id)
		}
	}
}

// readSignal returns the register's previous-frame value.
func (t *stateTable) readSignal(id ir.StateID) ([]float64, bool) {
	reg, ok := t.regs[id]
	if !ok || reg.isField() {
		return nil, false
	}
	return reg.signal, true
}

// readField materializes the register as a dense count*stride buffer in
// roster order. Elements with no stored row read their initial value.
func (t *stateTable) readField(id ir.StateID, roster *domainRoster) ([]float64, bool) {
	reg, ok := t.regs[id]
	if !ok || !reg.isField() {
		return nil, false
	}
	stride := reg.stride()
	out := make([]float64, roster.count*stride)
	for e := 0; e < roster.count; e++ {
		row, ok := reg.rows[roster.keys[e]]
		if !ok {
			row = reg.initRow()
		}
		copy(out[e*stride:(e+1)*stride], row)
	}
	return out, true
}

// writeSignal persists this frame's value for the next frame.
func (t *stateTable) writeSignal(id ir.StateID, comps []float64) bool {
	reg, ok := t.regs[id]
	if !ok || reg.isField() {
		return false
	}
	copy(reg.signal, comps)
	return true
}

// writeField persists a dense buffer back into keyed rows.
func (t *stateTable) writeField(id ir.StateID, roster *domainRoster, data []float64) bool {
	reg, ok := t.regs[id]
	if !ok || !reg.isField() {
		return false
	}
	stride := reg.stride()
	for e := 0; e < roster.count; e++ {
		row := make([]float64, stride)
		copy(row, data[e*stride:(e+1)*stride])
		reg.rows[roster.keys[e]] = row
	}
	return true
}

// remapField rewrites a field register's rows after a hot-swap: newKeys[i]
// takes its row from oldKeys[mapping[i]] (a negative mapping entry means no
// match, which resets that element). Rows for keys no longer present are
// dropped.
func (t *stateTable) remapField(id ir.StateID, oldKeys, newKeys []string, mapping []int) {
	reg, ok := t.regs[id]
	if !ok || !reg.isField() {
		return
	}
	next := make(map[string][]float64, len(newKeys))
	for i, key := range newKeys {
		src := -1
		if i < len(mapping) {
			src = mapping[i]
		}
		if src >= 0 && src < len(oldKeys) {
			if row, ok := reg.rows[oldKeys[src]]; ok {
				next[key] = row
				continue
			}
		}
		next[key] = reg.initRow()
	}
	reg.rows = next
}

// fieldRegs returns the ids of field registers bound to one domain.
func (t *stateTable) fieldRegs(instance string) []ir.StateID {
	var ids []ir.StateID
	for id, reg := range t.regs {
		if reg.isField() && reg.decl.Type.Extent.Instance == instance {
			ids = append(ids, id)
		}
	}
	return ids
}
