package engine

import (
	"sort"

	"github.com/motivelab/motive/internal/ir"
)

// ReadSignal samples a live signal slot by its stable debug key
// ("blockID.portID", or "in:blockID.portID" for a block input). Values are
// from the most recently completed frame.
func (e *Engine) ReadSignal(key string) ([]float64, bool) {
	slot, ok := e.debugSlot(key, ir.BankSignal)
	if !ok {
		return nil, false
	}
	return e.lastBanks.readSignal(slot), true
}

// ReadField samples a live field slot by its stable debug key, returning
// the dense element-major buffer and the element count.
func (e *Engine) ReadField(key string) ([]float64, int, bool) {
	slot, ok := e.debugSlot(key, ir.BankField)
	if !ok {
		return nil, 0, false
	}
	roster := e.rosters[slot.Instance]
	if roster == nil {
		return nil, 0, false
	}
	data := e.lastBanks.readField(slot, e.prog.FieldWidths[slot.Instance], roster.count)
	return data, roster.count, true
}

// DebugKeys lists every samplable key of the running program, sorted.
func (e *Engine) DebugKeys() []string {
	if e.prog == nil {
		return nil
	}
	keys := make([]string, 0, len(e.prog.DebugSlots))
	for k := range e.prog.DebugSlots {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (e *Engine) debugSlot(key string, bank ir.Bank) (ir.ValueSlot, bool) {
	if e.prog == nil || e.lastBanks == nil {
		return ir.ValueSlot{}, false
	}
	id, ok := e.prog.DebugSlots[key]
	if !ok {
		return ir.ValueSlot{}, false
	}
	slot := e.prog.Slot(id)
	if slot.Bank != bank {
		return ir.ValueSlot{}, false
	}
	return slot, true
}
