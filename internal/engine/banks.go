package engine

import (
	"github.com/motivelab/motive/internal/ir"
)

// domainRoster is the runtime view of one instance domain: its current
// element count and the stable identity of each element. Stable keys drive
// state addressing and continuity matching; when the host provides no ids
// the element index doubles as its id.
type domainRoster struct {
	decl      ir.InstanceDecl
	count     int
	stableIDs []int
	keys      []string // ir.ElementKey per element, cached
}

func newRoster(decl ir.InstanceDecl) *domainRoster {
	r := &domainRoster{decl: decl}
	r.resize(decl.Count, nil)
	return r
}

// resize updates the roster to count elements with the given stable ids
// (nil means identity ids 0..count-1). Element keys are recomputed lazily
// only for changed entries.
func (r *domainRoster) resize(count int, stableIDs []int) {
	if count < 0 {
		count = 0
	}
	r.count = count
	r.stableIDs = make([]int, count)
	r.keys = make([]string, count)
	for i := 0; i < count; i++ {
		id := i
		if i < len(stableIDs) {
			id = stableIDs[i]
		}
		r.stableIDs[i] = id
		r.keys[i] = ir.ElementKey(r.decl.ID, id)
	}
}

// banks is the per-frame value storage: one flat signal row plus one flat
// interleaved buffer per instance domain. Component c of the slot at offset
// o for element e lives at e*width + o + c.
type banks struct {
	signal []float64
	fields map[string][]float64
}

// newBanks allocates storage for a program against the current rosters.
func newBanks(p *ir.Program, rosters map[string]*domainRoster) *banks {
	b := &banks{
		signal: make([]float64, p.SignalWidth),
		fields: make(map[string][]float64, len(p.FieldWidths)),
	}
	for inst, width := range p.FieldWidths {
		count := 0
		if r, ok := rosters[inst]; ok {
			count = r.count
		}
		b.fields[inst] = make([]float64, width*count)
	}
	return b
}

// writeSignal stores a signal slot's components.
func (b *banks) writeSignal(slot ir.ValueSlot, comps []float64) {
	copy(b.signal[slot.Offset:slot.Offset+slot.Stride], comps)
}

// readSignal returns a copy of a signal slot's components.
func (b *banks) readSignal(slot ir.ValueSlot) []float64 {
	out := make([]float64, slot.Stride)
	copy(out, b.signal[slot.Offset:slot.Offset+slot.Stride])
	return out
}

// writeField stores a field slot's dense per-element buffer (count*stride
// values, element-major).
func (b *banks) writeField(slot ir.ValueSlot, width int, data []float64) {
	buf := b.fields[slot.Instance]
	stride := slot.Stride
	count := len(data) / stride
	for e := 0; e < count; e++ {
		base := e*width + slot.Offset
		copy(buf[base:base+stride], data[e*stride:(e+1)*stride])
	}
}

// readField extracts a field slot's dense per-element buffer.
func (b *banks) readField(slot ir.ValueSlot, width, count int) []float64 {
	buf := b.fields[slot.Instance]
	stride := slot.Stride
	out := make([]float64, count*stride)
	for e := 0; e < count; e++ {
		base := e*width + slot.Offset
		copy(out[e*stride:(e+1)*stride], buf[base:base+stride])
	}
	return out
}
