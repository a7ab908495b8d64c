package ir

import (
	"fmt"
	"sort"
	"strings"
)

// SlotID indexes a ValueSlot within one Program.
type SlotID int

// NoSlot marks an absent slot reference.
const NoSlot SlotID = -1

// Bank identifies which storage bank a slot lives in. Offsets are unique
// per bank; field banks are additionally scoped per InstanceDecl.
type Bank string

const (
	// BankSignal holds one value per slot per frame.
	BankSignal Bank = "signal"
	// BankField holds one value per slot per element, interleaved: element
	// e's component c of a slot at offset o lives at e*width + o + c.
	BankField Bank = "field"
)

// ValueSlot is an allocated location in a flat runtime buffer. Offset
// reserves exactly Stride contiguous positions; allocators advance the
// running offset by Stride, never by 1, or multi-component slots corrupt
// their neighbors.
type ValueSlot struct {
	ID       SlotID  `json:"id"`
	Bank     Bank    `json:"bank"`
	Instance string  `json:"instance,omitempty"` // field bank scope
	Offset   int     `json:"offset"`
	Stride   int     `json:"stride"`
	Payload  Payload `json:"payload"`
	// DebugKey is a stable identifier ("blockID.portID") the debug layer
	// uses to sample this slot without knowing internal slot numbers.
	DebugKey string `json:"debugKey,omitempty"`
}

// StepKind enumerates scheduled runtime actions.
type StepKind string

const (
	// StepEvalSignal evaluates a signal expression into its slot.
	StepEvalSignal StepKind = "evalSignal"
	// StepMaterializeField fills a field slot's per-element buffer.
	StepMaterializeField StepKind = "materializeField"
	// StepStateWrite persists a computed value into a state register for
	// the next frame (the input-consuming half of a stateful primitive).
	StepStateWrite StepKind = "stateWrite"
	// StepContinuityBuild constructs the old->new element mapping for a
	// domain after a hot-swap.
	StepContinuityBuild StepKind = "continuityBuild"
	// StepContinuityApply blends persisted per-element state toward the
	// newly computed values.
	StepContinuityApply StepKind = "continuityApply"
	// StepRenderAssemble packages a render pass's instance buffers.
	StepRenderAssemble StepKind = "renderAssemble"
)

// Step is one scheduled runtime action. Which fields are meaningful depends
// on Kind.
type Step struct {
	Kind     StepKind `json:"kind"`
	Expr     ExprID   `json:"expr,omitempty"`     // eval/materialize: expression to run
	Slot     SlotID   `json:"slot,omitempty"`     // eval/materialize: output slot
	State    StateID  `json:"state,omitempty"`    // stateWrite: target register
	Src      ExprID   `json:"src,omitempty"`      // stateWrite: value source
	Instance string   `json:"instance,omitempty"` // continuity: domain
	Pass     int      `json:"pass,omitempty"`     // renderAssemble: index into Program.Passes
}

// StateDecl declares a persistent state register. Init holds stride-many
// components (per element for field-extent registers).
type StateDecl struct {
	ID   StateID   `json:"id"`
	Type Type      `json:"type"`
	Init []float64 `json:"init,omitempty"`
}

// RenderBuffer names one flat typed buffer of a render pass. The renderer
// must read the stride from Payload, never assume one.
type RenderBuffer struct {
	Name    string  `json:"name"`
	Slot    SlotID  `json:"slot"`
	Payload Payload `json:"payload"`
}

// RenderPassDecl describes one draw pass: an instance domain plus its
// typed buffers.
type RenderPassDecl struct {
	Instance string         `json:"instance"`
	Buffers  []RenderBuffer `json:"buffers"`
}

// AdapterNote records a synthesized adapter for the editor layer.
type AdapterNote struct {
	Edge    EdgeKey `json:"edge"`
	Adapter string  `json:"adapter"` // conversion name, e.g. "degreesToRadians"
	Block   string  `json:"block"`   // synthesized block id
}

// EdgeKey addresses an edge by its endpoints for diagnostics and metadata.
type EdgeKey struct {
	FromBlock string `json:"fromBlock"`
	FromPort  string `json:"fromPort"`
	ToBlock   string `json:"toBlock"`
	ToPort    string `json:"toPort"`
}

func (k EdgeKey) String() string {
	return fmt.Sprintf("%s.%s->%s.%s", k.FromBlock, k.FromPort, k.ToBlock, k.ToPort)
}

// Program is one compilation's output: lowered expressions, the ordered
// step schedule, and the slot layout. A Program is immutable once built;
// recompiles replace it wholesale, never mutate it in place.
type Program struct {
	// Token is a UUIDv7 identifying this compilation. Derived per-program
	// caches key on it so they are computed once per compile, not per frame.
	Token string `json:"token"`
	// PatchHash is the canonical hash of the source patch snapshot.
	PatchHash string `json:"patchHash"`

	Exprs []Expr      `json:"exprs"`
	Steps []Step      `json:"steps"`
	Slots []ValueSlot `json:"slots"`

	// SignalWidth is the total signal bank width; FieldWidths the per-
	// instance field bank widths (scalar positions per element).
	SignalWidth int            `json:"signalWidth"`
	FieldWidths map[string]int `json:"fieldWidths,omitempty"`

	Instances []InstanceDecl   `json:"instances,omitempty"`
	States    []StateDecl      `json:"states,omitempty"`
	Passes    []RenderPassDecl `json:"passes,omitempty"`

	// PortTypes maps "blockID.portID" to its resolved type, for the
	// editor's live type display. Synthesized blocks included.
	PortTypes map[string]Type `json:"portTypes,omitempty"`
	// Adapters lists synthesized conversions per edge.
	Adapters []AdapterNote `json:"adapters,omitempty"`
	// DebugSlots maps "blockID.portID" to the slot holding that port's
	// current value.
	DebugSlots map[string]SlotID `json:"debugSlots,omitempty"`
}

// Slot returns the slot record for id.
func (p *Program) Slot(id SlotID) ValueSlot { return p.Slots[id] }

// Expr returns the expression record for id.
func (p *Program) Expr(id ExprID) *Expr { return &p.Exprs[id] }

// Instance returns the declaration for an instance domain id.
func (p *Program) Instance(id string) (InstanceDecl, bool) {
	for _, decl := range p.Instances {
		if decl.ID == id {
			return decl, true
		}
	}
	return InstanceDecl{}, false
}

// State returns the declaration for a state register.
func (p *Program) State(id StateID) (StateDecl, bool) {
	for _, decl := range p.States {
		if decl.ID == id {
			return decl, true
		}
	}
	return StateDecl{}, false
}

// Dump renders a deterministic text form of the program for golden tests
// and the compile CLI command. The token is excluded (it differs per
// compilation); everything else is byte-stable for a given patch.
func (p *Program) Dump() string {
	var b strings.Builder
	fmt.Fprintf(&b, "patch %s\n", p.PatchHash)

	fmt.Fprintf(&b, "exprs %d\n", len(p.Exprs))
	for i := range p.Exprs {
		fmt.Fprintf(&b, "  e%-3d %s\n", i, p.Exprs[i].String())
	}

	fmt.Fprintf(&b, "slots %d (signal width %d)\n", len(p.Slots), p.SignalWidth)
	for _, s := range p.Slots {
		scope := string(s.Bank)
		if s.Instance != "" {
			scope += ":" + s.Instance
		}
		fmt.Fprintf(&b, "  s%-3d %-14s off=%-3d stride=%d %s %s\n",
			s.ID, scope, s.Offset, s.Stride, s.Payload, s.DebugKey)
	}

	fmt.Fprintf(&b, "steps %d\n", len(p.Steps))
	for i, st := range p.Steps {
		switch st.Kind {
		case StepEvalSignal, StepMaterializeField:
			fmt.Fprintf(&b, "  %-3d %s e%d -> s%d\n", i, st.Kind, st.Expr, st.Slot)
		case StepStateWrite:
			fmt.Fprintf(&b, "  %-3d %s e%d -> %s\n", i, st.Kind, st.Src, st.State)
		case StepContinuityBuild, StepContinuityApply:
			fmt.Fprintf(&b, "  %-3d %s %s\n", i, st.Kind, st.Instance)
		case StepRenderAssemble:
			fmt.Fprintf(&b, "  %-3d %s pass=%d\n", i, st.Kind, st.Pass)
		}
	}

	if len(p.PortTypes) > 0 {
		keys := make([]string, 0, len(p.PortTypes))
		for k := range p.PortTypes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintf(&b, "ports %d\n", len(keys))
		for _, k := range keys {
			fmt.Fprintf(&b, "  %-24s %s\n", k, p.PortTypes[k])
		}
	}
	return b.String()
}
