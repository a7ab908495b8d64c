package compiler

import (
	"fmt"

	"github.com/motivelab/motive/internal/ir"
)

// PortSpec declares one port of a block type. Ports with PolyPayload or
// PolyUnit get a fresh per-instance type variable at instantiation, scoped
// by the composite (blockInstanceID, Group) key. Ports sharing a Group
// within one block share the variable ("a", "b" and "out" of an arithmetic
// block resolve together); the variable is never shared across instances.
type PortSpec struct {
	Name string
	// Group names the intra-block variable group. Empty means the port has
	// its own group (the port name).
	Group string
	// Type carries the concrete parts of the port's type. Payload/Unit are
	// ignored where the corresponding Poly flag is set.
	Type        ir.Type
	PolyPayload bool
	PolyUnit    bool
	// PolyCard marks cardinality-polymorphic ports: lowering dispatches
	// them to the signal or field path depending on the connected inputs.
	PolyCard bool
	// Optional inputs with no incoming edge get a synthesized default
	// source. Non-optional inputs with no edge are a lowering error.
	Optional bool
	Default  *DefaultSpec
	// Contract declares a value contract beyond the unit, e.g. "clamped01".
	// A contract mismatch on an edge is bridged by a registered adapter.
	Contract string
}

func (p PortSpec) group() string {
	if p.Group != "" {
		return p.Group
	}
	return p.Name
}

// DefaultSpec describes the synthesized source for an unconnected optional
// input: either a constant value or the system time source.
type DefaultSpec struct {
	Value      float64
	TimeSource bool
}

// UnitEquality is a block-declared intra-block constraint: the unit
// variables of two port groups must unify.
type UnitEquality struct {
	A, B string // group names
}

// Outputs maps output port names to their lowered expressions.
type Outputs map[string]ir.ExprID

// LowerFunc lowers one block instance: resolved input references are read
// from the context, emitted expressions go through the context's builder.
type LowerFunc func(ctx *LowerCtx) (Outputs, error)

// BlockSpec declares a block type: its ports, intra-block constraints and
// lowering behavior. Stateful blocks provide the two lowering halves used
// to break feedback cycles instead of Lower.
type BlockSpec struct {
	Type    string
	Inputs  []PortSpec
	Outputs []PortSpec
	// UnitConstraints beyond what shared groups already imply.
	UnitConstraints []UnitEquality

	// FieldOnly blocks require per-element identity and reject signal-only
	// instantiation (e.g. a block reading "this element's index").
	FieldOnly bool

	// Lower is the single-pass lowering for stateless blocks.
	Lower LowerFunc

	// Stateful blocks define current-frame output in terms of previous-
	// frame state. LowerStateRead emits the output-only half (no inputs
	// needed); LowerStateWrite consumes inputs and registers the next-frame
	// state write. Both must be set when Stateful is true.
	Stateful        bool
	LowerStateRead  LowerFunc
	LowerStateWrite func(ctx *LowerCtx) error
}

func (s *BlockSpec) input(name string) *PortSpec {
	for i := range s.Inputs {
		if s.Inputs[i].Name == name {
			return &s.Inputs[i]
		}
	}
	return nil
}

// AdapterSpec is a registered pure conversion the normalizer may splice
// onto a payload-compatible edge whose units or contracts differ. Lowering
// is Op applied to the input, with operand K for scale/offset.
type AdapterSpec struct {
	Name     string
	Payload  ir.Payload
	FromUnit ir.Unit
	ToUnit   ir.Unit
	// FromContract/ToContract bridge contract mismatches on unit-equal
	// edges ("" -> "clamped01" via a clamp).
	FromContract string
	ToContract   string
	Op           ir.Opcode
	K            float64
}

// Registry holds the block-type catalog and the adapter conversions.
// Implements patch.Catalog for structural validation.
type Registry struct {
	types    map[string]*BlockSpec
	adapters []AdapterSpec
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*BlockSpec)}
}

// Register adds a block type. Registering a duplicate or a malformed spec
// is a programming error.
func (r *Registry) Register(spec *BlockSpec) error {
	if spec.Type == "" {
		return fmt.Errorf("register: block spec without a type name")
	}
	if _, exists := r.types[spec.Type]; exists {
		return fmt.Errorf("register: block type %q already registered", spec.Type)
	}
	if spec.Stateful {
		if spec.LowerStateRead == nil || spec.LowerStateWrite == nil {
			return fmt.Errorf("register: stateful block %q needs both lowering halves", spec.Type)
		}
	} else if spec.Lower == nil {
		return fmt.Errorf("register: block %q has no lowering", spec.Type)
	}
	r.types[spec.Type] = spec
	return nil
}

// MustRegister is Register for init-time catalogs.
func (r *Registry) MustRegister(spec *BlockSpec) {
	if err := r.Register(spec); err != nil {
		panic(err)
	}
}

// Lookup returns the spec for a block type.
func (r *Registry) Lookup(blockType string) (*BlockSpec, bool) {
	s, ok := r.types[blockType]
	return s, ok
}

// Ports implements patch.Catalog.
func (r *Registry) Ports(blockType string) (inputs, outputs []string, ok bool) {
	spec, found := r.types[blockType]
	if !found {
		return nil, nil, false
	}
	for _, p := range spec.Inputs {
		inputs = append(inputs, p.Name)
	}
	for _, p := range spec.Outputs {
		outputs = append(outputs, p.Name)
	}
	return inputs, outputs, true
}

// RegisterAdapter adds a pure conversion.
func (r *Registry) RegisterAdapter(spec AdapterSpec) {
	r.adapters = append(r.adapters, spec)
}

// FindAdapter looks up a conversion for a payload-compatible mismatch.
// Unit conversions take precedence over contract conversions.
func (r *Registry) FindAdapter(p ir.Payload, fromUnit, toUnit ir.Unit, fromContract, toContract string) (AdapterSpec, bool) {
	for _, a := range r.adapters {
		if a.Payload != p {
			continue
		}
		if fromUnit != toUnit {
			if a.FromUnit == fromUnit && a.ToUnit == toUnit {
				return a, true
			}
			continue
		}
		if a.FromUnit == fromUnit && a.ToUnit == toUnit &&
			a.FromContract == fromContract && a.ToContract == toContract {
			return a, true
		}
	}
	return AdapterSpec{}, false
}
