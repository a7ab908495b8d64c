package ir

import "fmt"

// ExprID indexes an expression within one Program. IDs are dense and
// assigned in lowering order, which makes them stable for a given patch.
type ExprID int

// NoExpr marks an absent expression reference.
const NoExpr ExprID = -1

// ExprKind enumerates the expression variants. Signal expressions evaluate
// to a single per-frame value, field expressions to a per-element buffer;
// the distinction is carried by Type.Extent.Card, not by the kind.
type ExprKind string

const (
	// ExprConst is a compile-time constant (packed components in Const).
	ExprConst ExprKind = "const"
	// ExprInput reads an external per-frame input (e.g. the frame time in
	// milliseconds) identified by Input.
	ExprInput ExprKind = "input"
	// ExprOp applies Op componentwise over signal arguments.
	ExprOp ExprKind = "op"
	// ExprKernel applies Op componentwise per element over field arguments.
	ExprKernel ExprKind = "kernel"
	// ExprIntrinsic is a per-element intrinsic (index, normalized index,
	// stable random seed). Only legal on fields; bound to Instance.
	ExprIntrinsic ExprKind = "intrinsic"
	// ExprStateRead reads the previous frame's value of a state register.
	ExprStateRead ExprKind = "stateRead"
	// ExprBroadcast replicates a signal argument across Instance's elements.
	ExprBroadcast ExprKind = "broadcast"
	// ExprReduce folds a field argument into a signal with Op.
	ExprReduce ExprKind = "reduce"
)

// Opcode is a pure componentwise operation shared by the signal (ExprOp) and
// field (ExprKernel) paths, and by reductions.
type Opcode string

const (
	OpAdd     Opcode = "add"
	OpSub     Opcode = "sub"
	OpMul     Opcode = "mul"
	OpDiv     Opcode = "div"
	OpMin     Opcode = "min"
	OpMax     Opcode = "max"
	OpNeg     Opcode = "neg"
	OpAbs     Opcode = "abs"
	OpSin     Opcode = "sin"
	OpCos     Opcode = "cos"
	OpFract   Opcode = "fract"
	OpClamp01 Opcode = "clamp01"
	OpMix     Opcode = "mix" // mix(a, b, t) = a + (b-a)*t
	OpLast    Opcode = "last"
	// OpPack concatenates its arguments' components into a wider payload
	// (floats into a vec2 or color). The only non-componentwise opcode.
	OpPack Opcode = "pack"
	OpScale   Opcode = "scale" // scale(x, k) = x*k, used by unit adapters
	OpOffset  Opcode = "offset"
)

// InputKind identifies an external per-frame input source.
type InputKind string

const (
	// InputTimeMS is the host-resolved effective frame time in milliseconds.
	InputTimeMS InputKind = "timeMS"
)

// IntrinsicKind enumerates per-element intrinsics.
type IntrinsicKind string

const (
	// IntrinsicIndex is the element's integer index within its domain.
	IntrinsicIndex IntrinsicKind = "index"
	// IntrinsicNormIndex is index/(count-1) in [0,1] (0 for a 1-element domain).
	IntrinsicNormIndex IntrinsicKind = "normIndex"
	// IntrinsicRandSeed is a stable per-element pseudo-random value in [0,1),
	// derived from the element's stable id so it survives recompiles.
	IntrinsicRandSeed IntrinsicKind = "randSeed"
)

// StateID names a persistent state register. Derived from the owning block's
// stable id so state correlates across recompiles.
type StateID string

// Expr is one node of the lowered program. Every expression carries its
// fully resolved canonical type; an unresolved type here is a compiler bug.
type Expr struct {
	ID        ExprID        `json:"id"`
	Kind      ExprKind      `json:"kind"`
	Type      Type          `json:"type"`
	Op        Opcode        `json:"op,omitempty"`
	Args      []ExprID      `json:"args,omitempty"`
	Const     []float64     `json:"const,omitempty"` // stride-many components
	Input     InputKind     `json:"input,omitempty"`
	Intrinsic IntrinsicKind `json:"intrinsic,omitempty"`
	Instance  string        `json:"instance,omitempty"` // intrinsic/broadcast binding
	State     StateID       `json:"state,omitempty"`
	// Debug is a stable human-readable origin tag ("blockID.portID") used
	// for the slot debug-read API and trace correlation.
	Debug string `json:"debug,omitempty"`
}

// IsField reports whether the expression produces a per-element buffer.
func (e *Expr) IsField() bool { return e.Type.Extent.Card == CardMany }

func (e *Expr) String() string {
	switch e.Kind {
	case ExprConst:
		return fmt.Sprintf("const%v:%s", e.Const, e.Type)
	case ExprOp, ExprKernel, ExprReduce:
		return fmt.Sprintf("%s(%s)%v:%s", e.Kind, e.Op, e.Args, e.Type)
	case ExprIntrinsic:
		return fmt.Sprintf("intrinsic(%s@%s):%s", e.Intrinsic, e.Instance, e.Type)
	case ExprStateRead:
		return fmt.Sprintf("stateRead(%s):%s", e.State, e.Type)
	default:
		return fmt.Sprintf("%s:%s", e.Kind, e.Type)
	}
}
