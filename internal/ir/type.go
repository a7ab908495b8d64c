package ir

import "fmt"

// Payload is the structural value kind of a type. Every payload has a fixed
// stride: the number of contiguous scalar positions it occupies in a packed
// buffer. Stride MUST always be read via Stride() - duplicating the lookup
// anywhere else is a defect.
type Payload string

const (
	PayloadNone   Payload = "" // unresolved
	PayloadFloat  Payload = "float"
	PayloadInt    Payload = "int"
	PayloadBool   Payload = "bool"
	PayloadVec2   Payload = "vec2"
	PayloadVec3   Payload = "vec3"
	PayloadColor  Payload = "color"
	PayloadShape  Payload = "shape"
	PayloadCamera Payload = "cameraProjection"
)

// payloadStrides is the single source of truth for buffer layout. Every
// slot-allocation and buffer computation downstream reads from here.
var payloadStrides = map[Payload]int{
	PayloadFloat:  1,
	PayloadInt:    1,
	PayloadBool:   1,
	PayloadVec2:   2,
	PayloadVec3:   3,
	PayloadColor:  4,
	PayloadShape:  8,
	PayloadCamera: 16,
}

// Stride returns the number of scalar buffer positions the payload occupies.
// Panics on an unresolved payload: stride questions are only legal after
// type resolution.
func (p Payload) Stride() int {
	s, ok := payloadStrides[p]
	if !ok {
		panic(fmt.Sprintf("stride of unresolved or unknown payload %q", p))
	}
	return s
}

// Known reports whether p names a concrete payload.
func (p Payload) Known() bool {
	_, ok := payloadStrides[p]
	return ok
}

// Unit is the semantic interpretation of a payload's scalar components.
type Unit string

const (
	UnitNone         Unit = "" // unresolved
	UnitScalar       Unit = "scalar"
	UnitNormalized01 Unit = "normalized01"
	UnitPhase01      Unit = "phase01"
	UnitDegrees      Unit = "degrees"
	UnitRadians      Unit = "radians"
	UnitMilliseconds Unit = "milliseconds"
	UnitCount        Unit = "count"
	UnitIndex        Unit = "index"
	UnitFlag         Unit = "flag"
	UnitWorld2D      Unit = "world2d"
	UnitNormalized2D Unit = "normalized2d"
	UnitWorld3D      Unit = "world3d"
	UnitSRGB         Unit = "srgb"
	UnitGeometry     Unit = "geometry"
	UnitProjection   Unit = "projectionMatrix"
)

// unitsByPayload is the payload-scoped unit allow-list. Unit compatibility
// is only ever checked within a payload.
var unitsByPayload = map[Payload][]Unit{
	PayloadFloat:  {UnitScalar, UnitNormalized01, UnitPhase01, UnitDegrees, UnitRadians, UnitMilliseconds},
	PayloadInt:    {UnitCount, UnitIndex},
	PayloadBool:   {UnitFlag},
	PayloadVec2:   {UnitWorld2D, UnitNormalized2D},
	PayloadVec3:   {UnitWorld3D},
	PayloadColor:  {UnitSRGB},
	PayloadShape:  {UnitGeometry},
	PayloadCamera: {UnitProjection},
}

// UnitAllowed reports whether unit is in payload's allow-list.
func UnitAllowed(p Payload, u Unit) bool {
	for _, allowed := range unitsByPayload[p] {
		if allowed == u {
			return true
		}
	}
	return false
}

// DefaultUnit returns the first (canonical) unit for a payload. Used when a
// payload admits exactly one sensible interpretation (vec2, color, ...) and
// by adapter-boundary resolution for payloads with a single-entry list.
func DefaultUnit(p Payload) Unit {
	units := unitsByPayload[p]
	if len(units) == 0 {
		return UnitNone
	}
	return units[0]
}

// Cardinality distinguishes a single per-frame value (Signal) from a
// per-element array (Field) bound to an InstanceDecl.
type Cardinality string

const (
	CardOne  Cardinality = "one"
	CardMany Cardinality = "many"
)

// Temporality distinguishes continuous (every frame) values from discrete
// (event-triggered) ones.
type Temporality string

const (
	Continuous Temporality = "continuous"
	Discrete   Temporality = "discrete"
)

// Extent combines cardinality and temporality. Instance names the
// InstanceDecl a "many" value is indexed against and is empty for "one".
type Extent struct {
	Card     Cardinality `json:"card"`
	Instance string      `json:"instance,omitempty"`
	Temporal Temporality `json:"temporal"`
}

// Signal returns the extent of a continuous per-frame scalar value.
func Signal() Extent {
	return Extent{Card: CardOne, Temporal: Continuous}
}

// Field returns the extent of a continuous per-element value bound to the
// given InstanceDecl.
func Field(instance string) Extent {
	return Extent{Card: CardMany, Instance: instance, Temporal: Continuous}
}

// Event returns the extent of a discrete per-frame trigger.
func Event() Extent {
	return Extent{Card: CardOne, Temporal: Discrete}
}

// VarRef scopes a type or unit variable to one port of one block INSTANCE.
// The composite (Block, Port) key is load-bearing: two instances of the same
// block type carry distinct variables and may resolve to different concrete
// types. Never key a variable by block-type name alone.
type VarRef struct {
	Block string `json:"block"`
	Port  string `json:"port"`
}

// IsZero reports whether the reference is absent.
func (v VarRef) IsZero() bool { return v.Block == "" && v.Port == "" }

func (v VarRef) String() string { return v.Block + "." + v.Port }

// Type is the canonical type of every port and IR expression:
// payload x unit x extent. Payload and Unit are empty while their
// corresponding variable is unresolved; the VarRefs identify which
// per-instance variable stands in for the missing part.
type Type struct {
	Payload    Payload `json:"payload,omitempty"`
	PayloadVar VarRef  `json:"payloadVar,omitempty"`
	Unit       Unit    `json:"unit,omitempty"`
	UnitVar    VarRef  `json:"unitVar,omitempty"`
	Extent     Extent  `json:"extent"`
}

// Resolved reports whether both payload and unit are concrete. An IR
// expression may never carry an unresolved type past lowering.
func (t Type) Resolved() bool {
	return t.Payload != PayloadNone && t.Unit != UnitNone
}

// Compatible reports whether two resolved types may be connected without an
// adapter: exact payload and unit equality, and matching extents.
func Compatible(a, b Type) bool {
	if !a.Resolved() || !b.Resolved() {
		return false
	}
	return a.Payload == b.Payload && a.Unit == b.Unit && a.Extent == b.Extent
}

// Concrete builds a fully resolved type.
func Concrete(p Payload, u Unit, e Extent) Type {
	return Type{Payload: p, Unit: u, Extent: e}
}

func (t Type) String() string {
	payload := string(t.Payload)
	if payload == "" {
		payload = "?" + t.PayloadVar.String()
	}
	unit := string(t.Unit)
	if unit == "" {
		unit = "?" + t.UnitVar.String()
	}
	if t.Extent.Card == CardMany {
		return fmt.Sprintf("%s<%s>[%s]", payload, unit, t.Extent.Instance)
	}
	return fmt.Sprintf("%s<%s>", payload, unit)
}

// InstanceDecl declares a per-element domain that Fields are indexed
// against. Two fields may only be combined elementwise when they share one
// InstanceDecl.
type InstanceDecl struct {
	ID      string `json:"id"`
	Count   int    `json:"count"`             // fixed element count; ignored when Dynamic
	Dynamic bool   `json:"dynamic,omitempty"` // count provided by the host each frame
	Domain  string `json:"domain,omitempty"`  // domain-type tag, e.g. "list", "grid"
	Layout  string `json:"layout,omitempty"`  // layout hint for the renderer
}
