package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPayloadStride checks the intrinsic stride of every concrete payload.
func TestPayloadStride(t *testing.T) {
	strides := map[Payload]int{
		PayloadFloat:  1,
		PayloadInt:    1,
		PayloadBool:   1,
		PayloadVec2:   2,
		PayloadVec3:   3,
		PayloadColor:  4,
		PayloadShape:  8,
		PayloadCamera: 16,
	}
	for p, want := range strides {
		assert.Equal(t, want, p.Stride(), "stride of %s", p)
	}
}

// TestPayloadStride_UnresolvedPanics checks that asking an unresolved
// payload for its stride is a programming error, not a silent zero.
func TestPayloadStride_UnresolvedPanics(t *testing.T) {
	assert.Panics(t, func() { PayloadNone.Stride() })
	assert.Panics(t, func() { Payload("quaternion").Stride() })
}

// TestUnitAllowed checks the payload-scoped unit allow-lists.
func TestUnitAllowed(t *testing.T) {
	assert.True(t, UnitAllowed(PayloadFloat, UnitDegrees))
	assert.True(t, UnitAllowed(PayloadFloat, UnitNormalized01))
	assert.True(t, UnitAllowed(PayloadVec2, UnitWorld2D))
	assert.True(t, UnitAllowed(PayloadColor, UnitSRGB))

	// Units never leak across payloads.
	assert.False(t, UnitAllowed(PayloadVec2, UnitDegrees))
	assert.False(t, UnitAllowed(PayloadColor, UnitWorld2D))
	assert.False(t, UnitAllowed(PayloadFloat, UnitSRGB))
}

// TestCompatible_ExactEquality checks that compatibility requires exact
// payload and unit equality plus matching extents.
func TestCompatible_ExactEquality(t *testing.T) {
	a := Concrete(PayloadFloat, UnitRadians, Signal())
	assert.True(t, Compatible(a, a))

	assert.False(t, Compatible(a, Concrete(PayloadFloat, UnitDegrees, Signal())),
		"unit mismatch needs an adapter, not silent coercion")
	assert.False(t, Compatible(a, Concrete(PayloadInt, UnitCount, Signal())))
	assert.False(t, Compatible(a, Concrete(PayloadFloat, UnitRadians, Field("dots"))),
		"cardinality mismatch needs an explicit broadcast")
	assert.False(t, Compatible(a, Concrete(PayloadFloat, UnitRadians, Event())),
		"temporality must match")
}

// TestCompatible_UnresolvedNeverCompatible checks that an unresolved type
// is never silently treated as compatible.
func TestCompatible_UnresolvedNeverCompatible(t *testing.T) {
	unresolved := Type{
		UnitVar: VarRef{Block: "const1", Port: "out"},
		Payload: PayloadFloat,
		Extent:  Signal(),
	}
	assert.False(t, unresolved.Resolved())
	assert.False(t, Compatible(unresolved, unresolved))
}

// TestFieldExtent_CarriesInstance checks that field extents are bound to
// exactly one InstanceDecl.
func TestFieldExtent_CarriesInstance(t *testing.T) {
	f := Field("dots")
	assert.Equal(t, CardMany, f.Card)
	assert.Equal(t, "dots", f.Instance)
	assert.NotEqual(t, Field("dots"), Field("grid"),
		"fields over different domains are distinct extents")
}

// TestVarRef_ScopedPerInstance verifies that the composite (block, port)
// key keeps variables of distinct block instances distinct even when the
// instances share a block type.
func TestVarRef_ScopedPerInstance(t *testing.T) {
	a := VarRef{Block: "const1", Port: "out"}
	b := VarRef{Block: "const2", Port: "out"}
	require.NotEqual(t, a, b)
	assert.False(t, a.IsZero())
	assert.True(t, VarRef{}.IsZero())
}
