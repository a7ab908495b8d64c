package blocks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motivelab/motive/internal/ir"
)

func TestCatalogRegistersBuiltins(t *testing.T) {
	r := Catalog()

	for _, name := range []string{
		"Const", "Time", "Phasor",
		"Add", "Sub", "Multiply", "Min", "Max", "Negate", "Abs",
		"Sin", "Cos", "Clamp01", "Mix", "Scale",
		"UnitDelay", "Accumulate",
		"ElementIndex", "NormalizedIndex", "RandomSeed", "Spread",
		"SumReduce", "MaxReduce", "Vec2", "ColorRGBA",
		"RenderPoints",
	} {
		_, ok := r.Lookup(name)
		assert.True(t, ok, "missing block %q", name)
	}
}

func TestStatefulBlocksDeclareBothHalves(t *testing.T) {
	r := Catalog()
	for _, name := range []string{"UnitDelay", "Accumulate"} {
		spec, ok := r.Lookup(name)
		require.True(t, ok)
		assert.True(t, spec.Stateful, "%s must be stateful", name)
		assert.NotNil(t, spec.LowerStateRead, "%s read half", name)
		assert.NotNil(t, spec.LowerStateWrite, "%s write half", name)
		assert.Nil(t, spec.Lower, "%s must not carry a single-phase lowering", name)
	}
}

func TestFieldOnlyBlocks(t *testing.T) {
	r := Catalog()
	for _, name := range []string{"ElementIndex", "NormalizedIndex", "RandomSeed", "Spread", "RenderPoints"} {
		spec, ok := r.Lookup(name)
		require.True(t, ok)
		assert.True(t, spec.FieldOnly, "%s", name)
	}
}

func TestAngleAdaptersRegistered(t *testing.T) {
	r := Catalog()

	a, ok := r.FindAdapter(ir.PayloadFloat, ir.UnitDegrees, ir.UnitRadians, "", "")
	require.True(t, ok)
	assert.Equal(t, "degreesToRadians", a.Name)

	a, ok = r.FindAdapter(ir.PayloadFloat, ir.UnitPhase01, ir.UnitRadians, "", "")
	require.True(t, ok)
	assert.Equal(t, "phase01ToRadians", a.Name)

	a, ok = r.FindAdapter(ir.PayloadFloat, ir.UnitMilliseconds, ir.UnitScalar, "", "")
	require.True(t, ok)
	assert.Equal(t, "msToSeconds", a.Name)

	_, ok = r.FindAdapter(ir.PayloadFloat, ir.UnitDegrees, ir.UnitMilliseconds, "", "")
	assert.False(t, ok, "no conversion between angles and time")
}

func TestClampAdapterEstablishesContract(t *testing.T) {
	r := Catalog()
	a, ok := r.FindAdapter(ir.PayloadFloat, ir.UnitNormalized01, ir.UnitNormalized01, "", "clamped01")
	require.True(t, ok)
	assert.Equal(t, ir.OpClamp01, a.Op)
}
