package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motivelab/motive/internal/ir"
)

func TestApplyOpComponentwise(t *testing.T) {
	a := []float64{1, 2}
	b := []float64{10, 20}

	assert.Equal(t, []float64{11, 22}, applyOp(ir.OpAdd, 2, [][]float64{a, b}))
	assert.Equal(t, []float64{-9, -18}, applyOp(ir.OpSub, 2, [][]float64{a, b}))
	assert.Equal(t, []float64{10, 40}, applyOp(ir.OpMul, 2, [][]float64{a, b}))
	assert.Equal(t, []float64{1, 2}, applyOp(ir.OpMin, 2, [][]float64{a, b}))
	assert.Equal(t, []float64{10, 20}, applyOp(ir.OpMax, 2, [][]float64{a, b}))
	assert.Equal(t, []float64{-1, -2}, applyOp(ir.OpNeg, 2, [][]float64{a}))
}

func TestApplyOpBroadcastsNarrowArgs(t *testing.T) {
	// A scalar mix factor against vec2 endpoints.
	a := []float64{0, 0}
	b := []float64{10, 20}
	tt := []float64{0.5}

	assert.Equal(t, []float64{5, 10}, applyOp(ir.OpMix, 2, [][]float64{a, b, tt}))
}

func TestApplyOpPackConcatenates(t *testing.T) {
	got := applyOp(ir.OpPack, 2, [][]float64{{3}, {7}})
	assert.Equal(t, []float64{3, 7}, got)
}

func TestApplyOpFractAndClamp(t *testing.T) {
	assert.InDelta(t, 0.25, applyOp(ir.OpFract, 1, [][]float64{{3.25}})[0], 1e-12)
	assert.InDelta(t, 0.75, applyOp(ir.OpFract, 1, [][]float64{{-0.25}})[0], 1e-12)
	assert.Equal(t, 1.0, applyOp(ir.OpClamp01, 1, [][]float64{{3.5}})[0])
	assert.Equal(t, 0.0, applyOp(ir.OpClamp01, 1, [][]float64{{-1}})[0])
}

func TestApplyOpUnknownOpcodeYieldsNaN(t *testing.T) {
	got := applyOp(ir.Opcode("bogus"), 1, [][]float64{{1}})
	assert.True(t, math.IsNaN(got[0]))
}

func TestReduceField(t *testing.T) {
	data := []float64{1, 2, 3, 4} // 4 elements, stride 1

	assert.Equal(t, []float64{10}, reduceField(ir.OpAdd, 1, data))
	assert.Equal(t, []float64{4}, reduceField(ir.OpMax, 1, data))
	assert.Equal(t, []float64{1}, reduceField(ir.OpMin, 1, data))
	assert.Equal(t, []float64{0}, reduceField(ir.OpAdd, 1, nil), "empty domain reduces to zero")
}

func TestSeedFromKeyRange(t *testing.T) {
	keys := []string{
		ir.ElementKey("dots", 0),
		ir.ElementKey("dots", 1),
		ir.ElementKey("dots", 2),
		ir.ElementKey("grid", 0),
	}
	seen := make(map[float64]bool)
	for _, k := range keys {
		s := seedFromKey(k)
		assert.GreaterOrEqual(t, s, 0.0)
		assert.Less(t, s, 1.0)
		seen[s] = true
	}
	assert.Len(t, seen, len(keys), "seeds should be distinct per element")

	// Same key, same seed: the whole point of stable identity.
	assert.Equal(t, seedFromKey(ir.ElementKey("dots", 1)), seedFromKey(ir.ElementKey("dots", 1)))
}

func TestSanitizeClampsAndDeduplicates(t *testing.T) {
	diags := newDiagnostics()
	c := &evalCtx{diags: diags, frame: 7}

	got := c.sanitize([]float64{math.NaN(), math.Inf(1), math.Inf(-1), 1.5}, 3, "osc.out")
	assert.Equal(t, []float64{0, math.MaxFloat64, -math.MaxFloat64, 1.5}, got)

	// Three bad components in one expression collapse to one fault record
	// with a bumped count.
	all := diags.all()
	require.Len(t, all, 1)
	assert.Equal(t, ErrCodeNonFinite, all[0].Code)
	assert.Equal(t, 3, all[0].Count)
	assert.Equal(t, int64(7), all[0].Frame)
	assert.Equal(t, "osc.out", all[0].Key)
}

func TestFrameClockMonotonic(t *testing.T) {
	var c frameClock

	f, tm := c.resolve(100)
	assert.Equal(t, int64(1), f)
	assert.Equal(t, 100.0, tm)

	// Host time regresses; effective time holds.
	f, tm = c.resolve(40)
	assert.Equal(t, int64(2), f)
	assert.Equal(t, 100.0, tm)

	_, tm = c.resolve(160)
	assert.Equal(t, 160.0, tm)
}
