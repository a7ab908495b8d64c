package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanema/gween/ease"

	"github.com/motivelab/motive/internal/ir"
)

func instantPolicy() ContinuityPolicy {
	return ContinuityPolicy{WindowMS: 0, Ease: ease.Linear, SearchRadius: 1}
}

func TestContinuityGrowthPreservesStableIDs(t *testing.T) {
	states := newStateTable()
	states.adopt(progWithStates(fieldDecl("state$acc", "dots", 0)))
	diags := newDiagnostics()
	ct := newContinuityTable(instantPolicy())

	roster := newRoster(ir.InstanceDecl{ID: "dots", Count: 3})
	ct.build("dots", roster, states, nil, diags, 1)
	states.writeField("state$acc", roster, []float64{10, 20, 30})
	ct.apply("dots", roster, nil, 16)

	// Grow to 5: ids 0..2 keep their state, 3..4 get defaults.
	roster.resize(5, nil)
	ct.build("dots", roster, states, nil, diags, 2)
	v, ok := states.readField("state$acc", roster)
	require.True(t, ok)
	assert.Equal(t, []float64{10, 20, 30, 0, 0}, v)

	// Shrink to 2: retained ids keep state, the rest is pruned for good.
	ct.apply("dots", roster, nil, 16)
	roster.resize(2, nil)
	ct.build("dots", roster, states, nil, diags, 3)
	v, _ = states.readField("state$acc", roster)
	assert.Equal(t, []float64{10, 20}, v)

	roster.resize(5, nil)
	ct.build("dots", roster, states, nil, diags, 4)
	v, _ = states.readField("state$acc", roster)
	assert.Equal(t, []float64{10, 20, 0, 0, 0}, v, "pruned rows must not resurrect")
}

func TestContinuityPositionalRescue(t *testing.T) {
	states := newStateTable()
	states.adopt(progWithStates(fieldDecl("state$acc", "dots", 0)))
	diags := newDiagnostics()
	ct := newContinuityTable(instantPolicy())

	roster := newRoster(ir.InstanceDecl{ID: "dots", Count: 2})
	ct.build("dots", roster, states, nil, diags, 1)
	states.writeField("state$acc", roster, []float64{111, 222})

	// Record last-known positions via the position render buffer.
	ct.apply("dots", roster, map[string][]float64{
		"position": {0, 0, 5, 5},
	}, 16)

	// New identity scheme: ids change entirely, so no stable-id match.
	// Element 0 reappears near (5,5) and should inherit old element 1.
	roster.resize(2, []int{100, 101})
	newPositions := [][]float64{{5.1, 5.0}, {40, 40}}
	ct.build("dots", roster, states, newPositions, diags, 2)

	v, ok := states.readField("state$acc", roster)
	require.True(t, ok)
	assert.Equal(t, []float64{222, 0}, v)

	// The out-of-radius element was reset and reported, once.
	all := diags.all()
	require.Len(t, all, 1)
	assert.Equal(t, ErrCodeContinuityMiss, all[0].Code)
	assert.Equal(t, "dots", all[0].Key)
}

func TestContinuityCrossfadeBlends(t *testing.T) {
	diags := newDiagnostics()
	states := newStateTable()
	states.adopt(progWithStates())
	ct := newContinuityTable(ContinuityPolicy{WindowMS: 100, Ease: ease.Linear, SearchRadius: 1})

	roster := newRoster(ir.InstanceDecl{ID: "dots", Count: 1})
	ct.build("dots", roster, states, nil, diags, 1)
	ct.apply("dots", roster, map[string][]float64{"position": {0, 0}}, 0)

	// A count change arms the fade.
	roster.resize(2, nil)
	ct.build("dots", roster, states, nil, diags, 2)

	// Halfway through the window, element 0 is halfway between its last
	// drawn position and the newly computed one.
	buffers := map[string][]float64{"position": {10, 10, 3, 3}}
	ct.apply("dots", roster, buffers, 50)
	assert.InDelta(t, 5.0, buffers["position"][0], 1e-9)
	assert.InDelta(t, 5.0, buffers["position"][1], 1e-9)

	// Past the window the computed value passes through untouched.
	buffers = map[string][]float64{"position": {10, 10, 3, 3}}
	ct.apply("dots", roster, buffers, 60)
	assert.Equal(t, 10.0, buffers["position"][0])
}

func TestContinuityPruneDropsStaleDomains(t *testing.T) {
	ct := newContinuityTable(instantPolicy())
	ct.domain("dots")
	ct.domain("grid")

	ct.prune(map[string]*domainRoster{
		"grid": newRoster(ir.InstanceDecl{ID: "grid", Count: 1}),
	})
	_, hasDots := ct.domains["dots"]
	_, hasGrid := ct.domains["grid"]
	assert.False(t, hasDots)
	assert.True(t, hasGrid)
}
