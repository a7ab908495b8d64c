package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motivelab/motive/internal/ir"
)

func signalDecl(id string, init float64) ir.StateDecl {
	return ir.StateDecl{
		ID:   ir.StateID(id),
		Type: ir.Concrete(ir.PayloadFloat, ir.UnitScalar, ir.Signal()),
		Init: []float64{init},
	}
}

func fieldDecl(id, instance string, init float64) ir.StateDecl {
	return ir.StateDecl{
		ID:   ir.StateID(id),
		Type: ir.Concrete(ir.PayloadFloat, ir.UnitScalar, ir.Field(instance)),
		Init: []float64{init},
	}
}

func progWithStates(decls ...ir.StateDecl) *ir.Program {
	return &ir.Program{States: decls}
}

func TestStateTableAdoptCreatesAndPrunes(t *testing.T) {
	st := newStateTable()
	st.adopt(progWithStates(signalDecl("state$a", 5)))

	v, ok := st.readSignal("state$a")
	require.True(t, ok)
	assert.Equal(t, []float64{5}, v)

	// A new program without the register drops it; a fresh adopt
	// re-initializes rather than resurrecting old contents.
	st.writeSignal("state$a", []float64{99})
	st.adopt(progWithStates())
	_, ok = st.readSignal("state$a")
	assert.False(t, ok)

	st.adopt(progWithStates(signalDecl("state$a", 5)))
	v, _ = st.readSignal("state$a")
	assert.Equal(t, []float64{5}, v)
}

func TestStateTableSurvivesAdoptOfSameRegister(t *testing.T) {
	st := newStateTable()
	st.adopt(progWithStates(signalDecl("state$a", 0)))
	st.writeSignal("state$a", []float64{42})

	st.adopt(progWithStates(signalDecl("state$a", 0)))
	v, _ := st.readSignal("state$a")
	assert.Equal(t, []float64{42}, v, "hot-swap must not reset surviving registers")
}

func TestStateTablePayloadChangeResets(t *testing.T) {
	st := newStateTable()
	st.adopt(progWithStates(signalDecl("state$a", 0)))
	st.writeSignal("state$a", []float64{42})

	vec := ir.StateDecl{
		ID:   "state$a",
		Type: ir.Concrete(ir.PayloadVec2, ir.UnitWorld2D, ir.Signal()),
		Init: []float64{1, 2},
	}
	st.adopt(progWithStates(vec))
	v, ok := st.readSignal("state$a")
	require.True(t, ok)
	assert.Equal(t, []float64{1, 2}, v)
}

func TestStateTableFieldRowsKeyedByElement(t *testing.T) {
	st := newStateTable()
	st.adopt(progWithStates(fieldDecl("state$acc", "dots", 0)))

	roster := newRoster(ir.InstanceDecl{ID: "dots", Count: 3})
	ok := st.writeField("state$acc", roster, []float64{10, 20, 30})
	require.True(t, ok)

	// Growing the domain keeps rows for surviving ids and initializes the
	// new element.
	roster.resize(4, nil)
	v, ok := st.readField("state$acc", roster)
	require.True(t, ok)
	assert.Equal(t, []float64{10, 20, 30, 0}, v)

	// Shrinking reads only the retained rows.
	roster.resize(2, nil)
	v, _ = st.readField("state$acc", roster)
	assert.Equal(t, []float64{10, 20}, v)
}

func TestStateTableRemapField(t *testing.T) {
	st := newStateTable()
	st.adopt(progWithStates(fieldDecl("state$acc", "dots", -1)))

	old := newRoster(ir.InstanceDecl{ID: "dots", Count: 3})
	st.writeField("state$acc", old, []float64{10, 20, 30})

	// New roster with shifted identity: element 0 takes old element 2's
	// state, element 1 has no source.
	next := newRoster(ir.InstanceDecl{ID: "dots", Count: 2})
	next.resize(2, []int{7, 8})
	st.remapField("state$acc", old.keys, next.keys, []int{2, -1})

	v, ok := st.readField("state$acc", next)
	require.True(t, ok)
	assert.Equal(t, []float64{30, -1}, v)

	// Old rows are gone: reading through the old roster yields defaults.
	v, _ = st.readField("state$acc", old)
	assert.Equal(t, []float64{-1, -1, -1}, v)
}
