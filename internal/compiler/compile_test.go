package compiler_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motivelab/motive/internal/blocks"
	"github.com/motivelab/motive/internal/compiler"
	"github.com/motivelab/motive/internal/ir"
	"github.com/motivelab/motive/internal/patch"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ref(block, port string) patch.PortRef {
	return patch.PortRef{Block: block, Port: port}
}

func compileErr(t *testing.T, p *patch.Patch) *compiler.CompileError {
	t.Helper()
	_, err := compiler.Compile(blocks.Catalog(), p, testLogger())
	require.Error(t, err)
	var ce *compiler.CompileError
	require.ErrorAs(t, err, &ce)
	return ce
}

func codes(ce *compiler.CompileError) []compiler.DiagCode {
	out := make([]compiler.DiagCode, len(ce.Diags))
	for i, d := range ce.Diags {
		out[i] = d.Code
	}
	return out
}

func TestCompileOscillator(t *testing.T) {
	p := &patch.Patch{}
	p.AddBlock(&patch.Block{ID: "phase", Type: "Phasor"})
	p.AddBlock(&patch.Block{ID: "osc", Type: "Sin"})
	p.AddEdge(ref("phase", "out"), ref("osc", "in"), patch.CombineLast)

	prog, err := compiler.Compile(blocks.Catalog(), p, testLogger())
	require.NoError(t, err)

	assert.NotEmpty(t, prog.Token)
	assert.NotEmpty(t, prog.PatchHash)
	assert.NotEmpty(t, prog.Exprs)
	assert.NotEmpty(t, prog.Steps)

	// Every published port resolved to a concrete type.
	assert.Equal(t, "float<radians>", prog.PortTypes["osc.in"].String())
	assert.Equal(t, "float<scalar>", prog.PortTypes["osc.out"].String())

	// Debug slots address both the output and the adapted input side.
	assert.Contains(t, prog.DebugSlots, "osc.out")
	assert.Contains(t, prog.DebugSlots, "in:osc.in")
}

func TestConstUnitInferredPerInstance(t *testing.T) {
	// Two Const instances bind to different unit classes; per-instance type
	// variables keep them independent.
	p := &patch.Patch{}
	p.AddBlock(&patch.Block{ID: "angle", Type: "Const", Params: map[string]any{"value": 1.5}})
	p.AddBlock(&patch.Block{ID: "rate", Type: "Const", Params: map[string]any{"value": 2.0}})
	p.AddBlock(&patch.Block{ID: "osc", Type: "Sin"})
	p.AddBlock(&patch.Block{ID: "phase", Type: "Phasor"})
	p.AddEdge(ref("angle", "out"), ref("osc", "in"), patch.CombineLast)
	p.AddEdge(ref("rate", "out"), ref("phase", "freq"), patch.CombineLast)

	prog, err := compiler.Compile(blocks.Catalog(), p, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "float<radians>", prog.PortTypes["angle.out"].String())
	assert.Equal(t, "float<scalar>", prog.PortTypes["rate.out"].String())
}

func TestConflictingUnitBindingsReported(t *testing.T) {
	// One Const output feeds radians and milliseconds sinks. No adapter
	// exists between those units, so unification fails.
	p := &patch.Patch{}
	p.AddBlock(&patch.Block{ID: "c", Type: "Const", Params: map[string]any{"value": 1.0}})
	p.AddBlock(&patch.Block{ID: "osc", Type: "Sin"})
	p.AddBlock(&patch.Block{ID: "phase", Type: "Phasor"})
	p.AddEdge(ref("c", "out"), ref("osc", "in"), patch.CombineLast)
	p.AddEdge(ref("c", "out"), ref("phase", "time"), patch.CombineLast)

	ce := compileErr(t, p)
	assert.Contains(t, codes(ce), compiler.DiagUnitConflict)
}

func TestUnbrokenCycleListsMembers(t *testing.T) {
	p := &patch.Patch{}
	p.AddBlock(&patch.Block{ID: "a", Type: "Add"})
	p.AddBlock(&patch.Block{ID: "b", Type: "Add"})
	p.AddBlock(&patch.Block{ID: "one", Type: "Const", Params: map[string]any{"value": 1.0}})
	p.AddBlock(&patch.Block{ID: "tap", Type: "Sin"})
	p.AddEdge(ref("a", "out"), ref("b", "a"), patch.CombineLast)
	p.AddEdge(ref("b", "out"), ref("a", "a"), patch.CombineLast)
	p.AddEdge(ref("one", "out"), ref("a", "b"), patch.CombineLast)
	p.AddEdge(ref("one", "out"), ref("b", "b"), patch.CombineLast)
	p.AddEdge(ref("a", "out"), ref("tap", "in"), patch.CombineLast)

	ce := compileErr(t, p)
	require.Contains(t, codes(ce), compiler.DiagUnbrokenCycle)
	for _, d := range ce.Diags {
		if d.Code == compiler.DiagUnbrokenCycle {
			assert.ElementsMatch(t, []string{"a", "b"}, d.Blocks)
		}
	}
}

func TestDelayBreaksCycle(t *testing.T) {
	p := &patch.Patch{}
	p.AddBlock(&patch.Block{ID: "sum", Type: "Add"})
	p.AddBlock(&patch.Block{ID: "delay", Type: "UnitDelay"})
	p.AddBlock(&patch.Block{ID: "one", Type: "Const", Params: map[string]any{"value": 1.0}})
	p.AddBlock(&patch.Block{ID: "tap", Type: "Sin"})
	p.AddEdge(ref("one", "out"), ref("sum", "b"), patch.CombineLast)
	p.AddEdge(ref("delay", "out"), ref("sum", "a"), patch.CombineLast)
	p.AddEdge(ref("sum", "out"), ref("delay", "in"), patch.CombineLast)
	p.AddEdge(ref("sum", "out"), ref("tap", "in"), patch.CombineLast)

	prog, err := compiler.Compile(blocks.Catalog(), p, testLogger())
	require.NoError(t, err)

	// The state-write half schedules after every eval that reads the loop.
	var lastEval, writeAt int
	for i, st := range prog.Steps {
		switch st.Kind {
		case ir.StepEvalSignal:
			lastEval = i
		case ir.StepStateWrite:
			writeAt = i
		}
	}
	assert.Greater(t, writeAt, lastEval, "state write must follow all evals")
}

func TestMissingRequiredInputFatal(t *testing.T) {
	p := &patch.Patch{}
	p.AddBlock(&patch.Block{ID: "osc", Type: "Sin"})

	ce := compileErr(t, p)
	require.Contains(t, codes(ce), compiler.DiagMissingInput)
	for _, d := range ce.Diags {
		if d.Code == compiler.DiagMissingInput {
			assert.Equal(t, "osc", d.Block)
			assert.Equal(t, "in", d.Port)
		}
	}
}

func TestCrossInstanceZipFatal(t *testing.T) {
	p := &patch.Patch{
		Instances: []ir.InstanceDecl{
			{ID: "left", Count: 4},
			{ID: "right", Count: 8},
		},
	}
	p.AddBlock(&patch.Block{ID: "a", Type: "NormalizedIndex", Params: map[string]any{"instance": "left"}})
	p.AddBlock(&patch.Block{ID: "b", Type: "NormalizedIndex", Params: map[string]any{"instance": "right"}})
	p.AddBlock(&patch.Block{ID: "sum", Type: "Add"})
	p.AddEdge(ref("a", "out"), ref("sum", "a"), patch.CombineLast)
	p.AddEdge(ref("b", "out"), ref("sum", "b"), patch.CombineLast)

	ce := compileErr(t, p)
	assert.Contains(t, codes(ce), compiler.DiagInstanceMismatch)
}

func TestSlotOffsetsAdvanceByStride(t *testing.T) {
	p := &patch.Patch{
		Instances: []ir.InstanceDecl{{ID: "dots", Count: 4}},
	}
	p.AddBlock(&patch.Block{ID: "t", Type: "NormalizedIndex", Params: map[string]any{"instance": "dots"}})
	p.AddBlock(&patch.Block{ID: "pos", Type: "Vec2"})
	p.AddBlock(&patch.Block{ID: "draw", Type: "RenderPoints"})
	p.AddEdge(ref("t", "out"), ref("pos", "x"), patch.CombineLast)
	p.AddEdge(ref("pos", "out"), ref("draw", "position"), patch.CombineLast)

	prog, err := compiler.Compile(blocks.Catalog(), p, testLogger())
	require.NoError(t, err)

	// Offsets within each bank scope must tile exactly: sorted by offset,
	// each slot begins where the previous one ends.
	type scope struct{ bank, instance string }
	byScope := map[scope][]ir.ValueSlot{}
	for _, s := range prog.Slots {
		k := scope{string(s.Bank), s.Instance}
		byScope[k] = append(byScope[k], s)
	}
	for k, slots := range byScope {
		offsets := map[int]int{}
		total := 0
		for _, s := range slots {
			require.Equal(t, s.Payload.Stride(), s.Stride, "slot %d", s.ID)
			offsets[s.Offset] = s.Stride
			total += s.Stride
		}
		next := 0
		for next < total {
			stride, ok := offsets[next]
			require.True(t, ok, "scope %v: gap or overlap at offset %d", k, next)
			next += stride
		}
	}
}

func TestCompileIsDeterministic(t *testing.T) {
	build := func() *patch.Patch {
		p := &patch.Patch{
			Instances: []ir.InstanceDecl{{ID: "dots", Count: 3}},
		}
		p.AddBlock(&patch.Block{ID: "t", Type: "NormalizedIndex", Params: map[string]any{"instance": "dots"}})
		p.AddBlock(&patch.Block{ID: "pos", Type: "Vec2"})
		p.AddBlock(&patch.Block{ID: "draw", Type: "RenderPoints"})
		p.AddBlock(&patch.Block{ID: "phase", Type: "Phasor"})
		p.AddBlock(&patch.Block{ID: "osc", Type: "Sin"})
		p.AddEdge(ref("phase", "out"), ref("osc", "in"), patch.CombineLast)
		p.AddEdge(ref("osc", "out"), ref("pos", "y"), patch.CombineLast)
		p.AddEdge(ref("t", "out"), ref("pos", "x"), patch.CombineLast)
		p.AddEdge(ref("pos", "out"), ref("draw", "position"), patch.CombineLast)
		return p
	}

	first, err := compiler.Compile(blocks.Catalog(), build(), testLogger())
	require.NoError(t, err)
	second, err := compiler.Compile(blocks.Catalog(), build(), testLogger())
	require.NoError(t, err)

	// Tokens are per-compilation; everything else is byte-stable.
	assert.NotEqual(t, first.Token, second.Token)
	assert.Equal(t, first.Dump(), second.Dump())
}

func TestSessionLastRequestWins(t *testing.T) {
	sess := compiler.NewSession(blocks.Catalog(), testLogger())

	stale := &patch.Patch{}
	stale.AddBlock(&patch.Block{ID: "phase", Type: "Phasor"})

	fresh := stale.Clone()
	fresh.AddBlock(&patch.Block{ID: "osc", Type: "Sin"})
	fresh.AddEdge(ref("phase", "out"), ref("osc", "in"), patch.CombineLast)

	sess.Request(stale)
	sess.Request(fresh)
	require.True(t, sess.Pending())

	prog, err := sess.Flush()
	require.NoError(t, err)
	require.NotNil(t, prog)
	assert.Contains(t, prog.DebugSlots, "osc.out")

	prog, err = sess.Flush()
	require.NoError(t, err)
	assert.Nil(t, prog, "flush with nothing pending is a no-op")
}
