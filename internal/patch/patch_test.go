package patch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motivelab/motive/internal/blocks"
	"github.com/motivelab/motive/internal/ir"
	"github.com/motivelab/motive/internal/patch"
)

func ref(block, port string) patch.PortRef {
	return patch.PortRef{Block: block, Port: port}
}

func oscillator() *patch.Patch {
	p := &patch.Patch{}
	p.AddBlock(&patch.Block{ID: "phase", Type: "Phasor", Params: map[string]any{"value": 2.0}})
	p.AddBlock(&patch.Block{ID: "osc", Type: "Sin"})
	p.AddEdge(ref("phase", "out"), ref("osc", "in"), patch.CombineLast)
	return p
}

func TestCloneIsIndependent(t *testing.T) {
	p := oscillator()
	c := p.Clone()

	require.NoError(t, c.SetParam("phase", "value", 9.0))
	c.AddBlock(&patch.Block{ID: "extra", Type: "Const"})
	c.RemoveEdge(ref("phase", "out"), ref("osc", "in"))

	assert.Equal(t, 2.0, p.Block("phase").ParamFloat("value", 0))
	assert.Nil(t, p.Block("extra"))
	assert.Len(t, p.Edges, 1)
}

func TestRemoveBlockPrunesEdges(t *testing.T) {
	p := oscillator()
	p.AddBlock(&patch.Block{ID: "gain", Type: "Multiply"})
	p.AddEdge(ref("osc", "out"), ref("gain", "a"), patch.CombineLast)
	p.AddEdge(ref("phase", "out"), ref("gain", "b"), patch.CombineLast)

	p.RemoveBlock("gain")

	assert.Nil(t, p.Block("gain"))
	require.Len(t, p.Edges, 1)
	assert.Equal(t, "osc", p.Edges[0].To.Block)
}

func TestRemoveEdgeMatchesEndpoints(t *testing.T) {
	p := oscillator()
	p.RemoveEdge(ref("phase", "out"), ref("osc", "x"))
	assert.Len(t, p.Edges, 1, "non-matching endpoints leave edges alone")

	p.RemoveEdge(ref("phase", "out"), ref("osc", "in"))
	assert.Empty(t, p.Edges)
}

func TestParamAccessors(t *testing.T) {
	b := &patch.Block{Params: map[string]any{
		"f": 1.5, "i": 3, "wide": int64(4), "s": "dots",
	}}
	assert.Equal(t, 1.5, b.ParamFloat("f", 0))
	assert.Equal(t, 3.0, b.ParamFloat("i", 0))
	assert.Equal(t, 4.0, b.ParamFloat("wide", 0))
	assert.Equal(t, 7.0, b.ParamFloat("missing", 7))
	assert.Equal(t, 7.0, b.ParamFloat("s", 7), "wrong kind falls back")
	assert.Equal(t, "dots", b.ParamString("s", ""))
	assert.Equal(t, "x", b.ParamString("f", "x"))
}

func TestHashIgnoresSynthesizedEdges(t *testing.T) {
	p := oscillator()
	base, err := p.Hash()
	require.NoError(t, err)

	withSynth := p.Clone()
	withSynth.Edges = append(withSynth.Edges, patch.Edge{
		From: ref("default$abc", "out"), To: ref("osc", "in"), Role: patch.RoleDefault,
	})
	withSynth.Edges = append(withSynth.Edges, patch.Edge{
		From: ref("adapter$def", "out"), To: ref("osc", "in"), Role: patch.RoleAdapter,
	})
	h, err := withSynth.Hash()
	require.NoError(t, err)
	assert.Equal(t, base, h, "derived edges must not perturb the authored hash")
}

func TestHashIsOrderInsensitiveButContentSensitive(t *testing.T) {
	base, err := oscillator().Hash()
	require.NoError(t, err)

	// Same content, different authoring order.
	reordered := &patch.Patch{}
	reordered.AddBlock(&patch.Block{ID: "osc", Type: "Sin"})
	reordered.AddBlock(&patch.Block{ID: "phase", Type: "Phasor", Params: map[string]any{"value": 2.0}})
	reordered.AddEdge(ref("phase", "out"), ref("osc", "in"), patch.CombineLast)
	h, err := reordered.Hash()
	require.NoError(t, err)
	assert.Equal(t, base, h)

	// A parameter change must move the hash.
	changed := oscillator()
	require.NoError(t, changed.SetParam("phase", "value", 3.0))
	h, err = changed.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, base, h)

	// So must an instance declaration.
	withInst := oscillator()
	withInst.Instances = append(withInst.Instances, ir.InstanceDecl{ID: "dots", Count: 8})
	h, err = withInst.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, base, h)
}

func collectCodes(errs []patch.StructuralError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateReportsAllShapeErrors(t *testing.T) {
	p := &patch.Patch{
		Instances: []ir.InstanceDecl{
			{ID: "dots", Count: 4},
			{ID: "dots", Count: 4},
			{ID: "empty", Count: 0},
		},
	}
	p.AddBlock(&patch.Block{ID: "osc", Type: "Sin"})
	p.AddBlock(&patch.Block{ID: "osc", Type: "Sin"})
	p.AddBlock(&patch.Block{ID: "mystery", Type: "NoSuchBlock"})
	p.AddEdge(ref("ghost", "out"), ref("osc", "in"), patch.CombineLast)
	p.AddEdge(ref("osc", "nope"), ref("osc", "in"), patch.CombineLast)
	p.AddEdge(ref("osc", "out"), ref("osc", "sideways"), patch.CombineLast)

	codes := collectCodes(p.Validate(blocks.Catalog()))
	assert.Contains(t, codes, patch.ErrDuplicateBlockID)
	assert.Contains(t, codes, patch.ErrUnknownBlockType)
	assert.Contains(t, codes, patch.ErrDanglingEndpoint)
	assert.Contains(t, codes, patch.ErrUnknownPort)
	assert.Contains(t, codes, patch.ErrDuplicateInstance)
	assert.Contains(t, codes, patch.ErrBadInstanceCount)
}

func TestValidateAcceptsDynamicZeroCount(t *testing.T) {
	p := oscillator()
	p.Instances = append(p.Instances, ir.InstanceDecl{ID: "spawned", Dynamic: true})
	assert.Empty(t, p.Validate(blocks.Catalog()))
}
