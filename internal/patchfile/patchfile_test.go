package patchfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motivelab/motive/internal/patch"
)

const oscillatorSrc = `
patch: {
	blocks: {
		phase: {type: "Phasor", params: {freq: 2.0}}
		osc:   {type: "Sin"}
		gain:  {type: "Const", params: {value: 0.5, label: "gain"}}
		mul:   {type: "Multiply"}
	}
	edges: [
		{from: "phase.out", to: "osc.in"},
		{from: "osc.out", to: "mul.a"},
		{from: "gain.out", to: "mul.b", combine: "sum"},
	]
	instances: {
		dots: {count: 64, layout: "line"}
		rows: {dynamic: true, domain: "list"}
	}
}
`

func TestParseOscillatorPatch(t *testing.T) {
	p, err := Parse([]byte(oscillatorSrc), "osc.cue")
	require.NoError(t, err)

	require.Len(t, p.Blocks, 4)
	phase := p.Block("phase")
	require.NotNil(t, phase)
	assert.Equal(t, "Phasor", phase.Type)
	assert.Equal(t, 2.0, phase.ParamFloat("freq", 0))

	gain := p.Block("gain")
	require.NotNil(t, gain)
	assert.Equal(t, 0.5, gain.ParamFloat("value", 0))
	assert.Equal(t, "gain", gain.ParamString("label", ""))

	require.Len(t, p.Edges, 3)
	assert.Equal(t, patch.PortRef{Block: "phase", Port: "out"}, p.Edges[0].From)
	assert.Equal(t, patch.PortRef{Block: "osc", Port: "in"}, p.Edges[0].To)
	assert.Equal(t, patch.RoleUser, p.Edges[0].Role)
	assert.Equal(t, patch.CombineLast, p.Edges[0].Combine)
	assert.Equal(t, patch.CombineSum, p.Edges[2].Combine)

	require.Len(t, p.Instances, 2)
	assert.Equal(t, "dots", p.Instances[0].ID)
	assert.Equal(t, 64, p.Instances[0].Count)
	assert.Equal(t, "line", p.Instances[0].Layout)
	assert.True(t, p.Instances[1].Dynamic)
}

func TestParseRejectsMissingPatchStruct(t *testing.T) {
	_, err := Parse([]byte(`blocks: {}`), "bad.cue")
	require.Error(t, err)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "patch", de.Field)
}

func TestParseRejectsBlockWithoutType(t *testing.T) {
	src := `patch: blocks: osc: {params: {value: 1.0}}`
	_, err := Parse([]byte(src), "bad.cue")
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "blocks.osc", de.Field)
}

func TestParseRejectsMalformedPortRef(t *testing.T) {
	src := `
patch: {
	blocks: osc: {type: "Sin"}
	edges: [{from: "osc", to: "osc.in"}]
}
`
	_, err := Parse([]byte(src), "bad.cue")
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Contains(t, de.Message, "block.port")
}

func TestParseRejectsUnknownCombineMode(t *testing.T) {
	src := `
patch: {
	blocks: {a: {type: "Const"}, b: {type: "Sin"}}
	edges: [{from: "a.out", to: "b.in", combine: "average"}]
}
`
	_, err := Parse([]byte(src), "bad.cue")
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Contains(t, de.Message, "average")
}

func TestParseRejectsZeroCountFixedDomain(t *testing.T) {
	src := `
patch: {
	blocks: a: {type: "Const"}
	instances: dots: {count: 0}
}
`
	_, err := Parse([]byte(src), "bad.cue")
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "instances.dots", de.Field)
}

func TestParsedPatchHashesDeterministically(t *testing.T) {
	a, err := Parse([]byte(oscillatorSrc), "a.cue")
	require.NoError(t, err)
	b, err := Parse([]byte(oscillatorSrc), "b.cue")
	require.NoError(t, err)

	ha, err := a.Hash()
	require.NoError(t, err)
	hb, err := b.Hash()
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
}
