package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultSourceID_Deterministic checks that synthesized default-source
// ids are a pure function of (owner, port), so recompiles correlate.
func TestDefaultSourceID_Deterministic(t *testing.T) {
	a := DefaultSourceID("osc1", "freq")
	b := DefaultSourceID("osc1", "freq")
	assert.Equal(t, a, b)
	assert.Contains(t, a, "default$")
}

// TestDefaultSourceID_DistinctPerPort checks that distinct (owner, port)
// pairs never collide, including boundary-ambiguous concatenations.
func TestDefaultSourceID_DistinctPerPort(t *testing.T) {
	assert.NotEqual(t, DefaultSourceID("osc1", "freq"), DefaultSourceID("osc1", "phase"))
	assert.NotEqual(t, DefaultSourceID("osc1", "freq"), DefaultSourceID("osc2", "freq"))
	assert.NotEqual(t, DefaultSourceID("ab", "c"), DefaultSourceID("a", "bc"),
		"canonical JSON framing must prevent boundary ambiguity")
}

// TestAdapterID_IncludesConversion checks that the same edge with different
// conversions yields different adapter ids.
func TestAdapterID_IncludesConversion(t *testing.T) {
	edge := EdgeKey{FromBlock: "const1", FromPort: "out", ToBlock: "rot1", ToPort: "angle"}
	a := AdapterID(edge, "degreesToRadians")
	b := AdapterID(edge, "phase01ToRadians")
	assert.NotEqual(t, a, b)
	assert.Contains(t, a, "adapter$")
}

// TestPatchHash_Deterministic checks byte-stable hashing of a snapshot.
func TestPatchHash_Deterministic(t *testing.T) {
	snapshot := map[string]any{
		"blocks": []any{map[string]any{"id": "const1", "type": "Const"}},
	}
	first, err := PatchHash(snapshot)
	require.NoError(t, err)
	again, err := PatchHash(snapshot)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Len(t, first, 64)
}

// TestElementKey_StableAcrossDomainSize checks that an element's key
// depends only on its stable id and domain, not on the current count.
func TestElementKey_StableAcrossDomainSize(t *testing.T) {
	key := ElementKey("dots", 3)
	assert.Equal(t, key, ElementKey("dots", 3))
	assert.NotEqual(t, key, ElementKey("dots", 4))
	assert.NotEqual(t, key, ElementKey("grid", 3))
}
