package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMarshalCanonical_SortedKeys checks deterministic key ordering.
func TestMarshalCanonical_SortedKeys(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{
		"zeta":  1,
		"alpha": 2,
		"mid":   3,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"mid":3,"zeta":1}`, string(got))
}

// TestMarshalCanonical_Floats checks shortest round-trip float formatting
// and integral-float collapsing.
func TestMarshalCanonical_Floats(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{"v": 0.5})
	require.NoError(t, err)
	assert.Equal(t, `{"v":0.5}`, string(got))

	got, err = MarshalCanonical(map[string]any{"v": 2.0})
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(got), "integral floats collapse to ints")
}

// TestMarshalCanonical_NonFiniteRejected checks that NaN and Inf never
// reach a hash input.
func TestMarshalCanonical_NonFiniteRejected(t *testing.T) {
	inf := float64(maxFinite)
	inf *= 2
	_, err := MarshalCanonical(map[string]any{"v": inf})
	assert.Error(t, err)

	nan := inf - inf
	_, err = MarshalCanonical(map[string]any{"v": nan})
	assert.Error(t, err)
}

// TestMarshalCanonical_NullRejected checks that null never reaches a hash
// input.
func TestMarshalCanonical_NullRejected(t *testing.T) {
	_, err := MarshalCanonical(nil)
	assert.Error(t, err)
	_, err = MarshalCanonical(map[string]any{"v": nil})
	assert.Error(t, err)
}

// TestMarshalCanonical_NoHTMLEscaping checks RFC 8785 string handling.
func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	got, err := MarshalCanonical("a<b>&c")
	require.NoError(t, err)
	assert.Equal(t, `"a<b>&c"`, string(got))
}

// TestMarshalCanonical_NFCNormalization checks that composed and decomposed
// forms of the same text hash identically.
func TestMarshalCanonical_NFCNormalization(t *testing.T) {
	composed, err := MarshalCanonical("café")
	require.NoError(t, err)
	decomposed, err := MarshalCanonical("café")
	require.NoError(t, err)
	assert.Equal(t, string(composed), string(decomposed))
}

// TestMarshalCanonical_NestedDeterminism checks that repeated marshals of a
// nested structure are byte-identical.
func TestMarshalCanonical_NestedDeterminism(t *testing.T) {
	v := map[string]any{
		"blocks": []any{
			map[string]any{"id": "const1", "value": 0.5},
			map[string]any{"id": "osc1", "freq": 2.0},
		},
		"edges": []any{},
	}
	first, err := MarshalCanonical(v)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := MarshalCanonical(v)
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
}
