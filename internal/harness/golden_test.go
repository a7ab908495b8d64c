package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoldenScenarios(t *testing.T) {
	for _, name := range []string{
		"testdata/counter.yaml",
		"testdata/dots.yaml",
		"testdata/accum_swap.yaml",
	} {
		s, err := LoadScenario(name)
		require.NoError(t, err)
		t.Run(s.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "failures: %v", result.Errors)
		})
	}
}

func TestSnapshotIsCanonical(t *testing.T) {
	result := &Result{
		Pass: true,
		Frames: []FrameRecord{{
			Frame: 1, TimeMS: 0, Passes: 0,
			Signals: map[string][]float64{"b.out": {2}, "a.out": {1}},
		}},
	}
	first, err := marshalSnapshot("s", result)
	require.NoError(t, err)
	second, err := marshalSnapshot("s", result)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Keys come out sorted regardless of map insertion order.
	assert.Contains(t, string(first), `"a.out":[1],"b.out":[2]`)
}
