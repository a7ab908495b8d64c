package testutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motivelab/motive/internal/blocks"
	"github.com/motivelab/motive/internal/compiler"
	"github.com/motivelab/motive/internal/engine"
	"github.com/motivelab/motive/internal/patch"
	"github.com/motivelab/motive/internal/testutil"
)

func timeProgram(t *testing.T) *engine.Engine {
	t.Helper()
	p := &patch.Patch{}
	p.AddBlock(&patch.Block{ID: "clock", Type: "Time"})
	prog, err := compiler.Compile(blocks.Catalog(), p, testutil.Logger())
	require.NoError(t, err)

	e := engine.New(testutil.Logger())
	e.Swap(prog)
	return e
}

func TestFrameDriverTimeline(t *testing.T) {
	d := testutil.NewFrameDriver(timeProgram(t))
	d.DtMS = 10

	for i := 0; i < 3; i++ {
		f, err := d.Step()
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), f.Number)
		assert.Equal(t, float64(i)*10, f.TimeMS, "first frame at t=0")

		v, ok := d.Engine.ReadSignal("clock.out")
		require.True(t, ok)
		assert.Equal(t, float64(i)*10, v[0])
	}
	assert.Equal(t, 20.0, d.Now())
}

func TestFrameDriverStepN(t *testing.T) {
	d := testutil.NewFrameDriver(timeProgram(t))
	d.DtMS = 5

	last, err := d.StepN(4)
	require.NoError(t, err)
	assert.Equal(t, int64(4), last.Number)
	assert.Equal(t, 15.0, last.TimeMS)
}

func TestTokensAreDistinctAndStable(t *testing.T) {
	a := testutil.Tokens(3)
	b := testutil.Tokens(3)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a[0], a[1])
	assert.NotEqual(t, a[1], a[2])
}
