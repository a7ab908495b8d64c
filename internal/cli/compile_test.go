package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompilePrintsDump(t *testing.T) {
	out, _, err := execute(t, "compile", "testdata/counter.cue")
	require.NoError(t, err)

	assert.Contains(t, out, "patch ")
	assert.Contains(t, out, "exprs ")
	assert.Contains(t, out, "steps ")
	assert.Contains(t, out, "delay.out")
}

func TestCompileIsReproducible(t *testing.T) {
	first, _, err := execute(t, "compile", "testdata/counter.cue")
	require.NoError(t, err)
	second, _, err := execute(t, "compile", "testdata/counter.cue")
	require.NoError(t, err)
	assert.Equal(t, first, second, "dump must not vary between compiles")
}

func TestCompileWritesOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "program.txt")
	out, _, err := execute(t, "compile", "-o", path, "testdata/counter.cue")
	require.NoError(t, err)
	assert.Contains(t, out, "compiled ")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "steps ")
}

func TestCompileJSONSummary(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "compile", "testdata/counter.cue")
	require.NoError(t, err)

	var resp struct {
		Status string         `json:"status"`
		Data   CompileSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.Data.PatchHash)
	assert.Greater(t, resp.Data.Exprs, 0)
	assert.Greater(t, resp.Data.Steps, 0)
	assert.NotEmpty(t, resp.Data.Dump)
}

func TestCompileBrokenPatchReportsDiagnostics(t *testing.T) {
	out, _, err := execute(t, "compile", "testdata/broken.cue")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "MISSING_INPUT")
}
