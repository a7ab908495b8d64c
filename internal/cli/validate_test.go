package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateValidPatch(t *testing.T) {
	out, _, err := execute(t, "validate", "testdata/counter.cue")
	require.NoError(t, err)
	assert.Contains(t, out, "patch is valid")
}

func TestValidateValidPatchJSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "validate", "testdata/counter.cue")
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestValidateBrokenPatch(t *testing.T) {
	out, _, err := execute(t, "validate", "testdata/broken.cue")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "MISSING_INPUT")
}

func TestValidateBrokenPatchJSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "validate", "testdata/broken.cue")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "DIAGNOSTICS", resp.Error.Code)
}

func TestValidateMissingFile(t *testing.T) {
	_, _, err := execute(t, "validate", "testdata/no_such.cue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
