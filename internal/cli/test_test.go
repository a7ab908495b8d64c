package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestCommandRunsScenarioFile(t *testing.T) {
	out, _, err := execute(t, "test", "testdata/scenarios/counter.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "PASS  counter")
	assert.Contains(t, out, "1 scenario(s), 0 failed")
}

func TestTestCommandRunsDirectory(t *testing.T) {
	out, _, err := execute(t, "test", "testdata/scenarios")
	require.NoError(t, err)
	assert.Contains(t, out, "PASS  counter")
}

func TestTestCommandReportsFailure(t *testing.T) {
	out, _, err := execute(t, "test", "testdata/failing/wrong_series.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "FAIL  wrong_series")
	assert.Contains(t, out, "1 scenario(s), 1 failed")
}

func TestTestCommandJSONReport(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "test", "testdata/scenarios/counter.yaml")
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   []TestReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 1)
	assert.True(t, resp.Data[0].Pass)
	assert.Equal(t, 3, resp.Data[0].Frames)
}

func TestTestCommandMissingPath(t *testing.T) {
	_, _, err := execute(t, "test", "testdata/nowhere")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
