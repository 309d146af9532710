package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestCommand_Pass(t *testing.T) {
	dir, err := filepath.Abs(filepath.Join("..", "harness", "testdata", "scenarios"))
	require.NoError(t, err)
	isolate(t)

	out, _, err := execute(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "PASS  contacts")
	assert.Contains(t, out, "PASS  vehicles")
	assert.Contains(t, out, "2 passed, 0 failed")
}

func TestTestCommand_Failure(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong.yaml"), []byte(`
name: wrong
description: "Expects the wrong count"
steps:
  - name: count
    query: Contact.Count()
    assertions:
      - type: result_equals
        value: 99
`), 0o644))

	out, _, err := execute(t, "--format", "json", "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "1 scenario(s) failed")

	resp := decode(t, out)
	require.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.EqualValues(t, 0, data["passed"])
	assert.EqualValues(t, 1, data["failed"])
	scenarios := data["scenarios"].([]any)
	require.Len(t, scenarios, 1)
	assert.NotEmpty(t, scenarios[0].(map[string]any)["errors"])
}

func TestTestCommand_LoadErrors(t *testing.T) {
	isolate(t)
	_, _, err := execute(t, "test", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "no scenario files")
}

func TestTestSummary_Text(t *testing.T) {
	s := TestSummary{
		Passed: 1,
		Failed: 1,
		Scenarios: []ScenarioOutcome{
			{Name: "a", Pass: true, Steps: 2},
			{Name: "b", Steps: 1, Errors: []string{"Assertion failed: result_equals (step x)\n  Expected: 1"}},
		},
	}
	text := s.Text()
	assert.Contains(t, text, "PASS  a (2 steps)")
	assert.Contains(t, text, "FAIL  b (1 steps)")
	assert.Contains(t, text, "      Expected: 1")
	assert.Contains(t, text, "1 passed, 1 failed")
}
