package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_Contacts(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/contacts.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestSnapshot_Marshal(t *testing.T) {
	r := NewResult()
	r.Steps = append(r.Steps,
		StepResult{Name: "count", Value: int64(0), SQL: "SELECT COUNT(*) FROM Contact t0"},
		StepResult{Name: "fails", Error: "boom", ErrorCode: "CARDINALITY"},
	)

	data, err := NewSnapshot("snap", r).Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"scenario": "snap",
		"steps": [
			{"name": "count", "value": 0},
			{"name": "fails", "error_code": "CARDINALITY"}
		]
	}`, string(data))
	assert.NotContains(t, string(data), "SELECT")
}
