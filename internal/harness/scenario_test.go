package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, t.TempDir(), `
name: test_scenario
description: "Test scenario for validation"
vars:
  code: Customer
steps:
  - name: count
    query: Contact.Count()
    vars:
      limit: 3
    assertions:
      - type: result_equals
        value: 7
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	assert.Equal(t, "Customer", scenario.Vars["code"])
	require.Len(t, scenario.Steps, 1)
	assert.Equal(t, "Contact.Count()", scenario.Steps[0].Query)
	assert.Equal(t, 3, scenario.Steps[0].Vars["limit"])
	require.Len(t, scenario.Steps[0].Assertions, 1)
	assert.Equal(t, AssertResultEquals, scenario.Steps[0].Assertions[0].Type)
}

func TestLoadScenario_ResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mapping.yaml"), []byte("classes: []\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "migrations"), 0o755))

	path := writeScenario(t, dir, `
name: custom
description: "Custom mapping"
schema: mapping.yaml
migrations: migrations
steps:
  - name: count
    query: Thing.Count()
    assertions:
      - {type: result_equals, value: 0}
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "mapping.yaml"), scenario.Schema)
	assert.Equal(t, filepath.Join(dir, "migrations"), scenario.Migrations)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "unknown field",
			content: "name: x\ndescription: y\nstep: []\n",
			want:    "failed to parse YAML",
		},
		{
			name:    "missing name",
			content: "description: y\nsteps: [{name: a, query: Contact.Count(), assertions: [{type: result_equals, value: 7}]}]\n",
			want:    "name is required",
		},
		{
			name:    "missing description",
			content: "name: x\nsteps: [{name: a, query: Contact.Count(), assertions: [{type: result_equals, value: 7}]}]\n",
			want:    "description is required",
		},
		{
			name:    "no steps",
			content: "name: x\ndescription: y\nsteps: []\n",
			want:    "steps list is required",
		},
		{
			name:    "step without query",
			content: "name: x\ndescription: y\nsteps: [{name: a, assertions: [{type: result_equals, value: 7}]}]\n",
			want:    "steps[0]: query is required",
		},
		{
			name:    "duplicate step",
			content: "name: x\ndescription: y\nsteps: [{name: a, query: Contact.Count(), assertions: [{type: result_equals}]}, {name: a, query: Contact.Count(), assertions: [{type: result_equals}]}]\n",
			want:    `duplicate name "a"`,
		},
		{
			name:    "step without assertions",
			content: "name: x\ndescription: y\nsteps: [{name: a, query: Contact.Count()}]\n",
			want:    "assertions list is required",
		},
		{
			name:    "unknown assertion type",
			content: "name: x\ndescription: y\nsteps: [{name: a, query: Contact.Count(), assertions: [{type: trace_order}]}]\n",
			want:    `unknown assertion type "trace_order"`,
		},
		{
			name:    "error_code without code",
			content: "name: x\ndescription: y\nsteps: [{name: a, query: Contact.Count(), assertions: [{type: error_code}]}]\n",
			want:    "code is required",
		},
		{
			name:    "sql_contains without text",
			content: "name: x\ndescription: y\nsteps: [{name: a, query: Contact.Count(), assertions: [{type: sql_contains}]}]\n",
			want:    "text is required",
		},
		{
			name:    "result_contains without fields",
			content: "name: x\ndescription: y\nsteps: [{name: a, query: Contact.Count(), assertions: [{type: result_contains}]}]\n",
			want:    "fields is required",
		},
		{
			name:    "missing schema file",
			content: "name: x\ndescription: y\nschema: nope.yaml\nsteps: [{name: a, query: Contact.Count(), assertions: [{type: result_equals}]}]\n",
			want:    "schema file not found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScenario(t, t.TempDir(), tt.content)
			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadDir(t *testing.T) {
	scenarios, err := LoadDir("testdata/scenarios")
	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	assert.Equal(t, "contacts", scenarios[0].Name)
	assert.Equal(t, "vehicles", scenarios[1].Name)

	_, err = LoadDir(t.TempDir())
	assert.ErrorContains(t, err, "no scenario files")
}
