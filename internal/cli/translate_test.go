package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslate_Text(t *testing.T) {
	isolate(t)
	schemaPath := writeSchema(t)

	out, _, err := execute(t, "--schema", schemaPath, "translate",
		"Contact.OrderBy(c => c.Name).Skip(1).Take(2).Select(c => c.Name).ToList()")
	require.NoError(t, err)
	assert.Contains(t, out, "LIMIT 2 OFFSET 1")
	assert.Contains(t, out, "-- dialect: sqlite")
	assert.Contains(t, out, "-- shape: ")
	assert.Contains(t, out, "-- wire: ")
}

func TestTranslate_JSONWithDialectAndVars(t *testing.T) {
	isolate(t)
	schemaPath := writeSchema(t)

	out, _, err := execute(t, "--schema", schemaPath, "--dialect", "pg", "--format", "json",
		"translate", "--var", "name=O'Brien", "Contact.Where(c => c.Name == name).ToList()")
	require.NoError(t, err)

	resp := decode(t, out)
	require.Equal(t, "ok", resp.Status)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "postgres", data["dialect"])
	assert.Contains(t, data["sql"], "$1")
	assert.Equal(t, []any{"O'Brien"}, data["args"])
	assert.NotEmpty(t, data["columns"])
}

func TestTranslate_DebugLogging(t *testing.T) {
	isolate(t)
	schemaPath := writeSchema(t)

	_, stderr, err := execute(t, "--schema", schemaPath, "--log-level", "debug", "translate", "Contact.Count()")
	require.NoError(t, err)
	assert.Contains(t, stderr, "translated query")

	_, stderr, err = execute(t, "--schema", schemaPath, "translate", "Contact.Count()")
	require.NoError(t, err)
	assert.NotContains(t, stderr, "translated query")
}

func TestTranslate_Errors(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		noSchema bool
		wantCode string
		wantExit int
	}{
		{"syntax", "Contact.Where(c => ", false, ErrCodeSyntax, ExitFailure},
		{"chain state", "Contact.Take(2).Where(c => c.Active).ToList()", false, "CHAIN_STATE", ExitFailure},
		{"unknown member", "Contact.Where(c => c.Nickname == \"x\").ToList()", false, "SCHEMA_RESOLUTION", ExitFailure},
		{"no schema", "Contact.Count()", true, ErrCodeCommand, ExitCommandError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			args := []string{"--format", "json"}
			if !tt.noSchema {
				args = append(args, "--schema", writeSchema(t))
			}
			args = append(args, "translate", tt.query)

			out, _, err := execute(t, args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantExit, GetExitCode(err))
			resp := decode(t, out)
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}
