package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sooq/internal/config"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "sooq", cmd.Use)
	assert.Contains(t, cmd.Long, "lambda queries")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"translate", "run", "schema", "dialects", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	for _, name := range []string{"config", "schema", "dialect", "dsn", "log-level"} {
		f := cmd.PersistentFlags().Lookup(name)
		require.NotNil(t, f, name)
		assert.Empty(t, f.DefValue, name)
	}
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	require.NotNil(t, runCmd.Flags().Lookup("var"))
	migrations := runCmd.Flags().Lookup("migrations")
	require.NotNil(t, migrations)
	assert.Equal(t, "", migrations.DefValue)
}

func TestTranslateCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	translateCmd, _, err := cmd.Find([]string{"translate"})
	require.NoError(t, err)
	require.NotNil(t, translateCmd.Flags().Lookup("var"))
}

func TestFormatValidation(t *testing.T) {
	// Test valid formats
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	// Test invalid formats
	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	isolate(t)
	_, _, err := execute(t, "--format", "invalid", "dialects")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestResolve_Precedence(t *testing.T) {
	isolate(t)
	schemaPath := writeSchema(t)
	require.NoError(t, os.WriteFile(config.DefaultPath, []byte("dialect: mysql\nschema: missing.yaml\nformat: json\n"), 0o644))
	t.Setenv(config.EnvSchema, schemaPath)

	// file: mysql, json; env: schema; flag: postgres
	out, _, err := execute(t, "--dialect", "postgres", "translate", "Contact.Count()")
	require.NoError(t, err)
	resp := decode(t, out)
	require.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "postgres", data["dialect"])
}

func TestResolve_ExplicitConfigErrors(t *testing.T) {
	isolate(t)
	_, _, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "dialects")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, _, err = execute(t, "--dialect", "cobol", "dialects")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestParseVars(t *testing.T) {
	vars, err := parseVars([]string{
		"n=3", "f=2.5", "b=true", "s=Customer", `q="42"`, "z=null", "t=T", "e=",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"n": int64(3),
		"f": 2.5,
		"b": true,
		"s": "Customer",
		"q": "42",
		"z": nil,
		"t": "T",
		"e": "",
	}, vars)

	_, err = parseVars([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseVars([]string{"=1"})
	assert.Error(t, err)
}

