package cli

import (
	"bytes"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/sooq/internal/config"
	"github.com/roach88/sooq/internal/testutil"
)

// isolate clears SOOQ_* variables and runs the test in an empty directory
// so no sooq.yaml is picked up.
func isolate(t *testing.T) {
	t.Helper()
	for _, k := range []string{config.EnvSchema, config.EnvDialect, config.EnvDSN, config.EnvLogLevel} {
		t.Setenv(k, "")
	}
	t.Chdir(t.TempDir())
}

// writeSchema writes the fixture mapping to a temp file.
func writeSchema(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contacts.yaml")
	require.NoError(t, os.WriteFile(path, testutil.SchemaYAML(), 0o644))
	return path
}

// writeMigrations copies the fixture migrations to a temp directory.
func writeMigrations(t *testing.T) string {
	t.Helper()
	sub, err := fs.Sub(testutil.Fixtures(), testutil.MigrationsDir)
	require.NoError(t, err)
	dir := filepath.Join(t.TempDir(), "migrations")
	require.NoError(t, os.CopyFS(dir, sub))
	return dir
}

// execute runs the root command with args and returns stdout, stderr and
// the command error.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// decode parses a JSON CLI response.
func decode(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp
}
