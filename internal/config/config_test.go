package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvSchema, EnvDialect, EnvDSN, EnvLogLevel} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Dialect)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.Format)
	assert.Empty(t, cfg.SchemaPath)
	assert.Empty(t, cfg.DSN)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
schema: contacts.yaml
dialect: postgres
dsn: postgres://localhost/contacts
log_level: debug
format: json
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "contacts.yaml", cfg.SchemaPath)
	assert.Equal(t, "postgres", cfg.Dialect)
	assert.Equal(t, "postgres://localhost/contacts", cfg.DSN)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.Equal(t, "json", cfg.Format)
}

func TestLoad_DefaultPathPickedUp(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultPath), []byte("dialect: mysql\n"), 0o644))
	t.Chdir(dir)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Dialect)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "sooq.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dialect: mysql\nschema: a.yaml\n"), 0o644))

	t.Setenv(EnvDialect, "oracle")
	t.Setenv(EnvSchema, "b.cue")
	t.Setenv(EnvDSN, "file:test.db")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "oracle", cfg.Dialect)
	assert.Equal(t, "b.cue", cfg.SchemaPath)
	assert.Equal(t, "file:test.db", cfg.DSN)
	assert.Equal(t, slog.LevelWarn, cfg.SlogLevel())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
		missing bool
	}{
		{name: "missing explicit file", missing: true},
		{name: "malformed yaml", content: "dialect: [unterminated"},
		{name: "unknown dialect", content: "dialect: cobol"},
		{name: "unknown dialect from env", content: "", env: map[string]string{EnvDialect: "db2"}},
		{name: "bad log level", content: "log_level: loud"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := filepath.Join(t.TempDir(), "sooq.yaml")
			if !tt.missing {
				require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			}
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, (&Config{LogLevel: in}).SlogLevel())
		})
	}
}
