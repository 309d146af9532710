package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sooq/internal/dialect"
)

func TestListDialects(t *testing.T) {
	list, err := listDialects()
	require.NoError(t, err)
	require.Len(t, list, len(dialect.Names()))

	byName := map[string]DialectInfo{}
	for _, d := range list {
		byName[d.Name] = d
	}

	tests := []struct {
		name        string
		placeholder string
		rowLimit    string
		migrations  bool
	}{
		{"sqlite", "?", "limit-offset", true},
		{"postgres", "$1", "limit-offset", true},
		{"mysql", "?", "limit-comma", true},
		{"mssql", "@p1", "top-rownumber", true},
		{"mssql2012", "@p1", "offset-fetch", true},
		{"oracle", ":1", "rownumber", false},
		{"duckdb", "?", "limit-offset", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := byName[tt.name]
			require.True(t, ok)
			assert.Equal(t, tt.placeholder, d.Placeholder)
			assert.Equal(t, tt.rowLimit, d.RowLimit)
			assert.Equal(t, tt.migrations, d.Migrations)
			assert.Len(t, d.Quote, 2)
		})
	}
	assert.True(t, byName["oracle"].LegacyOuterJoin)
	assert.True(t, byName["mssql"].AverageRequiresCast)
}

func TestDialects_Text(t *testing.T) {
	isolate(t)
	out, _, err := execute(t, "dialects")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "postgres")
	assert.Contains(t, out, "pgx")
	assert.Contains(t, out, "@p1")
}

func TestDialects_JSON(t *testing.T) {
	isolate(t)
	out, _, err := execute(t, "--format", "json", "dialects")
	require.NoError(t, err)
	resp := decode(t, out)
	require.Equal(t, "ok", resp.Status)
	assert.Len(t, resp.Data, len(dialect.Names()))
}
