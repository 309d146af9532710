package dialect

import (
	"math"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sooq/internal/ir"
)

func TestGet(t *testing.T) {
	tests := []struct {
		name string
		want *Dialect
	}{
		{"sqlite", SQLite},
		{"sqlite3", SQLite},
		{"Postgres", Postgres},
		{"postgresql", Postgres},
		{"pgx", Postgres},
		{"mysql", MySQL},
		{"mariadb", MySQL},
		{"sqlserver", MSSQL},
		{"mssql2012", MSSQL2012},
		{" oracle ", Oracle},
		{"duckdb", DuckDB},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Get(tt.name)
			require.NoError(t, err)
			assert.Same(t, tt.want, d)
		})
	}

	_, err := Get("db2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown dialect "db2"`)
	assert.Contains(t, err.Error(), "duckdb, mssql, mssql2012, mysql, oracle, postgres, sqlite")
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"duckdb", "mssql", "mssql2012", "mysql", "oracle", "postgres", "sqlite"}, Names())
}

func TestMSSQL2012InheritsMSSQL(t *testing.T) {
	assert.Equal(t, OffsetFetch, MSSQL2012.RowLimit)
	assert.Equal(t, TopRowNumber, MSSQL.RowLimit)
	assert.True(t, MSSQL2012.AverageRequiresCast)
	assert.Equal(t, "LEN(x)", MSSQL2012.Function("LENGTH", []string{"x"}))
}

func TestQuoteIdent(t *testing.T) {
	tests := []struct {
		d    *Dialect
		name string
		want string
	}{
		{SQLite, "name", "name"},
		{SQLite, "Group", `"Group"`},
		{SQLite, "order", `"order"`},
		{SQLite, "two words", `"two words"`},
		{SQLite, `we"ird`, `"we""ird"`},
		{SQLite, "*", "*"},
		{SQLite, "1st", `"1st"`},
		{MySQL, "key", "`key`"},
		{MSSQL, "user", "[user]"},
		{MSSQL, "odd]name", "[odd]]name]"},
		{Oracle, "level", `"level"`},
		{Postgres, "contact_id", "contact_id"},
	}
	for _, tt := range tests {
		t.Run(tt.d.Name+"/"+tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.d.QuoteIdent(tt.name))
		})
	}
}

func TestIsReserved(t *testing.T) {
	assert.True(t, Oracle.IsReserved("rownum"))
	assert.True(t, Oracle.IsReserved("Select"))
	assert.False(t, Postgres.IsReserved("ROWNUM"))
	assert.True(t, MSSQL.IsReserved("top"))
	assert.False(t, SQLite.IsReserved("Contact"))

	// Quoting follows the reserved set, not just identifier shape.
	assert.Equal(t, `"ROWNUM"`, Oracle.QuoteIdent("ROWNUM"))
	assert.Equal(t, "ROWNUM", Postgres.QuoteIdent("ROWNUM"))
}

func TestIsSafeLiteral(t *testing.T) {
	tests := []struct {
		name string
		v    ir.Value
		want bool
	}{
		{"null", ir.Null{}, true},
		{"bool", ir.Bool(true), true},
		{"int", ir.Int(-42), true},
		{"float", ir.Float(2.5), true},
		{"nan", ir.Float(math.NaN()), false},
		{"inf", ir.Float(math.Inf(1)), false},
		{"plain string", ir.String("Mary Manager"), true},
		{"safe punctuation", ir.String("a_b-c.d,e@f/g"), true},
		{"quote", ir.String("O'Brien"), false},
		{"percent", ir.String("50%"), false},
		{"question mark", ir.String("why?"), false},
		{"backslash", ir.String(`a\b`), false},
		{"non ascii", ir.String("Zoë"), false},
		{"too long", ir.String(strings.Repeat("x", 65)), false},
		{"time", ir.Time{}, false},
		{"guid", ir.Guid(uuid.Nil), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SQLite.IsSafeLiteral(tt.v))
		})
	}
}

func TestLiteral(t *testing.T) {
	assert.Equal(t, "NULL", SQLite.Literal(ir.Null{}))
	assert.Equal(t, "1", SQLite.Literal(ir.Bool(true)))
	assert.Equal(t, "FALSE", Postgres.Literal(ir.Bool(false)))
	assert.Equal(t, "7", SQLite.Literal(ir.Int(7)))
	assert.Equal(t, "3.0", SQLite.Literal(ir.Float(3)))
	assert.Equal(t, "0.25", SQLite.Literal(ir.Float(0.25)))
	assert.Equal(t, "'Mary Manager'", SQLite.Literal(ir.String("Mary Manager")))
	assert.Equal(t, "'O''Brien'", SQLite.Literal(ir.String("O'Brien")))
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "REAL", SQLite.TypeName(ir.KindFloat))
	assert.Equal(t, "DOUBLE PRECISION", Postgres.TypeName(ir.KindFloat))
	assert.Equal(t, "BIGINT", Postgres.TypeName(ir.KindInt))
	assert.Equal(t, "FLOAT", MSSQL.TypeName(ir.KindFloat))
	assert.Equal(t, "VARCHAR2(4000)", Oracle.TypeName(ir.KindString))
}

func TestFunction(t *testing.T) {
	tests := []struct {
		d    *Dialect
		name string
		args []string
		want string
	}{
		{SQLite, "COUNT", nil, "COUNT(*)"},
		{SQLite, "UPPER", []string{"t0.name"}, "UPPER(t0.name)"},
		{SQLite, "SUBSTRING", []string{"x", "1", "2"}, "SUBSTR(x, 1, 2)"},
		{SQLite, "YEAR", []string{"t0.hired"}, "CAST(strftime('%Y', t0.hired) AS INTEGER)"},
		{Postgres, "YEAR", []string{"t0.hired"}, "CAST(EXTRACT(YEAR FROM t0.hired) AS INTEGER)"},
		{MySQL, "LENGTH", []string{"x"}, "CHAR_LENGTH(x)"},
		{MSSQL, "TRIM", []string{"x"}, "LTRIM(RTRIM(x))"},
		{MSSQL, "SUBSTRING_FROM", []string{"x", "3"}, "SUBSTRING(x, 3, LEN(x))"},
		{Oracle, "CEILING", []string{"x"}, "CEIL(x)"},
	}
	for _, tt := range tests {
		t.Run(tt.d.Name+"/"+tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.d.Function(tt.name, tt.args))
		})
	}
}

func TestConcat(t *testing.T) {
	assert.Equal(t, "(a || b)", SQLite.Concat("a", "b"))
	assert.Equal(t, "(a + b)", MSSQL.Concat("a", "b"))
	assert.Equal(t, "CONCAT(a, b)", MySQL.Concat("a", "b"))
}

func TestRebind(t *testing.T) {
	tests := []struct {
		d    *Dialect
		want string
	}{
		{SQLite, "a = ? AND b = ?"},
		{Postgres, "a = $1 AND b = $2"},
		{Oracle, "a = :1 AND b = :2"},
		{MSSQL, "a = @p1 AND b = @p2"},
	}
	for _, tt := range tests {
		t.Run(tt.d.Name, func(t *testing.T) {
			got, err := tt.d.Rebind("a = ? AND b = ?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRowLimitString(t *testing.T) {
	assert.Equal(t, "limit-offset", LimitOffset.String())
	assert.Equal(t, "offset-fetch", OffsetFetch.String())
	assert.Equal(t, "rownumber", RowNumber.String())
}
