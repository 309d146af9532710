package querysql

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sooq/internal/dialect"
	"github.com/roach88/sooq/internal/ir"
)

func sampleStatement() *Statement {
	b := &sqlBuf{}
	b.text("SELECT t0.name FROM Contact t0 WHERE t0.name = ")
	b.literal(ir.NewString("O'Brien {x}"))
	b.text(" AND t0.id > ")
	b.param(0, ir.KindInt)
	b.text(" AND t0.hired < ")
	b.param(1, ir.KindUnknown)
	return &Statement{Segments: b.segs}
}

func TestStatement_String(t *testing.T) {
	got := sampleStatement().String()
	assert.Equal(t,
		`SELECT t0.name FROM Contact t0 WHERE t0.name = {L:String:O'Brien {x\}} AND t0.id > {0:Int} AND t0.hired < {1}`,
		got)
}

func TestStatement_TextBracesDoubled(t *testing.T) {
	s := &Statement{Segments: []Segment{{Kind: TextSegment, Text: "SELECT '{a}'"}}}
	assert.Equal(t, "SELECT '{{a}}'", s.String())

	back, err := ParseStatement(s.String())
	require.NoError(t, err)
	assert.Equal(t, s.Segments, back.Segments)
}

func TestParseStatement_RoundTrip(t *testing.T) {
	s := sampleStatement()
	back, err := ParseStatement(s.String())
	require.NoError(t, err)
	require.Len(t, back.Segments, len(s.Segments))
	assert.Equal(t, s.String(), back.String())

	lit := back.Segments[1]
	assert.Equal(t, LiteralSegment, lit.Kind)
	assert.Equal(t, ir.NewString("O'Brien {x}"), lit.Value)
	assert.Equal(t, 2, back.NumParams())
}

func TestParseStatement_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unbalanced close", "SELECT 1 }"},
		{"unterminated token", "SELECT {0:Int"},
		{"bad ordinal", "SELECT {x:Int}"},
		{"negative ordinal", "SELECT {-1}"},
		{"unknown kind", "SELECT {0:Money}"},
		{"literal without tag", "SELECT {L:Int}"},
		{"bad literal", "SELECT {L:Int:abc}"},
		{"dangling escape", `SELECT {L:String:a\`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStatement(tt.src)
			assert.Error(t, err)
		})
	}
}

func TestStatement_Bind(t *testing.T) {
	hired := time.Date(2012, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("question placeholders", func(t *testing.T) {
		sql, args, err := sampleStatement().Bind(dialect.SQLite, 2, hired)
		require.NoError(t, err)
		assert.Equal(t, "SELECT t0.name FROM Contact t0 WHERE t0.name = ? AND t0.id > ? AND t0.hired < ?", sql)
		assert.Equal(t, []any{"O'Brien {x}", int64(2), hired}, args)
	})

	t.Run("dollar placeholders", func(t *testing.T) {
		sql, _, err := sampleStatement().Bind(dialect.Postgres, 2, hired)
		require.NoError(t, err)
		assert.Equal(t, "SELECT t0.name FROM Contact t0 WHERE t0.name = $1 AND t0.id > $2 AND t0.hired < $3", sql)
	})

	t.Run("at-p placeholders", func(t *testing.T) {
		sql, _, err := sampleStatement().Bind(dialect.MSSQL, 2, hired)
		require.NoError(t, err)
		assert.Contains(t, sql, "t0.id > @p2")
	})

	t.Run("converts to slot type", func(t *testing.T) {
		_, args, err := sampleStatement().Bind(dialect.SQLite, 2.0, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(2), args[1])
		assert.Nil(t, args[2])
	})

	t.Run("missing parameter", func(t *testing.T) {
		_, _, err := sampleStatement().Bind(dialect.SQLite, 2)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "{1}")
	})
}

func TestSplice(t *testing.T) {
	arg := &sqlBuf{}
	arg.text("t0.name")
	lit := &sqlBuf{}
	lit.literal(ir.NewString("it's"))

	b := &sqlBuf{}
	s := argSentinels(2)
	b.splice(dialect.MySQL.Concat(s[0], s[1]), []*sqlBuf{arg, lit})

	require.Len(t, b.segs, 3)
	assert.Equal(t, "CONCAT(t0.name, ", b.segs[0].Text)
	assert.Equal(t, LiteralSegment, b.segs[1].Kind)
	assert.Equal(t, ")", b.segs[2].Text)
}

func TestSplice_RepeatedArgument(t *testing.T) {
	arg := &sqlBuf{}
	arg.text("t0.name")
	b := &sqlBuf{}
	b.splice(dialect.MSSQL.Function("SUBSTRING_FROM", argSentinels(2)), []*sqlBuf{arg, {segs: []Segment{{Kind: TextSegment, Text: "2"}}}})
	assert.Equal(t, "SUBSTRING(t0.name, 2, LEN(t0.name))", (&Statement{Segments: b.segs}).String())
}

func TestStatement_Fingerprint(t *testing.T) {
	a := sampleStatement()
	assert.Equal(t, a.Fingerprint(), sampleStatement().Fingerprint())

	b := &sqlBuf{}
	b.text("SELECT t0.name FROM Contact t0 WHERE t0.name = ")
	b.literal(ir.NewString("Mary Manager"))
	assert.NotEqual(t, a.Fingerprint(), (&Statement{Segments: b.segs}).Fingerprint())
}
