// Package dialect describes per-database SQL syntax: identifier quoting,
// row limiting, outer-join style, placeholders, type names, function
// spellings and which literals may be inlined.
package dialect

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/roach88/sooq/internal/ir"
)

// RowLimit selects how a dialect restricts result windows.
type RowLimit int

const (
	// LimitOffset appends LIMIT n OFFSET m.
	LimitOffset RowLimit = iota
	// LimitComma appends LIMIT m, n.
	LimitComma
	// TopRowNumber uses SELECT TOP n and wraps offsets in ROW_NUMBER().
	TopRowNumber
	// OffsetFetch appends OFFSET m ROWS FETCH NEXT n ROWS ONLY.
	OffsetFetch
	// RowNumber wraps every window in ROW_NUMBER() and filters on it.
	RowNumber
)

func (r RowLimit) String() string {
	return [...]string{"limit-offset", "limit-comma", "top-rownumber", "offset-fetch", "rownumber"}[r]
}

// Dialect defines the capabilities and syntax variations of a SQL target.
type Dialect struct {
	Name string

	// DriverName is the database/sql driver registered for this dialect.
	DriverName string

	// Placeholders rewrites ? slots into the driver's parameter syntax.
	Placeholders squirrel.PlaceholderFormat

	// Identifier quoting
	IdentQuoteOpen  byte
	IdentQuoteClose byte
	MaxIdentLength  int

	// Limit/Offset handling
	RowLimit RowLimit
	// NoLimit is the LIMIT value used when only an offset is given.
	// Empty means OFFSET may appear alone.
	NoLimit string

	// LegacyOuterJoin emits outer joins as (+) markers in WHERE.
	LegacyOuterJoin bool

	// BoolTrue and BoolFalse are the inline boolean literals.
	BoolTrue  string
	BoolFalse string

	// AverageRequiresCast makes AVG over integral values cast its argument
	// to the float type, because the server otherwise truncates.
	AverageRequiresCast bool

	// ConcatOperator joins strings; empty means CONCAT(a, b).
	ConcatOperator string

	// MaxInlineString bounds the length of inlined string literals.
	MaxInlineString int

	// Types names the column type used by CAST for each kind.
	Types map[ir.Kind]string

	// Functions overrides portable function names. A value containing a
	// verb is a fmt pattern over the argument SQL ("SUBSTR(%s, %s, %s)");
	// otherwise it replaces the name.
	Functions map[string]string

	reserved map[string]bool
}

// QuoteIdent quotes name when it is reserved or not a plain identifier.
func (d *Dialect) QuoteIdent(name string) string {
	if name == "*" || (isPlainIdent(name) && !d.IsReserved(name)) {
		return name
	}
	if d.IdentQuoteOpen == 0 {
		return name
	}
	closing := string(d.IdentQuoteClose)
	escaped := strings.ReplaceAll(name, closing, closing+closing)
	return string(d.IdentQuoteOpen) + escaped + closing
}

func isPlainIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// IsReserved reports whether word is a reserved word of the dialect.
func (d *Dialect) IsReserved(word string) bool { return d.reserved[strings.ToUpper(word)] }

// safeChars may appear in inlined string literals. The set excludes quotes,
// backslashes, percent signs and question marks.
const safeChars = " _-.,@/"

// IsSafeLiteral reports whether v may be inlined into SQL text.
func (d *Dialect) IsSafeLiteral(v ir.Value) bool {
	switch x := v.(type) {
	case ir.Null, ir.Bool, ir.Int:
		return true
	case ir.Float:
		f := float64(x)
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	case ir.String:
		if len(x) > d.MaxInlineString {
			return false
		}
		for _, r := range string(x) {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			case r < 128 && strings.ContainsRune(safeChars, r):
			default:
				return false
			}
		}
		return true
	}
	return false
}

// Literal renders an inline literal. Callers check IsSafeLiteral first.
func (d *Dialect) Literal(v ir.Value) string {
	switch x := v.(type) {
	case ir.Null:
		return "NULL"
	case ir.Bool:
		if x {
			return d.BoolTrue
		}
		return d.BoolFalse
	case ir.Int:
		return strconv.FormatInt(int64(x), 10)
	case ir.Float:
		s := strconv.FormatFloat(float64(x), 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	case ir.String:
		return "'" + strings.ReplaceAll(string(x), "'", "''") + "'"
	}
	return "'" + strings.ReplaceAll(ir.FormatValue(v), "'", "''") + "'"
}

// TypeName returns the CAST target type for k.
func (d *Dialect) TypeName(k ir.Kind) string {
	if t, ok := d.Types[k]; ok {
		return t
	}
	return defaultTypes[k]
}

// Function renders a portable function call over already rendered args.
func (d *Dialect) Function(name string, args []string) string {
	if name == "COUNT" && len(args) == 0 {
		return "COUNT(*)"
	}
	if pattern, ok := d.Functions[name]; ok {
		if strings.Contains(pattern, "%") {
			vals := make([]any, len(args))
			for i, a := range args {
				vals[i] = a
			}
			return fmt.Sprintf(pattern, vals...)
		}
		name = pattern
	}
	return name + "(" + strings.Join(args, ", ") + ")"
}

// Concat renders string concatenation.
func (d *Dialect) Concat(left, right string) string {
	if d.ConcatOperator == "" {
		return "CONCAT(" + left + ", " + right + ")"
	}
	return "(" + left + " " + d.ConcatOperator + " " + right + ")"
}

// Rebind rewrites ? placeholders into the dialect's parameter syntax.
func (d *Dialect) Rebind(sql string) (string, error) {
	if d.Placeholders == nil {
		return sql, nil
	}
	return d.Placeholders.ReplacePlaceholders(sql)
}

var defaultTypes = map[ir.Kind]string{
	ir.KindInt:    "BIGINT",
	ir.KindFloat:  "DOUBLE PRECISION",
	ir.KindString: "VARCHAR(4000)",
	ir.KindBool:   "BOOLEAN",
	ir.KindTime:   "TIMESTAMP",
	ir.KindGuid:   "CHAR(36)",
}

// commonReserved lists words reserved in every supported dialect.
var commonReserved = []string{
	"ALL", "AND", "AS", "ASC", "BETWEEN", "BY", "CASE", "CHECK", "COLUMN",
	"CONSTRAINT", "CREATE", "CROSS", "DEFAULT", "DELETE", "DESC", "DISTINCT",
	"DROP", "ELSE", "END", "EXISTS", "FOR", "FOREIGN", "FROM", "FULL", "GROUP",
	"HAVING", "IN", "INDEX", "INNER", "INSERT", "INTO", "IS", "JOIN", "KEY",
	"LEFT", "LIKE", "LIMIT", "NOT", "NULL", "ON", "OR", "ORDER", "OUTER",
	"PRIMARY", "REFERENCES", "RIGHT", "SELECT", "SET", "TABLE", "THEN", "TO",
	"UNION", "UNIQUE", "UPDATE", "USER", "VALUES", "WHEN", "WHERE", "WITH",
}

func reservedSet(extra ...string) map[string]bool {
	m := make(map[string]bool, len(commonReserved)+len(extra))
	for _, w := range commonReserved {
		m[w] = true
	}
	for _, w := range extra {
		m[w] = true
	}
	return m
}
