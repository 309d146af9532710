package dialect

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/roach88/sooq/internal/ir"
)

// SQLite defines the dialect for SQLite (mattn/go-sqlite3).
var SQLite = &Dialect{
	Name:            "sqlite",
	DriverName:      "sqlite3",
	Placeholders:    squirrel.Question,
	IdentQuoteOpen:  '"',
	IdentQuoteClose: '"',
	MaxIdentLength:  128,
	RowLimit:        LimitOffset,
	NoLimit:         "-1",
	BoolTrue:        "1",
	BoolFalse:       "0",
	ConcatOperator:  "||",
	MaxInlineString: 64,
	Types: map[ir.Kind]string{
		ir.KindInt:    "INTEGER",
		ir.KindFloat:  "REAL",
		ir.KindString: "TEXT",
		ir.KindBool:   "INTEGER",
		ir.KindTime:   "TEXT",
		ir.KindGuid:   "TEXT",
	},
	Functions: map[string]string{
		"SUBSTRING":      "SUBSTR",
		"SUBSTRING_FROM": "SUBSTR",
		"CEILING":        "CEIL",
		"YEAR":           "CAST(strftime('%%Y', %s) AS INTEGER)",
		"MONTH":          "CAST(strftime('%%m', %s) AS INTEGER)",
		"DAY":            "CAST(strftime('%%d', %s) AS INTEGER)",
	},
	reserved: reservedSet("ABORT", "AUTOINCREMENT", "GLOB", "ISNULL", "NOTNULL", "OFFSET", "PRAGMA", "REGEXP"),
}

// Postgres defines the dialect for PostgreSQL (jackc/pgx stdlib driver).
var Postgres = &Dialect{
	Name:            "postgres",
	DriverName:      "pgx",
	Placeholders:    squirrel.Dollar,
	IdentQuoteOpen:  '"',
	IdentQuoteClose: '"',
	MaxIdentLength:  63,
	RowLimit:        LimitOffset,
	BoolTrue:        "TRUE",
	BoolFalse:       "FALSE",
	ConcatOperator:  "||",
	MaxInlineString: 64,
	Types: map[ir.Kind]string{
		ir.KindString: "TEXT",
		ir.KindGuid:   "UUID",
	},
	Functions: map[string]string{
		"SUBSTRING":      "SUBSTR",
		"SUBSTRING_FROM": "SUBSTR",
		"YEAR":           "CAST(EXTRACT(YEAR FROM %s) AS INTEGER)",
		"MONTH":          "CAST(EXTRACT(MONTH FROM %s) AS INTEGER)",
		"DAY":            "CAST(EXTRACT(DAY FROM %s) AS INTEGER)",
	},
	reserved: reservedSet("ANALYSE", "ANALYZE", "ARRAY", "OFFSET", "ONLY", "RETURNING", "SYMMETRIC"),
}

// MySQL defines the dialect for MySQL.
var MySQL = &Dialect{
	Name:            "mysql",
	DriverName:      "mysql",
	Placeholders:    squirrel.Question,
	IdentQuoteOpen:  '`',
	IdentQuoteClose: '`',
	MaxIdentLength:  64,
	RowLimit:        LimitComma,
	NoLimit:         "18446744073709551615",
	BoolTrue:        "TRUE",
	BoolFalse:       "FALSE",
	MaxInlineString: 64,
	Types: map[ir.Kind]string{
		ir.KindInt:    "SIGNED",
		ir.KindFloat:  "DOUBLE",
		ir.KindString: "CHAR",
		ir.KindBool:   "UNSIGNED",
		ir.KindTime:   "DATETIME",
		ir.KindGuid:   "CHAR(36)",
	},
	Functions: map[string]string{
		"LENGTH": "CHAR_LENGTH",
		"LN":     "LN",
	},
	reserved: reservedSet("DIV", "DUAL", "INTERVAL", "KEYS", "MOD", "RANGE", "READ", "RLIKE", "SHOW"),
}

// MSSQL defines the dialect for Microsoft SQL Server before 2012.
var MSSQL = &Dialect{
	Name:                "mssql",
	DriverName:          "sqlserver",
	Placeholders:        squirrel.AtP,
	IdentQuoteOpen:      '[',
	IdentQuoteClose:     ']',
	MaxIdentLength:      128,
	RowLimit:            TopRowNumber,
	BoolTrue:            "1",
	BoolFalse:           "0",
	AverageRequiresCast: true,
	ConcatOperator:      "+",
	MaxInlineString:     64,
	Types: map[ir.Kind]string{
		ir.KindFloat:  "FLOAT",
		ir.KindString: "NVARCHAR(4000)",
		ir.KindBool:   "BIT",
		ir.KindTime:   "DATETIME",
		ir.KindGuid:   "UNIQUEIDENTIFIER",
	},
	Functions: map[string]string{
		"LENGTH":         "LEN",
		"SUBSTRING_FROM": "SUBSTRING(%[1]s, %[2]s, LEN(%[1]s))",
		"TRIM":           "LTRIM(RTRIM(%s))",
		"LN":             "LOG",
		"POWER":          "POWER",
	},
	reserved: reservedSet("IDENTITY", "PERCENT", "PLAN", "PROC", "TOP", "TRAN", "FILE", "OPEN"),
}

// MSSQL2012 defines the dialect for SQL Server 2012 and later.
var MSSQL2012 = func() *Dialect {
	d := *MSSQL
	d.Name = "mssql2012"
	d.RowLimit = OffsetFetch
	return &d
}()

// Oracle defines the dialect for Oracle Database.
var Oracle = &Dialect{
	Name:            "oracle",
	DriverName:      "oracle",
	Placeholders:    squirrel.Colon,
	IdentQuoteOpen:  '"',
	IdentQuoteClose: '"',
	MaxIdentLength:  30,
	RowLimit:        RowNumber,
	LegacyOuterJoin: true,
	BoolTrue:        "1",
	BoolFalse:       "0",
	ConcatOperator:  "||",
	MaxInlineString: 64,
	Types: map[ir.Kind]string{
		ir.KindInt:    "NUMBER(19)",
		ir.KindFloat:  "BINARY_DOUBLE",
		ir.KindString: "VARCHAR2(4000)",
		ir.KindBool:   "NUMBER(1)",
		ir.KindTime:   "DATE",
		ir.KindGuid:   "RAW(16)",
	},
	Functions: map[string]string{
		"SUBSTRING":      "SUBSTR",
		"SUBSTRING_FROM": "SUBSTR",
		"CEILING":        "CEIL",
		"MOD":            "MOD",
		"YEAR":           "EXTRACT(YEAR FROM %s)",
		"MONTH":          "EXTRACT(MONTH FROM %s)",
		"DAY":            "EXTRACT(DAY FROM %s)",
	},
	reserved: reservedSet("ACCESS", "LEVEL", "MODE", "NUMBER", "ROWID", "ROWNUM", "SIZE", "START", "SYSDATE", "UID"),
}

// DuckDB defines the dialect for DuckDB (duckdb-go).
var DuckDB = &Dialect{
	Name:            "duckdb",
	DriverName:      "duckdb",
	Placeholders:    squirrel.Question,
	IdentQuoteOpen:  '"',
	IdentQuoteClose: '"',
	MaxIdentLength:  128,
	RowLimit:        LimitOffset,
	BoolTrue:        "TRUE",
	BoolFalse:       "FALSE",
	ConcatOperator:  "||",
	MaxInlineString: 64,
	Types: map[ir.Kind]string{
		ir.KindFloat:  "DOUBLE",
		ir.KindString: "VARCHAR",
		ir.KindGuid:   "UUID",
	},
	Functions: map[string]string{
		"SUBSTRING_FROM": "SUBSTRING",
		"LN":             "LN",
	},
	reserved: reservedSet("ANALYZE", "ARRAY", "OFFSET", "PIVOT", "QUALIFY", "RETURNING", "SUMMARIZE", "UNPIVOT"),
}

// registry holds the registered dialects.
var registry = map[string]*Dialect{
	SQLite.Name:    SQLite,
	Postgres.Name:  Postgres,
	MySQL.Name:     MySQL,
	MSSQL.Name:     MSSQL,
	MSSQL2012.Name: MSSQL2012,
	Oracle.Name:    Oracle,
	DuckDB.Name:    DuckDB,
}

var aliases = map[string]string{
	"sqlite3":    "sqlite",
	"postgresql": "postgres",
	"pg":         "postgres",
	"pgx":        "postgres",
	"sqlserver":  "mssql",
	"mariadb":    "mysql",
}

// Get returns the dialect named name (case-insensitive, with common aliases).
func Get(name string) (*Dialect, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := aliases[key]; ok {
		key = alias
	}
	if d, ok := registry[key]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("unknown dialect %q (known: %s)", name, strings.Join(Names(), ", "))
}

// Names lists registered dialect names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
