package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/roach88/sooq/internal/dialect"
)

// createTestStore opens a fresh SQLite database in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testMigrations = fstest.MapFS{
	"migrations/00001_people.sql": &fstest.MapFile{Data: []byte(`-- +goose Up
CREATE TABLE people (id INTEGER PRIMARY KEY, name TEXT NOT NULL);

-- +goose Down
DROP TABLE people;
`)},
	"migrations/00002_seed.sql": &fstest.MapFile{Data: []byte(`-- +goose Up
INSERT INTO people (id, name) VALUES (1, 'Ada'), (2, 'Grace');

-- +goose Down
DELETE FROM people;
`)},
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
	if s.Dialect() != dialect.SQLite {
		t.Errorf("Dialect() = %v, want sqlite", s.Dialect().Name)
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name     string
		expected string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.verifyPragma(tt.name, tt.expected); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestMigrate_AppliesAndIsIdempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := s.Migrate(ctx, testMigrations, "migrations"); err != nil {
			t.Fatalf("Migrate() iteration %d failed: %v", i, err)
		}
	}

	rows, err := s.Query(ctx, "SELECT name FROM people ORDER BY id")
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			t.Fatalf("Scan() failed: %v", err)
		}
		names = append(names, n)
	}
	if len(names) != 2 || names[0] != "Ada" || names[1] != "Grace" {
		t.Errorf("names = %v, want [Ada Grace]", names)
	}
}

func TestMigrate_UnsupportedDialect(t *testing.T) {
	s, err := OpenDialect(dialect.DuckDB, "")
	if err != nil {
		t.Fatalf("OpenDialect(duckdb) failed: %v", err)
	}
	defer s.Close()

	err = s.Migrate(context.Background(), testMigrations, "migrations")
	if err == nil {
		t.Fatal("expected error for duckdb migrations")
	}
}

func TestOpenDialect_DuckDB(t *testing.T) {
	s, err := OpenDialect(dialect.DuckDB, "")
	if err != nil {
		t.Fatalf("OpenDialect(duckdb) failed: %v", err)
	}
	defer s.Close()

	var n int
	if err := s.DB().QueryRow("SELECT 1 + 1").Scan(&n); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if n != 2 {
		t.Errorf("SELECT 1 + 1 = %d", n)
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on empty store = %v", err)
	}
}

func TestSupportsMigrations(t *testing.T) {
	for _, name := range dialect.Names() {
		d, err := dialect.Get(name)
		if err != nil {
			t.Fatalf("Get(%q): %v", name, err)
		}
		want := name != "duckdb" && name != "oracle"
		if got := SupportsMigrations(d); got != want {
			t.Errorf("SupportsMigrations(%s) = %v, want %v", name, got, want)
		}
	}
}
