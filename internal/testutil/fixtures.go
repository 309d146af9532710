// Package testutil provides the Contact demo database shared by tests,
// scenarios and CLI examples.
//
// The fixture holds seven contacts (ids 1, 2, 3, 50, 51, 52, 53) with type
// codes {Customer: 4, Employee: 2, Manager: 1}, a many-to-many Roles
// association, and a Vehicle hierarchy (Car, Bike, ExtendedBike) with a
// discriminator column and a required secondary table for bikes.
package testutil

import (
	"context"
	"embed"
	"io/fs"
	"path/filepath"
	"sync"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/sooq/internal/compiler"
	"github.com/roach88/sooq/internal/schema"
	"github.com/roach88/sooq/internal/store"
)

//go:embed fixtures
var fixtures embed.FS

// MigrationsDir is the goose directory inside Fixtures.
const MigrationsDir = "fixtures/migrations"

// ContactIDs lists the fixture contact keys in ascending order.
var ContactIDs = []int64{1, 2, 3, 50, 51, 52, 53}

// Fixtures returns the embedded fixture files (schema.yaml, schema.cue and
// migrations).
func Fixtures() fs.FS { return fixtures }

// SchemaYAML returns the raw YAML mapping.
func SchemaYAML() []byte {
	data, err := fixtures.ReadFile("fixtures/schema.yaml")
	if err != nil {
		panic(err)
	}
	return data
}

var loadSchema = sync.OnceValues(func() (*schema.Schema, error) {
	doc, err := compiler.ParseYAML(SchemaYAML())
	if err != nil {
		return nil, err
	}
	return compiler.Compile(doc)
})

// Schema returns the compiled fixture mapping. The schema is immutable and
// shared between tests.
func Schema(t testing.TB) *schema.Schema {
	t.Helper()
	s, err := loadSchema()
	if err != nil {
		t.Fatalf("compile fixture schema: %v", err)
	}
	return s
}

// SchemaCUE compiles the CUE rendition of the fixture mapping.
func SchemaCUE(t testing.TB) *schema.Schema {
	t.Helper()
	data, err := fixtures.ReadFile("fixtures/schema.cue")
	if err != nil {
		t.Fatalf("read schema.cue: %v", err)
	}
	v := cuecontext.New().CompileBytes(data, cue.Filename("schema.cue"))
	doc, err := compiler.CompileCUE(v)
	if err != nil {
		t.Fatalf("compile schema.cue: %v", err)
	}
	s, err := compiler.Compile(doc)
	if err != nil {
		t.Fatalf("link schema.cue: %v", err)
	}
	return s
}

// FixtureStore opens a SQLite database in a temp directory and migrates it
// to the seeded fixture state.
func FixtureStore(t testing.TB) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("open fixture store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Migrate(context.Background(), fixtures, MigrationsDir); err != nil {
		t.Fatalf("migrate fixture store: %v", err)
	}
	return s
}
