// Package store manages database connections for the query engine.
//
// A Store pairs a *sql.DB with the dialect whose SQL it accepts. The sqlite3
// (mattn/go-sqlite3), pgx (jackc/pgx stdlib) and duckdb (duckdb-go) drivers
// are linked in.
//
// # Database Configuration
//
// SQLite connections are opened with:
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: 5-second lock wait
//   - foreign_keys=ON: Referential integrity
//   - a single connection, since SQLite allows one writer
//
// # Migrations
//
// Migrate runs goose SQL migrations from any fs.FS, typically an embedded
// directory. The fixture database used by tests is built this way.
package store
