package store

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/roach88/sooq/internal/dialect"
)

// gooseDialects maps dialect names to goose dialect names. DuckDB and Oracle
// have no goose version-table support.
var gooseDialects = map[string]string{
	"sqlite":    "sqlite3",
	"postgres":  "postgres",
	"mysql":     "mysql",
	"mssql":     "mssql",
	"mssql2012": "mssql",
}

// SupportsMigrations reports whether Migrate can run against d.
func SupportsMigrations(d *dialect.Dialect) bool {
	_, ok := gooseDialects[d.Name]
	return ok
}

// gooseMu guards goose's package-level base FS, dialect and logger.
var gooseMu sync.Mutex

// Migrate applies all pending goose migrations found in dir of fsys.
func (s *Store) Migrate(ctx context.Context, fsys fs.FS, dir string) error {
	name, ok := gooseDialects[s.dialect.Name]
	if !ok {
		return fmt.Errorf("migrations are not supported for dialect %q", s.dialect.Name)
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(gooseLogger{s.logger})

	if err := goose.SetDialect(name); err != nil {
		return fmt.Errorf("goose set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, dir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, s.db)
	if err != nil {
		return fmt.Errorf("goose version: %w", err)
	}
	s.logger.Info("migrations applied", "dialect", s.dialect.Name, "dir", dir, "version", version)
	return nil
}

// gooseLogger routes goose output to slog at debug level.
type gooseLogger struct {
	l *slog.Logger
}

func (g gooseLogger) Printf(format string, v ...any) {
	g.l.Debug(fmt.Sprintf(format, v...))
}

func (g gooseLogger) Fatalf(format string, v ...any) {
	g.l.Error(fmt.Sprintf(format, v...))
}
