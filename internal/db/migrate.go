package db

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
)

//go:embed migrations
var migrationsFS embed.FS

// dialects maps drivers to goose dialects and their migration directories.
var dialects = map[string]struct {
	goose string
	dir   string
}{
	DriverSQLite:   {goose: "sqlite3", dir: "migrations/sqlite"},
	DriverPostgres: {goose: "postgres", dir: "migrations/postgres"},
}

// goose keeps its dialect and filesystem in package state.
var gooseMu sync.Mutex

// Migrate applies every pending migration for the connection's driver.
func Migrate(conn *sqlx.DB, logger *slog.Logger) error {
	d, ok := dialects[conn.DriverName()]
	if !ok {
		return fmt.Errorf("db: no migrations for driver %q", conn.DriverName())
	}

	sub, err := fs.Sub(migrationsFS, d.dir)
	if err != nil {
		return fmt.Errorf("db: migrations directory: %w", err)
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(sub)
	goose.SetLogger(gooseLogger{logger: logger})
	if err := goose.SetDialect(d.goose); err != nil {
		return fmt.Errorf("db: setting goose dialect: %w", err)
	}

	if err := goose.Up(conn.DB, "."); err != nil {
		return fmt.Errorf("db: running migrations: %w", err)
	}
	return nil
}

// gooseLogger routes goose output into slog.
type gooseLogger struct {
	logger *slog.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.logger.Debug(fmt.Sprintf(format, v...), slog.String("component", "goose"))
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.logger.Error(fmt.Sprintf(format, v...), slog.String("component", "goose"))
	os.Exit(1)
}
