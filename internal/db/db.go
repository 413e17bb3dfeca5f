// Package db opens the relational store and keeps its schema current.
//
// Two drivers are supported:
//   - "sqlite" (modernc.org/sqlite, pure Go) - the default, also used by tests
//   - "pgx"    (jackc/pgx stdlib)             - PostgreSQL
//
// Every pairing mutation runs inside a transaction, so the connection
// settings below matter: SQLite write transactions start with
// BEGIN IMMEDIATE (via _txlock) and wait on busy_timeout instead of failing,
// which serializes writers across the pool.
package db

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

const sqlitePragmas = "_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_txlock=immediate"

// Open connects to the database and verifies the connection with a ping.
//
// For sqlite, dsn is a file path (its directory is created if missing) or
// ":memory:". A dsn that already carries a query string is used verbatim.
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case DriverSQLite:
		return openSQLite(ctx, dsn)
	case DriverPostgres:
		return openPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", driver)
	}
}

func openSQLite(ctx context.Context, path string) (*sqlx.DB, error) {
	memory := path == ":memory:"

	dsn := path
	switch {
	case memory:
		dsn = path + "?_pragma=foreign_keys(1)&_txlock=immediate"
	case strings.Contains(path, "?"):
	default:
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("db: creating data directory: %w", err)
		}
		dsn = path + "?" + sqlitePragmas
	}

	conn, err := sqlx.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("db: opening sqlite: %w", err)
	}

	// Each connection to ":memory:" is a separate database.
	if memory {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("db: pinging sqlite: %w", err)
	}

	slog.Debug("database connected", slog.String("driver", DriverSQLite), slog.String("path", path))
	return conn, nil
}

func openPostgres(ctx context.Context, dsn string) (*sqlx.DB, error) {
	conn, err := sqlx.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("db: opening postgres: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("db: pinging postgres: %w", err)
	}

	slog.Debug("database connected", slog.String("driver", DriverPostgres))
	return conn, nil
}
