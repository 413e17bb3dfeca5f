// Package sqlstore implements the repository interfaces on top of sqlx.
//
// Queries are written with ? placeholders and passed through Rebind, so the
// same SQL runs on SQLite and PostgreSQL.
//
// Pairing mutations follow one rule: every precondition that matters for
// correctness is re-checked in the WHERE clause of the UPDATE that depends
// on it, and the number of affected rows decides the outcome. A SELECT
// before the UPDATE only chooses which error to report.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/sakif/pairing-service/internal/repository"
)

var (
	_ repository.UserRepository    = (*Store)(nil)
	_ repository.PairingRepository = (*Store)(nil)
	_ repository.Pinger            = (*Store)(nil)
)

const userColumns = `id, email, full_name, picture, pairing_code, partner_id, created_at, updated_at`

// Store is the sqlx-backed Identity Store.
type Store struct {
	db *sqlx.DB
}

// New wraps an open, migrated connection.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) rebind(query string) string {
	return s.db.Rebind(query)
}

// withTx runs fn in a transaction. fn's error rolls everything back;
// a nil return commits.
func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin transaction: %w", err)
	}
	// Rollback after Commit is a no-op.
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: commit: %w", err)
	}
	return nil
}

// uniqueViolationOn reports whether err is a unique-constraint violation
// mentioning column (or an index/constraint named after it).
func uniqueViolationOn(err error, column string) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && strings.Contains(pgErr.ConstraintName, column)
	}

	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, column)
}

// rowsAffected unwraps the affected row count of an Exec.
func rowsAffected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlstore: checking rows affected: %w", err)
	}
	return n, nil
}
