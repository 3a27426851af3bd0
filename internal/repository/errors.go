package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// ErrNotFound is returned by mutations that matched no row
var ErrNotFound = errors.New("record not found")

// ConstraintKind classifies storage constraint violations
type ConstraintKind string

const (
	ConstraintUnique     ConstraintKind = "unique"
	ConstraintForeignKey ConstraintKind = "foreign_key"
	ConstraintCheck      ConstraintKind = "check"
)

// ConstraintError is a backend-neutral constraint violation. Constraint holds
// the constraint name (postgres) or the failing column list (sqlite).
type ConstraintError struct {
	Kind       ConstraintKind
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%s constraint violated (%s): %v", e.Kind, e.Constraint, e.Err)
}

func (e *ConstraintError) Unwrap() error {
	return e.Err
}

// Mentions reports whether the violated constraint refers to name
func (e *ConstraintError) Mentions(name string) bool {
	return strings.Contains(e.Constraint, name)
}

// AsConstraintError extracts a ConstraintError from err
func AsConstraintError(err error) (*ConstraintError, bool) {
	var ce *ConstraintError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

func translateError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return &ConstraintError{Kind: ConstraintUnique, Constraint: pgErr.ConstraintName, Err: err}
		case "23503":
			return &ConstraintError{Kind: ConstraintForeignKey, Constraint: pgErr.ConstraintName, Err: err}
		case "23514":
			return &ConstraintError{Kind: ConstraintCheck, Constraint: pgErr.ConstraintName, Err: err}
		}
		return err
	}

	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
			return &ConstraintError{Kind: ConstraintUnique, Constraint: sqliteDetail(err), Err: err}
		case sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY:
			return &ConstraintError{Kind: ConstraintForeignKey, Constraint: sqliteDetail(err), Err: err}
		case sqlite3lib.SQLITE_CONSTRAINT_CHECK:
			return &ConstraintError{Kind: ConstraintCheck, Constraint: sqliteDetail(err), Err: err}
		case sqlite3lib.SQLITE_CONSTRAINT_TRIGGER:
			// ON DELETE RESTRICT is enforced as a trigger and reports 1811
			if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
				return &ConstraintError{Kind: ConstraintForeignKey, Constraint: sqliteDetail(err), Err: err}
			}
		}
	}
	return err
}

// sqliteDetail pulls "teams.team_no" out of "UNIQUE constraint failed: teams.team_no"
func sqliteDetail(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, "failed: "); i >= 0 {
		msg = msg[i+len("failed: "):]
	}
	// modernc appends the extended result code, e.g. " (2067)"
	if i := strings.LastIndex(msg, " ("); i >= 0 && strings.HasSuffix(msg, ")") {
		msg = msg[:i]
	}
	return strings.TrimSpace(msg)
}
