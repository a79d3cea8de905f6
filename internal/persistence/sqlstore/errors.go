package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/example/room-reservations/internal/persistence"
)

// ErrorMapper maps driver errors to persistence layer errors.
type ErrorMapper struct{}

// NewErrorMapper creates a new error mapper.
func NewErrorMapper() *ErrorMapper {
	return &ErrorMapper{}
}

// MapError wraps err with the matching persistence sentinel, keeping the
// driver error in the chain.
func (em *ErrorMapper) MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ErrNotFound
	}
	if isPersistenceError(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", persistence.ErrUnavailable, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return mapPostgresError(pqErr, err)
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		if mapped := mapSQLiteCode(liteErr.Code(), err); mapped != nil {
			return mapped
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", persistence.ErrUnavailable, err)
	}

	return mapByMessage(err)
}

func isPersistenceError(err error) bool {
	for _, sentinel := range []error{
		persistence.ErrNotFound,
		persistence.ErrDuplicate,
		persistence.ErrConstraintViolation,
		persistence.ErrForeignKeyViolation,
		persistence.ErrStaleVersion,
		persistence.ErrUnavailable,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func mapPostgresError(pqErr *pq.Error, err error) error {
	switch pqErr.Code {
	case "23505":
		return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
	case "23503":
		return fmt.Errorf("%w: %v", persistence.ErrForeignKeyViolation, err)
	case "23514", "23502":
		return fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
	case "40001", "40P01", "55P03", "57014":
		return fmt.Errorf("%w: %v", persistence.ErrUnavailable, err)
	}
	if pqErr.Code.Class() == "08" {
		return fmt.Errorf("%w: %v", persistence.ErrUnavailable, err)
	}
	return err
}

func mapSQLiteCode(code int, err error) error {
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return fmt.Errorf("%w: %v", persistence.ErrForeignKeyViolation, err)
	case sqlite3.SQLITE_CONSTRAINT_CHECK, sqlite3.SQLITE_CONSTRAINT_NOTNULL:
		return fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
	}
	switch code & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return fmt.Errorf("%w: %v", persistence.ErrUnavailable, err)
	case sqlite3.SQLITE_CONSTRAINT:
		return fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
	}
	return nil
}

// mapByMessage covers drivers and wrappers that only surface text.
func mapByMessage(err error) error {
	msg := err.Error()
	switch {
	case containsAny(msg, "UNIQUE constraint failed", "duplicate key value"):
		return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
	case containsAny(msg, "FOREIGN KEY constraint failed", "foreign key constraint"):
		return fmt.Errorf("%w: %v", persistence.ErrForeignKeyViolation, err)
	case containsAny(msg, "CHECK constraint failed", "NOT NULL constraint failed"):
		return fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
	case containsAny(msg, "database is locked", "database table is locked", "SQLITE_BUSY", "connection refused", "bad connection"):
		return fmt.Errorf("%w: %v", persistence.ErrUnavailable, err)
	}
	return err
}

func containsAny(s string, substrings ...string) bool {
	for _, substr := range substrings {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}

// IsRetryable reports whether err is a transient storage failure.
func IsRetryable(err error) bool {
	return errors.Is(err, persistence.ErrUnavailable)
}
