package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConstraintViolation is returned when a record breaks a schema rule.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrForeignKeyViolation is returned when a referenced record is missing.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
	// ErrStaleVersion is returned when an optimistic update lost a race.
	ErrStaleVersion = errors.New("persistence: stale version")
	// ErrUnavailable is returned for timeouts, lock contention and serialization failures.
	ErrUnavailable = errors.New("persistence: storage unavailable")
)
