package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/room-reservations/internal/persistence"
)

// mapRepoError translates storage failures into the application taxonomy.
// Optimistic version mismatches and busy or timed out storage become
// ErrUnavailable so the caller can retry.
func mapRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrUnavailable),
		errors.Is(err, ErrRoomConflict),
		errors.Is(err, ErrAlreadyExists):
		return err
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrStaleVersion):
		return fmt.Errorf("%w: reservation was modified concurrently", ErrUnavailable)
	case errors.Is(err, persistence.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

func isNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound)
}
