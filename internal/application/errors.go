package application

import (
	"errors"
	"fmt"
	"strings"

	"github.com/example/room-reservations/internal/scheduler"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a restored reservation collides with a live one.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrRoomConflict is returned when the room is held during the requested slot.
	ErrRoomConflict = errors.New("application: room conflict")
	// ErrParticipantConflict is returned when a person is already busy during the slot.
	ErrParticipantConflict = errors.New("application: participant conflict")
	// ErrParticipantNotFound is returned when a person id does not resolve.
	ErrParticipantNotFound = errors.New("application: participant not found")
	// ErrParticipantUnverified is returned when a person exists but is not verified.
	ErrParticipantUnverified = errors.New("application: participant unverified")
	// ErrQuotaExceeded is returned when the owner has used their weekly allowance.
	ErrQuotaExceeded = errors.New("application: quota exceeded")
	// ErrInvalidTransition is returned for status changes outside the lifecycle table.
	ErrInvalidTransition = errors.New("application: invalid transition")
	// ErrUnavailable is returned when storage times out or is busy. Callers may retry.
	ErrUnavailable = errors.New("application: unavailable")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

// RoomConflictError names the room and the reservation holding it.
type RoomConflictError struct {
	Floor         string
	Room          string
	ReservationID string
}

func (e *RoomConflictError) Error() string {
	return fmt.Sprintf("room %q on floor %q is already booked for this slot", e.Room, e.Floor)
}

func (e *RoomConflictError) Unwrap() error { return ErrRoomConflict }

// ParticipantError names the person that blocked a booking. Reason is one of
// ErrParticipantNotFound, ErrParticipantUnverified or ErrParticipantConflict.
type ParticipantError struct {
	PersonID      string
	Reason        error
	ReservationID string
}

func (e *ParticipantError) Error() string {
	switch e.Reason {
	case ErrParticipantNotFound:
		return fmt.Sprintf("participant %s was not found", e.PersonID)
	case ErrParticipantUnverified:
		return fmt.Sprintf("participant %s is not verified", e.PersonID)
	default:
		return fmt.Sprintf("participant %s already has a reservation during this slot", e.PersonID)
	}
}

func (e *ParticipantError) Unwrap() error { return e.Reason }

// QuotaError explains a refused booking in terms of the owner's week.
type QuotaError struct {
	Reason    scheduler.QuotaReason
	UsedDates []string
}

func (e *QuotaError) Error() string {
	if e.Reason == scheduler.QuotaReasonSameDay {
		return "owner already has a reservation on this date"
	}
	return fmt.Sprintf("owner already booked %d days this week (%s)", len(e.UsedDates), strings.Join(e.UsedDates, ", "))
}

func (e *QuotaError) Unwrap() error { return ErrQuotaExceeded }

// TransitionError reports a refused status change.
type TransitionError struct {
	From scheduler.Status
	To   scheduler.Status
	// Allowed lists the statuses a command may move From into.
	Allowed []scheduler.Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot change status from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
