package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/scheduler"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var err *ValidationError
	if err.Error() != "" {
		t.Fatalf("expected empty string for nil error, got %q", err.Error())
	}

	empty := &ValidationError{}
	if got := empty.Error(); got != "validation failed" {
		t.Fatalf("expected generic message for empty error, got %q", got)
	}

	withFields := &ValidationError{FieldErrors: map[string]string{"field": "invalid"}}
	if got := withFields.Error(); got != "validation failed" {
		t.Fatalf("expected consistent message for populated error, got %q", got)
	}
}

func TestValidationError_HasErrors(t *testing.T) {
	t.Parallel()

	if err := (&ValidationError{}).HasErrors(); err {
		t.Fatalf("expected HasErrors to report false for empty error")
	}

	if err := (&ValidationError{FieldErrors: map[string]string{"field": "bad"}}).HasErrors(); !err {
		t.Fatalf("expected HasErrors to report true when fields are present")
	}
}

func TestValidationError_AddAndMerge(t *testing.T) {
	t.Parallel()

	base := &ValidationError{}
	base.add("first", "value")
	if got := base.FieldErrors["first"]; got != "value" {
		t.Fatalf("expected add to populate map, got %q", got)
	}

	other := &ValidationError{FieldErrors: map[string]string{"second": "another"}}
	base.merge(other)
	if got := base.FieldErrors["second"]; got != "another" {
		t.Fatalf("expected merge to copy field, got %q", got)
	}

	base.merge(nil)
	if len(base.FieldErrors) != 2 {
		t.Fatalf("expected merge with nil to leave fields unchanged")
	}
}

func TestTypedErrorsUnwrapToSentinels(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		err      error
		sentinel error
		kind     string
	}{
		{"room conflict", &RoomConflictError{Floor: "Ground Floor", Room: "Discussion Room"}, ErrRoomConflict, "room_conflict"},
		{"participant not found", &ParticipantError{PersonID: "p-1", Reason: ErrParticipantNotFound}, ErrParticipantNotFound, "participant_not_found"},
		{"participant unverified", &ParticipantError{PersonID: "p-1", Reason: ErrParticipantUnverified}, ErrParticipantUnverified, "participant_unverified"},
		{"participant conflict", &ParticipantError{PersonID: "p-1", Reason: ErrParticipantConflict}, ErrParticipantConflict, "participant_conflict"},
		{"quota", &QuotaError{Reason: scheduler.QuotaReasonWeeklyLimit, UsedDates: []string{"2025-03-10", "2025-03-12"}}, ErrQuotaExceeded, "quota_exceeded"},
		{"transition", &TransitionError{From: scheduler.StatusRejected, To: scheduler.StatusApproved}, ErrInvalidTransition, "invalid_transition"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if !errors.Is(tc.err, tc.sentinel) {
				t.Fatalf("expected %v to unwrap to %v", tc.err, tc.sentinel)
			}
			if got := ErrorKind(fmt.Errorf("wrapped: %w", tc.err)); got != tc.kind {
				t.Fatalf("ErrorKind = %q, want %q", got, tc.kind)
			}
		})
	}
}

func TestParticipantErrorNamesPerson(t *testing.T) {
	t.Parallel()

	err := &ParticipantError{PersonID: "2021-00099", Reason: ErrParticipantUnverified}
	if !strings.Contains(err.Error(), "2021-00099") {
		t.Fatalf("expected message to name the participant, got %q", err.Error())
	}
}

func TestMapRepoError(t *testing.T) {
	t.Parallel()

	if err := mapRepoError(persistence.ErrNotFound); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := mapRepoError(persistence.ErrStaleVersion); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected stale version to be retryable, got %v", err)
	}
	if err := mapRepoError(fmt.Errorf("query: %w", persistence.ErrUnavailable)); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if err := mapRepoError(context.DeadlineExceeded); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected deadline to map to unavailable, got %v", err)
	}
	other := errors.New("boom")
	if err := mapRepoError(other); err != other {
		t.Fatalf("expected unknown errors to pass through, got %v", err)
	}
}
