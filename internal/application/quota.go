package application

import (
	"context"
	"time"

	"github.com/example/room-reservations/internal/scheduler"
)

// QuotaEnforcer applies the weekly day limit to reservation owners. Both the
// pre-flight check and reservation creation go through CheckWeeklyLimit.
type QuotaEnforcer struct {
	reservations ReservationRepository
}

// NewQuotaEnforcer wires the enforcer.
func NewQuotaEnforcer(reservations ReservationRepository) *QuotaEnforcer {
	return &QuotaEnforcer{reservations: reservations}
}

// CheckWeeklyLimit evaluates whether ownerID may book on day.
func (q *QuotaEnforcer) CheckWeeklyLimit(ctx context.Context, ownerID string, day time.Time) (QuotaCheck, error) {
	weekStart, weekEnd := scheduler.WeekWindow(day)
	owned, err := q.reservations.ListReservations(ctx, ReservationFilter{
		OwnerID:         ownerID,
		Statuses:        scheduler.QuotaStatuses,
		StartsAtOrAfter: &weekStart,
		StartsBefore:    &weekEnd,
	})
	if err != nil {
		return QuotaCheck{}, mapRepoError(err)
	}

	verdict := scheduler.EvaluateQuota(day, toBookings(owned))
	return QuotaCheck{
		Blocked:   !verdict.Allowed,
		Reason:    verdict.Reason,
		Date:      scheduler.DateOf(day),
		UsedDates: verdict.UsedDates,
		WeekStart: scheduler.DateOf(verdict.WeekStart),
		WeekEnd:   scheduler.DateOf(verdict.WeekEnd.Add(-time.Nanosecond)),
	}, nil
}

// enforce returns a *QuotaError when the check blocks.
func (q *QuotaEnforcer) enforce(ctx context.Context, ownerID string, day time.Time) error {
	check, err := q.CheckWeeklyLimit(ctx, ownerID, day)
	if err != nil {
		return err
	}
	if check.Blocked {
		return &QuotaError{Reason: check.Reason, UsedDates: check.UsedDates}
	}
	return nil
}
