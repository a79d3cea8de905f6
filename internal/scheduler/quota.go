package scheduler

import (
	"sort"
	"time"
)

// QuotaReason explains why a quota check blocked a booking.
type QuotaReason string

const (
	QuotaReasonNone        QuotaReason = ""
	QuotaReasonSameDay     QuotaReason = "same_day"
	QuotaReasonWeeklyLimit QuotaReason = "weekly_limit"
)

// QuotaVerdict is the outcome of evaluating an owner's weekly allowance.
type QuotaVerdict struct {
	Allowed   bool
	Reason    QuotaReason
	UsedDates []string
	WeekStart time.Time
	WeekEnd   time.Time
}

// EvaluateQuota decides whether an owner holding the given bookings may book on day.
// Only bookings in QuotaStatuses that start inside day's week count.
func EvaluateQuota(day time.Time, owned []Booking) QuotaVerdict {
	weekStart, weekEnd := WeekWindow(day)
	verdict := QuotaVerdict{Allowed: true, WeekStart: weekStart, WeekEnd: weekEnd}

	used := make(map[string]struct{})
	for _, b := range owned {
		if !b.Status.In(QuotaStatuses) {
			continue
		}
		if b.Start.Before(weekStart) || !b.Start.Before(weekEnd) {
			continue
		}
		used[DateOf(b.Start)] = struct{}{}
	}

	verdict.UsedDates = make([]string, 0, len(used))
	for date := range used {
		verdict.UsedDates = append(verdict.UsedDates, date)
	}
	sort.Strings(verdict.UsedDates)

	if _, ok := used[DateOf(day)]; ok {
		verdict.Allowed = false
		verdict.Reason = QuotaReasonSameDay
		return verdict
	}
	if len(used) >= WeeklyDayLimit {
		verdict.Allowed = false
		verdict.Reason = QuotaReasonWeeklyLimit
	}
	return verdict
}
