package scheduler

import (
	"testing"
	"time"
)

func at(day, hour int) time.Time {
	// March 2024: the 4th is a Monday.
	return time.Date(2024, time.March, day, hour, 0, 0, 0, Zone)
}

func owned(id string, start time.Time, status Status) Booking {
	return Booking{ID: id, OwnerID: "alice", Room: roomA, Start: start, End: SlotEnd(start), Status: status}
}

func TestWeekWindow(t *testing.T) {
	t.Parallel()

	cases := []time.Time{at(4, 0), at(6, 13), at(10, 23)}
	for _, ts := range cases {
		start, end := WeekWindow(ts)
		if !start.Equal(at(4, 0)) || !end.Equal(at(11, 0)) {
			t.Fatalf("WeekWindow(%s) = [%s, %s)", ts, start, end)
		}
	}

	start, _ := WeekWindow(at(11, 0))
	if !start.Equal(at(11, 0)) {
		t.Fatalf("Monday should start its own week, got %s", start)
	}
}

func TestEvaluateQuota(t *testing.T) {
	t.Parallel()

	t.Run("allows first and second day", func(t *testing.T) {
		t.Parallel()
		verdict := EvaluateQuota(at(6, 0), []Booking{owned("r1", at(4, 10), StatusPending)})
		if !verdict.Allowed {
			t.Fatalf("expected allowed, got %+v", verdict)
		}
		if len(verdict.UsedDates) != 1 || verdict.UsedDates[0] != "2024-03-04" {
			t.Fatalf("unexpected used dates %v", verdict.UsedDates)
		}
	})

	t.Run("blocks third distinct day", func(t *testing.T) {
		t.Parallel()
		verdict := EvaluateQuota(at(8, 0), []Booking{
			owned("r1", at(4, 10), StatusApproved),
			owned("r2", at(6, 10), StatusPending),
		})
		if verdict.Allowed || verdict.Reason != QuotaReasonWeeklyLimit {
			t.Fatalf("expected weekly_limit, got %+v", verdict)
		}
	})

	t.Run("blocks second booking on the same day", func(t *testing.T) {
		t.Parallel()
		verdict := EvaluateQuota(at(4, 0), []Booking{owned("r1", at(4, 15), StatusOngoing)})
		if verdict.Allowed || verdict.Reason != QuotaReasonSameDay {
			t.Fatalf("expected same_day, got %+v", verdict)
		}
	})

	t.Run("ignores inactive and out-of-week bookings", func(t *testing.T) {
		t.Parallel()
		verdict := EvaluateQuota(at(8, 0), []Booking{
			owned("r1", at(4, 10), StatusCancelled),
			owned("r2", at(5, 10), StatusExpired),
			owned("r3", at(3, 10), StatusApproved),
			owned("r4", at(11, 10), StatusApproved),
			owned("r5", at(6, 10), StatusPending),
		})
		if !verdict.Allowed {
			t.Fatalf("expected allowed, got %+v", verdict)
		}
	})
}

func TestDateOfUsesServiceZone(t *testing.T) {
	t.Parallel()

	// 17:30 UTC on the 4th is 01:30 on the 5th in UTC+8.
	ts := time.Date(2024, time.March, 4, 17, 30, 0, 0, time.UTC)
	if got := DateOf(ts); got != "2024-03-05" {
		t.Fatalf("DateOf = %s", got)
	}
	if IsSlotAligned(ts) {
		t.Fatal("17:30 is not slot aligned")
	}
}
