package scheduler

import (
	"testing"
	"time"
)

var (
	roomA = RoomKey{Floor: "3F", Name: "Study A"}
	roomB = RoomKey{Floor: "3F", Name: "Study B"}
)

func slot(hour int) (time.Time, time.Time) {
	start := time.Date(2024, time.March, 5, hour, 0, 0, 0, Zone)
	return start, SlotEnd(start)
}

func booking(id, owner string, room RoomKey, hour int, status Status, participants ...string) Booking {
	start, end := slot(hour)
	return Booking{ID: id, OwnerID: owner, Room: room, Participants: participants, Start: start, End: end, Status: status}
}

func TestOverlaps(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, time.March, 5, 9, 0, 0, 0, Zone)
	cases := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd time.Time
		want                       bool
	}{
		{"identical", base, base.Add(time.Hour), base, base.Add(time.Hour), true},
		{"partial", base, base.Add(time.Hour), base.Add(30 * time.Minute), base.Add(90 * time.Minute), true},
		{"contained", base, base.Add(2 * time.Hour), base.Add(30 * time.Minute), base.Add(time.Hour), true},
		{"touching end", base, base.Add(time.Hour), base.Add(time.Hour), base.Add(2 * time.Hour), false},
		{"touching start", base.Add(time.Hour), base.Add(2 * time.Hour), base, base.Add(time.Hour), false},
		{"disjoint", base, base.Add(time.Hour), base.Add(3 * time.Hour), base.Add(4 * time.Hour), false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Overlaps(tc.aStart, tc.aEnd, tc.bStart, tc.bEnd); got != tc.want {
				t.Fatalf("Overlaps = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFindRoomConflict(t *testing.T) {
	t.Run("approved booking holds the room", func(t *testing.T) {
		existing := []Booking{booking("r1", "alice", roomA, 9, StatusApproved)}
		candidate := booking("new", "carol", roomA, 9, StatusPending)

		other, ok := FindRoomConflict(existing, candidate)
		if !ok || other.ID != "r1" {
			t.Fatalf("expected conflict with r1, got %+v %v", other, ok)
		}
	})

	t.Run("pending booking does not hold the room", func(t *testing.T) {
		existing := []Booking{booking("r1", "alice", roomA, 9, StatusPending)}
		candidate := booking("new", "carol", roomA, 9, StatusPending)

		if other, ok := FindRoomConflict(existing, candidate); ok {
			t.Fatalf("expected no conflict, got %+v", other)
		}
	})

	t.Run("other rooms and adjacent slots are free", func(t *testing.T) {
		existing := []Booking{
			booking("r1", "alice", roomB, 9, StatusApproved),
			booking("r2", "alice", roomA, 10, StatusOngoing),
		}
		candidate := booking("new", "carol", roomA, 9, StatusPending)

		if other, ok := FindRoomConflict(existing, candidate); ok {
			t.Fatalf("expected no conflict, got %+v", other)
		}
	})

	t.Run("candidate never conflicts with itself", func(t *testing.T) {
		self := booking("r1", "alice", roomA, 9, StatusApproved)
		if other, ok := FindRoomConflict([]Booking{self}, self); ok {
			t.Fatalf("expected no conflict, got %+v", other)
		}
	})
}

func TestFindPersonConflict(t *testing.T) {
	t.Run("participant of a pending booking is busy", func(t *testing.T) {
		existing := []Booking{booking("r1", "alice", roomB, 9, StatusPending, "bob")}
		start, end := slot(9)

		other, ok := FindPersonConflict(existing, "new", "bob", start, end)
		if !ok || other.ID != "r1" {
			t.Fatalf("expected conflict with r1, got %+v %v", other, ok)
		}
	})

	t.Run("owner of an existing booking is busy", func(t *testing.T) {
		existing := []Booking{booking("r1", "alice", roomB, 9, StatusApproved)}
		start, end := slot(9)

		if _, ok := FindPersonConflict(existing, "new", "alice", start, end); !ok {
			t.Fatal("expected alice to be busy")
		}
	})

	t.Run("terminal bookings never block", func(t *testing.T) {
		existing := []Booking{
			booking("r1", "alice", roomA, 9, StatusCancelled, "bob"),
			booking("r2", "bob", roomA, 9, StatusExpired),
			booking("r3", "bob", roomA, 9, StatusRejected),
		}
		start, end := slot(9)

		if other, ok := FindPersonConflict(existing, "new", "bob", start, end); ok {
			t.Fatalf("expected no conflict, got %+v", other)
		}
	})

	t.Run("excluded booking is ignored", func(t *testing.T) {
		existing := []Booking{booking("r1", "alice", roomA, 9, StatusApproved, "bob")}
		start, end := slot(9)

		if other, ok := FindPersonConflict(existing, "r1", "bob", start, end); ok {
			t.Fatalf("expected no conflict, got %+v", other)
		}
	})

	t.Run("touching windows do not conflict", func(t *testing.T) {
		existing := []Booking{booking("r1", "alice", roomA, 9, StatusApproved, "bob")}
		start, end := slot(10)

		if other, ok := FindPersonConflict(existing, "new", "bob", start, end); ok {
			t.Fatalf("expected no conflict, got %+v", other)
		}
	})
}
