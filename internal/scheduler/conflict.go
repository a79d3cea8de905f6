package scheduler

import (
	"slices"
	"time"
)

// RoomKey identifies a room by its natural key.
type RoomKey struct {
	Floor string
	Name  string
}

// Booking is the conflict-relevant projection of a reservation.
type Booking struct {
	ID           string
	OwnerID      string
	Room         RoomKey
	Participants []string
	Start        time.Time
	End          time.Time
	Status       Status
}

// Involves reports whether personID owns or participates in the booking.
func (b Booking) Involves(personID string) bool {
	return b.OwnerID == personID || slices.Contains(b.Participants, personID)
}

// Overlaps applies the half-open interval test: touching windows do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// FindRoomConflict returns the first booking that holds candidate's room during its window.
func FindRoomConflict(existing []Booking, candidate Booking) (Booking, bool) {
	for _, other := range existing {
		if other.ID == candidate.ID || other.Room != candidate.Room {
			continue
		}
		if !other.Status.In(RoomBlockingStatuses) {
			continue
		}
		if Overlaps(other.Start, other.End, candidate.Start, candidate.End) {
			return other, true
		}
	}
	return Booking{}, false
}

// FindPersonConflict returns the first booking, other than excludeID, that keeps
// personID busy during [start, end).
func FindPersonConflict(existing []Booking, excludeID, personID string, start, end time.Time) (Booking, bool) {
	for _, other := range existing {
		if other.ID == excludeID || !other.Involves(personID) {
			continue
		}
		if !other.Status.In(ParticipantBlockingStatuses) {
			continue
		}
		if Overlaps(other.Start, other.End, start, end) {
			return other, true
		}
	}
	return Booking{}, false
}
