package persistence

import "slices"

// Matches reports whether reservation satisfies every set field of the filter.
func (f ReservationFilter) Matches(r Reservation) bool {
	if f.Floor != "" && r.Floor != f.Floor {
		return false
	}
	if f.RoomName != "" && r.RoomName != f.RoomName {
		return false
	}
	if f.OwnerID != "" && r.OwnerID != f.OwnerID {
		return false
	}
	if f.PersonID != "" && !r.Involves(f.PersonID) {
		return false
	}
	if f.Date != "" && r.Date != f.Date {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, r.Status) {
		return false
	}
	if f.StartsBefore != nil && !r.Start.Before(*f.StartsBefore) {
		return false
	}
	if f.StartsAtOrAfter != nil && r.Start.Before(*f.StartsAtOrAfter) {
		return false
	}
	if f.EndsAfter != nil && !r.End.After(*f.EndsAfter) {
		return false
	}
	if f.EndsAtOrBefore != nil && r.End.After(*f.EndsAtOrBefore) {
		return false
	}
	return true
}

// Involves reports whether personID owns or participates in the reservation.
func (r Reservation) Involves(personID string) bool {
	if r.OwnerID == personID {
		return true
	}
	for _, p := range r.Participants {
		if p.PersonID == personID {
			return true
		}
	}
	return false
}

// CloneReservation returns a deep copy of r.
func CloneReservation(r Reservation) Reservation {
	clone := r
	clone.Participants = slices.Clone(r.Participants)
	return clone
}
