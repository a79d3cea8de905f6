package application

import (
	"context"
	"time"

	"github.com/example/room-reservations/internal/scheduler"
)

// ConflictValidator checks a candidate slot against stored reservations and
// the person directory. It never writes.
type ConflictValidator struct {
	persons      PersonDirectory
	reservations ReservationRepository
}

// NewConflictValidator wires the validator.
func NewConflictValidator(persons PersonDirectory, reservations ReservationRepository) *ConflictValidator {
	return &ConflictValidator{persons: persons, reservations: reservations}
}

// CheckRoom returns a *RoomConflictError when an Approved or Ongoing
// reservation other than candidate holds its room during its window.
func (v *ConflictValidator) CheckRoom(ctx context.Context, candidate scheduler.Booking) error {
	start, end := candidate.Start, candidate.End
	existing, err := v.reservations.ListReservations(ctx, ReservationFilter{
		Floor:        candidate.Room.Floor,
		RoomName:     candidate.Room.Name,
		Statuses:     scheduler.RoomBlockingStatuses,
		StartsBefore: &end,
		EndsAfter:    &start,
	})
	if err != nil {
		return mapRepoError(err)
	}
	if other, ok := scheduler.FindRoomConflict(toBookings(existing), candidate); ok {
		return &RoomConflictError{Floor: candidate.Room.Floor, Room: candidate.Room.Name, ReservationID: other.ID}
	}
	return nil
}

// ResolvePersons validates the owner followed by each participant in order.
// Each person must exist and be verified, then must not be busy during
// [start, end). The first failure is returned as a *ParticipantError. On
// success the participant snapshots are returned in request order.
func (v *ConflictValidator) ResolvePersons(ctx context.Context, ownerID string, participantIDs []string, excludeID string, start, end time.Time) ([]Participant, error) {
	ordered := append([]string{ownerID}, participantIDs...)
	participants := make([]Participant, 0, len(participantIDs))

	for i, id := range ordered {
		person, err := v.resolve(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := v.checkPersonFree(ctx, id, excludeID, start, end); err != nil {
			return nil, err
		}
		if i > 0 {
			participants = append(participants, Participant{
				PersonID:    person.ID,
				DisplayName: person.DisplayName,
				Program:     person.Program,
				YearLevel:   person.YearLevel,
				Department:  person.Department,
			})
		}
	}
	return participants, nil
}

func (v *ConflictValidator) resolve(ctx context.Context, id string) (Person, error) {
	person, err := v.persons.GetPerson(ctx, id)
	if err != nil {
		if isNotFoundError(err) {
			return Person{}, &ParticipantError{PersonID: id, Reason: ErrParticipantNotFound}
		}
		return Person{}, mapRepoError(err)
	}
	if !person.Verified {
		return Person{}, &ParticipantError{PersonID: id, Reason: ErrParticipantUnverified}
	}
	return person, nil
}

func (v *ConflictValidator) checkPersonFree(ctx context.Context, personID, excludeID string, start, end time.Time) error {
	existing, err := v.reservations.ListReservations(ctx, ReservationFilter{
		PersonID:     personID,
		Statuses:     scheduler.ParticipantBlockingStatuses,
		StartsBefore: &end,
		EndsAfter:    &start,
	})
	if err != nil {
		return mapRepoError(err)
	}
	if other, ok := scheduler.FindPersonConflict(toBookings(existing), excludeID, personID, start, end); ok {
		return &ParticipantError{PersonID: personID, Reason: ErrParticipantConflict, ReservationID: other.ID}
	}
	return nil
}

func toBookings(reservations []Reservation) []scheduler.Booking {
	bookings := make([]scheduler.Booking, len(reservations))
	for i, r := range reservations {
		bookings[i] = r.Booking()
	}
	return bookings
}
