package application

import (
	"slices"
	"time"

	"github.com/example/room-reservations/internal/scheduler"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID  string
	IsAdmin bool
}

// Room is a bookable space identified by floor and name.
type Room struct {
	ID       string
	Floor    string
	Name     string
	Capacity int
	Active   bool
}

// Key returns the natural key used for conflict checks.
func (r Room) Key() scheduler.RoomKey {
	return scheduler.RoomKey{Floor: r.Floor, Name: r.Name}
}

// Person is a directory record. Owners and participants are both persons.
type Person struct {
	ID             string
	DisplayName    string
	Email          string
	Program        string
	YearLevel      string
	Department     string
	Verified       bool
	IsAdmin        bool
	TelegramChatID *int64
}

// Participant is the snapshot of a person stored with a reservation.
type Participant struct {
	PersonID    string
	DisplayName string
	Program     string
	YearLevel   string
	Department  string
}

// Reservation is a booked one-hour slot.
type Reservation struct {
	ID           string
	OwnerID      string
	Floor        string
	RoomName     string
	Start        time.Time
	End          time.Time
	Date         string
	Purpose      string
	Status       scheduler.Status
	Version      int64
	Participants []Participant
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ParticipantIDs lists participant person ids in booking order.
func (r Reservation) ParticipantIDs() []string {
	ids := make([]string, len(r.Participants))
	for i, p := range r.Participants {
		ids[i] = p.PersonID
	}
	return ids
}

// IsOwner reports whether personID created the reservation.
func (r Reservation) IsOwner(personID string) bool {
	return personID != "" && r.OwnerID == personID
}

// Involves reports whether personID owns or participates in the reservation.
func (r Reservation) Involves(personID string) bool {
	return r.IsOwner(personID) || slices.Contains(r.ParticipantIDs(), personID)
}

// Booking projects the reservation for the pure conflict and quota checks.
func (r Reservation) Booking() scheduler.Booking {
	return scheduler.Booking{
		ID:           r.ID,
		OwnerID:      r.OwnerID,
		Room:         scheduler.RoomKey{Floor: r.Floor, Name: r.RoomName},
		Participants: r.ParticipantIDs(),
		Start:        r.Start,
		End:          r.End,
		Status:       r.Status,
	}
}

// ArchivedReservation is a terminal reservation moved to cold storage.
type ArchivedReservation struct {
	ArchiveID  string
	ArchivedAt time.Time
	Reservation
}

// BookingRequest is the inbound request to create a reservation. Date is
// YYYY-MM-DD and StartTime HH:MM, both in the service zone.
type BookingRequest struct {
	OwnerID        string
	Floor          string
	RoomName       string
	Date           string
	StartTime      string
	Purpose        string
	ParticipantIDs []string
}

// OccupiedSlot is one booked interval in an availability view.
type OccupiedSlot struct {
	ReservationID string
	Start         time.Time
	End           time.Time
	Mine          bool
	Status        scheduler.Status
}

// RoomAvailability lists the occupied intervals of one active room on a date.
type RoomAvailability struct {
	Floor    string
	Room     string
	Capacity int
	Occupied []OccupiedSlot
}

// QuotaCheck is the verdict returned by the weekly limit check.
type QuotaCheck struct {
	Blocked   bool
	Reason    scheduler.QuotaReason
	Date      string
	UsedDates []string
	WeekStart string
	WeekEnd   string
}

// ReservationQuery narrows ListReservations. Mine selects reservations the
// principal owns or participates in.
type ReservationQuery struct {
	Date     string
	Mine     bool
	Statuses []string
}
