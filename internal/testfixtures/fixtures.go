package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/room-reservations/internal/application"
	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/scheduler"
)

var (
	roomCounter        uint64
	personCounter      uint64
	reservationCounter uint64
)

// Monday 2025-03-10 09:00 in the service zone.
var referenceTime = time.Date(2025, time.March, 10, 1, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// SlotAt returns the slot starting at hour on the given day offset from the
// reference Monday, in the service zone.
func SlotAt(dayOffset, hour int) time.Time {
	day := scheduler.StartOfDay(referenceTime).AddDate(0, 0, dayOffset)
	return day.Add(time.Duration(hour) * time.Hour)
}

// ----------------------------- Room fixtures -----------------------------

// RoomFixture represents a deterministic room record.
type RoomFixture struct {
	ID        string
	Floor     string
	Name      string
	Capacity  int
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RoomOption configures the generated room fixture.
type RoomOption func(*RoomFixture)

// NewRoomFixture returns a deterministic active room with optional overrides.
func NewRoomFixture(opts ...RoomOption) RoomFixture {
	idx := atomic.AddUint64(&roomCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := RoomFixture{
		ID:        fmt.Sprintf("room-%03d", idx),
		Floor:     "Ground Floor",
		Name:      fmt.Sprintf("Room %03d", idx),
		Capacity:  8,
		Active:    true,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRoomID overrides the generated room ID.
func WithRoomID(id string) RoomOption {
	return func(f *RoomFixture) {
		f.ID = id
	}
}

// WithRoomKey sets the floor and name of the room.
func WithRoomKey(floor, name string) RoomOption {
	return func(f *RoomFixture) {
		f.Floor = floor
		f.Name = name
	}
}

// WithRoomCapacity overrides the capacity.
func WithRoomCapacity(capacity int) RoomOption {
	return func(f *RoomFixture) {
		f.Capacity = capacity
	}
}

// WithRoomActive sets the active flag.
func WithRoomActive(active bool) RoomOption {
	return func(f *RoomFixture) {
		f.Active = active
	}
}

// Persistence converts the fixture into a persistence model.
func (f RoomFixture) Persistence() persistence.Room {
	return persistence.Room{
		ID:        f.ID,
		Floor:     f.Floor,
		Name:      f.Name,
		Capacity:  f.Capacity,
		Active:    f.Active,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// Application converts the fixture into an application model.
func (f RoomFixture) Application() application.Room {
	return application.Room{
		ID:       f.ID,
		Floor:    f.Floor,
		Name:     f.Name,
		Capacity: f.Capacity,
		Active:   f.Active,
	}
}

// ---------------------------- Person fixtures ----------------------------

// PersonFixture represents a deterministic directory entry.
type PersonFixture struct {
	ID             string
	DisplayName    string
	Email          string
	Program        string
	YearLevel      string
	Department     string
	Verified       bool
	IsAdmin        bool
	TelegramChatID *int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PersonOption configures the generated person fixture.
type PersonOption func(*PersonFixture)

// NewPersonFixture returns a verified, non-admin person with optional overrides.
func NewPersonFixture(opts ...PersonOption) PersonFixture {
	idx := atomic.AddUint64(&personCounter, 1)
	id := fmt.Sprintf("2021-%05d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := PersonFixture{
		ID:          id,
		DisplayName: fmt.Sprintf("Student %03d", idx),
		Email:       fmt.Sprintf("student%03d@example.edu", idx),
		Program:     "BS Computer Science",
		YearLevel:   "3",
		Department:  "Computing",
		Verified:    true,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithPersonID overrides the generated person ID.
func WithPersonID(id string) PersonOption {
	return func(f *PersonFixture) {
		f.ID = id
	}
}

// WithPersonName overrides the display name.
func WithPersonName(name string) PersonOption {
	return func(f *PersonFixture) {
		f.DisplayName = name
	}
}

// WithPersonEmail overrides the email address.
func WithPersonEmail(email string) PersonOption {
	return func(f *PersonFixture) {
		f.Email = email
	}
}

// WithPersonVerified sets the verified flag.
func WithPersonVerified(verified bool) PersonOption {
	return func(f *PersonFixture) {
		f.Verified = verified
	}
}

// WithPersonAdmin sets the admin flag.
func WithPersonAdmin(isAdmin bool) PersonOption {
	return func(f *PersonFixture) {
		f.IsAdmin = isAdmin
	}
}

// WithPersonTelegramChat links a Telegram chat to the person.
func WithPersonTelegramChat(chatID int64) PersonOption {
	return func(f *PersonFixture) {
		f.TelegramChatID = &chatID
	}
}

// Persistence converts the fixture into a persistence model.
func (f PersonFixture) Persistence() persistence.Person {
	return persistence.Person{
		ID:             f.ID,
		DisplayName:    f.DisplayName,
		Email:          f.Email,
		Program:        f.Program,
		YearLevel:      f.YearLevel,
		Department:     f.Department,
		Verified:       f.Verified,
		IsAdmin:        f.IsAdmin,
		TelegramChatID: cloneInt64(f.TelegramChatID),
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}
}

// Application converts the fixture into an application model.
func (f PersonFixture) Application() application.Person {
	return application.Person{
		ID:             f.ID,
		DisplayName:    f.DisplayName,
		Email:          f.Email,
		Program:        f.Program,
		YearLevel:      f.YearLevel,
		Department:     f.Department,
		Verified:       f.Verified,
		IsAdmin:        f.IsAdmin,
		TelegramChatID: cloneInt64(f.TelegramChatID),
	}
}

// Participant returns the snapshot stored on reservations for this person.
func (f PersonFixture) Participant() persistence.Participant {
	return persistence.Participant{
		PersonID:    f.ID,
		DisplayName: f.DisplayName,
		Program:     f.Program,
		YearLevel:   f.YearLevel,
		Department:  f.Department,
	}
}

// -------------------------- Reservation fixtures --------------------------

// ReservationFixture represents a deterministic one-hour reservation.
type ReservationFixture struct {
	ID           string
	OwnerID      string
	Floor        string
	RoomName     string
	Start        time.Time
	Purpose      string
	Status       scheduler.Status
	Version      int64
	Participants []persistence.Participant
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ReservationOption configures the generated reservation fixture.
type ReservationOption func(*ReservationFixture)

// NewReservationFixture returns a pending reservation on the reference Monday.
func NewReservationFixture(opts ...ReservationOption) ReservationFixture {
	idx := atomic.AddUint64(&reservationCounter, 1)
	fixture := ReservationFixture{
		ID:        fmt.Sprintf("res-%03d", idx),
		OwnerID:   "2021-00001",
		Floor:     "Ground Floor",
		RoomName:  "Discussion Room",
		Start:     SlotAt(0, 9),
		Purpose:   fmt.Sprintf("Study group %03d", idx),
		Status:    scheduler.StatusPending,
		Version:   1,
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithReservationID overrides the generated reservation ID.
func WithReservationID(id string) ReservationOption {
	return func(f *ReservationFixture) {
		f.ID = id
	}
}

// WithReservationOwner sets the owner.
func WithReservationOwner(ownerID string) ReservationOption {
	return func(f *ReservationFixture) {
		f.OwnerID = ownerID
	}
}

// WithReservationRoom sets the floor and room name.
func WithReservationRoom(floor, name string) ReservationOption {
	return func(f *ReservationFixture) {
		f.Floor = floor
		f.RoomName = name
	}
}

// WithReservationStart sets the slot start.
func WithReservationStart(start time.Time) ReservationOption {
	return func(f *ReservationFixture) {
		f.Start = start
	}
}

// WithReservationStatus sets the lifecycle status.
func WithReservationStatus(status scheduler.Status) ReservationOption {
	return func(f *ReservationFixture) {
		f.Status = status
	}
}

// WithReservationParticipants sets the participant snapshots in order.
func WithReservationParticipants(participants ...persistence.Participant) ReservationOption {
	return func(f *ReservationFixture) {
		f.Participants = append([]persistence.Participant(nil), participants...)
	}
}

// Persistence converts the fixture into a persistence model.
func (f ReservationFixture) Persistence() persistence.Reservation {
	return persistence.Reservation{
		ID:           f.ID,
		OwnerID:      f.OwnerID,
		Floor:        f.Floor,
		RoomName:     f.RoomName,
		Start:        f.Start,
		End:          scheduler.SlotEnd(f.Start),
		Date:         scheduler.DateOf(f.Start),
		Purpose:      f.Purpose,
		Status:       string(f.Status),
		Version:      f.Version,
		Participants: append([]persistence.Participant(nil), f.Participants...),
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// Application converts the fixture into an application model.
func (f ReservationFixture) Application() application.Reservation {
	participants := make([]application.Participant, len(f.Participants))
	for i, p := range f.Participants {
		participants[i] = application.Participant(p)
	}
	return application.Reservation{
		ID:           f.ID,
		OwnerID:      f.OwnerID,
		Floor:        f.Floor,
		RoomName:     f.RoomName,
		Start:        f.Start,
		End:          scheduler.SlotEnd(f.Start),
		Date:         scheduler.DateOf(f.Start),
		Purpose:      f.Purpose,
		Status:       f.Status,
		Version:      f.Version,
		Participants: participants,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

func cloneInt64(value *int64) *int64 {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}
