package persistence

import (
	"context"
	"time"
)

// RoomRepository exposes operations for the room registry.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) error
	UpdateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id string) (Room, error)
	GetRoomByKey(ctx context.Context, floor, name string) (Room, error)
	ListRooms(ctx context.Context, activeOnly bool) ([]Room, error)
}

// PersonFilter narrows person queries.
type PersonFilter struct {
	AdminsOnly bool
}

// PersonRepository exposes the person directory.
type PersonRepository interface {
	UpsertPerson(ctx context.Context, person Person) error
	GetPerson(ctx context.Context, id string) (Person, error)
	ListPersons(ctx context.Context, filter PersonFilter) ([]Person, error)
}

// ReservationFilter narrows reservation queries. Zero-valued fields are ignored.
// When PersonID is set, reservations owned by or including that person match.
type ReservationFilter struct {
	Floor           string
	RoomName        string
	OwnerID         string
	PersonID        string
	Date            string
	Statuses        []string
	StartsBefore    *time.Time
	StartsAtOrAfter *time.Time
	EndsAfter       *time.Time
	EndsAtOrBefore  *time.Time
}

// ReservationRepository stores live reservations and their participants.
type ReservationRepository interface {
	CreateReservation(ctx context.Context, reservation Reservation) error
	GetReservation(ctx context.Context, id string) (Reservation, error)
	ListReservations(ctx context.Context, filter ReservationFilter) ([]Reservation, error)
	// UpdateReservationStatus applies status when the stored version equals
	// expectedVersion and returns the row with its version incremented.
	UpdateReservationStatus(ctx context.Context, id string, expectedVersion int64, status string, updatedAt time.Time) (Reservation, error)
	DeleteReservation(ctx context.Context, id string, expectedVersion int64) error
}

// ArchiveRepository stores archived reservations.
type ArchiveRepository interface {
	CreateArchived(ctx context.Context, archived ArchivedReservation) error
	GetArchived(ctx context.Context, archiveID string) (ArchivedReservation, error)
	ListArchived(ctx context.Context) ([]ArchivedReservation, error)
	DeleteArchived(ctx context.Context, archiveID string) error
}

// OutboxRepository persists notifications for at-least-once delivery.
type OutboxRepository interface {
	// EnqueueEvent reports false when an event with the same fingerprint is
	// already stored; nothing is written in that case.
	EnqueueEvent(ctx context.Context, event OutboxEvent) (bool, error)
	ListPendingEvents(ctx context.Context, now time.Time, limit int) ([]OutboxEvent, error)
	MarkEventDelivered(ctx context.Context, id string, deliveredAt time.Time) error
	MarkEventFailed(ctx context.Context, id string, attempts int, nextAttemptAt time.Time, lastError string) error
}

// TxManager runs functions inside storage transactions. Repositories called
// with the context passed to fn participate in that transaction.
type TxManager interface {
	DoSerializable(ctx context.Context, fn func(ctx context.Context) error) error
	DoReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store aggregates every repository offered by a storage backend.
type Store interface {
	RoomRepository
	PersonRepository
	ReservationRepository
	ArchiveRepository
	OutboxRepository
	TxManager
	Ping(ctx context.Context) error
	Close() error
}
