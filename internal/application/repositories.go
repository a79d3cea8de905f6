package application

import (
	"context"
	"time"

	"github.com/example/room-reservations/internal/scheduler"
)

// RoomCatalog exposes the room registry.
type RoomCatalog interface {
	ListActiveRooms(ctx context.Context) ([]Room, error)
	GetRoomByKey(ctx context.Context, floor, name string) (Room, error)
}

// PersonDirectory resolves owners, participants and admins.
type PersonDirectory interface {
	GetPerson(ctx context.Context, id string) (Person, error)
	ListAdmins(ctx context.Context) ([]Person, error)
}

// ReservationFilter narrows queries issued to the reservation repository.
// Zero-valued fields are ignored.
type ReservationFilter struct {
	Floor           string
	RoomName        string
	OwnerID         string
	PersonID        string
	Date            string
	Statuses        []scheduler.Status
	StartsAtOrAfter *time.Time
	StartsBefore    *time.Time
	EndsAfter       *time.Time
	EndsAtOrBefore  *time.Time
}

// ReservationRepository captures the persistence interactions needed by the lifecycle.
type ReservationRepository interface {
	CreateReservation(ctx context.Context, reservation Reservation) (Reservation, error)
	GetReservation(ctx context.Context, id string) (Reservation, error)
	ListReservations(ctx context.Context, filter ReservationFilter) ([]Reservation, error)
	UpdateStatus(ctx context.Context, id string, expectedVersion int64, status scheduler.Status, at time.Time) (Reservation, error)
	DeleteReservation(ctx context.Context, id string, expectedVersion int64) error
}

// ArchiveRepository stores archived reservations.
type ArchiveRepository interface {
	CreateArchived(ctx context.Context, archived ArchivedReservation) error
	GetArchived(ctx context.Context, archiveID string) (ArchivedReservation, error)
	ListArchived(ctx context.Context) ([]ArchivedReservation, error)
	DeleteArchived(ctx context.Context, archiveID string) error
}

// EventOutbox records lifecycle events for delivery after commit.
type EventOutbox interface {
	Enqueue(ctx context.Context, event scheduler.Event) error
}

// TxManager runs fn inside a storage transaction carried by ctx.
type TxManager interface {
	DoSerializable(ctx context.Context, fn func(ctx context.Context) error) error
	DoReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}

type noopTx struct{}

func (noopTx) DoSerializable(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (noopTx) DoReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func txOrNoop(tx TxManager) TxManager {
	if tx == nil {
		return noopTx{}
	}
	return tx
}
