package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/room-reservations/internal/scheduler"
)

// archivedStatus labels the archive move in transition errors. It is never stored.
const archivedStatus scheduler.Status = "archived"

// ArchiveService moves terminal reservations to cold storage and back.
type ArchiveService struct {
	reservations ReservationRepository
	archive      ArchiveRepository
	validator    *ConflictValidator
	tx           TxManager
	locker       *KeyedLocker
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewArchiveService wires dependencies for archive operations. The locker
// should be shared with the ReservationService.
func NewArchiveService(reservations ReservationRepository, archive ArchiveRepository, tx TxManager, locker *KeyedLocker, idGenerator func() string, now func() time.Time, logger *slog.Logger) *ArchiveService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if locker == nil {
		locker = NewKeyedLocker()
	}
	return &ArchiveService{
		reservations: reservations,
		archive:      archive,
		validator:    NewConflictValidator(nil, reservations),
		tx:           txOrNoop(tx),
		locker:       locker,
		idGenerator:  idGenerator,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

func (s *ArchiveService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ArchiveService", operation, attrs...)
}

func (s *ArchiveService) ready() error {
	if s == nil {
		return fmt.Errorf("ArchiveService is nil")
	}
	if s.reservations == nil || s.archive == nil {
		return fmt.Errorf("archive repositories not configured")
	}
	return nil
}

// Archive copies a terminal reservation into the archive and deletes the
// live row in one transaction.
func (s *ArchiveService) Archive(ctx context.Context, principal Principal, reservationID string) (archived ArchivedReservation, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "Archive", "principal_id", principal.UserID, "reservation_id", reservationID)
	defer func() {
		logOutcome(ctx, logger, err, "failed to archive reservation", "reservation archived", "archive_id", archived.ArchiveID)
	}()

	if !principal.IsAdmin {
		err = ErrUnauthorized
		return
	}

	var unlock func()
	unlock, err = s.locker.Lock(ctx, reservationKey(reservationID))
	if err != nil {
		return
	}
	defer unlock()

	err = s.tx.DoSerializable(ctx, func(ctx context.Context) error {
		current, err := s.reservations.GetReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		if !current.Status.Terminal() {
			return &TransitionError{From: current.Status, To: archivedStatus}
		}

		archived = ArchivedReservation{
			ArchiveID:   s.idGenerator(),
			ArchivedAt:  s.now(),
			Reservation: current,
		}
		if err := s.archive.CreateArchived(ctx, archived); err != nil {
			return err
		}
		return s.reservations.DeleteReservation(ctx, current.ID, current.Version)
	})
	if err != nil {
		err = mapRepoError(err)
		archived = ArchivedReservation{}
	}
	return
}

// Restore moves an archived reservation back to the live store. A missing
// date is regenerated from the start time. When the restored status holds
// its room, the room check runs again and a conflict aborts the restore.
func (s *ArchiveService) Restore(ctx context.Context, principal Principal, archiveID string) (restored Reservation, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "Restore", "principal_id", principal.UserID, "archive_id", archiveID)
	defer func() {
		logOutcome(ctx, logger, err, "failed to restore reservation", "reservation restored", "reservation_id", restored.ID)
	}()

	if !principal.IsAdmin {
		err = ErrUnauthorized
		return
	}

	var archived ArchivedReservation
	archived, err = s.archive.GetArchived(ctx, archiveID)
	if err != nil {
		err = mapRepoError(err)
		return
	}

	keys := []string{reservationKey(archived.ID)}
	if archived.Status.In(scheduler.RoomBlockingStatuses) {
		keys = append(keys, roomDateKey(archived.Floor, archived.RoomName, scheduler.DateOf(archived.Start)))
	}
	var unlock func()
	unlock, err = s.locker.Lock(ctx, keys...)
	if err != nil {
		return
	}
	defer unlock()

	err = s.tx.DoSerializable(ctx, func(ctx context.Context) error {
		archived, err := s.archive.GetArchived(ctx, archiveID)
		if err != nil {
			return err
		}
		if _, err := s.reservations.GetReservation(ctx, archived.ID); err == nil {
			return fmt.Errorf("%w: reservation %s is live", ErrAlreadyExists, archived.ID)
		} else if !isNotFoundError(err) {
			return err
		}

		candidate := archived.Reservation
		if candidate.Date == "" {
			candidate.Date = scheduler.DateOf(candidate.Start)
		}
		candidate.Version = 1
		candidate.UpdatedAt = s.now()

		if candidate.Status.In(scheduler.RoomBlockingStatuses) {
			if err := s.validator.CheckRoom(ctx, candidate.Booking()); err != nil {
				return err
			}
		}

		created, err := s.reservations.CreateReservation(ctx, candidate)
		if err != nil {
			return err
		}
		if err := s.archive.DeleteArchived(ctx, archiveID); err != nil {
			return err
		}
		restored = created
		return nil
	})
	if err != nil {
		err = mapRepoError(err)
		restored = Reservation{}
	}
	return
}

// Purge permanently deletes an archived reservation.
func (s *ArchiveService) Purge(ctx context.Context, principal Principal, archiveID string) (err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "Purge", "principal_id", principal.UserID, "archive_id", archiveID)
	defer func() {
		logOutcome(ctx, logger, err, "failed to purge archived reservation", "archived reservation purged")
	}()

	if !principal.IsAdmin {
		return ErrUnauthorized
	}
	return mapRepoError(s.archive.DeleteArchived(ctx, archiveID))
}

// ListArchived returns archived reservations, most recently archived first.
func (s *ArchiveService) ListArchived(ctx context.Context, principal Principal) ([]ArchivedReservation, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if !principal.IsAdmin {
		return nil, ErrUnauthorized
	}
	archived, err := s.archive.ListArchived(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return archived, nil
}

// GetArchived returns a single archived reservation.
func (s *ArchiveService) GetArchived(ctx context.Context, principal Principal, archiveID string) (ArchivedReservation, error) {
	if err := s.ready(); err != nil {
		return ArchivedReservation{}, err
	}
	if !principal.IsAdmin {
		return ArchivedReservation{}, ErrUnauthorized
	}
	archived, err := s.archive.GetArchived(ctx, archiveID)
	if err != nil {
		return ArchivedReservation{}, mapRepoError(err)
	}
	return archived, nil
}
