package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/scheduler"
)

const (
	// DefaultOpeningHour is the first hour a slot may start.
	DefaultOpeningHour = 7
	// DefaultClosingHour is the hour by which every slot must have ended.
	DefaultClosingHour = 19
	maxPurposeLength   = 500
	maxParticipants    = 20
	startTimeLayout    = "15:04"
)

// ReservationDeps collects the collaborators of a ReservationService.
type ReservationDeps struct {
	Rooms        RoomCatalog
	Persons      PersonDirectory
	Reservations ReservationRepository
	Outbox       EventOutbox
	Tx           TxManager
	Locker       *KeyedLocker
	IDGenerator  func() string
	Now          func() time.Time
	OpeningHour  int
	ClosingHour  int
	// Timeout bounds every operation, lock waits included. Zero disables it.
	Timeout time.Duration
	Logger  *slog.Logger
}

// ReservationService owns the reservation lifecycle: creation, status
// changes, cancellation and expiry.
type ReservationService struct {
	rooms        RoomCatalog
	persons      PersonDirectory
	reservations ReservationRepository
	outbox       EventOutbox
	tx           TxManager
	locker       *KeyedLocker
	validator    *ConflictValidator
	quota        *QuotaEnforcer
	idGenerator  func() string
	now          func() time.Time
	openingHour  int
	closingHour  int
	timeout      time.Duration
	logger       *slog.Logger
}

// NewReservationService wires dependencies for reservation operations.
func NewReservationService(deps ReservationDeps) *ReservationService {
	if deps.IDGenerator == nil {
		deps.IDGenerator = func() string { return "" }
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Locker == nil {
		deps.Locker = NewKeyedLocker()
	}
	if deps.OpeningHour == 0 && deps.ClosingHour == 0 {
		deps.OpeningHour, deps.ClosingHour = DefaultOpeningHour, DefaultClosingHour
	}
	return &ReservationService{
		rooms:        deps.Rooms,
		persons:      deps.Persons,
		reservations: deps.Reservations,
		outbox:       deps.Outbox,
		tx:           txOrNoop(deps.Tx),
		locker:       deps.Locker,
		validator:    NewConflictValidator(deps.Persons, deps.Reservations),
		quota:        NewQuotaEnforcer(deps.Reservations),
		idGenerator:  deps.IDGenerator,
		now:          deps.Now,
		openingHour:  deps.OpeningHour,
		closingHour:  deps.ClosingHour,
		timeout:      deps.Timeout,
		logger:       defaultLogger(deps.Logger),
	}
}

func (s *ReservationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ReservationService", operation, attrs...)
}

func (s *ReservationService) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Create books a slot for the owner. The request is validated, then the
// quota, room and person checks run in that order inside one serializable
// transaction together with the insert and the outbox write. The first
// failed check is returned.
func (s *ReservationService) Create(ctx context.Context, principal Principal, req BookingRequest) (reservation Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}
	if s.reservations == nil {
		err = fmt.Errorf("reservation repository not configured")
		return
	}

	if strings.TrimSpace(req.OwnerID) == "" {
		req.OwnerID = principal.UserID
	}
	logger := s.loggerWith(ctx, "Create",
		"principal_id", principal.UserID,
		"owner_id", req.OwnerID,
		"floor", req.Floor,
		"room", req.RoomName,
		"date", req.Date,
		"start_time", req.StartTime,
	)
	defer func() {
		logOutcome(ctx, logger, err, "reservation refused", "reservation created", "reservation_id", reservation.ID)
	}()

	if req.OwnerID != principal.UserID && !principal.IsAdmin {
		err = ErrUnauthorized
		return
	}

	start, vErr := s.validateBookingRequest(req)
	if vErr.HasErrors() {
		err = vErr
		return
	}
	end := scheduler.SlotEnd(start)

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	var room Room
	room, err = lookupActiveRoom(ctx, s.rooms, req.Floor, req.RoomName)
	if err != nil {
		return
	}

	participantIDs := normalizeIDs(req.ParticipantIDs)
	keys := []string{roomDateKey(room.Floor, room.Name, scheduler.DateOf(start)), personKey(req.OwnerID)}
	for _, id := range participantIDs {
		keys = append(keys, personKey(id))
	}
	var unlock func()
	unlock, err = s.locker.Lock(ctx, keys...)
	if err != nil {
		return
	}
	defer unlock()

	now := s.now()
	candidate := Reservation{
		ID:        s.idGenerator(),
		OwnerID:   req.OwnerID,
		Floor:     room.Floor,
		RoomName:  room.Name,
		Start:     start,
		End:       end,
		Date:      scheduler.DateOf(start),
		Purpose:   strings.TrimSpace(req.Purpose),
		Status:    scheduler.StatusPending,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.tx.DoSerializable(ctx, func(ctx context.Context) error {
		if err := s.quota.enforce(ctx, req.OwnerID, start); err != nil {
			return err
		}
		if err := s.validator.CheckRoom(ctx, candidate.Booking()); err != nil {
			return err
		}
		participants, err := s.validator.ResolvePersons(ctx, req.OwnerID, participantIDs, candidate.ID, start, end)
		if err != nil {
			return err
		}
		candidate.Participants = participants

		created, err := s.reservations.CreateReservation(ctx, candidate)
		if err != nil {
			if errors.Is(err, persistence.ErrDuplicate) {
				return &RoomConflictError{Floor: room.Floor, Room: room.Name}
			}
			return mapRepoError(err)
		}

		recipients, err := s.ownerAndAdmins(ctx, created.OwnerID)
		if err != nil {
			return err
		}
		if err := s.emit(ctx, scheduler.EventCreated, created, recipients); err != nil {
			return err
		}
		reservation = created
		return nil
	})
	if err != nil {
		err = mapRepoError(err)
		reservation = Reservation{}
	}
	return
}

// CheckQuota is the pre-flight variant of the weekly limit check.
func (s *ReservationService) CheckQuota(ctx context.Context, principal Principal, date string) (QuotaCheck, error) {
	if s == nil {
		return QuotaCheck{}, fmt.Errorf("ReservationService is nil")
	}
	day, err := scheduler.ParseDate(strings.TrimSpace(date))
	if err != nil {
		vErr := &ValidationError{}
		vErr.add("date", "date must be formatted as YYYY-MM-DD")
		return QuotaCheck{}, vErr
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	var check QuotaCheck
	err = s.tx.DoReadOnly(ctx, func(ctx context.Context) error {
		var err error
		check, err = s.quota.CheckWeeklyLimit(ctx, principal.UserID, day)
		return err
	})
	if err != nil {
		return QuotaCheck{}, mapRepoError(err)
	}
	return check, nil
}

// SetStatus applies an administrator's status decision. Moving into a room
// blocking status re-runs the room check so two held reservations never overlap.
func (s *ReservationService) SetStatus(ctx context.Context, principal Principal, reservationID, status string) (reservation Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}

	logger := s.loggerWith(ctx, "SetStatus",
		"principal_id", principal.UserID,
		"reservation_id", reservationID,
		"new_status", status,
	)
	defer func() {
		logOutcome(ctx, logger, err, "status change refused", "status changed")
	}()

	if !principal.IsAdmin {
		err = ErrUnauthorized
		return
	}
	next, parseErr := scheduler.ParseStatus(status)
	if parseErr != nil {
		vErr := &ValidationError{}
		vErr.add("status", parseErr.Error())
		err = vErr
		return
	}

	reservation, err = s.transition(ctx, reservationID, next, func(Reservation) error { return nil })
	return
}

// Cancel withdraws a reservation on behalf of its owner.
func (s *ReservationService) Cancel(ctx context.Context, principal Principal, reservationID string) (reservation Reservation, err error) {
	if s == nil {
		err = fmt.Errorf("ReservationService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Cancel",
		"principal_id", principal.UserID,
		"reservation_id", reservationID,
	)
	defer func() {
		logOutcome(ctx, logger, err, "cancellation refused", "reservation cancelled")
	}()

	reservation, err = s.transition(ctx, reservationID, scheduler.StatusCancelled, func(current Reservation) error {
		if !current.IsOwner(principal.UserID) {
			return ErrUnauthorized
		}
		return nil
	})
	return
}

// IsOwner reports whether personID owns the reservation.
func (s *ReservationService) IsOwner(ctx context.Context, personID, reservationID string) (bool, error) {
	if s == nil || s.reservations == nil {
		return false, fmt.Errorf("reservation repository not configured")
	}
	reservation, err := s.reservations.GetReservation(ctx, reservationID)
	if err != nil {
		return false, mapRepoError(err)
	}
	return reservation.IsOwner(personID), nil
}

func (s *ReservationService) transition(ctx context.Context, reservationID string, next scheduler.Status, authorize func(Reservation) error) (Reservation, error) {
	if s.reservations == nil {
		return Reservation{}, fmt.Errorf("reservation repository not configured")
	}

	ctx, cancel := s.bounded(ctx)
	defer cancel()

	current, err := s.reservations.GetReservation(ctx, reservationID)
	if err != nil {
		return Reservation{}, mapRepoError(err)
	}
	if err := authorize(current); err != nil {
		return Reservation{}, err
	}

	keys := []string{reservationKey(reservationID)}
	if next.In(scheduler.RoomBlockingStatuses) {
		keys = append(keys, roomDateKey(current.Floor, current.RoomName, current.Date))
	}
	unlock, err := s.locker.Lock(ctx, keys...)
	if err != nil {
		return Reservation{}, err
	}
	defer unlock()

	var updated Reservation
	err = s.tx.DoSerializable(ctx, func(ctx context.Context) error {
		current, err := s.reservations.GetReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		if !scheduler.CanTransition(current.Status, next) {
			return &TransitionError{From: current.Status, To: next, Allowed: scheduler.NextStatuses(current.Status)}
		}
		if next.In(scheduler.RoomBlockingStatuses) && !current.Status.In(scheduler.RoomBlockingStatuses) {
			if err := s.validator.CheckRoom(ctx, current.Booking()); err != nil {
				return err
			}
		}

		updated, err = s.reservations.UpdateStatus(ctx, current.ID, current.Version, next, s.now())
		if err != nil {
			if errors.Is(err, persistence.ErrDuplicate) {
				return &RoomConflictError{Floor: current.Floor, Room: current.RoomName}
			}
			return err
		}
		return s.emit(ctx, scheduler.EventStatusChanged, updated, append([]string{updated.OwnerID}, updated.ParticipantIDs()...))
	})
	if err != nil {
		return Reservation{}, mapRepoError(err)
	}
	return updated, nil
}

// Expire moves every Pending reservation whose slot has ended to Expired and
// returns how many were transitioned. Each reservation is updated in its own
// transaction guarded by its version, so a second run finds nothing to do and
// an interrupted run can be resumed.
func (s *ReservationService) Expire(ctx context.Context) (count int, err error) {
	if s == nil {
		return 0, fmt.Errorf("ReservationService is nil")
	}
	if s.reservations == nil {
		return 0, fmt.Errorf("reservation repository not configured")
	}

	now := s.now()
	logger := s.loggerWith(ctx, "Expire", "reference_time", now)
	defer func() {
		logOutcome(ctx, logger, err, "expiry sweep failed", "expiry sweep finished", "expired_count", count)
	}()

	var due []Reservation
	err = s.tx.DoReadOnly(ctx, func(ctx context.Context) error {
		var err error
		due, err = s.reservations.ListReservations(ctx, ReservationFilter{
			Statuses:       []scheduler.Status{scheduler.StatusPending},
			EndsAtOrBefore: &now,
		})
		return err
	})
	if err != nil {
		err = mapRepoError(err)
		return
	}

	for _, candidate := range due {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = mapRepoError(ctxErr)
			return
		}
		expired, expireErr := s.expireOne(ctx, candidate)
		if expireErr != nil {
			err = expireErr
			return
		}
		if expired {
			count++
		}
	}
	return
}

func (s *ReservationService) expireOne(ctx context.Context, candidate Reservation) (bool, error) {
	if !scheduler.CanExpire(candidate.Status) {
		return false, nil
	}
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	unlock, err := s.locker.Lock(ctx, reservationKey(candidate.ID))
	if err != nil {
		return false, err
	}
	defer unlock()

	expired := false
	err = s.tx.DoSerializable(ctx, func(ctx context.Context) error {
		updated, err := s.reservations.UpdateStatus(ctx, candidate.ID, candidate.Version, scheduler.StatusExpired, s.now())
		if err != nil {
			if errors.Is(err, persistence.ErrStaleVersion) || isNotFoundError(err) {
				return nil
			}
			return err
		}
		expired = true
		return s.emit(ctx, scheduler.EventExpired, updated, []string{updated.OwnerID})
	})
	if err != nil {
		return false, mapRepoError(err)
	}
	return expired, nil
}

// GetReservation returns a reservation visible to the principal.
func (s *ReservationService) GetReservation(ctx context.Context, principal Principal, reservationID string) (Reservation, error) {
	if s == nil || s.reservations == nil {
		return Reservation{}, fmt.Errorf("reservation repository not configured")
	}
	reservation, err := s.reservations.GetReservation(ctx, reservationID)
	if err != nil {
		return Reservation{}, mapRepoError(err)
	}
	if !principal.IsAdmin && !reservation.Involves(principal.UserID) {
		return Reservation{}, ErrUnauthorized
	}
	return reservation, nil
}

// ListReservations lists reservations on a date or those involving the
// principal. Non-administrators must narrow by date or Mine.
func (s *ReservationService) ListReservations(ctx context.Context, principal Principal, query ReservationQuery) ([]Reservation, error) {
	if s == nil || s.reservations == nil {
		return nil, fmt.Errorf("reservation repository not configured")
	}

	vErr := &ValidationError{}
	filter := ReservationFilter{}
	if query.Mine {
		filter.PersonID = principal.UserID
	}
	if date := strings.TrimSpace(query.Date); date != "" {
		if _, err := scheduler.ParseDate(date); err != nil {
			vErr.add("date", "date must be formatted as YYYY-MM-DD")
		}
		filter.Date = date
	}
	for _, raw := range query.Statuses {
		status, err := scheduler.ParseStatus(raw)
		if err != nil {
			vErr.add("status", err.Error())
			continue
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	if !query.Mine && filter.Date == "" && !principal.IsAdmin {
		vErr.add("date", "date is required unless listing your own reservations")
	}
	if vErr.HasErrors() {
		return nil, vErr
	}

	reservations, err := s.reservations.ListReservations(ctx, filter)
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, mapRepoError(err)
	}
	return reservations, nil
}

func (s *ReservationService) validateBookingRequest(req BookingRequest) (time.Time, *ValidationError) {
	vErr := &ValidationError{}

	if strings.TrimSpace(req.Floor) == "" {
		vErr.add("floor", "floor is required")
	}
	if strings.TrimSpace(req.RoomName) == "" {
		vErr.add("room", "room is required")
	}
	if len([]rune(strings.TrimSpace(req.Purpose))) > maxPurposeLength {
		vErr.add("purpose", fmt.Sprintf("purpose must be at most %d characters", maxPurposeLength))
	}

	var start time.Time
	day, dateErr := scheduler.ParseDate(strings.TrimSpace(req.Date))
	if dateErr != nil {
		vErr.add("date", "date must be formatted as YYYY-MM-DD")
	}
	clock, timeErr := time.Parse(startTimeLayout, strings.TrimSpace(req.StartTime))
	if timeErr != nil {
		vErr.add("start_time", "start time must be formatted as HH:MM")
	} else {
		start = time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, scheduler.Zone)
		if !scheduler.IsSlotAligned(start) {
			vErr.add("start_time", "start time must be on the hour")
		}
	}
	if dateErr == nil && timeErr == nil {
		endHour := clock.Hour() + int(scheduler.SlotDuration/time.Hour)
		if clock.Hour() < s.openingHour || endHour > s.closingHour {
			vErr.add("start_time", fmt.Sprintf("slots must fall between %02d:00 and %02d:00", s.openingHour, s.closingHour))
		}
		if start.Before(s.now()) {
			vErr.add("start_time", "start time is in the past")
		}
	}

	seen := map[string]struct{}{strings.TrimSpace(req.OwnerID): {}}
	ids := normalizeIDs(req.ParticipantIDs)
	if len(ids) != len(req.ParticipantIDs) {
		vErr.add("participants", "participant ids must not be blank")
	}
	if len(ids) > maxParticipants {
		vErr.add("participants", fmt.Sprintf("at most %d participants are allowed", maxParticipants))
	}
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			vErr.add("participants", fmt.Sprintf("participant %s is listed more than once or is the owner", id))
			break
		}
		seen[id] = struct{}{}
	}

	return start, vErr
}

func (s *ReservationService) ownerAndAdmins(ctx context.Context, ownerID string) ([]string, error) {
	recipients := []string{ownerID}
	if s.persons == nil {
		return recipients, nil
	}
	admins, err := s.persons.ListAdmins(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}
	for _, admin := range admins {
		if !slices.Contains(recipients, admin.ID) {
			recipients = append(recipients, admin.ID)
		}
	}
	return recipients, nil
}

func (s *ReservationService) emit(ctx context.Context, kind scheduler.EventKind, r Reservation, recipients []string) error {
	if s.outbox == nil {
		return nil
	}
	event := newEvent(s.idGenerator(), kind, r, recipients, s.now())
	if err := s.outbox.Enqueue(ctx, event); err != nil {
		return fmt.Errorf("enqueue %s event: %w", kind, mapRepoError(err))
	}
	return nil
}

func newEvent(id string, kind scheduler.EventKind, r Reservation, recipients []string, at time.Time) scheduler.Event {
	event := scheduler.Event{
		ID:             id,
		Kind:           kind,
		ReservationID:  r.ID,
		OwnerID:        r.OwnerID,
		ParticipantIDs: r.ParticipantIDs(),
		Floor:          r.Floor,
		Room:           r.RoomName,
		Date:           r.Date,
		Start:          r.Start,
		End:            r.End,
		Purpose:        r.Purpose,
		Recipients:     uniqueStrings(recipients),
		OccurredAt:     at,
	}
	if kind != scheduler.EventCreated {
		event.NewStatus = r.Status
	}
	return event
}

func normalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
