package memory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/example/room-reservations/internal/persistence"
)

// errReadOnly is returned when a write is attempted inside DoReadOnly.
var errReadOnly = errors.New("memory: write attempted in read-only transaction")

type txKey struct{}

type txState struct {
	readOnly bool
}

// Storage provides an in-memory persistence.Store. Serializable transactions
// hold an exclusive lock and roll back to a snapshot when fn fails.
type Storage struct {
	txMu sync.RWMutex
	mu   sync.RWMutex
	data dataset
}

type dataset struct {
	rooms        map[string]persistence.Room
	persons      map[string]persistence.Person
	reservations map[string]persistence.Reservation
	archived     map[string]persistence.ArchivedReservation
	outbox       map[string]persistence.OutboxEvent
}

var _ persistence.Store = (*Storage)(nil)

// Open returns an empty Storage.
func Open() *Storage {
	return &Storage{data: dataset{
		rooms:        make(map[string]persistence.Room),
		persons:      make(map[string]persistence.Person),
		reservations: make(map[string]persistence.Reservation),
		archived:     make(map[string]persistence.ArchivedReservation),
		outbox:       make(map[string]persistence.OutboxEvent),
	}}
}

// Close releases resources held by the storage. No-op for the in-memory implementation.
func (s *Storage) Close() error {
	return nil
}

// Ping always succeeds.
func (s *Storage) Ping(context.Context) error {
	return nil
}

// DoSerializable runs fn with exclusive access to the storage.
func (s *Storage) DoSerializable(ctx context.Context, fn func(ctx context.Context) error) error {
	if state, ok := ctx.Value(txKey{}).(*txState); ok {
		if state.readOnly {
			return errReadOnly
		}
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				s.restore(snapshot)
				panic(p)
			}
		}()
		return fn(context.WithValue(ctx, txKey{}, &txState{}))
	}()
	if err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

// DoReadOnly runs fn while writers are excluded.
func (s *Storage) DoReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*txState); ok {
		return fn(ctx)
	}
	s.txMu.RLock()
	defer s.txMu.RUnlock()
	return fn(context.WithValue(ctx, txKey{}, &txState{readOnly: true}))
}

func (s *Storage) restore(snapshot dataset) {
	s.mu.Lock()
	s.data = snapshot
	s.mu.Unlock()
}

// write applies fn under the data lock. Outside a transaction it also takes the
// writer lock so it cannot interleave with a running transaction.
func (s *Storage) write(ctx context.Context, fn func(d *dataset) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", persistence.ErrUnavailable, err)
	}
	if state, ok := ctx.Value(txKey{}).(*txState); ok {
		if state.readOnly {
			return errReadOnly
		}
	} else {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.data)
}

func (s *Storage) read(ctx context.Context, fn func(d *dataset) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", persistence.ErrUnavailable, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&s.data)
}

func (d dataset) clone() dataset {
	out := dataset{
		rooms:        maps.Clone(d.rooms),
		persons:      maps.Clone(d.persons),
		reservations: make(map[string]persistence.Reservation, len(d.reservations)),
		archived:     make(map[string]persistence.ArchivedReservation, len(d.archived)),
		outbox:       make(map[string]persistence.OutboxEvent, len(d.outbox)),
	}
	for id, r := range d.reservations {
		out.reservations[id] = persistence.CloneReservation(r)
	}
	for id, a := range d.archived {
		out.archived[id] = cloneArchived(a)
	}
	for id, e := range d.outbox {
		out.outbox[id] = cloneOutboxEvent(e)
	}
	return out
}

// --- RoomRepository implementation ---

// CreateRoom stores a new room.
func (s *Storage) CreateRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" || room.Floor == "" || room.Name == "" {
		return persistence.ErrConstraintViolation
	}
	return s.write(ctx, func(d *dataset) error {
		if _, ok := d.rooms[room.ID]; ok {
			return fmt.Errorf("%w: room %s", persistence.ErrDuplicate, room.ID)
		}
		if err := d.ensureUniqueRoomKey(room); err != nil {
			return err
		}
		d.rooms[room.ID] = room
		return nil
	})
}

// UpdateRoom updates an existing room.
func (s *Storage) UpdateRoom(ctx context.Context, room persistence.Room) error {
	return s.write(ctx, func(d *dataset) error {
		if _, ok := d.rooms[room.ID]; !ok {
			return persistence.ErrNotFound
		}
		if err := d.ensureUniqueRoomKey(room); err != nil {
			return err
		}
		d.rooms[room.ID] = room
		return nil
	})
}

// GetRoom retrieves a room by ID.
func (s *Storage) GetRoom(ctx context.Context, id string) (room persistence.Room, err error) {
	err = s.read(ctx, func(d *dataset) error {
		var ok bool
		if room, ok = d.rooms[id]; !ok {
			return persistence.ErrNotFound
		}
		return nil
	})
	return room, err
}

// GetRoomByKey retrieves a room by floor and name.
func (s *Storage) GetRoomByKey(ctx context.Context, floor, name string) (room persistence.Room, err error) {
	err = s.read(ctx, func(d *dataset) error {
		for _, candidate := range d.rooms {
			if candidate.Floor == floor && candidate.Name == name {
				room = candidate
				return nil
			}
		}
		return persistence.ErrNotFound
	})
	return room, err
}

// ListRooms returns rooms ordered by floor then name.
func (s *Storage) ListRooms(ctx context.Context, activeOnly bool) ([]persistence.Room, error) {
	var rooms []persistence.Room
	err := s.read(ctx, func(d *dataset) error {
		rooms = make([]persistence.Room, 0, len(d.rooms))
		for _, room := range d.rooms {
			if activeOnly && !room.Active {
				continue
			}
			rooms = append(rooms, room)
		}
		return nil
	})
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].Floor == rooms[j].Floor {
			return rooms[i].Name < rooms[j].Name
		}
		return rooms[i].Floor < rooms[j].Floor
	})
	return rooms, err
}

func (d *dataset) ensureUniqueRoomKey(room persistence.Room) error {
	for id, existing := range d.rooms {
		if id != room.ID && existing.Floor == room.Floor && existing.Name == room.Name {
			return fmt.Errorf("%w: room %s/%s", persistence.ErrDuplicate, room.Floor, room.Name)
		}
	}
	return nil
}

// --- PersonRepository implementation ---

// UpsertPerson inserts or replaces a directory record.
func (s *Storage) UpsertPerson(ctx context.Context, person persistence.Person) error {
	if person.ID == "" {
		return persistence.ErrConstraintViolation
	}
	return s.write(ctx, func(d *dataset) error {
		if existing, ok := d.persons[person.ID]; ok && !existing.CreatedAt.IsZero() {
			person.CreatedAt = existing.CreatedAt
		}
		d.persons[person.ID] = clonePerson(person)
		return nil
	})
}

// GetPerson retrieves a person by external ID.
func (s *Storage) GetPerson(ctx context.Context, id string) (person persistence.Person, err error) {
	err = s.read(ctx, func(d *dataset) error {
		stored, ok := d.persons[id]
		if !ok {
			return persistence.ErrNotFound
		}
		person = clonePerson(stored)
		return nil
	})
	return person, err
}

// ListPersons returns persons ordered by ID.
func (s *Storage) ListPersons(ctx context.Context, filter persistence.PersonFilter) ([]persistence.Person, error) {
	var persons []persistence.Person
	err := s.read(ctx, func(d *dataset) error {
		for _, person := range d.persons {
			if filter.AdminsOnly && !person.IsAdmin {
				continue
			}
			persons = append(persons, clonePerson(person))
		}
		return nil
	})
	sort.Slice(persons, func(i, j int) bool { return persons[i].ID < persons[j].ID })
	return persons, err
}

// --- ReservationRepository implementation ---

// CreateReservation stores a new reservation with version 1.
func (s *Storage) CreateReservation(ctx context.Context, reservation persistence.Reservation) error {
	if reservation.ID == "" || !reservation.End.After(reservation.Start) {
		return persistence.ErrConstraintViolation
	}
	return s.write(ctx, func(d *dataset) error {
		if _, ok := d.reservations[reservation.ID]; ok {
			return fmt.Errorf("%w: reservation %s", persistence.ErrDuplicate, reservation.ID)
		}
		if err := d.ensureSlotFree(reservation); err != nil {
			return err
		}
		if reservation.Version == 0 {
			reservation.Version = 1
		}
		d.reservations[reservation.ID] = persistence.CloneReservation(reservation)
		return nil
	})
}

// GetReservation retrieves a reservation by ID.
func (s *Storage) GetReservation(ctx context.Context, id string) (reservation persistence.Reservation, err error) {
	err = s.read(ctx, func(d *dataset) error {
		stored, ok := d.reservations[id]
		if !ok {
			return persistence.ErrNotFound
		}
		reservation = persistence.CloneReservation(stored)
		return nil
	})
	return reservation, err
}

// ListReservations returns matching reservations ordered by start then ID.
func (s *Storage) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	var reservations []persistence.Reservation
	err := s.read(ctx, func(d *dataset) error {
		for _, r := range d.reservations {
			if filter.Matches(r) {
				reservations = append(reservations, persistence.CloneReservation(r))
			}
		}
		return nil
	})
	sortReservations(reservations)
	return reservations, err
}

// UpdateReservationStatus applies a status change guarded by version.
func (s *Storage) UpdateReservationStatus(ctx context.Context, id string, expectedVersion int64, status string, updatedAt time.Time) (persistence.Reservation, error) {
	var updated persistence.Reservation
	err := s.write(ctx, func(d *dataset) error {
		stored, ok := d.reservations[id]
		if !ok {
			return persistence.ErrNotFound
		}
		if stored.Version != expectedVersion {
			return persistence.ErrStaleVersion
		}
		candidate := persistence.CloneReservation(stored)
		candidate.Status = status
		candidate.Version++
		candidate.UpdatedAt = updatedAt
		if err := d.ensureSlotFree(candidate); err != nil {
			return err
		}
		d.reservations[id] = candidate
		updated = persistence.CloneReservation(candidate)
		return nil
	})
	return updated, err
}

// DeleteReservation removes a reservation guarded by version.
func (s *Storage) DeleteReservation(ctx context.Context, id string, expectedVersion int64) error {
	return s.write(ctx, func(d *dataset) error {
		stored, ok := d.reservations[id]
		if !ok {
			return persistence.ErrNotFound
		}
		if stored.Version != expectedVersion {
			return persistence.ErrStaleVersion
		}
		delete(d.reservations, id)
		return nil
	})
}

// ensureSlotFree mirrors the unique index on room slots held by approved or
// ongoing reservations.
func (d *dataset) ensureSlotFree(candidate persistence.Reservation) error {
	if !holdsSlot(candidate.Status) {
		return nil
	}
	for id, other := range d.reservations {
		if id == candidate.ID || !holdsSlot(other.Status) {
			continue
		}
		if other.Floor == candidate.Floor && other.RoomName == candidate.RoomName && other.Start.Equal(candidate.Start) {
			return fmt.Errorf("%w: room %s/%s at %s", persistence.ErrDuplicate, candidate.Floor, candidate.RoomName, candidate.Start.UTC().Format(time.RFC3339))
		}
	}
	return nil
}

func holdsSlot(status string) bool {
	return status == "approved" || status == "ongoing"
}

// --- ArchiveRepository implementation ---

// CreateArchived stores an archived reservation.
func (s *Storage) CreateArchived(ctx context.Context, archived persistence.ArchivedReservation) error {
	if archived.ArchiveID == "" {
		return persistence.ErrConstraintViolation
	}
	return s.write(ctx, func(d *dataset) error {
		if _, ok := d.archived[archived.ArchiveID]; ok {
			return fmt.Errorf("%w: archive %s", persistence.ErrDuplicate, archived.ArchiveID)
		}
		d.archived[archived.ArchiveID] = cloneArchived(archived)
		return nil
	})
}

// GetArchived retrieves an archived reservation.
func (s *Storage) GetArchived(ctx context.Context, archiveID string) (archived persistence.ArchivedReservation, err error) {
	err = s.read(ctx, func(d *dataset) error {
		stored, ok := d.archived[archiveID]
		if !ok {
			return persistence.ErrNotFound
		}
		archived = cloneArchived(stored)
		return nil
	})
	return archived, err
}

// ListArchived returns archived reservations, most recently archived first.
func (s *Storage) ListArchived(ctx context.Context) ([]persistence.ArchivedReservation, error) {
	var archived []persistence.ArchivedReservation
	err := s.read(ctx, func(d *dataset) error {
		for _, a := range d.archived {
			archived = append(archived, cloneArchived(a))
		}
		return nil
	})
	sort.Slice(archived, func(i, j int) bool {
		if archived[i].ArchivedAt.Equal(archived[j].ArchivedAt) {
			return archived[i].ArchiveID < archived[j].ArchiveID
		}
		return archived[i].ArchivedAt.After(archived[j].ArchivedAt)
	})
	return archived, err
}

// DeleteArchived removes an archived reservation permanently.
func (s *Storage) DeleteArchived(ctx context.Context, archiveID string) error {
	return s.write(ctx, func(d *dataset) error {
		if _, ok := d.archived[archiveID]; !ok {
			return persistence.ErrNotFound
		}
		delete(d.archived, archiveID)
		return nil
	})
}

// --- OutboxRepository implementation ---

// EnqueueEvent stores a notification for delivery unless its fingerprint is
// already queued.
func (s *Storage) EnqueueEvent(ctx context.Context, event persistence.OutboxEvent) (bool, error) {
	if event.ID == "" || event.Fingerprint == "" {
		return false, persistence.ErrConstraintViolation
	}
	stored := false
	err := s.write(ctx, func(d *dataset) error {
		if _, ok := d.outbox[event.ID]; ok {
			return fmt.Errorf("%w: event %s", persistence.ErrDuplicate, event.ID)
		}
		for _, existing := range d.outbox {
			if existing.Fingerprint == event.Fingerprint {
				return nil
			}
		}
		d.outbox[event.ID] = cloneOutboxEvent(event)
		stored = true
		return nil
	})
	return stored, err
}

// ListPendingEvents returns undelivered events due at now, oldest first.
func (s *Storage) ListPendingEvents(ctx context.Context, now time.Time, limit int) ([]persistence.OutboxEvent, error) {
	var events []persistence.OutboxEvent
	err := s.read(ctx, func(d *dataset) error {
		for _, e := range d.outbox {
			if e.DeliveredAt != nil || e.NextAttemptAt.After(now) {
				continue
			}
			events = append(events, cloneOutboxEvent(e))
		}
		return nil
	})
	sort.Slice(events, func(i, j int) bool {
		if events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].ID < events[j].ID
		}
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, err
}

// MarkEventDelivered records a successful delivery.
func (s *Storage) MarkEventDelivered(ctx context.Context, id string, deliveredAt time.Time) error {
	return s.write(ctx, func(d *dataset) error {
		event, ok := d.outbox[id]
		if !ok {
			return persistence.ErrNotFound
		}
		event.DeliveredAt = &deliveredAt
		d.outbox[id] = event
		return nil
	})
}

// MarkEventFailed records a failed attempt and schedules the next one.
func (s *Storage) MarkEventFailed(ctx context.Context, id string, attempts int, nextAttemptAt time.Time, lastError string) error {
	return s.write(ctx, func(d *dataset) error {
		event, ok := d.outbox[id]
		if !ok {
			return persistence.ErrNotFound
		}
		event.Attempts = attempts
		event.NextAttemptAt = nextAttemptAt
		event.LastError = lastError
		d.outbox[id] = event
		return nil
	})
}

func sortReservations(reservations []persistence.Reservation) {
	sort.Slice(reservations, func(i, j int) bool {
		if reservations[i].Start.Equal(reservations[j].Start) {
			return reservations[i].ID < reservations[j].ID
		}
		return reservations[i].Start.Before(reservations[j].Start)
	})
}

func clonePerson(p persistence.Person) persistence.Person {
	if p.TelegramChatID != nil {
		chatID := *p.TelegramChatID
		p.TelegramChatID = &chatID
	}
	return p
}

func cloneArchived(a persistence.ArchivedReservation) persistence.ArchivedReservation {
	a.Reservation = persistence.CloneReservation(a.Reservation)
	return a
}

func cloneOutboxEvent(e persistence.OutboxEvent) persistence.OutboxEvent {
	e.Payload = append([]byte(nil), e.Payload...)
	if e.DeliveredAt != nil {
		at := *e.DeliveredAt
		e.DeliveredAt = &at
	}
	return e
}
