package application

import (
	"context"
	"slices"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/scheduler"
)

// fakeStore is an in-memory implementation of every repository the
// services consume.
type fakeStore struct {
	mu           sync.Mutex
	rooms        map[scheduler.RoomKey]Room
	persons      map[string]Person
	reservations map[string]Reservation
	archived     map[string]ArchivedReservation
	events       []scheduler.Event
	err          error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rooms:        make(map[scheduler.RoomKey]Room),
		persons:      make(map[string]Person),
		reservations: make(map[string]Reservation),
		archived:     make(map[string]ArchivedReservation),
	}
}

func (f *fakeStore) addRoom(floor, name string, active bool) Room {
	f.mu.Lock()
	defer f.mu.Unlock()
	room := Room{ID: floor + "/" + name, Floor: floor, Name: name, Capacity: 8, Active: active}
	f.rooms[room.Key()] = room
	return room
}

func (f *fakeStore) addPerson(id string, verified, admin bool) Person {
	f.mu.Lock()
	defer f.mu.Unlock()
	person := Person{ID: id, DisplayName: "Person " + id, Program: "BSCS", YearLevel: "3", Department: "CS", Verified: verified, IsAdmin: admin}
	f.persons[id] = person
	return person
}

func (f *fakeStore) put(r Reservation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.Version == 0 {
		r.Version = 1
	}
	if r.Date == "" {
		r.Date = scheduler.DateOf(r.Start)
	}
	f.reservations[r.ID] = cloneReservation(r)
}

func (f *fakeStore) snapshotEvents() []scheduler.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.events)
}

func (f *fakeStore) ListActiveRooms(ctx context.Context) ([]Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var rooms []Room
	for _, room := range f.rooms {
		if room.Active {
			rooms = append(rooms, room)
		}
	}
	return rooms, nil
}

func (f *fakeStore) GetRoomByKey(ctx context.Context, floor, name string) (Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return Room{}, f.err
	}
	room, ok := f.rooms[scheduler.RoomKey{Floor: floor, Name: name}]
	if !ok {
		return Room{}, persistence.ErrNotFound
	}
	return room, nil
}

func (f *fakeStore) GetPerson(ctx context.Context, id string) (Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return Person{}, f.err
	}
	person, ok := f.persons[id]
	if !ok {
		return Person{}, persistence.ErrNotFound
	}
	return person, nil
}

func (f *fakeStore) ListAdmins(ctx context.Context) ([]Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var admins []Person
	for _, p := range f.persons {
		if p.IsAdmin {
			admins = append(admins, p)
		}
	}
	sort.Slice(admins, func(i, j int) bool { return admins[i].ID < admins[j].ID })
	return admins, nil
}

func (f *fakeStore) UpsertPerson(ctx context.Context, person Person) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.persons[person.ID] = person
	return nil
}

func (f *fakeStore) ListPersons(ctx context.Context) ([]Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var persons []Person
	for _, p := range f.persons {
		persons = append(persons, p)
	}
	return persons, nil
}

func (f *fakeStore) CreateReservation(ctx context.Context, r Reservation) (Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return Reservation{}, f.err
	}
	if _, exists := f.reservations[r.ID]; exists {
		return Reservation{}, persistence.ErrDuplicate
	}
	f.reservations[r.ID] = cloneReservation(r)
	return cloneReservation(r), nil
}

func (f *fakeStore) GetReservation(ctx context.Context, id string) (Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return Reservation{}, f.err
	}
	r, ok := f.reservations[id]
	if !ok {
		return Reservation{}, persistence.ErrNotFound
	}
	return cloneReservation(r), nil
}

func (f *fakeStore) ListReservations(ctx context.Context, filter ReservationFilter) ([]Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []Reservation
	for _, r := range f.reservations {
		if matchesFilter(filter, r) {
			out = append(out, cloneReservation(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, id string, expectedVersion int64, status scheduler.Status, at time.Time) (Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return Reservation{}, f.err
	}
	r, ok := f.reservations[id]
	if !ok {
		return Reservation{}, persistence.ErrNotFound
	}
	if r.Version != expectedVersion {
		return Reservation{}, persistence.ErrStaleVersion
	}
	r.Status = status
	r.Version++
	r.UpdatedAt = at
	f.reservations[id] = r
	return cloneReservation(r), nil
}

func (f *fakeStore) DeleteReservation(ctx context.Context, id string, expectedVersion int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	if !ok {
		return persistence.ErrNotFound
	}
	if r.Version != expectedVersion {
		return persistence.ErrStaleVersion
	}
	delete(f.reservations, id)
	return nil
}

func (f *fakeStore) CreateArchived(ctx context.Context, a ArchivedReservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.Reservation = cloneReservation(a.Reservation)
	f.archived[a.ArchiveID] = a
	return nil
}

func (f *fakeStore) GetArchived(ctx context.Context, archiveID string) (ArchivedReservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.archived[archiveID]
	if !ok {
		return ArchivedReservation{}, persistence.ErrNotFound
	}
	a.Reservation = cloneReservation(a.Reservation)
	return a, nil
}

func (f *fakeStore) ListArchived(ctx context.Context) ([]ArchivedReservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ArchivedReservation
	for _, a := range f.archived {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ArchivedAt.After(out[j].ArchivedAt) })
	return out, nil
}

func (f *fakeStore) DeleteArchived(ctx context.Context, archiveID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.archived[archiveID]; !ok {
		return persistence.ErrNotFound
	}
	delete(f.archived, archiveID)
	return nil
}

func (f *fakeStore) Enqueue(ctx context.Context, event scheduler.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func matchesFilter(filter ReservationFilter, r Reservation) bool {
	if filter.Floor != "" && r.Floor != filter.Floor {
		return false
	}
	if filter.RoomName != "" && r.RoomName != filter.RoomName {
		return false
	}
	if filter.OwnerID != "" && r.OwnerID != filter.OwnerID {
		return false
	}
	if filter.PersonID != "" && !r.Involves(filter.PersonID) {
		return false
	}
	if filter.Date != "" && r.Date != filter.Date {
		return false
	}
	if len(filter.Statuses) > 0 && !r.Status.In(filter.Statuses) {
		return false
	}
	if filter.StartsAtOrAfter != nil && r.Start.Before(*filter.StartsAtOrAfter) {
		return false
	}
	if filter.StartsBefore != nil && !r.Start.Before(*filter.StartsBefore) {
		return false
	}
	if filter.EndsAfter != nil && !r.End.After(*filter.EndsAfter) {
		return false
	}
	if filter.EndsAtOrBefore != nil && r.End.After(*filter.EndsAtOrBefore) {
		return false
	}
	return true
}

func cloneReservation(r Reservation) Reservation {
	r.Participants = slices.Clone(r.Participants)
	return r
}

// testClock is a settable time source.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func sequence(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return prefix + "-" + strconv.Itoa(n)
	}
}

// at returns hour:00 on the given March 2025 day in the service zone.
// 2025-03-10 is a Monday.
func at(day, hour int) time.Time {
	return time.Date(2025, time.March, day, hour, 0, 0, 0, scheduler.Zone)
}

const (
	groundFloor    = "Ground Floor"
	discussionRoom = "Discussion Room"
	studyRoom      = "Study Room"
)

type serviceHarness struct {
	store        *fakeStore
	clock        *testClock
	locker       *KeyedLocker
	reservations *ReservationService
	archive      *ArchiveService
	availability *AvailabilityService
}

func newServiceHarness(t *testing.T) *serviceHarness {
	t.Helper()

	store := newFakeStore()
	store.addRoom(groundFloor, discussionRoom, true)
	store.addRoom(groundFloor, studyRoom, true)
	store.addRoom("Second Floor", "Closed Room", false)
	store.addPerson("owner-1", true, false)
	store.addPerson("owner-2", true, false)
	store.addPerson("admin-1", true, true)
	store.addPerson("2021-00001", true, false)
	store.addPerson("2021-00002", true, false)
	store.addPerson("2021-00003", true, false)
	store.addPerson("2021-00099", false, false)

	clock := &testClock{now: at(9, 8)}
	locker := NewKeyedLocker()
	ids := sequence("id")

	return &serviceHarness{
		store:  store,
		clock:  clock,
		locker: locker,
		reservations: NewReservationService(ReservationDeps{
			Rooms:        store,
			Persons:      store,
			Reservations: store,
			Outbox:       store,
			Locker:       locker,
			IDGenerator:  ids,
			Now:          clock.Now,
			Timeout:      5 * time.Second,
		}),
		archive:      NewArchiveService(store, store, nil, locker, ids, clock.Now, nil),
		availability: NewAvailabilityService(store, store, nil, nil),
	}
}

func bookingRequest(owner string, day, hour int, participants ...string) BookingRequest {
	return BookingRequest{
		OwnerID:        owner,
		Floor:          groundFloor,
		RoomName:       discussionRoom,
		Date:           at(day, 0).Format(scheduler.DateLayout),
		StartTime:      at(day, hour).Format("15:04"),
		Purpose:        "thesis consultation",
		ParticipantIDs: participants,
	}
}

func stored(id, owner, room string, start time.Time, status scheduler.Status, participants ...string) Reservation {
	r := Reservation{
		ID:       id,
		OwnerID:  owner,
		Floor:    groundFloor,
		RoomName: room,
		Start:    start,
		End:      scheduler.SlotEnd(start),
		Status:   status,
	}
	for _, p := range participants {
		r.Participants = append(r.Participants, Participant{PersonID: p})
	}
	return r
}
