package http

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/example/room-reservations/internal/application"
)

type fakeResolver map[string]application.Principal

func (f fakeResolver) ResolvePrincipal(_ context.Context, personID string) (application.Principal, error) {
	principal, ok := f[personID]
	if !ok {
		return application.Principal{}, application.ErrUnauthorized
	}
	return principal, nil
}

var testPrincipals = fakeResolver{
	"2021-00001": {UserID: "2021-00001"},
	"admin-1":    {UserID: "admin-1", IsAdmin: true},
}

type mockRooms struct{ mock.Mock }

func (m *mockRooms) ListActiveRooms(ctx context.Context) ([]application.Room, error) {
	args := m.Called(ctx)
	rooms, _ := args.Get(0).([]application.Room)
	return rooms, args.Error(1)
}

func (m *mockRooms) ComputeAvailability(ctx context.Context, date, viewerID string) ([]application.RoomAvailability, error) {
	args := m.Called(ctx, date, viewerID)
	result, _ := args.Get(0).([]application.RoomAvailability)
	return result, args.Error(1)
}

type mockReservations struct{ mock.Mock }

func (m *mockReservations) Create(ctx context.Context, principal application.Principal, req application.BookingRequest) (application.Reservation, error) {
	args := m.Called(ctx, principal, req)
	res, _ := args.Get(0).(application.Reservation)
	return res, args.Error(1)
}

func (m *mockReservations) CheckQuota(ctx context.Context, principal application.Principal, date string) (application.QuotaCheck, error) {
	args := m.Called(ctx, principal, date)
	check, _ := args.Get(0).(application.QuotaCheck)
	return check, args.Error(1)
}

func (m *mockReservations) SetStatus(ctx context.Context, principal application.Principal, id, status string) (application.Reservation, error) {
	args := m.Called(ctx, principal, id, status)
	res, _ := args.Get(0).(application.Reservation)
	return res, args.Error(1)
}

func (m *mockReservations) Cancel(ctx context.Context, principal application.Principal, id string) (application.Reservation, error) {
	args := m.Called(ctx, principal, id)
	res, _ := args.Get(0).(application.Reservation)
	return res, args.Error(1)
}

func (m *mockReservations) GetReservation(ctx context.Context, principal application.Principal, id string) (application.Reservation, error) {
	args := m.Called(ctx, principal, id)
	res, _ := args.Get(0).(application.Reservation)
	return res, args.Error(1)
}

func (m *mockReservations) ListReservations(ctx context.Context, principal application.Principal, query application.ReservationQuery) ([]application.Reservation, error) {
	args := m.Called(ctx, principal, query)
	res, _ := args.Get(0).([]application.Reservation)
	return res, args.Error(1)
}

type mockArchive struct{ mock.Mock }

func (m *mockArchive) Archive(ctx context.Context, principal application.Principal, id string) (application.ArchivedReservation, error) {
	args := m.Called(ctx, principal, id)
	a, _ := args.Get(0).(application.ArchivedReservation)
	return a, args.Error(1)
}

func (m *mockArchive) Restore(ctx context.Context, principal application.Principal, id string) (application.Reservation, error) {
	args := m.Called(ctx, principal, id)
	res, _ := args.Get(0).(application.Reservation)
	return res, args.Error(1)
}

func (m *mockArchive) Purge(ctx context.Context, principal application.Principal, id string) error {
	return m.Called(ctx, principal, id).Error(0)
}

func (m *mockArchive) ListArchived(ctx context.Context, principal application.Principal) ([]application.ArchivedReservation, error) {
	args := m.Called(ctx, principal)
	a, _ := args.Get(0).([]application.ArchivedReservation)
	return a, args.Error(1)
}

func (m *mockArchive) GetArchived(ctx context.Context, principal application.Principal, id string) (application.ArchivedReservation, error) {
	args := m.Called(ctx, principal, id)
	a, _ := args.Get(0).(application.ArchivedReservation)
	return a, args.Error(1)
}

type mockPersons struct{ mock.Mock }

func (m *mockPersons) RegisterPerson(ctx context.Context, principal application.Principal, input application.PersonInput) (application.Person, error) {
	args := m.Called(ctx, principal, input)
	p, _ := args.Get(0).(application.Person)
	return p, args.Error(1)
}

func (m *mockPersons) SetVerified(ctx context.Context, principal application.Principal, id string, verified bool) (application.Person, error) {
	args := m.Called(ctx, principal, id, verified)
	p, _ := args.Get(0).(application.Person)
	return p, args.Error(1)
}

func (m *mockPersons) GetPerson(ctx context.Context, principal application.Principal, id string) (application.Person, error) {
	args := m.Called(ctx, principal, id)
	p, _ := args.Get(0).(application.Person)
	return p, args.Error(1)
}

func (m *mockPersons) ListPersons(ctx context.Context, principal application.Principal) ([]application.Person, error) {
	args := m.Called(ctx, principal)
	p, _ := args.Get(0).([]application.Person)
	return p, args.Error(1)
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubSweeper struct {
	expired int
	err     error
	calls   int
}

func (s *stubSweeper) Sweep(context.Context) (int, error) {
	s.calls++
	return s.expired, s.err
}
