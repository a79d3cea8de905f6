package main

import (
	"context"
	"errors"
	"time"

	"github.com/example/room-reservations/internal/application"
	"github.com/example/room-reservations/internal/persistence"
	"github.com/example/room-reservations/internal/scheduler"
)

type roomCatalogAdapter struct {
	repo persistence.RoomRepository
}

func newRoomCatalogAdapter(repo persistence.RoomRepository) *roomCatalogAdapter {
	return &roomCatalogAdapter{repo: repo}
}

func (a *roomCatalogAdapter) ListActiveRooms(ctx context.Context) ([]application.Room, error) {
	models, err := a.repo.ListRooms(ctx, true)
	if err != nil {
		return nil, err
	}
	rooms := make([]application.Room, 0, len(models))
	for _, model := range models {
		rooms = append(rooms, toApplicationRoom(model))
	}
	return rooms, nil
}

func (a *roomCatalogAdapter) GetRoomByKey(ctx context.Context, floor, name string) (application.Room, error) {
	stored, err := a.repo.GetRoomByKey(ctx, floor, name)
	if err != nil {
		return application.Room{}, err
	}
	return toApplicationRoom(stored), nil
}

type personStoreAdapter struct {
	repo persistence.PersonRepository
	now  func() time.Time
}

func newPersonStoreAdapter(repo persistence.PersonRepository, now func() time.Time) *personStoreAdapter {
	if now == nil {
		now = time.Now
	}
	return &personStoreAdapter{repo: repo, now: now}
}

func (a *personStoreAdapter) GetPerson(ctx context.Context, id string) (application.Person, error) {
	stored, err := a.repo.GetPerson(ctx, id)
	if err != nil {
		return application.Person{}, err
	}
	return toApplicationPerson(stored), nil
}

func (a *personStoreAdapter) ListAdmins(ctx context.Context) ([]application.Person, error) {
	return a.list(ctx, persistence.PersonFilter{AdminsOnly: true})
}

func (a *personStoreAdapter) ListPersons(ctx context.Context) ([]application.Person, error) {
	return a.list(ctx, persistence.PersonFilter{})
}

func (a *personStoreAdapter) list(ctx context.Context, filter persistence.PersonFilter) ([]application.Person, error) {
	models, err := a.repo.ListPersons(ctx, filter)
	if err != nil {
		return nil, err
	}
	persons := make([]application.Person, 0, len(models))
	for _, model := range models {
		persons = append(persons, toApplicationPerson(model))
	}
	return persons, nil
}

// UpsertPerson keeps the original creation time of an existing record.
func (a *personStoreAdapter) UpsertPerson(ctx context.Context, person application.Person) error {
	now := a.now().UTC()
	createdAt := now
	current, err := a.repo.GetPerson(ctx, person.ID)
	switch {
	case err == nil:
		createdAt = current.CreatedAt
	case !errors.Is(err, persistence.ErrNotFound):
		return err
	}
	return a.repo.UpsertPerson(ctx, toPersistencePerson(person, createdAt, now))
}

type reservationRepositoryAdapter struct {
	repo persistence.ReservationRepository
}

func newReservationRepositoryAdapter(repo persistence.ReservationRepository) *reservationRepositoryAdapter {
	return &reservationRepositoryAdapter{repo: repo}
}

func (a *reservationRepositoryAdapter) CreateReservation(ctx context.Context, reservation application.Reservation) (application.Reservation, error) {
	if err := a.repo.CreateReservation(ctx, toPersistenceReservation(reservation)); err != nil {
		return application.Reservation{}, err
	}
	return reservation, nil
}

func (a *reservationRepositoryAdapter) GetReservation(ctx context.Context, id string) (application.Reservation, error) {
	stored, err := a.repo.GetReservation(ctx, id)
	if err != nil {
		return application.Reservation{}, err
	}
	return toApplicationReservation(stored), nil
}

func (a *reservationRepositoryAdapter) ListReservations(ctx context.Context, filter application.ReservationFilter) ([]application.Reservation, error) {
	models, err := a.repo.ListReservations(ctx, toPersistenceFilter(filter))
	if err != nil {
		return nil, err
	}
	reservations := make([]application.Reservation, 0, len(models))
	for _, model := range models {
		reservations = append(reservations, toApplicationReservation(model))
	}
	return reservations, nil
}

func (a *reservationRepositoryAdapter) UpdateStatus(ctx context.Context, id string, expectedVersion int64, status scheduler.Status, at time.Time) (application.Reservation, error) {
	stored, err := a.repo.UpdateReservationStatus(ctx, id, expectedVersion, string(status), at)
	if err != nil {
		return application.Reservation{}, err
	}
	return toApplicationReservation(stored), nil
}

func (a *reservationRepositoryAdapter) DeleteReservation(ctx context.Context, id string, expectedVersion int64) error {
	return a.repo.DeleteReservation(ctx, id, expectedVersion)
}

type archiveRepositoryAdapter struct {
	repo persistence.ArchiveRepository
}

func newArchiveRepositoryAdapter(repo persistence.ArchiveRepository) *archiveRepositoryAdapter {
	return &archiveRepositoryAdapter{repo: repo}
}

func (a *archiveRepositoryAdapter) CreateArchived(ctx context.Context, archived application.ArchivedReservation) error {
	return a.repo.CreateArchived(ctx, persistence.ArchivedReservation{
		ArchiveID:   archived.ArchiveID,
		ArchivedAt:  archived.ArchivedAt,
		Reservation: toPersistenceReservation(archived.Reservation),
	})
}

func (a *archiveRepositoryAdapter) GetArchived(ctx context.Context, archiveID string) (application.ArchivedReservation, error) {
	stored, err := a.repo.GetArchived(ctx, archiveID)
	if err != nil {
		return application.ArchivedReservation{}, err
	}
	return toApplicationArchived(stored), nil
}

func (a *archiveRepositoryAdapter) ListArchived(ctx context.Context) ([]application.ArchivedReservation, error) {
	models, err := a.repo.ListArchived(ctx)
	if err != nil {
		return nil, err
	}
	archived := make([]application.ArchivedReservation, 0, len(models))
	for _, model := range models {
		archived = append(archived, toApplicationArchived(model))
	}
	return archived, nil
}

func (a *archiveRepositoryAdapter) DeleteArchived(ctx context.Context, archiveID string) error {
	return a.repo.DeleteArchived(ctx, archiveID)
}

func toApplicationRoom(model persistence.Room) application.Room {
	return application.Room{
		ID:       model.ID,
		Floor:    model.Floor,
		Name:     model.Name,
		Capacity: model.Capacity,
		Active:   model.Active,
	}
}

func toApplicationPerson(model persistence.Person) application.Person {
	return application.Person{
		ID:             model.ID,
		DisplayName:    model.DisplayName,
		Email:          model.Email,
		Program:        model.Program,
		YearLevel:      model.YearLevel,
		Department:     model.Department,
		Verified:       model.Verified,
		IsAdmin:        model.IsAdmin,
		TelegramChatID: cloneInt64(model.TelegramChatID),
	}
}

func toPersistencePerson(person application.Person, createdAt, updatedAt time.Time) persistence.Person {
	return persistence.Person{
		ID:             person.ID,
		DisplayName:    person.DisplayName,
		Email:          person.Email,
		Program:        person.Program,
		YearLevel:      person.YearLevel,
		Department:     person.Department,
		Verified:       person.Verified,
		IsAdmin:        person.IsAdmin,
		TelegramChatID: cloneInt64(person.TelegramChatID),
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}
}

func toApplicationReservation(model persistence.Reservation) application.Reservation {
	participants := make([]application.Participant, 0, len(model.Participants))
	for _, p := range model.Participants {
		participants = append(participants, application.Participant(p))
	}
	return application.Reservation{
		ID:           model.ID,
		OwnerID:      model.OwnerID,
		Floor:        model.Floor,
		RoomName:     model.RoomName,
		Start:        model.Start,
		End:          model.End,
		Date:         model.Date,
		Purpose:      model.Purpose,
		Status:       scheduler.Status(model.Status),
		Version:      model.Version,
		Participants: participants,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
}

func toPersistenceReservation(reservation application.Reservation) persistence.Reservation {
	participants := make([]persistence.Participant, 0, len(reservation.Participants))
	for _, p := range reservation.Participants {
		participants = append(participants, persistence.Participant(p))
	}
	return persistence.Reservation{
		ID:           reservation.ID,
		OwnerID:      reservation.OwnerID,
		Floor:        reservation.Floor,
		RoomName:     reservation.RoomName,
		Start:        reservation.Start,
		End:          reservation.End,
		Date:         reservation.Date,
		Purpose:      reservation.Purpose,
		Status:       string(reservation.Status),
		Version:      reservation.Version,
		Participants: participants,
		CreatedAt:    reservation.CreatedAt,
		UpdatedAt:    reservation.UpdatedAt,
	}
}

func toApplicationArchived(model persistence.ArchivedReservation) application.ArchivedReservation {
	return application.ArchivedReservation{
		ArchiveID:   model.ArchiveID,
		ArchivedAt:  model.ArchivedAt,
		Reservation: toApplicationReservation(model.Reservation),
	}
}

func toPersistenceFilter(filter application.ReservationFilter) persistence.ReservationFilter {
	var statuses []string
	if len(filter.Statuses) > 0 {
		statuses = make([]string, 0, len(filter.Statuses))
		for _, status := range filter.Statuses {
			statuses = append(statuses, string(status))
		}
	}
	return persistence.ReservationFilter{
		Floor:           filter.Floor,
		RoomName:        filter.RoomName,
		OwnerID:         filter.OwnerID,
		PersonID:        filter.PersonID,
		Date:            filter.Date,
		Statuses:        statuses,
		StartsBefore:    cloneTime(filter.StartsBefore),
		StartsAtOrAfter: cloneTime(filter.StartsAtOrAfter),
		EndsAfter:       cloneTime(filter.EndsAfter),
		EndsAtOrBefore:  cloneTime(filter.EndsAtOrBefore),
	}
}

func cloneInt64(value *int64) *int64 {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
