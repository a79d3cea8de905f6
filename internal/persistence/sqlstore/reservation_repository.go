package sqlstore

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/example/room-reservations/internal/persistence"
)

var reservationColumns = []string{
	"id", "owner_id", "floor", "room_name", "start_at", "end_at", "date",
	"purpose", "status", "version", "created_at", "updated_at",
}

var participantColumns = []string{
	"reservation_id", "position", "person_id", "display_name", "program", "year_level", "department",
}

// CreateReservation inserts a reservation and its participants. It must run
// inside a transaction when participants are present.
func (s *Store) CreateReservation(ctx context.Context, r persistence.Reservation) error {
	if r.ID == "" || !r.End.After(r.Start) {
		return persistence.ErrConstraintViolation
	}
	if r.Version == 0 {
		r.Version = 1
	}
	return s.DoSerializable(ctx, func(ctx context.Context) error {
		if _, err := s.exec(ctx, s.sb.Insert("reservations").
			Columns(reservationColumns...).
			Values(r.ID, r.OwnerID, r.Floor, r.RoomName,
				s.dialect.encodeTime(r.Start), s.dialect.encodeTime(r.End), r.Date,
				r.Purpose, r.Status, r.Version,
				s.dialect.encodeTime(r.CreatedAt), s.dialect.encodeTime(r.UpdatedAt))); err != nil {
			return err
		}
		return s.insertParticipants(ctx, r.ID, r.Participants)
	})
}

func (s *Store) insertParticipants(ctx context.Context, reservationID string, participants []persistence.Participant) error {
	if len(participants) == 0 {
		return nil
	}
	insert := s.sb.Insert("reservation_participants").Columns(participantColumns...)
	for i, p := range participants {
		insert = insert.Values(reservationID, i, p.PersonID, p.DisplayName, p.Program, p.YearLevel, p.Department)
	}
	_, err := s.exec(ctx, insert)
	return err
}

// GetReservation retrieves a reservation with its participants.
func (s *Store) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	reservations, err := s.selectReservations(ctx, s.sb.Select(reservationColumns...).
		From("reservations").
		Where(sq.Eq{"id": id}))
	if err != nil {
		return persistence.Reservation{}, err
	}
	if len(reservations) == 0 {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	return reservations[0], nil
}

// ListReservations returns matching reservations ordered by start then ID.
func (s *Store) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	query := s.sb.Select(reservationColumns...).From("reservations").OrderBy("start_at", "id")

	if filter.Floor != "" {
		query = query.Where(sq.Eq{"floor": filter.Floor})
	}
	if filter.RoomName != "" {
		query = query.Where(sq.Eq{"room_name": filter.RoomName})
	}
	if filter.OwnerID != "" {
		query = query.Where(sq.Eq{"owner_id": filter.OwnerID})
	}
	if filter.PersonID != "" {
		query = query.Where(sq.Or{
			sq.Eq{"owner_id": filter.PersonID},
			sq.Expr("id IN (SELECT reservation_id FROM reservation_participants WHERE person_id = ?)", filter.PersonID),
		})
	}
	if filter.Date != "" {
		query = query.Where(sq.Eq{"date": filter.Date})
	}
	if len(filter.Statuses) > 0 {
		query = query.Where(sq.Eq{"status": filter.Statuses})
	}
	if filter.StartsBefore != nil {
		query = query.Where(sq.Lt{"start_at": s.dialect.encodeTime(*filter.StartsBefore)})
	}
	if filter.StartsAtOrAfter != nil {
		query = query.Where(sq.GtOrEq{"start_at": s.dialect.encodeTime(*filter.StartsAtOrAfter)})
	}
	if filter.EndsAfter != nil {
		query = query.Where(sq.Gt{"end_at": s.dialect.encodeTime(*filter.EndsAfter)})
	}
	if filter.EndsAtOrBefore != nil {
		query = query.Where(sq.LtOrEq{"end_at": s.dialect.encodeTime(*filter.EndsAtOrBefore)})
	}

	return s.selectReservations(ctx, query)
}

// UpdateReservationStatus applies a status change guarded by version.
func (s *Store) UpdateReservationStatus(ctx context.Context, id string, expectedVersion int64, status string, updatedAt time.Time) (persistence.Reservation, error) {
	var updated persistence.Reservation
	err := s.DoSerializable(ctx, func(ctx context.Context) error {
		result, err := s.exec(ctx, s.sb.Update("reservations").
			Set("status", status).
			Set("version", sq.Expr("version + 1")).
			Set("updated_at", s.dialect.encodeTime(updatedAt)).
			Where(sq.Eq{"id": id, "version": expectedVersion}))
		if err != nil {
			return err
		}
		if err := s.versionGuard(ctx, result, id); err != nil {
			return err
		}
		updated, err = s.GetReservation(ctx, id)
		return err
	})
	if err != nil {
		return persistence.Reservation{}, err
	}
	return updated, nil
}

// DeleteReservation removes a reservation guarded by version. Participants
// cascade.
func (s *Store) DeleteReservation(ctx context.Context, id string, expectedVersion int64) error {
	return s.DoSerializable(ctx, func(ctx context.Context) error {
		if _, err := s.exec(ctx, s.sb.Delete("reservation_participants").
			Where(sq.Expr("reservation_id IN (SELECT id FROM reservations WHERE id = ? AND version = ?)", id, expectedVersion))); err != nil {
			return err
		}
		result, err := s.exec(ctx, s.sb.Delete("reservations").Where(sq.Eq{"id": id, "version": expectedVersion}))
		if err != nil {
			return err
		}
		return s.versionGuard(ctx, result, id)
	})
}

// versionGuard distinguishes a missing row from a lost optimistic race.
func (s *Store) versionGuard(ctx context.Context, result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	var exists int
	err = s.queryRow(ctx, s.sb.Select("1").From("reservations").Where(sq.Eq{"id": id}), &exists)
	if err != nil {
		return err
	}
	return persistence.ErrStaleVersion
}

func (s *Store) selectReservations(ctx context.Context, query sq.SelectBuilder) ([]persistence.Reservation, error) {
	rows, err := s.query(ctx, query)
	if err != nil {
		return nil, err
	}

	var reservations []persistence.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			rows.Close()
			return nil, s.mapper.MapError(err)
		}
		reservations = append(reservations, r)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, s.mapper.MapError(err)
	}

	if err := s.attachParticipants(ctx, reservations); err != nil {
		return nil, err
	}
	return reservations, nil
}

func (s *Store) attachParticipants(ctx context.Context, reservations []persistence.Reservation) error {
	if len(reservations) == 0 {
		return nil
	}
	ids := make([]string, len(reservations))
	index := make(map[string]int, len(reservations))
	for i, r := range reservations {
		ids[i] = r.ID
		index[r.ID] = i
	}

	rows, err := s.query(ctx, s.sb.Select(participantColumns...).
		From("reservation_participants").
		Where(sq.Eq{"reservation_id": ids}).
		OrderBy("reservation_id", "position"))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var reservationID string
		var position int
		var p persistence.Participant
		if err := rows.Scan(&reservationID, &position, &p.PersonID, &p.DisplayName, &p.Program, &p.YearLevel, &p.Department); err != nil {
			return s.mapper.MapError(err)
		}
		i := index[reservationID]
		reservations[i].Participants = append(reservations[i].Participants, p)
	}
	return s.mapper.MapError(rows.Err())
}

func scanReservation(row rowScanner) (persistence.Reservation, error) {
	var r persistence.Reservation
	err := row.Scan(&r.ID, &r.OwnerID, &r.Floor, &r.RoomName,
		scanTime(&r.Start), scanTime(&r.End), &r.Date,
		&r.Purpose, &r.Status, &r.Version,
		scanTime(&r.CreatedAt), scanTime(&r.UpdatedAt))
	return r, err
}
