package sqlstore

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"

	"github.com/example/room-reservations/internal/persistence"
)

var roomColumns = []string{"id", "floor", "name", "capacity", "active", "created_at", "updated_at"}

// CreateRoom inserts a new room.
func (s *Store) CreateRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" || room.Floor == "" || room.Name == "" || room.Capacity < 0 {
		return persistence.ErrConstraintViolation
	}
	_, err := s.exec(ctx, s.sb.Insert("rooms").
		Columns(roomColumns...).
		Values(room.ID, room.Floor, room.Name, room.Capacity, room.Active,
			s.dialect.encodeTime(room.CreatedAt), s.dialect.encodeTime(room.UpdatedAt)))
	return err
}

// UpdateRoom updates an existing room.
func (s *Store) UpdateRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" || room.Capacity < 0 {
		return persistence.ErrConstraintViolation
	}
	result, err := s.exec(ctx, s.sb.Update("rooms").
		Set("floor", room.Floor).
		Set("name", room.Name).
		Set("capacity", room.Capacity).
		Set("active", room.Active).
		Set("updated_at", s.dialect.encodeTime(room.UpdatedAt)).
		Where(sq.Eq{"id": room.ID}))
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// GetRoom retrieves a room by ID.
func (s *Store) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	return s.getRoom(ctx, sq.Eq{"id": id})
}

// GetRoomByKey retrieves a room by floor and name.
func (s *Store) GetRoomByKey(ctx context.Context, floor, name string) (persistence.Room, error) {
	return s.getRoom(ctx, sq.Eq{"floor": floor, "name": name})
}

func (s *Store) getRoom(ctx context.Context, where sq.Eq) (persistence.Room, error) {
	text, args, err := s.sb.Select(roomColumns...).From("rooms").Where(where).ToSql()
	if err != nil {
		return persistence.Room{}, err
	}
	room, err := scanRoom(s.executor(ctx).QueryRowContext(ctx, text, args...))
	if err != nil {
		return persistence.Room{}, s.mapper.MapError(err)
	}
	return room, nil
}

// ListRooms returns rooms ordered by floor then name.
func (s *Store) ListRooms(ctx context.Context, activeOnly bool) ([]persistence.Room, error) {
	query := s.sb.Select(roomColumns...).From("rooms").OrderBy("floor", "name")
	if activeOnly {
		query = query.Where(sq.Eq{"active": true})
	}
	rows, err := s.query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []persistence.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, s.mapper.MapError(err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, s.mapper.MapError(err)
	}
	return rooms, nil
}

func scanRoom(row rowScanner) (persistence.Room, error) {
	var room persistence.Room
	err := row.Scan(&room.ID, &room.Floor, &room.Name, &room.Capacity, &room.Active,
		scanTime(&room.CreatedAt), scanTime(&room.UpdatedAt))
	if err == sql.ErrNoRows {
		return persistence.Room{}, persistence.ErrNotFound
	}
	return room, err
}
