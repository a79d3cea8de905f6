package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/example/room-reservations/internal/persistence"
)

var archiveColumns = []string{
	"archive_id", "reservation_id", "owner_id", "floor", "room_name", "start_at", "end_at", "date",
	"purpose", "status", "version", "participants", "created_at", "updated_at", "archived_at",
}

// archivedParticipant is the JSON shape of the participants column.
type archivedParticipant struct {
	PersonID    string `json:"person_id"`
	DisplayName string `json:"display_name"`
	Program     string `json:"program,omitempty"`
	YearLevel   string `json:"year_level,omitempty"`
	Department  string `json:"department,omitempty"`
}

// CreateArchived inserts an archived reservation.
func (s *Store) CreateArchived(ctx context.Context, a persistence.ArchivedReservation) error {
	if a.ArchiveID == "" {
		return persistence.ErrConstraintViolation
	}
	participants, err := encodeParticipants(a.Participants)
	if err != nil {
		return err
	}
	var date any
	if a.Date != "" {
		date = a.Date
	}
	_, err = s.exec(ctx, s.sb.Insert("archived_reservations").
		Columns(archiveColumns...).
		Values(a.ArchiveID, a.ID, a.OwnerID, a.Floor, a.RoomName,
			s.dialect.encodeTime(a.Start), s.dialect.encodeTime(a.End), date,
			a.Purpose, a.Status, a.Version, participants,
			s.dialect.encodeTime(a.CreatedAt), s.dialect.encodeTime(a.UpdatedAt), s.dialect.encodeTime(a.ArchivedAt)))
	return err
}

// GetArchived retrieves an archived reservation.
func (s *Store) GetArchived(ctx context.Context, archiveID string) (persistence.ArchivedReservation, error) {
	text, args, err := s.sb.Select(archiveColumns...).From("archived_reservations").Where(sq.Eq{"archive_id": archiveID}).ToSql()
	if err != nil {
		return persistence.ArchivedReservation{}, err
	}
	archived, err := scanArchived(s.executor(ctx).QueryRowContext(ctx, text, args...))
	if err != nil {
		return persistence.ArchivedReservation{}, s.mapper.MapError(err)
	}
	return archived, nil
}

// ListArchived returns archived reservations, most recently archived first.
func (s *Store) ListArchived(ctx context.Context) ([]persistence.ArchivedReservation, error) {
	rows, err := s.query(ctx, s.sb.Select(archiveColumns...).From("archived_reservations").OrderBy("archived_at DESC", "archive_id"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var archived []persistence.ArchivedReservation
	for rows.Next() {
		a, err := scanArchived(rows)
		if err != nil {
			return nil, s.mapper.MapError(err)
		}
		archived = append(archived, a)
	}
	if err := rows.Err(); err != nil {
		return nil, s.mapper.MapError(err)
	}
	return archived, nil
}

// DeleteArchived removes an archived reservation permanently.
func (s *Store) DeleteArchived(ctx context.Context, archiveID string) error {
	result, err := s.exec(ctx, s.sb.Delete("archived_reservations").Where(sq.Eq{"archive_id": archiveID}))
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func scanArchived(row rowScanner) (persistence.ArchivedReservation, error) {
	var a persistence.ArchivedReservation
	var date sql.NullString
	var participants []byte
	err := row.Scan(&a.ArchiveID, &a.ID, &a.OwnerID, &a.Floor, &a.RoomName,
		scanTime(&a.Start), scanTime(&a.End), &date,
		&a.Purpose, &a.Status, &a.Version, &participants,
		scanTime(&a.CreatedAt), scanTime(&a.UpdatedAt), scanTime(&a.ArchivedAt))
	if err == sql.ErrNoRows {
		return persistence.ArchivedReservation{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.ArchivedReservation{}, err
	}
	a.Date = date.String
	if a.Participants, err = decodeParticipants(participants); err != nil {
		return persistence.ArchivedReservation{}, err
	}
	return a, nil
}

func encodeParticipants(participants []persistence.Participant) (string, error) {
	out := make([]archivedParticipant, len(participants))
	for i, p := range participants {
		out[i] = archivedParticipant(p)
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("sqlstore: encode participants: %w", err)
	}
	return string(payload), nil
}

func decodeParticipants(payload []byte) ([]persistence.Participant, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	var in []archivedParticipant
	if err := json.Unmarshal(payload, &in); err != nil {
		return nil, fmt.Errorf("sqlstore: decode participants: %w", err)
	}
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]persistence.Participant, len(in))
	for i, p := range in {
		out[i] = persistence.Participant(p)
	}
	return out, nil
}
