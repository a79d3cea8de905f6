package sqlstore

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"

	"github.com/example/room-reservations/internal/persistence"
)

var personColumns = []string{
	"id", "display_name", "email", "program", "year_level", "department",
	"verified", "is_admin", "telegram_chat_id", "created_at", "updated_at",
}

// UpsertPerson inserts or replaces a directory record, keeping its creation time.
func (s *Store) UpsertPerson(ctx context.Context, person persistence.Person) error {
	if person.ID == "" {
		return persistence.ErrConstraintViolation
	}
	var chatID any
	if person.TelegramChatID != nil {
		chatID = *person.TelegramChatID
	}
	_, err := s.exec(ctx, s.sb.Insert("persons").
		Columns(personColumns...).
		Values(person.ID, person.DisplayName, person.Email, person.Program, person.YearLevel, person.Department,
			person.Verified, person.IsAdmin, chatID,
			s.dialect.encodeTime(person.CreatedAt), s.dialect.encodeTime(person.UpdatedAt)).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			display_name = excluded.display_name,
			email = excluded.email,
			program = excluded.program,
			year_level = excluded.year_level,
			department = excluded.department,
			verified = excluded.verified,
			is_admin = excluded.is_admin,
			telegram_chat_id = excluded.telegram_chat_id,
			updated_at = excluded.updated_at`))
	return err
}

// GetPerson retrieves a person by external ID.
func (s *Store) GetPerson(ctx context.Context, id string) (persistence.Person, error) {
	text, args, err := s.sb.Select(personColumns...).From("persons").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return persistence.Person{}, err
	}
	person, err := scanPerson(s.executor(ctx).QueryRowContext(ctx, text, args...))
	if err != nil {
		return persistence.Person{}, s.mapper.MapError(err)
	}
	return person, nil
}

// ListPersons returns persons ordered by ID.
func (s *Store) ListPersons(ctx context.Context, filter persistence.PersonFilter) ([]persistence.Person, error) {
	query := s.sb.Select(personColumns...).From("persons").OrderBy("id")
	if filter.AdminsOnly {
		query = query.Where(sq.Eq{"is_admin": true})
	}
	rows, err := s.query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var persons []persistence.Person
	for rows.Next() {
		person, err := scanPerson(rows)
		if err != nil {
			return nil, s.mapper.MapError(err)
		}
		persons = append(persons, person)
	}
	if err := rows.Err(); err != nil {
		return nil, s.mapper.MapError(err)
	}
	return persons, nil
}

func scanPerson(row rowScanner) (persistence.Person, error) {
	var person persistence.Person
	var chatID sql.NullInt64
	err := row.Scan(&person.ID, &person.DisplayName, &person.Email, &person.Program, &person.YearLevel, &person.Department,
		&person.Verified, &person.IsAdmin, &chatID, scanTime(&person.CreatedAt), scanTime(&person.UpdatedAt))
	if err == sql.ErrNoRows {
		return persistence.Person{}, persistence.ErrNotFound
	}
	if err != nil {
		return persistence.Person{}, err
	}
	if chatID.Valid {
		id := chatID.Int64
		person.TelegramChatID = &id
	}
	return person, nil
}
