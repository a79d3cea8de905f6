package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"sort"
	"strings"
)

// PersonStore extends the directory with writes used by administrators.
type PersonStore interface {
	PersonDirectory
	UpsertPerson(ctx context.Context, person Person) error
	ListPersons(ctx context.Context) ([]Person, error)
}

// PersonInput captures caller provided directory fields.
type PersonInput struct {
	ID             string
	DisplayName    string
	Email          string
	Program        string
	YearLevel      string
	Department     string
	Verified       bool
	IsAdmin        bool
	TelegramChatID *int64
}

// PersonService maintains the person directory and resolves principals.
type PersonService struct {
	persons PersonStore
	logger  *slog.Logger
}

// NewPersonService wires dependencies for the person service.
func NewPersonService(persons PersonStore, logger *slog.Logger) *PersonService {
	return &PersonService{persons: persons, logger: defaultLogger(logger)}
}

func (s *PersonService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "PersonService", operation, attrs...)
}

// ResolvePrincipal turns an identity asserted by the transport into a
// principal. Unknown identities are unauthorized.
func (s *PersonService) ResolvePrincipal(ctx context.Context, personID string) (principal Principal, err error) {
	if s == nil || s.persons == nil {
		err = fmt.Errorf("person directory not configured")
		return
	}

	trimmed := strings.TrimSpace(personID)
	if trimmed == "" {
		err = ErrUnauthorized
		return
	}

	person, err := s.persons.GetPerson(ctx, trimmed)
	if err != nil {
		if isNotFoundError(err) {
			s.loggerWith(ctx, "ResolvePrincipal", "person_id", trimmed).
				WarnContext(ctx, "unknown principal", "error_kind", ErrorKind(ErrUnauthorized))
			err = ErrUnauthorized
			return
		}
		err = mapRepoError(err)
		return
	}
	return Principal{UserID: person.ID, IsAdmin: person.IsAdmin}, nil
}

// RegisterPerson creates or replaces a directory record for administrators.
func (s *PersonService) RegisterPerson(ctx context.Context, principal Principal, input PersonInput) (person Person, err error) {
	if s == nil || s.persons == nil {
		err = fmt.Errorf("person directory not configured")
		return
	}

	logger := s.loggerWith(ctx, "RegisterPerson", "principal_id", principal.UserID, "person_id", input.ID)
	defer func() {
		logOutcome(ctx, logger, err, "failed to register person", "person registered")
	}()

	if !principal.IsAdmin {
		err = ErrUnauthorized
		return
	}

	input = normalizePersonInput(input)
	if vErr := validatePersonInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	person = Person(input)
	if err = s.persons.UpsertPerson(ctx, person); err != nil {
		err = mapRepoError(err)
		person = Person{}
	}
	return
}

// SetVerified flips the verification flag of a directory record.
func (s *PersonService) SetVerified(ctx context.Context, principal Principal, personID string, verified bool) (person Person, err error) {
	if s == nil || s.persons == nil {
		err = fmt.Errorf("person directory not configured")
		return
	}

	logger := s.loggerWith(ctx, "SetVerified", "principal_id", principal.UserID, "person_id", personID, "verified", verified)
	defer func() {
		logOutcome(ctx, logger, err, "failed to update verification", "verification updated")
	}()

	if !principal.IsAdmin {
		err = ErrUnauthorized
		return
	}

	person, err = s.persons.GetPerson(ctx, personID)
	if err != nil {
		err = mapRepoError(err)
		return
	}
	person.Verified = verified
	if err = s.persons.UpsertPerson(ctx, person); err != nil {
		err = mapRepoError(err)
		person = Person{}
	}
	return
}

// GetPerson returns a directory record. Non-administrators may only read their own.
func (s *PersonService) GetPerson(ctx context.Context, principal Principal, personID string) (Person, error) {
	if s == nil || s.persons == nil {
		return Person{}, fmt.Errorf("person directory not configured")
	}
	if !principal.IsAdmin && principal.UserID != personID {
		return Person{}, ErrUnauthorized
	}
	person, err := s.persons.GetPerson(ctx, personID)
	if err != nil {
		return Person{}, mapRepoError(err)
	}
	return person, nil
}

// ListPersons returns the directory ordered by id for administrators.
func (s *PersonService) ListPersons(ctx context.Context, principal Principal) ([]Person, error) {
	if s == nil || s.persons == nil {
		return nil, fmt.Errorf("person directory not configured")
	}
	if !principal.IsAdmin {
		return nil, ErrUnauthorized
	}
	persons, err := s.persons.ListPersons(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}
	sort.Slice(persons, func(i, j int) bool { return persons[i].ID < persons[j].ID })
	return persons, nil
}

func normalizePersonInput(input PersonInput) PersonInput {
	input.ID = strings.TrimSpace(input.ID)
	input.DisplayName = strings.TrimSpace(input.DisplayName)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Program = strings.TrimSpace(input.Program)
	input.YearLevel = strings.TrimSpace(input.YearLevel)
	input.Department = strings.TrimSpace(input.Department)
	return input
}

func validatePersonInput(input PersonInput) *ValidationError {
	vErr := &ValidationError{}

	if input.ID == "" {
		vErr.add("id", "id is required")
	}
	if input.DisplayName == "" {
		vErr.add("display_name", "display name is required")
	}
	if input.Email != "" {
		if _, err := mail.ParseAddress(input.Email); err != nil {
			vErr.add("email", "email is invalid")
		}
	}

	return vErr
}
