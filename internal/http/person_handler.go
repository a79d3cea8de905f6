package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/example/room-reservations/internal/application"
)

type personService interface {
	RegisterPerson(ctx context.Context, principal application.Principal, input application.PersonInput) (application.Person, error)
	SetVerified(ctx context.Context, principal application.Principal, personID string, verified bool) (application.Person, error)
	GetPerson(ctx context.Context, principal application.Principal, personID string) (application.Person, error)
	ListPersons(ctx context.Context, principal application.Principal) ([]application.Person, error)
}

// PersonHandler serves the person directory.
type PersonHandler struct {
	service   personService
	responder responder
	logger    *slog.Logger
}

func NewPersonHandler(service personService, logger *slog.Logger) *PersonHandler {
	base := defaultLogger(logger)
	return &PersonHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *PersonHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "PersonHandler", operation, attrs...)
}

func (h *PersonHandler) Register(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	var req personRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Register", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode person request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Register", "person_id", req.ID)
	person, err := h.service.RegisterPerson(r.Context(), principal, req.toInput())
	if err != nil {
		logFailure(r.Context(), logger, "person registration rejected", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "person registered")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, personResponse{Person: toPersonDTO(person)})
}

func (h *PersonHandler) SetVerified(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	id := mux.Vars(r)["id"]

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Verified == nil {
		h.log(r.Context(), "SetVerified", "person_id", id, "error_kind", "bad_request").WarnContext(r.Context(), "invalid verification request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "SetVerified", "person_id", id, "verified", *req.Verified)
	person, err := h.service.SetVerified(r.Context(), principal, id, *req.Verified)
	if err != nil {
		logFailure(r.Context(), logger, "verification change rejected", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "person verification changed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, personResponse{Person: toPersonDTO(person)})
}

func (h *PersonHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	id := mux.Vars(r)["id"]

	person, err := h.service.GetPerson(r.Context(), principal, id)
	if err != nil {
		logFailure(r.Context(), h.log(r.Context(), "Get", "person_id", id), "person lookup failed", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, personResponse{Person: toPersonDTO(person)})
}

func (h *PersonHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	persons, err := h.service.ListPersons(r.Context(), principal)
	if err != nil {
		logFailure(r.Context(), h.log(r.Context(), "List"), "person list failed", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]personDTO, 0, len(persons))
	for _, p := range persons {
		out = append(out, toPersonDTO(p))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listPersonsResponse{Persons: out})
}

type personRequest struct {
	ID             string `json:"id"`
	DisplayName    string `json:"display_name"`
	Email          string `json:"email"`
	Program        string `json:"program"`
	YearLevel      string `json:"year_level"`
	Department     string `json:"department"`
	Verified       bool   `json:"verified"`
	IsAdmin        bool   `json:"is_admin"`
	TelegramChatID *int64 `json:"telegram_chat_id"`
}

func (r personRequest) toInput() application.PersonInput {
	return application.PersonInput(r)
}

type verifyRequest struct {
	Verified *bool `json:"verified"`
}

type personDTO struct {
	ID             string `json:"id"`
	DisplayName    string `json:"display_name"`
	Email          string `json:"email"`
	Program        string `json:"program,omitempty"`
	YearLevel      string `json:"year_level,omitempty"`
	Department     string `json:"department,omitempty"`
	Verified       bool   `json:"verified"`
	IsAdmin        bool   `json:"is_admin"`
	TelegramChatID *int64 `json:"telegram_chat_id,omitempty"`
}

type personResponse struct {
	Person personDTO `json:"person"`
}

type listPersonsResponse struct {
	Persons []personDTO `json:"persons"`
}

func toPersonDTO(p application.Person) personDTO {
	return personDTO(p)
}
