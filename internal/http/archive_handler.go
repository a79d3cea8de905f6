package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/example/room-reservations/internal/application"
)

type archiveService interface {
	Archive(ctx context.Context, principal application.Principal, reservationID string) (application.ArchivedReservation, error)
	Restore(ctx context.Context, principal application.Principal, archiveID string) (application.Reservation, error)
	Purge(ctx context.Context, principal application.Principal, archiveID string) error
	ListArchived(ctx context.Context, principal application.Principal) ([]application.ArchivedReservation, error)
	GetArchived(ctx context.Context, principal application.Principal, archiveID string) (application.ArchivedReservation, error)
}

// ArchiveHandler serves the administrator archive endpoints.
type ArchiveHandler struct {
	service   archiveService
	responder responder
	logger    *slog.Logger
}

func NewArchiveHandler(service archiveService, logger *slog.Logger) *ArchiveHandler {
	base := defaultLogger(logger)
	return &ArchiveHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ArchiveHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "ArchiveHandler", operation, attrs...)
}

func (h *ArchiveHandler) Archive(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	id := mux.Vars(r)["id"]
	logger := h.log(r.Context(), "Archive", "reservation_id", id)

	archived, err := h.service.Archive(r.Context(), principal, id)
	if err != nil {
		logFailure(r.Context(), logger, "archive rejected", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "reservation archived", "archive_id", archived.ArchiveID)
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, archivedResponse{Archived: toArchivedDTO(archived)})
}

func (h *ArchiveHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	archived, err := h.service.ListArchived(r.Context(), principal)
	if err != nil {
		logFailure(r.Context(), h.log(r.Context(), "List"), "archive list failed", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]archivedDTO, 0, len(archived))
	for _, a := range archived {
		out = append(out, toArchivedDTO(a))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listArchivedResponse{Archived: out})
}

func (h *ArchiveHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	id := mux.Vars(r)["id"]

	archived, err := h.service.GetArchived(r.Context(), principal, id)
	if err != nil {
		logFailure(r.Context(), h.log(r.Context(), "Get", "archive_id", id), "archive lookup failed", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, archivedResponse{Archived: toArchivedDTO(archived)})
}

func (h *ArchiveHandler) Restore(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	id := mux.Vars(r)["id"]
	logger := h.log(r.Context(), "Restore", "archive_id", id)

	restored, err := h.service.Restore(r.Context(), principal, id)
	if err != nil {
		logFailure(r.Context(), logger, "restore rejected", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "reservation restored", "reservation_id", restored.ID)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, reservationResponse{Reservation: toReservationDTO(restored)})
}

func (h *ArchiveHandler) Purge(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	id := mux.Vars(r)["id"]
	logger := h.log(r.Context(), "Purge", "archive_id", id)

	if err := h.service.Purge(r.Context(), principal, id); err != nil {
		logFailure(r.Context(), logger, "purge rejected", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "archived reservation purged")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type archivedDTO struct {
	ArchiveID   string         `json:"archive_id"`
	ArchivedAt  string         `json:"archived_at"`
	Reservation reservationDTO `json:"reservation"`
}

type archivedResponse struct {
	Archived archivedDTO `json:"archived"`
}

type listArchivedResponse struct {
	Archived []archivedDTO `json:"archived"`
}

func toArchivedDTO(a application.ArchivedReservation) archivedDTO {
	return archivedDTO{
		ArchiveID:   a.ArchiveID,
		ArchivedAt:  formatTime(a.ArchivedAt),
		Reservation: toReservationDTO(a.Reservation),
	}
}
