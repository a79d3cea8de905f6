package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/example/room-reservations/internal/application"
)

type reservationService interface {
	Create(ctx context.Context, principal application.Principal, req application.BookingRequest) (application.Reservation, error)
	CheckQuota(ctx context.Context, principal application.Principal, date string) (application.QuotaCheck, error)
	SetStatus(ctx context.Context, principal application.Principal, reservationID, status string) (application.Reservation, error)
	Cancel(ctx context.Context, principal application.Principal, reservationID string) (application.Reservation, error)
	GetReservation(ctx context.Context, principal application.Principal, reservationID string) (application.Reservation, error)
	ListReservations(ctx context.Context, principal application.Principal, query application.ReservationQuery) ([]application.Reservation, error)
}

// ReservationHandler serves booking, lookup and lifecycle endpoints.
type ReservationHandler struct {
	service   reservationService
	responder responder
	logger    *slog.Logger
}

func NewReservationHandler(service reservationService, logger *slog.Logger) *ReservationHandler {
	base := defaultLogger(logger)
	return &ReservationHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ReservationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "ReservationHandler", operation, attrs...)
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	var req createReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode reservation request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "floor", req.Floor, "room", req.Room, "date", req.Date, "start_time", req.StartTime)
	reservation, err := h.service.Create(r.Context(), principal, req.toBookingRequest())
	if err != nil {
		logFailure(r.Context(), logger, "reservation rejected", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "reservation created", "reservation_id", reservation.ID)
	w.Header().Set("Location", "/api/v1/reservations/"+reservation.ID)
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, reservationResponse{Reservation: toReservationDTO(reservation)})
}

func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	q := r.URL.Query()
	query := application.ReservationQuery{
		Date:     strings.TrimSpace(q.Get("date")),
		Mine:     isTruthy(q.Get("mine")),
		Statuses: splitList(q["status"]),
	}

	logger := h.log(r.Context(), "List", "date", query.Date, "mine", query.Mine)
	reservations, err := h.service.ListReservations(r.Context(), principal, query)
	if err != nil {
		logFailure(r.Context(), logger, "reservation list failed", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]reservationDTO, 0, len(reservations))
	for _, res := range reservations {
		out = append(out, toReservationDTO(res))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listReservationsResponse{Reservations: out})
}

func (h *ReservationHandler) Get(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	id := mux.Vars(r)["id"]

	reservation, err := h.service.GetReservation(r.Context(), principal, id)
	if err != nil {
		logFailure(r.Context(), h.log(r.Context(), "Get", "reservation_id", id), "reservation lookup failed", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, reservationResponse{Reservation: toReservationDTO(reservation)})
}

func (h *ReservationHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	id := mux.Vars(r)["id"]

	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "SetStatus", "reservation_id", id, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode status request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "SetStatus", "reservation_id", id, "status", req.Status)
	reservation, err := h.service.SetStatus(r.Context(), principal, id, req.Status)
	if err != nil {
		logFailure(r.Context(), logger, "status change rejected", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "reservation status changed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, reservationResponse{Reservation: toReservationDTO(reservation)})
}

func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	id := mux.Vars(r)["id"]
	logger := h.log(r.Context(), "Cancel", "reservation_id", id)

	reservation, err := h.service.Cancel(r.Context(), principal, id)
	if err != nil {
		logFailure(r.Context(), logger, "cancellation rejected", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "reservation cancelled")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, reservationResponse{Reservation: toReservationDTO(reservation)})
}

func (h *ReservationHandler) Quota(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	date := strings.TrimSpace(r.URL.Query().Get("date"))

	check, err := h.service.CheckQuota(r.Context(), principal, date)
	if err != nil {
		logFailure(r.Context(), h.log(r.Context(), "Quota", "date", date), "quota check failed", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, quotaResponse{
		Blocked:   check.Blocked,
		Reason:    string(check.Reason),
		Date:      check.Date,
		UsedDates: nonNil(check.UsedDates),
		WeekStart: check.WeekStart,
		WeekEnd:   check.WeekEnd,
	})
}

type createReservationRequest struct {
	OwnerID        string   `json:"owner_id"`
	Floor          string   `json:"floor"`
	Room           string   `json:"room"`
	Date           string   `json:"date"`
	StartTime      string   `json:"start_time"`
	Purpose        string   `json:"purpose"`
	ParticipantIDs []string `json:"participant_ids"`
}

func (r createReservationRequest) toBookingRequest() application.BookingRequest {
	return application.BookingRequest{
		OwnerID:        strings.TrimSpace(r.OwnerID),
		Floor:          r.Floor,
		RoomName:       r.Room,
		Date:           strings.TrimSpace(r.Date),
		StartTime:      strings.TrimSpace(r.StartTime),
		Purpose:        r.Purpose,
		ParticipantIDs: r.ParticipantIDs,
	}
}

type setStatusRequest struct {
	Status string `json:"status"`
}

type reservationResponse struct {
	Reservation reservationDTO `json:"reservation"`
}

type listReservationsResponse struct {
	Reservations []reservationDTO `json:"reservations"`
}

type quotaResponse struct {
	Blocked   bool     `json:"blocked"`
	Reason    string   `json:"reason,omitempty"`
	Date      string   `json:"date"`
	UsedDates []string `json:"used_dates"`
	WeekStart string   `json:"week_start"`
	WeekEnd   string   `json:"week_end"`
}

type participantDTO struct {
	PersonID    string `json:"person_id"`
	DisplayName string `json:"display_name"`
	Program     string `json:"program,omitempty"`
	YearLevel   string `json:"year_level,omitempty"`
	Department  string `json:"department,omitempty"`
}

type reservationDTO struct {
	ID           string           `json:"id"`
	OwnerID      string           `json:"owner_id"`
	Floor        string           `json:"floor"`
	Room         string           `json:"room"`
	Date         string           `json:"date"`
	Start        string           `json:"start"`
	End          string           `json:"end"`
	Purpose      string           `json:"purpose"`
	Status       string           `json:"status"`
	Version      int64            `json:"version"`
	Participants []participantDTO `json:"participants"`
	CreatedAt    string           `json:"created_at,omitempty"`
	UpdatedAt    string           `json:"updated_at,omitempty"`
}

func toReservationDTO(r application.Reservation) reservationDTO {
	participants := make([]participantDTO, 0, len(r.Participants))
	for _, p := range r.Participants {
		participants = append(participants, participantDTO(p))
	}
	return reservationDTO{
		ID:           r.ID,
		OwnerID:      r.OwnerID,
		Floor:        r.Floor,
		Room:         r.RoomName,
		Date:         r.Date,
		Start:        formatTime(r.Start),
		End:          formatTime(r.End),
		Purpose:      r.Purpose,
		Status:       string(r.Status),
		Version:      r.Version,
		Participants: participants,
		CreatedAt:    formatTime(r.CreatedAt),
		UpdatedAt:    formatTime(r.UpdatedAt),
	}
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// splitList accepts both repeated parameters and comma separated values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
