package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/room-reservations/internal/application"
	"github.com/example/room-reservations/internal/scheduler"
)

type roomService interface {
	ListActiveRooms(ctx context.Context) ([]application.Room, error)
}

type availabilityService interface {
	ComputeAvailability(ctx context.Context, date, viewerID string) ([]application.RoomAvailability, error)
}

// RoomHandler serves the room catalog and the availability grid.
type RoomHandler struct {
	rooms        roomService
	availability availabilityService
	responder    responder
	logger       *slog.Logger
}

func NewRoomHandler(rooms roomService, availability availabilityService, logger *slog.Logger) *RoomHandler {
	base := defaultLogger(logger)
	return &RoomHandler{rooms: rooms, availability: availability, responder: newResponder(base), logger: base}
}

func (h *RoomHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "RoomHandler", operation, attrs...)
}

func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	logger := h.log(r.Context(), "List")
	rooms, err := h.rooms.ListActiveRooms(r.Context())
	if err != nil {
		logFailure(r.Context(), logger, "room list failed", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.DebugContext(r.Context(), "rooms listed", "result_count", len(rooms))
	out := make([]roomDTO, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, toRoomDTO(room))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRoomsResponse{Rooms: out})
}

func (h *RoomHandler) Availability(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	logger := h.log(r.Context(), "Availability", "date", date)

	result, err := h.availability.ComputeAvailability(r.Context(), date, principal.UserID)
	if err != nil {
		logFailure(r.Context(), logger, "availability failed", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]roomAvailabilityDTO, 0, len(result))
	for _, room := range result {
		out = append(out, toRoomAvailabilityDTO(room))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, availabilityResponse{Date: date, Rooms: out})
}

type listRoomsResponse struct {
	Rooms []roomDTO `json:"rooms"`
}

type roomDTO struct {
	ID       string `json:"id"`
	Floor    string `json:"floor"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

func toRoomDTO(room application.Room) roomDTO {
	return roomDTO{ID: room.ID, Floor: room.Floor, Name: room.Name, Capacity: room.Capacity}
}

type availabilityResponse struct {
	Date  string                `json:"date"`
	Rooms []roomAvailabilityDTO `json:"rooms"`
}

type roomAvailabilityDTO struct {
	Floor    string            `json:"floor"`
	Room     string            `json:"room"`
	Capacity int               `json:"capacity"`
	Occupied []occupiedSlotDTO `json:"occupied"`
}

type occupiedSlotDTO struct {
	ReservationID string `json:"reservation_id"`
	Start         string `json:"start"`
	End           string `json:"end"`
	Mine          bool   `json:"mine"`
	Status        string `json:"status"`
}

func toRoomAvailabilityDTO(room application.RoomAvailability) roomAvailabilityDTO {
	slots := make([]occupiedSlotDTO, 0, len(room.Occupied))
	for _, slot := range room.Occupied {
		slots = append(slots, occupiedSlotDTO{
			ReservationID: slot.ReservationID,
			Start:         formatTime(slot.Start),
			End:           formatTime(slot.End),
			Mine:          slot.Mine,
			Status:        string(slot.Status),
		})
	}
	return roomAvailabilityDTO{Floor: room.Floor, Room: room.Room, Capacity: room.Capacity, Occupied: slots}
}

// formatTime renders instants in the service zone so clients see local hours.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(scheduler.Zone).Format(time.RFC3339)
}
