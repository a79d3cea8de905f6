package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/example/room-reservations/internal/scheduler"
)

// AvailabilityService builds the per-room occupancy view of a day.
type AvailabilityService struct {
	rooms        RoomCatalog
	reservations ReservationRepository
	tx           TxManager
	logger       *slog.Logger
}

// NewAvailabilityService wires dependencies for availability queries.
func NewAvailabilityService(rooms RoomCatalog, reservations ReservationRepository, tx TxManager, logger *slog.Logger) *AvailabilityService {
	return &AvailabilityService{
		rooms:        rooms,
		reservations: reservations,
		tx:           txOrNoop(tx),
		logger:       defaultLogger(logger),
	}
}

// ComputeAvailability returns one entry per active room, in registry order,
// with the Pending and Approved reservations of date in chronological order.
// Rooms and reservations are read from a single snapshot.
func (s *AvailabilityService) ComputeAvailability(ctx context.Context, date, viewerID string) (result []RoomAvailability, err error) {
	if s == nil {
		return nil, fmt.Errorf("AvailabilityService is nil")
	}

	logger := serviceLogger(ctx, s.logger, "AvailabilityService", "ComputeAvailability", "date", date, "viewer_id", viewerID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to compute availability", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	day, parseErr := scheduler.ParseDate(date)
	if parseErr != nil {
		vErr := &ValidationError{}
		vErr.add("date", "date must be formatted as YYYY-MM-DD")
		return nil, vErr
	}
	dayStart, dayEnd := scheduler.DayBounds(day)

	var rooms []Room
	var reservations []Reservation
	err = s.tx.DoReadOnly(ctx, func(ctx context.Context) error {
		var err error
		if rooms, err = s.rooms.ListActiveRooms(ctx); err != nil {
			return err
		}
		reservations, err = s.reservations.ListReservations(ctx, ReservationFilter{
			Statuses:        scheduler.DisplayStatuses,
			StartsAtOrAfter: &dayStart,
			StartsBefore:    &dayEnd,
		})
		return err
	})
	if err != nil {
		return nil, mapRepoError(err)
	}

	return buildAvailability(rooms, reservations, viewerID), nil
}

func buildAvailability(rooms []Room, reservations []Reservation, viewerID string) []RoomAvailability {
	active := make([]Room, 0, len(rooms))
	for _, room := range rooms {
		if room.Active {
			active = append(active, room)
		}
	}
	sortRooms(active)

	index := make(map[scheduler.RoomKey]int, len(active))
	result := make([]RoomAvailability, len(active))
	for i, room := range active {
		index[room.Key()] = i
		result[i] = RoomAvailability{
			Floor:    room.Floor,
			Room:     room.Name,
			Capacity: room.Capacity,
			Occupied: []OccupiedSlot{},
		}
	}

	for _, r := range reservations {
		if !r.Status.In(scheduler.DisplayStatuses) {
			continue
		}
		i, ok := index[scheduler.RoomKey{Floor: r.Floor, Name: r.RoomName}]
		if !ok {
			continue
		}
		result[i].Occupied = append(result[i].Occupied, OccupiedSlot{
			ReservationID: r.ID,
			Start:         r.Start,
			End:           r.End,
			Mine:          viewerID != "" && r.OwnerID == viewerID,
			Status:        r.Status,
		})
	}

	for i := range result {
		slots := result[i].Occupied
		sort.SliceStable(slots, func(a, b int) bool {
			if slots[a].Start.Equal(slots[b].Start) {
				return slots[a].ReservationID < slots[b].ReservationID
			}
			return slots[a].Start.Before(slots[b].Start)
		})
	}
	return result
}
