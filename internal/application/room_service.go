package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// RoomService serves the read-only room registry.
type RoomService struct {
	rooms  RoomCatalog
	logger *slog.Logger
}

// NewRoomService constructs a room service with the provided dependencies.
func NewRoomService(rooms RoomCatalog) *RoomService {
	return NewRoomServiceWithLogger(rooms, nil)
}

// NewRoomServiceWithLogger constructs a room service with a specified logger.
func NewRoomServiceWithLogger(rooms RoomCatalog, logger *slog.Logger) *RoomService {
	return &RoomService{rooms: rooms, logger: defaultLogger(logger)}
}

func (s *RoomService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RoomService", operation, attrs...)
}

// ListActiveRooms returns every active room ordered by floor then name.
func (s *RoomService) ListActiveRooms(ctx context.Context) (rooms []Room, err error) {
	if s == nil {
		err = fmt.Errorf("RoomService is nil")
		return
	}
	if s.rooms == nil {
		return nil, nil
	}

	logger := s.loggerWith(ctx, "ListActiveRooms")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list rooms", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "rooms listed", "result_count", len(rooms))
	}()

	var raw []Room
	raw, err = s.rooms.ListActiveRooms(ctx)
	if err != nil {
		err = mapRepoError(err)
		return
	}

	rooms = make([]Room, 0, len(raw))
	for _, room := range raw {
		if room.Active {
			rooms = append(rooms, room)
		}
	}
	sortRooms(rooms)
	return
}

// GetRoom returns the active room identified by floor and name.
func (s *RoomService) GetRoom(ctx context.Context, floor, name string) (Room, error) {
	if s == nil {
		return Room{}, fmt.Errorf("RoomService is nil")
	}
	return lookupActiveRoom(ctx, s.rooms, floor, name)
}

func lookupActiveRoom(ctx context.Context, rooms RoomCatalog, floor, name string) (Room, error) {
	if rooms == nil {
		return Room{}, fmt.Errorf("room catalog not configured")
	}
	room, err := rooms.GetRoomByKey(ctx, strings.TrimSpace(floor), strings.TrimSpace(name))
	if err != nil {
		return Room{}, mapRepoError(err)
	}
	if !room.Active {
		return Room{}, ErrNotFound
	}
	return room, nil
}

func sortRooms(rooms []Room) {
	sort.SliceStable(rooms, func(i, j int) bool {
		if rooms[i].Floor != rooms[j].Floor {
			return rooms[i].Floor < rooms[j].Floor
		}
		return rooms[i].Name < rooms[j].Name
	})
}
