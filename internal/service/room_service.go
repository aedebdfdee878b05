package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/chatlane/chat-service/internal/domain"
	"github.com/chatlane/chat-service/internal/postgres"
)

type RoomService struct {
	roomRepo *postgres.RoomRepository
}

func NewRoomService(roomRepo *postgres.RoomRepository) *RoomService {
	return &RoomService{roomRepo: roomRepo}
}

// CreateRoom creates a room with the given name. Duplicate names surface as
// domain.ErrRoomExists.
func (s *RoomService) CreateRoom(ctx context.Context, name string) (*domain.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrEmptyRoomName
	}

	room, err := s.roomRepo.Create(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("roomRepo.Create: %w", err)
	}
	return room, nil
}

// EnsureRoom is the idempotent create used by the router when a room first
// sees a member.
func (s *RoomService) EnsureRoom(ctx context.Context, name string) error {
	return s.roomRepo.Ensure(ctx, name)
}

// ListRooms returns all room names in alphabetical order.
func (s *RoomService) ListRooms(ctx context.Context) ([]string, error) {
	return s.roomRepo.List(ctx)
}
