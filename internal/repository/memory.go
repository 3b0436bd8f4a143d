package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/rocketscienceinc/arcade-sync/internal/apperror"
	"github.com/rocketscienceinc/arcade-sync/internal/entity"
)

// memoryRoom - process-local RoomRepository for single-instance relays.
type memoryRoom struct {
	mu           sync.RWMutex
	rooms        map[string]entity.Room
	participants map[string]string
}

func NewMemoryRoomRepository() RoomRepository {
	return &memoryRoom{
		rooms:        make(map[string]entity.Room),
		participants: make(map[string]string),
	}
}

func (that *memoryRoom) Create(_ context.Context, room *entity.Room) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, taken := that.rooms[room.Code]; taken {
		return fmt.Errorf("%w: %s", apperror.ErrRoomCodeTaken, room.Code)
	}

	that.store(room)

	return nil
}

func (that *memoryRoom) Update(_ context.Context, room *entity.Room) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.store(room)

	return nil
}

func (that *memoryRoom) GetByCode(_ context.Context, code string) (*entity.Room, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	room, ok := that.rooms[code]
	if !ok {
		return nil, apperror.ErrRoomNotFound
	}

	return clone(room), nil
}

func (that *memoryRoom) GetByParticipant(ctx context.Context, participantID string) (*entity.Room, error) {
	that.mu.RLock()
	code, ok := that.participants[participantID]
	that.mu.RUnlock()

	if !ok {
		return nil, apperror.ErrRoomNotFound
	}

	return that.GetByCode(ctx, code)
}

func (that *memoryRoom) Delete(_ context.Context, room *entity.Room) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.rooms, room.Code)
	for _, participantID := range room.Players {
		delete(that.participants, participantID)
	}

	return nil
}

func (that *memoryRoom) store(room *entity.Room) {
	that.rooms[room.Code] = *clone(*room)
	for _, participantID := range room.Players {
		that.participants[participantID] = room.Code
	}
}

// clone - callers must not share the players slice with the store.
func clone(room entity.Room) *entity.Room {
	room.Players = slices.Clone(room.Players)
	return &room
}
