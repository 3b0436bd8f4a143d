package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/arcade-sync/internal/apperror"
	"github.com/rocketscienceinc/arcade-sync/internal/entity"
)

const (
	roomKeyPrefix        = "room:"
	participantKeyPrefix = "participant:"
)

type RoomRepository interface {
	// Create stores a new room only if its code is free, otherwise
	// apperror.ErrRoomCodeTaken is returned.
	Create(ctx context.Context, room *entity.Room) error
	Update(ctx context.Context, room *entity.Room) error
	GetByCode(ctx context.Context, code string) (*entity.Room, error)
	// GetByParticipant returns the room a participant is a member of.
	GetByParticipant(ctx context.Context, participantID string) (*entity.Room, error)
	Delete(ctx context.Context, room *entity.Room) error
}

type dbRoom struct {
	client *redis.Client
}

func NewRoomRepository(client *redis.Client) RoomRepository {
	return &dbRoom{
		client: client,
	}
}

func (that *dbRoom) Create(ctx context.Context, room *entity.Room) error {
	roomJSON, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("could not marshal room: %w", err)
	}

	created, err := that.client.SetNX(ctx, roomKeyPrefix+room.Code, roomJSON, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}

	if !created {
		return fmt.Errorf("%w: %s", apperror.ErrRoomCodeTaken, room.Code)
	}

	if err = that.index(ctx, room); err != nil {
		return err
	}

	return nil
}

func (that *dbRoom) Update(ctx context.Context, room *entity.Room) error {
	roomJSON, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("could not marshal room: %w", err)
	}

	_, err = that.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, roomKeyPrefix+room.Code, roomJSON, 0)
		for _, participantID := range room.Players {
			pipe.Set(ctx, participantKeyPrefix+participantID, room.Code, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}

	return nil
}

func (that *dbRoom) GetByCode(ctx context.Context, code string) (*entity.Room, error) {
	response, err := that.client.Get(ctx, roomKeyPrefix+code).Result()

	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrRoomNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get room %s: %w", code, err)
	}

	var room entity.Room
	if err = json.Unmarshal([]byte(response), &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}

	return &room, nil
}

func (that *dbRoom) GetByParticipant(ctx context.Context, participantID string) (*entity.Room, error) {
	code, err := that.client.Get(ctx, participantKeyPrefix+participantID).Result()

	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrRoomNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get room of participant %s: %w", participantID, err)
	}

	return that.GetByCode(ctx, code)
}

func (that *dbRoom) Delete(ctx context.Context, room *entity.Room) error {
	keys := make([]string, 0, len(room.Players)+1)
	keys = append(keys, roomKeyPrefix+room.Code)
	for _, participantID := range room.Players {
		keys = append(keys, participantKeyPrefix+participantID)
	}

	if err := that.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete room %s: %w", room.Code, err)
	}

	return nil
}

func (that *dbRoom) index(ctx context.Context, room *entity.Room) error {
	_, err := that.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, participantID := range room.Players {
			pipe.Set(ctx, participantKeyPrefix+participantID, room.Code, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to index room participants: %w", err)
	}

	return nil
}
