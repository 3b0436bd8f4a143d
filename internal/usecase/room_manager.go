package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/rocketscienceinc/arcade-sync/internal/apperror"
	"github.com/rocketscienceinc/arcade-sync/internal/entity"
	"github.com/rocketscienceinc/arcade-sync/internal/pkg"
)

const (
	DefaultCodeLength      = 6
	DefaultMaxCodeAttempts = 16
)

type roomRepo interface {
	Create(ctx context.Context, room *entity.Room) error
	Update(ctx context.Context, room *entity.Room) error
	GetByCode(ctx context.Context, code string) (*entity.Room, error)
	GetByParticipant(ctx context.Context, participantID string) (*entity.Room, error)
	Delete(ctx context.Context, room *entity.Room) error
}

// MoveOutcome - what the relay broadcasts after an accepted move.
type MoveOutcome struct {
	Code     string
	Players  []string
	Index    int
	Symbol   entity.Mark
	NextTurn entity.Mark
	Winner   entity.Result
}

type RoomManagerOptions struct {
	CodeLength      int
	MaxCodeAttempts int
	// GenerateCode is replaceable so collisions can be forced.
	GenerateCode func(length int) string
}

// RoomManager - authoritative state of the relay variant. Every operation is
// serialised, so a room is never read and written by two requests at once.
type RoomManager struct {
	logger   *slog.Logger
	roomRepo roomRepo
	options  RoomManagerOptions

	mu sync.Mutex
}

func NewRoomManager(logger *slog.Logger, roomRepo roomRepo, options RoomManagerOptions) *RoomManager {
	if options.CodeLength <= 0 {
		options.CodeLength = DefaultCodeLength
	}
	if options.MaxCodeAttempts <= 0 {
		options.MaxCodeAttempts = DefaultMaxCodeAttempts
	}
	if options.GenerateCode == nil {
		options.GenerateCode = pkg.GenerateRoomCode
	}

	return &RoomManager{
		logger:   logger.With("component", "room-manager"),
		roomRepo: roomRepo,
		options:  options,
	}
}

// CreateRoom - opens a room with the creator playing x. Colliding codes are
// regenerated silently.
func (that *RoomManager) CreateRoom(ctx context.Context, participantID string) (*entity.Room, error) {
	log := that.logger.With("method", "CreateRoom", "participantID", participantID)

	that.mu.Lock()
	defer that.mu.Unlock()

	if err := that.ensureFree(ctx, participantID); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= that.options.MaxCodeAttempts; attempt++ {
		room := entity.NewRoom(that.options.GenerateCode(that.options.CodeLength), participantID)

		err := that.roomRepo.Create(ctx, room)
		if errors.Is(err, apperror.ErrRoomCodeTaken) {
			log.Info("room code taken, regenerating", "code", room.Code, "attempt", attempt)
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("failed to create room: %w", err)
		}

		log.Info("room created", "code", room.Code)

		return room, nil
	}

	return nil, fmt.Errorf("%w: no free code after %d attempts", apperror.ErrRoomCodeTaken, that.options.MaxCodeAttempts)
}

// JoinRoom - the code is matched case-insensitively.
func (that *RoomManager) JoinRoom(ctx context.Context, code, participantID string) (*entity.Room, error) {
	log := that.logger.With("method", "JoinRoom", "participantID", participantID)

	that.mu.Lock()
	defer that.mu.Unlock()

	if err := that.ensureFree(ctx, participantID); err != nil {
		return nil, err
	}

	room, err := that.roomRepo.GetByCode(ctx, NormalizeCode(code))
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	if err = room.Join(participantID); err != nil {
		return nil, err
	}

	if err = that.roomRepo.Update(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to update room: %w", err)
	}

	log.Info("participant joined room", "code", room.Code)

	return room, nil
}

// MakeMove - validates and applies a move. A rejected move mutates nothing.
func (that *RoomManager) MakeMove(ctx context.Context, code, participantID string, cell int) (*MoveOutcome, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	room, err := that.memberRoom(ctx, code, participantID)
	if err != nil {
		return nil, err
	}

	if !room.IsFull() {
		return nil, apperror.ErrGameIsNotStarted
	}

	mark, _ := room.MarkOf(participantID)

	if err = room.MakeTurn(mark, cell); err != nil {
		return nil, err
	}

	if err = that.roomRepo.Update(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to update room: %w", err)
	}

	if room.Winner.Terminal() {
		that.logger.Info("game over", "method", "MakeMove", "code", room.Code, "winner", room.Winner)
	}

	return &MoveOutcome{
		Code:     room.Code,
		Players:  room.Players,
		Index:    cell,
		Symbol:   mark,
		NextTurn: room.Turn,
		Winner:   room.Winner,
	}, nil
}

// Restart - clears the board of a room the participant belongs to.
func (that *RoomManager) Restart(ctx context.Context, code, participantID string) (*entity.Room, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	room, err := that.memberRoom(ctx, code, participantID)
	if err != nil {
		return nil, err
	}

	room.Reset()

	if err = that.roomRepo.Update(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to update room: %w", err)
	}

	return room, nil
}

// Leave - a disconnect destroys the participant's room. The deleted room is
// returned so the survivor can be told.
func (that *RoomManager) Leave(ctx context.Context, participantID string) (*entity.Room, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	room, err := that.roomRepo.GetByParticipant(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get room of participant: %w", err)
	}

	if err = that.roomRepo.Delete(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to delete room: %w", err)
	}

	that.logger.Info("room closed", "method", "Leave", "code", room.Code, "participantID", participantID)

	return room, nil
}

// NormalizeCode - room codes are upper-case.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (that *RoomManager) memberRoom(ctx context.Context, code, participantID string) (*entity.Room, error) {
	room, err := that.roomRepo.GetByCode(ctx, NormalizeCode(code))
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	if !room.HasPlayer(participantID) {
		return nil, apperror.ErrNotInRoom
	}

	return room, nil
}

func (that *RoomManager) ensureFree(ctx context.Context, participantID string) error {
	_, err := that.roomRepo.GetByParticipant(ctx, participantID)
	if errors.Is(err, apperror.ErrRoomNotFound) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to get room of participant: %w", err)
	}

	return apperror.ErrAlreadyInRoom
}
