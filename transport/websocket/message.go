package websocket

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/arcade-sync/internal/apperror"
	"github.com/rocketscienceinc/arcade-sync/internal/entity"
)

// client actions.
const (
	actionCreateRoom  = "create_room"
	actionJoinRoom    = "join_room"
	actionMakeMove    = "make_move"
	actionRestartGame = "restart_game"
)

// server actions.
const (
	actionRoomCreated        = "room_created"
	actionGameStart          = "game_start"
	actionErrorMessage       = "error_message"
	actionUpdateBoard        = "update_board"
	actionGameOver           = "game_over"
	actionGameReset          = "game_reset"
	actionPlayerDisconnected = "player_disconnected"
)

// Message represents a relay message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type RoomPayload struct {
	Code string `json:"code"`
}

type MovePayload struct {
	Code  string `json:"code"`
	Index *int   `json:"index"`
}

type GameStartPayload struct {
	Code    string   `json:"code"`
	Players []string `json:"players"`
}

type BoardPayload struct {
	Index    int         `json:"index"`
	Symbol   entity.Mark `json:"symbol"`
	NextTurn entity.Mark `json:"nextTurn"`
}

type GameOverPayload struct {
	Winner entity.Result `json:"winner"`
}

type ErrorPayload struct {
	Reason string `json:"reason"`
}

var errMissingIndex = errors.New("index is required")

// clientErrors - sentinel errors whose text is safe to show to players.
var clientErrors = []error{
	apperror.ErrRoomNotFound,
	apperror.ErrRoomFull,
	apperror.ErrAlreadyInRoom,
	apperror.ErrNotInRoom,
	apperror.ErrRoomCodeTaken,
	apperror.ErrGameIsNotStarted,
	apperror.ErrGameFinished,
	apperror.ErrNotYourTurn,
	apperror.ErrCellOccupied,
	apperror.ErrInvalidCell,
	errMissingIndex,
}

func reason(err error) string {
	for _, known := range clientErrors {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "internal server error"
}

func encode(action string, payload any) ([]byte, error) {
	msg := Message{Action: action}

	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		msg.Payload = raw
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	return data, nil
}
