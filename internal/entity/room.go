package entity

import (
	"fmt"
	"slices"

	"github.com/rocketscienceinc/arcade-sync/internal/apperror"
)

const RoomCapacity = 2

// Room - server-owned tic-tac-toe state of the relay variant.
type Room struct {
	Code    string   `json:"code"`
	Players []string `json:"players"`
	Board   Board    `json:"board"`
	Turn    Mark     `json:"turn"`
	Active  bool     `json:"active"`
	Winner  Result   `json:"winner,omitempty"`
}

// NewRoom - the creator always plays x and moves first.
func NewRoom(code, creatorID string) *Room {
	return &Room{
		Code:    code,
		Players: []string{creatorID},
		Turn:    MarkX,
		Active:  true,
	}
}

func (that *Room) IsFull() bool {
	return len(that.Players) >= RoomCapacity
}

func (that *Room) HasPlayer(participantID string) bool {
	return slices.Contains(that.Players, participantID)
}

// MarkOf - the role is derived from the join order.
func (that *Room) MarkOf(participantID string) (Mark, bool) {
	switch slices.Index(that.Players, participantID) {
	case 0:
		return MarkX, true
	case 1:
		return MarkO, true
	default:
		return MarkNone, false
	}
}

// Opponents - every member except the given one.
func (that *Room) Opponents(participantID string) []string {
	others := make([]string, 0, len(that.Players))
	for _, id := range that.Players {
		if id != participantID {
			others = append(others, id)
		}
	}
	return others
}

func (that *Room) Join(participantID string) error {
	if that.HasPlayer(participantID) {
		return apperror.ErrAlreadyInRoom
	}

	if that.IsFull() {
		return fmt.Errorf("%w: %d players", apperror.ErrRoomFull, len(that.Players))
	}

	that.Players = append(that.Players, participantID)

	return nil
}

// MakeTurn - validates and applies a move; the room is untouched on error.
func (that *Room) MakeTurn(mark Mark, cell int) error {
	if !that.Active {
		return apperror.ErrGameFinished
	}

	if that.Turn != mark {
		return apperror.ErrNotYourTurn
	}

	if err := that.Board.Place(cell, mark); err != nil {
		return err
	}

	// the turn pointer flips even on the final move, clients display it as "next turn"
	that.Turn = mark.Opponent()

	if result := Evaluate(that.Board); result.Terminal() {
		that.Winner = result
		that.Active = false
	}

	return nil
}

// Reset - a full reset is the only way cells get unmarked.
func (that *Room) Reset() {
	that.Board = Board{}
	that.Turn = MarkX
	that.Active = true
	that.Winner = ResultNone
}
