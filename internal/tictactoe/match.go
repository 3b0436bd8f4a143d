package tictactoe

import (
	"github.com/rocketscienceinc/arcade-sync/internal/apperror"
	"github.com/rocketscienceinc/arcade-sync/internal/entity"
)

type State string

const (
	StateIdle       State = "idle"
	StateInProgress State = "in_progress"
	StateWon        State = "won"
	StateDrawn      State = "drawn"

	// StateRematchPending - finished, and at least one side asked for another round.
	StateRematchPending State = "rematch_pending"
)

// Match - one local replica of the game, no networking involved. Hot-seat
// play drives it directly.
type Match struct {
	Board  entity.Board
	Turn   entity.Mark
	State  State
	Result entity.Result
	// Round counts games played on this channel, starting at 1.
	Round int

	SelfRequested bool
	PeerRequested bool
}

func NewMatch() *Match {
	return &Match{State: StateIdle}
}

// Start - clears everything for the given round; x moves first.
func (that *Match) Start(round int) {
	that.Board = entity.Board{}
	that.Turn = entity.MarkX
	that.State = StateInProgress
	that.Result = entity.ResultNone
	that.Round = round
	that.SelfRequested = false
	that.PeerRequested = false
}

// Apply - validates and places a mark. The match is unchanged on error.
func (that *Match) Apply(cell int, mark entity.Mark) error {
	switch that.State {
	case StateIdle:
		return apperror.ErrGameIsNotStarted
	case StateWon, StateDrawn, StateRematchPending:
		return apperror.ErrGameFinished
	}

	if cell < 0 || cell >= entity.BoardSize {
		return apperror.ErrInvalidCell
	}

	if that.Board[cell] != entity.MarkNone {
		return apperror.ErrCellOccupied
	}

	if mark != that.Turn {
		return apperror.ErrNotYourTurn
	}

	that.Board[cell] = mark

	switch result := entity.Evaluate(that.Board); result {
	case entity.ResultXWins, entity.ResultOWins:
		that.State = StateWon
		that.Result = result
	case entity.ResultDraw:
		that.State = StateDrawn
		that.Result = result
	default:
		that.Turn = mark.Opponent()
	}

	return nil
}

// Finished - the board is final. Result keeps the outcome while a rematch is pending.
func (that *Match) Finished() bool {
	return that.State == StateWon || that.State == StateDrawn || that.State == StateRematchPending
}

// RequestRematch - records who asked; only a finished match can wait for a rematch.
func (that *Match) RequestRematch(self bool) {
	if !that.Finished() {
		return
	}

	if self {
		that.SelfRequested = true
	} else {
		that.PeerRequested = true
	}
	that.State = StateRematchPending
}

// Stop - the session ended; the board stays for display.
func (that *Match) Stop() {
	that.State = StateIdle
	that.SelfRequested = false
	that.PeerRequested = false
}
