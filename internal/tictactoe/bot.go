package tictactoe

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/rocketscienceinc/arcade-sync/internal/entity"
)

var ErrNoAvailableMoves = errors.New("no available moves")

// Bot - practice opponent that picks a random empty cell.
type Bot struct {
	mark entity.Mark
	rand *rand.Rand
}

func NewBot(mark entity.Mark, seed int64) *Bot {
	return &Bot{
		mark: mark,
		rand: rand.New(rand.NewSource(seed)), //nolint: gosec // it's ok
	}
}

func (that *Bot) Mark() entity.Mark {
	return that.mark
}

// MakeTurn - plays one move on the match and returns the chosen cell.
func (that *Bot) MakeTurn(match *Match) (int, error) {
	availableCells := match.Board.EmptyCells()
	if len(availableCells) == 0 {
		return -1, ErrNoAvailableMoves
	}

	chosenCell := availableCells[that.rand.Intn(len(availableCells))]

	if err := match.Apply(chosenCell, that.mark); err != nil {
		return -1, fmt.Errorf("bot failed to make turn: %w", err)
	}

	return chosenCell, nil
}
