package entity

import (
	"math/rand"
	"testing"

	"github.com/rocketscienceinc/arcade-sync/internal/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	x = MarkX
	o = MarkO
	e = MarkNone
)

func TestEvaluate(t *testing.T) {
	t.Run("Every fixed triple wins for its holder only", func(t *testing.T) {
		for _, combo := range WinCombos {
			for _, mark := range []Mark{MarkX, MarkO} {
				// Given: a board where one role holds a single triple
				var board Board
				for _, cell := range combo {
					board[cell] = mark
				}

				// When: evaluating the board
				result := Evaluate(board)

				// Then: the holder wins and the other role does not
				assert.Equal(t, Result(mark), result, "combo %v", combo)
				assert.True(t, HasWon(board, mark))
				assert.False(t, HasWon(board, mark.Opponent()))
			}
		}
	})

	t.Run("Diagonal with opponent marks elsewhere", func(t *testing.T) {
		// Given: x holds the main diagonal
		board := Board{
			x, o, e,
			e, x, o,
			e, e, x,
		}

		// Then: x wins, o does not
		assert.Equal(t, ResultXWins, Evaluate(board))
		assert.True(t, HasWon(board, MarkX))
		assert.False(t, HasWon(board, MarkO))
	})

	t.Run("Full board without a triple is a draw", func(t *testing.T) {
		// Given: a full board with no uniform triple
		board := Board{
			x, o, x,
			x, o, o,
			o, x, x,
		}

		// When: evaluating the board
		result := Evaluate(board)

		// Then: it is a draw, never a false win
		assert.Equal(t, ResultDraw, result)
		assert.False(t, HasWon(board, MarkX))
		assert.False(t, HasWon(board, MarkO))
		assert.Equal(t, MarkNone, result.Winner())
	})

	t.Run("Open board continues", func(t *testing.T) {
		board := Board{
			x, o, e,
			e, x, e,
			e, e, o,
		}

		assert.Equal(t, ResultNone, Evaluate(board))
		assert.False(t, Evaluate(board).Terminal())
	})

	t.Run("Empty board never wins for MarkNone", func(t *testing.T) {
		var board Board

		assert.False(t, HasWon(board, MarkNone))
		assert.Equal(t, ResultNone, Evaluate(board))
	})
}

func TestEvaluate_Determinism(t *testing.T) {
	rng := rand.New(rand.NewSource(42)) //nolint: gosec // deterministic test data

	for game := 0; game < 500; game++ {
		// Given: two boards fed with the same alternating move history
		var left, right Board
		turn := MarkX

		for {
			free := left.EmptyCells()
			cell := free[rng.Intn(len(free))]

			require.NoError(t, left.Place(cell, turn))
			require.NoError(t, right.Place(cell, turn))

			// Then: both sides compute the same verdict after every move
			leftResult, rightResult := Evaluate(left), Evaluate(right)
			require.Equal(t, leftResult, rightResult)

			if leftResult.Terminal() {
				if leftResult != ResultDraw {
					assert.Equal(t, turn, leftResult.Winner(), "only the mover can complete a line")
				}
				break
			}

			turn = turn.Opponent()
		}
	}
}

func TestBoard_Place(t *testing.T) {
	t.Run("Occupied cell is never overwritten", func(t *testing.T) {
		var board Board
		require.NoError(t, board.Place(4, MarkX))

		err := board.Place(4, MarkO)

		require.ErrorIs(t, err, apperror.ErrCellOccupied)
		assert.Equal(t, MarkX, board[4])
	})

	t.Run("Out of range cells are rejected", func(t *testing.T) {
		var board Board

		assert.ErrorIs(t, board.Place(-1, MarkX), apperror.ErrInvalidCell)
		assert.ErrorIs(t, board.Place(9, MarkX), apperror.ErrInvalidCell)
	})
}

func TestParseMark(t *testing.T) {
	mark, err := ParseMark("X")
	require.NoError(t, err)
	assert.Equal(t, MarkX, mark)

	mark, err = ParseMark("o")
	require.NoError(t, err)
	assert.Equal(t, MarkO, mark)

	_, err = ParseMark("z")
	require.Error(t, err)
}
