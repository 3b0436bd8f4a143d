package entity

import (
	"fmt"
	"strings"

	"github.com/rocketscienceinc/arcade-sync/internal/apperror"
)

// Mark is the marker a role places on the board.
type Mark string

const (
	MarkNone Mark = ""
	MarkX    Mark = "x"
	MarkO    Mark = "o"
)

// Result of evaluating a board.
type Result string

const (
	ResultNone  Result = ""
	ResultXWins Result = "x"
	ResultOWins Result = "o"
	ResultDraw  Result = "draw"
)

const BoardSize = 9

var WinCombos = [8][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// Board - ordered cells, row by row.
type Board [BoardSize]Mark

// ParseMark - accepts "x"/"o" in any case.
func ParseMark(raw string) (Mark, error) {
	switch Mark(strings.ToLower(raw)) {
	case MarkX:
		return MarkX, nil
	case MarkO:
		return MarkO, nil
	default:
		return MarkNone, fmt.Errorf("unknown mark %q", raw)
	}
}

// Opponent - returns the other role.
func (that Mark) Opponent() Mark {
	if that == MarkX {
		return MarkO
	}
	return MarkX
}

func (that Mark) Valid() bool {
	return that == MarkX || that == MarkO
}

// Place - marks a cell, it never overwrites an existing mark.
func (that *Board) Place(cell int, mark Mark) error {
	if cell < 0 || cell >= BoardSize {
		return fmt.Errorf("%w: cell %d", apperror.ErrInvalidCell, cell)
	}

	if that[cell] != MarkNone {
		return apperror.ErrCellOccupied
	}

	that[cell] = mark

	return nil
}

// IsFull - true when no empty cell is left.
func (that *Board) IsFull() bool {
	for _, cell := range that {
		if cell == MarkNone {
			return false
		}
	}
	return true
}

// EmptyCells - indexes of empty cells in ascending order.
func (that *Board) EmptyCells() []int {
	cells := make([]int, 0, BoardSize)
	for i, cell := range that {
		if cell == MarkNone {
			cells = append(cells, i)
		}
	}
	return cells
}

// WinningLine - the first triple held by one role, if any.
func (that *Board) WinningLine() ([3]int, bool) {
	for _, combo := range WinCombos {
		a, b, c := that[combo[0]], that[combo[1]], that[combo[2]]
		if a != MarkNone && a == b && b == c {
			return combo, true
		}
	}
	return [3]int{}, false
}

// Evaluate - pure function of the board content.
func Evaluate(board Board) Result {
	if line, ok := board.WinningLine(); ok {
		return Result(board[line[0]])
	}

	// the game will continue until all the squares are full
	if !board.IsFull() {
		return ResultNone
	}

	return ResultDraw
}

// HasWon - true if mark holds any of the fixed triples.
func HasWon(board Board, mark Mark) bool {
	for _, combo := range WinCombos {
		if board[combo[0]] == mark && board[combo[1]] == mark && board[combo[2]] == mark {
			return mark != MarkNone
		}
	}
	return false
}

func (that Result) Terminal() bool {
	return that != ResultNone
}

// Winner - the winning mark, MarkNone for a draw or an open game.
func (that Result) Winner() Mark {
	switch that {
	case ResultXWins:
		return MarkX
	case ResultOWins:
		return MarkO
	default:
		return MarkNone
	}
}
