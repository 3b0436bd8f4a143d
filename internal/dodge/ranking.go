// Package dodge keeps the dodge game's leaderboard in sync.
//
// The host holds the authoritative mapping of every player's score and
// alive flag and rebroadcasts all of it after each change. Joiners report
// their own progress and render whatever snapshot arrived last.
package dodge

import (
	"cmp"
	"slices"

	"github.com/rocketscienceinc/arcade-sync/internal/protocol"
)

// Row - one ranked leaderboard line.
type Row struct {
	ID    string
	Name  string
	Color string
	Score int
	Alive bool
}

// Rank - alive players first, then score descending. Name and id break ties
// so every replica renders the same order.
func Rank(players map[string]protocol.PlayerState) []Row {
	rows := make([]Row, 0, len(players))
	for id, player := range players {
		rows = append(rows, Row{
			ID:    id,
			Name:  player.Name,
			Color: player.Color,
			Score: player.Score,
			Alive: player.Alive,
		})
	}

	slices.SortFunc(rows, compareRows)

	return rows
}

func compareRows(a, b Row) int {
	if a.Alive != b.Alive {
		if a.Alive {
			return -1
		}
		return 1
	}

	if a.Score != b.Score {
		return cmp.Compare(b.Score, a.Score)
	}

	if a.Name != b.Name {
		return cmp.Compare(a.Name, b.Name)
	}

	return cmp.Compare(a.ID, b.ID)
}
