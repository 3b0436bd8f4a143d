package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/arcade-sync/internal/apperror"
	"github.com/rocketscienceinc/arcade-sync/internal/dodge"
	"github.com/rocketscienceinc/arcade-sync/internal/entity"
	"github.com/rocketscienceinc/arcade-sync/internal/protocol"
)

func scripted(lines ...string) <-chan string {
	in := make(chan string, len(lines))
	for _, line := range lines {
		in <- line
	}
	close(in)
	return in
}

func TestParseCell(t *testing.T) {
	cell, err := parseCell("1")
	require.NoError(t, err)
	assert.Equal(t, 0, cell)

	cell, err = parseCell("9")
	require.NoError(t, err)
	assert.Equal(t, 8, cell)

	for _, bad := range []string{"0", "10", "x", ""} {
		_, err = parseCell(bad)
		assert.Error(t, err, bad)
	}
}

func TestRenderBoard(t *testing.T) {
	board := entity.Board{"x", "", "", "", "o"}

	assert.Equal(t, " x | 2 | 3 \n---+---+---\n 4 | o | 6 \n---+---+---\n 7 | 8 | 9 \n", renderBoard(board))
}

func TestRenderLeaderboard(t *testing.T) {
	rows := dodge.Rank(map[string]protocol.PlayerState{
		"a": {Name: "Hana", Score: 10, Alive: false},
		"b": {Name: "Jo", Score: 5, Alive: true},
	})

	lines := strings.Split(strings.TrimSpace(renderLeaderboard(rows)), "\n")

	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "Jo")
	assert.Contains(t, lines[1], "run")
	assert.Contains(t, lines[2], "Hana")
	assert.Contains(t, lines[2], "dead")
}

func TestLocalOX(t *testing.T) {
	t.Run("Hot-seat game to a win", func(t *testing.T) {
		// Given: a scripted hot-seat game where x takes the top row
		var out bytes.Buffer
		a := &app{
			logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
			in:     scripted("1", "4", "2", "5", "5", "3", "q"),
			out:    &out,
		}

		// When: it is played
		err := a.localOX(context.Background(), false)

		// Then: the occupied cell is refused and x wins
		require.NoError(t, err)
		assert.Contains(t, out.String(), apperror.ErrCellOccupied.Error())
		assert.Contains(t, out.String(), "x wins")
	})

	t.Run("Against the bot the game always ends", func(t *testing.T) {
		var out bytes.Buffer
		a := &app{
			logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
			in:     scripted("1", "2", "3", "4", "5", "6", "7", "8", "9", "q"),
			out:    &out,
		}

		require.NoError(t, a.localOX(context.Background(), true))

		output := out.String()
		assert.True(t, strings.Contains(output, "wins") || strings.Contains(output, "draw"), output)
	})
}

func TestDescribeResult(t *testing.T) {
	assert.Equal(t, "draw", describeResult(entity.ResultDraw, entity.MarkX))
	assert.Equal(t, "you win", describeResult(entity.ResultOWins, entity.MarkO))
	assert.Equal(t, "you lose", describeResult(entity.ResultOWins, entity.MarkX))
	assert.Equal(t, "o wins", describeResult(entity.ResultOWins, entity.MarkNone))
}

func TestForward(t *testing.T) {
	t.Run("Hands events to the loop", func(t *testing.T) {
		events := make(chan dodge.Event, 1)

		forward(context.Background(), events)(dodge.Event{Kind: dodge.EventStarted})

		assert.Equal(t, dodge.EventStarted, (<-events).Kind)
	})

	t.Run("Does not block once the loop is gone", func(t *testing.T) {
		// Given: a full queue nobody reads any more
		ctx, cancel := context.WithCancel(context.Background())
		events := make(chan dodge.Event, 1)
		events <- dodge.Event{}
		cancel()

		// When: another event is published
		done := make(chan struct{})
		go func() {
			forward(ctx, events)(dodge.Event{Kind: dodge.EventSnapshotUpdated})
			close(done)
		}()

		// Then: the publisher returns
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("publisher blocked on a full queue")
		}
	})
}
