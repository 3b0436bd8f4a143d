package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rocketscienceinc/arcade-sync/internal/entity"
	"github.com/rocketscienceinc/arcade-sync/internal/peer"
	"github.com/rocketscienceinc/arcade-sync/internal/session"
	"github.com/rocketscienceinc/arcade-sync/internal/tictactoe"
)

var errQuit = errors.New("quit")

func (that *app) runOX(ctx context.Context, args []string) error {
	switch args[0] {
	case "host":
		return that.hostOX(ctx)
	case "join":
		if len(args) < 2 {
			return errUsage
		}
		return that.joinOX(ctx, args[1])
	case "local":
		flags := flag.NewFlagSet("local", flag.ContinueOnError)
		bot := flags.Bool("bot", false, "play o against the computer")
		if err := flags.Parse(args[1:]); err != nil {
			return err
		}
		return that.localOX(ctx, *bot)
	default:
		return errUsage
	}
}

func (that *app) hostOX(ctx context.Context) error {
	sess, err := session.Host(ctx, that.transport(), that.sessionOptions(that.conf.OXPrefix))
	if err != nil {
		return fmt.Errorf("failed to host: %w", err)
	}
	defer sess.Close()

	that.printf("room code: %s\nwaiting for an opponent...\n", sess.Code)

	opponent := make(chan peer.Channel, 1)
	tictactoe.AcceptFirst(sess, func(ch peer.Channel) { opponent <- ch })

	select {
	case ch := <-opponent:
		return that.playOX(ctx, ch, tictactoe.MarkFor(session.RoleHost))
	case <-ctx.Done():
		return nil
	}
}

func (that *app) joinOX(ctx context.Context, code string) error {
	sess, ch, err := session.Join(ctx, that.transport(), that.sessionOptions(that.conf.OXPrefix), code)
	if err != nil {
		return fmt.Errorf("failed to join %s: %w", code, err)
	}
	defer sess.Close()

	return that.playOX(ctx, ch, tictactoe.MarkFor(session.RoleJoiner))
}

// playOX - reads cells 1-9, "r" for a rematch and "q" to leave.
func (that *app) playOX(ctx context.Context, ch peer.Channel, self entity.Mark) error {
	ctx, cancel := context.WithCancel(ctx)

	game := tictactoe.NewPeer(that.logger, ch, self, that.conf.Name)

	events := make(chan tictactoe.Event, 32)
	game.Subscribe(forward(ctx, events))

	if err := game.Start(); err != nil {
		cancel()
		return err
	}
	defer game.Leave()
	defer cancel()

	that.printf("you play %s\n", self)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event := <-events:
			if done := that.showOXEvent(game, event); done {
				return nil
			}

		case line, ok := <-that.in:
			if !ok {
				return nil
			}

			err := that.oxCommand(game, line)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				that.printf("%v\n", err)
			}
		}
	}
}

func (that *app) oxCommand(game *tictactoe.Peer, line string) error {
	switch line = strings.TrimSpace(line); line {
	case "":
		return nil
	case "q":
		return errQuit
	case "r":
		if err := game.RequestRematch(); err != nil {
			return err
		}
		that.printf("rematch requested\n")
		return nil
	}

	cell, err := parseCell(line)
	if err != nil {
		return err
	}

	return game.Move(cell)
}

func (that *app) showOXEvent(game *tictactoe.Peer, event tictactoe.Event) bool {
	switch event.Kind {
	case tictactoe.EventStarted:
		that.printf("round %d against %s\n", event.Round, event.PeerName)
		that.printf("%s", renderBoard(entity.Board{}))
		that.printTurn(game)

	case tictactoe.EventMoved:
		match := game.Snapshot()
		that.printf("%s", renderBoard(match.Board))
		if !match.Finished() {
			that.printTurn(game)
		}

	case tictactoe.EventFinished:
		that.printf("%s\n", describeResult(event.Result, game.Self()))
		that.printf("type r for a rematch or q to leave\n")

	case tictactoe.EventRematchRequested:
		that.printf("%s wants a rematch, type r to accept\n", event.PeerName)

	case tictactoe.EventProtocolViolation:
		that.printf("ignored an invalid move from the opponent: %v\n", event.Err)

	case tictactoe.EventPeerLeft:
		that.printf("opponent left\n")
		return true
	}

	return false
}

func (that *app) printTurn(game *tictactoe.Peer) {
	if game.Snapshot().Turn == game.Self() {
		that.printf("your move (1-9)\n")
		return
	}
	that.printf("waiting for %s\n", game.PeerName())
}

// localOX - hot-seat on one terminal, optionally against the bot as o.
func (that *app) localOX(ctx context.Context, withBot bool) error {
	var bot *tictactoe.Bot
	if withBot {
		bot = tictactoe.NewBot(entity.MarkO, time.Now().UnixNano())
	}

	match := tictactoe.NewMatch()
	match.Start(1)

	for {
		that.printf("%s", renderBoard(match.Board))

		if match.Finished() {
			that.printf("%s\n", describeResult(match.Result, entity.MarkNone))
			that.printf("type r to play again or q to leave\n")
		} else if bot != nil && match.Turn == bot.Mark() {
			cell, err := bot.MakeTurn(match)
			if err != nil {
				return err
			}
			that.printf("bot plays %d\n", cell+1)
			continue
		} else {
			that.printf("%s to move (1-9)\n", match.Turn)
		}

		select {
		case <-ctx.Done():
			return nil

		case line, ok := <-that.in:
			if !ok {
				return nil
			}

			switch line = strings.TrimSpace(line); line {
			case "q":
				return nil
			case "r":
				match.Start(match.Round + 1)
				continue
			}

			cell, err := parseCell(line)
			if err == nil {
				err = match.Apply(cell, match.Turn)
			}
			if err != nil {
				that.printf("%v\n", err)
			}
		}
	}
}

// parseCell - players count cells from 1.
func parseCell(line string) (int, error) {
	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > entity.BoardSize {
		return -1, fmt.Errorf("enter a cell from 1 to %d", entity.BoardSize)
	}

	return n - 1, nil
}

func renderBoard(board entity.Board) string {
	var b strings.Builder

	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			cell := row*3 + col

			symbol := string(board[cell])
			if board[cell] == entity.MarkNone {
				symbol = strconv.Itoa(cell + 1)
			}

			b.WriteString(" " + symbol + " ")
			if col < 2 {
				b.WriteString("|")
			}
		}

		b.WriteString("\n")
		if row < 2 {
			b.WriteString("---+---+---\n")
		}
	}

	return b.String()
}

// describeResult - self is MarkNone in hot-seat play.
func describeResult(result entity.Result, self entity.Mark) string {
	if result == entity.ResultDraw {
		return "draw"
	}

	winner := result.Winner()
	switch {
	case self == entity.MarkNone:
		return fmt.Sprintf("%s wins", winner)
	case winner == self:
		return "you win"
	default:
		return "you lose"
	}
}
