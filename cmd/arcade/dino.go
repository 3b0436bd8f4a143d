package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rocketscienceinc/arcade-sync/internal/dodge"
	"github.com/rocketscienceinc/arcade-sync/internal/session"
)

// the terminal has no physics; a running player scores one point per tick
const runTick = 50 * time.Millisecond

type runner struct {
	score   int
	running bool
}

func (that *app) runDino(ctx context.Context, args []string) error {
	switch args[0] {
	case "host":
		return that.hostDino(ctx)
	case "join":
		if len(args) < 2 {
			return errUsage
		}
		return that.joinDino(ctx, args[1])
	default:
		return errUsage
	}
}

// hostDino - "start" begins a round for everyone, "d" dies, "q" leaves.
func (that *app) hostDino(ctx context.Context) error {
	sess, err := session.Host(ctx, that.transport(), that.sessionOptions(that.conf.DinoPrefix))
	if err != nil {
		return fmt.Errorf("failed to host: %w", err)
	}
	defer sess.Close()

	host := dodge.NewHost(ctx, that.logger, sess.SelfID, that.conf.Name, that.conf.Color)
	defer host.Close()

	sess.OnIncomingConnection(host.Accept)

	that.printf("room code: %s\ntype start when everyone is in\n", sess.Code)

	return that.playDino(ctx, host, func(line string) (bool, error) {
		switch line {
		case "start", "r":
			return true, host.Start()
		case "players":
			for _, player := range host.Players() {
				that.printf("  %s\n", player.Name)
			}
			return true, nil
		}
		return false, nil
	})
}

// joinDino - "r" asks the host for a rematch, "d" dies, "q" leaves.
func (that *app) joinDino(ctx context.Context, code string) error {
	sess, ch, err := session.Join(ctx, that.transport(), that.sessionOptions(that.conf.DinoPrefix), code)
	if err != nil {
		return fmt.Errorf("failed to join %s: %w", code, err)
	}
	defer sess.Close()

	joiner := dodge.NewJoiner(that.logger, ch, that.conf.Name, that.conf.Color)
	defer joiner.Leave()

	that.printf("joined room %s, waiting for the host to start\n", code)

	return that.playDino(ctx, joiner, func(line string) (bool, error) {
		if line == "r" {
			return true, joiner.RequestRematch()
		}
		return false, nil
	}, joiner.Start)
}

// playDino - one loop owns the local score; remote changes arrive as events.
func (that *app) playDino(
	ctx context.Context,
	sync dodge.Synchronizer,
	command func(line string) (bool, error),
	start ...func() error,
) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan dodge.Event, 64)
	sync.Subscribe(forward(ctx, events))

	for _, fn := range start {
		if err := fn(); err != nil {
			return err
		}
	}

	throttle := dodge.NewThrottle(that.conf.UpdateInterval)
	ticker := time.NewTicker(runTick)
	defer ticker.Stop()

	var run runner

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			if !run.running {
				continue
			}
			run.score++
			if err := throttle.Report(sync, run.score, true); err != nil {
				return err
			}

		case event := <-events:
			switch event.Kind {
			case dodge.EventStarted:
				run = runner{running: true}
				throttle.Reset()
				that.printf("go!\n")
			case dodge.EventSnapshotUpdated:
				that.printf("%s", renderLeaderboard(event.Rows))
			case dodge.EventRematchRequested:
				that.printf("%s wants a rematch\n", event.Name)
			case dodge.EventSessionEnded:
				if event.Err != nil {
					return fmt.Errorf("session ended: %w", event.Err)
				}
				return nil
			}

		case line, ok := <-that.in:
			if !ok {
				return nil
			}

			line = strings.TrimSpace(line)
			switch line {
			case "q":
				return nil
			case "d":
				if run.running {
					run.running = false
					that.printf("you died with %d points\n", run.score)
					if err := throttle.Report(sync, run.score, false); err != nil {
						return err
					}
				}
				continue
			}

			handled, err := command(line)
			if err != nil {
				that.printf("%v\n", err)
			} else if !handled && line != "" {
				that.printf("unknown command %q\n", line)
			}
		}
	}
}

func renderLeaderboard(rows []dodge.Row) string {
	var b strings.Builder

	b.WriteString("leaderboard\n")
	for i, row := range rows {
		state := "run"
		if !row.Alive {
			state = "dead"
		}
		fmt.Fprintf(&b, "%2d. %-12s %-4s %6d\n", i+1, row.Name, state, row.Score)
	}

	return b.String()
}
