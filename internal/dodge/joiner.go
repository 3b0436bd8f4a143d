package dodge

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/rocketscienceinc/arcade-sync/internal/apperror"
	"github.com/rocketscienceinc/arcade-sync/internal/entity"
	"github.com/rocketscienceinc/arcade-sync/internal/observer"
	"github.com/rocketscienceinc/arcade-sync/internal/peer"
	"github.com/rocketscienceinc/arcade-sync/internal/protocol"
)

// Joiner - a leaf of the star. It reports its own progress to the host and
// keeps only the last snapshot the host sent.
type Joiner struct {
	logger *slog.Logger
	ch     peer.Channel
	name   string
	color  string

	mu      sync.Mutex
	rows    []Row
	leaving bool
	ended   bool

	events observer.List[Event]
}

func NewJoiner(logger *slog.Logger, ch peer.Channel, name, color string) *Joiner {
	return &Joiner{
		logger: logger.With("component", "dodge.Joiner", "peerID", ch.LocalID()),
		ch:     ch,
		name:   entity.DisplayName(name, entity.DefaultName),
		color:  color,
	}
}

// Subscribe - register before Start to see the first snapshot.
func (that *Joiner) Subscribe(handler func(event Event)) {
	that.events.Add(handler)
}

// Start - hooks the channel and introduces this player to the host.
func (that *Joiner) Start() error {
	that.ch.OnMessage(that.handleMessage)
	that.ch.OnClose(that.handleClose)

	join := protocol.Join{Name: that.name, Color: that.color, ID: that.ch.LocalID()}
	if err := that.ch.Send(join); err != nil {
		return fmt.Errorf("failed to send join: %w", err)
	}

	return nil
}

func (that *Joiner) ReportLocalUpdate(score int, alive bool) error {
	update := protocol.Update{ID: that.ch.LocalID(), Score: score, Alive: alive}
	if err := that.ch.Send(update); err != nil {
		return fmt.Errorf("failed to send update: %w", err)
	}

	return nil
}

// RequestRematch - only the host can start a round; this asks it to.
func (that *Joiner) RequestRematch() error {
	if err := that.ch.Send(protocol.RematchReq{Name: that.name}); err != nil {
		return fmt.Errorf("failed to send rematch request: %w", err)
	}

	return nil
}

func (that *Joiner) Snapshot() []Row {
	that.mu.Lock()
	defer that.mu.Unlock()

	return slices.Clone(that.rows)
}

// Leave - closes the channel; the host drops this player.
func (that *Joiner) Leave() error {
	that.mu.Lock()
	that.leaving = true
	that.mu.Unlock()

	return that.ch.Close()
}

func (that *Joiner) handleMessage(msg protocol.Message) {
	switch msg := msg.(type) {
	case protocol.Leaderboard:
		rows := Rank(msg.Players)

		that.mu.Lock()
		that.rows = rows
		that.mu.Unlock()

		that.events.Notify(Event{Kind: EventSnapshotUpdated, Rows: slices.Clone(rows)})

	case protocol.Start:
		that.events.Notify(Event{Kind: EventStarted})

	case protocol.RematchReqNotification:
		that.events.Notify(Event{Kind: EventRematchRequested, Name: msg.Name})

	default:
		that.logger.Warn("unexpected message", "type", msg.MessageType())
	}
}

// handleClose - losing the host ends the session; leaving on purpose ends it
// without an error.
func (that *Joiner) handleClose() {
	that.mu.Lock()
	if that.ended {
		that.mu.Unlock()
		return
	}
	that.ended = true
	leaving := that.leaving
	that.mu.Unlock()

	var err error
	if !leaving {
		err = apperror.ErrPeerDisconnected
		that.logger.Info("host disconnected")
	}

	that.events.Notify(Event{Kind: EventSessionEnded, Err: err})
}
