package tictactoe

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/rocketscienceinc/arcade-sync/internal/apperror"
	"github.com/rocketscienceinc/arcade-sync/internal/entity"
	"github.com/rocketscienceinc/arcade-sync/internal/observer"
	"github.com/rocketscienceinc/arcade-sync/internal/peer"
	"github.com/rocketscienceinc/arcade-sync/internal/protocol"
	"github.com/rocketscienceinc/arcade-sync/internal/session"
)

const opponentName = "Opponent"

type EventKind string

const (
	EventStarted           EventKind = "started"
	EventMoved             EventKind = "moved"
	EventFinished          EventKind = "finished"
	EventRematchRequested  EventKind = "rematch_requested"
	EventPeerLeft          EventKind = "peer_left"
	EventProtocolViolation EventKind = "protocol_violation"
)

type Event struct {
	Kind  EventKind
	Round int

	// set for EventMoved
	Cell  int
	Mark  entity.Mark
	Local bool

	// set for EventFinished
	Result entity.Result

	PeerName string
	Err      error
}

// Peer - networked tic-tac-toe over one channel. Both sides hold a full
// replica; the mover applies first and every received move is validated
// again before it touches local state.
type Peer struct {
	logger *slog.Logger
	ch     peer.Channel
	self   entity.Mark
	name   string

	mu       sync.Mutex
	match    *Match
	peerName string
	left     bool
	leaving  bool

	events observer.List[Event]
}

// MarkFor - the host plays x and moves first.
func MarkFor(role session.Role) entity.Mark {
	if role == session.RoleHost {
		return entity.MarkX
	}
	return entity.MarkO
}

func NewPeer(logger *slog.Logger, ch peer.Channel, self entity.Mark, name string) *Peer {
	return &Peer{
		logger: logger.With("component", "tictactoe", "self", self),
		ch:     ch,
		self:   self,
		name:   entity.DisplayName(name, entity.DefaultName),
		match:  NewMatch(),
	}
}

// Subscribe - register before Start to see the first round.
func (that *Peer) Subscribe(handler func(event Event)) {
	that.events.Add(handler)
}

// Start - hooks the channel and sends the name handshake. The first round
// begins when the peer's name arrives.
func (that *Peer) Start() error {
	that.ch.OnMessage(that.handleMessage)
	that.ch.OnClose(that.handleClose)

	if err := that.ch.Send(protocol.Name{Name: that.name}); err != nil {
		return fmt.Errorf("failed to send name: %w", err)
	}

	return nil
}

// Move - plays a local move and forwards it.
func (that *Peer) Move(cell int) error {
	that.mu.Lock()

	if err := that.match.Apply(cell, that.self); err != nil {
		that.mu.Unlock()
		return err
	}

	round := that.match.Round
	events := []Event{{Kind: EventMoved, Round: round, Cell: cell, Mark: that.self, Local: true}}
	events = that.appendFinished(events)

	err := that.ch.Send(protocol.Move{Index: cell, Class: string(that.self), Round: round})
	that.mu.Unlock()

	that.emit(events)

	if err != nil {
		return fmt.Errorf("failed to send move: %w", err)
	}

	return nil
}

// RequestRematch - asks for another round. If the peer already asked, the
// new round starts right away.
func (that *Peer) RequestRematch() error {
	that.mu.Lock()

	if !that.match.Finished() {
		that.mu.Unlock()
		return apperror.ErrRematchTooEarly
	}

	if that.match.SelfRequested {
		that.mu.Unlock()
		return nil
	}

	that.match.RequestRematch(true)

	var (
		events []Event
		err    error
	)

	if that.match.PeerRequested {
		events, err = that.beginNextRound()
	} else {
		err = that.ch.Send(protocol.RematchRequest{Round: that.match.Round})
	}

	that.mu.Unlock()

	that.emit(events)

	if err != nil {
		return fmt.Errorf("failed to send rematch: %w", err)
	}

	return nil
}

// Leave - closes the channel; the peer sees a disconnect, the local side
// gets EventPeerLeft without an error.
func (that *Peer) Leave() error {
	that.mu.Lock()
	that.leaving = true
	that.mu.Unlock()

	return that.ch.Close()
}

// Snapshot - a copy of the local replica.
func (that *Peer) Snapshot() Match {
	that.mu.Lock()
	defer that.mu.Unlock()

	return *that.match
}

func (that *Peer) Self() entity.Mark {
	return that.self
}

func (that *Peer) PeerName() string {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.peerName
}

func (that *Peer) handleMessage(msg protocol.Message) {
	that.mu.Lock()

	var events []Event

	switch msg := msg.(type) {
	case protocol.Name:
		events = that.handleName(msg)
	case protocol.Move:
		events = that.handleMove(msg)
	case protocol.RematchRequest:
		events = that.handleRematchRequest(msg)
	case protocol.RematchConfirm:
		events = that.handleRematchConfirm(msg)
	default:
		that.logger.Warn("unexpected message", "type", msg.MessageType())
	}

	that.mu.Unlock()

	that.emit(events)
}

func (that *Peer) handleName(msg protocol.Name) []Event {
	that.peerName = entity.DisplayName(msg.Name, opponentName)

	if that.match.State != StateIdle || that.match.Round > 0 {
		return nil
	}

	that.match.Start(1)

	return []Event{{Kind: EventStarted, Round: 1, PeerName: that.peerName}}
}

func (that *Peer) handleMove(msg protocol.Move) []Event {
	log := that.logger.With("method", "handleMove")

	// moves without a round come from peers that predate rounds
	if msg.Round != 0 && msg.Round != that.match.Round {
		log.Debug("dropping move from another round", "round", msg.Round, "current", that.match.Round)
		return nil
	}

	mark, err := entity.ParseMark(msg.Class)
	if err == nil && mark != that.self.Opponent() {
		err = fmt.Errorf("peer played %s", mark)
	}

	if err == nil {
		err = that.match.Apply(msg.Index, mark)
	}

	if err != nil {
		log.Warn("rejected move from peer", "cell", msg.Index, "class", msg.Class, "error", err)

		return []Event{{
			Kind:  EventProtocolViolation,
			Round: that.match.Round,
			Cell:  msg.Index,
			Err:   fmt.Errorf("%w: %w", apperror.ErrProtocolViolation, err),
		}}
	}

	events := []Event{{Kind: EventMoved, Round: that.match.Round, Cell: msg.Index, Mark: mark}}

	return that.appendFinished(events)
}

func (that *Peer) handleRematchRequest(msg protocol.RematchRequest) []Event {
	log := that.logger.With("method", "handleRematchRequest")

	if msg.Round != 0 && msg.Round != that.match.Round {
		log.Debug("dropping rematch request from another round", "round", msg.Round, "current", that.match.Round)
		return nil
	}

	if !that.match.Finished() {
		log.Warn("rematch requested during play", "round", that.match.Round)
		return nil
	}

	that.match.RequestRematch(false)

	if that.match.SelfRequested {
		events, err := that.beginNextRound()
		if err != nil {
			log.Error("failed to confirm rematch", "error", err)
		}
		return events
	}

	return []Event{{Kind: EventRematchRequested, Round: that.match.Round, PeerName: that.peerName}}
}

// handleRematchConfirm - a confirm for a round already reached is a
// duplicate. This settles both sides asking at the same time.
func (that *Peer) handleRematchConfirm(msg protocol.RematchConfirm) []Event {
	round := msg.Round
	if round == 0 {
		if !that.match.SelfRequested {
			return nil
		}
		round = that.match.Round + 1
	}

	if round <= that.match.Round {
		that.logger.Debug("ignoring duplicate rematch confirm", "round", round, "current", that.match.Round)
		return nil
	}

	that.match.Start(round)

	return []Event{{Kind: EventStarted, Round: round, PeerName: that.peerName}}
}

func (that *Peer) handleClose() {
	that.mu.Lock()
	if that.left {
		that.mu.Unlock()
		return
	}
	that.left = true
	that.match.Stop()
	round := that.match.Round
	leaving := that.leaving
	that.mu.Unlock()

	var err error
	if !leaving {
		err = apperror.ErrPeerDisconnected
		that.logger.Info("peer left", "round", round)
	}

	that.emit([]Event{{Kind: EventPeerLeft, Round: round, Err: err}})
}

// beginNextRound - both sides agreed; callers hold the lock.
func (that *Peer) beginNextRound() ([]Event, error) {
	next := that.match.Round + 1
	that.match.Start(next)

	events := []Event{{Kind: EventStarted, Round: next, PeerName: that.peerName}}

	return events, that.ch.Send(protocol.RematchConfirm{Round: next})
}

func (that *Peer) appendFinished(events []Event) []Event {
	if !that.match.Finished() {
		return events
	}

	return append(events, Event{Kind: EventFinished, Round: that.match.Round, Result: that.match.Result})
}

func (that *Peer) emit(events []Event) {
	for _, event := range events {
		that.events.Notify(event)
	}
}

// AcceptFirst - a host plays against the first joiner only; later joiners
// are disconnected.
func AcceptFirst(sess *session.Session, handle func(ch peer.Channel)) {
	var accepted atomic.Bool

	sess.OnIncomingConnection(func(ch peer.Channel) {
		if !accepted.CompareAndSwap(false, true) {
			_ = ch.Close()
			return
		}
		handle(ch)
	})
}
