package dodge

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/rocketscienceinc/arcade-sync/internal/apperror"
	"github.com/rocketscienceinc/arcade-sync/internal/entity"
	"github.com/rocketscienceinc/arcade-sync/internal/observer"
	"github.com/rocketscienceinc/arcade-sync/internal/peer"
	"github.com/rocketscienceinc/arcade-sync/internal/protocol"
)

const inboxSize = 64

type hostMsg interface{ isHostMsg() }

type attach struct{ ch peer.Channel }

type fromPeer struct {
	ch  peer.Channel
	msg protocol.Message
}

type detach struct{ ch peer.Channel }

type localUpdate struct {
	score int
	alive bool
}

type startRound struct{}

func (attach) isHostMsg()      {}
func (fromPeer) isHostMsg()    {}
func (detach) isHostMsg()      {}
func (localUpdate) isHostMsg() {}
func (startRound) isHostMsg()  {}

// Host - the authoritative end of the star. Every change goes through the
// inbox and is handled on one goroutine, which also owns the player mapping.
// Subscribers run on that goroutine and must not block.
type Host struct {
	logger *slog.Logger
	selfID string

	inbox  chan hostMsg
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// owned by the loop
	players  map[string]protocol.PlayerState
	order    []string
	channels map[string]peer.Channel

	viewMu sync.RWMutex
	ranked []Row
	lobby  []Row

	events observer.List[Event]
}

// NewHost - selfID is the host's own transport identity; its row is keyed by it.
func NewHost(parent context.Context, logger *slog.Logger, selfID, name, color string) *Host {
	ctx, cancel := context.WithCancel(parent)

	host := &Host{
		logger:   logger.With("component", "dodge.Host"),
		selfID:   selfID,
		inbox:    make(chan hostMsg, inboxSize),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		players:  make(map[string]protocol.PlayerState),
		channels: make(map[string]peer.Channel),
	}

	host.add(selfID, protocol.PlayerState{
		Name:  entity.DisplayName(name, entity.DefaultName),
		Color: color,
		Alive: true,
	})
	host.publish()

	go host.loop()

	return host
}

func (that *Host) Subscribe(handler func(event Event)) {
	that.events.Add(handler)
}

// Accept - takes a joiner's channel; pass it to OnIncomingConnection.
func (that *Host) Accept(ch peer.Channel) {
	if !that.post(attach{ch: ch}) {
		_ = ch.Close()
		return
	}

	ch.OnMessage(func(msg protocol.Message) {
		that.post(fromPeer{ch: ch, msg: msg})
	})
	ch.OnClose(func() {
		that.post(detach{ch: ch})
	})
}

func (that *Host) ReportLocalUpdate(score int, alive bool) error {
	if !that.post(localUpdate{score: score, alive: alive}) {
		return apperror.ErrSessionClosed
	}

	return nil
}

// Start - begins a round for everyone: scores reset, every player alive.
func (that *Host) Start() error {
	if !that.post(startRound{}) {
		return apperror.ErrSessionClosed
	}

	return nil
}

// Snapshot - the ranked rows as of the last change.
func (that *Host) Snapshot() []Row {
	that.viewMu.RLock()
	defer that.viewMu.RUnlock()

	return slices.Clone(that.ranked)
}

// Players - the lobby list in join order, host first.
func (that *Host) Players() []Row {
	that.viewMu.RLock()
	defer that.viewMu.RUnlock()

	return slices.Clone(that.lobby)
}

// Close - stops the loop and closes every joiner's channel.
func (that *Host) Close() error {
	that.cancel()
	<-that.done

	return nil
}

func (that *Host) post(msg hostMsg) bool {
	select {
	case <-that.ctx.Done():
		return false
	default:
	}

	select {
	case that.inbox <- msg:
		return true
	case <-that.ctx.Done():
		return false
	}
}

func (that *Host) loop() {
	defer close(that.done)

	for {
		select {
		case <-that.ctx.Done():
			that.shutdown()
			return

		case m := <-that.inbox:
			switch msg := m.(type) {
			case attach:
				that.channels[msg.ch.RemoteID()] = msg.ch
				that.logger.Info("joiner connected", "peerID", msg.ch.RemoteID())

			case fromPeer:
				that.handlePeer(msg.ch, msg.msg)

			case detach:
				that.handleDetach(msg.ch)

			case localUpdate:
				that.setScore(that.selfID, msg.score, msg.alive)
				that.rebroadcast()

			case startRound:
				that.handleStart()
			}
		}
	}
}

func (that *Host) handlePeer(ch peer.Channel, msg protocol.Message) {
	log := that.logger.With("method", "handlePeer", "peerID", ch.RemoteID())

	// a channel detached before its queued messages were handled
	if that.channels[ch.RemoteID()] != ch {
		return
	}

	id := ch.RemoteID()

	switch msg := msg.(type) {
	case protocol.Join:
		if msg.ID != "" && msg.ID != id {
			log.Warn("join id does not match channel identity", "id", msg.ID)
		}

		if _, ok := that.players[id]; ok {
			log.Debug("repeated join")
		}

		that.add(id, protocol.PlayerState{
			Name:  entity.DisplayName(msg.Name, entity.DefaultName),
			Color: msg.Color,
			Alive: true,
		})
		that.rebroadcast()

	case protocol.Update:
		if _, ok := that.players[id]; !ok {
			log.Debug("update before join is ignored")
			return
		}

		if msg.ID != "" && msg.ID != id {
			log.Warn("update id does not match channel identity", "id", msg.ID)
		}

		that.setScore(id, msg.Score, msg.Alive)
		that.rebroadcast()

	case protocol.RematchReq:
		player, ok := that.players[id]
		if !ok {
			log.Debug("rematch request before join is ignored")
			return
		}

		name := entity.DisplayName(msg.Name, player.Name)

		that.emit(Event{Kind: EventRematchRequested, Name: name})

		notification := protocol.RematchReqNotification{Name: name}
		for otherID, other := range that.channels {
			if otherID == id {
				continue
			}
			that.send(other, notification)
		}

	default:
		log.Warn("unexpected message", "type", msg.MessageType())
	}
}

func (that *Host) handleDetach(ch peer.Channel) {
	id := ch.RemoteID()
	if that.channels[id] != ch {
		return
	}

	delete(that.channels, id)
	that.remove(id)

	that.logger.Info("joiner left", "peerID", id)

	that.rebroadcast()
}

func (that *Host) handleStart() {
	for id, player := range that.players {
		player.Score = 0
		player.Alive = true
		that.players[id] = player
	}

	for _, ch := range that.channels {
		that.send(ch, protocol.Start{})
	}

	that.emit(Event{Kind: EventStarted})
	that.rebroadcast()
}

// rebroadcast - sends the whole mapping to every joiner and renders locally.
func (that *Host) rebroadcast() {
	snapshot := protocol.Leaderboard{Players: make(map[string]protocol.PlayerState, len(that.players))}
	for id, player := range that.players {
		snapshot.Players[id] = player
	}

	for _, ch := range that.channels {
		that.send(ch, snapshot)
	}

	rows := that.publish()

	that.emit(Event{Kind: EventSnapshotUpdated, Rows: rows})
}

func (that *Host) send(ch peer.Channel, msg protocol.Message) {
	// a failed send means the channel is closing; its detach follows
	if err := ch.Send(msg); err != nil {
		that.logger.Warn("failed to send", "peerID", ch.RemoteID(), "type", msg.MessageType(), "error", err)
	}
}

func (that *Host) add(id string, player protocol.PlayerState) {
	if _, ok := that.players[id]; !ok {
		that.order = append(that.order, id)
	}
	that.players[id] = player
}

func (that *Host) remove(id string) {
	delete(that.players, id)

	that.order = slices.DeleteFunc(that.order, func(other string) bool { return other == id })
}

func (that *Host) setScore(id string, score int, alive bool) {
	player := that.players[id]
	player.Score = score
	player.Alive = alive
	that.players[id] = player
}

// publish - refreshes the views read by Snapshot and Players.
func (that *Host) publish() []Row {
	ranked := Rank(that.players)

	lobby := make([]Row, 0, len(that.order))
	for _, id := range that.order {
		player := that.players[id]
		lobby = append(lobby, Row{ID: id, Name: player.Name, Color: player.Color, Score: player.Score, Alive: player.Alive})
	}

	that.viewMu.Lock()
	that.ranked = ranked
	that.lobby = lobby
	that.viewMu.Unlock()

	return slices.Clone(ranked)
}

func (that *Host) shutdown() {
	for id, ch := range that.channels {
		_ = ch.Close()
		delete(that.channels, id)
	}

	that.logger.Info("host closed")
}

func (that *Host) emit(event Event) {
	that.events.Notify(event)
}
