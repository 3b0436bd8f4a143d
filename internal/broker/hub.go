// Package broker is the signaling and relay hub behind the websocket peer
// transport. Peers claim identities on it and open virtual channels to each
// other; the hub only forwards frames and never inspects game payloads.
package broker

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/rocketscienceinc/arcade-sync/internal/apperror"
	"github.com/rocketscienceinc/arcade-sync/internal/pkg"
)

// Endpoint - a connected peer. Send must not block for long.
type Endpoint interface {
	Send(frame Frame) error
}

type link struct {
	a, b string
}

func (that link) other(id string) (string, bool) {
	switch id {
	case that.a:
		return that.b, true
	case that.b:
		return that.a, true
	default:
		return "", false
	}
}

type Stats struct {
	Peers    int `json:"peers"`
	Channels int `json:"channels"`
}

type Hub struct {
	logger *slog.Logger

	mu        sync.Mutex
	endpoints map[string]Endpoint
	links     map[string]link
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:    logger.With("component", "broker"),
		endpoints: make(map[string]Endpoint),
		links:     make(map[string]link),
	}
}

// Register - claims an identity; an empty hint gets a generated one.
func (that *Hub) Register(hint string, endpoint Endpoint) (string, error) {
	id := hint
	if id == "" {
		id = pkg.GenerateParticipantID()
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	if _, taken := that.endpoints[id]; taken {
		return "", fmt.Errorf("%w: %s", apperror.ErrIdentityTaken, id)
	}
	that.endpoints[id] = endpoint

	that.logger.Debug("peer registered", "peerID", id)

	return id, nil
}

// Unregister - releases the identity and closes every channel it was part of.
func (that *Hub) Unregister(id string) {
	type notice struct {
		endpoint Endpoint
		frame    Frame
	}

	var notices []notice

	that.mu.Lock()
	delete(that.endpoints, id)
	for channelID, l := range that.links {
		other, ok := l.other(id)
		if !ok {
			continue
		}
		delete(that.links, channelID)
		if endpoint, found := that.endpoints[other]; found {
			notices = append(notices, notice{endpoint, Frame{Type: FrameClose, Src: id, Channel: channelID}})
		}
	}
	that.mu.Unlock()

	for _, n := range notices {
		that.send(n.endpoint, n.frame)
	}

	that.logger.Debug("peer unregistered", "peerID", id, "closedChannels", len(notices))
}

// Route - handles one frame sent by src.
func (that *Hub) Route(src string, frame Frame) {
	switch frame.Type {
	case FrameConnect:
		that.connect(src, frame)
	case FrameData:
		that.forward(src, frame)
	case FrameClose:
		that.hangup(src, frame)
	default:
		that.reject(src, Frame{Type: FrameError, Kind: KindInvalidFrame, Channel: frame.Channel})
	}
}

func (that *Hub) Stats() Stats {
	that.mu.Lock()
	defer that.mu.Unlock()

	return Stats{Peers: len(that.endpoints), Channels: len(that.links)}
}

func (that *Hub) connect(src string, frame Frame) {
	if frame.Dst == "" || frame.Channel == "" {
		that.reject(src, Frame{Type: FrameError, Kind: KindInvalidFrame, Channel: frame.Channel})
		return
	}

	that.mu.Lock()
	origin, okSrc := that.endpoints[src]
	target, okDst := that.endpoints[frame.Dst]
	_, exists := that.links[frame.Channel]
	if okSrc && okDst && !exists && src != frame.Dst {
		that.links[frame.Channel] = link{a: src, b: frame.Dst}
	}
	that.mu.Unlock()

	switch {
	case !okSrc:
		return
	case exists:
		that.send(origin, Frame{Type: FrameError, Kind: KindInvalidFrame, Channel: frame.Channel})
		return
	case !okDst || src == frame.Dst:
		that.send(origin, Frame{Type: FrameError, Kind: KindPeerUnavailable, Channel: frame.Channel, Dst: frame.Dst})
		return
	}

	that.send(target, Frame{Type: FrameConnect, Src: src, Channel: frame.Channel, Payload: frame.Payload})
	that.send(origin, Frame{Type: FrameConnected, Dst: frame.Dst, Channel: frame.Channel})

	that.logger.Debug("channel opened", "channel", frame.Channel, "src", src, "dst", frame.Dst)
}

func (that *Hub) forward(src string, frame Frame) {
	that.mu.Lock()
	origin := that.endpoints[src]
	var target Endpoint
	l, ok := that.links[frame.Channel]
	other, member := l.other(src)
	if ok && member {
		target = that.endpoints[other]
	}
	that.mu.Unlock()

	if target == nil {
		// the channel is gone, tell the sender so it stops writing
		if origin != nil {
			that.send(origin, Frame{Type: FrameClose, Channel: frame.Channel})
		}
		return
	}

	that.send(target, Frame{Type: FrameData, Src: src, Channel: frame.Channel, Payload: frame.Payload})
}

func (that *Hub) hangup(src string, frame Frame) {
	that.mu.Lock()
	var target Endpoint
	l, ok := that.links[frame.Channel]
	other, member := l.other(src)
	if ok && member {
		delete(that.links, frame.Channel)
		target = that.endpoints[other]
	}
	that.mu.Unlock()

	if target != nil {
		that.send(target, Frame{Type: FrameClose, Src: src, Channel: frame.Channel})
	}
}

func (that *Hub) reject(src string, frame Frame) {
	that.mu.Lock()
	origin := that.endpoints[src]
	that.mu.Unlock()

	if origin != nil {
		that.send(origin, frame)
	}
}

func (that *Hub) send(endpoint Endpoint, frame Frame) {
	if err := endpoint.Send(frame); err != nil {
		that.logger.Warn("failed to send frame", "type", frame.Type, "channel", frame.Channel, "error", err)
	}
}
