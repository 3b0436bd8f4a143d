// Package memnet is an in-process peer.Transport. Every transport created from
// the same Network shares one identity namespace, like peers sharing a broker.
package memnet

import (
	"context"
	"fmt"
	"sync"

	"github.com/rocketscienceinc/arcade-sync/internal/apperror"
	"github.com/rocketscienceinc/arcade-sync/internal/observer"
	"github.com/rocketscienceinc/arcade-sync/internal/peer"
	"github.com/rocketscienceinc/arcade-sync/internal/pkg"
	"github.com/rocketscienceinc/arcade-sync/internal/protocol"
)

type Network struct {
	mu    sync.Mutex
	peers map[string]*Transport
}

func NewNetwork() *Network {
	return &Network{peers: make(map[string]*Transport)}
}

// NewTransport - an unopened transport on this network.
func (that *Network) NewTransport() *Transport {
	return &Transport{network: that, channels: make(map[*peer.Conn]struct{})}
}

// Has - reports whether an identity is currently claimed.
func (that *Network) Has(id string) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	_, ok := that.peers[id]
	return ok
}

func (that *Network) claim(id string, tr *Transport) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, taken := that.peers[id]; taken {
		return fmt.Errorf("%w: %s", apperror.ErrIdentityTaken, id)
	}
	that.peers[id] = tr

	return nil
}

func (that *Network) release(id string) {
	that.mu.Lock()
	delete(that.peers, id)
	that.mu.Unlock()
}

func (that *Network) lookup(id string) (*Transport, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	tr, ok := that.peers[id]
	return tr, ok
}

type Transport struct {
	network *Network

	mu       sync.Mutex
	id       string
	closed   bool
	channels map[*peer.Conn]struct{}

	incoming observer.List[peer.Channel]
}

var _ peer.Transport = (*Transport)(nil)

func (that *Transport) Open(ctx context.Context, hint string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", apperror.ErrConnectTimeout, err)
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return "", apperror.ErrTransportClosed
	}

	if that.id != "" {
		return that.id, nil
	}

	id := hint
	if id == "" {
		id = pkg.GenerateParticipantID()
	}

	if err := that.network.claim(id, that); err != nil {
		return "", err
	}
	that.id = id

	return id, nil
}

func (that *Transport) ConnectTo(ctx context.Context, remoteID string) (peer.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", apperror.ErrConnectTimeout, err)
	}

	localID := that.ID()
	if localID == "" {
		return nil, fmt.Errorf("%w: transport is not open", apperror.ErrConnectionFailed)
	}

	remote, ok := that.network.lookup(remoteID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperror.ErrPeerUnavailable, remoteID)
	}

	var local, far *peer.Conn
	local = peer.NewConn(localID, remoteID, deliverTo(&far), func() { far.Shutdown() })
	far = peer.NewConn(remoteID, localID, deliverTo(&local), func() { local.Shutdown() })

	if !that.track(local) {
		return nil, apperror.ErrTransportClosed
	}
	if !remote.track(far) {
		_ = local.Close()
		return nil, fmt.Errorf("%w: %s", apperror.ErrPeerUnavailable, remoteID)
	}

	remote.incoming.Notify(far)

	return local, nil
}

func (that *Transport) OnIncomingConnection(handler func(ch peer.Channel)) {
	that.incoming.Add(handler)
}

func (that *Transport) Close() error {
	that.mu.Lock()
	if that.closed {
		that.mu.Unlock()
		return nil
	}
	that.closed = true
	id := that.id
	channels := that.channels
	that.channels = make(map[*peer.Conn]struct{})
	that.mu.Unlock()

	if id != "" {
		that.network.release(id)
	}

	for conn := range channels {
		_ = conn.Close()
	}

	return nil
}

func (that *Transport) ID() string {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.id
}

func (that *Transport) track(conn *peer.Conn) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return false
	}
	that.channels[conn] = struct{}{}

	return true
}

// deliverTo - messages go through the wire codec so both sides see exactly
// what a remote peer would decode.
func deliverTo(target **peer.Conn) func(msg protocol.Message) error {
	return func(msg protocol.Message) error {
		copied, err := protocol.Clone(msg)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", msg.MessageType(), err)
		}

		(*target).Deliver(copied)

		return nil
	}
}
