// Package peer defines the session transport used by the peer-to-peer games.
//
// A Transport owns one identity on a shared namespace and opens Channels to
// other identities. Channels deliver messages in send order and never retry.
package peer

import (
	"context"

	"github.com/rocketscienceinc/arcade-sync/internal/protocol"
)

// Channel - a bidirectional message pipe between two identities.
type Channel interface {
	LocalID() string
	RemoteID() string

	// Send returns apperror.ErrChannelClosed once the channel is closed.
	Send(msg protocol.Message) error

	// OnMessage and OnClose append a handler; earlier handlers run first.
	OnMessage(handler func(msg protocol.Message))
	OnClose(handler func())

	Close() error
}

// Transport - one identity on the shared namespace.
type Transport interface {
	// Open claims an identity. An empty hint lets the transport pick one.
	// A taken hint fails with apperror.ErrIdentityTaken and leaves the
	// transport unopened, so Open may be called again.
	Open(ctx context.Context, hint string) (string, error)

	ConnectTo(ctx context.Context, remoteID string) (Channel, error)

	OnIncomingConnection(handler func(ch Channel))

	// Close releases the identity and closes every channel.
	Close() error
}
