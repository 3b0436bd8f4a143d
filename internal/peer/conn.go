package peer

import (
	"sync"

	"github.com/rocketscienceinc/arcade-sync/internal/apperror"
	"github.com/rocketscienceinc/arcade-sync/internal/observer"
	"github.com/rocketscienceinc/arcade-sync/internal/protocol"
)

// Conn - the Channel shared by every transport implementation. Transports
// supply the outbound half (send, hangup) and feed the inbound half through
// Deliver and Shutdown.
type Conn struct {
	localID  string
	remoteID string

	send   func(msg protocol.Message) error
	hangup func()

	mu      sync.Mutex
	queue   []protocol.Message
	closed  bool
	started bool
	done    bool
	wake    chan struct{}

	messages observer.List[protocol.Message]
	closes   observer.List[struct{}]
}

// NewConn - send writes one message to the remote side, hangup tells the
// remote side that this end closed. Neither is called after Close.
func NewConn(localID, remoteID string, send func(msg protocol.Message) error, hangup func()) *Conn {
	return &Conn{
		localID:  localID,
		remoteID: remoteID,
		send:     send,
		hangup:   hangup,
		wake:     make(chan struct{}, 1),
	}
}

func (that *Conn) LocalID() string {
	return that.localID
}

func (that *Conn) RemoteID() string {
	return that.remoteID
}

func (that *Conn) Send(msg protocol.Message) error {
	if that.IsClosed() {
		return apperror.ErrChannelClosed
	}

	return that.send(msg)
}

func (that *Conn) OnMessage(handler func(msg protocol.Message)) {
	that.messages.Add(handler)
	that.start()
}

func (that *Conn) OnClose(handler func()) {
	that.mu.Lock()
	if that.done {
		that.mu.Unlock()
		handler()
		return
	}
	that.closes.Add(func(struct{}) { handler() })
	that.mu.Unlock()

	that.start()
}

// Close - local close; the remote side is told once.
func (that *Conn) Close() error {
	if !that.markClosed() {
		return nil
	}

	if that.hangup != nil {
		that.hangup()
	}

	return nil
}

// Deliver - queues an inbound message; dropped after close.
func (that *Conn) Deliver(msg protocol.Message) {
	that.mu.Lock()
	if that.closed {
		that.mu.Unlock()
		return
	}
	that.queue = append(that.queue, msg)
	that.mu.Unlock()

	that.signal()
}

// Shutdown - the remote side went away. Queued messages are still delivered
// before the close handlers run.
func (that *Conn) Shutdown() {
	that.markClosed()
}

func (that *Conn) IsClosed() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.closed
}

func (that *Conn) markClosed() bool {
	that.mu.Lock()
	if that.closed {
		that.mu.Unlock()
		return false
	}
	that.closed = true
	that.mu.Unlock()

	that.signal()

	return true
}

func (that *Conn) signal() {
	select {
	case that.wake <- struct{}{}:
	default:
	}
}

// start - dispatching begins with the first subscription so nothing sent
// before the handlers exist is lost.
func (that *Conn) start() {
	that.mu.Lock()
	if that.started {
		that.mu.Unlock()
		return
	}
	that.started = true
	that.mu.Unlock()

	go that.dispatch()
	that.signal()
}

func (that *Conn) dispatch() {
	for range that.wake {
		that.mu.Lock()
		batch := that.queue
		that.queue = nil
		closed := that.closed
		that.mu.Unlock()

		for _, msg := range batch {
			that.messages.Notify(msg)
		}

		if closed {
			// a Deliver racing with close may have queued one more batch
			that.mu.Lock()
			rest := that.queue
			that.queue = nil
			that.done = true
			that.mu.Unlock()

			for _, msg := range rest {
				that.messages.Notify(msg)
			}

			that.closes.Notify(struct{}{})
			return
		}
	}
}
