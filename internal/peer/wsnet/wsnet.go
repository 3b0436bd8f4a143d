// Package wsnet is a peer.Transport that talks to the broker over a websocket.
package wsnet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/arcade-sync/internal/apperror"
	"github.com/rocketscienceinc/arcade-sync/internal/broker"
	"github.com/rocketscienceinc/arcade-sync/internal/observer"
	"github.com/rocketscienceinc/arcade-sync/internal/peer"
	"github.com/rocketscienceinc/arcade-sync/internal/pkg"
	"github.com/rocketscienceinc/arcade-sync/internal/protocol"
)

const writeWait = 10 * time.Second

type pendingConnect struct {
	remoteID string
	reply    chan connectResult
}

type connectResult struct {
	conn *peer.Conn
	err  error
}

type Transport struct {
	logger    *slog.Logger
	brokerURL string
	dialer    *websocket.Dialer

	mu       sync.Mutex
	conn     *websocket.Conn
	id       string
	closed   bool
	channels map[string]*peer.Conn
	pending  map[string]*pendingConnect

	writeMu sync.Mutex

	incoming observer.List[peer.Channel]
}

var _ peer.Transport = (*Transport)(nil)

// New - brokerURL points at the broker endpoint, e.g. ws://localhost:3001/peer.
func New(logger *slog.Logger, brokerURL string) *Transport {
	return &Transport{
		logger:    logger.With("component", "wsnet"),
		brokerURL: brokerURL,
		dialer:    websocket.DefaultDialer,
		channels:  make(map[string]*peer.Conn),
		pending:   make(map[string]*pendingConnect),
	}
}

func (that *Transport) Open(ctx context.Context, hint string) (string, error) {
	log := that.logger.With("method", "Open", "hint", hint)

	that.mu.Lock()
	if that.closed {
		that.mu.Unlock()
		return "", apperror.ErrTransportClosed
	}
	if that.id != "" {
		id := that.id
		that.mu.Unlock()
		return id, nil
	}
	that.mu.Unlock()

	target, err := url.Parse(that.brokerURL)
	if err != nil {
		return "", fmt.Errorf("%w: invalid broker url: %w", apperror.ErrConnectionFailed, err)
	}
	if hint != "" {
		query := target.Query()
		query.Set("id", hint)
		target.RawQuery = query.Encode()
	}

	conn, _, err := that.dialer.DialContext(ctx, target.String(), nil)
	if err != nil {
		return "", classify(ctx, err)
	}

	frame, err := readFirst(ctx, conn)
	if err != nil {
		_ = conn.Close()
		return "", classify(ctx, err)
	}

	switch {
	case frame.Type == broker.FrameOpen && frame.ID != "":
	case frame.Type == broker.FrameError && frame.Kind == broker.KindUnavailableID:
		_ = conn.Close()
		return "", fmt.Errorf("%w: %s", apperror.ErrIdentityTaken, hint)
	default:
		_ = conn.Close()
		return "", fmt.Errorf("%w: unexpected %q frame", apperror.ErrConnectionFailed, frame.Type)
	}

	that.mu.Lock()
	if that.closed {
		that.mu.Unlock()
		_ = conn.Close()
		return "", apperror.ErrTransportClosed
	}
	that.conn = conn
	that.id = frame.ID
	that.mu.Unlock()

	go that.readLoop(conn)

	log.Debug("identity claimed", "peerID", frame.ID)

	return frame.ID, nil
}

func (that *Transport) ConnectTo(ctx context.Context, remoteID string) (peer.Channel, error) {
	channelID := pkg.GenerateChannelID()
	request := &pendingConnect{remoteID: remoteID, reply: make(chan connectResult, 1)}

	that.mu.Lock()
	if that.closed {
		that.mu.Unlock()
		return nil, apperror.ErrTransportClosed
	}
	if that.conn == nil {
		that.mu.Unlock()
		return nil, fmt.Errorf("%w: transport is not open", apperror.ErrConnectionFailed)
	}
	that.pending[channelID] = request
	that.mu.Unlock()

	if err := that.write(broker.Frame{Type: broker.FrameConnect, Dst: remoteID, Channel: channelID}); err != nil {
		if conn := that.dropPending(channelID, request); conn != nil {
			_ = conn.Close()
		}
		return nil, err
	}

	select {
	case result := <-request.reply:
		if result.err != nil {
			return nil, result.err
		}
		return result.conn, nil
	case <-ctx.Done():
		if conn := that.dropPending(channelID, request); conn != nil {
			_ = conn.Close()
		}
		return nil, fmt.Errorf("%w: %w", apperror.ErrConnectTimeout, ctx.Err())
	}
}

func (that *Transport) OnIncomingConnection(handler func(ch peer.Channel)) {
	that.incoming.Add(handler)
}

// Close - the broker closes the far side of every channel when the socket drops.
func (that *Transport) Close() error {
	that.shutdown()
	return nil
}

func (that *Transport) readLoop(conn *websocket.Conn) {
	log := that.logger.With("method", "readLoop")

	defer that.shutdown()

	for {
		var frame broker.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("broker connection lost", "error", err)
			}
			return
		}

		switch frame.Type {
		case broker.FrameConnect:
			ch := that.newConn(frame.Channel, frame.Src)
			if ch == nil {
				continue
			}
			go that.incoming.Notify(ch)
		case broker.FrameConnected:
			that.completeConnect(frame.Channel)
		case broker.FrameError:
			that.failConnect(frame)
		case broker.FrameData:
			that.deliver(frame)
		case broker.FrameClose:
			that.mu.Lock()
			ch := that.channels[frame.Channel]
			delete(that.channels, frame.Channel)
			that.mu.Unlock()

			if ch != nil {
				ch.Shutdown()
			}
		default:
			log.Warn("unknown frame", "type", frame.Type)
		}
	}
}

func (that *Transport) completeConnect(channelID string) {
	that.mu.Lock()
	request, ok := that.pending[channelID]
	delete(that.pending, channelID)
	that.mu.Unlock()

	if !ok {
		// the caller gave up; tell the other side
		_ = that.write(broker.Frame{Type: broker.FrameClose, Channel: channelID})
		return
	}

	ch := that.newConn(channelID, request.remoteID)
	if ch == nil {
		request.reply <- connectResult{err: apperror.ErrTransportClosed}
		return
	}

	request.reply <- connectResult{conn: ch}
}

func (that *Transport) failConnect(frame broker.Frame) {
	that.mu.Lock()
	request, ok := that.pending[frame.Channel]
	delete(that.pending, frame.Channel)
	that.mu.Unlock()

	if !ok {
		that.logger.Warn("broker error", "kind", frame.Kind, "channel", frame.Channel)
		return
	}

	if frame.Kind == broker.KindPeerUnavailable {
		request.reply <- connectResult{err: fmt.Errorf("%w: %s", apperror.ErrPeerUnavailable, request.remoteID)}
		return
	}

	request.reply <- connectResult{err: fmt.Errorf("%w: broker error %s", apperror.ErrConnectionFailed, frame.Kind)}
}

func (that *Transport) deliver(frame broker.Frame) {
	that.mu.Lock()
	ch := that.channels[frame.Channel]
	that.mu.Unlock()

	if ch == nil {
		return
	}

	msg, err := protocol.Decode(frame.Payload)
	if err != nil {
		that.logger.Warn("dropping undecodable message", "channel", frame.Channel, "error", err)
		return
	}

	ch.Deliver(msg)
}

func (that *Transport) newConn(channelID, remoteID string) *peer.Conn {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return nil
	}

	send := func(msg protocol.Message) error {
		payload, err := protocol.Encode(msg)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", msg.MessageType(), err)
		}
		return that.write(broker.Frame{Type: broker.FrameData, Channel: channelID, Payload: payload})
	}

	hangup := func() {
		that.mu.Lock()
		delete(that.channels, channelID)
		that.mu.Unlock()

		_ = that.write(broker.Frame{Type: broker.FrameClose, Channel: channelID})
	}

	ch := peer.NewConn(that.id, remoteID, send, hangup)
	that.channels[channelID] = ch

	return ch
}

// dropPending - returns the channel if the connect completed while the
// caller was giving up. Whoever removes a pending request replies exactly once.
func (that *Transport) dropPending(channelID string, request *pendingConnect) *peer.Conn {
	that.mu.Lock()
	_, ok := that.pending[channelID]
	delete(that.pending, channelID)
	that.mu.Unlock()

	if ok {
		return nil
	}

	result := <-request.reply
	return result.conn
}

func (that *Transport) write(frame broker.Frame) error {
	that.mu.Lock()
	conn := that.conn
	that.mu.Unlock()

	if conn == nil {
		return apperror.ErrTransportClosed
	}

	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("%w: %w", apperror.ErrConnectionFailed, err)
	}

	return nil
}

func (that *Transport) shutdown() {
	that.mu.Lock()
	if that.closed {
		that.mu.Unlock()
		return
	}
	that.closed = true
	conn := that.conn
	channels := that.channels
	pending := that.pending
	that.channels = make(map[string]*peer.Conn)
	that.pending = make(map[string]*pendingConnect)
	that.mu.Unlock()

	for _, ch := range channels {
		ch.Shutdown()
	}

	for _, request := range pending {
		request.reply <- connectResult{err: apperror.ErrTransportClosed}
	}

	if conn != nil {
		that.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		that.writeMu.Unlock()
		_ = conn.Close()
	}
}

// readFirst - the broker answers a registration with open or error.
func readFirst(ctx context.Context, conn *websocket.Conn) (broker.Frame, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}
	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
		close(fired)
	})

	_, data, err := conn.ReadMessage()

	if !stop() {
		<-fired
	}

	if err != nil {
		return broker.Frame{}, err
	}

	_ = conn.SetReadDeadline(time.Time{})

	var frame broker.Frame
	if err = json.Unmarshal(data, &frame); err != nil {
		return broker.Frame{}, fmt.Errorf("invalid frame: %w", err)
	}

	return frame, nil
}

func classify(ctx context.Context, err error) error {
	var netErr net.Error
	if ctx.Err() != nil || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %w", apperror.ErrConnectTimeout, err)
	}
	return fmt.Errorf("%w: %w", apperror.ErrConnectionFailed, err)
}
