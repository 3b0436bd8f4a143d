package wsnet

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/arcade-sync/internal/apperror"
	"github.com/rocketscienceinc/arcade-sync/internal/broker"
	"github.com/rocketscienceinc/arcade-sync/internal/peer"
	"github.com/rocketscienceinc/arcade-sync/internal/protocol"
	"github.com/rocketscienceinc/arcade-sync/internal/repository"
	"github.com/rocketscienceinc/arcade-sync/internal/usecase"
	relay "github.com/rocketscienceinc/arcade-sync/transport/websocket"
)

const wait = 2 * time.Second

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startBroker - a real broker endpoint behind httptest.
func startBroker(t *testing.T) string {
	t.Helper()

	logger := testLogger()
	rooms := usecase.NewRoomManager(logger, repository.NewMemoryRoomRepository(), usecase.RoomManagerOptions{})
	server := relay.New(logger, rooms, broker.NewHub(logger), relay.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	httpServer := httptest.NewServer(server.Router(ctx))
	t.Cleanup(func() {
		cancel()
		httpServer.Close()
	})

	return "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/peer"
}

func open(t *testing.T, brokerURL, hint string) *Transport {
	t.Helper()

	tr := New(testLogger(), brokerURL)
	t.Cleanup(func() { _ = tr.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()

	_, err := tr.Open(ctx, hint)
	require.NoError(t, err)

	return tr
}

func receive(t *testing.T, ch <-chan protocol.Message) protocol.Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(wait):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestTransport_Open(t *testing.T) {
	t.Run("Taken identity", func(t *testing.T) {
		// Given: a broker where srinath-ox-1234 is held
		brokerURL := startBroker(t)
		open(t, brokerURL, "srinath-ox-1234")

		tr := New(testLogger(), brokerURL)
		t.Cleanup(func() { _ = tr.Close() })

		// When: another transport claims it
		_, err := tr.Open(context.Background(), "srinath-ox-1234")

		// Then: the collision is reported and the transport can retry with another id
		require.ErrorIs(t, err, apperror.ErrIdentityTaken)

		id, err := tr.Open(context.Background(), "srinath-ox-5678")
		require.NoError(t, err)
		assert.Equal(t, "srinath-ox-5678", id)
	})

	t.Run("Unreachable broker", func(t *testing.T) {
		tr := New(testLogger(), "ws://127.0.0.1:1/peer")

		_, err := tr.Open(context.Background(), "")

		require.ErrorIs(t, err, apperror.ErrConnectionFailed)
	})
}

func TestTransport_ConnectTo(t *testing.T) {
	ctx := context.Background()

	t.Run("Messages flow through the broker", func(t *testing.T) {
		// Given: a host and a joiner on the same broker
		brokerURL := startBroker(t)
		host := open(t, brokerURL, "srinath-dino-4321")

		received := make(chan protocol.Message, 4)
		remoteIDs := make(chan string, 1)
		host.OnIncomingConnection(func(ch peer.Channel) {
			remoteIDs <- ch.RemoteID()
			ch.OnMessage(func(msg protocol.Message) {
				received <- msg
				_ = ch.Send(protocol.Start{})
			})
		})

		joiner := open(t, brokerURL, "")

		// When: the joiner connects and sends a join and an update
		ch, err := joiner.ConnectTo(ctx, "srinath-dino-4321")
		require.NoError(t, err)

		replies := make(chan protocol.Message, 4)
		ch.OnMessage(func(msg protocol.Message) { replies <- msg })

		require.NoError(t, ch.Send(protocol.Join{Name: "Ann", Color: "#ff0000", ID: ch.LocalID()}))
		require.NoError(t, ch.Send(protocol.Update{ID: ch.LocalID(), Score: 12, Alive: true}))

		// Then: the host sees both in order and answers
		assert.Equal(t, protocol.Join{Name: "Ann", Color: "#ff0000", ID: ch.LocalID()}, receive(t, received))
		assert.Equal(t, protocol.Update{ID: ch.LocalID(), Score: 12, Alive: true}, receive(t, received))
		assert.Equal(t, protocol.Start{}, receive(t, replies))
		assert.Equal(t, ch.LocalID(), <-remoteIDs)
	})

	t.Run("Unknown peer", func(t *testing.T) {
		brokerURL := startBroker(t)
		joiner := open(t, brokerURL, "")

		_, err := joiner.ConnectTo(ctx, "srinath-ox-0000")

		require.ErrorIs(t, err, apperror.ErrPeerUnavailable)
	})

	t.Run("Host leaving closes the joiner's channel", func(t *testing.T) {
		brokerURL := startBroker(t)
		host := open(t, brokerURL, "host")
		joiner := open(t, brokerURL, "")

		ch, err := joiner.ConnectTo(ctx, "host")
		require.NoError(t, err)

		closed := make(chan struct{})
		ch.OnClose(func() { close(closed) })

		// When: the host transport closes
		require.NoError(t, host.Close())

		// Then: the joiner is notified and can no longer send
		select {
		case <-closed:
		case <-time.After(wait):
			t.Fatal("joiner was not notified")
		}
		assert.ErrorIs(t, ch.Send(protocol.Start{}), apperror.ErrChannelClosed)
	})
}
