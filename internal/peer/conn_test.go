package peer

import (
	"sync"
	"testing"
	"time"

	"github.com/rocketscienceinc/arcade-sync/internal/apperror"
	"github.com/rocketscienceinc/arcade-sync/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu       sync.Mutex
	messages []protocol.Message
	closed   chan struct{}
}

func newRecorder(conn *Conn) *recorder {
	rec := &recorder{closed: make(chan struct{})}
	conn.OnMessage(func(msg protocol.Message) {
		rec.mu.Lock()
		rec.messages = append(rec.messages, msg)
		rec.mu.Unlock()
	})
	conn.OnClose(func() { close(rec.closed) })
	return rec
}

func (that *recorder) waitClosed(t *testing.T) {
	t.Helper()
	select {
	case <-that.closed:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for close")
	}
}

func TestConn_QueuesUntilSubscribed(t *testing.T) {
	// Given: a conn that receives messages before anyone listens
	conn := NewConn("a", "b", func(protocol.Message) error { return nil }, nil)
	conn.Deliver(protocol.Name{Name: "first"})
	conn.Deliver(protocol.Name{Name: "second"})
	conn.Shutdown()

	// When: a handler subscribes
	rec := newRecorder(conn)
	rec.waitClosed(t)

	// Then: queued messages arrive in order before the close
	assert.Equal(t, []protocol.Message{
		protocol.Name{Name: "first"},
		protocol.Name{Name: "second"},
	}, rec.messages)
}

func TestConn_SendAfterClose(t *testing.T) {
	hangups := 0
	conn := NewConn("a", "b", func(protocol.Message) error { return nil }, func() { hangups++ })

	require.NoError(t, conn.Send(protocol.Start{}))
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	err := conn.Send(protocol.Start{})

	require.ErrorIs(t, err, apperror.ErrChannelClosed)
	assert.Equal(t, 1, hangups)
}

func TestConn_DeliverAfterCloseIsDropped(t *testing.T) {
	conn := NewConn("a", "b", func(protocol.Message) error { return nil }, nil)
	rec := newRecorder(conn)

	conn.Shutdown()
	conn.Deliver(protocol.Start{})
	rec.waitClosed(t)

	assert.Empty(t, rec.messages)
}

func TestConn_LateCloseHandlerRunsImmediately(t *testing.T) {
	conn := NewConn("a", "b", func(protocol.Message) error { return nil }, nil)
	rec := newRecorder(conn)
	conn.Shutdown()
	rec.waitClosed(t)

	called := false
	conn.OnClose(func() { called = true })

	assert.True(t, called)
}
