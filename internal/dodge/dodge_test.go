package dodge

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/arcade-sync/internal/apperror"
	"github.com/rocketscienceinc/arcade-sync/internal/peer"
	"github.com/rocketscienceinc/arcade-sync/internal/peer/memnet"
	"github.com/rocketscienceinc/arcade-sync/internal/protocol"
	"github.com/rocketscienceinc/arcade-sync/internal/session"
)

const wait = 2 * time.Second

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recorder struct {
	events chan Event
}

func newRecorder() *recorder {
	return &recorder{events: make(chan Event, 256)}
}

func (that *recorder) record(event Event) {
	that.events <- event
}

func (that *recorder) waitUntil(t *testing.T, what string, match func(event Event) bool) Event {
	t.Helper()

	timeout := time.After(wait)
	for {
		select {
		case event := <-that.events:
			if match(event) {
				return event
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", what)
			return Event{}
		}
	}
}

func (that *recorder) waitFor(t *testing.T, kind EventKind) Event {
	t.Helper()

	return that.waitUntil(t, string(kind), func(event Event) bool { return event.Kind == kind })
}

// waitForRows - the first snapshot with the given number of rows.
func (that *recorder) waitForRows(t *testing.T, count int) []Row {
	t.Helper()

	return that.waitUntil(t, "snapshot", func(event Event) bool {
		return event.Kind == EventSnapshotUpdated && len(event.Rows) == count
	}).Rows
}

func (that *recorder) waitForScore(t *testing.T, name string, score int) []Row {
	t.Helper()

	return that.waitUntil(t, name+" score", func(event Event) bool {
		if event.Kind != EventSnapshotUpdated {
			return false
		}
		row, ok := findRow(event.Rows, name)
		return ok && row.Score == score
	}).Rows
}

func findRow(rows []Row, name string) (Row, bool) {
	for _, row := range rows {
		if row.Name == name {
			return row, true
		}
	}
	return Row{}, false
}

type star struct {
	t          *testing.T
	network    *memnet.Network
	host       *Host
	hostEvents *recorder
}

func newStar(t *testing.T) *star {
	t.Helper()

	network := memnet.NewNetwork()
	sess, err := session.Host(context.Background(), network.NewTransport(), session.Options{
		Prefix:       session.PrefixDino,
		GenerateCode: func() string { return "4321" },
		Logger:       testLogger(),
	})
	require.NoError(t, err)

	host := NewHost(context.Background(), testLogger(), sess.SelfID, "Hana", "red")
	hostEvents := newRecorder()
	host.Subscribe(hostEvents.record)
	sess.OnIncomingConnection(host.Accept)

	t.Cleanup(func() {
		_ = host.Close()
		_ = sess.Close()
	})

	return &star{t: t, network: network, host: host, hostEvents: hostEvents}
}

func (that *star) connect() peer.Channel {
	that.t.Helper()

	_, ch, err := session.Join(context.Background(), that.network.NewTransport(), session.Options{
		Prefix: session.PrefixDino,
		Logger: testLogger(),
	}, "4321")
	require.NoError(that.t, err)

	return ch
}

// join - a started joiner whose entry the host has already added.
func (that *star) join(name, color string) (*Joiner, *recorder) {
	that.t.Helper()

	before := len(that.host.Snapshot())

	joiner := NewJoiner(testLogger(), that.connect(), name, color)
	events := newRecorder()
	joiner.Subscribe(events.record)
	require.NoError(that.t, joiner.Start())

	that.hostEvents.waitForRows(that.t, before+1)
	events.waitForRows(that.t, before+1)

	return joiner, events
}

func TestRank(t *testing.T) {
	t.Run("Score descending among the living", func(t *testing.T) {
		players := map[string]protocol.PlayerState{
			"a": {Name: "A", Score: 50, Alive: true},
			"c": {Name: "C", Score: 30, Alive: true},
			"b": {Name: "B", Score: 90, Alive: true},
		}

		rows := Rank(players)

		require.Len(t, rows, 3)
		assert.Equal(t, []string{"B", "A", "C"}, []string{rows[0].Name, rows[1].Name, rows[2].Name})
	})

	t.Run("A dead leader ranks below every runner", func(t *testing.T) {
		players := map[string]protocol.PlayerState{
			"a": {Name: "A", Score: 50, Alive: true},
			"b": {Name: "B", Score: 90, Alive: false},
			"c": {Name: "C", Score: 30, Alive: true},
		}

		rows := Rank(players)

		require.Len(t, rows, 3)
		assert.Equal(t, []string{"A", "C", "B"}, []string{rows[0].Name, rows[1].Name, rows[2].Name})
	})

	t.Run("Dead players sink below the living", func(t *testing.T) {
		players := map[string]protocol.PlayerState{
			"a": {Name: "A", Score: 500, Alive: false},
			"b": {Name: "B", Score: 10, Alive: true},
		}

		rows := Rank(players)

		assert.Equal(t, "B", rows[0].Name)
		assert.Equal(t, "A", rows[1].Name)
	})

	t.Run("Ties break on name and then id", func(t *testing.T) {
		players := map[string]protocol.PlayerState{
			"id-2": {Name: "Zed", Score: 10, Alive: true},
			"id-3": {Name: "Amy", Score: 10, Alive: true},
			"id-1": {Name: "Zed", Score: 10, Alive: true},
		}

		for i := 0; i < 10; i++ {
			rows := Rank(players)

			assert.Equal(t, []string{"id-3", "id-1", "id-2"}, []string{rows[0].ID, rows[1].ID, rows[2].ID})
		}
	})
}

func TestHost_Rebroadcast(t *testing.T) {
	t.Run("Join adds an entry everyone sees", func(t *testing.T) {
		// Given: a host
		s := newStar(t)

		// When: a joiner arrives
		joiner, _ := s.join("Jo", "blue")

		// Then: both replicas hold both players
		rows := joiner.Snapshot()
		require.Len(t, rows, 2)
		jo, ok := findRow(rows, "Jo")
		require.True(t, ok)
		assert.Equal(t, "blue", jo.Color)
		assert.True(t, jo.Alive)
		assert.ElementsMatch(t, rows, s.host.Snapshot())
	})

	t.Run("Joiner update reaches every joiner", func(t *testing.T) {
		// Given: two joiners
		s := newStar(t)
		jo, _ := s.join("Jo", "blue")
		_, kimEvents := s.join("Kim", "green")

		// When: one of them reports progress
		require.NoError(t, jo.ReportLocalUpdate(42, true))

		// Then: the host and the other joiner see it
		s.hostEvents.waitForScore(t, "Jo", 42)
		rows := kimEvents.waitForScore(t, "Jo", 42)
		assert.Equal(t, "Jo", rows[0].Name)
	})

	t.Run("Host update reaches joiners", func(t *testing.T) {
		s := newStar(t)
		_, joEvents := s.join("Jo", "blue")

		require.NoError(t, s.host.ReportLocalUpdate(100, true))

		rows := joEvents.waitForScore(t, "Hana", 100)
		assert.Equal(t, "Hana", rows[0].Name)
	})

	t.Run("Death ranks a player last", func(t *testing.T) {
		s := newStar(t)
		jo, joEvents := s.join("Jo", "blue")
		require.NoError(t, jo.ReportLocalUpdate(300, true))
		joEvents.waitForScore(t, "Jo", 300)

		require.NoError(t, jo.ReportLocalUpdate(310, false))

		rows := joEvents.waitForScore(t, "Jo", 310)
		assert.Equal(t, "Hana", rows[0].Name)
		assert.False(t, rows[1].Alive)
	})
}

func TestHost_Identity(t *testing.T) {
	t.Run("Update before join is ignored", func(t *testing.T) {
		// Given: a raw channel that skips the join
		s := newStar(t)
		ch := s.connect()

		// When: it reports a score and only then joins
		require.NoError(t, ch.Send(protocol.Update{ID: ch.LocalID(), Score: 999, Alive: true}))
		require.NoError(t, ch.Send(protocol.Join{Name: "Late", Color: "pink", ID: ch.LocalID()}))

		// Then: the entry starts from zero
		rows := s.hostEvents.waitForRows(t, 2)
		late, ok := findRow(rows, "Late")
		require.True(t, ok)
		assert.Equal(t, 0, late.Score)
	})

	t.Run("Channel identity wins over the claimed id", func(t *testing.T) {
		s := newStar(t)
		ch := s.connect()

		require.NoError(t, ch.Send(protocol.Join{Name: "Mallory", ID: "someone-else"}))

		rows := s.hostEvents.waitForRows(t, 2)
		mallory, ok := findRow(rows, "Mallory")
		require.True(t, ok)
		assert.Equal(t, ch.LocalID(), mallory.ID)
	})
}

func TestHost_Leave(t *testing.T) {
	// Given: two joiners
	s := newStar(t)
	jo, _ := s.join("Jo", "blue")
	_, kimEvents := s.join("Kim", "green")

	// When: one leaves
	require.NoError(t, jo.Leave())

	// Then: the others drop its entry
	rows := kimEvents.waitForRows(t, 2)
	_, ok := findRow(rows, "Jo")
	assert.False(t, ok)

	s.hostEvents.waitForRows(t, 2)
	assert.Len(t, s.host.Players(), 2)
}

func TestHost_Players(t *testing.T) {
	s := newStar(t)
	s.join("Jo", "blue")
	s.join("Kim", "green")

	players := s.host.Players()

	require.Len(t, players, 3)
	assert.Equal(t, []string{"Hana", "Jo", "Kim"}, []string{players[0].Name, players[1].Name, players[2].Name})
}

func TestHost_Start(t *testing.T) {
	// Given: a finished round where everyone scored and died
	s := newStar(t)
	jo, joEvents := s.join("Jo", "blue")
	require.NoError(t, jo.ReportLocalUpdate(70, false))
	require.NoError(t, s.host.ReportLocalUpdate(80, false))
	s.hostEvents.waitUntil(t, "both deaths", func(event Event) bool {
		hana, _ := findRow(event.Rows, "Hana")
		jo, _ := findRow(event.Rows, "Jo")
		return hana.Score == 80 && jo.Score == 70
	})

	// When: the host starts a new round
	require.NoError(t, s.host.Start())

	// Then: joiners are told to start and every entry is reset
	joEvents.waitFor(t, EventStarted)
	rows := joEvents.waitFor(t, EventSnapshotUpdated).Rows
	for _, row := range rows {
		assert.Equal(t, 0, row.Score)
		assert.True(t, row.Alive)
	}
}

func TestHost_RematchRequest(t *testing.T) {
	// Given: two joiners
	s := newStar(t)
	jo, joEvents := s.join("Jo", "blue")
	_, kimEvents := s.join("Kim", "green")

	// When: one asks for a rematch
	require.NoError(t, jo.RequestRematch())

	// Then: the host and the other joiner are notified, the requester is not
	assert.Equal(t, "Jo", s.hostEvents.waitFor(t, EventRematchRequested).Name)
	assert.Equal(t, "Jo", kimEvents.waitFor(t, EventRematchRequested).Name)

	// a later snapshot proves the requester's queue holds nothing before it
	require.NoError(t, s.host.ReportLocalUpdate(5, true))
	joEvents.waitUntil(t, "no notification", func(event Event) bool {
		require.NotEqual(t, EventRematchRequested, event.Kind)
		row, ok := findRow(event.Rows, "Hana")
		return ok && row.Score == 5
	})
}

func TestJoiner_SessionEnded(t *testing.T) {
	t.Run("Host loss", func(t *testing.T) {
		// Given: a joiner in a running session
		s := newStar(t)
		jo, joEvents := s.join("Jo", "blue")

		// When: the host goes away
		require.NoError(t, s.host.Close())

		// Then: the joiner's session ends with a disconnect
		ended := joEvents.waitFor(t, EventSessionEnded)
		require.ErrorIs(t, ended.Err, apperror.ErrPeerDisconnected)
		require.ErrorIs(t, jo.ReportLocalUpdate(1, true), apperror.ErrChannelClosed)
	})

	t.Run("Leaving on purpose", func(t *testing.T) {
		s := newStar(t)
		jo, joEvents := s.join("Jo", "blue")

		require.NoError(t, jo.Leave())

		ended := joEvents.waitFor(t, EventSessionEnded)
		assert.NoError(t, ended.Err)
	})

	t.Run("Closed host refuses updates", func(t *testing.T) {
		s := newStar(t)
		require.NoError(t, s.host.Close())

		require.ErrorIs(t, s.host.ReportLocalUpdate(1, true), apperror.ErrSessionClosed)
		require.ErrorIs(t, s.host.Start(), apperror.ErrSessionClosed)
	})
}

type countingSync struct {
	updates []protocol.Update
}

func (that *countingSync) ReportLocalUpdate(score int, alive bool) error {
	that.updates = append(that.updates, protocol.Update{Score: score, Alive: alive})
	return nil
}

func (that *countingSync) Subscribe(func(event Event)) {}

func (that *countingSync) Snapshot() []Row { return nil }

func TestThrottle(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	newThrottle := func(now *time.Time) *Throttle {
		throttle := NewThrottle(DefaultUpdateInterval)
		throttle.now = func() time.Time { return *now }
		return throttle
	}

	t.Run("Periodic updates are spaced by the interval", func(t *testing.T) {
		now := start
		throttle := newThrottle(&now)

		assert.True(t, throttle.Allow(true))

		now = start.Add(100 * time.Millisecond)
		assert.False(t, throttle.Allow(true))

		now = start.Add(150 * time.Millisecond)
		assert.True(t, throttle.Allow(true))
	})

	t.Run("Death always passes", func(t *testing.T) {
		// Given: an update that was just sent
		now := start
		throttle := newThrottle(&now)
		target := &countingSync{}
		require.NoError(t, throttle.Report(target, 10, true))

		// When: the player dies right after
		now = start.Add(time.Millisecond)
		require.NoError(t, throttle.Report(target, 11, true))
		require.NoError(t, throttle.Report(target, 12, false))

		// Then: the death goes out, the periodic update in between does not
		assert.Equal(t, []protocol.Update{{Score: 10, Alive: true}, {Score: 12, Alive: false}}, target.updates)
	})

	t.Run("Reset lets the next update through", func(t *testing.T) {
		now := start
		throttle := newThrottle(&now)
		require.True(t, throttle.Allow(false))

		throttle.Reset()

		assert.True(t, throttle.Allow(true))
	})
}
