package player

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/globetrotter/rooms"
	"github.com/Seednode/globetrotter/wire"
)

type hubServer struct {
	manager *rooms.Manager
	url     string

	mu    sync.Mutex
	conns []*websocket.Conn
}

// dropAll closes the server end of every websocket accepted so far.
func (hs *hubServer) dropAll() {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	for _, ws := range hs.conns {
		_ = ws.Close()
	}
	hs.conns = nil
}

func newHubServer(t *testing.T) *hubServer {
	t.Helper()

	m := rooms.NewManager(rooms.NewScoreStore(rooms.NewRegistry()), rooms.Options{})
	t.Cleanup(m.Close)

	hs := &hubServer{manager: m}

	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		hs.mu.Lock()
		hs.conns = append(hs.conns, ws)
		hs.mu.Unlock()

		m.Serve(ws, r.RemoteAddr)
	}))
	t.Cleanup(ts.Close)

	hs.url = "ws" + strings.TrimPrefix(ts.URL, "http")

	return hs
}

// recorder collects messages delivered to a session handler.
type recorder struct {
	mu   sync.Mutex
	msgs []wire.Message
}

func (r *recorder) handle(msg wire.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recorder) has(want wire.Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, msg := range r.msgs {
		if assert.ObjectsAreEqual(want, msg) {
			return true
		}
	}
	return false
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func connected(t *testing.T, url string) *Session {
	t.Helper()

	s := NewSession(url, nil)
	t.Cleanup(s.Disconnect)

	require.NoError(t, s.Connect(context.Background()))
	require.Eventually(t, func() bool { return s.State() == Connected }, 5*time.Second, 5*time.Millisecond)

	return s
}

func TestSession_ConnectDoesNotBlock(t *testing.T) {
	// nothing listens here; Connect must still return at once
	s := NewSession("ws://127.0.0.1:1/ws", nil)
	defer s.Disconnect()

	start := time.Now()
	require.NoError(t, s.Connect(context.Background()))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, Connecting, s.State())

	// the join is recorded and sent once a transport comes up
	require.NoError(t, s.JoinRoom("alice", "R1"))
	assert.Equal(t, Connecting, s.State())
	assert.Equal(t, "R1", s.Room())
}

func TestSession_JoinBeforeConnect(t *testing.T) {
	s := NewSession("ws://127.0.0.1:1/ws", nil)
	defer s.Disconnect()

	assert.ErrorIs(t, s.JoinRoom("alice", "R1"), ErrNotConnected)
	assert.ErrorIs(t, s.LeaveRoom(), ErrNotJoined)
	assert.Equal(t, "", s.Room())
}

func TestSession_StateTransitions(t *testing.T) {
	hs := newHubServer(t)
	s := connected(t, hs.url)

	assert.ErrorIs(t, s.LeaveRoom(), ErrNotJoined)
	assert.ErrorIs(t, s.SendScore(wire.ZeroScore("alice")), ErrNotJoined)

	require.NoError(t, s.JoinRoom("alice", "R1"))
	assert.Equal(t, Joined, s.State())
	assert.Equal(t, "R1", s.Room())

	require.NoError(t, s.LeaveRoom())
	assert.Equal(t, Idle, s.State())

	require.NoError(t, s.JoinRoom("alice", "R2"))
	assert.Equal(t, Joined, s.State())

	s.Disconnect()
	s.Disconnect()
	assert.Equal(t, Closed, s.State())
	assert.ErrorIs(t, s.Connect(context.Background()), ErrClosed)
	assert.ErrorIs(t, s.JoinRoom("alice", "R1"), ErrClosed)
}

func TestSession_DisconnectBeforeConnect(t *testing.T) {
	s := NewSession("ws://127.0.0.1:1/ws", nil)

	s.Disconnect()

	assert.Equal(t, Closed, s.State())
}

func TestSession_ReceivesRoomTraffic(t *testing.T) {
	hs := newHubServer(t)
	alice := connected(t, hs.url)
	bob := connected(t, hs.url)

	var aliceGot, bobGot recorder
	alice.OnMessage(aliceGot.handle)
	bob.OnMessage(bobGot.handle)

	require.NoError(t, alice.JoinRoom("alice", "R1"))
	require.Eventually(t, func() bool {
		return aliceGot.has(wire.RoomData{RoomID: "R1", Participants: []wire.PlayerScore{wire.ZeroScore("alice")}})
	}, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, bob.JoinRoom("bob", "R1"))
	require.Eventually(t, func() bool {
		return aliceGot.has(wire.JoinRoom{RoomID: "R1", Username: "bob"})
	}, 5*time.Second, 5*time.Millisecond)

	update := wire.PlayerScore{Username: "bob", Correct: 1, Total: 1}
	require.NoError(t, bob.SendScore(update))
	require.Eventually(t, func() bool {
		return aliceGot.has(wire.ScoreUpdate{RoomID: "R1", Score: update})
	}, 5*time.Second, 5*time.Millisecond)

	assert.False(t, bobGot.has(wire.ScoreUpdate{RoomID: "R1", Score: update}), "origin does not get its own update")
}

func TestSession_UnsubscribeStopsDelivery(t *testing.T) {
	hs := newHubServer(t)
	s := connected(t, hs.url)

	var kept, dropped recorder
	s.OnMessage(kept.handle)
	unsubscribe := s.OnMessage(dropped.handle)

	unsubscribe()
	unsubscribe()

	require.NoError(t, s.JoinRoom("alice", "R1"))
	require.Eventually(t, func() bool { return kept.len() == 1 }, 5*time.Second, 5*time.Millisecond)
	assert.Zero(t, dropped.len())
}

func TestSession_DisconnectIsImplicitLeave(t *testing.T) {
	hs := newHubServer(t)
	alice := connected(t, hs.url)
	bob := connected(t, hs.url)

	var bobGot recorder
	bob.OnMessage(bobGot.handle)

	require.NoError(t, alice.JoinRoom("alice", "R1"))
	require.NoError(t, bob.JoinRoom("bob", "R1"))
	require.Eventually(t, func() bool {
		return len(hs.manager.Registry().Members("R1")) == 2
	}, 5*time.Second, 5*time.Millisecond)

	alice.Disconnect()

	require.Eventually(t, func() bool {
		return bobGot.has(wire.LeaveRoom{RoomID: "R1", Username: "alice"})
	}, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, []wire.PlayerScore{wire.ZeroScore("bob")}, hs.manager.Store().Room("R1"))
}

func TestSession_RejoinsAfterTransportLoss(t *testing.T) {
	hs := newHubServer(t)
	s := connected(t, hs.url)

	var states []State
	var mu sync.Mutex
	s.OnState(func(st State) {
		mu.Lock()
		states = append(states, st)
		mu.Unlock()
	})

	require.NoError(t, s.JoinRoom("alice", "R1"))
	require.Eventually(t, func() bool {
		return len(hs.manager.Registry().Members("R1")) == 1
	}, 5*time.Second, 5*time.Millisecond)

	hs.dropAll()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) >= 2 && states[len(states)-1] == Joined && s.State() == Joined
	}, 10*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"alice"}, hs.manager.Registry().Members("R1"))
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Contains(t, states, Connecting)
	mu.Unlock()
}

// whileRedialing runs fn once, from inside the next Connecting transition
// after the transport is dropped, and returns its error.
func whileRedialing(t *testing.T, hs *hubServer, s *Session, fn func() error) error {
	t.Helper()

	var armed atomic.Bool
	result := make(chan error, 1)
	s.OnState(func(st State) {
		if st == Connecting && armed.CompareAndSwap(true, false) {
			result <- fn()
		}
	})

	armed.Store(true)
	hs.dropAll()

	select {
	case err := <-result:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("session never went back to connecting")
		return nil
	}
}

func TestSession_LeaveWhileRedialing(t *testing.T) {
	hs := newHubServer(t)
	s := connected(t, hs.url)

	require.NoError(t, s.JoinRoom("alice", "R1"))
	require.Eventually(t, func() bool {
		return len(hs.manager.Registry().Members("R1")) == 1
	}, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, whileRedialing(t, hs, s, s.LeaveRoom))
	assert.Equal(t, "", s.Room())

	require.Eventually(t, func() bool { return s.State() == Connected }, 10*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return len(hs.manager.Registry().Members("R1")) == 0
	}, 5*time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool {
		return len(hs.manager.Registry().Members("R1")) != 0
	}, 300*time.Millisecond, 20*time.Millisecond, "a left room is not rejoined")

	assert.ErrorIs(t, s.LeaveRoom(), ErrNotJoined)
	assert.ErrorIs(t, s.SendScore(wire.ZeroScore("alice")), ErrNotJoined)
}

func TestSession_JoinWhileRedialing(t *testing.T) {
	hs := newHubServer(t)
	s := connected(t, hs.url)

	require.NoError(t, s.JoinRoom("alice", "R1"))
	require.Eventually(t, func() bool {
		return len(hs.manager.Registry().Members("R1")) == 1
	}, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, whileRedialing(t, hs, s, func() error {
		return s.JoinRoom("alice", "R2")
	}))
	assert.Equal(t, "R2", s.Room())

	require.Eventually(t, func() bool { return s.State() == Joined }, 10*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"alice"}, hs.manager.Registry().Members("R2"))
	}, 5*time.Second, 10*time.Millisecond)
	assert.Empty(t, hs.manager.Registry().Members("R1"))
}
