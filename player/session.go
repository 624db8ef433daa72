/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package player is the client side of a room: the websocket session, the
// leaderboard reconciler fed by push and poll, and the invite challenge.
package player

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Seednode/globetrotter/wire"
)

const (
	writeWait  = 10 * time.Second
	minBackoff = 250 * time.Millisecond
	maxBackoff = 10 * time.Second
)

var (
	ErrClosed       = errors.New("session closed")
	ErrNotConnected = errors.New("session not connected")
	ErrNotJoined    = errors.New("session has not joined a room")
)

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Joined
	Idle
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Joined:
		return "joined"
	case Idle:
		return "idle"
	case Closed:
		return "closed"
	}

	return "unknown"
}

type handler struct {
	id uint64
	fn func(wire.Message)
}

// Session is one client's connection to the hub. Transport failures are
// absorbed here: the session redials with backoff and rejoins its room,
// and callers only ever see the state change.
type Session struct {
	url    string
	dialer *websocket.Dialer
	logf   func(format string, args ...any)

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	username string
	room     string
	cancel   context.CancelFunc

	writeMu sync.Mutex

	handlersMu    sync.RWMutex
	handlers      []handler
	stateHandlers []func(State)
	nextID        uint64
}

// NewSession prepares a session for the websocket at url. Nothing is
// dialed until Connect.
func NewSession(url string, logf func(format string, args ...any)) *Session {
	if logf == nil {
		logf = func(string, ...any) {}
	}

	return &Session{
		url:    url,
		dialer: websocket.DefaultDialer,
		logf:   logf,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Room is the room this session is joined to, if any.
func (s *Session) Room() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.room
}

// Connect starts dialing in the background and returns immediately.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case Closed:
		s.mu.Unlock()
		return ErrClosed
	case Disconnected:
	default:
		s.mu.Unlock()
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = Connecting
	s.mu.Unlock()

	s.notifyState(Connecting)

	go s.run(ctx)

	return nil
}

func (s *Session) run(ctx context.Context) {
	backoff := minBackoff

	for {
		conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			s.logf("SESSION: dial %s failed, retrying in %s: %v", s.url, backoff, err)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}

			backoff = min(backoff*2, maxBackoff)
			continue
		}

		backoff = minBackoff

		if !s.attach(conn) {
			return
		}

		s.read(conn)

		if !s.detach(conn) {
			return
		}
	}
}

// attach installs a freshly dialed transport and rejoins the current room.
func (s *Session) attach(conn *websocket.Conn) bool {
	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		_ = conn.Close()
		return false
	}

	s.conn = conn
	if s.room == "" {
		s.state = Connected
		s.mu.Unlock()

		s.notifyState(Connected)

		return true
	}

	s.state = Joined
	s.sendUnlock(conn, wire.JoinRoom{RoomID: s.room, Username: s.username})

	s.notifyState(Joined)

	return true
}

// detach drops a dead transport and reports whether to redial.
func (s *Session) detach(conn *websocket.Conn) bool {
	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return false
	}

	if s.conn == conn {
		s.conn = nil
	}
	s.state = Connecting
	s.mu.Unlock()

	_ = conn.Close()
	s.notifyState(Connecting)

	return true
}

func (s *Session) read(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.logf("SESSION: transport lost: %v", err)
			return
		}

		msg, err := wire.Decode(data)
		if err != nil {
			s.logf("DROP: %v", err)
			continue
		}

		s.dispatch(msg)
	}
}

// write sends msg on conn. A failed write closes the transport so the
// read loop notices and redials; the caller is not told.
func (s *Session) write(conn *websocket.Conn, msg wire.Message) {
	if conn == nil {
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.writeLocked(conn, msg)
}

// sendUnlock must be called with s.mu held and releases it. The write
// lock is taken first, so membership messages reach the hub in the order
// their state changes were made.
func (s *Session) sendUnlock(conn *websocket.Conn, msg wire.Message) {
	if conn == nil {
		s.mu.Unlock()
		return
	}

	s.writeMu.Lock()
	s.mu.Unlock()
	defer s.writeMu.Unlock()

	s.writeLocked(conn, msg)
}

func (s *Session) writeLocked(conn *websocket.Conn, msg wire.Message) {
	data, err := wire.Encode(msg)
	if err != nil {
		s.logf("ERROR: encoding %s: %v", msg.Kind(), err)
		return
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logf("SESSION: write failed: %v", err)
		_ = conn.Close()
	}
}

// JoinRoom subscribes to roomID as username, leaving any previous room.
// While the session is redialing the room is only recorded; the join is
// sent once the transport is back.
func (s *Session) JoinRoom(username, roomID string) error {
	username, roomID = wire.Normalize(username), wire.Normalize(roomID)

	s.mu.Lock()
	switch s.state {
	case Connected, Joined, Idle, Connecting:
	case Closed:
		s.mu.Unlock()
		return ErrClosed
	default:
		s.mu.Unlock()
		return ErrNotConnected
	}

	prev := s.state
	s.username, s.room = username, roomID
	if prev != Connecting {
		s.state = Joined
	}
	s.sendUnlock(s.conn, wire.JoinRoom{RoomID: roomID, Username: username})

	if prev != Joined && prev != Connecting {
		s.notifyState(Joined)
	}

	return nil
}

// LeaveRoom unsubscribes from the current room without waiting for the hub.
// While redialing it only forgets the room, so it is not rejoined.
func (s *Session) LeaveRoom() error {
	s.mu.Lock()
	if s.room == "" {
		s.mu.Unlock()
		return ErrNotJoined
	}

	prev := s.state
	msg := wire.LeaveRoom{RoomID: s.room, Username: s.username}
	s.room = ""
	if prev == Joined {
		s.state = Idle
	}
	s.sendUnlock(s.conn, msg)

	if prev == Joined {
		s.notifyState(Idle)
	}

	return nil
}

// SendScore pushes the local player's full score to the current room.
// Updates made while redialing are not queued; the poll covers them.
func (s *Session) SendScore(score wire.PlayerScore) error {
	s.mu.Lock()
	if s.room == "" {
		s.mu.Unlock()
		return ErrNotJoined
	}

	conn := s.conn
	room := s.room
	s.mu.Unlock()

	s.write(conn, wire.ScoreUpdate{RoomID: room, Score: score})

	return nil
}

// Disconnect tears the session down from any state. It is safe to call
// more than once; local handlers are released before it returns.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return
	}

	if s.cancel != nil {
		s.cancel()
	}
	conn := s.conn
	s.conn = nil
	s.room = ""
	s.state = Closed
	s.mu.Unlock()

	if conn != nil {
		s.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()
		_ = conn.Close()
	}

	s.notifyState(Closed)

	s.handlersMu.Lock()
	s.handlers = nil
	s.stateHandlers = nil
	s.handlersMu.Unlock()
}

// OnMessage registers fn for every inbound message. The returned function
// removes fn before returning; only a call already under way can still
// complete.
func (s *Session) OnMessage(fn func(wire.Message)) (unsubscribe func()) {
	s.handlersMu.Lock()
	s.nextID++
	id := s.nextID
	s.handlers = append(s.handlers, handler{id: id, fn: fn})
	s.handlersMu.Unlock()

	var once sync.Once

	return func() {
		once.Do(func() {
			s.handlersMu.Lock()
			defer s.handlersMu.Unlock()

			for i, h := range s.handlers {
				if h.id == id {
					s.handlers = append(s.handlers[:i:i], s.handlers[i+1:]...)
					break
				}
			}
		})
	}
}

// OnState registers fn for every state transition.
func (s *Session) OnState(fn func(State)) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()

	s.stateHandlers = append(s.stateHandlers, fn)
}

func (s *Session) lookup(id uint64) func(wire.Message) {
	s.handlersMu.RLock()
	defer s.handlersMu.RUnlock()

	for _, h := range s.handlers {
		if h.id == id {
			return h.fn
		}
	}

	return nil
}

func (s *Session) dispatch(msg wire.Message) {
	s.handlersMu.RLock()
	ids := make([]uint64, len(s.handlers))
	for i, h := range s.handlers {
		ids[i] = h.id
	}
	s.handlersMu.RUnlock()

	for _, id := range ids {
		// re-checked so a handler removed mid-dispatch is skipped
		if fn := s.lookup(id); fn != nil {
			fn(msg)
		}
	}
}

func (s *Session) notifyState(state State) {
	s.handlersMu.RLock()
	fns := make([]func(State), len(s.stateHandlers))
	copy(fns, s.stateHandlers)
	s.handlersMu.RUnlock()

	for _, fn := range fns {
		fn(state)
	}
}
