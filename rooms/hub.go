/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package rooms

import (
	"sync/atomic"
	"time"

	"github.com/Seednode/globetrotter/wire"
)

type eventKind int

const (
	eventJoin eventKind = iota
	eventLeave
	eventScore
	eventBarrier
)

type event struct {
	kind     eventKind
	conn     *Conn
	username string
	score    wire.PlayerScore
	done     chan struct{}
}

// Hub serializes every membership and score event for one room. All state
// below events is owned by the run goroutine; only the atomics are read
// from outside.
type Hub struct {
	id       string
	store    *ScoreStore
	registry *Registry
	logf     func(format string, args ...any)

	events chan event
	quit   chan struct{}

	subscribers map[*Conn]string // conn -> username
	failed      []*Conn

	sessions   atomic.Int32
	lastActive atomic.Int64
}

func newHub(id string, store *ScoreStore, logf func(string, ...any)) *Hub {
	h := &Hub{
		id:          id,
		store:       store,
		registry:    store.registry,
		logf:        logf,
		events:      make(chan event, 64),
		quit:        make(chan struct{}),
		subscribers: make(map[*Conn]string),
	}
	h.lastActive.Store(time.Now().UnixNano())

	return h
}

func (h *Hub) run() {
	for {
		select {
		case ev := <-h.events:
			h.lastActive.Store(time.Now().UnixNano())

			switch ev.kind {
			case eventJoin:
				h.handleJoin(ev.conn, ev.username)
			case eventLeave:
				h.handleLeave(ev.conn)
			case eventScore:
				h.handleScore(ev.conn, ev.score)
			case eventBarrier:
			}

			h.dropFailed()
			h.sessions.Store(int32(len(h.subscribers)))

			if ev.done != nil {
				close(ev.done)
			}

		case <-h.quit:
			return
		}
	}
}

// submit queues ev, or reports false if the hub has been stopped.
func (h *Hub) submit(ev event) bool {
	select {
	case h.events <- ev:
		return true
	case <-h.quit:
		return false
	}
}

func (h *Hub) handleJoin(c *Conn, username string) {
	if prev, ok := h.subscribers[c]; ok && prev != username {
		h.handleLeave(c)
	}

	h.registry.Join(h.id, username)
	h.store.Register(username)
	h.subscribers[c] = username

	h.logf("ROOMS: %q joined %q (conn %s)", username, h.id, c.id)

	h.deliver(c, wire.RoomData{
		RoomID:       h.id,
		Participants: h.store.Room(h.id),
	})

	h.broadcast(wire.JoinRoom{RoomID: h.id, Username: username}, c)
}

func (h *Hub) handleLeave(c *Conn) {
	username, ok := h.subscribers[c]
	if !ok {
		return
	}
	delete(h.subscribers, c)

	for _, other := range h.subscribers {
		if other == username {
			return
		}
	}

	if !h.registry.Leave(h.id, username) {
		return
	}

	h.logf("ROOMS: %q left %q (conn %s)", username, h.id, c.id)

	h.broadcast(wire.LeaveRoom{RoomID: h.id, Username: username}, nil)
}

func (h *Hub) handleScore(c *Conn, reported wire.PlayerScore) {
	username, ok := h.subscribers[c]
	if !ok {
		h.logf("DROP: score_update from conn %s which is not in %q", c.id, h.id)
		return
	}
	if reported.Username != username {
		h.logf("DROP: conn %s (%q) reported a score for %q in %q", c.id, username, reported.Username, h.id)
		return
	}

	score := h.store.Observe(reported)

	h.broadcast(wire.ScoreUpdate{RoomID: h.id, Score: score}, c)
}

func (h *Hub) deliver(c *Conn, msg wire.Message) {
	data, err := wire.Encode(msg)
	if err != nil {
		h.logf("ERROR: encoding %s for %q: %v", msg.Kind(), h.id, err)
		return
	}

	if !c.enqueue(data) {
		h.failed = append(h.failed, c)
	}
}

// broadcast fans msg out to every subscriber except one. Delivery is a
// non-blocking enqueue; subscribers that cannot take it are dropped
// after the current event.
func (h *Hub) broadcast(msg wire.Message, except *Conn) {
	data, err := wire.Encode(msg)
	if err != nil {
		h.logf("ERROR: encoding %s for %q: %v", msg.Kind(), h.id, err)
		return
	}

	for c := range h.subscribers {
		if c == except {
			continue
		}

		if !c.enqueue(data) {
			h.failed = append(h.failed, c)
		}
	}
}

// dropFailed treats every subscriber whose queue overflowed or whose
// transport closed as having left. Leaving may itself fail further
// deliveries, so this loops until the list is empty.
func (h *Hub) dropFailed() {
	for len(h.failed) > 0 {
		c := h.failed[0]
		h.failed = h.failed[1:]

		if _, ok := h.subscribers[c]; !ok {
			continue
		}

		h.logf("ROOMS: dropping unresponsive conn %s from %q", c.id, h.id)

		c.Close()
		h.handleLeave(c)
	}
}
