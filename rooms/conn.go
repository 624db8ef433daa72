/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package rooms

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Seednode/globetrotter/wire"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Conn is the server side of one client's websocket. The read pump owns
// room; the hub only ever calls enqueue and Close.
type Conn struct {
	id     string
	ws     *websocket.Conn
	remote string

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	manager *Manager
	room    string
}

// Serve runs a session on an upgraded websocket until the transport
// closes. The caller's goroutine becomes the read pump.
func (m *Manager) Serve(ws *websocket.Conn, remote string) {
	c := &Conn{
		id:      uuid.NewString(),
		ws:      ws,
		remote:  remote,
		send:    make(chan []byte, m.opts.SendBuffer),
		done:    make(chan struct{}),
		manager: m,
	}

	m.track(c)
	m.opts.Logf("SERVE: Session %s opened from %s", c.id, remote)

	go c.writePump()
	c.readPump()
}

// ID is the random identifier assigned to this session.
func (c *Conn) ID() string {
	return c.id
}

// enqueue never blocks; false means the session is gone or saturated.
func (c *Conn) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close tears down the transport. Safe to call from any goroutine, any
// number of times.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.ws != nil {
			_ = c.ws.Close()
		}
	})
}

func (c *Conn) readPump() {
	m := c.manager

	defer func() {
		// A dropped transport is an implicit leave for the last joined room.
		if c.room != "" {
			m.dispatch(c.room, event{kind: eventLeave, conn: c})
			c.room = ""
		}

		c.Close()
		m.untrack(c)
		m.opts.Logf("SERVE: Session %s closed", c.id)
	}()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.opts.Logf("SERVE: Session %s read error: %v", c.id, err)
			}
			return
		}

		msg, err := wire.Decode(data)
		if err != nil {
			m.opts.Logf("DROP: Session %s sent %v", c.id, err)
			continue
		}

		c.route(msg)
	}
}

// route turns one decoded client message into hub events. A session is
// subscribed to at most one room; joining another leaves the previous one.
func (c *Conn) route(msg wire.Message) {
	m := c.manager

	switch msg := msg.(type) {
	case wire.JoinRoom:
		if c.room != "" && c.room != msg.RoomID {
			m.dispatch(c.room, event{kind: eventLeave, conn: c})
		}
		c.room = msg.RoomID
		m.dispatch(c.room, event{kind: eventJoin, conn: c, username: msg.Username})

	case wire.LeaveRoom:
		if c.room == "" || c.room != msg.RoomID {
			m.opts.Logf("DROP: Session %s left %q without joining it", c.id, msg.RoomID)
			return
		}
		m.dispatch(c.room, event{kind: eventLeave, conn: c})
		c.room = ""

	case wire.ScoreUpdate:
		if c.room == "" || c.room != msg.RoomID {
			m.opts.Logf("DROP: Session %s sent a score for %q while in %q", c.id, msg.RoomID, c.room)
			return
		}
		m.dispatch(c.room, event{kind: eventScore, conn: c, score: msg.Score})

	case wire.RoomData:
		m.opts.Logf("DROP: Session %s sent server-only %s", c.id, msg.Kind())
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					c.manager.opts.Logf("SERVE: Session %s write error: %v", c.id, err)
				}
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
