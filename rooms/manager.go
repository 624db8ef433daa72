/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package rooms

import (
	"sync"
	"time"

	"github.com/Seednode/globetrotter/wire"
)

const defaultSendBuffer = 32

// Options tunes a Manager. The zero value is usable.
type Options struct {
	// IdleTimeout is how long a room with no sessions keeps its hub
	// goroutine. Zero disables reaping.
	IdleTimeout time.Duration

	// SendBuffer is the per-connection outbound queue length. A connection
	// whose queue is full when the hub fans out is dropped.
	SendBuffer int

	Logf func(format string, args ...any)
}

// Manager owns one Hub per room id, so events for different rooms are
// processed in parallel while each room stays strictly ordered.
type Manager struct {
	mu     sync.RWMutex
	hubs   map[string]*Hub
	closed bool

	store *ScoreStore
	opts  Options

	connsMu sync.Mutex
	conns   map[*Conn]struct{}

	stop chan struct{}
}

func NewManager(store *ScoreStore, opts Options) *Manager {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	if opts.Logf == nil {
		opts.Logf = func(string, ...any) {}
	}

	m := &Manager{
		hubs:  make(map[string]*Hub),
		store: store,
		opts:  opts,
		conns: make(map[*Conn]struct{}),
		stop:  make(chan struct{}),
	}

	if opts.IdleTimeout > 0 {
		go m.reaperLoop()
	}

	return m
}

func (m *Manager) Store() *ScoreStore {
	return m.store
}

func (m *Manager) Registry() *Registry {
	return m.store.registry
}

// dispatch hands ev to the hub for roomID, creating it if needed. It
// returns false once the manager is closed. The read lock is held across
// submit so the reaper cannot stop a hub with an event in flight.
func (m *Manager) dispatch(roomID string, ev event) bool {
	for {
		m.mu.RLock()
		if m.closed {
			m.mu.RUnlock()
			return false
		}

		if hub, ok := m.hubs[roomID]; ok {
			sent := hub.submit(ev)
			m.mu.RUnlock()
			if sent {
				return true
			}
			continue
		}
		m.mu.RUnlock()

		m.mu.Lock()
		if _, ok := m.hubs[roomID]; !ok && !m.closed {
			hub := newHub(roomID, m.store, m.opts.Logf)
			m.hubs[roomID] = hub
			go hub.run()
		}
		m.mu.Unlock()
	}
}

// Flush blocks until every event queued for roomID before the call has
// been applied and fanned out.
func (m *Manager) Flush(roomID string) {
	done := make(chan struct{})
	if !m.dispatch(wire.Normalize(roomID), event{kind: eventBarrier, done: done}) {
		return
	}

	select {
	case <-done:
	case <-m.stop:
	}
}

// Stats reports live rooms and connected sessions.
func (m *Manager) Stats() (rooms, sessions int) {
	m.connsMu.Lock()
	sessions = len(m.conns)
	m.connsMu.Unlock()

	return len(m.Registry().Rooms()), sessions
}

func (m *Manager) track(c *Conn) {
	m.connsMu.Lock()
	m.conns[c] = struct{}{}
	m.connsMu.Unlock()
}

func (m *Manager) untrack(c *Conn) {
	m.connsMu.Lock()
	delete(m.conns, c)
	m.connsMu.Unlock()
}

// Close stops every hub and disconnects every session.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.stop)
	for id, hub := range m.hubs {
		close(hub.quit)
		delete(m.hubs, id)
	}
	m.mu.Unlock()

	m.connsMu.Lock()
	conns := make([]*Conn, 0, len(m.conns))
	for c := range m.conns {
		conns = append(conns, c)
	}
	m.connsMu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

// reaperLoop periodically stops hubs that have no sessions and have been
// idle longer than IdleTimeout.
func (m *Manager) reaperLoop() {
	ticker := time.NewTicker(m.opts.IdleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.reap(time.Now().Add(-m.opts.IdleTimeout))
		case <-m.stop:
			return
		}
	}
}

func (m *Manager) reap(cutoff time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, hub := range m.hubs {
		if hub.sessions.Load() > 0 || time.Unix(0, hub.lastActive.Load()).After(cutoff) {
			continue
		}

		// No dispatch can start while the write lock is held, so once the
		// barrier returns the hub has nothing left in flight.
		done := make(chan struct{})
		hub.events <- event{kind: eventBarrier, done: done}
		<-done

		if hub.sessions.Load() > 0 || len(hub.events) > 0 {
			continue
		}

		close(hub.quit)
		delete(m.hubs, id)

		m.opts.Logf("ROOMS: reaped idle room %q", id)
	}
}
