/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package player

import (
	"cmp"
	"slices"
	"sync"

	"github.com/Seednode/globetrotter/wire"
)

type entry struct {
	score wire.PlayerScore
	seq   uint64
}

// Reconciler merges pushed room events and polled snapshots into one
// leaderboard. Every input is a complete PlayerScore, so merging is a
// replace by username; a record with fewer answers than the one held is
// stale and ignored.
type Reconciler struct {
	// OnJoin, if set, is called once for every username that appears in
	// the view, whether it arrived by push or by poll.
	OnJoin func(username string)

	mu      sync.Mutex
	room    string
	entries map[string]*entry
	nextSeq uint64
}

// NewReconciler builds a view scoped to room, or to the global table when
// room is empty.
func NewReconciler(room string) *Reconciler {
	return &Reconciler{
		room:    wire.Normalize(room),
		entries: make(map[string]*entry),
	}
}

// Room is the scope of this view.
func (r *Reconciler) Room() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.room
}

// SetRoom switches scope and clears the view.
func (r *Reconciler) SetRoom(room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.room = wire.Normalize(room)
	clear(r.entries)
}

// switchRoom is SetRoom that can be undone. restore puts the previous
// scope and entries back, unless the scope has moved on since.
func (r *Reconciler) switchRoom(room string) (restore func()) {
	room = wire.Normalize(room)

	r.mu.Lock()
	prevRoom, prevEntries, prevSeq := r.room, r.entries, r.nextSeq
	r.room = room
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		if r.room != room {
			return
		}

		r.room, r.entries, r.nextSeq = prevRoom, prevEntries, prevSeq
	}
}

// applyLocked assumes r.mu is held and returns a newly seen username, if any.
func (r *Reconciler) applyLocked(score wire.PlayerScore) string {
	if score.Username == "" {
		return ""
	}

	if e, ok := r.entries[score.Username]; ok {
		if score.Ahead(e.score) {
			e.score = score
		}
		return ""
	}

	r.nextSeq++
	r.entries[score.Username] = &entry{score: score, seq: r.nextSeq}

	return score.Username
}

// Apply merges one pushed or polled record.
func (r *Reconciler) Apply(score wire.PlayerScore) {
	r.mu.Lock()
	joined := r.applyLocked(score)
	r.mu.Unlock()

	r.announce(joined)
}

// Replace installs a full snapshot for the scope. Usernames absent from it
// have left and are removed.
func (r *Reconciler) Replace(scores []wire.PlayerScore) {
	r.mu.Lock()
	joined := r.replaceLocked(scores)
	r.mu.Unlock()

	r.announce(joined...)
}

// replaceIn is Replace for a snapshot fetched for room. It is dropped if
// the view has switched scope since the fetch started.
func (r *Reconciler) replaceIn(room string, scores []wire.PlayerScore) {
	r.mu.Lock()
	if r.room != room {
		r.mu.Unlock()
		return
	}
	joined := r.replaceLocked(scores)
	r.mu.Unlock()

	r.announce(joined...)
}

func (r *Reconciler) replaceLocked(scores []wire.PlayerScore) []string {
	present := make(map[string]struct{}, len(scores))
	var joined []string

	for _, score := range scores {
		present[score.Username] = struct{}{}
		if u := r.applyLocked(score); u != "" {
			joined = append(joined, u)
		}
	}
	for username := range r.entries {
		if _, ok := present[username]; !ok {
			delete(r.entries, username)
		}
	}

	return joined
}

// Remove drops username from the view.
func (r *Reconciler) Remove(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, username)
}

// Leaderboard returns the view ordered by correct answers, highest first.
// Ties keep the order in which players first appeared.
func (r *Reconciler) Leaderboard() []wire.PlayerScore {
	r.mu.Lock()
	entries := make([]entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, *e)
	}
	r.mu.Unlock()

	slices.SortFunc(entries, func(a, b entry) int {
		if c := cmp.Compare(b.score.Correct, a.score.Correct); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})

	out := make([]wire.PlayerScore, len(entries))
	for i, e := range entries {
		out[i] = e.score
	}

	return out
}

// Handle is a Session message handler. Messages for other rooms are
// ignored. The scope check and the merge happen under one lock, so a
// message can never land in a view that has just switched rooms.
func (r *Reconciler) Handle(msg wire.Message) {
	var joined []string

	r.mu.Lock()
	if msg.Room() != r.room {
		r.mu.Unlock()
		return
	}

	switch msg := msg.(type) {
	case wire.RoomData:
		joined = r.replaceLocked(msg.Participants)
	case wire.ScoreUpdate:
		joined = append(joined, r.applyLocked(msg.Score))
	case wire.JoinRoom:
		joined = append(joined, r.applyLocked(wire.ZeroScore(msg.Username)))
	case wire.LeaveRoom:
		delete(r.entries, msg.Username)
	}
	r.mu.Unlock()

	r.announce(joined...)
}

func (r *Reconciler) announce(usernames ...string) {
	if r.OnJoin == nil {
		return
	}

	for _, username := range usernames {
		if username != "" {
			r.OnJoin(username)
		}
	}
}
