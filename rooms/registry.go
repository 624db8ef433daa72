/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package rooms

import (
	"slices"
	"sync"
)

type memberSet struct {
	order []string
	index map[string]struct{}
}

// Registry tracks which usernames belong to which room. It holds no score
// data. A username may be a member of several rooms at once.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*memberSet
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*memberSet),
	}
}

// Join adds username to roomID and reports whether it was newly added.
func (r *Registry) Join(roomID, username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.rooms[roomID]
	if !ok {
		set = &memberSet{index: make(map[string]struct{})}
		r.rooms[roomID] = set
	}

	if _, exists := set.index[username]; exists {
		return false
	}

	set.index[username] = struct{}{}
	set.order = append(set.order, username)

	return true
}

// Leave removes username from roomID and reports whether it was present.
func (r *Registry) Leave(roomID, username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.rooms[roomID]
	if !ok {
		return false
	}

	if _, exists := set.index[username]; !exists {
		return false
	}

	delete(set.index, username)
	set.order = slices.DeleteFunc(set.order, func(u string) bool { return u == username })

	if len(set.order) == 0 {
		delete(r.rooms, roomID)
	}

	return true
}

// Members returns the usernames in roomID in join order. Unknown rooms
// yield an empty slice.
func (r *Registry) Members(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.rooms[roomID]
	if !ok {
		return []string{}
	}

	return slices.Clone(set.order)
}

// IsMember reports whether username is currently joined to roomID.
func (r *Registry) IsMember(roomID, username string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	_, exists := set.index[username]

	return exists
}

// Rooms lists every room with at least one member, sorted.
func (r *Registry) Rooms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	return ids
}
