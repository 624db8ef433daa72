/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package rooms

import (
	"sync"

	"github.com/Seednode/globetrotter/wire"
)

// ScoreStore is the authoritative username → PlayerScore table. There is a
// single set of counters per player; the per-room view is a filter over
// Registry membership.
type ScoreStore struct {
	mu       sync.RWMutex
	scores   map[string]*wire.PlayerScore
	order    []string
	registry *Registry
}

func NewScoreStore(registry *Registry) *ScoreStore {
	return &ScoreStore{
		scores:   make(map[string]*wire.PlayerScore),
		registry: registry,
	}
}

// entryLocked assumes s.mu is held for writing.
func (s *ScoreStore) entryLocked(username string) *wire.PlayerScore {
	score, ok := s.scores[username]
	if !ok {
		zero := wire.ZeroScore(username)
		score = &zero
		s.scores[username] = score
		s.order = append(s.order, username)
	}

	return score
}

// Register creates a zero record for username if none exists.
func (s *ScoreStore) Register(username string) {
	username = wire.Normalize(username)
	if username == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entryLocked(username)
}

// Save records one answer for username and returns the updated record.
// roomID only identifies where the answer was given; the increment lands
// in the single global record and shows up in every room the player is in.
func (s *ScoreStore) Save(username string, correct bool, roomID string) wire.PlayerScore {
	username = wire.Normalize(username)
	if username == "" {
		return wire.PlayerScore{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	score := s.entryLocked(username)
	score.Total++
	if correct {
		score.Correct++
	} else {
		score.Incorrect++
	}

	return *score
}

// Observe adopts a full score reported by a client when it is ahead of the
// stored record, and returns whichever record is authoritative afterwards.
// Counters never move backwards.
func (s *ScoreStore) Observe(reported wire.PlayerScore) wire.PlayerScore {
	reported.Username = wire.Normalize(reported.Username)
	if !reported.Valid() {
		return s.Score(reported.Username)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	score := s.entryLocked(reported.Username)
	if reported.Total > score.Total && reported.Ahead(*score) {
		*score = reported
	}

	return *score
}

// Score returns the record for username, or the zero record if unknown.
func (s *ScoreStore) Score(username string) wire.PlayerScore {
	username = wire.Normalize(username)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if score, ok := s.scores[username]; ok {
		return *score
	}

	return wire.ZeroScore(username)
}

// All returns every known record in registration order.
func (s *ScoreStore) All() []wire.PlayerScore {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]wire.PlayerScore, 0, len(s.order))
	for _, username := range s.order {
		out = append(out, *s.scores[username])
	}

	return out
}

// Room returns records for the current members of roomID, in join order.
func (s *ScoreStore) Room(roomID string) []wire.PlayerScore {
	members := s.registry.Members(wire.Normalize(roomID))

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]wire.PlayerScore, 0, len(members))
	for _, username := range members {
		if score, ok := s.scores[username]; ok {
			out = append(out, *score)
			continue
		}
		out = append(out, wire.ZeroScore(username))
	}

	return out
}
