/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package player

import (
	"sync"

	"github.com/Seednode/globetrotter/wire"
)

// Challenge compares the local player against a snapshot of the player who
// sent the invite. It is beaten at most once per session.
type Challenge struct {
	mu      sync.Mutex
	inviter wire.PlayerScore
	beaten  bool
}

func NewChallenge(inviter wire.PlayerScore) *Challenge {
	return &Challenge{inviter: inviter}
}

// Inviter is the captured snapshot.
func (c *Challenge) Inviter() wire.PlayerScore {
	return c.inviter
}

// Beaten reports whether the inviter has been overtaken.
func (c *Challenge) Beaten() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.beaten
}

// Observe reports true only on the call where correct first exceeds the
// inviter's count.
func (c *Challenge) Observe(correct int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.beaten || correct <= c.inviter.Correct {
		return false
	}
	c.beaten = true

	return true
}
