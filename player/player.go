/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package player

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/Seednode/globetrotter/wire"
)

// GuestName returns a fresh identity for a visitor who arrived by invite
// without a name of their own.
func GuestName() string {
	return "Guest-" + uuid.NewString()[:8]
}

// ResolveIdentity picks the username to play under: the one already stored
// for this browser session, else a guest name when arriving by invite.
// It returns "" when the visitor still has to choose a name.
func ResolveIdentity(stored, inviter string) string {
	if stored = wire.Normalize(stored); stored != "" {
		return stored
	}
	if wire.Normalize(inviter) != "" {
		return GuestName()
	}

	return ""
}

// Player wires a Session, a score table and a Reconciler together for
// one local identity.
type Player struct {
	Username string
	Session  *Session
	Scores   Scores
	View     *Reconciler

	// OnBeaten fires once, when the local player overtakes the inviter.
	OnBeaten func(inviter wire.PlayerScore)

	mu          sync.Mutex
	challenge   *Challenge
	poller      *Poller
	unsubscribe []func()
}

// New subscribes a global-scope view to session's pushes.
func New(username string, session *Session, scores Scores) *Player {
	p := &Player{
		Username: wire.Normalize(username),
		Session:  session,
		Scores:   scores,
		View:     NewReconciler(""),
	}
	p.unsubscribe = []func(){
		session.OnMessage(p.View.Handle),
		session.OnMessage(p.refreshOnJoin),
	}

	return p
}

// refreshOnJoin pulls a newcomer's real score early. A join push only
// carries a zero placeholder.
func (p *Player) refreshOnJoin(msg wire.Message) {
	if join, ok := msg.(wire.JoinRoom); ok && join.RoomID == p.View.Room() {
		p.kick()
	}
}

func (p *Player) kick() {
	p.mu.Lock()
	poller := p.poller
	p.mu.Unlock()

	if poller != nil {
		poller.Kick()
	}
}

// Challenge captures the inviter's current score as the target to beat.
func (p *Player) Challenge(ctx context.Context, inviter string) (*Challenge, error) {
	score, err := p.Scores.Score(ctx, wire.Normalize(inviter))
	if err != nil {
		return nil, err
	}

	c := NewChallenge(score)

	p.mu.Lock()
	p.challenge = c
	p.mu.Unlock()

	return c, nil
}

// Join scopes the view to roomID and subscribes to it. If the session
// refuses, the previous view is kept.
func (p *Player) Join(roomID string) error {
	restore := p.View.switchRoom(roomID)

	if err := p.Session.JoinRoom(p.Username, roomID); err != nil {
		restore()

		return err
	}
	p.kick()

	return nil
}

// Leave unsubscribes from the current room and returns to the global view.
func (p *Player) Leave() error {
	if err := p.Session.LeaveRoom(); err != nil {
		return err
	}
	p.View.SetRoom("")
	p.kick()

	return nil
}

// Answer records one answer, updates the local view, pushes the new score
// to the room and checks the invite challenge. Push is best effort; the
// poll cycle covers anything that does not arrive.
func (p *Player) Answer(ctx context.Context, correct bool) (wire.PlayerScore, error) {
	score, err := p.Scores.SaveScore(ctx, p.Username, correct, p.View.Room())
	if err != nil {
		return wire.PlayerScore{}, err
	}

	p.View.Apply(score)

	// ErrNotJoined just means the player is not in a room
	_ = p.Session.SendScore(score)

	p.mu.Lock()
	c := p.challenge
	p.mu.Unlock()

	if c != nil && c.Observe(score.Correct) && p.OnBeaten != nil {
		p.OnBeaten(c.Inviter())
	}

	return score, nil
}

// Poller returns a poller bound to this player's view. The player kicks
// the most recent one whenever the room scope changes or someone joins.
func (p *Player) Poller(logf func(format string, args ...any)) *Poller {
	poller := &Poller{
		Source:   p.Scores,
		View:     p.View,
		Interval: PollInterval,
		Logf:     logf,
	}

	p.mu.Lock()
	p.poller = poller
	p.mu.Unlock()

	return poller
}

// Close detaches the view and disconnects the session.
func (p *Player) Close() {
	for _, unsubscribe := range p.unsubscribe {
		unsubscribe()
	}
	p.Session.Disconnect()
}
