package player

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/globetrotter/wire"
)

// fakeScores serves canned snapshots.
type fakeScores struct {
	mu   sync.Mutex
	all  []wire.PlayerScore
	room map[string][]wire.PlayerScore
	err  error
}

func (f *fakeScores) SaveScore(context.Context, string, bool, string) (wire.PlayerScore, error) {
	return wire.PlayerScore{}, errors.New("not implemented")
}

func (f *fakeScores) Score(_ context.Context, username string) (wire.PlayerScore, error) {
	return wire.ZeroScore(username), nil
}

func (f *fakeScores) AllScores(context.Context) ([]wire.PlayerScore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.all, f.err
}

func (f *fakeScores) RoomScores(_ context.Context, roomID string) ([]wire.PlayerScore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.room[roomID], f.err
}

func TestPoller_ReplacesRoomScope(t *testing.T) {
	src := &fakeScores{room: map[string][]wire.PlayerScore{
		"R1": {score("bob", 2, 0)},
	}}
	view := NewReconciler("R1")
	view.Apply(score("alice", 1, 0))

	p := &Poller{Source: src, View: view}
	require.NoError(t, p.Poll(context.Background()))

	assert.Equal(t, []wire.PlayerScore{score("bob", 2, 0)}, view.Leaderboard())
}

func TestPoller_GlobalScope(t *testing.T) {
	src := &fakeScores{all: []wire.PlayerScore{score("alice", 1, 0), score("bob", 3, 0)}}
	view := NewReconciler("")

	p := &Poller{Source: src, View: view}
	require.NoError(t, p.Poll(context.Background()))

	assert.Equal(t, []string{"bob", "alice"}, usernames(view.Leaderboard()))
}

func TestPoller_ErrorKeepsView(t *testing.T) {
	src := &fakeScores{err: errors.New("offline")}
	view := NewReconciler("")
	view.Apply(score("alice", 1, 0))

	p := &Poller{Source: src, View: view}
	require.Error(t, p.Poll(context.Background()))

	assert.Equal(t, []wire.PlayerScore{score("alice", 1, 0)}, view.Leaderboard())
}

func TestPoller_RunRefreshesWithinInterval(t *testing.T) {
	src := &fakeScores{all: []wire.PlayerScore{score("alice", 1, 0)}}
	view := NewReconciler("")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := &Poller{Source: src, View: view, Interval: 20 * time.Millisecond}
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return len(view.Leaderboard()) == 1 }, time.Second, 5*time.Millisecond)

	src.mu.Lock()
	src.all = append(src.all, score("bob", 2, 0))
	src.mu.Unlock()

	require.Eventually(t, func() bool { return len(view.Leaderboard()) == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestPoller_KickRefreshesEarly(t *testing.T) {
	src := &fakeScores{all: []wire.PlayerScore{score("alice", 1, 0)}}
	view := NewReconciler("")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := &Poller{Source: src, View: view, Interval: time.Hour}
	p.Kick()
	go func() { _ = p.Run(ctx) }()

	require.Eventually(t, func() bool { return len(view.Leaderboard()) == 1 }, time.Second, 5*time.Millisecond)

	src.mu.Lock()
	src.all = append(src.all, score("bob", 2, 0))
	src.mu.Unlock()

	p.Kick()
	p.Kick()

	require.Eventually(t, func() bool { return len(view.Leaderboard()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestPoller_DropsSnapshotForOldScope(t *testing.T) {
	view := NewReconciler("R1")
	src := &switchingScores{view: view, next: "R2", scores: []wire.PlayerScore{score("mallory", 9, 0)}}

	p := &Poller{Source: src, View: view}
	require.NoError(t, p.Poll(context.Background()))

	assert.Equal(t, "R2", view.Room())
	assert.Empty(t, view.Leaderboard())
}

// switchingScores moves the view to another room while a fetch is in
// flight.
type switchingScores struct {
	fakeScores
	view   *Reconciler
	next   string
	scores []wire.PlayerScore
}

func (s *switchingScores) RoomScores(context.Context, string) ([]wire.PlayerScore, error) {
	s.view.SetRoom(s.next)
	return s.scores, nil
}

func TestResolveIdentity(t *testing.T) {
	assert.Equal(t, "alice", ResolveIdentity(" alice ", "bob"))
	assert.Equal(t, "", ResolveIdentity("", ""))

	guest := ResolveIdentity("", "bob")
	assert.True(t, strings.HasPrefix(guest, "Guest-"), guest)
	assert.NotEqual(t, guest, ResolveIdentity("", "bob"), "every guest is new")
}

// localTable is an in-memory LocalStore for tests.
type localTable struct {
	mu     sync.Mutex
	scores map[string]wire.PlayerScore
}

func (l *localTable) Save(username string, correct bool, _ string) wire.PlayerScore {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.scores == nil {
		l.scores = make(map[string]wire.PlayerScore)
	}
	s, ok := l.scores[username]
	if !ok {
		s = wire.ZeroScore(username)
	}
	s.Total++
	if correct {
		s.Correct++
	} else {
		s.Incorrect++
	}
	l.scores[username] = s
	return s
}

func (l *localTable) Score(username string) wire.PlayerScore {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.scores[username]; ok {
		return s
	}
	return wire.ZeroScore(username)
}

func (l *localTable) All() []wire.PlayerScore {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]wire.PlayerScore, 0, len(l.scores))
	for _, s := range l.scores {
		out = append(out, s)
	}
	return out
}

func (l *localTable) Room(string) []wire.PlayerScore {
	return l.All()
}

func TestPlayer_AnswerPushesToRoom(t *testing.T) {
	hs := newHubServer(t)
	scores := Local(hs.manager.Store())

	alice := New("alice", connected(t, hs.url), scores)
	bob := New("bob", connected(t, hs.url), scores)

	require.NoError(t, alice.Join("R1"))
	require.NoError(t, bob.Join("R1"))
	require.Eventually(t, func() bool {
		return len(alice.View.Leaderboard()) == 2 && len(bob.View.Leaderboard()) == 2
	}, 5*time.Second, 5*time.Millisecond)

	got, err := bob.Answer(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, score("bob", 1, 0), got)
	assert.Equal(t, []wire.PlayerScore{score("bob", 1, 0), wire.ZeroScore("alice")}, bob.View.Leaderboard())

	require.Eventually(t, func() bool {
		board := alice.View.Leaderboard()
		return len(board) == 2 && board[0] == score("bob", 1, 0)
	}, 5*time.Second, 5*time.Millisecond)
}

func TestPlayer_BeatTheInviterOnce(t *testing.T) {
	table := &localTable{}
	table.Save("inviter", true, "")
	table.Save("inviter", true, "")

	p := New("guest", NewSession("ws://127.0.0.1:1/ws", nil), Local(table))
	defer p.Close()

	c, err := p.Challenge(context.Background(), "inviter")
	require.NoError(t, err)
	assert.Equal(t, 2, c.Inviter().Correct)

	var beaten int
	p.OnBeaten = func(inviter wire.PlayerScore) {
		beaten++
		assert.Equal(t, "inviter", inviter.Username)
	}

	for _, correct := range []bool{true, false, true, true, true} {
		_, err := p.Answer(context.Background(), correct)
		require.NoError(t, err, "answering works without a connection")
	}

	assert.Equal(t, 1, beaten)
	assert.Equal(t, score("guest", 4, 1), p.View.Leaderboard()[0])
}

func TestPlayer_FailedJoinKeepsView(t *testing.T) {
	p := New("alice", NewSession("ws://127.0.0.1:1/ws", nil), Local(&localTable{}))
	defer p.Close()

	p.View.Apply(score("alice", 2, 0))

	assert.ErrorIs(t, p.Join("R1"), ErrNotConnected)
	assert.Equal(t, "", p.View.Room())
	assert.Equal(t, []wire.PlayerScore{score("alice", 2, 0)}, p.View.Leaderboard())
}

func TestPlayer_NewcomerScoreArrivesBeforeNextPoll(t *testing.T) {
	hs := newHubServer(t)
	store := hs.manager.Store()
	for i := 0; i < 3; i++ {
		store.Save("bob", true, "")
	}

	alice := New("alice", connected(t, hs.url), Local(store))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poller := alice.Poller(nil)
	poller.Interval = time.Hour
	go func() { _ = poller.Run(ctx) }()

	require.NoError(t, alice.Join("R1"))
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"alice"}, usernames(alice.View.Leaderboard()))
	}, 5*time.Second, 5*time.Millisecond)

	bob := connected(t, hs.url)
	require.NoError(t, bob.JoinRoom("bob", "R1"))

	require.Eventually(t, func() bool {
		board := alice.View.Leaderboard()
		return len(board) == 2 && board[0] == score("bob", 3, 0)
	}, 5*time.Second, 5*time.Millisecond)
}
