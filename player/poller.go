/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package player

import (
	"context"
	"sync"
	"time"

	"github.com/Seednode/globetrotter/wire"
)

// PollInterval bounds how stale a leaderboard can get when no push
// arrives at all.
const PollInterval = 10 * time.Second

// Poller refreshes a Reconciler from the score table on a fixed interval.
type Poller struct {
	Source   Scores
	View     *Reconciler
	Interval time.Duration
	Logf     func(format string, args ...any)

	once  sync.Once
	kicks chan struct{}
}

// Poll performs one refresh for the view's current scope.
func (p *Poller) Poll(ctx context.Context) error {
	room := p.View.Room()

	var (
		scores []wire.PlayerScore
		err    error
	)
	if room == "" {
		scores, err = p.Source.AllScores(ctx)
	} else {
		scores, err = p.Source.RoomScores(ctx, room)
	}
	if err != nil {
		return err
	}

	// the scope may have moved while the request was in flight
	p.View.replaceIn(room, scores)

	return nil
}

func (p *Poller) kicked() chan struct{} {
	p.once.Do(func() {
		p.kicks = make(chan struct{}, 1)
	})

	return p.kicks
}

// Kick asks a running poller to refresh now instead of at the next tick.
// Kicks that arrive while one is already pending are merged.
func (p *Poller) Kick() {
	select {
	case p.kicked() <- struct{}{}:
	default:
	}
}

// Run polls immediately and then every Interval, or sooner when kicked,
// until ctx is done. Errors are logged and the previous view is kept.
func (p *Poller) Run(ctx context.Context) error {
	interval := p.Interval
	if interval <= 0 {
		interval = PollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	kicks := p.kicked()

	for {
		if err := p.Poll(ctx); err != nil && ctx.Err() == nil && p.Logf != nil {
			p.Logf("POLL: refresh failed: %v", err)
		}

		select {
		case <-ticker.C:
		case <-kicks:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
