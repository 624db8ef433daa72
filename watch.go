/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Seednode/globetrotter/player"
	"github.com/Seednode/globetrotter/wire"
)

type watchConfig struct {
	server   string
	room     string
	username string
	refresh  time.Duration
	verbose  bool
}

func (c *watchConfig) validate() error {
	u, err := url.Parse(c.server)
	if err != nil {
		return fmt.Errorf("invalid server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid server url (must be http or https): %s", c.server)
	}
	if c.refresh <= 0 {
		return errors.New("refresh interval must be positive")
	}
	return nil
}

func (c *watchConfig) logf(format string, args ...any) {
	if !c.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

// websocketURL maps the server's http(s) base to its websocket endpoint.
func websocketURL(server string) (string, error) {
	u, err := url.Parse(strings.TrimSuffix(server, "/"))
	if err != nil {
		return "", err
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += "/ws"

	return u.String(), nil
}

func formatLeaderboard(scope string, board []wire.PlayerScore) string {
	var b strings.Builder

	if scope == "" {
		scope = "everyone"
	}
	fmt.Fprintf(&b, "%s | leaderboard (%s)\n", time.Now().Format(logDate), scope)

	for i, s := range board {
		fmt.Fprintf(&b, "%3d. %-24s %4d correct %4d incorrect\n", i+1, s.Username, s.Correct, s.Incorrect)
	}

	return b.String()
}

func watch(ctx context.Context, wc *watchConfig, out io.Writer) error {
	wsURL, err := websocketURL(wc.server)
	if err != nil {
		return err
	}

	client := player.NewScoreClient(wc.server)

	username := wire.Normalize(wc.username)
	if username == "" {
		username = player.GuestName()
	}

	if err := client.RegisterUser(ctx, username); err != nil {
		return fmt.Errorf("registering %s: %w", username, err)
	}

	p := player.New(username, player.NewSession(wsURL, wc.logf), client)
	defer p.Close()

	room := wire.Normalize(wc.room)

	p.View.OnJoin = func(name string) {
		wc.logf("ROOMS: %s joined", name)
	}

	p.Session.OnState(func(state player.State) {
		wc.logf("SESSION: %s", state)

		if state == player.Connected && room != "" {
			if err := p.Join(room); err != nil {
				wc.logf("SESSION: joining %s failed: %v", room, err)
			}
		}
	})

	// scope the first poll before the session has joined
	p.View.SetRoom(room)

	if err := p.Session.Connect(ctx); err != nil {
		return err
	}

	go func() {
		_ = p.Poller(wc.logf).Run(ctx)
	}()

	ticker := time.NewTicker(wc.refresh)
	defer ticker.Stop()

	var last []wire.PlayerScore
	for {
		select {
		case <-ticker.C:
			board := p.View.Leaderboard()
			if slices.Equal(board, last) {
				continue
			}
			last = board

			if _, err := io.WriteString(out, formatLeaderboard(p.View.Room(), board)); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func newWatchCmd() *cobra.Command {
	wc := &watchConfig{}
	v := newViper()

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a room's leaderboard from the terminal.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := wc.validate(); err != nil {
				return err
			}
			return watch(cmd.Context(), wc, cmd.OutOrStdout())
		},
	}

	fs := cmd.Flags()

	fs.StringVarP(&wc.server, "server", "s", "http://localhost:8080", "base url of the server (env: GLOBETROTTER_SERVER)")
	fs.StringVarP(&wc.room, "room", "r", "", "room to join; the global leaderboard when empty (env: GLOBETROTTER_ROOM)")
	fs.StringVarP(&wc.username, "username", "u", "", "name to join as; a guest name when empty (env: GLOBETROTTER_USERNAME)")
	fs.DurationVar(&wc.refresh, "refresh", time.Second, "how often to redraw the leaderboard (env: GLOBETROTTER_REFRESH)")
	fs.BoolVarP(&wc.verbose, "verbose", "v", false, "display additional output (env: GLOBETROTTER_VERBOSE)")

	bindEnv(v, fs)

	return cmd
}
