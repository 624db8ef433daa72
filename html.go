/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/Seednode/globetrotter/player"
	"github.com/Seednode/globetrotter/rooms"
)

func homePage(cfg *Config, username, inviter string) string {
	var body strings.Builder

	body.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	body.WriteString(`<meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1">`)
	body.WriteString(`<title>globetrotter</title></head><body>`)
	body.WriteString(`<h1>globetrotter</h1>`)

	switch {
	case username != "" && inviter != "":
		body.WriteString(fmt.Sprintf("<p>Playing as <b>%s</b>. Beat <b>%s</b>'s score to win the challenge.</p>",
			html.EscapeString(username), html.EscapeString(inviter)))
	case username != "":
		body.WriteString(fmt.Sprintf("<p>Playing as <b>%s</b>.</p>", html.EscapeString(username)))
	default:
		body.WriteString("<p>Pick a username with <code>POST " + cfg.prefix + "/api/users</code> to start playing.</p>")
	}

	body.WriteString(`<ul>`)
	for _, link := range []string{"/api/question", "/api/scores", "/api/status"} {
		body.WriteString(fmt.Sprintf(`<li><a href="%s%s">%s</a></li>`, cfg.prefix, link, link))
	}
	body.WriteString(`</ul>`)
	body.WriteString(fmt.Sprintf("<p>Rooms sync over a websocket at <code>%s/ws</code>.</p>", cfg.prefix))
	body.WriteString(`</body></html>`)

	return body.String()
}

// serveHomePage also backs /game, where invite links land. An invited
// visitor without a stored identity is signed in as a guest.
func serveHomePage(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		inviter := r.URL.Query().Get("inviter")
		username := player.ResolveIdentity(getIdentity(r), inviter)
		if username != "" && username != getIdentity(r) {
			setIdentity(cfg, w, username)
		}

		data := homePage(cfg, username, inviter)

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(cfg, w)

		written, err := w.Write([]byte(data))
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Home page (%s) to %s in %s",
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func serveHealthCheck(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)

		_, err := w.Write([]byte("Ok\n"))
		if err != nil {
			errs <- err

			return
		}
	}
}

type status struct {
	Rooms    int `json:"rooms"`
	Sessions int `json:"sessions"`
	Players  int `json:"players"`
}

func serveStatus(cfg *Config, manager *rooms.Manager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var s status
		s.Rooms, s.Sessions = manager.Stats()
		s.Players = len(manager.Store().All())

		serveJSON(cfg, w, r, http.StatusOK, "Status", s, errs)
	}
}

func serveRobots(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		data := `User-agent: *
Disallow: ` + cfg.prefix + `/api/
Disallow: ` + cfg.prefix + `/challenge/
Disallow: ` + cfg.prefix + `/ws

User-agent: GPTBot
Disallow: /

User-agent: CCBot
Disallow: /
`

		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(cfg, w)

		_, err := w.Write([]byte(data))
		if err != nil {
			errs <- err

			return
		}
	}
}
