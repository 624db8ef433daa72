/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/globetrotter/wire"
)

const qrSize = 320

// challengePath is where an invite for username lands, relative to the host.
func challengePath(cfg *Config, username string) string {
	return cfg.prefix + "/game?inviter=" + url.QueryEscape(username)
}

// challengeURL is the absolute invite link, honoring TLS and X-Forwarded-Proto.
func challengeURL(cfg *Config, r *http.Request, username string) string {
	scheme := cfg.scheme()
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}

	return scheme + "://" + r.Host + challengePath(cfg, username)
}

func serveChallenge(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		username := wire.Normalize(p.ByName("username"))
		if username == "" {
			serveError(cfg, w, r, http.StatusBadRequest, errors.New("missing inviter"), errs)

			return
		}

		logf(cfg, "SERVE: Challenge from %s to %s", username, realIP(r))

		http.Redirect(w, r, challengePath(cfg, username), http.StatusTemporaryRedirect)
	}
}

func serveChallengeQR(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		username := wire.Normalize(p.ByName("username"))
		if username == "" {
			serveError(cfg, w, r, http.StatusBadRequest, errors.New("missing inviter"), errs)

			return
		}

		png, err := qrcode.Encode(challengeURL(cfg, r, username), qrcode.Medium, qrSize)
		if err != nil {
			serveError(cfg, w, r, http.StatusInternalServerError, err, errs)

			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Content-Length", strconv.Itoa(len(png)))
		securityHeaders(cfg, w)

		written, err := w.Write(png)
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Challenge QR for %s (%s) to %s in %s",
			username,
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func registerChallenge(cfg *Config, mux *httprouter.Router, errs chan<- error) {
	mux.GET(cfg.prefix+"/challenge/:username", serveChallenge(cfg, errs))
	mux.GET(cfg.prefix+"/challenge/:username/qr", serveChallengeQR(cfg, errs))
}
