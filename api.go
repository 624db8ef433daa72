/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"github.com/Seednode/globetrotter/content"
	"github.com/Seednode/globetrotter/player"
	"github.com/Seednode/globetrotter/rooms"
	"github.com/Seednode/globetrotter/wire"
)

const (
	identityCookieName = "globetrotter_user"
	maxBodySize        = 4096
)

var errEmptyUsername = errors.New("username is required")

// getIdentity returns the username stored for this browser, or "".
func getIdentity(r *http.Request) string {
	c, err := r.Cookie(identityCookieName)
	if err != nil || c.Value == "" {
		return ""
	}

	username, err := url.QueryUnescape(c.Value)
	if err != nil {
		return ""
	}

	return wire.Normalize(username)
}

func setIdentity(cfg *Config, w http.ResponseWriter, username string) {
	http.SetCookie(w, &http.Cookie{
		Name:     identityCookieName,
		Value:    url.QueryEscape(username),
		Path:     cfg.prefix + "/",
		HttpOnly: true,
		Secure:   cfg.scheme() == "https",
		SameSite: http.SameSiteLaxMode,
	})
}

// decodeBody reads a JSON body into v and checks its validate tags.
func decodeBody(r *http.Request, v any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("invalid body: %w", err)
	}

	if err := wire.Struct(v); err != nil {
		return fmt.Errorf("invalid body: %w", err)
	}

	return nil
}

type registerRequest struct {
	Username string `json:"username" validate:"required,max=64"`
}

type identityResponse struct {
	Username string `json:"username"`
	Guest    bool   `json:"guest"`
}

func serveAllScores(cfg *Config, store *rooms.ScoreStore, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		serveJSON(cfg, w, r, http.StatusOK, "All scores", store.All(), errs)
	}
}

func serveScore(cfg *Config, store *rooms.ScoreStore, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		username := wire.Normalize(p.ByName("username"))
		if username == "" {
			serveError(cfg, w, r, http.StatusBadRequest, errEmptyUsername, errs)

			return
		}

		serveJSON(cfg, w, r, http.StatusOK, "Score for "+username, store.Score(username), errs)
	}
}

func saveScore(cfg *Config, store *rooms.ScoreStore, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req player.SaveRequest
		if err := decodeBody(r, &req); err != nil {
			serveError(cfg, w, r, http.StatusBadRequest, err, errs)

			return
		}

		username := wire.Normalize(req.Username)
		if username == "" {
			serveError(cfg, w, r, http.StatusBadRequest, errEmptyUsername, errs)

			return
		}

		score := store.Save(username, req.Correct, wire.Normalize(req.RoomID))

		logf(cfg, "SCORES: %s answered (correct: %t), now %d/%d", username, req.Correct, score.Correct, score.Total)

		serveJSON(cfg, w, r, http.StatusOK, "Saved score for "+username, score, errs)
	}
}

func registerUser(cfg *Config, store *rooms.ScoreStore, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req registerRequest
		if err := decodeBody(r, &req); err != nil {
			serveError(cfg, w, r, http.StatusBadRequest, err, errs)

			return
		}

		username := wire.Normalize(req.Username)
		if username == "" {
			serveError(cfg, w, r, http.StatusBadRequest, errEmptyUsername, errs)

			return
		}

		store.Register(username)
		setIdentity(cfg, w, username)

		logf(cfg, "SCORES: Registered %s", username)

		serveJSON(cfg, w, r, http.StatusCreated, "Registered "+username, store.Score(username), errs)
	}
}

// serveIdentity reports who this browser plays as. Arriving with an
// inviter and no stored name creates and remembers a guest.
func serveIdentity(cfg *Config, store *rooms.ScoreStore, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		stored := getIdentity(r)
		username := player.ResolveIdentity(stored, r.URL.Query().Get("inviter"))

		guest := username != "" && username != stored
		if guest {
			store.Register(username)
			setIdentity(cfg, w, username)

			logf(cfg, "SCORES: Created guest %s", username)
		}

		serveJSON(cfg, w, r, http.StatusOK, "Identity", identityResponse{Username: username, Guest: guest}, errs)
	}
}

func serveRoomScores(cfg *Config, store *rooms.ScoreStore, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		roomID := wire.Normalize(p.ByName("roomid"))

		serveJSON(cfg, w, r, http.StatusOK, "Scores for room "+roomID, store.Room(roomID), errs)
	}
}

func registerScoreAPI(cfg *Config, mux *httprouter.Router, manager *rooms.Manager, errs chan<- error) {
	store := manager.Store()

	mux.GET(cfg.prefix+"/api/scores", serveAllScores(cfg, store, errs))
	mux.POST(cfg.prefix+"/api/scores", saveScore(cfg, store, errs))
	mux.GET(cfg.prefix+"/api/scores/:username", serveScore(cfg, store, errs))
	mux.POST(cfg.prefix+"/api/users", registerUser(cfg, store, errs))
	mux.GET(cfg.prefix+"/api/identity", serveIdentity(cfg, store, errs))
	mux.GET(cfg.prefix+"/api/rooms/:roomid/scores", serveRoomScores(cfg, store, errs))
}

type clueResponse struct {
	DestinationID string `json:"destinationId"`
	Index         int    `json:"index"`
	Clue          string `json:"clue"`
}

// contentStatus maps a content lookup failure to a response code.
func contentStatus(err error) int {
	switch {
	case errors.Is(err, content.ErrUnknownDestination), errors.Is(err, content.ErrClueIndex):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func serveQuestion(cfg *Config, catalog content.Provider, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		q, err := content.NewQuestion(r.Context(), catalog, content.DefaultOptions)
		if err != nil {
			serveError(cfg, w, r, contentStatus(err), err, errs)

			return
		}

		serveJSON(cfg, w, r, http.StatusOK, "Question", q, errs)
	}
}

func serveClue(cfg *Config, catalog content.Provider, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		index, err := strconv.Atoi(p.ByName("index"))
		if err != nil {
			serveError(cfg, w, r, http.StatusBadRequest, fmt.Errorf("invalid clue index: %w", err), errs)

			return
		}

		d, err := catalog.Destination(r.Context(), p.ByName("id"))
		if err != nil {
			serveError(cfg, w, r, contentStatus(err), err, errs)

			return
		}

		clue, err := catalog.ClueByIndex(r.Context(), d, index)
		if err != nil {
			serveError(cfg, w, r, contentStatus(err), err, errs)

			return
		}

		serveJSON(cfg, w, r, http.StatusOK, "Clue", clueResponse{DestinationID: d.ID, Index: index, Clue: clue}, errs)
	}
}

func registerContentAPI(cfg *Config, mux *httprouter.Router, catalog content.Provider, errs chan<- error) {
	mux.GET(cfg.prefix+"/api/question", serveQuestion(cfg, catalog, errs))
	mux.GET(cfg.prefix+"/api/destinations/:id/clues/:index", serveClue(cfg, catalog, errs))
}
