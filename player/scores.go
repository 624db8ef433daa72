/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package player

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Seednode/globetrotter/wire"
)

// Scores is the score table as the client sees it, local or remote.
type Scores interface {
	SaveScore(ctx context.Context, username string, correct bool, roomID string) (wire.PlayerScore, error)
	Score(ctx context.Context, username string) (wire.PlayerScore, error)
	AllScores(ctx context.Context) ([]wire.PlayerScore, error)
	RoomScores(ctx context.Context, roomID string) ([]wire.PlayerScore, error)
}

// LocalStore is the method set of an in-process score table.
type LocalStore interface {
	Save(username string, correct bool, roomID string) wire.PlayerScore
	Score(username string) wire.PlayerScore
	All() []wire.PlayerScore
	Room(roomID string) []wire.PlayerScore
}

type localScores struct {
	store LocalStore
}

// Local adapts an in-process store to Scores.
func Local(store LocalStore) Scores {
	return localScores{store: store}
}

func (l localScores) SaveScore(_ context.Context, username string, correct bool, roomID string) (wire.PlayerScore, error) {
	return l.store.Save(username, correct, roomID), nil
}

func (l localScores) Score(_ context.Context, username string) (wire.PlayerScore, error) {
	return l.store.Score(username), nil
}

func (l localScores) AllScores(context.Context) ([]wire.PlayerScore, error) {
	return l.store.All(), nil
}

func (l localScores) RoomScores(_ context.Context, roomID string) ([]wire.PlayerScore, error) {
	return l.store.Room(roomID), nil
}

// SaveRequest is the body of POST /api/scores.
type SaveRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Correct  bool   `json:"correct"`
	RoomID   string `json:"roomId,omitempty" validate:"max=64"`
}

// ScoreClient talks to the server's score endpoints.
type ScoreClient struct {
	base string
	http *http.Client
}

// NewScoreClient targets the server at base, e.g. "http://localhost:8080".
func NewScoreClient(base string) *ScoreClient {
	return &ScoreClient{
		base: strings.TrimSuffix(base, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *ScoreClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *ScoreClient) SaveScore(ctx context.Context, username string, correct bool, roomID string) (wire.PlayerScore, error) {
	var score wire.PlayerScore
	err := c.do(ctx, http.MethodPost, "/api/scores", SaveRequest{
		Username: username,
		Correct:  correct,
		RoomID:   roomID,
	}, &score)

	return score, err
}

func (c *ScoreClient) Score(ctx context.Context, username string) (wire.PlayerScore, error) {
	var score wire.PlayerScore
	err := c.do(ctx, http.MethodGet, "/api/scores/"+url.PathEscape(username), nil, &score)

	return score, err
}

func (c *ScoreClient) AllScores(ctx context.Context) ([]wire.PlayerScore, error) {
	var scores []wire.PlayerScore
	err := c.do(ctx, http.MethodGet, "/api/scores", nil, &scores)

	return scores, err
}

func (c *ScoreClient) RoomScores(ctx context.Context, roomID string) ([]wire.PlayerScore, error) {
	var scores []wire.PlayerScore
	err := c.do(ctx, http.MethodGet, "/api/rooms/"+url.PathEscape(roomID)+"/scores", nil, &scores)

	return scores, err
}

// RegisterUser creates the player's zero record on the server.
func (c *ScoreClient) RegisterUser(ctx context.Context, username string) error {
	return c.do(ctx, http.MethodPost, "/api/users", map[string]string{"username": username}, nil)
}
