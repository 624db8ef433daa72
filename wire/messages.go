/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package wire defines the JSON messages exchanged between room members
// and the hub.
//
// Every message is a flat envelope tagged by "type":
//
//	{"type":"join_room","roomId":"R1","username":"alice"}
//	{"type":"leave_room","roomId":"R1","username":"alice"}
//	{"type":"score_update","roomId":"R1","score":{...}}
//	{"type":"room_data","roomId":"R1","participants":[...]}
package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Kind is the "type" tag of a message.
type Kind string

const (
	KindJoinRoom    Kind = "join_room"
	KindLeaveRoom   Kind = "leave_room"
	KindScoreUpdate Kind = "score_update"
	KindRoomData    Kind = "room_data"
)

// ErrMalformed is wrapped by every decode failure.
var ErrMalformed = errors.New("malformed message")

var validate = validator.New()

// Message is one of JoinRoom, LeaveRoom, ScoreUpdate or RoomData.
type Message interface {
	Kind() Kind
	Room() string
	isMessage()
}

type JoinRoom struct {
	RoomID   string `json:"roomId" validate:"required,max=64"`
	Username string `json:"username" validate:"required,max=64"`
}

type LeaveRoom struct {
	RoomID   string `json:"roomId" validate:"required,max=64"`
	Username string `json:"username" validate:"required,max=64"`
}

type ScoreUpdate struct {
	RoomID string      `json:"roomId" validate:"required,max=64"`
	Score  PlayerScore `json:"score"`
}

// RoomData is the full snapshot a session receives right after joining.
type RoomData struct {
	RoomID       string        `json:"roomId" validate:"required,max=64"`
	Participants []PlayerScore `json:"participants" validate:"dive"`
}

func (JoinRoom) Kind() Kind    { return KindJoinRoom }
func (LeaveRoom) Kind() Kind   { return KindLeaveRoom }
func (ScoreUpdate) Kind() Kind { return KindScoreUpdate }
func (RoomData) Kind() Kind    { return KindRoomData }

func (m JoinRoom) Room() string    { return m.RoomID }
func (m LeaveRoom) Room() string   { return m.RoomID }
func (m ScoreUpdate) Room() string { return m.RoomID }
func (m RoomData) Room() string    { return m.RoomID }

func (JoinRoom) isMessage()    {}
func (LeaveRoom) isMessage()   {}
func (ScoreUpdate) isMessage() {}
func (RoomData) isMessage()    {}

type envelope struct {
	Type         Kind           `json:"type"`
	RoomID       string         `json:"roomId,omitempty"`
	Username     string         `json:"username,omitempty"`
	Score        *PlayerScore   `json:"score,omitempty"`
	Participants *[]PlayerScore `json:"participants,omitempty"`
}

// Encode renders m as its tagged JSON envelope.
func Encode(m Message) ([]byte, error) {
	env := envelope{Type: m.Kind(), RoomID: m.Room()}

	switch msg := m.(type) {
	case JoinRoom:
		env.Username = msg.Username
	case LeaveRoom:
		env.Username = msg.Username
	case ScoreUpdate:
		score := msg.Score
		env.Score = &score
	case RoomData:
		participants := msg.Participants
		if participants == nil {
			participants = []PlayerScore{}
		}
		env.Participants = &participants
	default:
		return nil, fmt.Errorf("encode: unsupported message %T", m)
	}

	return json.Marshal(env)
}

// Decode parses and validates one envelope. Any failure wraps ErrMalformed.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	roomID := Normalize(env.RoomID)

	var msg Message
	switch env.Type {
	case KindJoinRoom:
		msg = JoinRoom{RoomID: roomID, Username: Normalize(env.Username)}
	case KindLeaveRoom:
		msg = LeaveRoom{RoomID: roomID, Username: Normalize(env.Username)}
	case KindScoreUpdate:
		if env.Score == nil {
			return nil, fmt.Errorf("%w: score_update without score", ErrMalformed)
		}
		score := *env.Score
		score.Username = Normalize(score.Username)
		if !score.Valid() {
			return nil, fmt.Errorf("%w: inconsistent score for %q", ErrMalformed, score.Username)
		}
		msg = ScoreUpdate{RoomID: roomID, Score: score}
	case KindRoomData:
		var participants []PlayerScore
		if env.Participants != nil {
			participants = *env.Participants
		}
		for i := range participants {
			participants[i].Username = Normalize(participants[i].Username)
		}
		msg = RoomData{RoomID: roomID, Participants: participants}
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformed, env.Type)
	}

	if err := validate.Struct(msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return msg, nil
}

// Struct validates an API body against its validate tags.
func Struct(v any) error {
	return validate.Struct(v)
}
