/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package wire

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// PlayerScore is the complete counter set for one identity. It always
// travels whole; receivers replace rather than merge.
type PlayerScore struct {
	Username  string `json:"username" validate:"required,max=64"`
	Correct   int    `json:"correct" validate:"gte=0"`
	Incorrect int    `json:"incorrect" validate:"gte=0"`
	Total     int    `json:"total" validate:"gte=0"`
}

// ZeroScore returns the default record for a player with no answers yet.
func ZeroScore(username string) PlayerScore {
	return PlayerScore{Username: username}
}

// Valid reports whether the counters are internally consistent.
func (s PlayerScore) Valid() bool {
	return s.Username != "" &&
		s.Correct >= 0 &&
		s.Incorrect >= 0 &&
		s.Total == s.Correct+s.Incorrect
}

// Ahead reports whether s could follow other: neither counter is lower.
// Counters only grow, so anything else is stale or forged.
func (s PlayerScore) Ahead(other PlayerScore) bool {
	return s.Correct >= other.Correct && s.Incorrect >= other.Incorrect
}

// Normalize trims and NFC-normalizes a username or room id so that
// visually identical strings collapse to one key.
func Normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
