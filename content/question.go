/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package content

import "context"

// DefaultOptions is how many choices a question offers.
const DefaultOptions = 4

// Question is one round: the first clue, the options and a fact revealed
// after answering.
type Question struct {
	DestinationID string   `json:"destinationId"`
	Clue          string   `json:"clue"`
	ClueCount     int      `json:"clueCount"`
	Options       []Option `json:"options"`
	Fact          string   `json:"fact"`
}

// NewQuestion draws a random destination from p and builds a round for it.
func NewQuestion(ctx context.Context, p Provider, options int) (Question, error) {
	d, err := p.RandomDestination(ctx)
	if err != nil {
		return Question{}, err
	}

	clue, err := p.ClueByIndex(ctx, d, 0)
	if err != nil {
		return Question{}, err
	}

	opts, err := p.RandomOptions(ctx, d, options)
	if err != nil {
		return Question{}, err
	}

	fact, err := p.RandomFact(ctx, d)
	if err != nil {
		return Question{}, err
	}

	return Question{
		DestinationID: d.ID,
		Clue:          clue,
		ClueCount:     len(d.Clues),
		Options:       opts,
		Fact:          fact,
	}, nil
}
