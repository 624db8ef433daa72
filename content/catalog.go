/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package content serves the trivia side of the game: destinations, their
// clues and facts, and the multiple-choice options shown with each question.
package content

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math/rand"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed destinations.yaml
var defaultCatalog []byte

var (
	ErrEmptyCatalog       = errors.New("content catalog has no destinations")
	ErrClueIndex          = errors.New("clue index out of range")
	ErrUnknownDestination = errors.New("unknown destination")
)

type Destination struct {
	ID    string   `yaml:"id" json:"id" validate:"required"`
	Name  string   `yaml:"name" json:"name" validate:"required"`
	Image string   `yaml:"image,omitempty" json:"image,omitempty" validate:"omitempty,url"`
	Clues []string `yaml:"clues" json:"-" validate:"min=1,dive,required"`
	Facts []string `yaml:"facts" json:"-" validate:"min=1,dive,required"`
}

// Option is one multiple-choice answer. It carries no clues or facts so a
// client cannot read the answer out of the option list.
type Option struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Provider is the content source the game screens draw from.
type Provider interface {
	RandomDestination(ctx context.Context) (Destination, error)
	RandomOptions(ctx context.Context, correct Destination, count int) ([]Option, error)
	ClueByIndex(ctx context.Context, d Destination, index int) (string, error)
	RandomFact(ctx context.Context, d Destination) (string, error)
	Destination(ctx context.Context, id string) (Destination, error)
}

type catalogFile struct {
	Destinations []Destination `yaml:"destinations" validate:"dive"`
}

// Catalog is an immutable, in-memory Provider.
type Catalog struct {
	destinations []Destination
	byID         map[string]int
}

// Default returns the catalog shipped with the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog from path, or the built-in one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read content file: %w", err)
	}

	return Parse(data)
}

// Parse decodes and validates a YAML catalog. Unknown fields are rejected.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse content: %w", err)
	}

	if err := validator.New().Struct(file); err != nil {
		return nil, fmt.Errorf("invalid content: %w", err)
	}

	if len(file.Destinations) == 0 {
		return nil, ErrEmptyCatalog
	}

	c := &Catalog{
		destinations: file.Destinations,
		byID:         make(map[string]int, len(file.Destinations)),
	}

	for i, d := range file.Destinations {
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("invalid content: duplicate destination id %q", d.ID)
		}
		c.byID[d.ID] = i
	}

	return c, nil
}

func (c *Catalog) Len() int {
	return len(c.destinations)
}

func (c *Catalog) Destination(_ context.Context, id string) (Destination, error) {
	i, ok := c.byID[id]
	if !ok {
		return Destination{}, fmt.Errorf("%w: %q", ErrUnknownDestination, id)
	}

	return c.destinations[i], nil
}

func (c *Catalog) RandomDestination(ctx context.Context) (Destination, error) {
	if err := ctx.Err(); err != nil {
		return Destination{}, err
	}

	return c.destinations[rand.Intn(len(c.destinations))], nil
}

// RandomOptions returns up to count options in random order, always
// including correct. count below 1 is treated as 1.
func (c *Catalog) RandomOptions(ctx context.Context, correct Destination, count int) ([]Option, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, ok := c.byID[correct.ID]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDestination, correct.ID)
	}

	count = max(count, 1)

	others := make([]Option, 0, len(c.destinations)-1)
	for _, d := range c.destinations {
		if d.ID != correct.ID {
			others = append(others, Option{ID: d.ID, Name: d.Name})
		}
	}
	rand.Shuffle(len(others), func(i, j int) { others[i], others[j] = others[j], others[i] })

	options := append(others[:min(count-1, len(others))], Option{ID: correct.ID, Name: correct.Name})
	rand.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })

	return options, nil
}

func (c *Catalog) ClueByIndex(ctx context.Context, d Destination, index int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if index < 0 || index >= len(d.Clues) {
		return "", fmt.Errorf("%w: %d of %d", ErrClueIndex, index, len(d.Clues))
	}

	return d.Clues[index], nil
}

func (c *Catalog) RandomFact(ctx context.Context, d Destination) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(d.Facts) == 0 {
		return "", fmt.Errorf("%w: %q has no facts", ErrUnknownDestination, d.ID)
	}

	return d.Facts[rand.Intn(len(d.Facts))], nil
}
