package content

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoDestinations = `
destinations:
  - id: a
    name: Alpha
    clues: [first, second]
    facts: [only fact]
  - id: b
    name: Beta
    clues: [one]
    facts: [f1, f2]
`

func TestDefault_LoadsBuiltInCatalog(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Equal(t, 8, c.Len())

	d, err := c.Destination(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "Eiffel Tower", d.Name)
	assert.Len(t, d.Clues, 3)
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]string{
		"empty":         "destinations: []\n",
		"unknown field": "destinations:\n  - id: a\n    name: A\n    clue: [x]\n    facts: [y]\n",
		"no clues":      "destinations:\n  - id: a\n    name: A\n    clues: []\n    facts: [y]\n",
		"missing name":  "destinations:\n  - id: a\n    clues: [x]\n    facts: [y]\n",
		"duplicate id":  "destinations:\n  - {id: a, name: A, clues: [x], facts: [y]}\n  - {id: a, name: B, clues: [x], facts: [y]}\n",
		"not yaml":      "destinations: [",
	}

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(data))
			assert.Error(t, err)
		})
	}

	_, err := Parse([]byte("destinations: []\n"))
	assert.ErrorIs(t, err, ErrEmptyCatalog)
}

func TestLoad_FileOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.yaml")
	require.NoError(t, os.WriteFile(path, []byte(twoDestinations), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestCatalog_RandomOptions(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	ctx := context.Background()

	correct, err := c.Destination(ctx, "3")
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		opts, err := c.RandomOptions(ctx, correct, DefaultOptions)
		require.NoError(t, err)
		require.Len(t, opts, DefaultOptions)
		assert.Contains(t, opts, Option{ID: "3", Name: "Statue of Liberty"})

		seen := make(map[string]bool)
		for _, o := range opts {
			assert.False(t, seen[o.ID], "duplicate option %s", o.ID)
			seen[o.ID] = true
		}
	}
}

func TestCatalog_RandomOptionsSmallCatalog(t *testing.T) {
	c, err := Parse([]byte(twoDestinations))
	require.NoError(t, err)
	ctx := context.Background()

	a, err := c.Destination(ctx, "a")
	require.NoError(t, err)

	opts, err := c.RandomOptions(ctx, a, 4)
	require.NoError(t, err)
	assert.ElementsMatch(t, []Option{{ID: "a", Name: "Alpha"}, {ID: "b", Name: "Beta"}}, opts)

	opts, err = c.RandomOptions(ctx, a, 0)
	require.NoError(t, err)
	assert.Equal(t, []Option{{ID: "a", Name: "Alpha"}}, opts)

	_, err = c.RandomOptions(ctx, Destination{ID: "zzz"}, 4)
	assert.ErrorIs(t, err, ErrUnknownDestination)
}

func TestCatalog_ClueByIndex(t *testing.T) {
	c, err := Parse([]byte(twoDestinations))
	require.NoError(t, err)
	ctx := context.Background()

	a, err := c.Destination(ctx, "a")
	require.NoError(t, err)

	clue, err := c.ClueByIndex(ctx, a, 1)
	require.NoError(t, err)
	assert.Equal(t, "second", clue)

	_, err = c.ClueByIndex(ctx, a, 2)
	assert.ErrorIs(t, err, ErrClueIndex)
	_, err = c.ClueByIndex(ctx, a, -1)
	assert.ErrorIs(t, err, ErrClueIndex)
}

func TestCatalog_RandomFactAndDestination(t *testing.T) {
	c, err := Parse([]byte(twoDestinations))
	require.NoError(t, err)
	ctx := context.Background()

	b, err := c.Destination(ctx, "b")
	require.NoError(t, err)

	fact, err := c.RandomFact(ctx, b)
	require.NoError(t, err)
	assert.Contains(t, []string{"f1", "f2"}, fact)

	d, err := c.RandomDestination(ctx)
	require.NoError(t, err)
	assert.Contains(t, []string{"a", "b"}, d.ID)

	_, err = c.Destination(ctx, "nope")
	assert.ErrorIs(t, err, ErrUnknownDestination)
}

func TestCatalog_CanceledContext(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = c.RandomDestination(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewQuestion(t *testing.T) {
	c, err := Parse([]byte(twoDestinations))
	require.NoError(t, err)

	q, err := NewQuestion(context.Background(), c, DefaultOptions)
	require.NoError(t, err)

	d, err := c.Destination(context.Background(), q.DestinationID)
	require.NoError(t, err)

	assert.Equal(t, d.Clues[0], q.Clue)
	assert.Equal(t, len(d.Clues), q.ClueCount)
	assert.Contains(t, d.Facts, q.Fact)
	assert.Contains(t, q.Options, Option{ID: d.ID, Name: d.Name})
}
