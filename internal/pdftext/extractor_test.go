package pdftext

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource replays a fixed event list and records how far it got.
type fakeSource struct {
	items     []Item
	failAfter int // emit an error after this many items; 0 = never
	err       error
	delivered int
}

func (f *fakeSource) Items(_ context.Context, _ string, fn func(Item) error) error {
	for i, it := range f.items {
		if f.failAfter > 0 && i == f.failAfter {
			return f.err
		}
		f.delivered++
		if err := fn(it); err != nil {
			return stopOrErr(err)
		}
	}
	return nil
}

func TestExtractor_Extract(t *testing.T) {
	t.Run("single page returns every token in order", func(t *testing.T) {
		src := &fakeSource{items: []Item{
			{Page: 1},
			{Text: "Policy Number:"},
			{Text: "271000312419057199"},
			{Text: "Issued Date 04/12/2023"},
		}}
		res, err := NewExtractor(src, nil).Extract(context.Background(), "doc.pdf")

		require.NoError(t, err)
		assert.Equal(t, []string{"Policy Number:", "271000312419057199", "Issued Date 04/12/2023"}, res.Tokens)
	})

	t.Run("tokens after the second page marker are excluded", func(t *testing.T) {
		src := &fakeSource{items: []Item{
			{Page: 1},
			{Text: "first"},
			{Page: 2},
			{Text: "second"},
			{Page: 3},
			{Text: "third"},
		}}
		res, err := NewExtractor(src, nil).Extract(context.Background(), "doc.pdf")

		require.NoError(t, err)
		assert.Equal(t, []string{"first"}, res.Tokens)
		assert.Equal(t, 3, src.delivered, "source should stop once page 2 starts")
		assert.Equal(t, 2, res.Pages)
	})

	t.Run("page count comes from the first marker", func(t *testing.T) {
		src := &fakeSource{items: []Item{
			{Page: 1, Pages: 7},
			{Text: "cover"},
			{Page: 2, Pages: 7},
		}}
		res, err := NewExtractor(src, nil).Extract(context.Background(), "doc.pdf")

		require.NoError(t, err)
		assert.Equal(t, 7, res.Pages)
	})

	t.Run("item carrying both page and text", func(t *testing.T) {
		src := &fakeSource{items: []Item{
			{Page: 1, Text: "a"},
			{Page: 2, Text: "b"},
		}}
		res, err := NewExtractor(src, nil).Extract(context.Background(), "doc.pdf")

		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, res.Tokens)
	})

	t.Run("text before any page marker counts as page one", func(t *testing.T) {
		src := &fakeSource{items: []Item{{Text: "preamble"}, {Page: 1}, {Text: "body"}}}
		res, err := NewExtractor(src, nil).Extract(context.Background(), "doc.pdf")

		require.NoError(t, err)
		assert.Equal(t, []string{"preamble", "body"}, res.Tokens)
		assert.Equal(t, 1, res.Pages)
	})

	t.Run("empty document", func(t *testing.T) {
		res, err := NewExtractor(&fakeSource{}, nil).Extract(context.Background(), "doc.pdf")

		require.NoError(t, err)
		assert.Empty(t, res.Tokens)
		assert.Zero(t, res.Pages)
	})

	t.Run("parse error discards partial tokens", func(t *testing.T) {
		boom := errors.New("bad xref")
		src := &fakeSource{
			items:     []Item{{Page: 1}, {Text: "partial"}, {Text: "never"}},
			failAfter: 2,
			err:       boom,
		}
		res, err := NewExtractor(src, nil).Extract(context.Background(), "doc.pdf")

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrParse)
		assert.ErrorIs(t, err, boom)
		assert.Nil(t, res.Tokens)
	})
}
