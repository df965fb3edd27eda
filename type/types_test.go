package sftypes

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGrid(t *testing.T) {
	cases := map[string]Grid{
		"4":     {Rows: 4, Cols: 4},
		"4x8":   {Rows: 4, Cols: 8},
		"4X8":   {Rows: 4, Cols: 8},
		"4,8":   {Rows: 4, Cols: 8},
		"4 8":   {Rows: 4, Cols: 8},
		" 1x4 ": {Rows: 1, Cols: 4},
		"2 x 3": {Rows: 2, Cols: 3},
		"2, 3":  {Rows: 2, Cols: 3},
		"2×3":   {Rows: 2, Cols: 3},
		"2*3":   {Rows: 2, Cols: 3},
	}
	for in, want := range cases {
		got, err := ParseGrid(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "0", "2x0", "-1", "a", "1x2x3", "4x", "x4", "2x3x", "2xx3", ",4", "4,"} {
		_, err := ParseGrid(bad)
		assert.Error(t, err, bad)
	}
}

func TestGridCells(t *testing.T) {
	g := Grid{Rows: 3, Cols: 5}
	assert.Equal(t, 15, g.Cells())
	assert.Equal(t, "3x5", g.String())
}

func TestParseHexColor(t *testing.T) {
	c, err := ParseHexColor("#FFFFFF")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, c)

	c, err = ParseHexColor("00ff7f")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 0, G: 255, B: 127, A: 255}, c)

	_, err = ParseHexColor("#12345")
	assert.Error(t, err)
	_, err = ParseHexColor("zzzzzz")
	assert.Error(t, err)

	assert.Equal(t, "#00ff7f", HexColor(color.NRGBA{R: 0, G: 255, B: 127, A: 255}))
}

func TestParsePreviewFormat(t *testing.T) {
	for in, want := range map[string]PreviewFormat{
		"":     FormatGIF,
		"GIF":  FormatGIF,
		"apng": FormatAPNG,
		".mp4": FormatMP4,
	} {
		got, err := ParsePreviewFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParsePreviewFormat("webm")
	assert.Error(t, err)
	assert.Equal(t, "mp4", FormatMP4.Ext())
}

func TestEffectiveDuration(t *testing.T) {
	spec := DefaultPreviewSpec()
	spec.Speed = 2
	d, err := spec.EffectiveDuration()
	require.NoError(t, err)
	assert.Equal(t, 50*time.Millisecond, d)

	spec.Speed = 0.5
	d, err = spec.EffectiveDuration()
	require.NoError(t, err)
	assert.Equal(t, 200*time.Millisecond, d)

	for _, bad := range []PreviewSpec{
		{Format: FormatGIF, DurationMS: 100, Speed: 0},
		{Format: FormatGIF, DurationMS: 100, Speed: -1},
		{Format: FormatGIF, DurationMS: 0, Speed: 1},
		{Format: FormatGIF, DurationMS: -5, Speed: 1},
	} {
		_, err := bad.EffectiveDuration()
		assert.ErrorIs(t, err, ErrInvalidPreviewSpec)
		assert.Equal(t, KindInvalidPreviewSpec, KindOf(err))
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNone, KindOf(nil))
	assert.Equal(t, KindGridMismatch, KindOf(fmt.Errorf("slicing: %w", ErrGridMismatch)))
	assert.Equal(t, KindCanceled, KindOf(fmt.Errorf("removing: %w", context.Canceled)))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))

	ie := NewInputError("Run.png", fmt.Errorf("%w: Run.png", ErrInputNotFound))
	assert.Equal(t, KindInputNotFound, ie.Kind)
	assert.ErrorIs(t, ie, ErrInputNotFound)
	assert.Contains(t, ie.Error(), "Run.png")
	assert.Equal(t, KindInputNotFound, KindOf(fmt.Errorf("wrapped: %w", ie)))
}
