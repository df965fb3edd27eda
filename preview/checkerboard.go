package preview

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// CheckerTile is the side of one checkerboard square in pixels.
const CheckerTile = 8

var (
	checkerGray  = color.NRGBA{R: 0xe0, G: 0xe0, B: 0xe0, A: 0xff}
	checkerWhite = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	opaqueBlack  = color.NRGBA{A: 0xff}
)

// Checkerboard synthesizes a w×h light-gray/white pattern; the top-left square is gray.
func Checkerboard(w, h, tile int) *image.NRGBA {
	if tile <= 0 {
		tile = CheckerTile
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := checkerWhite
			if (x/tile+y/tile)%2 == 0 {
				c = checkerGray
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// OnCheckerboard composites frame over a checkerboard of the same size.
func OnCheckerboard(frame image.Image) *image.NRGBA {
	size := frame.Bounds().Size()
	return imaging.Overlay(Checkerboard(size.X, size.Y, CheckerTile), frame, image.Pt(0, 0), 1.0)
}

// OnColor composites frame over an opaque fill.
func OnColor(frame image.Image, c color.Color) *image.NRGBA {
	size := frame.Bounds().Size()
	return imaging.Overlay(imaging.New(size.X, size.Y, c), frame, image.Pt(0, 0), 1.0)
}
