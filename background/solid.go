package background

import (
	"context"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Solid keys out one color.
//
// A pixel is background when every channel is within Tolerance of Color:
// |R-r| <= t && |G-g| <= t && |B-b| <= t. This is the per-channel (Chebyshev)
// distance, not the Euclidean one; a tolerance of 10 accepts (245, 245, 245)
// against white but rejects (244, 255, 255).
type Solid struct {
	Color     color.NRGBA
	Tolerance uint8
}

func (s *Solid) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return KeyColor(img, s.Color, s.Tolerance), nil
}

// IsBackground applies the per-channel tolerance rule to c.
func IsBackground(c, target color.NRGBA, tolerance uint8) bool {
	t := int(tolerance)
	return absDiff(c.R, target.R) <= t &&
		absDiff(c.G, target.G) <= t &&
		absDiff(c.B, target.B) <= t
}

// KeyColor copies img into a new NRGBA image and sets alpha to 0 on every
// background pixel. RGB is left untouched so edges keep their color, and the
// alpha of every other pixel is preserved.
func KeyColor(img image.Image, target color.NRGBA, tolerance uint8) *image.NRGBA {
	dst := imaging.Clone(img)
	t := int(tolerance)
	w, h := dst.Rect.Dx(), dst.Rect.Dy()
	for y := 0; y < h; y++ {
		i := y * dst.Stride
		for x := 0; x < w; x++ {
			px := dst.Pix[i : i+4 : i+4]
			if absDiff(px[0], target.R) <= t && absDiff(px[1], target.G) <= t && absDiff(px[2], target.B) <= t {
				px[3] = 0
			}
			i += 4
		}
	}
	return dst
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
