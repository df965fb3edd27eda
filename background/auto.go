package background

import (
	"context"
	"image"
	"image/color"

	sftypes "sheet2frames/type"

	"github.com/cenkalti/dominantcolor"
	"github.com/sirupsen/logrus"
)

// AutoColor estimates the background from the sheet border and keys it out.
type AutoColor struct {
	Tolerance uint8
	log       logrus.FieldLogger
}

func (a *AutoColor) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bg := EstimateBackground(img)
	if a.log != nil {
		a.log.WithFields(logrus.Fields{
			"color":     sftypes.HexColor(bg),
			"tolerance": a.Tolerance,
		}).Debug("Estimated background color")
	}
	return KeyColor(img, bg, a.Tolerance), nil
}

// EstimateBackground returns the color of the sheet's outer 1-pixel ring.
// When one exact color covers at least half of the ring it wins outright;
// noisy borders fall back to the heaviest dominantcolor cluster.
func EstimateBackground(img image.Image) color.NRGBA {
	ring := borderRing(img)
	if len(ring.Pix) == 0 {
		return color.NRGBA{A: 0xff}
	}

	counts := make(map[color.NRGBA]int)
	var top color.NRGBA
	topN := 0
	for i := 0; i < len(ring.Pix); i += 4 {
		c := color.NRGBA{R: ring.Pix[i], G: ring.Pix[i+1], B: ring.Pix[i+2], A: 0xff}
		counts[c]++
		if counts[c] > topN {
			top, topN = c, counts[c]
		}
	}
	if topN*2 >= len(ring.Pix)/4 {
		return top
	}

	best := top
	bestW := -1.0
	for _, c := range dominantcolor.FindWeight(ring, 3) {
		if c.Weight > bestW {
			bestW = c.Weight
			best = color.NRGBA{R: c.RGBA.R, G: c.RGBA.G, B: c.RGBA.B, A: 0xff}
		}
	}
	return best
}

// borderRing flattens the outermost pixels of img into a 1-pixel-high strip.
func borderRing(img image.Image) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return image.NewNRGBA(image.Rect(0, 0, 0, 0))
	}

	var pts []image.Point
	for x := b.Min.X; x < b.Max.X; x++ {
		pts = append(pts, image.Pt(x, b.Min.Y))
		if h > 1 {
			pts = append(pts, image.Pt(x, b.Max.Y-1))
		}
	}
	for y := b.Min.Y + 1; y < b.Max.Y-1; y++ {
		pts = append(pts, image.Pt(b.Min.X, y))
		if w > 1 {
			pts = append(pts, image.Pt(b.Max.X-1, y))
		}
	}

	ring := image.NewNRGBA(image.Rect(0, 0, len(pts), 1))
	for i, p := range pts {
		ring.Set(i, 0, img.At(p.X, p.Y))
	}
	return ring
}
