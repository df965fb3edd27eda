package background

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// maskFromPrediction min-max normalizes a size×size saliency map into a gray mask.
func maskFromPrediction(pred []float32, size int) (*image.Gray, error) {
	if len(pred) < size*size {
		return nil, fmt.Errorf("prediction has %d values, want %d", len(pred), size*size)
	}
	pred = pred[:size*size]

	lo, hi := float32(math.MaxFloat32), float32(-math.MaxFloat32)
	for _, v := range pred {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	span := hi - lo
	mask := image.NewGray(image.Rect(0, 0, size, size))
	for i, v := range pred {
		n := float32(0)
		if span > 0 {
			n = (v - lo) / span
		}
		mask.Pix[i] = uint8(math.Round(float64(n) * 255))
	}
	return mask, nil
}

// applyMask resizes mask to img and multiplies it into img's alpha.
func applyMask(img image.Image, mask *image.Gray) *image.NRGBA {
	dst := imaging.Clone(img)
	w, h := dst.Rect.Dx(), dst.Rect.Dy()
	alpha := mask
	if mask.Rect.Dx() != w || mask.Rect.Dy() != h {
		alpha = toGray(imaging.Resize(mask, w, h, imaging.Linear))
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := dst.PixOffset(x, y)
			m := uint32(alpha.Pix[alpha.PixOffset(x, y)])
			dst.Pix[i+3] = uint8((uint32(dst.Pix[i+3])*m + 127) / 255)
		}
	}
	return dst
}

func toGray(img *image.NRGBA) *image.Gray {
	g := image.NewGray(img.Rect)
	for i, j := 0, 0; i < len(img.Pix); i, j = i+4, j+1 {
		g.Pix[j] = img.Pix[i]
	}
	return g
}
