// Package outline traces the opaque silhouette of each frame into vector paths,
// for use as hitboxes or collision shapes.
package outline

import (
	"bytes"
	"image"
	"image/color"

	"github.com/gotranspile/gotrace"
)

// Mask marks opaque pixels black (shape) and everything else white, the
// polarity gotrace traces.
func Mask(img image.Image, cutoff uint8) *image.Gray {
	b := img.Bounds()
	mask := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			v := color.Gray{Y: 255}
			if uint8(a>>8) >= cutoff {
				v = color.Gray{Y: 0}
			}
			mask.SetGray(x-b.Min.X, y-b.Min.Y, v)
		}
	}
	return mask
}

// traceGrayToSVG 核心：使用 gotrace 将 image.Gray 转 SVG 字符串
func traceGrayToSVG(mask *image.Gray) (string, error) {
	bm := gotrace.BitmapFromGray(mask, nil)

	paths, err := gotrace.Trace(bm, nil)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	sz := mask.Bounds().Size()
	if err := gotrace.Render("svg", nil, &buf, paths, sz.X, sz.Y); err != nil {
		return "", err
	}

	return buf.String(), nil
}
