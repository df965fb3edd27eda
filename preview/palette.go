package preview

import (
	"image"
	"image/color"
	"sort"

	sftypes "sheet2frames/type"
)

// alphaCutoff: pixels below it map to the transparent palette slot.
const alphaCutoff = 128

// maxQuantizeSamples bounds the pixels fed to the median cut; larger frames are
// sampled on an even stride.
const maxQuantizeSamples = 1 << 14

// 计算盒子范围
func calculateBoxRange(box *sftypes.Box) {
	if len(box.Pixels) == 0 {
		return
	}

	box.RMin, box.RMax = 255, 0
	box.GMin, box.GMax = 255, 0
	box.BMin, box.BMax = 255, 0

	for _, p := range box.Pixels {
		box.RMin, box.RMax = min(box.RMin, p.R), max(box.RMax, p.R)
		box.GMin, box.GMax = min(box.GMin, p.G), max(box.GMax, p.G)
		box.BMin, box.BMax = min(box.BMin, p.B), max(box.BMax, p.B)
	}
}

// samplePixels collects the opaque pixels of img, at most maxQuantizeSamples of them.
func samplePixels(img *image.NRGBA) []sftypes.Pixel {
	opaque := 0
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] >= alphaCutoff {
			opaque++
		}
	}
	step := max(1, (opaque+maxQuantizeSamples-1)/maxQuantizeSamples)

	pixels := make([]sftypes.Pixel, 0, min(opaque, maxQuantizeSamples))
	n := 0
	for i := 0; i < len(img.Pix); i += 4 {
		if img.Pix[i+3] < alphaCutoff {
			continue
		}
		if n%step == 0 {
			pixels = append(pixels, sftypes.Pixel{R: int(img.Pix[i]), G: int(img.Pix[i+1]), B: int(img.Pix[i+2])})
		}
		n++
	}
	return pixels
}

// medianCutQuantize reduces the opaque pixels of img to at most colorCount colors.
func medianCutQuantize(img *image.NRGBA, colorCount int) []color.RGBA {
	pixels := samplePixels(img)
	if len(pixels) == 0 {
		return nil
	}

	initialBox := &sftypes.Box{Pixels: pixels}
	calculateBoxRange(initialBox)
	boxes := []*sftypes.Box{initialBox}

	for len(boxes) < colorCount {
		// 找到范围最大的盒子
		splitIdx := -1
		maxRange := 0
		for i, box := range boxes {
			r := max(box.RMax-box.RMin, box.GMax-box.GMin, box.BMax-box.BMin)
			if r > maxRange {
				maxRange = r
				splitIdx = i
			}
		}
		if splitIdx < 0 {
			// every box is a single color
			break
		}
		box := boxes[splitIdx]

		rRange := box.RMax - box.RMin
		gRange := box.GMax - box.GMin
		bRange := box.BMax - box.BMin
		channel := func(p sftypes.Pixel) int { return p.B }
		if rRange >= gRange && rRange >= bRange {
			channel = func(p sftypes.Pixel) int { return p.R }
		} else if gRange >= rRange && gRange >= bRange {
			channel = func(p sftypes.Pixel) int { return p.G }
		}
		sort.SliceStable(box.Pixels, func(i, j int) bool {
			return channel(box.Pixels[i]) < channel(box.Pixels[j])
		})

		median := len(box.Pixels) / 2
		box1 := &sftypes.Box{Pixels: box.Pixels[:median]}
		box2 := &sftypes.Box{Pixels: box.Pixels[median:]}
		calculateBoxRange(box1)
		calculateBoxRange(box2)

		boxes = append(boxes[:splitIdx], append([]*sftypes.Box{box1, box2}, boxes[splitIdx+1:]...)...)
	}

	// 计算每个盒子的平均颜色
	result := make([]color.RGBA, 0, len(boxes))
	for _, box := range boxes {
		count := len(box.Pixels)
		if count == 0 {
			continue
		}
		var rSum, gSum, bSum int
		for _, p := range box.Pixels {
			rSum += p.R
			gSum += p.G
			bSum += p.B
		}
		result = append(result, color.RGBA{
			R: uint8(rSum / count),
			G: uint8(gSum / count),
			B: uint8(bSum / count),
			A: 255,
		})
	}
	return result
}

// paletted maps img onto a palette whose slot 0 is fully transparent.
func paletted(img *image.NRGBA) *image.Paletted {
	colors := medianCutQuantize(img, 255)
	if len(colors) == 0 {
		colors = []color.RGBA{{A: 255}}
	}
	pal := make(color.Palette, 0, len(colors)+1)
	pal = append(pal, color.RGBA{})
	for _, c := range colors {
		pal = append(pal, c)
	}

	dst := image.NewPaletted(img.Rect, pal)
	cache := make(map[[3]uint8]uint8)
	for y := img.Rect.Min.Y; y < img.Rect.Max.Y; y++ {
		for x := img.Rect.Min.X; x < img.Rect.Max.X; x++ {
			i := img.PixOffset(x, y)
			if img.Pix[i+3] < alphaCutoff {
				dst.SetColorIndex(x, y, 0)
				continue
			}
			key := [3]uint8{img.Pix[i], img.Pix[i+1], img.Pix[i+2]}
			idx, ok := cache[key]
			if !ok {
				idx = nearest(colors, key) + 1
				cache[key] = idx
			}
			dst.SetColorIndex(x, y, idx)
		}
	}
	return dst
}

// 找最近颜色
func nearest(colors []color.RGBA, c [3]uint8) uint8 {
	best := 0
	bestDist := -1
	for i, p := range colors {
		dr := int(c[0]) - int(p.R)
		dg := int(c[1]) - int(p.G)
		db := int(c[2]) - int(p.B)
		dist := dr*dr + dg*dg + db*db
		if bestDist < 0 || dist < bestDist {
			best, bestDist = i, dist
		}
	}
	return uint8(best)
}
