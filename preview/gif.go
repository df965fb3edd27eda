package preview

import (
	"fmt"
	"image"
	"image/gif"
	"io"
	"math"
	"os"
	"time"
)

// gifDelay converts d to GIF centiseconds, rounded and at least 1.
func gifDelay(d time.Duration) int {
	return max(1, int(math.Round(float64(d)/float64(10*time.Millisecond))))
}

// EncodeGIF writes an endlessly looping GIF. Every frame clears to transparent
// before the next one is drawn.
func EncodeGIF(w io.Writer, frames []*image.NRGBA, delay time.Duration) error {
	cs := gifDelay(delay)
	anim := &gif.GIF{LoopCount: 0}
	for _, f := range frames {
		anim.Image = append(anim.Image, paletted(f))
		anim.Delay = append(anim.Delay, cs)
		anim.Disposal = append(anim.Disposal, gif.DisposalBackground)
	}
	return gif.EncodeAll(w, anim)
}

func writeGIF(path string, frames []*image.NRGBA, delay time.Duration) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := EncodeGIF(f, frames, delay); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("encoding gif %s: %w", path, err)
	}
	return f.Close()
}
