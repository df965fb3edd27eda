// Package grid cuts a sheet into equally sized cells in row-major order.
package grid

import (
	"fmt"
	"image"
	"image/draw"
	"iter"

	sftypes "sheet2frames/type"

	"github.com/disintegration/imaging"
)

// Validate reports ErrGridMismatch unless a w×h image divides exactly into g.
func Validate(w, h int, g sftypes.Grid) error {
	if g.Rows < 1 || g.Cols < 1 {
		return fmt.Errorf("%w: rows and cols must be >= 1, got %d rows x %d cols", sftypes.ErrGridMismatch, g.Rows, g.Cols)
	}
	if w%g.Cols != 0 || h%g.Rows != 0 {
		return fmt.Errorf("%w: %dx%d image does not divide into %d rows x %d cols (width %% cols = %d, height %% rows = %d)",
			sftypes.ErrGridMismatch, w, h, g.Rows, g.Cols, w%g.Cols, h%g.Rows)
	}
	return nil
}

// CellSize returns the frame size for a valid grid.
func CellSize(w, h int, g sftypes.Grid) image.Point {
	return image.Pt(w/g.Cols, h/g.Rows)
}

// Rects returns the cell rectangles in row-major order, relative to (0, 0).
func Rects(w, h int, g sftypes.Grid) ([]image.Rectangle, error) {
	if err := Validate(w, h, g); err != nil {
		return nil, err
	}
	cell := CellSize(w, h, g)
	rects := make([]image.Rectangle, 0, g.Cells())
	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			rects = append(rects, image.Rect(col*cell.X, row*cell.Y, (col+1)*cell.X, (row+1)*cell.Y))
		}
	}
	return rects, nil
}

// Slice validates g against img and returns the frames as a lazy sequence.
// Each iteration crops afresh, so the sequence can be ranged over any number of times.
func Slice(img image.Image, g sftypes.Grid) (iter.Seq[sftypes.Frame], error) {
	b := img.Bounds()
	rects, err := Rects(b.Dx(), b.Dy(), g)
	if err != nil {
		return nil, err
	}
	return func(yield func(sftypes.Frame) bool) {
		for i, r := range rects {
			f := sftypes.Frame{
				Index: i + 1,
				Rect:  r,
				Image: imaging.Crop(img, r.Add(b.Min)),
			}
			if !yield(f) {
				return
			}
		}
	}, nil
}

// Assemble pastes frames back at their grid coordinates.
// Frames must share one size; their Index decides the cell.
func Assemble(frames []sftypes.Frame, g sftypes.Grid) (*image.NRGBA, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames to assemble")
	}
	if len(frames) != g.Cells() {
		return nil, fmt.Errorf("%w: %d frames for a %s grid", sftypes.ErrGridMismatch, len(frames), g)
	}
	cell := frames[0].Image.Bounds().Size()
	sheet := image.NewNRGBA(image.Rect(0, 0, cell.X*g.Cols, cell.Y*g.Rows))
	for _, f := range frames {
		fb := f.Image.Bounds()
		if fb.Size() != cell {
			return nil, fmt.Errorf("frame %d is %v, want %v", f.Index, fb.Size(), cell)
		}
		if f.Index < 1 || f.Index > g.Cells() {
			return nil, fmt.Errorf("frame index %d outside %s grid", f.Index, g)
		}
		row, col := (f.Index-1)/g.Cols, (f.Index-1)%g.Cols
		dst := image.Rect(col*cell.X, row*cell.Y, (col+1)*cell.X, (row+1)*cell.Y)
		draw.Draw(sheet, dst, f.Image, fb.Min, draw.Src)
	}
	return sheet, nil
}

// Candidate is a grid whose cells are square for a given sheet size.
type Candidate struct {
	Grid sftypes.Grid
	Cell image.Point
}

// Candidates lists every grid with square cells that divides a w×h sheet exactly,
// largest cells first, up to limit entries (limit <= 0 means all).
func Candidates(w, h, limit int) []Candidate {
	var out []Candidate
	for size := min(w, h); size >= 1; size-- {
		if w%size != 0 || h%size != 0 {
			continue
		}
		g := sftypes.Grid{Rows: h / size, Cols: w / size}
		out = append(out, Candidate{Grid: g, Cell: image.Pt(size, size)})
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
