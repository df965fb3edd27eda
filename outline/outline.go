package outline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"

	sftypes "sheet2frames/type"

	svgo "github.com/ajstarks/svgo"
	"github.com/rustyoz/svg"
)

// AlphaCutoff is the alpha at or above which a pixel belongs to the silhouette.
const AlphaCutoff = 128

// FrameOutline holds the traced paths of one frame, in frame-local coordinates.
type FrameOutline struct {
	Index int      `json:"index"`
	X     int      `json:"x"`
	Y     int      `json:"y"`
	Paths []string `json:"paths"`
}

// Document is the JSON form of a sheet's outlines.
type Document struct {
	Width   int            `json:"width"`
	Height  int            `json:"height"`
	ViewBox string         `json:"viewBox"`
	FlipY   bool           `json:"flipY"`
	Frames  []FrameOutline `json:"frames"`
}

// Options controls tracing.
type Options struct {
	// FlipY mirrors the JSON paths for y-up engines. The SVG is never flipped.
	FlipY bool
	Name  string
}

// Outlines is the traced result: a combined SVG plus its JSON companion.
type Outlines struct {
	SVG  []byte
	JSON []byte
	Doc  Document
}

// TraceFrame traces one frame's opaque pixels and returns the SVG path data.
func TraceFrame(f sftypes.Frame) ([]string, error) {
	svgStr, err := traceGrayToSVG(Mask(f.Image, AlphaCutoff))
	if err != nil {
		return nil, fmt.Errorf("trace frame %d: %w", f.Index, err)
	}
	paths, err := extractPaths(svgStr)
	if err != nil {
		return nil, fmt.Errorf("read traced svg of frame %d: %w", f.Index, err)
	}
	return paths, nil
}

// Trace outlines every frame and lays them out at their sheet positions.
func Trace(ctx context.Context, frames []sftypes.Frame, opts Options) (*Outlines, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames to outline")
	}

	var sheet image.Rectangle
	doc := Document{FlipY: opts.FlipY}
	for _, f := range frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		paths, err := TraceFrame(f)
		if err != nil {
			return nil, err
		}
		sheet = sheet.Union(f.Rect)
		doc.Frames = append(doc.Frames, FrameOutline{
			Index: f.Index,
			X:     f.Rect.Min.X,
			Y:     f.Rect.Min.Y,
			Paths: paths,
		})
	}
	doc.Width, doc.Height = sheet.Dx(), sheet.Dy()

	svgBytes := renderSheet(doc)

	// read the viewBox back so the JSON matches what the SVG declares
	parsed, err := svg.ParseSvg(string(svgBytes), opts.Name, 1.0)
	if err != nil {
		return nil, fmt.Errorf("parse outline svg: %w", err)
	}
	doc.ViewBox = parsed.ViewBox

	if opts.FlipY {
		for i, fo := range doc.Frames {
			h := frames[i].Rect.Dy()
			for j, d := range fo.Paths {
				doc.Frames[i].Paths[j] = FlipSvgPath(d, h)
			}
		}
	}

	jsonBytes, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode outline json: %w", err)
	}
	return &Outlines{SVG: svgBytes, JSON: jsonBytes, Doc: doc}, nil
}

// renderSheet draws every frame's paths into one SVG, each frame in its own
// translated group.
func renderSheet(doc Document) []byte {
	var buf bytes.Buffer
	canvas := svgo.New(&buf)
	canvas.Startview(doc.Width, doc.Height, 0, 0, doc.Width, doc.Height)
	for _, fo := range doc.Frames {
		canvas.Group(
			fmt.Sprintf(`id="frame-%d"`, fo.Index),
			fmt.Sprintf(`transform="translate(%d,%d)"`, fo.X, fo.Y),
		)
		for _, d := range fo.Paths {
			canvas.Path(d, "fill:#000;fill-rule:evenodd")
		}
		canvas.Gend()
	}
	canvas.End()
	return buf.Bytes()
}
