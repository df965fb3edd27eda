package sftypes

import (
	"fmt"
	"image"
	"image/color"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lucasb-eyer/go-colorful"
)

// Frame 表示 sheet 中的一个单元格
type Frame struct {
	Index int             // 1-based, row-major
	Rect  image.Rectangle // position inside the sheet, origin at (0, 0)
	Image image.Image
}

// Grid is a rows×cols layout of equally sized cells.
type Grid struct {
	Rows int
	Cols int
}

// Cells returns the number of frames the grid produces.
func (g Grid) Cells() int {
	return g.Rows * g.Cols
}

func (g Grid) String() string {
	return fmt.Sprintf("%dx%d", g.Rows, g.Cols)
}

var gridRe = regexp.MustCompile(`^(\d+)(?:(?:\s*[x×*,]\s*|\s+)(\d+))?$`)

// ParseGrid accepts "N" (N×N) or two numbers separated by "x", "," or whitespace (rows, cols).
// Every separator must sit between two numbers.
func ParseGrid(s string) (Grid, error) {
	m := gridRe.FindStringSubmatch(strings.ToLower(strings.TrimSpace(s)))
	if m == nil {
		return Grid{}, fmt.Errorf("invalid grid %q: want one number (N×N) or two numbers (rows cols)", s)
	}
	rows, err := strconv.Atoi(m[1])
	if err != nil {
		return Grid{}, fmt.Errorf("invalid grid %q: %w", s, err)
	}
	cols := rows
	if m[2] != "" {
		if cols, err = strconv.Atoi(m[2]); err != nil {
			return Grid{}, fmt.Errorf("invalid grid %q: %w", s, err)
		}
	}

	g := Grid{Rows: rows, Cols: cols}
	if g.Rows < 1 || g.Cols < 1 {
		return Grid{}, fmt.Errorf("invalid grid %q: rows and cols must be >= 1", s)
	}
	return g, nil
}

// BackgroundMode selects how the background of a sheet is removed.
type BackgroundMode int

const (
	ModeSolid BackgroundMode = iota
	ModeModel
)

func (m BackgroundMode) String() string {
	switch m {
	case ModeModel:
		return "model"
	default:
		return "solid"
	}
}

// Segmentation backends for ModeModel.
const (
	BackendRembg = "rembg"
	BackendONNX  = "onnx"
)

// BackgroundSpec carries the data of the active mode only:
// Color, Tolerance and AutoColor for ModeSolid; Backend and Model for ModeModel.
type BackgroundSpec struct {
	Mode BackgroundMode

	Color     color.NRGBA
	Tolerance uint8
	AutoColor bool

	Backend string
	Model   string
}

// SolidBackground keys out pixels within tolerance of c.
func SolidBackground(c color.NRGBA, tolerance uint8) BackgroundSpec {
	return BackgroundSpec{Mode: ModeSolid, Color: c, Tolerance: tolerance}
}

// AutoBackground keys out the estimated border color of each sheet.
func AutoBackground(tolerance uint8) BackgroundSpec {
	return BackgroundSpec{Mode: ModeSolid, AutoColor: true, Tolerance: tolerance}
}

// ModelBackground delegates removal to a segmentation backend.
func ModelBackground(backend, model string) BackgroundSpec {
	return BackgroundSpec{Mode: ModeModel, Backend: backend, Model: model}
}

// ParseHexColor parses "#RRGGBB", "RRGGBB" or the short "#RGB" form.
func ParseHexColor(s string) (color.NRGBA, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 0xff}, nil
}

// HexColor formats c as "#rrggbb".
func HexColor(c color.Color) string {
	cf, _ := colorful.MakeColor(c)
	return cf.Hex()
}

// PreviewFormat is the closed set of preview encodings.
type PreviewFormat string

const (
	FormatGIF  PreviewFormat = "gif"
	FormatAPNG PreviewFormat = "apng"
	FormatMP4  PreviewFormat = "mp4"
)

// ParsePreviewFormat maps a user-facing name to a PreviewFormat.
func ParsePreviewFormat(s string) (PreviewFormat, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "", "gif":
		return FormatGIF, nil
	case "apng", "png":
		return FormatAPNG, nil
	case "mp4", "video":
		return FormatMP4, nil
	default:
		return "", fmt.Errorf("unknown preview format %q (supported: gif, apng, mp4)", s)
	}
}

// Ext is the file extension of the preview, without the dot.
func (f PreviewFormat) Ext() string {
	return string(f)
}

// PreviewSpec describes the preview animation.
type PreviewSpec struct {
	Format       PreviewFormat
	DurationMS   int
	Speed        float64
	Checkerboard bool
	// Scale is an integer nearest-neighbour upscale; values below 2 keep the frame size.
	Scale int
}

// DefaultPreviewSpec returns a 100ms-per-frame GIF at normal speed.
func DefaultPreviewSpec() PreviewSpec {
	return PreviewSpec{
		Format:     FormatGIF,
		DurationMS: 100,
		Speed:      1,
		Scale:      1,
	}
}

// Validate reports ErrInvalidPreviewSpec for a non-positive duration or speed.
func (s PreviewSpec) Validate() error {
	if s.DurationMS <= 0 {
		return fmt.Errorf("%w: duration must be > 0, got %dms", ErrInvalidPreviewSpec, s.DurationMS)
	}
	if s.Speed <= 0 {
		return fmt.Errorf("%w: speed must be > 0, got %g", ErrInvalidPreviewSpec, s.Speed)
	}
	if s.Scale < 0 {
		return fmt.Errorf("%w: scale must be >= 0, got %d", ErrInvalidPreviewSpec, s.Scale)
	}
	switch s.Format {
	case FormatGIF, FormatAPNG, FormatMP4:
	default:
		return fmt.Errorf("%w: unknown format %q", ErrInvalidPreviewSpec, s.Format)
	}
	return nil
}

// EffectiveDuration is DurationMS / Speed.
func (s PreviewSpec) EffectiveDuration() (time.Duration, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}
	return time.Duration(float64(s.DurationMS) * float64(time.Millisecond) / s.Speed), nil
}

type Pixel struct {
	R, G, B int
}

// Box 表示颜色盒子
type Box struct {
	Pixels     []Pixel
	RMin, RMax int
	GMin, GMax int
	BMin, BMax int
}
