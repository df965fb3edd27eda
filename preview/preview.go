// Package preview assembles frames into a looping animation (GIF, APNG or MP4).
package preview

import (
	"context"
	"fmt"
	"image"
	"os/exec"
	"time"

	sftypes "sheet2frames/type"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
)

// Result describes a written preview.
type Result struct {
	Path          string
	Format        sftypes.PreviewFormat
	Frames        int
	FrameDuration time.Duration
	// EncodedFrames is what ffprobe reports for ffmpeg outputs; 0 when unknown.
	EncodedFrames int
}

// Assembler encodes previews. GIF is always available; APNG and MP4 need ffmpeg on PATH.
type Assembler struct {
	log      logrus.FieldLogger
	lookPath func(string) (string, error)
}

func NewAssembler(log logrus.FieldLogger) *Assembler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Assembler{log: log, lookPath: exec.LookPath}
}

// Available reports ErrPreviewEncodingUnavailable when format needs a missing encoder.
func (a *Assembler) Available(format sftypes.PreviewFormat) error {
	switch format {
	case sftypes.FormatAPNG, sftypes.FormatMP4:
		if _, err := a.lookPath("ffmpeg"); err != nil {
			return fmt.Errorf("%w: %s preview needs ffmpeg on PATH: %v", sftypes.ErrPreviewEncodingUnavailable, format, err)
		}
	}
	return nil
}

// Assemble writes frames to path as one looping animation.
//
// MP4 has no alpha channel: transparent pixels are flattened onto the
// checkerboard, or onto opaque black when the checkerboard is off. This loss is
// intended; use apng to keep transparency.
func (a *Assembler) Assemble(ctx context.Context, frames []sftypes.Frame, spec sftypes.PreviewSpec, path string) (Result, error) {
	delay, err := spec.EffectiveDuration()
	if err != nil {
		return Result{}, err
	}
	if len(frames) == 0 {
		return Result{}, fmt.Errorf("no frames to assemble")
	}
	if err := a.Available(spec.Format); err != nil {
		return Result{}, err
	}

	imgs := make([]*image.NRGBA, len(frames))
	for i, f := range frames {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		imgs[i] = prepareFrame(f.Image, spec)
	}

	res := Result{Path: path, Format: spec.Format, Frames: len(imgs), FrameDuration: delay}
	switch spec.Format {
	case sftypes.FormatGIF:
		err = writeGIF(path, imgs, delay)
	default:
		err = encodeFFmpeg(ctx, imgs, delay, spec.Format, path)
		if err == nil {
			n, perr := probeFrameCount(path)
			if perr != nil {
				a.log.WithError(perr).WithField("path", path).Debug("ffprobe could not count preview frames")
			}
			res.EncodedFrames = n
		}
	}
	if err != nil {
		return Result{}, err
	}

	a.log.WithFields(logrus.Fields{
		"path":     path,
		"format":   spec.Format,
		"frames":   res.Frames,
		"delay_ms": delay.Milliseconds(),
	}).Debug("Preview written")
	return res, nil
}

func prepareFrame(img image.Image, spec sftypes.PreviewSpec) *image.NRGBA {
	var out *image.NRGBA
	if spec.Scale > 1 {
		b := img.Bounds()
		out = imaging.Resize(img, b.Dx()*spec.Scale, b.Dy()*spec.Scale, imaging.NearestNeighbor)
	} else {
		out = imaging.Clone(img)
	}
	switch {
	case spec.Checkerboard:
		out = OnCheckerboard(out)
	case spec.Format == sftypes.FormatMP4:
		out = OnColor(out, opaqueBlack)
	}
	return out
}
