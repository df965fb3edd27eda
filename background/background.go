// Package background turns sheet backgrounds transparent, either by keying a
// solid color or by delegating to a foreground-segmentation model.
package background

import (
	"context"
	"fmt"
	"image"

	sftypes "sheet2frames/type"

	"github.com/sirupsen/logrus"
)

// Remover returns a copy of img whose background pixels have alpha 0.
// Implementations never mutate img.
type Remover interface {
	Remove(ctx context.Context, img image.Image) (image.Image, error)
}

// Options configures the model backends.
type Options struct {
	RembgBin  string
	ONNXModel string
	Logger    logrus.FieldLogger
}

// New picks the Remover for spec. It is called once per run.
func New(spec sftypes.BackgroundSpec, opts Options) (Remover, error) {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	switch spec.Mode {
	case sftypes.ModeSolid:
		if spec.AutoColor {
			return &AutoColor{Tolerance: spec.Tolerance, log: log}, nil
		}
		return &Solid{Color: spec.Color, Tolerance: spec.Tolerance}, nil
	case sftypes.ModeModel:
		switch spec.Backend {
		case "", sftypes.BackendRembg:
			return NewRembg(opts.RembgBin, spec.Model, log), nil
		case sftypes.BackendONNX:
			return NewONNX(opts.ONNXModel, log), nil
		default:
			return nil, fmt.Errorf("unknown segmentation backend %q (supported: %s, %s)",
				spec.Backend, sftypes.BackendRembg, sftypes.BackendONNX)
		}
	default:
		return nil, fmt.Errorf("unknown background mode %d", spec.Mode)
	}
}
