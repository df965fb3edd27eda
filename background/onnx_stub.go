//go:build !gocv

package background

import (
	"context"
	"fmt"
	"image"

	sftypes "sheet2frames/type"

	"github.com/sirupsen/logrus"
)

// ONNX is unavailable in builds without the gocv tag.
type ONNX struct {
	ModelPath string
}

func NewONNX(path string, _ logrus.FieldLogger) *ONNX {
	return &ONNX{ModelPath: path}
}

func (o *ONNX) Remove(context.Context, image.Image) (image.Image, error) {
	return nil, fmt.Errorf("%w: onnx backend needs OpenCV; rebuild with -tags gocv", sftypes.ErrModelUnavailable)
}
