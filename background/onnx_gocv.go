//go:build gocv

package background

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	sftypes "sheet2frames/type"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// U²-Net input side and normalization, as used by rembg's u2net session.
const u2netSize = 320

var (
	u2netMean = [3]float64{0.485, 0.456, 0.406}
	u2netStd  = [3]float64{0.229, 0.224, 0.225}
)

// ONNX evaluates a U²-Net style saliency model through OpenCV's DNN module.
// The net is read once and shared by every call; Forward is serialized.
type ONNX struct {
	ModelPath string

	log     logrus.FieldLogger
	once    sync.Once
	mu      sync.Mutex
	net     gocv.Net
	loadErr error
}

// NewONNX returns a backend for the model at path. Nothing is loaded until the first Remove.
func NewONNX(path string, log logrus.FieldLogger) *ONNX {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ONNX{ModelPath: path, log: log}
}

func (o *ONNX) load() error {
	o.once.Do(func() {
		if o.ModelPath == "" {
			o.loadErr = fmt.Errorf("%w: no onnx model configured (set SHEET2FRAMES_ONNX_MODEL)", sftypes.ErrModelUnavailable)
			return
		}
		if _, err := os.Stat(o.ModelPath); err != nil {
			o.loadErr = fmt.Errorf("%w: onnx model %s: %v", sftypes.ErrModelUnavailable, o.ModelPath, err)
			return
		}
		o.log.WithField("model", o.ModelPath).Info("Loading onnx segmentation model")
		net := gocv.ReadNetFromONNX(o.ModelPath)
		if net.Empty() {
			o.loadErr = fmt.Errorf("%w: opencv could not read %s", sftypes.ErrModelUnavailable, o.ModelPath)
			return
		}
		o.net = net
	})
	return o.loadErr
}

func (o *ONNX) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	if err := o.load(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("%w: converting frame for opencv: %v", sftypes.ErrUnsupportedFormat, err)
	}
	defer src.Close()

	// BlobFromImage subtracts one mean and applies one scale, so the per-channel
	// std is approximated by its average.
	avgStd := (u2netStd[0] + u2netStd[1] + u2netStd[2]) / 3
	blob := gocv.BlobFromImage(src, 1.0/(255.0*avgStd), image.Pt(u2netSize, u2netSize),
		gocv.NewScalar(u2netMean[0]*255, u2netMean[1]*255, u2netMean[2]*255, 0), true, false)
	defer blob.Close()

	o.mu.Lock()
	o.net.SetInput(blob, "")
	out := o.net.Forward("")
	o.mu.Unlock()
	defer out.Close()

	pred, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("reading onnx output: %w", err)
	}
	mask, err := maskFromPrediction(pred, u2netSize)
	if err != nil {
		return nil, fmt.Errorf("onnx output: %w", err)
	}
	return applyMask(img, mask), nil
}
