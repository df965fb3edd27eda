package background

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os/exec"
	"strings"
	"sync"

	sftypes "sheet2frames/type"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
)

// Rembg runs the rembg CLI once per image: PNG on stdin, PNG with alpha on stdout.
// rembg downloads its weights on first use and caches them on disk, so the
// first call of a run may block for a while.
type Rembg struct {
	Bin   string
	Model string

	log      logrus.FieldLogger
	once     sync.Once
	path     string
	lookErr  error
	warmOnce sync.Once
}

// NewRembg returns a backend that shells out to bin (default "rembg").
func NewRembg(bin, model string, log logrus.FieldLogger) *Rembg {
	if bin == "" {
		bin = "rembg"
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Rembg{Bin: bin, Model: model, log: log}
}

func (r *Rembg) resolve() (string, error) {
	r.once.Do(func() {
		r.path, r.lookErr = exec.LookPath(r.Bin)
	})
	if r.lookErr != nil {
		return "", fmt.Errorf("%w: rembg executable %q not found (install with: pip install \"rembg[cli]\"): %v",
			sftypes.ErrModelUnavailable, r.Bin, r.lookErr)
	}
	return r.path, nil
}

func (r *Rembg) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	bin, err := r.resolve()
	if err != nil {
		return nil, err
	}

	var in bytes.Buffer
	if err := imaging.Encode(&in, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encoding rembg input: %w", err)
	}

	args := []string{"i"}
	if r.Model != "" {
		args = append(args, "-m", r.Model)
	}
	args = append(args, "-", "-")

	r.warmOnce.Do(func() {
		r.log.WithFields(logrus.Fields{"bin": bin, "model": r.Model}).
			Info("Loading segmentation model (first use may download weights)")
	})

	var out, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdin = &in
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: rembg %s failed: %v\noutput: %s",
			sftypes.ErrModelUnavailable, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}

	dec, err := imaging.Decode(&out)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding rembg output: %v", sftypes.ErrUnsupportedFormat, err)
	}
	return imaging.Clone(dec), nil
}
