// Package batch runs the sheet pipeline (remove background, slice, write
// frames, preview) over a list of inputs and reports a per-input manifest.
package batch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"sheet2frames/background"
	"sheet2frames/grid"
	"sheet2frames/outline"
	"sheet2frames/preview"
	sftypes "sheet2frames/type"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
)

type Options struct {
	Grid       sftypes.Grid
	Background sftypes.BackgroundSpec
	Preview    sftypes.PreviewSpec
	NoPreview  bool
	OutputRoot string
	// SaveFull also writes {base}_sheet.png, the unsliced sheet after removal.
	SaveFull     bool
	Outline      bool
	OutlineFlipY bool
	// Parallel bounds how many inputs run at once; values below 2 mean sequential.
	Parallel int
}

// Processor owns the stage implementations for one run.
type Processor struct {
	Remover   background.Remover
	Assembler *preview.Assembler
	Log       logrus.FieldLogger
	// OnResult is called as each input finishes. With Parallel > 1 it is
	// called from several goroutines.
	OnResult func(Result)
}

func NewProcessor(remover background.Remover, assembler *preview.Assembler, log logrus.FieldLogger) *Processor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if assembler == nil {
		assembler = preview.NewAssembler(log)
	}
	return &Processor{Remover: remover, Assembler: assembler, Log: log}
}

// Process resolves args and processes every input.
func (p *Processor) Process(ctx context.Context, args []string, opts Options) Manifest {
	return p.ProcessInputs(ctx, Resolve(args), opts)
}

// ProcessInputs processes already resolved inputs. One failing input never
// stops the others; after cancellation the remaining inputs are reported as
// Canceled.
func (p *Processor) ProcessInputs(ctx context.Context, inputs []Input, opts Options) Manifest {
	results := make([]Result, len(inputs))
	workers := max(1, opts.Parallel)

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, in := range inputs {
		select {
		case <-ctx.Done():
			results[i] = failed(in.Path, ctx.Err())
			p.report(results[i])
			continue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, in Input) {
			defer wg.Done()
			defer func() { <-sem }()

			log := p.Log.WithFields(logrus.Fields{
				"input": in.Path,
				"n":     fmt.Sprintf("%d/%d", i+1, len(inputs)),
			})
			start := time.Now()
			res := p.processOne(ctx, in, opts, log)
			results[i] = res

			entry := log.WithFields(logrus.Fields{
				"status":   res.Status,
				"frames":   len(res.Frames),
				"duration": time.Since(start).Round(time.Millisecond),
			})
			switch res.Status {
			case StatusFailed:
				entry.WithField("kind", res.Kind).Error(res.Error)
			case StatusPartial:
				entry.Warn("Input processed with warnings")
			default:
				entry.Info("Input processed")
			}
			p.report(res)
		}(i, in)
	}
	wg.Wait()

	return newManifest(results)
}

func (p *Processor) report(r Result) {
	if p.OnResult != nil {
		p.OnResult(r)
	}
}

func (p *Processor) processOne(ctx context.Context, in Input, opts Options, log logrus.FieldLogger) Result {
	if in.Err != nil {
		return failed(in.Path, in.Err)
	}
	if err := ctx.Err(); err != nil {
		return failed(in.Path, err)
	}

	base := BaseName(in.Path)
	dir, err := outputDir(opts.OutputRoot, base)
	if err != nil {
		return failed(in.Path, err)
	}

	img, err := decode(in.Path)
	if err != nil {
		return failed(in.Path, err)
	}
	log.WithField("size", img.Bounds().Size()).Debug("Decoded sheet")

	frames, sheet, err := p.extract(ctx, img, opts)
	if err != nil {
		return failed(in.Path, err)
	}

	files := make([]artifact, 0, len(frames)+1)
	for _, f := range frames {
		a, err := encodePNG(fmt.Sprintf("%s_%d.png", base, f.Index), f.Image)
		if err != nil {
			return failed(in.Path, err)
		}
		files = append(files, a)
	}
	if opts.SaveFull {
		a, err := encodePNG(base+"_sheet.png", sheet)
		if err != nil {
			return failed(in.Path, err)
		}
		files = append(files, a)
	}

	// last point where cancellation leaves nothing behind
	if err := ctx.Err(); err != nil {
		return failed(in.Path, err)
	}
	written, err := commit(dir, files)
	if err != nil {
		return failed(in.Path, err)
	}

	res := Result{Input: in.Path, Status: StatusOK, OutputDir: dir, Frames: written[:len(frames)]}
	if opts.SaveFull {
		res.Sheet = written[len(frames)]
	}

	if !opts.NoPreview {
		path := filepath.Join(dir, base+"."+opts.Preview.Format.Ext())
		pr, err := p.Assembler.Assemble(ctx, frames, opts.Preview, path)
		if err != nil {
			res.Status = StatusPartial
			res.PreviewKind = sftypes.KindOf(err)
			res.PreviewError = err.Error()
			log.WithError(err).WithField("kind", res.PreviewKind).Warn("Preview failed; frames kept")
		} else {
			res.Preview = pr.Path
			res.PreviewFrames = pr.Frames
			res.PreviewEncodedFrames = pr.EncodedFrames
		}
	}

	if opts.Outline {
		paths, err := p.writeOutline(ctx, frames, dir, base, opts.OutlineFlipY)
		if err != nil {
			res.Status = StatusPartial
			res.OutlineError = err.Error()
			log.WithError(err).Warn("Outline failed; frames kept")
		} else {
			res.Outline = paths
		}
	}
	return res
}

// extract removes the background and slices the sheet. Solid keying runs on
// the whole sheet; model backends run per frame, and the sheet is reassembled
// from the cleaned frames.
func (p *Processor) extract(ctx context.Context, img image.Image, opts Options) ([]sftypes.Frame, image.Image, error) {
	b := img.Bounds()
	if err := grid.Validate(b.Dx(), b.Dy(), opts.Grid); err != nil {
		return nil, nil, err
	}

	if opts.Background.Mode == sftypes.ModeModel {
		seq, err := grid.Slice(img, opts.Grid)
		if err != nil {
			return nil, nil, err
		}
		var frames []sftypes.Frame
		for f := range seq {
			out, err := p.Remover.Remove(ctx, f.Image)
			if err != nil {
				return nil, nil, fmt.Errorf("frame %d: %w", f.Index, err)
			}
			f.Image = out
			frames = append(frames, f)
		}
		if !opts.SaveFull {
			return frames, nil, nil
		}
		sheet, err := grid.Assemble(frames, opts.Grid)
		if err != nil {
			return nil, nil, err
		}
		return frames, sheet, nil
	}

	clean, err := p.Remover.Remove(ctx, img)
	if err != nil {
		return nil, nil, err
	}
	seq, err := grid.Slice(clean, opts.Grid)
	if err != nil {
		return nil, nil, err
	}
	return slices.Collect(seq), clean, nil
}

func (p *Processor) writeOutline(ctx context.Context, frames []sftypes.Frame, dir, base string, flipY bool) ([]string, error) {
	out, err := outline.Trace(ctx, frames, outline.Options{FlipY: flipY, Name: base})
	if err != nil {
		return nil, err
	}
	return commit(dir, []artifact{
		{name: base + "_outline.svg", data: out.SVG},
		{name: base + "_outline.json", data: out.JSON},
	})
}

func decode(path string) (image.Image, error) {
	st, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", sftypes.ErrInputNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", sftypes.ErrInputNotFound, path, err)
	}
	if !st.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", sftypes.ErrInputNotFound, path)
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", sftypes.ErrUnsupportedFormat, path, err)
	}
	return img, nil
}
