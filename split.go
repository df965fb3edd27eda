package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"syscall"

	"sheet2frames/background"
	"sheet2frames/batch"
	"sheet2frames/config"
	"sheet2frames/preview"
	sftypes "sheet2frames/type"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type splitFlags struct {
	grid      string
	bg        string
	tolerance int
	rembg     bool
	backend   string
	model     string
	output    string

	previewFormat string
	speed         float64
	checkerboard  bool
	duration      int
	previewScale  int
	noPreview     bool

	saveFull     bool
	outline      bool
	outlineFlipY bool
	parallel     int
	manifest     string
	strict       bool
}

var (
	splitOpts splitFlags
	splitCmd  *cobra.Command
)

func newSplitCmd(s *splitFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split inputs...",
		Short: "Remove the background and cut sheets into frames",
		Long: `Split processes every input (file paths or glob patterns such as "sprites/**/*.png")
and writes, per sheet:

  {output}/{name}/{name}_1.png ... {name}_{rows*cols}.png
  {output}/{name}/{name}.{gif|apng|mp4}
  {output}/{name}/{name}_sheet.png        with --save-full
  {output}/{name}/{name}_outline.svg|json with --outline

A failing input never stops the batch. The exit status is non-zero when any input
failed (with --strict, also when only its preview or outline failed).`,
		Example: `  sheet2frames split Idle.png --grid 1x4 --bg FFFFFF -t 10
  sheet2frames split "sheets/*.png" -g 4 --rembg --preview-format apng --checkerboard`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSplit(cmd, s, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&s.grid, "grid", "g", "", `grid as N (N×N), "RxC", "R,C" or "R C"`)
	f.StringVar(&s.bg, "bg", "", "background color as hex (#RRGGBB or RRGGBB), or auto")
	f.IntVarP(&s.tolerance, "tolerance", "t", 0, "per-channel color tolerance for --bg, 0..255")
	f.BoolVar(&s.rembg, "rembg", false, "remove the background with a segmentation model")
	f.StringVar(&s.backend, "backend", sftypes.BackendRembg, "segmentation backend: rembg or onnx")
	f.StringVar(&s.model, "model", "", "rembg model name (default $SHEET2FRAMES_REMBG_MODEL or u2net)")
	f.StringVarP(&s.output, "output", "o", "", "output root (default $SHEET2FRAMES_OUTPUT or ./frames)")

	f.StringVar(&s.previewFormat, "preview-format", string(sftypes.FormatGIF), "preview format: gif, apng or mp4")
	f.Float64Var(&s.speed, "speed", 1, "preview speed multiplier")
	f.BoolVar(&s.checkerboard, "checkerboard", false, "composite preview frames onto a checkerboard")
	f.IntVar(&s.duration, "duration", 100, "base frame duration in milliseconds")
	f.IntVar(&s.duration, "gif-duration", 100, "alias of --duration")
	f.IntVar(&s.previewScale, "preview-scale", 1, "integer upscale of preview frames")
	f.BoolVar(&s.noPreview, "no-preview", false, "skip the preview animation")

	f.BoolVar(&s.saveFull, "save-full", false, "also save the whole sheet after background removal")
	f.BoolVar(&s.outline, "outline", false, "trace frame silhouettes into {name}_outline.svg and .json")
	f.BoolVar(&s.outlineFlipY, "outline-flip-y", false, "write outline json paths with y pointing up")
	f.IntVar(&s.parallel, "parallel", 1, "inputs processed at once (default $SHEET2FRAMES_PARALLEL or 1)")
	f.StringVar(&s.manifest, "manifest", "", "also write the manifest as JSON to this file")
	f.BoolVar(&s.strict, "strict", false, "treat preview or outline failures as failed inputs")

	_ = f.MarkHidden("gif-duration")
	_ = cmd.MarkFlagRequired("grid")
	cmd.MarkFlagsMutuallyExclusive("bg", "rembg")
	cmd.MarkFlagsOneRequired("bg", "rembg")
	cmd.MarkFlagsMutuallyExclusive("duration", "gif-duration")
	return cmd
}

func init() {
	splitCmd = newSplitCmd(&splitOpts)
	rootCmd.AddCommand(splitCmd)
}

var bareInt = regexp.MustCompile(`^\d+$`)

// checkGridArgs rejects "--grid 2 4": the flag binds only "2" and the "4"
// would otherwise become an input.
func checkGridArgs(grid string, args []string) error {
	grid = strings.TrimSpace(grid)
	if !bareInt.MatchString(grid) {
		return nil
	}
	for _, a := range args {
		if !bareInt.MatchString(a) {
			continue
		}
		if _, err := os.Stat(a); err == nil {
			continue
		}
		return fmt.Errorf(`--grid takes "RxC"; did you mean --grid %sx%s?`, grid, a)
	}
	return nil
}

// newProgress returns a bar over total inputs and the result callback that
// advances it, naming each finished input as "[i/n] name".
func newProgress(w io.Writer, total int) (*progressbar.ProgressBar, func(batch.Result)) {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("sheets"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	var done atomic.Int64
	return bar, func(r batch.Result) {
		n := done.Add(1)
		bar.Describe(fmt.Sprintf("[%d/%d] %s", n, total, filepath.Base(r.Input)))
		_ = bar.Add(1)
	}
}

// backgroundSpec turns the mode flags into the tagged background variant.
func (s splitFlags) backgroundSpec(cmd *cobra.Command, cfg *config.Config) (sftypes.BackgroundSpec, error) {
	if s.rembg {
		if cmd.Flags().Changed("tolerance") {
			return sftypes.BackgroundSpec{}, fmt.Errorf("--tolerance applies to --bg only")
		}
		model := s.model
		if model == "" {
			model = cfg.RembgModel
		}
		return sftypes.ModelBackground(s.backend, model), nil
	}

	if s.tolerance < 0 || s.tolerance > 255 {
		return sftypes.BackgroundSpec{}, fmt.Errorf("--tolerance must be within 0..255, got %d", s.tolerance)
	}
	if strings.EqualFold(s.bg, "auto") {
		return sftypes.AutoBackground(uint8(s.tolerance)), nil
	}
	c, err := sftypes.ParseHexColor(s.bg)
	if err != nil {
		return sftypes.BackgroundSpec{}, fmt.Errorf("--bg: %w", err)
	}
	return sftypes.SolidBackground(c, uint8(s.tolerance)), nil
}

func (s splitFlags) previewSpec() (sftypes.PreviewSpec, error) {
	format, err := sftypes.ParsePreviewFormat(s.previewFormat)
	if err != nil {
		return sftypes.PreviewSpec{}, err
	}
	spec := sftypes.PreviewSpec{
		Format:       format,
		DurationMS:   s.duration,
		Speed:        s.speed,
		Checkerboard: s.checkerboard,
		Scale:        s.previewScale,
	}
	if s.noPreview {
		return spec, nil
	}
	return spec, spec.Validate()
}

func (s splitFlags) options(cmd *cobra.Command, cfg *config.Config) (batch.Options, error) {
	g, err := sftypes.ParseGrid(s.grid)
	if err != nil {
		return batch.Options{}, fmt.Errorf("--grid: %w", err)
	}
	bg, err := s.backgroundSpec(cmd, cfg)
	if err != nil {
		return batch.Options{}, err
	}
	pv, err := s.previewSpec()
	if err != nil {
		return batch.Options{}, err
	}

	output := s.output
	if output == "" {
		output = cfg.OutputRoot
	}
	parallel := s.parallel
	if !cmd.Flags().Changed("parallel") {
		parallel = cfg.Parallel
	}
	if parallel < 1 {
		return batch.Options{}, fmt.Errorf("--parallel must be >= 1, got %d", parallel)
	}

	return batch.Options{
		Grid:         g,
		Background:   bg,
		Preview:      pv,
		NoPreview:    s.noPreview,
		OutputRoot:   output,
		SaveFull:     s.saveFull,
		Outline:      s.outline || s.outlineFlipY,
		OutlineFlipY: s.outlineFlipY,
		Parallel:     parallel,
	}, nil
}

func runSplit(cmd *cobra.Command, s *splitFlags, args []string) error {
	if err := checkGridArgs(s.grid, args); err != nil {
		return err
	}
	opts, err := s.options(cmd, cfg)
	if err != nil {
		return err
	}

	remover, err := background.New(opts.Background, background.Options{
		RembgBin:  cfg.RembgBin,
		ONNXModel: cfg.ONNXModel,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	proc := batch.NewProcessor(remover, preview.NewAssembler(logger), logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inputs := batch.Resolve(args)
	logger.WithFields(logrus.Fields{
		"inputs":     len(inputs),
		"grid":       opts.Grid.String(),
		"background": opts.Background.Mode.String(),
		"output":     opts.OutputRoot,
		"parallel":   opts.Parallel,
	}).Info("Starting batch")

	var bar *progressbar.ProgressBar
	if len(inputs) > 1 && !verbose {
		// info lines would tear the bar, which names each finished input instead
		logger.SetLevel(logrus.WarnLevel)
		bar, proc.OnResult = newProgress(os.Stderr, len(inputs))
	}

	m := proc.ProcessInputs(ctx, inputs, opts)
	if bar != nil {
		_ = bar.Finish()
	}

	if err := m.WriteTable(cmd.OutOrStdout()); err != nil {
		return err
	}
	if s.manifest != "" {
		if err := writeManifest(s.manifest, m); err != nil {
			return err
		}
	}
	if ctx.Err() != nil {
		return fmt.Errorf("interrupted: %w", ctx.Err())
	}
	return m.Err(s.strict)
}

func writeManifest(path string, m batch.Manifest) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating manifest: %w", err)
	}
	if err := m.WriteJSON(f); err != nil {
		f.Close()
		return fmt.Errorf("writing manifest: %w", err)
	}
	return f.Close()
}
