package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/gif"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"sheet2frames/background"
	"sheet2frames/preview"
	sftypes "sheet2frames/type"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}

// makeSheet draws rows×cols cells of size cell on a white background, each
// holding a centered colored block.
func makeSheet(rows, cols, cell int) *image.NRGBA {
	sheet := imaging.New(cols*cell, rows*cell, white)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			fill := color.NRGBA{R: uint8(40 * (c + 1)), G: uint8(30 * (r + 1)), B: 90, A: 255}
			for y := cell / 4; y < 3*cell/4; y++ {
				for x := cell / 4; x < 3*cell/4; x++ {
					sheet.SetNRGBA(c*cell+x, r*cell+y, fill)
				}
			}
		}
	}
	return sheet
}

func savePNG(t *testing.T, path string, img image.Image) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, imaging.Save(img, path))
	return path
}

func newProcessor(t *testing.T, remover background.Remover) (*Processor, *test.Hook) {
	t.Helper()
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	return NewProcessor(remover, preview.NewAssembler(log), log), hook
}

func solidOptions(root string, g sftypes.Grid) Options {
	return Options{
		Grid:       g,
		Background: sftypes.SolidBackground(white, 10),
		Preview:    sftypes.DefaultPreviewSpec(),
		OutputRoot: root,
	}
}

func TestScenarioIdleSheet(t *testing.T) {
	dir := t.TempDir()
	in := savePNG(t, filepath.Join(dir, "Idle.png"), makeSheet(1, 4, 64))
	root := filepath.Join(dir, "frames")

	p, hook := newProcessor(t, &background.Solid{Color: white, Tolerance: 10})
	m := p.Process(context.Background(), []string{in}, solidOptions(root, sftypes.Grid{Rows: 1, Cols: 4}))

	require.Len(t, m.Results, 1)
	res := m.Results[0]
	require.Equal(t, StatusOK, res.Status, res.Error)
	assert.NoError(t, m.Err(true))
	assert.Equal(t, filepath.Join(root, "Idle"), res.OutputDir)

	for i := 1; i <= 4; i++ {
		path := filepath.Join(root, "Idle", "Idle_"+string(rune('0'+i))+".png")
		assert.Equal(t, path, res.Frames[i-1])
		img, err := imaging.Open(path)
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 64, 64), img.Bounds())
		_, _, _, a := img.At(0, 0).RGBA()
		assert.Zero(t, a, "white corner is punched out")
		_, _, _, a = img.At(32, 32).RGBA()
		assert.Equal(t, uint32(0xffff), a, "sprite stays opaque")
	}

	data, err := os.ReadFile(filepath.Join(root, "Idle", "Idle.gif"))
	require.NoError(t, err)
	anim, err := gif.DecodeAll(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Len(t, anim.Image, 4)
	assert.Equal(t, []int{10, 10, 10, 10}, anim.Delay)
	assert.Equal(t, 0, anim.LoopCount)
	assert.Equal(t, filepath.Join(root, "Idle", "Idle.gif"), res.Preview)
	assert.Equal(t, 4, res.PreviewFrames)

	assert.NoFileExists(t, filepath.Join(root, "Idle", "Idle_sheet.png"))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "Input processed", hook.LastEntry().Message)
}

func TestScenarioMissingInput(t *testing.T) {
	dir := t.TempDir()
	run := filepath.Join(dir, "Run.png")
	attack := savePNG(t, filepath.Join(dir, "Attack.png"), makeSheet(2, 2, 16))
	root := filepath.Join(dir, "out")

	p, _ := newProcessor(t, &background.Solid{Color: white, Tolerance: 10})
	m := p.Process(context.Background(), []string{run, attack}, solidOptions(root, sftypes.Grid{Rows: 2, Cols: 2}))

	require.Len(t, m.Results, 2)
	assert.Equal(t, run, m.Results[0].Input)
	assert.Equal(t, StatusFailed, m.Results[0].Status)
	assert.Equal(t, sftypes.KindInputNotFound, m.Results[0].Kind)
	assert.Equal(t, StatusOK, m.Results[1].Status)
	assert.Len(t, m.Results[1].Frames, 4)
	assert.FileExists(t, filepath.Join(root, "Attack", "Attack_4.png"))
	assert.NoDirExists(t, filepath.Join(root, "Run"))

	assert.Equal(t, 1, m.OK)
	assert.Equal(t, 1, m.Failed)
	assert.Error(t, m.Err(false))
}

func TestScenarioVideoWithoutEncoder(t *testing.T) {
	dir := t.TempDir()
	in := savePNG(t, filepath.Join(dir, "Walk.png"), makeSheet(1, 3, 16))
	root := filepath.Join(dir, "out")
	t.Setenv("PATH", t.TempDir())

	p, _ := newProcessor(t, &background.Solid{Color: white, Tolerance: 10})
	opts := solidOptions(root, sftypes.Grid{Rows: 1, Cols: 3})
	opts.Preview.Format = sftypes.FormatMP4
	m := p.Process(context.Background(), []string{in}, opts)

	res := m.Results[0]
	assert.Equal(t, StatusPartial, res.Status)
	assert.Equal(t, sftypes.KindPreviewEncodingUnavailable, res.PreviewKind)
	assert.NotEmpty(t, res.PreviewError)
	assert.Empty(t, res.Preview)
	assert.Len(t, res.Frames, 3)
	for _, f := range res.Frames {
		assert.FileExists(t, f)
	}
	assert.NoFileExists(t, filepath.Join(root, "Walk", "Walk.mp4"))

	assert.NoError(t, m.Err(false), "partial is not a failure by default")
	assert.Error(t, m.Err(true))
}

func TestScenarioAPNGEncodedFrames(t *testing.T) {
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not installed", bin)
		}
	}
	dir := t.TempDir()
	in := savePNG(t, filepath.Join(dir, "Walk.png"), makeSheet(1, 3, 16))
	root := filepath.Join(dir, "out")

	p, _ := newProcessor(t, &background.Solid{Color: white, Tolerance: 10})
	opts := solidOptions(root, sftypes.Grid{Rows: 1, Cols: 3})
	opts.Preview.Format = sftypes.FormatAPNG
	m := p.Process(context.Background(), []string{in}, opts)

	res := m.Results[0]
	if res.PreviewKind == sftypes.KindPreviewEncodingUnavailable {
		t.Skipf("ffmpeg build cannot encode apng: %s", res.PreviewError)
	}
	require.Equal(t, StatusOK, res.Status, res.PreviewError)
	assert.Equal(t, filepath.Join(root, "Walk", "Walk.apng"), res.Preview)
	assert.Equal(t, 3, res.PreviewFrames)
	assert.Equal(t, 3, res.PreviewEncodedFrames)

	var buf bytes.Buffer
	require.NoError(t, m.WriteJSON(&buf))
	assert.Contains(t, buf.String(), `"preview_encoded_frames": 3`)
}

func TestGridMismatchWritesNothing(t *testing.T) {
	dir := t.TempDir()
	in := savePNG(t, filepath.Join(dir, "Odd.png"), imaging.New(100, 64, white))
	root := filepath.Join(dir, "out")

	p, _ := newProcessor(t, &background.Solid{Color: white})
	m := p.Process(context.Background(), []string{in}, solidOptions(root, sftypes.Grid{Rows: 1, Cols: 3}))

	res := m.Results[0]
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, sftypes.KindGridMismatch, res.Kind)
	assert.Contains(t, res.Error, "100x64")
	assert.NoDirExists(t, filepath.Join(root, "Odd"))
}

func TestUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "notes.png")
	require.NoError(t, os.WriteFile(in, []byte("not an image"), 0o644))

	p, _ := newProcessor(t, &background.Solid{Color: white})
	m := p.Process(context.Background(), []string{in}, solidOptions(filepath.Join(dir, "out"), sftypes.Grid{Rows: 1, Cols: 1}))
	assert.Equal(t, sftypes.KindUnsupportedFormat, m.Results[0].Kind)
}

func TestOutputDirTraversal(t *testing.T) {
	dir := t.TempDir()
	in := savePNG(t, filepath.Join(dir, "...png"), makeSheet(1, 1, 8))

	p, _ := newProcessor(t, &background.Solid{Color: white})
	m := p.Process(context.Background(), []string{in}, solidOptions(filepath.Join(dir, "out"), sftypes.Grid{Rows: 1, Cols: 1}))

	assert.Equal(t, StatusFailed, m.Results[0].Status)
	assert.Equal(t, sftypes.KindWriteFailed, m.Results[0].Kind)
	assert.NoFileExists(t, filepath.Join(dir, ".._1.png"))

	_, err := outputDir("out", "Idle")
	assert.NoError(t, err)
	_, err = outputDir("out", ".")
	assert.Error(t, err)
}

func TestSaveFullSheet(t *testing.T) {
	dir := t.TempDir()
	in := savePNG(t, filepath.Join(dir, "Jump.png"), makeSheet(2, 2, 16))
	root := filepath.Join(dir, "out")

	p, _ := newProcessor(t, &background.Solid{Color: white, Tolerance: 10})
	opts := solidOptions(root, sftypes.Grid{Rows: 2, Cols: 2})
	opts.SaveFull = true
	opts.NoPreview = true
	m := p.Process(context.Background(), []string{in}, opts)

	res := m.Results[0]
	require.Equal(t, StatusOK, res.Status, res.Error)
	assert.Equal(t, filepath.Join(root, "Jump", "Jump_sheet.png"), res.Sheet)
	assert.Empty(t, res.Preview)
	assert.NoFileExists(t, filepath.Join(root, "Jump", "Jump.gif"))

	sheet, err := imaging.Open(res.Sheet)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 32, 32), sheet.Bounds())
	_, _, _, a := sheet.At(0, 0).RGBA()
	assert.Zero(t, a)
}

// countingRemover makes every pixel opaque red and counts its calls.
type countingRemover struct {
	calls atomic.Int32
	err   error
}

func (c *countingRemover) Remove(_ context.Context, img image.Image) (image.Image, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	b := img.Bounds()
	return imaging.New(b.Dx(), b.Dy(), color.NRGBA{R: 255, A: 255}), nil
}

func TestModelModeRunsPerFrame(t *testing.T) {
	dir := t.TempDir()
	in := savePNG(t, filepath.Join(dir, "Cast.png"), makeSheet(2, 3, 16))
	root := filepath.Join(dir, "out")

	remover := &countingRemover{}
	p, _ := newProcessor(t, remover)
	opts := solidOptions(root, sftypes.Grid{Rows: 2, Cols: 3})
	opts.Background = sftypes.ModelBackground(sftypes.BackendRembg, "u2net")
	opts.SaveFull = true
	opts.NoPreview = true
	m := p.Process(context.Background(), []string{in}, opts)

	require.Equal(t, StatusOK, m.Results[0].Status, m.Results[0].Error)
	assert.Equal(t, int32(6), remover.calls.Load())

	sheet, err := imaging.Open(m.Results[0].Sheet)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 48, 32), sheet.Bounds())
}

func TestModelUnavailableAbortsInput(t *testing.T) {
	dir := t.TempDir()
	in := savePNG(t, filepath.Join(dir, "Cast.png"), makeSheet(1, 2, 16))
	root := filepath.Join(dir, "out")

	p, _ := newProcessor(t, &countingRemover{err: sftypes.ErrModelUnavailable})
	opts := solidOptions(root, sftypes.Grid{Rows: 1, Cols: 2})
	opts.Background = sftypes.ModelBackground(sftypes.BackendRembg, "u2net")
	m := p.Process(context.Background(), []string{in}, opts)

	assert.Equal(t, sftypes.KindModelUnavailable, m.Results[0].Kind)
	assert.NoDirExists(t, filepath.Join(root, "Cast"))
}

func TestCanceledBatch(t *testing.T) {
	dir := t.TempDir()
	a := savePNG(t, filepath.Join(dir, "A.png"), makeSheet(1, 1, 8))
	b := savePNG(t, filepath.Join(dir, "B.png"), makeSheet(1, 1, 8))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p, _ := newProcessor(t, &background.Solid{Color: white})
	m := p.Process(ctx, []string{a, b}, solidOptions(filepath.Join(dir, "out"), sftypes.Grid{Rows: 1, Cols: 1}))

	for _, r := range m.Results {
		assert.Equal(t, sftypes.KindCanceled, r.Kind)
	}
	assert.NoDirExists(t, filepath.Join(dir, "out"))
}

func TestParallelKeepsOrder(t *testing.T) {
	dir := t.TempDir()
	var args []string
	for _, name := range []string{"c", "a", "b", "d"} {
		args = append(args, savePNG(t, filepath.Join(dir, name+".png"), makeSheet(1, 2, 8)))
	}

	p, _ := newProcessor(t, &background.Solid{Color: white})
	var seen atomic.Int32
	p.OnResult = func(Result) { seen.Add(1) }
	opts := solidOptions(filepath.Join(dir, "out"), sftypes.Grid{Rows: 1, Cols: 2})
	opts.Parallel = 3
	m := p.Process(context.Background(), args, opts)

	require.Len(t, m.Results, 4)
	for i, r := range m.Results {
		assert.Equal(t, args[i], r.Input)
		assert.Equal(t, StatusOK, r.Status, r.Error)
	}
	assert.Equal(t, int32(4), seen.Load())
}

func TestOutlineArtifacts(t *testing.T) {
	dir := t.TempDir()
	in := savePNG(t, filepath.Join(dir, "Hit.png"), makeSheet(1, 2, 16))
	root := filepath.Join(dir, "out")

	p, _ := newProcessor(t, &background.Solid{Color: white, Tolerance: 10})
	opts := solidOptions(root, sftypes.Grid{Rows: 1, Cols: 2})
	opts.NoPreview = true
	opts.Outline = true
	m := p.Process(context.Background(), []string{in}, opts)

	res := m.Results[0]
	require.Equal(t, StatusOK, res.Status, res.OutlineError)
	assert.Equal(t, []string{
		filepath.Join(root, "Hit", "Hit_outline.svg"),
		filepath.Join(root, "Hit", "Hit_outline.json"),
	}, res.Outline)
	for _, f := range res.Outline {
		assert.FileExists(t, f)
	}
}

func TestManifestOutput(t *testing.T) {
	m := newManifest([]Result{
		{Input: "Idle.png", Status: StatusOK, OutputDir: "frames/Idle", Frames: []string{"a", "b"}, Preview: "frames/Idle/Idle.gif"},
		{Input: "Walk.png", Status: StatusPartial, PreviewKind: sftypes.KindPreviewEncodingUnavailable, PreviewError: "no ffmpeg"},
		{Input: "Run.png", Status: StatusFailed, Kind: sftypes.KindInputNotFound, Error: "input not found: Run.png"},
	})
	assert.Equal(t, 1, m.OK)
	assert.Equal(t, 1, m.Partial)
	assert.Equal(t, 1, m.Failed)

	var table bytes.Buffer
	require.NoError(t, m.WriteTable(&table))
	out := table.String()
	assert.Contains(t, out, "Idle.gif")
	assert.Contains(t, out, "preview PreviewEncodingUnavailable: no ffmpeg")
	assert.Contains(t, out, "InputNotFound: input not found: Run.png")
	assert.True(t, strings.HasPrefix(out, "INPUT"))

	var js bytes.Buffer
	require.NoError(t, m.WriteJSON(&js))
	var back Manifest
	require.NoError(t, json.Unmarshal(js.Bytes(), &back))
	assert.Equal(t, m, back)
}
