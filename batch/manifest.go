package batch

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	sftypes "sheet2frames/type"
)

type Status string

const (
	StatusOK      Status = "ok"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Result is the outcome of one input.
type Result struct {
	Input     string   `json:"input"`
	Status    Status   `json:"status"`
	OutputDir string   `json:"output_dir,omitempty"`
	Frames    []string `json:"frames,omitempty"`
	Sheet     string   `json:"sheet,omitempty"`

	Preview       string `json:"preview,omitempty"`
	PreviewFrames int    `json:"preview_frames,omitempty"`
	// PreviewEncodedFrames is the frame count ffprobe read back from an apng or mp4.
	PreviewEncodedFrames int          `json:"preview_encoded_frames,omitempty"`
	PreviewKind          sftypes.Kind `json:"preview_kind,omitempty"`
	PreviewError         string       `json:"preview_error,omitempty"`

	Outline      []string `json:"outline,omitempty"`
	OutlineError string   `json:"outline_error,omitempty"`

	Kind  sftypes.Kind `json:"kind,omitempty"`
	Error string       `json:"error,omitempty"`
}

func failed(input string, err error) Result {
	return Result{
		Input:  input,
		Status: StatusFailed,
		Kind:   sftypes.KindOf(err),
		Error:  err.Error(),
	}
}

// Manifest lists every input of a run in resolved order.
type Manifest struct {
	Results []Result `json:"results"`
	OK      int      `json:"ok"`
	Partial int      `json:"partial"`
	Failed  int      `json:"failed"`
}

func newManifest(results []Result) Manifest {
	m := Manifest{Results: results}
	for _, r := range results {
		switch r.Status {
		case StatusOK:
			m.OK++
		case StatusPartial:
			m.Partial++
		default:
			m.Failed++
		}
	}
	return m
}

// Err reports a failed run. With strict, partial inputs count as failures too.
func (m Manifest) Err(strict bool) error {
	bad := m.Failed
	if strict {
		bad += m.Partial
	}
	if bad == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d inputs failed", bad, len(m.Results))
}

// WriteTable prints the manifest for humans.
func (m Manifest) WriteTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INPUT\tSTATUS\tFRAMES\tOUTPUT\tDETAIL")
	for _, r := range m.Results {
		detail := ""
		switch {
		case r.Status == StatusFailed:
			detail = fmt.Sprintf("%s: %s", r.Kind, r.Error)
		case r.PreviewError != "":
			detail = fmt.Sprintf("preview %s: %s", r.PreviewKind, r.PreviewError)
		case r.OutlineError != "":
			detail = "outline: " + r.OutlineError
		case r.Preview != "":
			detail = filepath.Base(r.Preview)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", r.Input, r.Status, len(r.Frames), r.OutputDir, detail)
	}
	fmt.Fprintf(tw, "\n%d ok, %d partial, %d failed\n", m.OK, m.Partial, m.Failed)
	return tw.Flush()
}

func (m Manifest) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}
