package preview

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"strconv"
	"strings"
	"time"

	sftypes "sheet2frames/type"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// encodeFFmpeg streams the frames as PNGs through image2pipe into ffmpeg.
func encodeFFmpeg(ctx context.Context, frames []*image.NRGBA, delay time.Duration, format sftypes.PreviewFormat, path string) error {
	var in bytes.Buffer
	for i, f := range frames {
		if err := png.Encode(&in, f); err != nil {
			return fmt.Errorf("encode frame %d failed: %w", i+1, err)
		}
	}

	fps := strconv.FormatFloat(float64(time.Second)/float64(delay), 'f', -1, 64)
	var out ffmpeg.KwArgs
	switch format {
	case sftypes.FormatAPNG:
		out = ffmpeg.KwArgs{
			"f":       "apng",
			"plays":   0,
			"pix_fmt": "rgba",
		}
	case sftypes.FormatMP4:
		out = ffmpeg.KwArgs{
			"vcodec":   "libx264",
			"pix_fmt":  "yuv420p",
			"vf":       "pad=ceil(iw/2)*2:ceil(ih/2)*2",
			"movflags": "+faststart",
		}
	default:
		return fmt.Errorf("%w: ffmpeg does not encode %q previews", sftypes.ErrInvalidPreviewSpec, format)
	}

	var stderr bytes.Buffer
	cmd := ffmpeg.Input("pipe:0", ffmpeg.KwArgs{
		"f":         "image2pipe",
		"vcodec":    "png",
		"framerate": fps,
	}).
		Output(path, out).
		OverWriteOutput().
		WithInput(&in).
		WithErrorOutput(&stderr)
	cmd.Context = ctx

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return encodeError(format, err, stderr.String())
	}
	return nil
}

// encoderMissing matches ffmpeg's messages for codecs or muxers left out of its build.
var encoderMissing = []string{"Unknown encoder", "Encoder not found", "Requested output format", "Unknown output format"}

// encodeError reports a failed ffmpeg run. An ffmpeg build that lacks the
// encoder (libx264, apng) counts as PreviewEncodingUnavailable.
func encodeError(format sftypes.PreviewFormat, err error, stderr string) error {
	out := tail(stderr, 20)
	for _, m := range encoderMissing {
		if strings.Contains(stderr, m) {
			return fmt.Errorf("%w: ffmpeg cannot encode %s: %v\noutput: %s", sftypes.ErrPreviewEncodingUnavailable, format, err, out)
		}
	}
	return fmt.Errorf("ffmpeg %s encode failed: %w\noutput: %s", format, err, out)
}

// VideoProbe 只关心视频流
type VideoProbe struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		NbFrames     string `json:"nb_frames"`
		NbReadFrames string `json:"nb_read_frames"`
		AvgFrameRate string `json:"avg_frame_rate"`
		Duration     string `json:"duration"`
	} `json:"streams"`
}

// probeFrameCount asks ffprobe how many frames the encoded preview holds.
// Frames are counted by decoding, since the apng demuxer leaves nb_frames empty.
func probeFrameCount(path string) (int, error) {
	probeStr, err := ffmpeg.Probe(path, ffmpeg.KwArgs{"count_frames": "", "select_streams": "v:0"})
	if err != nil {
		return 0, fmt.Errorf("ffprobe error: %w", err)
	}

	var probe VideoProbe
	if err := json.Unmarshal([]byte(probeStr), &probe); err != nil {
		return 0, fmt.Errorf("json unmarshal error: %w", err)
	}

	for _, stream := range probe.Streams {
		if stream.CodecType != "video" {
			continue
		}
		if n, err := strconv.Atoi(stream.NbReadFrames); err == nil && n > 0 {
			return n, nil
		}
		if n, err := strconv.Atoi(stream.NbFrames); err == nil && n > 0 {
			return n, nil
		}
		// nb_frames is missing for some muxers: estimate from duration × fps
		rate, okRate := parseRate(stream.AvgFrameRate)
		dur, err := strconv.ParseFloat(stream.Duration, 64)
		if okRate && err == nil {
			return int(dur*rate + 0.5), nil
		}
	}
	return 0, fmt.Errorf("no video stream found or cannot determine frame count")
}

func parseRate(s string) (float64, bool) {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return 0, false
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0, false
	}
	return n / d, true
}

// tail keeps the last n lines of ffmpeg's chatty stderr.
func tail(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
