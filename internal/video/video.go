// Package video implements the single-shot external-transcoder invocation
// described in spec §4.8, grounded on bitriver-live's cmd/transcoder
// process-management pattern: exec.CommandContext with a hard timeout, a
// line-buffered log writer, and explicit kill-on-timeout semantics.
package video

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"mediaforge/internal/transform"
)

// Probe is the subset of ffprobe's output the pipeline needs to log
// warnings and make transcode decisions.
type Probe struct {
	Width    int
	Height   int
	Duration float64
	Codec    string
	Bitrate  int64
}

// Transformer invokes ffmpeg/ffprobe as external processes.
type Transformer struct {
	FFmpegPath  string
	FFprobePath string
	Timeout     time.Duration
	MaxSourceBytes int64
}

// NewTransformer builds a Transformer with the given binary paths, timeout,
// and pre-flight size ceiling.
func NewTransformer(ffmpegPath, ffprobePath string, timeout time.Duration, maxSourceBytes int64) *Transformer {
	return &Transformer{
		FFmpegPath:     ffmpegPath,
		FFprobePath:    ffprobePath,
		Timeout:        timeout,
		MaxSourceBytes: maxSourceBytes,
	}
}

// PreflightCheck rejects sources above the configured size ceiling.
func (t *Transformer) PreflightCheck(sourceSize int64) error {
	if sourceSize > t.MaxSourceBytes {
		return fmt.Errorf("source size %d exceeds maximum %d bytes", sourceSize, t.MaxSourceBytes)
	}
	return nil
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
	BitRate  string `json:"bit_rate"`
}

type ffprobeStream struct {
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

// Probe extracts width, height, duration, codec, and bitrate, logging a
// warning for resolutions at or above 3000px wide.
func (t *Transformer) Probe(ctx context.Context, sourcePath string) (*Probe, error) {
	cmd := exec.CommandContext(ctx, t.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration,bit_rate",
		"-show_entries", "stream=codec_type,codec_name,width,height",
		"-of", "json",
		sourcePath,
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %w", err)
	}

	var parsed ffprobeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	probe := &Probe{}
	if d, err := strconv.ParseFloat(parsed.Format.Duration, 64); err == nil {
		probe.Duration = d
	}
	if b, err := strconv.ParseInt(parsed.Format.BitRate, 10, 64); err == nil {
		probe.Bitrate = b
	}
	for _, s := range parsed.Streams {
		if s.CodecType == "video" {
			probe.Width = s.Width
			probe.Height = s.Height
			probe.Codec = s.CodecName
			break
		}
	}

	if probe.Width >= 3000 {
		slog.Warn("video source has very large resolution", "width", probe.Width, "height", probe.Height, "source", sourcePath)
	}

	return probe, nil
}

// qualityToCRF maps 0-100 -> CRF 51-18 linearly, per spec §4.8 step 5.
func qualityToCRF(quality int) int {
	if quality < 0 || quality > 100 {
		quality = 60
	}
	crf := 51 - float64(quality)*33/100
	return int(math.Round(crf))
}

// Transcode composes ffmpeg arguments per spec §4.8 and runs the process
// with a hard timeout, writing output to destPath.
func (t *Transformer) Transcode(ctx context.Context, sourcePath, destPath string, params *transform.Params) error {
	args := buildArgs(sourcePath, destPath, params)

	ctx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.FFmpegPath, args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("attach stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	go logLines(stderr)

	waitErr := cmd.Wait()

	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("ffmpeg transcode timed out after %s", t.Timeout)
	}
	if waitErr != nil {
		return fmt.Errorf("ffmpeg: %w", waitErr)
	}
	return nil
}

func logLines(r interface{ Read([]byte) (int, error) }) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		slog.Debug("ffmpeg", "line", scanner.Text())
	}
}

// buildArgs implements the ordered argument composition of spec §4.8.
func buildArgs(sourcePath, destPath string, params *transform.Params) []string {
	var args []string

	if params.Thumbnail {
		seek := params.ThumbnailTime
		if params.StartOffset > seek {
			seek = params.StartOffset
		}
		if seek < 0 {
			seek = 0
		}
		args = append(args, "-ss", formatSeconds(seek), "-i", sourcePath, "-frames:v", "1")
		if vf := buildScaleFilter(params); vf != "" {
			args = append(args, "-vf", vf)
		}
		args = append(args, destPath)
		return args
	}

	if params.StartOffset > 0 {
		args = append(args, "-ss", formatSeconds(params.StartOffset))
	}
	args = append(args, "-i", sourcePath)

	if params.EndOffset > 0 {
		duration := params.EndOffset
		if params.StartOffset > 0 {
			duration = params.EndOffset - params.StartOffset
		}
		if duration > 0 {
			args = append(args, "-t", formatSeconds(duration))
		}
	}

	vf := buildScaleFilter(params)
	if vf != "" {
		args = append(args, "-vf", vf)
	}

	quality := params.Quality
	if !params.Has("quality") {
		quality = 60
	}
	crf := qualityToCRF(quality)

	args = append(args,
		"-c:v", "libx264",
		"-crf", strconv.Itoa(crf),
		"-preset", "ultrafast",
		"-tune", "fastdecode",
		"-profile:v", "baseline",
		"-level", "3.0",
		"-c:a", "copy",
		"-threads", "4",
		"-movflags", "+faststart",
		"-max_muxing_queue_size", "9999",
		destPath,
	)

	return args
}

func buildScaleFilter(params *transform.Params) string {
	if params.Width == 0 && params.Height == 0 {
		// auto-downscale: neither dimension exceeds 1280x720, even dims
		return "scale='min(1280,iw)':'min(720,ih)':force_original_aspect_ratio=decrease,scale=trunc(iw/2)*2:trunc(ih/2)*2"
	}

	if params.Crop == transform.CropFill || params.Crop == transform.CropCrop {
		w, h := params.Width, params.Height
		if w == 0 {
			w = h
		}
		if h == 0 {
			h = w
		}
		return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d", w, h, w, h)
	}

	w, h := params.Width, params.Height
	if w == 0 {
		w = -1
	}
	if h == 0 {
		h = -1
	}
	return fmt.Sprintf("scale=%d:%d", w, h)
}

func formatSeconds(s float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.3f", s), "0"), ".")
}
