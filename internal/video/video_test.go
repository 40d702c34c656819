package video

import (
	"strconv"
	"strings"
	"testing"

	"mediaforge/internal/transform"
)

func parseParams(t *testing.T, rest string) *transform.Params {
	t.Helper()
	parsed, err := transform.Parse(rest)
	if err != nil {
		t.Fatalf("transform.Parse(%q): %v", rest, err)
	}
	return parsed.Params
}

func TestQualityToCRFLinearMapping(t *testing.T) {
	cases := map[int]int{
		0:   51,
		100: 18,
	}
	for quality, want := range cases {
		if got := qualityToCRF(quality); got != want {
			t.Errorf("qualityToCRF(%d) = %d, want %d", quality, got, want)
		}
	}
}

func TestQualityToCRFClampsOutOfRange(t *testing.T) {
	// out-of-range quality falls back to the quality=60 default per spec
	want := qualityToCRF(60)
	if got := qualityToCRF(-5); got != want {
		t.Errorf("qualityToCRF(-5) = %d, want fallback %d", got, want)
	}
	if got := qualityToCRF(500); got != want {
		t.Errorf("qualityToCRF(500) = %d, want fallback %d", got, want)
	}
}

func TestBuildArgsThumbnailUsesSingleFrame(t *testing.T) {
	params := &transform.Params{Thumbnail: true, ThumbnailTime: 2.5}
	args := buildArgs("in.mp4", "out.jpg", params)

	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-frames:v 1") {
		t.Errorf("expected a single-frame extraction, got args %v", args)
	}
	if !strings.Contains(joined, "-ss 2.5") {
		t.Errorf("expected the thumbnail time to be passed as -ss, got args %v", args)
	}
	if args[len(args)-1] != "out.jpg" {
		t.Errorf("expected destPath as the final argument, got %v", args)
	}
}

func TestBuildArgsTranscodeIncludesCRFAndDest(t *testing.T) {
	params := parseParams(t, "w_640,h_360,q_80/clip.mp4")
	args := buildArgs("in.mp4", "out.mp4", params)

	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-c:v libx264") {
		t.Errorf("expected libx264 encoding, got args %v", args)
	}
	wantCRF := "-crf " + strconv.Itoa(qualityToCRF(80))
	if !strings.Contains(joined, wantCRF) {
		t.Errorf("expected %q for quality=80, got args %v", wantCRF, args)
	}
	if args[len(args)-1] != "out.mp4" {
		t.Errorf("expected destPath as the final argument, got %v", args)
	}
}

func TestBuildArgsExplicitZeroQualityMapsToCRF51(t *testing.T) {
	params := parseParams(t, "q_0/clip.mp4")
	args := buildArgs("in.mp4", "out.mp4", params)

	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-crf 51") {
		t.Errorf("expected an explicit quality=0 to map to CRF 51, got args %v", args)
	}
}

func TestBuildArgsOmittedQualityUsesDefault(t *testing.T) {
	params := parseParams(t, "w_640/clip.mp4")
	args := buildArgs("in.mp4", "out.mp4", params)

	joined := strings.Join(args, " ")
	wantCRF := "-crf " + strconv.Itoa(qualityToCRF(60))
	if !strings.Contains(joined, wantCRF) {
		t.Errorf("expected the default quality=60 CRF when quality is omitted, got args %v", args)
	}
}

func TestBuildArgsAppliesEndOffsetRelativeToStart(t *testing.T) {
	params := &transform.Params{StartOffset: 5, EndOffset: 15}
	args := buildArgs("in.mp4", "out.mp4", params)

	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-t 10") {
		t.Errorf("expected a 10s duration (15-5), got args %v", args)
	}
}

func TestBuildScaleFilterDefaultsToAutoDownscale(t *testing.T) {
	filter := buildScaleFilter(&transform.Params{})
	if !strings.Contains(filter, "min(1280,iw)") {
		t.Errorf("expected the default auto-downscale filter, got %q", filter)
	}
}

func TestBuildScaleFilterCropModeUsesFixedDimensions(t *testing.T) {
	params := &transform.Params{Width: 200, Height: 200, Crop: transform.CropFill}
	filter := buildScaleFilter(params)
	if !strings.Contains(filter, "crop=200:200") {
		t.Errorf("expected a fixed crop filter, got %q", filter)
	}
}

func TestPreflightCheckRejectsOversizedSource(t *testing.T) {
	tr := NewTransformer("ffmpeg", "ffprobe", 0, 100)
	if err := tr.PreflightCheck(200); err == nil {
		t.Error("expected an error for a source over the configured ceiling")
	}
	if err := tr.PreflightCheck(50); err != nil {
		t.Errorf("unexpected error for a source under the ceiling: %v", err)
	}
}
