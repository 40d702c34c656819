package imaging

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodeTestJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func encodeTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestDetectFormatRecognizesMagicBytes(t *testing.T) {
	jpegData := encodeTestJPEG(t, 4, 4)
	if got := DetectFormat(jpegData); got != "jpeg" {
		t.Errorf("DetectFormat(jpeg) = %q, want %q", got, "jpeg")
	}

	pngData := encodeTestPNG(t, 4, 4)
	if got := DetectFormat(pngData); got != "png" {
		t.Errorf("DetectFormat(png) = %q, want %q", got, "png")
	}
}

func TestDetectFormatReturnsEmptyForUnknownData(t *testing.T) {
	if got := DetectFormat([]byte("not an image, too short")); got != "" {
		t.Errorf("DetectFormat(garbage) = %q, want empty", got)
	}
	if got := DetectFormat(nil); got != "" {
		t.Errorf("DetectFormat(nil) = %q, want empty", got)
	}
}

func TestValidateSourceAcceptsWellFormedImage(t *testing.T) {
	data := encodeTestJPEG(t, 100, 50)
	result, err := ValidateSource(data, 1<<20, 4096)
	if err != nil {
		t.Fatalf("ValidateSource: %v", err)
	}
	if !result.Valid || result.Format != "jpeg" || result.Width != 100 || result.Height != 50 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestValidateSourceRejectsOversizedPayload(t *testing.T) {
	data := encodeTestJPEG(t, 10, 10)
	if _, err := ValidateSource(data, 1, 4096); err == nil {
		t.Fatal("expected an error for a payload over the byte ceiling")
	}
}

func TestValidateSourceRejectsOversizedDimensions(t *testing.T) {
	data := encodeTestJPEG(t, 500, 500)
	if _, err := ValidateSource(data, 1<<20, 100); err == nil {
		t.Fatal("expected an error for dimensions over the configured maximum")
	}
}

func TestValidateSourceRejectsUnrecognizedFormat(t *testing.T) {
	if _, err := ValidateSource([]byte("just some random bytes, not an image!!"), 1<<20, 4096); err == nil {
		t.Fatal("expected an error for unrecognized image data")
	}
}

func TestComputeContentHashIsStableAndDistinct(t *testing.T) {
	a := ComputeContentHash([]byte("hello"))
	b := ComputeContentHash([]byte("hello"))
	c := ComputeContentHash([]byte("world"))

	if a != b {
		t.Error("expected identical input to hash identically")
	}
	if a == c {
		t.Error("expected different input to hash differently")
	}
}
