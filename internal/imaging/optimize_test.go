package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"mediaforge/internal/imaging/codec"
	"mediaforge/internal/transform"
)

func encodeSourcePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode source png: %v", err)
	}
	return buf.Bytes()
}

// With the format left unset, Optimize must still score every real
// candidate for the capability tier and keep the smallest, not collapse to
// a single a-priori guess.
func TestOptimizeScoresEveryRealCandidateWhenFormatUnset(t *testing.T) {
	source := encodeSourcePNG(t, 64, 64)
	params := &transform.Params{} // Format left unset, like a parsed request with no "f_" directive

	opt := NewOptimizer(codec.NewRegistry())
	capability := ClientCapability{WebP: true} // candidates: webp (fallback, skipped), jpeg, png

	result, err := opt.Optimize(source, params, capability, "png", false)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}

	decoded, _, err := image.Decode(bytes.NewReader(source))
	if err != nil {
		t.Fatalf("decode source: %v", err)
	}
	registry := codec.NewRegistry()
	jpegEnc, _ := registry.Get("jpeg")
	pngEnc, _ := registry.Get("png")
	jpegBytes, err := jpegEnc.Encode(decoded, codec.EncodeOptions{Quality: 82})
	if err != nil {
		t.Fatalf("reference jpeg encode: %v", err)
	}
	pngBytes, err := pngEnc.Encode(decoded, codec.EncodeOptions{Quality: 82})
	if err != nil {
		t.Fatalf("reference png encode: %v", err)
	}

	wantFormat := "jpeg"
	wantSize := len(jpegBytes)
	if len(pngBytes) < wantSize {
		wantFormat = "png"
		wantSize = len(pngBytes)
	}

	if result.Format != wantFormat {
		t.Errorf("Format = %q, want %q (the smaller of the real candidates)", result.Format, wantFormat)
	}
	if result.OptimizedSize != wantSize {
		t.Errorf("OptimizedSize = %d, want %d", result.OptimizedSize, wantSize)
	}
}

// An explicit format directive bypasses adaptive selection entirely: only
// that one candidate is ever encoded.
func TestOptimizeHonorsExplicitFormat(t *testing.T) {
	source := encodeSourcePNG(t, 32, 32)
	parsed, err := transform.Parse("f_png/photo.png")
	if err != nil {
		t.Fatalf("transform.Parse: %v", err)
	}

	opt := NewOptimizer(codec.NewRegistry())
	result, err := opt.Optimize(source, parsed.Params, ClientCapability{AVIF: true, WebP: true}, "png", false)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if result.Format != "png" {
		t.Errorf("Format = %q, want the explicitly requested %q even though AVIF/WebP are supported", result.Format, "png")
	}
}
