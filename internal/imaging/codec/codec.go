// Package codec is a small pluggable encoder registry for the image
// optimizer's adaptive format selection, in the shape of
// Skryldev-image-processor's core.Encoder/Registry interfaces: each output
// format is a named Encoder so new backends (e.g. a libvips-backed AVIF/WebP
// encoder) can be registered without touching the optimizer's pipeline.
package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
)

// EncodeOptions carries the knobs an Encoder may honor.
type EncodeOptions struct {
	Quality int // 1-100, meaning is encoder-specific
}

// Encoder turns a decoded image into bytes of its format.
type Encoder interface {
	Format() string
	Encode(img image.Image, opts EncodeOptions) ([]byte, error)
}

// Registry holds the set of available encoders, keyed by format name.
type Registry struct {
	encoders map[string]Encoder
}

// NewRegistry builds a Registry pre-populated with the default encoder set:
// real JPEG/PNG via the standard library, and WebP/AVIF placeholder
// encoders whose Encode always fails (see RegisterVipsEncoders for the
// libvips-backed replacement).
func NewRegistry() *Registry {
	r := &Registry{encoders: make(map[string]Encoder)}
	r.Register(jpegEncoder{})
	r.Register(pngEncoder{})
	r.Register(fallbackEncoder{format: "webp"})
	r.Register(fallbackEncoder{format: "avif"})
	return r
}

// Register adds or replaces the encoder for its declared format.
func (r *Registry) Register(e Encoder) {
	r.encoders[e.Format()] = e
}

// Get returns the encoder for format, or ok=false if none is registered.
func (r *Registry) Get(format string) (Encoder, bool) {
	e, ok := r.encoders[format]
	return e, ok
}

type jpegEncoder struct{}

func (jpegEncoder) Format() string { return "jpeg" }

func (jpegEncoder) Encode(img image.Image, opts EncodeOptions) ([]byte, error) {
	quality := opts.Quality
	if quality <= 0 {
		quality = 82
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

type pngEncoder struct{}

func (pngEncoder) Format() string { return "png" }

func (pngEncoder) Encode(img image.Image, _ EncodeOptions) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// fallbackEncoder represents a format pure Go cannot encode (WebP, AVIF)
// without libvips bindings. It reports its real format, and its Encode
// always returns an error; IsFallback lets the optimizer skip it as a
// candidate.
type fallbackEncoder struct {
	format string
}

func (f fallbackEncoder) Format() string { return f.format }

var errNoPureGoEncoder = fmt.Errorf("no pure-Go encoder available for this format")

func (f fallbackEncoder) Encode(image.Image, EncodeOptions) ([]byte, error) {
	return nil, errNoPureGoEncoder
}

// IsFallback reports whether enc is a non-functional placeholder, so the
// optimizer can skip straight past it instead of paying for the failed
// Encode call.
func IsFallback(e Encoder) bool {
	_, ok := e.(fallbackEncoder)
	return ok
}
