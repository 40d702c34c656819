package codec

import (
	"fmt"
	"image"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
)

var vipsInitOnce sync.Once

// RegisterVipsEncoders swaps the registry's WebP/AVIF fallback encoders for
// real libvips-backed ones, grounded on Skryldev-image-processor's
// adapters/vips encoder: govips gives genuine AVIF/WebP encoding that pure
// Go's image/* cannot produce. Until it is called, the registry keeps
// NewRegistry's WebP/AVIF placeholders, which cannot encode. This package
// imports govips in every build, so building it needs cgo and libvips.
func RegisterVipsEncoders(r *Registry) {
	vipsInitOnce.Do(func() {
		vips.Startup(nil)
	})
	r.Register(vipsEncoder{format: "webp"})
	r.Register(vipsEncoder{format: "avif"})
}

type vipsEncoder struct {
	format string
}

func (v vipsEncoder) Format() string { return v.format }

func (v vipsEncoder) Encode(img image.Image, opts EncodeOptions) ([]byte, error) {
	quality := opts.Quality
	if quality <= 0 {
		quality = 78
	}

	pngBytes, err := pngEncoder{}.Encode(img, EncodeOptions{})
	if err != nil {
		return nil, fmt.Errorf("encode intermediate for vips: %w", err)
	}

	ref, err := vips.NewImageFromBuffer(pngBytes)
	if err != nil {
		return nil, fmt.Errorf("vips load: %w", err)
	}
	defer ref.Close()

	switch v.format {
	case "webp":
		out, _, err := ref.ExportWebp(&vips.WebpExportParams{Quality: quality})
		if err != nil {
			return nil, fmt.Errorf("vips export webp: %w", err)
		}
		return out, nil
	case "avif":
		out, _, err := ref.ExportAvif(&vips.AvifExportParams{Quality: quality})
		if err != nil {
			return nil, fmt.Errorf("vips export avif: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported vips format %q", v.format)
	}
}
