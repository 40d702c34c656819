package imaging

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	_ "golang.org/x/image/webp"
)

// ValidationResult contains the results of source validation before any
// transform is attempted.
type ValidationResult struct {
	Valid        bool
	Width        int
	Height       int
	Format       string
	HasAlpha     bool
	OriginalSize int64
	ContentHash  string
}

// AllowedFormats are the source formats the optimizer will accept.
var AllowedFormats = map[string]bool{
	"jpeg": true,
	"png":  true,
	"webp": true,
	"gif":  true,
	"heic": true,
	"avif": true,
}

var magicJPEG = []byte{0xFF, 0xD8, 0xFF}
var magicPNG = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
var magicGIF = []byte{0x47, 0x49, 0x46, 0x38}

const maxPixels = int64(64 * 1024 * 1024) // 64 megapixels, decompression-bomb guard

// DetectFormat sniffs magic bytes rather than trusting a Content-Type
// header, per spec §4.1's directive parsing being content-addressed.
func DetectFormat(data []byte) string {
	if len(data) < 12 {
		return ""
	}
	if bytes.HasPrefix(data, magicJPEG) {
		return "jpeg"
	}
	if bytes.HasPrefix(data, magicPNG) {
		return "png"
	}
	if bytes.HasPrefix(data, magicGIF) {
		return "gif"
	}
	if bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")) {
		return "webp"
	}
	if bytes.Equal(data[4:8], []byte("ftyp")) {
		brand := string(data[8:12])
		switch brand {
		case "heic", "heix", "hevc", "hevx", "mif1":
			return "heic"
		case "avif", "avis":
			return "avif"
		}
	}
	return ""
}

// ValidateSource performs format detection, dimension/decompression-bomb
// checks, and content hashing against the given byte-size and dimension
// ceilings.
func ValidateSource(data []byte, maxBytes int64, maxDimension int) (*ValidationResult, error) {
	result := &ValidationResult{OriginalSize: int64(len(data))}

	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("file size %d exceeds maximum %d bytes", len(data), maxBytes)
	}

	format := DetectFormat(data)
	if format == "" {
		return nil, fmt.Errorf("unable to detect image format")
	}
	if !AllowedFormats[format] {
		return nil, fmt.Errorf("format %s is not allowed", format)
	}
	result.Format = format

	reader := bytes.NewReader(data)
	config, _, err := image.DecodeConfig(reader)
	if err != nil {
		if format != "heic" && format != "avif" {
			return nil, fmt.Errorf("failed to decode image: %w", err)
		}
	} else {
		result.Width = config.Width
		result.Height = config.Height

		if config.Width > maxDimension || config.Height > maxDimension {
			return nil, fmt.Errorf("image dimensions %dx%d exceed maximum %d", config.Width, config.Height, maxDimension)
		}
		if int64(config.Width)*int64(config.Height) > maxPixels {
			return nil, fmt.Errorf("image too large (potential decompression bomb)")
		}
	}

	hash := sha256.Sum256(data)
	result.ContentHash = hex.EncodeToString(hash[:])

	if _, err := reader.Seek(0, io.SeekStart); err == nil {
		if img, _, err := image.Decode(reader); err == nil {
			result.HasAlpha = hasAlphaChannel(img)
		}
	}

	result.Valid = true
	return result, nil
}

func hasAlphaChannel(img image.Image) bool {
	switch img.(type) {
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64:
		return true
	default:
		return false
	}
}

// ComputeContentHash computes the SHA-256 hash of data, used for upload
// deduplication.
func ComputeContentHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
