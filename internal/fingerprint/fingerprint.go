// Package fingerprint derives stable, content-addressed cache keys from an
// original path and a canonicalized parameter record, per spec §4.2.
package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"path/filepath"
	"strings"

	"mediaforge/internal/transform"
)

// Fingerprint is the derived key set for a single (original, params) pair.
type Fingerprint struct {
	Digest        string // hex md5
	Extension     string // original file extension, lowercase, no dot
	RemoteKey     string // "cache/<digest>.<ext>"
	LocalFileName string // filesystem-safe variant
}

// Compute implements spec §4.2: concatenate original path and canonical
// params, hash, and emit the remote/local key forms.
//
// Invariant: two Params producing byte-identical Canonicalize() output
// always yield equal Fingerprint.Digest for the same originalPath.
func Compute(originalPath string, params *transform.Params) Fingerprint {
	canonical := params.Canonicalize()
	sum := md5.Sum([]byte(originalPath + "||" + canonical))
	digest := hex.EncodeToString(sum[:])

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(originalPath), "."))
	if ext == "" {
		ext = "bin"
	}

	return Fingerprint{
		Digest:        digest,
		Extension:     ext,
		RemoteKey:     "cache/" + digest + "." + ext,
		LocalFileName: digest + "." + ext,
	}
}

// SafeStem returns a filesystem-safe encoding of an original path, used by
// the local disk cache's delete_matching scan and by Invalidate to find
// every derived artifact of a given original.
func SafeStem(originalPath string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", " ", "_")
	return replacer.Replace(strings.TrimSuffix(originalPath, filepath.Ext(originalPath)))
}
