// Package signature implements the HMAC-SHA256 request signing described in
// spec §4.15, grounded on the teacher's auth package's constant-time
// comparison discipline for credential checks.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"path"
	"strings"
)

const signatureLength = 16

// Sign computes the canonical 16-hex-character signature for a transform
// request: HMAC-SHA256 over "<transformations>/<sanitized file path>",
// truncated to signatureLength hex characters.
func Sign(secret, transformations, filePath string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(transformations + "/" + Sanitize(filePath)))
	sum := mac.Sum(nil)
	return hex.EncodeToString(sum)[:signatureLength]
}

// Verify reports whether the supplied signature matches the expected one for
// transformations+filePath, using a constant-time comparison and rejecting
// length mismatches immediately (spec §4.15's "eager length-mismatch
// rejection").
func Verify(secret, transformations, filePath, provided string) bool {
	if len(provided) != signatureLength {
		return false
	}
	expected := Sign(secret, transformations, filePath)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) == 1
}

// Sanitize normalizes a file path for signing and for serving: it resolves
// "." and ".." segments via path.Clean and strips any leading "/", so that
// "/a/../b" and "b" sign identically and traversal segments cannot escape
// the intended prefix.
func Sanitize(filePath string) string {
	cleaned := path.Clean("/" + filePath)
	return strings.TrimPrefix(cleaned, "/")
}
