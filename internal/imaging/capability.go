package imaging

import (
	"regexp"
	"strconv"
	"strings"
)

// ClientCapability summarizes what output formats a requesting client can
// decode, derived from the Accept header (authoritative when present) or
// User-Agent sniffing as a fallback, per spec §4.7.
type ClientCapability struct {
	AVIF bool
	WebP bool
}

// DetectCapability inspects accept and userAgent to build a ClientCapability.
func DetectCapability(accept, userAgent string) ClientCapability {
	if accept != "" {
		return ClientCapability{
			AVIF: strings.Contains(accept, "image/avif"),
			WebP: strings.Contains(accept, "image/webp"),
		}
	}
	return sniffUserAgent(userAgent)
}

var (
	chromeRe = regexp.MustCompile(`Chrome/(\d+)`)
	firefoxRe = regexp.MustCompile(`Firefox/(\d+)`)
	safariVersionRe = regexp.MustCompile(`Version/(\d+).*Safari/`)
	edgeRe = regexp.MustCompile(`Edg/(\d+)`)
)

func sniffUserAgent(ua string) ClientCapability {
	if ua == "" {
		return ClientCapability{}
	}

	legacy := strings.Contains(ua, "MSIE") || strings.Contains(ua, "Trident")
	if legacy {
		return ClientCapability{}
	}

	result := ClientCapability{WebP: true} // WebP assumed unless legacy IE/Trident

	if m := edgeRe.FindStringSubmatch(ua); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil && v >= 122 {
			result.AVIF = true
		}
		return result
	}
	if m := chromeRe.FindStringSubmatch(ua); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil && v >= 85 {
			result.AVIF = true
		}
		return result
	}
	if m := firefoxRe.FindStringSubmatch(ua); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil && v >= 93 {
			result.AVIF = true
		}
		return result
	}
	if strings.Contains(ua, "Safari") && !strings.Contains(ua, "Chrome") {
		if m := safariVersionRe.FindStringSubmatch(ua); m != nil {
			if v, err := strconv.Atoi(m[1]); err == nil && v >= 16 {
				result.AVIF = true
			}
		}
	}
	return result
}

// CandidateFormats builds the ordered candidate set for adaptive format
// selection: the first element is encoded first but every candidate is
// tried and the smallest wins, per spec §4.7.
func CandidateFormats(capability ClientCapability, sourceFormat string, hasAlpha bool) []string {
	sourceIsPNG := sourceFormat == "png"

	switch {
	case capability.AVIF:
		candidates := []string{"avif", "webp", "jpeg"}
		if sourceIsPNG {
			candidates = append(candidates, "png")
		}
		return candidates
	case capability.WebP:
		candidates := []string{"webp", "jpeg"}
		if sourceIsPNG {
			candidates = append(candidates, "png")
		}
		return candidates
	default:
		if sourceIsPNG && hasAlpha {
			return []string{"png"}
		}
		return []string{"jpeg"}
	}
}

// PredictFormat is the pure function spec §4.7 requires for cache-key
// computation: it returns the format the optimizer *would* pick without
// encoding anything, so the pipeline can fold it into the fingerprint.
func PredictFormat(capability ClientCapability, sourceFormat string, hasAlpha bool) string {
	candidates := CandidateFormats(capability, sourceFormat, hasAlpha)
	if len(candidates) == 0 {
		return "jpeg"
	}
	return candidates[0]
}
