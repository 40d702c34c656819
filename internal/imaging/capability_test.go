package imaging

import "testing"

func TestDetectCapabilityPrefersAcceptHeader(t *testing.T) {
	capability := DetectCapability("image/avif,image/webp,*/*", "Mozilla/5.0 (MSIE)")
	if !capability.AVIF || !capability.WebP {
		t.Errorf("expected Accept header to win over a legacy User-Agent, got %+v", capability)
	}
}

func TestDetectCapabilityFallsBackToUserAgent(t *testing.T) {
	capability := DetectCapability("", "Mozilla/5.0 Chrome/100.0.0.0 Safari/537.36")
	if !capability.AVIF || !capability.WebP {
		t.Errorf("expected modern Chrome to support AVIF+WebP, got %+v", capability)
	}
}

func TestDetectCapabilityLegacyIEHasNoModernFormats(t *testing.T) {
	capability := DetectCapability("", "Mozilla/4.0 (compatible; MSIE 8.0; Trident/4.0)")
	if capability.AVIF || capability.WebP {
		t.Errorf("expected legacy IE to support neither AVIF nor WebP, got %+v", capability)
	}
}

func TestDetectCapabilityOldChromeHasNoAVIF(t *testing.T) {
	capability := DetectCapability("", "Mozilla/5.0 Chrome/50.0.0.0 Safari/537.36")
	if capability.AVIF {
		t.Error("expected Chrome 50 to not support AVIF")
	}
	if !capability.WebP {
		t.Error("expected Chrome 50 to support WebP")
	}
}

func TestCandidateFormatsOrdering(t *testing.T) {
	cases := []struct {
		name     string
		cap      ClientCapability
		source   string
		hasAlpha bool
		want     []string
	}{
		{"avif client", ClientCapability{AVIF: true}, "jpeg", false, []string{"avif", "webp", "jpeg"}},
		{"avif client png source", ClientCapability{AVIF: true}, "png", false, []string{"avif", "webp", "jpeg", "png"}},
		{"webp only client", ClientCapability{WebP: true}, "jpeg", false, []string{"webp", "jpeg"}},
		{"no modern support, png with alpha", ClientCapability{}, "png", true, []string{"png"}},
		{"no modern support, jpeg source", ClientCapability{}, "jpeg", false, []string{"jpeg"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CandidateFormats(tc.cap, tc.source, tc.hasAlpha)
			if len(got) != len(tc.want) {
				t.Fatalf("CandidateFormats() = %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("CandidateFormats()[%d] = %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestPredictFormatMatchesFirstCandidate(t *testing.T) {
	cap := ClientCapability{AVIF: true}
	if got := PredictFormat(cap, "jpeg", false); got != "avif" {
		t.Errorf("PredictFormat() = %q, want %q", got, "avif")
	}
}
