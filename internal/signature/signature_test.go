package signature

import "testing"

func TestSignVerifyRoundTrip(t *testing.T) {
	sig := Sign("secret", "w_100,h_100", "photos/a.jpg")
	if len(sig) != signatureLength {
		t.Fatalf("Sign() length = %d, want %d", len(sig), signatureLength)
	}
	if !Verify("secret", "w_100,h_100", "photos/a.jpg", sig) {
		t.Error("expected a freshly signed URL to verify")
	}
}

func TestVerifyRejectsTamperedPath(t *testing.T) {
	sig := Sign("secret", "w_100,h_100", "photos/a.jpg")
	if Verify("secret", "w_100,h_100", "photos/b.jpg", sig) {
		t.Error("expected verification to fail for a different file path")
	}
}

func TestVerifyRejectsTamperedDirectives(t *testing.T) {
	sig := Sign("secret", "w_100,h_100", "photos/a.jpg")
	if Verify("secret", "w_999,h_999", "photos/a.jpg", sig) {
		t.Error("expected verification to fail for different directives")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	sig := Sign("secret", "w_100,h_100", "photos/a.jpg")
	if Verify("other-secret", "w_100,h_100", "photos/a.jpg", sig) {
		t.Error("expected verification to fail for the wrong secret")
	}
}

func TestVerifyRejectsWrongLengthWithoutPanicking(t *testing.T) {
	if Verify("secret", "w_100,h_100", "photos/a.jpg", "short") {
		t.Error("expected a too-short signature to be rejected")
	}
	if Verify("secret", "w_100,h_100", "photos/a.jpg", "") {
		t.Error("expected an empty signature to be rejected")
	}
}

func TestSanitizeNormalizesDotSegments(t *testing.T) {
	cases := map[string]string{
		"photos/a.jpg":        "photos/a.jpg",
		"../../etc/passwd":    "etc/passwd",
		"./photos/./a.jpg":    "photos/a.jpg",
		"photos//a.jpg":       "photos/a.jpg",
	}
	for in, want := range cases {
		if got := Sanitize(in); got != want {
			t.Errorf("Sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}
