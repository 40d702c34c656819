package fingerprint

import (
	"testing"

	"mediaforge/internal/transform"
)

func parseParams(t *testing.T, rest string) *transform.Params {
	t.Helper()
	result, err := transform.Parse(rest)
	if err != nil {
		t.Fatalf("transform.Parse(%q): %v", rest, err)
	}
	return result.Params
}

func TestComputeIsDeterministic(t *testing.T) {
	params := parseParams(t, "w_100,h_100/photos/a.jpg")

	a := Compute("photos/a.jpg", params)
	b := Compute("photos/a.jpg", params)

	if a.Digest != b.Digest {
		t.Errorf("expected identical digests, got %q and %q", a.Digest, b.Digest)
	}
	if a.RemoteKey != "cache/"+a.Digest+".jpg" {
		t.Errorf("RemoteKey = %q, want cache/%s.jpg", a.RemoteKey, a.Digest)
	}
}

func TestComputeDiffersOnOriginalPath(t *testing.T) {
	params := parseParams(t, "w_100/photos/a.jpg")

	a := Compute("photos/a.jpg", params)
	b := Compute("photos/b.jpg", params)

	if a.Digest == b.Digest {
		t.Error("expected different original paths to produce different digests")
	}
}

func TestComputeDiffersOnParams(t *testing.T) {
	small := parseParams(t, "w_100/photos/a.jpg")
	large := parseParams(t, "w_200/photos/a.jpg")

	a := Compute("photos/a.jpg", small)
	b := Compute("photos/a.jpg", large)

	if a.Digest == b.Digest {
		t.Error("expected different params to produce different digests")
	}
}

func TestComputeSameForEquivalentDirectiveOrder(t *testing.T) {
	first := parseParams(t, "w_300,h_200,c_fit/img.jpg")
	second := parseParams(t, "c_fit,h_200,w_300/img.jpg")

	a := Compute("img.jpg", first)
	b := Compute("img.jpg", second)

	if a.Digest != b.Digest {
		t.Error("expected directive reordering to not affect the fingerprint")
	}
}

func TestComputeDefaultsExtensionWhenMissing(t *testing.T) {
	params := parseParams(t, "w_1/noext")
	fp := Compute("noext", params)
	if fp.Extension != "bin" {
		t.Errorf("Extension = %q, want %q", fp.Extension, "bin")
	}
}

func TestSafeStemReplacesPathSeparatorsAndSpaces(t *testing.T) {
	got := SafeStem("photos/my trip/dog.jpg")
	want := "photos_my_trip_dog"
	if got != want {
		t.Errorf("SafeStem() = %q, want %q", got, want)
	}
}
