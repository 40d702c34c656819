// Package transform implements the URL transformation grammar: parsing a
// "/t/<directives>/<file>" path into a typed Params record, and
// canonicalizing that record into the stable form used for fingerprinting.
package transform

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// CropMode is the resize fit policy requested via the "c" directive.
type CropMode string

const (
	CropFill  CropMode = "fill"
	CropFit   CropMode = "fit"
	CropScale CropMode = "scale"
	CropCrop  CropMode = "crop"
	CropPad   CropMode = "pad"
)

// Gravity is the focal anchor used when a crop mode removes pixels.
type Gravity string

const (
	GravityCenter Gravity = "center"
	GravityNorth  Gravity = "north"
	GravitySouth  Gravity = "south"
	GravityEast   Gravity = "east"
	GravityWest   Gravity = "west"
	GravityFace   Gravity = "face"
	GravityAuto   Gravity = "auto"
)

// Params is the typed parameter record described in spec §3. Zero values
// mean "apply no such step"; Set tracks which keys were explicitly present
// so that e.g. width=0 is distinguishable from "unspecified".
type Params struct {
	Width  int
	Height int
	Resize string // legacy "WxH" shorthand, derived when both Width and Height are set

	Crop    CropMode
	Gravity Gravity
	Aspect  string // "W:H"

	Rotate string // numeric degrees as string, or "auto"

	Background string // hex, "transparent", "white", "black"

	Quality int
	Format  string

	StartOffset   float64
	EndOffset     float64
	Thumbnail     bool
	ThumbnailTime float64

	set map[string]bool
}

func newParams() *Params {
	return &Params{set: make(map[string]bool)}
}

func (p *Params) mark(key string) {
	if p.set == nil {
		p.set = make(map[string]bool)
	}
	p.set[key] = true
}

// Has reports whether the canonical key was present in the source directives.
func (p *Params) Has(key string) bool {
	if p.set == nil {
		return false
	}
	return p.set[key]
}

var cropAliases = map[string]CropMode{
	"fill":     CropFill,
	"lfill":    CropFill,
	"fill_pad": CropFill,
	"fit":      CropFit,
	"limit":    CropFit,
	"mfit":     CropFit,
	"scale":    CropScale,
	"crop":     CropCrop,
	"thumb":    CropCrop,
	"pad":      CropPad,
	"lpad":     CropPad,
}

var gravityAliases = map[string]Gravity{
	"center":      GravityCenter,
	"c":           GravityCenter,
	"north":       GravityNorth,
	"n":           GravityNorth,
	"south":       GravitySouth,
	"s":           GravitySouth,
	"east":        GravityEast,
	"e":           GravityEast,
	"west":        GravityWest,
	"w":           GravityWest,
	"face":        GravityFace,
	"faces":       GravityFace,
	"face_center": GravityFace,
	"auto":        GravityAuto,
}

// ParseResult is the output of Parse: the original file path, the raw
// directive segment (for diagnostics and signature verification), and the
// typed Params.
type ParseResult struct {
	OriginalPath string
	Directives   string // raw first path segment, "" if none was present
	Params       *Params
}

// Parse accepts a request path already stripped of its "/t/" (or
// "/s/<sig>/") marker prefix and splits it into directives and file path,
// per spec §4.1: the first segment is interpreted as directives only if it
// contains no "." and contains "," or "_".
func Parse(rest string) (*ParseResult, error) {
	rest = strings.TrimPrefix(rest, "/")
	segments := strings.Split(rest, "/")
	if len(segments) == 0 || segments[0] == "" {
		return nil, fmt.Errorf("empty transform path")
	}

	first := segments[0]
	isDirectives := !strings.Contains(first, ".") &&
		(strings.Contains(first, ",") || strings.Contains(first, "_"))

	params := newParams()
	var fileSegments []string
	var directives string

	if isDirectives {
		if err := parseDirectives(first, params); err != nil {
			return nil, err
		}
		fileSegments = segments[1:]
		directives = first
	} else {
		fileSegments = segments
	}

	if len(fileSegments) == 0 || (len(fileSegments) == 1 && fileSegments[0] == "") {
		return nil, fmt.Errorf("missing file path")
	}

	if params.Width > 0 && params.Height > 0 {
		params.Resize = fmt.Sprintf("%dx%d", params.Width, params.Height)
	}

	return &ParseResult{
		OriginalPath: strings.Join(fileSegments, "/"),
		Directives:   directives,
		Params:       params,
	}, nil
}

func parseDirectives(segment string, params *Params) error {
	for _, directive := range strings.Split(segment, ",") {
		if directive == "" {
			continue
		}
		idx := strings.Index(directive, "_")
		if idx < 0 {
			continue // unknown/malformed directive, silently ignored per spec
		}
		key := directive[:idx]
		value := directive[idx+1:]
		applyDirective(params, key, value)
	}
	return nil
}

func applyDirective(params *Params, key, value string) {
	switch key {
	case "w":
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			params.Width = n
			params.mark("width")
		}
	case "h":
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			params.Height = n
			params.mark("height")
		}
	case "c":
		if mode, ok := cropAliases[strings.ToLower(value)]; ok {
			params.Crop = mode
			params.mark("crop")
		}
	case "g":
		if gravity, ok := gravityAliases[strings.ToLower(value)]; ok {
			params.Gravity = gravity
			params.mark("gravity")
		}
	case "q":
		if n, err := strconv.Atoi(value); err == nil {
			params.Quality = n
			params.mark("quality")
		}
	case "f":
		params.Format = normalizeFormat(value)
		params.mark("format")
	case "a":
		params.Rotate = value
		params.mark("rotate")
	case "ar":
		params.Aspect = value
		params.mark("aspect")
	case "b", "bg":
		params.Background = normalizeBackground(value)
		params.mark("background")
	case "so":
		if f, err := strconv.ParseFloat(value, 64); err == nil && f >= 0 {
			params.StartOffset = f
			params.mark("startOffset")
		}
	case "eo":
		if f, err := strconv.ParseFloat(value, 64); err == nil && f >= 0 {
			params.EndOffset = f
			params.mark("endOffset")
		}
	case "t":
		params.Thumbnail = value == "true" || value == "1" || value == "yes"
		params.mark("thumbnail")
	case "tt":
		if f, err := strconv.ParseFloat(value, 64); err == nil && f >= 0 {
			params.ThumbnailTime = f
			params.mark("thumbnailTime")
		}
	default:
		// unknown directives are silently ignored
	}
}

func normalizeFormat(v string) string {
	v = strings.ToLower(v)
	if v == "jpg" {
		return "jpeg"
	}
	return v
}

func normalizeBackground(v string) string {
	v = strings.TrimSpace(v)
	switch strings.ToLower(v) {
	case "transparent", "white", "black":
		return strings.ToLower(v)
	}
	if strings.HasPrefix(v, "rgb:") {
		return "#" + strings.TrimPrefix(v, "rgb:")
	}
	if strings.HasPrefix(v, "#") {
		return v
	}
	return v
}

// Canonicalize produces the stable textual form used as the fingerprint
// input: default/empty values removed, remaining keys sorted
// lexicographically, jpg/jpeg normalized.
func (p *Params) Canonicalize() string {
	fields := map[string]string{}

	if p.Width > 0 {
		fields["width"] = strconv.Itoa(p.Width)
	}
	if p.Height > 0 {
		fields["height"] = strconv.Itoa(p.Height)
	}
	if p.Crop != "" {
		fields["crop"] = string(p.Crop)
	}
	if p.Gravity != "" {
		fields["gravity"] = string(p.Gravity)
	}
	if p.Aspect != "" {
		fields["aspect"] = p.Aspect
	}
	if p.Rotate != "" {
		fields["rotate"] = p.Rotate
	}
	if p.Background != "" {
		fields["background"] = p.Background
	}
	if p.Quality > 0 {
		fields["quality"] = strconv.Itoa(p.Quality)
	}
	if p.Format != "" {
		fields["format"] = normalizeFormat(p.Format)
	}
	if p.StartOffset > 0 {
		fields["startOffset"] = strconv.FormatFloat(p.StartOffset, 'f', -1, 64)
	}
	if p.EndOffset > 0 {
		fields["endOffset"] = strconv.FormatFloat(p.EndOffset, 'f', -1, 64)
	}
	if p.Thumbnail {
		fields["thumbnail"] = "true"
	}
	if p.ThumbnailTime > 0 {
		fields["thumbnailTime"] = strconv.FormatFloat(p.ThumbnailTime, 'f', -1, 64)
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fields[k])
	}
	return b.String()
}

// Clone returns a deep-enough copy of Params safe for mutation (used by the
// pipeline when it injects the auto-selected format before fingerprinting).
func (p *Params) Clone() *Params {
	clone := *p
	clone.set = make(map[string]bool, len(p.set))
	for k, v := range p.set {
		clone.set[k] = v
	}
	return &clone
}

// IsImageFormat reports whether ext (without leading dot, lowercase) names a
// format the image optimizer can handle.
func IsImageFormat(ext string) bool {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "jpg", "jpeg", "png", "webp", "gif", "avif":
		return true
	}
	return false
}

// IsVideoFormat reports whether ext names a format the video transformer
// can handle.
func IsVideoFormat(ext string) bool {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "mp4", "mov", "webm":
		return true
	}
	return false
}

// wireParams is the JSON-serializable projection of Params persisted in the
// job store's params_json column. Set carries the keys explicitly present
// in the source directives (sorted for a stable dedup-key encoding) so that
// e.g. an explicit quality=0 survives the round trip through the job
// queue instead of being indistinguishable from "quality unset" once the
// worker pool reloads it.
type wireParams struct {
	Width         int      `json:"width,omitempty"`
	Height        int      `json:"height,omitempty"`
	Crop          string   `json:"crop,omitempty"`
	Gravity       string   `json:"gravity,omitempty"`
	Aspect        string   `json:"aspect,omitempty"`
	Rotate        string   `json:"rotate,omitempty"`
	Background    string   `json:"background,omitempty"`
	Quality       int      `json:"quality,omitempty"`
	Format        string   `json:"format,omitempty"`
	StartOffset   float64  `json:"startOffset,omitempty"`
	EndOffset     float64  `json:"endOffset,omitempty"`
	Thumbnail     bool     `json:"thumbnail,omitempty"`
	ThumbnailTime float64  `json:"thumbnailTime,omitempty"`
	Set           []string `json:"set,omitempty"`
}

// ToJSON serializes Params for durable storage in the job queue.
func (p *Params) ToJSON() (string, error) {
	setKeys := make([]string, 0, len(p.set))
	for k := range p.set {
		setKeys = append(setKeys, k)
	}
	sort.Strings(setKeys)

	w := wireParams{
		Width:         p.Width,
		Height:        p.Height,
		Crop:          string(p.Crop),
		Gravity:       string(p.Gravity),
		Aspect:        p.Aspect,
		Rotate:        p.Rotate,
		Background:    p.Background,
		Quality:       p.Quality,
		Format:        p.Format,
		StartOffset:   p.StartOffset,
		EndOffset:     p.EndOffset,
		Thumbnail:     p.Thumbnail,
		ThumbnailTime: p.ThumbnailTime,
		Set:           setKeys,
	}
	data, err := json.Marshal(w)
	if err != nil {
		return "", fmt.Errorf("marshal params: %w", err)
	}
	return string(data), nil
}

// ParamsFromJSON reverses ToJSON, used by the worker pool to rebuild a
// Params record from a claimed job row.
func ParamsFromJSON(data string) (*Params, error) {
	var w wireParams
	if err := json.Unmarshal([]byte(data), &w); err != nil {
		return nil, fmt.Errorf("unmarshal params: %w", err)
	}
	p := newParams()
	p.Width = w.Width
	p.Height = w.Height
	p.Crop = CropMode(w.Crop)
	p.Gravity = Gravity(w.Gravity)
	p.Aspect = w.Aspect
	p.Rotate = w.Rotate
	p.Background = w.Background
	p.Quality = w.Quality
	p.Format = w.Format
	p.StartOffset = w.StartOffset
	p.EndOffset = w.EndOffset
	p.Thumbnail = w.Thumbnail
	p.ThumbnailTime = w.ThumbnailTime
	for _, key := range w.Set {
		p.mark(key)
	}
	return p, nil
}
