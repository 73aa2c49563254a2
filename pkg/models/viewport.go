package models

import (
	"fmt"
	"strconv"
	"strings"
)

// ViewportSpec is a named width/height configuration used to render a page.
type ViewportSpec struct {
	// Name identifies the viewport (e.g., "desktop").
	Name string `json:"name"`
	// Width is the viewport width in CSS pixels.
	Width int `json:"width"`
	// Height is the viewport height in CSS pixels.
	Height int `json:"height"`
}

// String returns the viewport in name:WxH form.
func (v ViewportSpec) String() string {
	return fmt.Sprintf("%s:%dx%d", v.Name, v.Width, v.Height)
}

// Dimensions returns the viewport size as WxH.
func (v ViewportSpec) Dimensions() string {
	return fmt.Sprintf("%dx%d", v.Width, v.Height)
}

// Validate checks that the viewport has a name and positive dimensions.
func (v ViewportSpec) Validate() error {
	if strings.TrimSpace(v.Name) == "" {
		return fmt.Errorf("viewport name is required")
	}
	if v.Width <= 0 || v.Height <= 0 {
		return fmt.Errorf("viewport %s: dimensions must be positive, got %dx%d", v.Name, v.Width, v.Height)
	}
	return nil
}

// DefaultViewports returns the stock desktop/tablet/mobile configuration.
func DefaultViewports() []ViewportSpec {
	return []ViewportSpec{
		{Name: "desktop", Width: 1920, Height: 1080},
		{Name: "tablet", Width: 768, Height: 1024},
		{Name: "mobile", Width: 375, Height: 667},
	}
}

// PresetViewport returns the stock viewport with the given name.
func PresetViewport(name string) (ViewportSpec, bool) {
	for _, v := range DefaultViewports() {
		if v.Name == name {
			return v, true
		}
	}
	return ViewportSpec{}, false
}

// ParseViewport parses a single "name:WxH" entry or a bare preset name
// (desktop, tablet, mobile).
func ParseViewport(s string) (ViewportSpec, error) {
	s = strings.TrimSpace(s)
	name, dims, ok := strings.Cut(s, ":")
	if !ok {
		if v, found := PresetViewport(strings.ToLower(s)); found {
			return v, nil
		}
		return ViewportSpec{}, fmt.Errorf("invalid viewport %q: expected name:WxH or one of desktop, tablet, mobile", s)
	}

	w, h, ok := strings.Cut(strings.ToLower(dims), "x")
	if !ok {
		return ViewportSpec{}, fmt.Errorf("invalid viewport %q: expected name:WxH", s)
	}

	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil {
		return ViewportSpec{}, fmt.Errorf("invalid viewport width in %q: %w", s, err)
	}
	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil {
		return ViewportSpec{}, fmt.Errorf("invalid viewport height in %q: %w", s, err)
	}

	v := ViewportSpec{Name: strings.TrimSpace(name), Width: width, Height: height}
	if err := v.Validate(); err != nil {
		return ViewportSpec{}, err
	}
	return v, nil
}

// ParseViewports parses a comma-separated list of "name:WxH" entries.
// Duplicate names are rejected so per-viewport results stay addressable.
func ParseViewports(s string) ([]ViewportSpec, error) {
	var out []ViewportSpec
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		v, err := ParseViewport(part)
		if err != nil {
			return nil, err
		}
		if seen[v.Name] {
			return nil, fmt.Errorf("duplicate viewport name %q", v.Name)
		}
		seen[v.Name] = true
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no viewports specified")
	}
	return out, nil
}
