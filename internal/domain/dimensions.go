// Package domain contains the value types shared by every stage of the
// thumbnail pipeline.
package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Dimensions is a width and height in pixels. A zero axis means the value
// is derived from the source aspect ratio.
type Dimensions struct {
	Width  int
	Height int
}

// NewDimensions validates and returns a Dimensions value.
func NewDimensions(width, height int) (Dimensions, error) {
	if width < 0 || height < 0 {
		return Dimensions{}, Errorf(EINVALID, "dimensions.new",
			"dimensions must be non-negative, got %dx%d", width, height)
	}
	return Dimensions{Width: width, Height: height}, nil
}

// ParseDimensions builds Dimensions from untrusted string input such as
// URL segments or alias configuration.
func ParseDimensions(width, height string) (Dimensions, error) {
	w, err := parseDimension(width)
	if err != nil {
		return Dimensions{}, Errorf(EINVALID, "dimensions.parse", "invalid width %q", width)
	}
	h, err := parseDimension(height)
	if err != nil {
		return Dimensions{}, Errorf(EINVALID, "dimensions.parse", "invalid height %q", height)
	}
	return NewDimensions(w, h)
}

// ParseSize parses the "WxH" form.
func ParseSize(s string) (Dimensions, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return Dimensions{}, Errorf(EINVALID, "dimensions.parse", "size %q must be in the form WIDTHxHEIGHT", s)
	}
	return ParseDimensions(w, h)
}

func parseDimension(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

// IsZero reports whether both axes are unset.
func (d Dimensions) IsZero() bool {
	return d.Width == 0 && d.Height == 0
}

// Scale returns the dimensions multiplied by n on both axes.
func (d Dimensions) Scale(n int) Dimensions {
	return Dimensions{Width: d.Width * n, Height: d.Height * n}
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// Point is an offset into a canvas.
type Point struct {
	X int
	Y int
}

// NewPoint validates and returns a Point.
func NewPoint(x, y int) (Point, error) {
	if x < 0 || y < 0 {
		return Point{}, Errorf(EINVALID, "point.new", "coordinates must be non-negative, got (%d,%d)", x, y)
	}
	return Point{X: x, Y: y}, nil
}
