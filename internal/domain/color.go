package domain

import (
	"image/color"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// MaxAlpha is the fully transparent alpha value. Alpha follows the
// 7-bit convention where 0 is opaque.
const MaxAlpha = 127

// Color is an RGB color with a 7-bit alpha channel.
type Color struct {
	R uint8
	G uint8
	B uint8
	A uint8
}

// NewColor validates the components and returns a Color.
func NewColor(r, g, b, a int) (Color, error) {
	for _, c := range []int{r, g, b} {
		if c < 0 || c > 255 {
			return Color{}, Errorf(EINVALID, "color.new", "color component %d out of range 0-255", c)
		}
	}
	if a < 0 || a > MaxAlpha {
		return Color{}, Errorf(EINVALID, "color.new", "alpha %d out of range 0-%d", a, MaxAlpha)
	}
	return Color{R: uint8(r), G: uint8(g), B: uint8(b), A: uint8(a)}, nil
}

// ParseHexColor parses "#rrggbb" (the leading hash is optional) into an
// opaque Color.
func ParseHexColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return Color{}, Wrap(err, EINVALID, "color.parse", "invalid hex color "+s)
	}
	r, g, b := c.RGB255()
	return Color{R: r, G: g, B: b}, nil
}

// White returns opaque white.
func White() Color { return Color{R: 255, G: 255, B: 255} }

// Black returns opaque black.
func Black() Color { return Color{} }

// NRGBA converts to an 8-bit non-premultiplied color.
func (c Color) NRGBA() color.NRGBA {
	opacity := 255 - math.Round(float64(c.A)*255/MaxAlpha)
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: uint8(opacity)}
}
