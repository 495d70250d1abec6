package domain

import (
	"strconv"
	"strings"
)

// Transaction describes a single thumbnail request. Values are immutable;
// the With methods return modified copies.
type Transaction struct {
	filePath    string
	source      Image
	errorImage  Image
	mode        Mode
	target      Dimensions
	upscale     bool
	background  Color
	requestPath string
}

// NewTransaction creates a transaction for the image at filePath.
// requestPath is the path a static copy would be written to and may be empty.
func NewTransaction(filePath string, mode Mode, target Dimensions, requestPath string) Transaction {
	if !mode.IsValid() {
		mode = ModeCrop
	}
	return Transaction{
		filePath:    filePath,
		mode:        mode,
		target:      target,
		background:  White(),
		requestPath: requestPath,
	}
}

// FilePath is the requested logical path.
func (t Transaction) FilePath() string { return t.filePath }

// Source is the resolved source image, nil until resolved.
func (t Transaction) Source() Image { return t.source }

// ErrorImage is the image rendered when the source cannot be decoded.
func (t Transaction) ErrorImage() Image { return t.errorImage }

// Mode returns the transformation mode.
func (t Transaction) Mode() Mode { return t.mode }

// Target returns the requested target size.
func (t Transaction) Target() Dimensions { return t.target }

// Upscale reports whether the output may be larger than the source.
func (t Transaction) Upscale() bool { return t.upscale }

// Background is the border fill color.
func (t Transaction) Background() Color { return t.background }

// RequestPath is the original request path used for static saves.
func (t Transaction) RequestPath() string { return t.requestPath }

// WithSource returns a copy with the resolved source image set.
func (t Transaction) WithSource(img Image) Transaction {
	t.source = img
	return t
}

// WithErrorImage returns a copy with the error image set.
func (t Transaction) WithErrorImage(img Image) Transaction {
	t.errorImage = img
	return t
}

// WithTarget returns a copy with a new target size.
func (t Transaction) WithTarget(d Dimensions) Transaction {
	t.target = d
	return t
}

// WithUpscale returns a copy with the upscale policy set.
func (t Transaction) WithUpscale(allow bool) Transaction {
	t.upscale = allow
	return t
}

// WithBackground returns a copy with the background color set.
func (t Transaction) WithBackground(c Color) Transaction {
	t.background = c
	return t
}

// Hash returns the cache key for the transaction. It covers the source
// path, mode and requested size only, so transactions that differ just in
// upscale policy or background share a cache entry.
func (t Transaction) Hash() string {
	p := t.filePath
	if t.source != nil {
		p = t.source.Path()
	}
	return strings.Join([]string{
		strings.ReplaceAll(p, "/", "_"),
		t.mode.String(),
		strconv.Itoa(t.target.Width),
		strconv.Itoa(t.target.Height),
	}, "-")
}
