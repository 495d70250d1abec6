// Package transform decodes source images, renders them according to a
// geometry plan and re-encodes them in their original format.
package transform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"

	// Registered for image.Decode.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/bolt/thumbs/internal/domain"
	"github.com/bolt/thumbs/internal/geometry"
)

// DefaultQuality is used when Options.Quality is out of range.
const DefaultQuality = 80

// =============================================================================
// Types
// =============================================================================

// Options configures a Transformer.
type Options struct {
	// Quality is the JPEG quality (10-100). Values below 10 are read as a
	// PNG compression level (0-9) and converted.
	Quality int

	// NormalizeOrientation applies the EXIF orientation of JPEG sources.
	NormalizeOrientation bool
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{Quality: DefaultQuality, NormalizeOrientation: true}
}

// Decoded is a decoded source image together with its format.
type Decoded struct {
	Image  image.Image
	Format imaging.Format
}

// Size returns the pixel dimensions of the decoded image.
func (d *Decoded) Size() domain.Dimensions {
	b := d.Image.Bounds()
	return domain.Dimensions{Width: b.Dx(), Height: b.Dy()}
}

// Request describes one render.
type Request struct {
	Mode         domain.Mode
	Target       domain.Dimensions
	AllowUpscale bool
	Background   domain.Color
}

// Result is an encoded thumbnail.
type Result struct {
	Data   []byte
	Size   domain.Dimensions
	Format imaging.Format
}

// Transformer renders thumbnails. It holds no mutable state and is safe for
// concurrent use.
type Transformer struct {
	opts Options
}

// New creates a Transformer with the given options.
func New(opts Options) *Transformer {
	return &Transformer{opts: opts}
}

// =============================================================================
// Pipeline
// =============================================================================

// Transform decodes data and renders it.
func (t *Transformer) Transform(ctx context.Context, data []byte, req Request) (Result, error) {
	src, err := t.Decode(data)
	if err != nil {
		return Result{}, err
	}
	return t.Render(ctx, src, req)
}

// Decode decodes data and, when enabled, applies the EXIF orientation of
// JPEG images. Failures are returned as *DecodeError.
func (t *Transformer) Decode(data []byte) (*Decoded, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Err: errors.New("empty image data")}
	}

	img, name, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	format, err := imaging.FormatFromExtension(name)
	if err != nil {
		return nil, &DecodeError{Format: name, Err: ErrUnsupportedFormat}
	}

	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, &DecodeError{Format: name, Err: errors.New("image has zero size")}
	}

	if t.opts.NormalizeOrientation && format == imaging.JPEG {
		img = Orient(img, ReadOrientation(data))
	}

	return &Decoded{Image: img, Format: format}, nil
}

// Render resolves the target size, computes the geometry for the request
// mode, resamples and encodes.
func (t *Transformer) Render(ctx context.Context, src *Decoded, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	original := src.Size()
	target, err := geometry.Resolve(original, req.Target, req.AllowUpscale)
	if err != nil {
		return Result{}, err
	}

	plan, err := geometry.Compute(req.Mode, original, target)
	if err != nil {
		return Result{}, err
	}

	canvas := paint(src.Image, plan, req.Background)

	data, err := t.Encode(canvas, src.Format)
	if err != nil {
		return Result{}, err
	}

	return Result{Data: data, Size: plan.Canvas, Format: src.Format}, nil
}

// paint allocates the canvas and resamples the planned source region onto it.
func paint(src image.Image, plan geometry.Plan, background domain.Color) *image.NRGBA {
	fill := color.NRGBA{}
	op := draw.Src
	if plan.Fill {
		fill = background.NRGBA()
		op = draw.Over
	}

	dst := imaging.New(plan.Canvas.Width, plan.Canvas.Height, fill)

	sr := image.Rect(
		plan.SrcPoint.X, plan.SrcPoint.Y,
		plan.SrcPoint.X+plan.SrcSize.Width, plan.SrcPoint.Y+plan.SrcSize.Height,
	).Add(src.Bounds().Min)
	dr := image.Rect(
		plan.DstPoint.X, plan.DstPoint.Y,
		plan.DstPoint.X+plan.DstSize.Width, plan.DstPoint.Y+plan.DstSize.Height,
	)

	draw.CatmullRom.Scale(dst, dr, src, sr, op, nil)
	return dst
}

// =============================================================================
// Encoding
// =============================================================================

// Encode writes img in the given format using the configured quality.
func (t *Transformer) Encode(img image.Image, format imaging.Format) ([]byte, error) {
	var opts []imaging.EncodeOption
	switch format {
	case imaging.JPEG:
		opts = append(opts, imaging.JPEGQuality(t.opts.JPEGQuality()))
	case imaging.PNG:
		opts = append(opts, imaging.PNGCompressionLevel(t.opts.PNGCompression()))
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, opts...); err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

// JPEGQuality returns the effective JPEG quality (1-100).
func (o Options) JPEGQuality() int {
	q := o.Quality
	if q < 10 {
		q = 100 - 10*q
	}
	if q < 1 || q > 100 {
		return DefaultQuality
	}
	return q
}

// PNGCompressionLevel returns the 0-9 compression level derived from the
// JPEG quality.
func (o Options) PNGCompressionLevel() int {
	level := int(math.Ceil(float64(100-o.JPEGQuality()) / 10))
	return min(level, 9)
}

// PNGCompression maps the 0-9 level onto the levels offered by image/png.
func (o Options) PNGCompression() png.CompressionLevel {
	switch level := o.PNGCompressionLevel(); {
	case level == 0:
		return png.NoCompression
	case level <= 3:
		return png.BestSpeed
	case level <= 6:
		return png.DefaultCompression
	default:
		return png.BestCompression
	}
}
