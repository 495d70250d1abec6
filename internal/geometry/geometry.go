// Package geometry computes the source and destination rectangles used to
// render a thumbnail for each mode.
//
// Every function is pure. Ratios are computed in float64 and rounded half
// away from zero, except where a canvas size is allocated from a scaled
// value, which truncates.
package geometry

import (
	"math"

	"github.com/bolt/thumbs/internal/domain"
)

// Plan describes how to copy a source image onto a destination canvas:
// the SrcSize region at SrcPoint is resampled into the DstSize region at
// DstPoint of a Canvas sized canvas.
type Plan struct {
	Canvas   domain.Dimensions
	SrcPoint domain.Point
	SrcSize  domain.Dimensions
	DstPoint domain.Point
	DstSize  domain.Dimensions

	// Fill is set when the canvas must be painted with the background
	// color before the copy.
	Fill bool
}

// Autoscale fills in zero target axes from the original aspect ratio.
func Autoscale(original, target domain.Dimensions) (domain.Dimensions, error) {
	const op = "geometry.autoscale"

	switch {
	case target.Width == 0 && target.Height == 0:
		return original, nil
	case target.Width == 0:
		if original.Height == 0 {
			return target, domain.Invalid(op, "source image has zero height")
		}
		w := round(float64(target.Height) * float64(original.Width) / float64(original.Height))
		return domain.Dimensions{Width: atLeastOne(w), Height: target.Height}, nil
	case target.Height == 0:
		if original.Width == 0 {
			return target, domain.Invalid(op, "source image has zero width")
		}
		h := round(float64(target.Width) * float64(original.Height) / float64(original.Width))
		return domain.Dimensions{Width: target.Width, Height: atLeastOne(h)}, nil
	}
	return target, nil
}

// LimitUpscale clamps each target axis to the original independently.
func LimitUpscale(original, target domain.Dimensions) domain.Dimensions {
	return domain.Dimensions{
		Width:  min(target.Width, original.Width),
		Height: min(target.Height, original.Height),
	}
}

// Resolve applies Autoscale and, unless upscaling is allowed, LimitUpscale.
func Resolve(original, target domain.Dimensions, allowUpscale bool) (domain.Dimensions, error) {
	t, err := Autoscale(original, target)
	if err != nil {
		return t, err
	}
	if !allowUpscale {
		t = LimitUpscale(original, t)
	}
	return t, nil
}

// Compute returns the render plan for mode. Both original and target must
// be fully resolved (no zero axes).
func Compute(mode domain.Mode, original, target domain.Dimensions) (Plan, error) {
	const op = "geometry.compute"

	if original.Width <= 0 || original.Height <= 0 {
		return Plan{}, domain.Errorf(domain.EINVALID, op, "source dimensions %s are not positive", original)
	}
	if target.Width <= 0 || target.Height <= 0 {
		return Plan{}, domain.Errorf(domain.EINVALID, op, "target dimensions %s are not positive", target)
	}

	switch mode {
	case domain.ModeResize, domain.ModeFit:
		return scaleToFit(original, target), nil
	case domain.ModeBorder:
		return letterbox(original, target), nil
	default:
		return crop(original, target), nil
	}
}

// crop centers a source window with the target aspect ratio.
func crop(original, target domain.Dimensions) Plan {
	ow, oh := float64(original.Width), float64(original.Height)
	xratio := ow / float64(target.Width)
	yratio := oh / float64(target.Height)

	src := original
	var at domain.Point
	switch {
	case xratio > yratio:
		cropped := ow / xratio * yratio
		at.X = round((ow - cropped) / 2)
		src.Width = round(cropped)
	case yratio > xratio:
		cropped := oh / yratio * xratio
		at.Y = round((oh - cropped) / 2)
		src.Height = round(cropped)
	}

	return Plan{
		Canvas:   target,
		SrcPoint: at,
		SrcSize:  src,
		DstSize:  target,
	}
}

// scaleToFit shrinks the canvas so the whole source fits inside target.
func scaleToFit(original, target domain.Dimensions) Plan {
	ratio := math.Min(
		float64(target.Width)/float64(original.Width),
		float64(target.Height)/float64(original.Height),
	)
	canvas := domain.Dimensions{
		Width:  atLeastOne(int(float64(original.Width) * ratio)),
		Height: atLeastOne(int(float64(original.Height) * ratio)),
	}
	return Plan{
		Canvas:  canvas,
		SrcSize: original,
		DstSize: canvas,
	}
}

// letterbox fits the source inside target and centers it on a filled canvas.
func letterbox(original, target domain.Dimensions) Plan {
	ow, oh := float64(original.Width), float64(original.Height)
	tw, th := float64(target.Width), float64(target.Height)

	dst := target
	var at domain.Point
	if scaledHeight := oh * (tw / ow); scaledHeight > th {
		dst.Width = atLeastOne(int(ow * (th / oh)))
		at.X = round(float64(target.Width-dst.Width) / 2)
	} else {
		dst.Height = atLeastOne(int(scaledHeight))
		at.Y = round(float64(target.Height-dst.Height) / 2)
	}

	return Plan{
		Canvas:   target,
		SrcSize:  original,
		DstPoint: at,
		DstSize:  dst,
		Fill:     true,
	}
}

func round(f float64) int {
	return int(math.Round(f))
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
