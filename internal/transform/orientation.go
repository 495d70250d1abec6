package transform

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

// Orientation is the EXIF orientation tag value (1..8).
type Orientation int

const (
	OrientationNormal     Orientation = 1
	OrientationFlipH      Orientation = 2
	OrientationRotate180  Orientation = 3
	OrientationFlipV      Orientation = 4
	OrientationTranspose  Orientation = 5
	OrientationRotateCW   Orientation = 6
	OrientationTransverse Orientation = 7
	OrientationRotateCCW  Orientation = 8
)

// ReadOrientation returns the orientation stored in the EXIF block of a
// JPEG. Missing or unreadable metadata is treated as OrientationNormal.
func ReadOrientation(data []byte) Orientation {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return OrientationNormal
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return OrientationNormal
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return OrientationNormal
	}
	return Orientation(v)
}

// Orient returns img turned upright for the given orientation. The flip is
// applied before the rotation.
func Orient(img image.Image, o Orientation) image.Image {
	switch o {
	case OrientationFlipH:
		return imaging.FlipH(img)
	case OrientationRotate180:
		return imaging.Rotate180(img)
	case OrientationFlipV:
		return imaging.FlipV(img)
	case OrientationTranspose:
		return imaging.Rotate270(imaging.FlipV(img))
	case OrientationRotateCW:
		return imaging.Rotate270(img)
	case OrientationTransverse:
		return imaging.Rotate270(imaging.FlipH(img))
	case OrientationRotateCCW:
		return imaging.Rotate90(img)
	}
	return img
}
