package transform

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFormat is wrapped by DecodeError when the bytes are an
// image format with no encoder in the pipeline.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// DecodeError is returned when source bytes cannot be decoded.
type DecodeError struct {
	Format string // detected format, empty when unknown
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Format != "" {
		return fmt.Sprintf("decode %s image: %v", e.Format, e.Err)
	}
	return fmt.Sprintf("decode image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err is or wraps a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
