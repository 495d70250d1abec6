package domain

import "context"

// Image is a handle onto a stored source image. Reading is deferred until
// the bytes are actually needed.
type Image interface {
	// Path is the logical path of the image inside its storage root.
	Path() string

	// MIMEType is derived from the file extension.
	MIMEType() string

	// Read returns the raw encoded bytes.
	Read(ctx context.Context) ([]byte, error)
}

// Thumbnail is a rendered thumbnail together with the image it was
// rendered from.
type Thumbnail struct {
	Image Image
	Data  []byte
}

// MIMEType returns the content type of the rendered bytes.
func (t Thumbnail) MIMEType() string {
	if t.Image == nil {
		return "application/octet-stream"
	}
	return t.Image.MIMEType()
}
