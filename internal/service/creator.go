package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bolt/thumbs/internal/domain"
	"github.com/bolt/thumbs/internal/metrics"
	"github.com/bolt/thumbs/internal/transform"
)

// Creator renders the thumbnail bytes for a transaction.
type Creator interface {
	Create(ctx context.Context, tx domain.Transaction) (domain.Thumbnail, error)
}

type createState int

const (
	statePrimary createState = iota
	stateErrorImage
	stateFatal
)

// imageCreator renders the transaction's source image, stepping down to
// the error image when the source cannot be read or decoded.
type imageCreator struct {
	transformer *transform.Transformer
	logger      *slog.Logger
}

// NewCreator creates a Creator backed by t.
func NewCreator(t *transform.Transformer, logger *slog.Logger) Creator {
	return &imageCreator{
		transformer: t,
		logger:      logger.With("component", "creator"),
	}
}

// Create renders the source image. The returned thumbnail reports the
// image that was actually rendered. When neither the source nor the error
// image can be rendered the error wraps domain.ErrFallbackFailed.
func (c *imageCreator) Create(ctx context.Context, tx domain.Transaction) (domain.Thumbnail, error) {
	const op = "creator.create"

	var lastErr error
	state := statePrimary

	for {
		switch state {
		case statePrimary:
			img := tx.Source()
			if img == nil {
				lastErr = fmt.Errorf("no source image for %q", tx.FilePath())
				state = stateErrorImage
				continue
			}

			data, err := c.render(ctx, img, tx)
			if err == nil {
				return domain.Thumbnail{Image: img, Data: data}, nil
			}
			if ctx.Err() != nil {
				return domain.Thumbnail{}, ctx.Err()
			}

			c.logger.Warn("source image failed, using error image",
				"path", img.Path(),
				"error", err,
			)
			lastErr = err
			state = stateErrorImage

		case stateErrorImage:
			metrics.FallbackUsed("error_image")

			img := tx.ErrorImage()
			if img == nil {
				state = stateFatal
				continue
			}

			data, err := c.render(ctx, img, tx)
			if err == nil {
				return domain.Thumbnail{Image: img, Data: data}, nil
			}
			if ctx.Err() != nil {
				return domain.Thumbnail{}, ctx.Err()
			}

			c.logger.Error("error image failed", "path", img.Path(), "error", err)
			lastErr = err
			state = stateFatal

		case stateFatal:
			metrics.FallbackUsed("fatal")
			return domain.Thumbnail{}, domain.Internal(
				fmt.Errorf("%w: %w", domain.ErrFallbackFailed, lastErr),
				op,
				"There was an error with the thumbnail image requested and the fallback image could not be displayed.",
			)
		}
	}
}

func (c *imageCreator) render(ctx context.Context, img domain.Image, tx domain.Transaction) ([]byte, error) {
	data, err := img.Read(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := c.transformer.Transform(ctx, data, transform.Request{
		Mode:         tx.Mode(),
		Target:       tx.Target(),
		AllowUpscale: tx.Upscale(),
		Background:   tx.Background(),
	})
	if err != nil {
		return nil, err
	}
	metrics.ThumbnailCreated(tx.Mode().String(), time.Since(start))

	c.logger.Debug("rendered thumbnail",
		"path", img.Path(),
		"mode", tx.Mode(),
		"size", result.Size,
		"bytes", len(result.Data),
	)

	return result.Data, nil
}
