// Package service contains the thumbnail pipeline: resolving a requested
// path to a stored image, rendering it with fallbacks, and serving it
// through the cache.
package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/bolt/thumbs/internal/domain"
	"github.com/bolt/thumbs/internal/storage"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Resolver maps a requested file path to a stored image.
type Resolver interface {
	// Find returns the first stored image matching path, or the default
	// image. It never fails.
	Find(ctx context.Context, path string) domain.Image
}

// =============================================================================
// Implementation
// =============================================================================

// Finder searches an ordered list of storage roots for a path.
type Finder struct {
	mounts       *storage.Mounts
	order        []string
	defaultImage domain.Image
	logger       *slog.Logger
}

// NewFinder creates a Finder searching the named roots in order. An empty
// order searches every mounted root in registration order.
func NewFinder(mounts *storage.Mounts, order []string, defaultImage domain.Image, logger *slog.Logger) *Finder {
	if len(order) == 0 {
		order = mounts.Names()
	}
	return &Finder{
		mounts:       mounts,
		order:        order,
		defaultImage: defaultImage,
		logger:       logger.With("component", "finder"),
	}
}

// Find returns the image at path in the first root that has it. Lookup
// errors count as "not there".
func (f *Finder) Find(ctx context.Context, path string) domain.Image {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return f.defaultImage
	}

	for _, name := range f.order {
		img, err := f.mounts.Image(name, path)
		if err != nil {
			f.logger.Debug("skipping root", "root", name, "error", err)
			continue
		}

		exists, err := img.Exists(ctx)
		if err != nil {
			f.logger.Debug("lookup failed", "root", name, "path", path, "error", err)
			continue
		}
		if exists {
			return img
		}
	}

	f.logger.Debug("image not found, using default", "path", path)
	return f.defaultImage
}
