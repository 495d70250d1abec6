package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/bolt/thumbs/internal/cache"
	"github.com/bolt/thumbs/internal/domain"
	"github.com/bolt/thumbs/internal/metrics"
)

// ResponderConfig holds the settings applied to every transaction.
type ResponderConfig struct {
	// ErrorImage is rendered when the source image fails.
	ErrorImage domain.Image

	// CacheTTL is the lifetime of cached thumbnails. Zero never expires.
	CacheTTL time.Duration
}

// Responder serves thumbnails from the cache, creating them on a miss.
type Responder struct {
	resolver Resolver
	creator  Creator
	cache    cache.Cache
	static   StaticSaver
	config   ResponderConfig
	logger   *slog.Logger
}

// NewResponder creates a Responder. A nil cache caches nothing and a nil
// static saver disables static saves.
func NewResponder(
	resolver Resolver,
	creator Creator,
	c cache.Cache,
	static StaticSaver,
	config ResponderConfig,
	logger *slog.Logger,
) *Responder {
	if c == nil {
		c = cache.NewVoid()
	}
	return &Responder{
		resolver: resolver,
		creator:  creator,
		cache:    c,
		static:   static,
		config:   config,
		logger:   logger.With("component", "responder"),
	}
}

// Respond resolves the transaction's source image and returns its
// thumbnail. Cache and static save failures are logged and never reach
// the caller; only a failure of the whole fallback chain does.
func (r *Responder) Respond(ctx context.Context, tx domain.Transaction) (domain.Thumbnail, error) {
	if tx.ErrorImage() == nil && r.config.ErrorImage != nil {
		tx = tx.WithErrorImage(r.config.ErrorImage)
	}
	if tx.Source() == nil {
		tx = tx.WithSource(r.resolver.Find(ctx, tx.FilePath()))
	}

	thumb, err := r.thumbnail(ctx, tx)
	if err != nil {
		return domain.Thumbnail{}, err
	}

	if r.static != nil && tx.RequestPath() != "" {
		if err := r.static.SaveStatic(ctx, tx.RequestPath(), thumb.MIMEType(), thumb.Data); err != nil {
			r.logger.Warn("static save failed", "path", tx.RequestPath(), "error", err)
		}
	}

	return thumb, nil
}

// thumbnail returns the cached thumbnail for tx, creating and caching it
// on a miss. A created thumbnail reports the image actually rendered; a
// cached one reports the source. Concurrent misses on one key may each
// create.
func (r *Responder) thumbnail(ctx context.Context, tx domain.Transaction) (domain.Thumbnail, error) {
	key := tx.Hash()
	logger := r.logger.With("key", key)

	if data, ok := r.lookup(ctx, key, logger); ok {
		return domain.Thumbnail{Image: tx.Source(), Data: data}, nil
	}

	created, err := r.creator.Create(ctx, tx)
	if err != nil {
		return domain.Thumbnail{}, err
	}

	if err := r.cache.Save(ctx, key, created.Data, r.config.CacheTTL); err != nil {
		logger.Warn("cache save failed", "error", err)
	}

	return created, nil
}

// lookup treats cache errors as misses.
func (r *Responder) lookup(ctx context.Context, key string, logger *slog.Logger) ([]byte, bool) {
	ok, err := r.cache.Contains(ctx, key)
	if err != nil {
		metrics.CacheError()
		logger.Warn("cache lookup failed", "error", err)
		return nil, false
	}
	if !ok {
		metrics.CacheMiss()
		return nil, false
	}

	data, err := r.cache.Fetch(ctx, key)
	if err != nil {
		if cache.IsMiss(err) {
			// Expired between Contains and Fetch.
			metrics.CacheMiss()
		} else {
			metrics.CacheError()
			logger.Warn("cache fetch failed", "error", err)
		}
		return nil, false
	}

	metrics.CacheHit()
	return data, true
}
