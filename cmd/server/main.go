package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/bolt/thumbs/internal"
	"github.com/bolt/thumbs/internal/handler"
	"github.com/bolt/thumbs/internal/metrics"
	"github.com/bolt/thumbs/internal/middleware"
	"github.com/bolt/thumbs/internal/service"
	"github.com/bolt/thumbs/internal/storage"
	"github.com/bolt/thumbs/internal/transform"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// ==========================================================================
	// Storage roots and fallback images
	// ==========================================================================

	mounts, err := mountRoots(cfg, logger)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}

	notFoundImage, err := mounts.Resolve(cfg.NotFoundImage)
	if err != nil {
		return fmt.Errorf("THUMBS_NOTFOUND_IMAGE: %w", err)
	}
	errorImage, err := mounts.Resolve(cfg.ErrorImage)
	if err != nil {
		return fmt.Errorf("THUMBS_ERROR_IMAGE: %w", err)
	}
	for _, img := range []*storage.Image{notFoundImage, errorImage} {
		if ok, err := img.Exists(ctx); err != nil || !ok {
			logger.Warn("Fallback image is not readable", "image", img.Ref(), "error", err)
		}
	}
	logger.Info("Storage ready", "roots", mounts.Names())

	// ==========================================================================
	// Thumbnail pipeline
	// ==========================================================================

	transformer := transform.New(transform.Options{
		Quality:              cfg.Quality,
		NormalizeOrientation: cfg.ExifOrientation,
	})

	thumbCache, closeCache, err := openCache(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("cache initialization failed: %w", err)
	}
	defer closeCache()

	static, stopStatic, err := openStaticSaver(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("static save initialization failed: %w", err)
	}
	defer stopStatic()

	aliases, err := internal.LoadAliases(cfg.AliasesFile)
	if err != nil {
		return fmt.Errorf("aliases: %w", err)
	}
	logger.Info("Aliases loaded", "count", len(aliases))

	finder := service.NewFinder(mounts, cfg.Filesystems, notFoundImage, logger)
	creator := service.NewCreator(transformer, logger)
	responder := service.NewResponder(finder, creator, thumbCache, static, service.ResponderConfig{
		ErrorImage: errorImage,
		CacheTTL:   cfg.BrowserCacheTime,
	}, logger)

	thumbHandler := handler.NewThumbnailHandler(responder, aliases, handler.ThumbnailConfig{
		DefaultImage:     notFoundImage,
		DefaultImageSize: cfg.DefaultImageSize,
		CacheTTL:         cfg.BrowserCacheTime,
		MaxDimension:     cfg.MaxDimension,
		OnlyAliases:      cfg.OnlyAliases,
		AllowUpscale:     cfg.AllowUpscale,
		Background:       cfg.Background,
	}, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	isSecure := cfg.Env != "development"

	r := chi.NewRouter()
	r.Use(metrics.Middleware)
	r.Use(middleware.NewRequestLoggingMiddleware(logger).Handler)
	r.Use(middleware.NewSecurityHeadersMiddleware(isSecure).Handler)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics
	metricsAuth := middleware.NewBasicAuthMiddleware("metrics", cfg.MetricsUsername, cfg.MetricsPassword)
	r.With(metricsAuth.Handler).Handle("/metrics", promhttp.Handler())
	if cfg.MetricsUsername == "" && cfg.MetricsPassword == "" {
		logger.Warn("Metrics endpoint is not protected")
	}

	// Thumbnails
	var limiter *middleware.RateLimiter
	if cfg.RateLimitRequests > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
		defer limiter.Stop()
	}

	r.Group(func(r chi.Router) {
		if limiter != nil {
			r.Use(middleware.NewRateLimitMiddleware(limiter, logger).Limit)
		}

		if cfg.MountPrefix == "" {
			thumbHandler.RegisterRoutes(r)
			return
		}
		r.Route(cfg.MountPrefix, thumbHandler.RegisterRoutes)
	})

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env, "prefix", cfg.MountPrefix)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received, initiating graceful shutdown...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
