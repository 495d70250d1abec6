package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/bolt/thumbs/internal"
	"github.com/bolt/thumbs/internal/cache"
	"github.com/bolt/thumbs/internal/jobs"
	"github.com/bolt/thumbs/internal/service"
	"github.com/bolt/thumbs/internal/storage"
	"github.com/bolt/thumbs/internal/worker"
)

// mountRoots creates a storage backend for every configured root.
func mountRoots(cfg *internal.Config, logger *slog.Logger) (*storage.Mounts, error) {
	mounts := storage.NewMounts()

	for _, root := range cfg.StorageRoots {
		var (
			store storage.Storage
			err   error
		)

		switch root.Provider {
		case storage.ProviderR2:
			store, err = storage.NewR2Storage(storage.R2Config{
				AccountID:       cfg.R2AccountID,
				AccessKeyID:     cfg.R2AccessKeyID,
				SecretAccessKey: cfg.R2SecretAccessKey,
				BucketName:      root.Bucket,
				Prefix:          root.Prefix,
				Endpoint:        cfg.R2Endpoint,
			}, logger)
		default:
			store, err = storage.NewLocalStorage(storage.LocalConfig{BasePath: root.Path}, logger)
		}
		if err != nil {
			return nil, fmt.Errorf("root %q: %w", root.Name, err)
		}

		mounts.Mount(root.Name, store)
		logger.Debug("Mounted storage root", "name", root.Name, "provider", root.Provider)
	}

	return mounts, nil
}

// openCache builds the thumbnail cache for cfg.CacheDriver. The returned
// func releases its resources.
func openCache(ctx context.Context, cfg *internal.Config, logger *slog.Logger) (cache.Cache, func(), error) {
	noop := func() {}

	switch cfg.CacheDriver {
	case cache.DriverVoid:
		logger.Info("Thumbnail cache disabled")
		return cache.NewVoid(), noop, nil

	case cache.DriverDisk:
		maxBytes := int64(cfg.CacheMaxMB) * 1024 * 1024
		disk, err := cache.NewDisk(cfg.CacheDir, maxBytes, logger)
		if err != nil {
			return nil, nil, err
		}
		stopCleanup := cache.StartCleanupJob(disk, cfg.CacheCleanupInterval, logger)
		logger.Info("Thumbnail cache ready", "driver", cfg.CacheDriver, "dir", cfg.CacheDir, "max_mb", cfg.CacheMaxMB)
		return disk, stopCleanup, nil

	case cache.DriverPostgres:
		db, err := sql.Open("pgx", cfg.DatabaseUrl)
		if err != nil {
			return nil, nil, fmt.Errorf("database connection failed: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("database ping failed: %w", err)
		}
		if err := internal.RunMigrations(db, logger); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migration failed: %w", err)
		}

		pg := cache.NewPostgres(db)
		stopCleanup := cache.StartCleanupJob(pg, cfg.CacheCleanupInterval, logger)
		logger.Info("Thumbnail cache ready", "driver", cfg.CacheDriver)
		return pg, func() {
			stopCleanup()
			db.Close()
		}, nil

	default:
		mem, err := cache.NewMemory(cfg.CacheMemoryEntries)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Thumbnail cache ready", "driver", cache.DriverMemory, "entries", cfg.CacheMemoryEntries)
		return mem, noop, nil
	}
}

// openStaticSaver returns nil when static saves are off. With no workers
// configured, saves happen inline on the request.
func openStaticSaver(ctx context.Context, cfg *internal.Config, logger *slog.Logger) (service.StaticSaver, func(), error) {
	noop := func() {}
	if !cfg.SaveFiles {
		return nil, noop, nil
	}

	store, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: cfg.StaticRoot}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("static root: %w", err)
	}
	writer := service.NewStaticWriter(store, logger)

	if cfg.StaticSaveWorkers == 0 {
		logger.Info("Static save enabled", "root", cfg.StaticRoot, "mode", "inline")
		return writer, noop, nil
	}

	wcfg := worker.DefaultConfig()
	wcfg.Concurrency = cfg.StaticSaveWorkers
	wcfg.QueueSize = cfg.StaticSaveQueue
	wcfg.MaxAttempts = 1 // failed static saves are not retried

	w, err := worker.New(wcfg, logger)
	if err != nil {
		return nil, nil, err
	}
	w.Register(jobs.NewStaticSaveHandler(writer, logger))
	w.Start(context.WithoutCancel(ctx))

	logger.Info("Static save enabled", "root", cfg.StaticRoot, "workers", wcfg.Concurrency, "queue", wcfg.QueueSize)
	return service.NewQueuedStaticSaver(w), w.Stop, nil
}
