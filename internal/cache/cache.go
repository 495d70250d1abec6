// Package cache stores rendered thumbnails keyed by transaction hash.
//
// Drivers:
// - Void: caches nothing
// - Memory: bounded in-process LRU
// - Disk: files under a directory, with TTL cleanup and size-based eviction
// - Postgres: a table in the application database
package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrMiss is returned by Fetch when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Driver names accepted by configuration.
const (
	DriverVoid     = "void"
	DriverMemory   = "memory"
	DriverDisk     = "disk"
	DriverPostgres = "postgres"
)

// Cache is a byte store with per-entry expiry. Implementations provide
// atomic get and set per key; nothing locks across keys.
type Cache interface {
	// Contains reports whether a live entry exists for key.
	Contains(ctx context.Context, key string) (bool, error)

	// Fetch returns the entry for key, or ErrMiss.
	Fetch(ctx context.Context, key string) ([]byte, error)

	// Save stores data under key. A ttl of 0 never expires.
	Save(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

// Cleaner is implemented by drivers that need periodic housekeeping.
type Cleaner interface {
	// Cleanup removes expired or surplus entries and returns how many
	// were removed.
	Cleanup(ctx context.Context) (int, error)
}

// IsMiss reports whether err is a cache miss.
func IsMiss(err error) bool {
	return errors.Is(err, ErrMiss)
}

// expiresAt converts a ttl into an absolute deadline; zero means never.
func expiresAt(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

func expired(deadline, now time.Time) bool {
	return !deadline.IsZero() && !now.Before(deadline)
}

// =============================================================================
// Void
// =============================================================================

// Void never stores anything.
type Void struct{}

// NewVoid returns a cache that always misses.
func NewVoid() *Void { return &Void{} }

func (Void) Contains(context.Context, string) (bool, error) { return false, nil }

func (Void) Fetch(context.Context, string) ([]byte, error) { return nil, ErrMiss }

func (Void) Save(context.Context, string, []byte, time.Duration) error { return nil }

// =============================================================================
// Cleanup Job
// =============================================================================

// StartCleanupJob runs c.Cleanup every interval until the returned cancel
// function is called. A non-positive interval starts nothing.
func StartCleanupJob(c Cleaner, interval time.Duration, logger *slog.Logger) context.CancelFunc {
	if interval <= 0 {
		logger.Info("cache cleanup job disabled", "interval", interval)
		return func() {}
	}

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("cache cleanup job panicked", "panic", r)
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		logger.Info("cache cleanup job started", "interval", interval)

		for {
			select {
			case <-ctx.Done():
				logger.Info("cache cleanup job stopped")
				return
			case <-ticker.C:
				removed, err := c.Cleanup(ctx)
				if err != nil {
					logger.Error("cache cleanup error", "error", err)
					continue
				}
				if removed > 0 {
					logger.Info("cache cleanup completed", "entries_removed", removed)
				}
			}
		}
	}()

	return cancel
}
