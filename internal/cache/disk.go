package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// headerSize is the length of the expiry prefix on every cache file: the
// deadline as big-endian unix nanoseconds, zero for never.
const headerSize = 8

// Disk stores entries as files under a base directory. File names are the
// sha256 of the key, sharded by the first two hex characters.
type Disk struct {
	basePath string
	maxBytes int64
	logger   *slog.Logger
	now      func() time.Time

	mu sync.Mutex // serializes Cleanup
}

// NewDisk creates a disk cache rooted at basePath. maxBytes <= 0 disables
// size-based eviction.
func NewDisk(basePath string, maxBytes int64, logger *slog.Logger) (*Disk, error) {
	if basePath == "" {
		return nil, errors.New("cache base path is required")
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	logger.Info("initialized disk cache", "base_path", basePath, "max_bytes", maxBytes)

	return &Disk{
		basePath: basePath,
		maxBytes: maxBytes,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// =============================================================================
// Interface Implementation
// =============================================================================

// Contains reports whether a live entry exists for key.
func (d *Disk) Contains(ctx context.Context, key string) (bool, error) {
	_, err := d.Fetch(ctx, key)
	if IsMiss(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Fetch returns the entry for key, or ErrMiss. Expired files are removed.
func (d *Disk) Fetch(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := d.path(key)
	raw, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("read cache file: %w", err)
	}

	deadline, data, ok := decodeEntry(raw)
	if !ok {
		d.logger.Warn("removing corrupt cache file", "path", p)
		_ = os.Remove(p)
		return nil, ErrMiss
	}
	if expired(deadline, d.now()) {
		_ = os.Remove(p)
		return nil, ErrMiss
	}
	return data, nil
}

// Save writes the entry atomically via a temporary file and rename.
func (d *Disk) Save(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p := d.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("create cache shard: %w", err)
	}

	tmp := p + ".tmp-" + uuid.NewString()
	if err := os.WriteFile(tmp, encodeEntry(expiresAt(d.now(), ttl), data), 0644); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename cache file: %w", err)
	}

	d.logger.Debug("cached thumbnail", "key", key, "size", len(data))
	return nil
}

// =============================================================================
// Housekeeping
// =============================================================================

type diskEntry struct {
	path    string
	size    int64
	modTime time.Time
}

// Cleanup removes expired entries, then evicts the least recently written
// files until the cache fits in maxBytes.
func (d *Disk) Cleanup(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	removed := 0
	var live []diskEntry
	var total int64

	err := filepath.WalkDir(d.basePath, func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if e.IsDir() {
			return nil
		}
		info, err := e.Info()
		if err != nil {
			return nil
		}

		// Leftovers from interrupted writes.
		if strings.Contains(e.Name(), ".tmp-") {
			if now.Sub(info.ModTime()) > time.Hour && os.Remove(p) == nil {
				removed++
			}
			return nil
		}

		deadline, ok := readDeadline(p)
		if !ok || expired(deadline, now) {
			if os.Remove(p) == nil {
				removed++
			}
			return nil
		}

		live = append(live, diskEntry{path: p, size: info.Size(), modTime: info.ModTime()})
		total += info.Size()
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("scan cache: %w", err)
	}

	if d.maxBytes > 0 && total > d.maxBytes {
		sort.Slice(live, func(i, j int) bool {
			return live[i].modTime.Before(live[j].modTime)
		})
		for _, e := range live {
			if total <= d.maxBytes {
				break
			}
			if err := os.Remove(e.path); err != nil {
				d.logger.Warn("failed to evict cache file", "path", e.path, "error", err)
				continue
			}
			total -= e.size
			removed++
		}
	}

	d.cleanEmptyDirs()

	return removed, nil
}

// cleanEmptyDirs removes empty shard directories.
func (d *Disk) cleanEmptyDirs() {
	entries, err := os.ReadDir(d.basePath)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(d.basePath, e.Name())
		children, err := os.ReadDir(dir)
		if err == nil && len(children) == 0 {
			_ = os.Remove(dir)
		}
	}
}

// =============================================================================
// Internal Helpers
// =============================================================================

func (d *Disk) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	name := hex.EncodeToString(sum[:])
	return filepath.Join(d.basePath, name[:2], name)
}

func encodeEntry(deadline time.Time, data []byte) []byte {
	buf := make([]byte, headerSize+len(data))
	if !deadline.IsZero() {
		binary.BigEndian.PutUint64(buf, uint64(deadline.UnixNano()))
	}
	copy(buf[headerSize:], data)
	return buf
}

func decodeEntry(raw []byte) (time.Time, []byte, bool) {
	if len(raw) < headerSize {
		return time.Time{}, nil, false
	}
	return decodeDeadline(raw[:headerSize]), raw[headerSize:], true
}

func decodeDeadline(header []byte) time.Time {
	n := binary.BigEndian.Uint64(header)
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, int64(n))
}

// readDeadline reads only the header of a cache file.
func readDeadline(p string) (time.Time, bool) {
	f, err := os.Open(p)
	if err != nil {
		return time.Time{}, false
	}
	defer f.Close()

	header := make([]byte, headerSize)
	if _, err := f.ReadAt(header, 0); err != nil {
		return time.Time{}, false
	}
	return decodeDeadline(header), true
}
