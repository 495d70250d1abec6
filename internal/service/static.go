package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bolt/thumbs/internal/metrics"
	"github.com/bolt/thumbs/internal/storage"
	"github.com/bolt/thumbs/internal/worker"
)

// StaticSaver persists a rendered thumbnail at its request path so that a
// web server can serve later requests without reaching this service.
type StaticSaver interface {
	SaveStatic(ctx context.Context, requestPath, contentType string, data []byte) error
}

// =============================================================================
// Inline Writer
// =============================================================================

// StaticWriter writes thumbnails into a storage root.
type StaticWriter struct {
	store  storage.Storage
	logger *slog.Logger
}

// NewStaticWriter creates a writer for the static root.
func NewStaticWriter(store storage.Storage, logger *slog.Logger) *StaticWriter {
	return &StaticWriter{store: store, logger: logger.With("component", "static_save")}
}

// SaveStatic writes data at requestPath, replacing any existing file.
func (w *StaticWriter) SaveStatic(ctx context.Context, requestPath, contentType string, data []byte) error {
	if !storage.IsImage(contentType) {
		metrics.StaticSave("failed")
		return fmt.Errorf("refusing to save %q with content type %q", requestPath, contentType)
	}

	key := strings.TrimPrefix(requestPath, "/")
	err := w.store.Put(ctx, key, bytes.NewReader(data), storage.PutOptions{
		ContentType: contentType,
		MaxSize:     storage.MaxObjectSize,
		Overwrite:   true,
	})
	if err != nil {
		metrics.StaticSave("failed")
		return fmt.Errorf("save static thumbnail: %w", err)
	}

	metrics.StaticSave("saved")
	w.logger.Debug("saved static thumbnail", "path", key, "size", len(data))
	return nil
}

// =============================================================================
// Queued Writer
// =============================================================================

// QueuedStaticSaver hands saves to the background worker. The request
// never waits for the write.
type QueuedStaticSaver struct {
	worker *worker.Worker
}

// NewQueuedStaticSaver creates a saver that enqueues static_save jobs.
func NewQueuedStaticSaver(w *worker.Worker) *QueuedStaticSaver {
	return &QueuedStaticSaver{worker: w}
}

// SaveStatic enqueues the save. It fails with worker.ErrQueueFull when the
// queue has no room.
func (q *QueuedStaticSaver) SaveStatic(_ context.Context, requestPath, contentType string, data []byte) error {
	if _, err := q.worker.EnqueueStaticSave(requestPath, contentType, data); err != nil {
		metrics.StaticSave("dropped")
		return err
	}
	return nil
}
