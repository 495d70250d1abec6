package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bolt/thumbs/internal/service"
	"github.com/bolt/thumbs/internal/storage"
	"github.com/bolt/thumbs/internal/worker"
)

// StaticSaveHandler processes jobs that write rendered thumbnails to the
// static root.
type StaticSaveHandler struct {
	writer *service.StaticWriter
	logger *slog.Logger
}

// NewStaticSaveHandler creates a new handler for static save jobs.
func NewStaticSaveHandler(writer *service.StaticWriter, logger *slog.Logger) *StaticSaveHandler {
	return &StaticSaveHandler{
		writer: writer,
		logger: logger,
	}
}

// Type returns the job type identifier.
func (h *StaticSaveHandler) Type() string {
	return worker.JobTypeStaticSave
}

// Handle executes the static save job.
func (h *StaticSaveHandler) Handle(ctx context.Context, payload any) error {
	var p worker.StaticSavePayload
	switch v := payload.(type) {
	case worker.StaticSavePayload:
		p = v
	case *worker.StaticSavePayload:
		if v == nil {
			return worker.NewPermanentError(errors.New("nil static save payload"))
		}
		p = *v
	default:
		return worker.NewPermanentError(fmt.Errorf("invalid payload type %T", payload))
	}

	if p.Path == "" {
		return worker.NewPermanentError(errors.New("static save without a path"))
	}

	if !storage.IsImage(p.ContentType) {
		return worker.NewPermanentError(fmt.Errorf("invalid content type: %s", p.ContentType))
	}

	err := h.writer.SaveStatic(ctx, p.Path, p.ContentType, p.Data)
	if err != nil {
		if storage.IsInvalidKey(err) || storage.IsTooLarge(err) {
			return worker.NewPermanentError(err)
		}
		return err
	}

	h.logger.Debug("Static thumbnail saved", "path", p.Path, "size", len(p.Data))
	return nil
}
