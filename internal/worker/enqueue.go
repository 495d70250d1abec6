package worker

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/bolt/thumbs/internal/metrics"
)

// Job type constants - these must match the JobHandler.Type() values
const (
	JobTypeStaticSave = "static_save"
)

var (
	// ErrQueueFull is returned by Enqueue when no slot is free.
	ErrQueueFull = errors.New("job queue is full")

	// ErrStopped is returned by Enqueue after Stop has been called.
	ErrStopped = errors.New("worker is stopped")
)

// Job is a unit of work waiting in the queue. The queue lives in memory,
// so Payload is handed to the handler as is.
type Job struct {
	ID       uuid.UUID
	Type     string
	Payload  any
	Attempts int
}

// StaticSavePayload is the payload for static save jobs. Data is shared
// with the caller and must not be modified after enqueueing.
type StaticSavePayload struct {
	Path        string
	ContentType string
	Data        []byte
}

// Enqueue places a job on the queue without blocking.
func (w *Worker) Enqueue(jobType string, payload any) (Job, error) {
	job := Job{
		ID:      uuid.New(),
		Type:    jobType,
		Payload: payload,
	}

	if err := w.push(job); err != nil {
		if errors.Is(err, ErrQueueFull) {
			metrics.JobDropped(jobType)
		}
		return Job{}, fmt.Errorf("enqueue job: %w", err)
	}

	return job, nil
}

// EnqueueStaticSave enqueues a job that writes a rendered thumbnail to the
// static root.
func (w *Worker) EnqueueStaticSave(path, contentType string, data []byte) (Job, error) {
	return w.Enqueue(JobTypeStaticSave, StaticSavePayload{
		Path:        path,
		ContentType: contentType,
		Data:        data,
	})
}
