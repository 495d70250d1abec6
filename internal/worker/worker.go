package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bolt/thumbs/internal/metrics"
)

// Worker runs jobs from a bounded in-memory queue on a fixed number of
// goroutines.
type Worker struct {
	handlers map[string]JobHandler
	config   Config
	logger   *slog.Logger
	queue    chan Job

	// Synchronization
	mu       sync.RWMutex
	stopped  bool
	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates a new Worker with the given configuration.
// The worker must be started with Start() and stopped with Stop().
func New(config Config, logger *slog.Logger) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Worker{
		handlers: make(map[string]JobHandler),
		config:   config,
		logger:   logger,
		queue:    make(chan Job, config.QueueSize),
		stopCh:   make(chan struct{}),
	}, nil
}

// Register adds a job handler to the worker.
// The handler's Type() must be unique. Call this before Start().
func (w *Worker) Register(handler JobHandler) {
	jobType := handler.Type()
	if _, exists := w.handlers[jobType]; exists {
		w.logger.Warn("Overwriting existing handler", "job_type", jobType)
	}
	w.handlers[jobType] = handler
	w.logger.Debug("Registered job handler", "job_type", jobType)
}

// Start launches the worker goroutines. Jobs run with contexts derived
// from ctx.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.config.Concurrency; i++ {
		w.wg.Add(1)
		go w.runWorker(ctx, i+1)
	}

	w.logger.Info("Worker started",
		"concurrency", w.config.Concurrency,
		"queue_size", w.config.QueueSize,
	)
}

// Stop rejects new jobs, lets the workers drain the queue and waits for
// them to finish. It respects the configured ShutdownTimeout.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.logger.Info("Stopping worker...")

		w.mu.Lock()
		w.stopped = true
		w.mu.Unlock()
		close(w.stopCh)

		done := make(chan struct{})
		go func() {
			w.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			w.logger.Info("Worker stopped gracefully")
		case <-time.After(w.config.ShutdownTimeout):
			w.logger.Warn("Worker shutdown timeout exceeded, some jobs may still be running")
		}
	})
}

// Pending returns the number of jobs waiting in the queue.
func (w *Worker) Pending() int {
	return len(w.queue)
}

// push places job on the queue without blocking.
func (w *Worker) push(job Job) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		return ErrStopped
	}

	select {
	case w.queue <- job:
		metrics.JobQueued()
		return nil
	default:
		return ErrQueueFull
	}
}

// runWorker is the main loop for a worker goroutine. After stopCh closes
// it drains whatever is left in the queue and returns.
func (w *Worker) runWorker(ctx context.Context, workerID int) {
	defer w.wg.Done()

	logger := w.logger.With("worker_id", workerID)
	logger.Debug("Worker started")

	for {
		select {
		case <-w.stopCh:
			for {
				select {
				case job := <-w.queue:
					w.processJob(ctx, job, logger)
				default:
					logger.Debug("Worker stopping")
					return
				}
			}
		case job := <-w.queue:
			w.processJob(ctx, job, logger)
		}
	}
}

// processJob executes a single job and records the outcome. Failed jobs
// are requeued until MaxAttempts unless the error is permanent.
func (w *Worker) processJob(ctx context.Context, job Job, logger *slog.Logger) {
	metrics.JobStarted(job.Type)

	job.Attempts++
	logger = logger.With("job_id", job.ID, "job_type", job.Type, "attempt", job.Attempts)
	logger.Debug("Processing job")

	start := time.Now()
	err := w.executeJob(ctx, job)
	if err == nil {
		metrics.JobCompleted(job.Type, time.Since(start))
		logger.Debug("Job completed", "duration", time.Since(start))
		return
	}

	if IsPermanent(err) {
		logger.Warn("Job failed with permanent error, will not retry", "error", err)
		metrics.JobFailed(job.Type)
		return
	}

	if job.Attempts < w.config.MaxAttempts {
		if pushErr := w.push(job); pushErr == nil {
			metrics.JobRetried(job.Type)
			logger.Info("Job failed, retrying", "error", err)
			return
		}
	}

	logger.Error("Job failed", "error", err)
	metrics.JobFailed(job.Type)
}

// executeJob runs the appropriate handler for the job with a timeout context.
func (w *Worker) executeJob(ctx context.Context, job Job) (err error) {
	handler, ok := w.handlers[job.Type]
	if !ok {
		return NewPermanentError(fmt.Errorf("no handler registered for job type: %s", job.Type))
	}

	defer func() {
		if r := recover(); r != nil {
			err = NewPermanentError(fmt.Errorf("job handler panicked: %v", r))
		}
	}()

	jobCtx, cancel := context.WithTimeout(ctx, w.config.JobTimeout)
	defer cancel()

	return handler.Handle(jobCtx, job.Payload)
}
