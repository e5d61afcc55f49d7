// workflows/worker.go
package workflows

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/brandview-ai/brandview-workflows/internal/store"
	"github.com/brandview-ai/brandview-workflows/services"
)

// Worker polls the queue for audit jobs and runs them one at a time. The
// claim is an atomic check-and-set in the store, so multiple workers could
// share a queue without double-processing; this service runs one.
type Worker struct {
	jobs      services.AuditJobStore
	processor *AuditProcessor
	interval  time.Duration
	logger    *zap.Logger
}

func NewWorker(jobs services.AuditJobStore, processor *AuditProcessor, interval time.Duration, logger *zap.Logger) *Worker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Worker{
		jobs:      jobs,
		processor: processor,
		interval:  interval,
		logger:    logger.Named("Worker"),
	}
}

// Run polls until ctx is cancelled, draining the queue before each sleep.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("queue worker started", zap.Duration("poll_interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.drain(ctx)

		select {
		case <-ctx.Done():
			w.logger.Info("queue worker stopping")
			return
		case <-ticker.C:
		}
	}
}

// drain claims and processes queued jobs until the queue is empty or ctx
// is cancelled.
func (w *Worker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		job, err := w.jobs.ClaimNextQueued(ctx)
		if errors.Is(err, store.ErrNotFound) {
			return
		}
		if err != nil {
			w.logger.Error("failed to claim queued job", zap.Error(err))
			return
		}

		w.logger.Info("claimed audit job", zap.String("job_id", job.AuditJobID.String()))
		if err := w.processor.ProcessAudit(ctx, job); err != nil {
			w.logger.Error("audit job ended in failure",
				zap.String("job_id", job.AuditJobID.String()),
				zap.Error(err))
		}
	}
}
