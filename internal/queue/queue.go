// Package queue runs durable jobs from the database with a worker pool.
//
// Delivery is at-least-once: a job interrupted by a crash is requeued at the
// next startup and handlers must tolerate re-execution.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/curatarr/curatarr/internal/database"
)

const (
	baseRetryDelay = 30 * time.Second
	maxRetryDelay  = 30 * time.Minute
)

// Handler executes one job. A returned error triggers a retry until the job's
// attempt budget is spent.
type Handler func(ctx context.Context, job *database.Job) error

// Queue polls the database for due jobs and dispatches them to handlers.
type Queue struct {
	db           database.DB
	logger       *log.Logger
	workers      int
	pollInterval time.Duration
	handlers     map[database.JobKind]Handler
}

// New creates a queue with the given worker count and poll interval.
func New(db database.DB, workers int, pollInterval time.Duration) *Queue {
	if workers < 1 {
		workers = 1
	}
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &Queue{
		db:           db,
		logger:       log.WithPrefix("queue"),
		workers:      workers,
		pollInterval: pollInterval,
		handlers:     make(map[database.JobKind]Handler),
	}
}

// Register binds a handler to a job kind. Must be called before Run.
func (q *Queue) Register(kind database.JobKind, handler Handler) {
	q.handlers[kind] = handler
}

// Run requeues jobs orphaned by a previous shutdown and starts the worker
// pool. It blocks until the context is cancelled.
func (q *Queue) Run(ctx context.Context) error {
	if _, err := q.db.ResetStaleJobs(ctx); err != nil {
		return fmt.Errorf("failed to reset stale jobs: %w", err)
	}

	q.logger.Info("starting workers", "count", q.workers, "poll_interval", q.pollInterval)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < q.workers; i++ {
		worker := i
		g.Go(func() error {
			q.runWorker(ctx, worker)
			return nil
		})
	}
	return g.Wait()
}

func (q *Queue) runWorker(ctx context.Context, worker int) {
	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()

	for {
		// Drain all due jobs before going back to sleep.
		for {
			if ctx.Err() != nil {
				return
			}
			job, err := q.db.ClaimNextJob(ctx, time.Now())
			if err != nil {
				q.logger.Error("failed to claim job", "worker", worker, "error", err)
				break
			}
			if job == nil {
				break
			}
			q.dispatch(ctx, worker, job)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (q *Queue) dispatch(ctx context.Context, worker int, job *database.Job) {
	logger := q.logger.With("worker", worker, "job", job.ID, "kind", job.Kind, "attempt", job.Attempts)

	handler, ok := q.handlers[job.Kind]
	if !ok {
		logger.Error("no handler registered for job kind")
		if err := q.db.FailJob(ctx, job.ID, fmt.Sprintf("no handler for kind %q", job.Kind)); err != nil {
			logger.Error("failed to mark job failed", "error", err)
		}
		return
	}

	start := time.Now()
	if err := handler(ctx, job); err != nil {
		q.handleFailure(ctx, logger, job, err)
		return
	}

	if err := q.db.CompleteJob(ctx, job.ID); err != nil {
		logger.Error("failed to mark job completed", "error", err)
		return
	}
	logger.Debug("job completed", "duration", time.Since(start))
}

func (q *Queue) handleFailure(ctx context.Context, logger *log.Logger, job *database.Job, jobErr error) {
	if job.Attempts >= job.MaxAttempts {
		logger.Error("job failed permanently", "error", jobErr)
		if err := q.db.FailJob(ctx, job.ID, jobErr.Error()); err != nil {
			logger.Error("failed to mark job failed", "error", err)
		}
		return
	}

	delay := retryDelay(job.Attempts)
	logger.Warn("job failed, scheduling retry", "error", jobErr, "delay", delay)
	if err := q.db.RetryJob(ctx, job.ID, time.Now().Add(delay), jobErr.Error()); err != nil {
		logger.Error("failed to requeue job", "error", err)
	}
}

// retryDelay doubles per attempt, capped at maxRetryDelay.
func retryDelay(attempts int) time.Duration {
	delay := baseRetryDelay
	for i := 1; i < attempts && delay < maxRetryDelay; i++ {
		delay *= 2
	}
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}
