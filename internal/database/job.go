package database

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
)

// EnqueueJob stores a new queued job.
func (c *Client) EnqueueJob(ctx context.Context, job *Job) error {
	job.Status = JobStatusQueued
	if job.RunAt.IsZero() {
		job.RunAt = time.Now()
	}
	if job.MaxAttempts < 1 {
		job.MaxAttempts = 1
	}
	if result := c.db.WithContext(ctx).Create(job); result.Error != nil {
		log.Error("failed to enqueue job", "kind", job.Kind, "error", result.Error)
		return result.Error
	}
	return nil
}

// ClaimNextJob atomically claims the next due job and marks it running.
// Jobs are picked by priority first, then enqueue order. A nil job with a
// nil error means nothing is due.
//
// The claim is a conditional update on the queued status, so concurrent
// workers never run the same job. Losing a claim race just means another
// worker took the job, the loser moves on to the next one.
func (c *Client) ClaimNextJob(ctx context.Context, now time.Time) (*Job, error) {
	for {
		var job Job
		result := c.db.WithContext(ctx).
			Where("status = ? AND run_at <= ?", JobStatusQueued, now).
			Order("priority DESC, id ASC").
			First(&job)
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if result.Error != nil {
			return nil, result.Error
		}

		claim := c.db.WithContext(ctx).
			Model(&Job{}).
			Where("id = ? AND status = ?", job.ID, JobStatusQueued).
			Updates(map[string]any{
				"status":   JobStatusRunning,
				"attempts": job.Attempts + 1,
			})
		if claim.Error != nil {
			return nil, claim.Error
		}
		if claim.RowsAffected == 0 {
			continue
		}

		job.Status = JobStatusRunning
		job.Attempts++
		return &job, nil
	}
}

// CompleteJob marks a running job as completed.
func (c *Client) CompleteJob(ctx context.Context, jobID uint) error {
	result := c.db.WithContext(ctx).
		Model(&Job{}).
		Where("id = ? AND status = ?", jobID, JobStatusRunning).
		Update("status", JobStatusCompleted)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// RetryJob puts a failed running job back on the queue for a later attempt.
func (c *Client) RetryJob(ctx context.Context, jobID uint, runAt time.Time, lastError string) error {
	result := c.db.WithContext(ctx).
		Model(&Job{}).
		Where("id = ? AND status = ?", jobID, JobStatusRunning).
		Updates(map[string]any{
			"status":     JobStatusQueued,
			"run_at":     runAt,
			"last_error": lastError,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// FailJob marks a running job as permanently failed.
func (c *Client) FailJob(ctx context.Context, jobID uint, lastError string) error {
	result := c.db.WithContext(ctx).
		Model(&Job{}).
		Where("id = ? AND status = ?", jobID, JobStatusRunning).
		Updates(map[string]any{
			"status":     JobStatusFailed,
			"last_error": lastError,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// ListFailedJobs returns permanently failed jobs, newest first.
func (c *Client) ListFailedJobs(ctx context.Context, limit int) ([]Job, error) {
	var jobs []Job
	result := c.db.WithContext(ctx).
		Where("status = ?", JobStatusFailed).
		Order("id DESC").
		Limit(limit).
		Find(&jobs)
	if result.Error != nil {
		log.Error("failed to list failed jobs", "error", result.Error)
		return nil, result.Error
	}
	return jobs, nil
}

// ResetStaleJobs requeues jobs left in running state by a previous process.
// Called once at startup, before any worker runs. The interrupted attempt
// still counts against the attempt budget.
func (c *Client) ResetStaleJobs(ctx context.Context) (int64, error) {
	result := c.db.WithContext(ctx).
		Model(&Job{}).
		Where("status = ?", JobStatusRunning).
		Updates(map[string]any{
			"status": JobStatusQueued,
			"run_at": time.Now(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		log.Warn("requeued jobs interrupted by previous shutdown", "count", result.RowsAffected)
	}
	return result.RowsAffected, nil
}
