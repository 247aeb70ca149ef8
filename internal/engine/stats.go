package engine

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/curatarr/curatarr/internal/database"
	"github.com/curatarr/curatarr/internal/scheduler"
)

// Stats summarizes the engine's housekeeping activity.
type Stats struct {
	Candidates     map[database.ReviewStatus]int64
	Deletions      database.DeletionStats
	SizeFreedHuman string
}

// GetStats aggregates candidate and deletion statistics, optionally limited
// to activity after the given time.
func (e *Engine) GetStats(ctx context.Context, since *time.Time) (*Stats, error) {
	counts, err := e.db.CountCandidatesByStatus(ctx)
	if err != nil {
		return nil, err
	}

	deletions, err := e.db.GetDeletionStats(ctx, since)
	if err != nil {
		return nil, err
	}

	return &Stats{
		Candidates:     counts,
		Deletions:      *deletions,
		SizeFreedHuman: humanize.IBytes(uint64(deletions.TotalSizeFreed)),
	}, nil
}

// ScanHistory returns past scans, newest first. A zero ruleID returns all.
func (e *Engine) ScanHistory(ctx context.Context, ruleID uint, limit, offset int) ([]database.Scan, error) {
	if limit <= 0 {
		limit = 50
	}
	return e.db.ListScans(ctx, ruleID, limit, offset)
}

// DeletionHistory returns the deletion audit trail, newest first.
func (e *Engine) DeletionHistory(ctx context.Context, since *time.Time, limit, offset int) ([]database.DeletionLog, error) {
	if limit <= 0 {
		limit = 50
	}
	return e.db.ListDeletionLogs(ctx, since, limit, offset)
}

// RecentFailedJobs returns permanently failed jobs for operator attention.
func (e *Engine) RecentFailedJobs(ctx context.Context, limit int) ([]database.Job, error) {
	if limit <= 0 {
		limit = 10
	}
	return e.db.ListFailedJobs(ctx, limit)
}

// ScheduledJobs returns the scheduler's bookkeeping for all registered rules.
func (e *Engine) ScheduledJobs() map[uint]scheduler.JobInfo {
	return e.scheduler.GetJobs()
}
