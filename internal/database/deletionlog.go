package database

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// CreateDeletionLog appends one audit row. Audit rows are never updated.
func (c *Client) CreateDeletionLog(ctx context.Context, entry *DeletionLog) error {
	if result := c.db.WithContext(ctx).Create(entry); result.Error != nil {
		log.Error("failed to record deletion attempt", "title", entry.Title, "error", result.Error)
		return result.Error
	}
	return nil
}

// ListDeletionLogs returns the deletion audit trail, newest first.
func (c *Client) ListDeletionLogs(ctx context.Context, since *time.Time, limit, offset int) ([]DeletionLog, error) {
	tx := c.db.WithContext(ctx).Order("id DESC").Limit(limit).Offset(offset)
	if since != nil {
		tx = tx.Where("created_at >= ?", *since)
	}

	var entries []DeletionLog
	if result := tx.Find(&entries); result.Error != nil {
		log.Error("failed to list deletion logs", "error", result.Error)
		return nil, result.Error
	}
	return entries, nil
}

// GetDeletionStats aggregates the audit log, optionally limited to entries
// after the given time.
func (c *Client) GetDeletionStats(ctx context.Context, since *time.Time) (*DeletionStats, error) {
	tx := c.db.WithContext(ctx).Model(&DeletionLog{})
	if since != nil {
		tx = tx.Where("created_at >= ?", *since)
	}

	type row struct {
		TotalAttempts  int64
		TotalDeleted   int64
		TotalFailed    int64
		TotalSizeFreed int64
	}

	var r row
	result := tx.Select(
		"COUNT(*) as total_attempts, "+
			"COUNT(CASE WHEN outcome = ? THEN 1 END) as total_deleted, "+
			"COUNT(CASE WHEN outcome = ? THEN 1 END) as total_failed, "+
			"COALESCE(SUM(CASE WHEN outcome = ? THEN file_size ELSE 0 END), 0) as total_size_freed",
		DeletionOutcomeDeleted, DeletionOutcomeFailed, DeletionOutcomeDeleted,
	).Scan(&r)
	if result.Error != nil {
		return nil, result.Error
	}

	stats := &DeletionStats{
		TotalAttempts:  r.TotalAttempts,
		TotalDeleted:   r.TotalDeleted,
		TotalFailed:    r.TotalFailed,
		TotalSizeFreed: r.TotalSizeFreed,
	}

	var last DeletionLog
	lastTx := c.db.WithContext(ctx).
		Where("outcome = ?", DeletionOutcomeDeleted).
		Order("id DESC")
	if since != nil {
		lastTx = lastTx.Where("created_at >= ?", *since)
	}
	if result := lastTx.First(&last); result.Error == nil {
		stats.LastDeletionAt = &last.CreatedAt
	}

	return stats, nil
}
