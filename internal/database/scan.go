package database

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// CreateScan records a new scan in pending state.
func (c *Client) CreateScan(ctx context.Context, scan *Scan) error {
	scan.Status = ScanStatusPending
	if result := c.db.WithContext(ctx).Create(scan); result.Error != nil {
		log.Error("failed to create scan", "rule", scan.RuleName, "error", result.Error)
		return result.Error
	}
	return nil
}

// StartScan moves a scan from pending to running. A scan that is no longer
// pending, for example after a crash recovery requeue, cannot be started twice.
func (c *Client) StartScan(ctx context.Context, scanID uint) error {
	result := c.db.WithContext(ctx).
		Model(&Scan{}).
		Where("id = ? AND status = ?", scanID, ScanStatusPending).
		Updates(map[string]any{
			"status":     ScanStatusRunning,
			"started_at": lo.ToPtr(time.Now()),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// CompleteScan marks a running scan as completed and stores its counters.
func (c *Client) CompleteScan(ctx context.Context, scanID uint, evaluated, matched, skipped, created int) error {
	result := c.db.WithContext(ctx).
		Model(&Scan{}).
		Where("id = ? AND status = ?", scanID, ScanStatusRunning).
		Updates(map[string]any{
			"status":             ScanStatusCompleted,
			"completed_at":       lo.ToPtr(time.Now()),
			"items_evaluated":    evaluated,
			"items_matched":      matched,
			"items_skipped":      skipped,
			"candidates_created": created,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// FailScan marks a scan as failed. Both pending and running scans can fail,
// a scan may break before its handler ever starts it.
func (c *Client) FailScan(ctx context.Context, scanID uint, errorMessage string) error {
	result := c.db.WithContext(ctx).
		Model(&Scan{}).
		Where("id = ? AND status IN ?", scanID, []ScanStatus{ScanStatusPending, ScanStatusRunning}).
		Updates(map[string]any{
			"status":        ScanStatusFailed,
			"completed_at":  lo.ToPtr(time.Now()),
			"error_message": errorMessage,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func (c *Client) GetScanByID(ctx context.Context, scanID uint) (*Scan, error) {
	var scan Scan
	result := c.db.WithContext(ctx).First(&scan, scanID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &scan, nil
}

// ListScans returns scan history, newest first. A zero ruleID returns scans
// for all rules.
func (c *Client) ListScans(ctx context.Context, ruleID uint, limit, offset int) ([]Scan, error) {
	tx := c.db.WithContext(ctx).Order("id DESC").Limit(limit).Offset(offset)
	if ruleID != 0 {
		tx = tx.Where("rule_id = ?", ruleID)
	}

	var scans []Scan
	if result := tx.Find(&scans); result.Error != nil {
		log.Error("failed to list scans", "error", result.Error)
		return nil, result.Error
	}
	return scans, nil
}

// CountScans returns the lifetime scan count. A zero ruleID counts all scans.
func (c *Client) CountScans(ctx context.Context, ruleID uint) (int64, error) {
	tx := c.db.WithContext(ctx).Model(&Scan{})
	if ruleID != 0 {
		tx = tx.Where("rule_id = ?", ruleID)
	}

	var count int64
	if result := tx.Count(&count); result.Error != nil {
		return 0, result.Error
	}
	return count, nil
}

// HasActiveScan reports whether a pending or running scan exists for a rule.
func (c *Client) HasActiveScan(ctx context.Context, ruleID uint) (bool, error) {
	var count int64
	result := c.db.WithContext(ctx).
		Model(&Scan{}).
		Where("rule_id = ? AND status IN ?", ruleID, []ScanStatus{ScanStatusPending, ScanStatusRunning}).
		Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}
