package database

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// FindOpenCandidate returns the open candidate for a rule and title, if one
// exists. At most one open candidate per rule and title is ever kept.
func (c *Client) FindOpenCandidate(ctx context.Context, ruleID uint, titleKey string) (*Candidate, error) {
	var candidate Candidate
	result := c.db.WithContext(ctx).
		Where("rule_id = ? AND title_key = ? AND status IN ?",
			ruleID, titleKey, []ReviewStatus{ReviewStatusPending, ReviewStatusApproved}).
		First(&candidate)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &candidate, nil
}

// CreateCandidate stores a newly flagged candidate.
func (c *Client) CreateCandidate(ctx context.Context, candidate *Candidate) error {
	if result := c.db.WithContext(ctx).Create(candidate); result.Error != nil {
		log.Error("failed to create candidate", "title", candidate.Title, "error", result.Error)
		return result.Error
	}
	return nil
}

// RefreshCandidate updates an open candidate that was matched again by a later
// scan. The review status and reviewer are untouched.
func (c *Client) RefreshCandidate(ctx context.Context, id uint, scanID uint, reasons string, fileSize int64) error {
	result := c.db.WithContext(ctx).
		Model(&Candidate{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"scan_id":   scanID,
			"reasons":   reasons,
			"file_size": fileSize,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *Client) GetCandidateByID(ctx context.Context, id uint) (*Candidate, error) {
	var candidate Candidate
	result := c.db.WithContext(ctx).First(&candidate, id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &candidate, nil
}

// ListCandidates returns candidates matching the filter, newest first.
func (c *Client) ListCandidates(ctx context.Context, filter CandidateFilter) ([]Candidate, error) {
	tx := c.db.WithContext(ctx).Order("id DESC")

	if filter.RuleID != 0 {
		tx = tx.Where("rule_id = ?", filter.RuleID)
	}
	if filter.ScanID != 0 {
		tx = tx.Where("scan_id = ?", filter.ScanID)
	}
	if filter.MediaType != "" {
		tx = tx.Where("media_type = ?", filter.MediaType)
	}
	if filter.Status != "" {
		tx = tx.Where("status = ?", filter.Status)
	}
	if filter.Limit > 0 {
		tx = tx.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		tx = tx.Offset(filter.Offset)
	}

	var candidates []Candidate
	if result := tx.Find(&candidates); result.Error != nil {
		log.Error("failed to list candidates", "error", result.Error)
		return nil, result.Error
	}
	return candidates, nil
}

// TransitionCandidate moves a candidate from one review status to another.
// The update is conditional on the current status, so concurrent reviewers
// cannot both win: the loser gets ErrInvalidTransition.
func (c *Client) TransitionCandidate(ctx context.Context, id uint, from, to ReviewStatus, reviewedBy, note string) error {
	updates := map[string]any{
		"status": to,
	}
	if reviewedBy != "" {
		updates["reviewed_by"] = reviewedBy
		updates["reviewed_at"] = lo.ToPtr(time.Now())
	}
	if note != "" {
		updates["review_note"] = note
	}
	if !to.Open() {
		updates["resolved_at"] = lo.ToPtr(time.Now())
	}

	result := c.db.WithContext(ctx).
		Model(&Candidate{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		log.Error("failed to transition candidate", "id", id, "from", from, "to", to, "error", result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Distinguish a race from a missing record.
		if _, err := c.GetCandidateByID(ctx, id); err != nil {
			return err
		}
		return ErrInvalidTransition
	}
	return nil
}

// PurgeCandidates deletes all candidates and returns the number removed.
// The deletion audit log is untouched.
func (c *Client) PurgeCandidates(ctx context.Context) (int64, error) {
	result := c.db.WithContext(ctx).Where("1 = 1").Delete(&Candidate{})
	if result.Error != nil {
		log.Error("failed to purge candidates", "error", result.Error)
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// CountCandidatesByStatus returns candidate counts grouped by review status.
func (c *Client) CountCandidatesByStatus(ctx context.Context) (map[ReviewStatus]int64, error) {
	type row struct {
		Status ReviewStatus
		Count  int64
	}

	var rows []row
	result := c.db.WithContext(ctx).
		Model(&Candidate{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows)
	if result.Error != nil {
		return nil, result.Error
	}

	counts := make(map[ReviewStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
