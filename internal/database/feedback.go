package database

import (
	"context"

	"github.com/charmbracelet/log"
	"gorm.io/gorm/clause"

	"github.com/curatarr/curatarr/internal/feedback"
)

// AddFeedbackMark stores one user mark for a library item. A second mark by
// the same user on the same title replaces the first, one user cannot stack
// marks to amplify the score.
func (c *Client) AddFeedbackMark(ctx context.Context, mark *FeedbackMark) error {
	result := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "title_key"}, {Name: "marked_by"}},
		DoUpdates: clause.AssignmentColumns([]string{"mark", "media_type", "updated_at"}),
	}).Create(mark)
	if result.Error != nil {
		log.Error("failed to store feedback mark", "title_key", mark.TitleKey, "error", result.Error)
		return result.Error
	}
	return nil
}

// MarksFor returns all stored marks for the given titles, keyed by title key.
// Titles without marks are absent from the result.
func (c *Client) MarksFor(ctx context.Context, titleKeys []string) (map[string][]feedback.Mark, error) {
	if len(titleKeys) == 0 {
		return map[string][]feedback.Mark{}, nil
	}

	var rows []FeedbackMark
	result := c.db.WithContext(ctx).
		Where("title_key IN ?", titleKeys).
		Order("id").
		Find(&rows)
	if result.Error != nil {
		log.Error("failed to load feedback marks", "error", result.Error)
		return nil, result.Error
	}

	marks := make(map[string][]feedback.Mark)
	for _, row := range rows {
		marks[row.TitleKey] = append(marks[row.TitleKey], row.Mark)
	}
	return marks, nil
}
