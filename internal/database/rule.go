package database

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
)

// CreateRule stores a new rule. The criteria tree must already be validated.
func (c *Client) CreateRule(ctx context.Context, rule *Rule) error {
	result := c.db.WithContext(ctx).Create(rule)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return ErrDuplicateRuleName
		}
		log.Error("failed to create rule", "name", rule.Name, "error", result.Error)
		return result.Error
	}
	return nil
}

// UpdateRule saves all fields of an existing rule.
func (c *Client) UpdateRule(ctx context.Context, rule *Rule) error {
	result := c.db.WithContext(ctx).
		Model(&Rule{}).
		Where("id = ?", rule.ID).
		Select("Name", "Description", "MediaType", "Criteria", "Schedule", "Enabled", "AutoDelete").
		Updates(rule)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return ErrDuplicateRuleName
		}
		log.Error("failed to update rule", "id", rule.ID, "error", result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRule removes a rule together with its scans and candidates. The
// deletion audit log is kept, its rows stand on their own.
func (c *Client) DeleteRule(ctx context.Context, id uint) error {
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&Rule{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		if result := tx.Where("rule_id = ?", id).Delete(&Candidate{}); result.Error != nil {
			return result.Error
		}
		if result := tx.Where("rule_id = ?", id).Delete(&Scan{}); result.Error != nil {
			return result.Error
		}
		return nil
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		log.Error("failed to delete rule", "id", id, "error", err)
	}
	return err
}

func (c *Client) GetRuleByID(ctx context.Context, id uint) (*Rule, error) {
	var rule Rule
	result := c.db.WithContext(ctx).First(&rule, id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &rule, nil
}

func (c *Client) GetRuleByName(ctx context.Context, name string) (*Rule, error) {
	var rule Rule
	result := c.db.WithContext(ctx).Where("name = ?", name).First(&rule)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &rule, nil
}

// ListRules returns all rules, ordered by name.
func (c *Client) ListRules(ctx context.Context, enabledOnly bool) ([]Rule, error) {
	tx := c.db.WithContext(ctx).Order("name")
	if enabledOnly {
		tx = tx.Where("enabled = ?", true)
	}

	var rules []Rule
	if result := tx.Find(&rules); result.Error != nil {
		log.Error("failed to list rules", "error", result.Error)
		return nil, result.Error
	}
	return rules, nil
}

// isUniqueViolation detects sqlite unique constraint errors without depending
// on driver-specific error types.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
