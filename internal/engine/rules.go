package engine

import (
	"context"
	"fmt"

	"github.com/curatarr/curatarr/internal/database"
	"github.com/curatarr/curatarr/internal/rules"
)

// RuleInput carries the user-editable fields of a rule.
type RuleInput struct {
	Name        string
	Description string
	MediaType   string
	Criteria    []byte
	Schedule    string
	Enabled     bool
	AutoDelete  bool
}

// CreateRule validates and stores a new rule. Scheduled rules are registered
// with the scheduler right away.
func (e *Engine) CreateRule(ctx context.Context, input RuleInput) (*database.Rule, error) {
	rule, err := e.buildRule(input)
	if err != nil {
		return nil, err
	}

	if err := e.db.CreateRule(ctx, rule); err != nil {
		return nil, err
	}
	e.syncRuleSchedule(*rule)

	e.logger.Info("rule created", "rule", rule.Name, "media_type", rule.MediaType, "schedule", rule.Schedule)
	return rule, nil
}

// UpdateRule validates and saves changes to an existing rule and keeps the
// scheduler in sync.
func (e *Engine) UpdateRule(ctx context.Context, id uint, input RuleInput) (*database.Rule, error) {
	existing, err := e.db.GetRuleByID(ctx, id)
	if err != nil {
		return nil, err
	}

	rule, err := e.buildRule(input)
	if err != nil {
		return nil, err
	}
	rule.ID = existing.ID

	if err := e.db.UpdateRule(ctx, rule); err != nil {
		return nil, err
	}
	e.syncRuleSchedule(*rule)

	e.logger.Info("rule updated", "rule", rule.Name)
	return rule, nil
}

// SetRuleEnabled toggles a rule and keeps the scheduler in sync. Disabling
// unregisters the schedule but leaves scan history and candidates intact.
func (e *Engine) SetRuleEnabled(ctx context.Context, id uint, enabled bool) (*database.Rule, error) {
	rule, err := e.db.GetRuleByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rule.Enabled == enabled {
		return rule, nil
	}

	rule.Enabled = enabled
	if err := e.db.UpdateRule(ctx, rule); err != nil {
		return nil, err
	}
	e.syncRuleSchedule(*rule)

	e.logger.Info("rule toggled", "rule", rule.Name, "enabled", enabled)
	return rule, nil
}

// DeleteRule removes a rule, its schedule and its scan and candidate history.
// The deletion audit log survives.
func (e *Engine) DeleteRule(ctx context.Context, id uint) error {
	if err := e.db.DeleteRule(ctx, id); err != nil {
		return err
	}
	e.scheduler.UnregisterRule(id)
	e.logger.Info("rule deleted", "rule_id", id)
	return nil
}

// GetRule returns one rule by ID.
func (e *Engine) GetRule(ctx context.Context, id uint) (*database.Rule, error) {
	return e.db.GetRuleByID(ctx, id)
}

// ListRules returns all stored rules.
func (e *Engine) ListRules(ctx context.Context) ([]database.Rule, error) {
	return e.db.ListRules(ctx, false)
}

// RuleSummary is a rule together with its scan history headline.
type RuleSummary struct {
	database.Rule
	ScanCount int64
	LastScan  *database.Scan
}

// ListRuleSummaries returns all rules with their lifetime scan count and most
// recent scan.
func (e *Engine) ListRuleSummaries(ctx context.Context) ([]RuleSummary, error) {
	stored, err := e.db.ListRules(ctx, false)
	if err != nil {
		return nil, err
	}

	summaries := make([]RuleSummary, 0, len(stored))
	for _, rule := range stored {
		summary := RuleSummary{Rule: rule}

		if summary.ScanCount, err = e.db.CountScans(ctx, rule.ID); err != nil {
			return nil, err
		}
		scans, err := e.db.ListScans(ctx, rule.ID, 1, 0)
		if err != nil {
			return nil, err
		}
		if len(scans) > 0 {
			scan := scans[0]
			summary.LastScan = &scan
		}

		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// TriggerScan creates a scan for a rule and enqueues it. Manual triggers run
// at high priority so they jump ahead of scheduled work. At most one scan per
// rule is active at a time.
func (e *Engine) TriggerScan(ctx context.Context, ruleID uint, trigger database.ScanTrigger) (*database.Scan, error) {
	rule, err := e.db.GetRuleByID(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if !rule.Enabled {
		return nil, ErrRuleDisabled
	}

	active, err := e.db.HasActiveScan(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, ErrScanInProgress
	}

	scan := &database.Scan{
		RuleID:   rule.ID,
		RuleName: rule.Name,
		Trigger:  trigger,
	}
	if err := e.db.CreateScan(ctx, scan); err != nil {
		return nil, err
	}

	priority := database.JobPriorityNormal
	if trigger == database.ScanTriggerManual {
		priority = database.JobPriorityHigh
	}

	job, err := NewScanJob(scan.ID, rule.ID, priority)
	if err != nil {
		return nil, err
	}
	if err := e.db.EnqueueJob(ctx, job); err != nil {
		if failErr := e.db.FailScan(ctx, scan.ID, "failed to enqueue scan job"); failErr != nil {
			e.logger.Error("failed to mark unqueued scan failed", "scan", scan.ID, "error", failErr)
		}
		return nil, err
	}

	e.logger.Info("scan queued", "rule", rule.Name, "scan", scan.ID, "trigger", trigger)
	return scan, nil
}

// buildRule validates the input and assembles a rule record.
func (e *Engine) buildRule(input RuleInput) (*database.Rule, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("rule name is required")
	}

	mediaType, err := parseMediaType(input.MediaType)
	if err != nil {
		return nil, err
	}

	root, err := rules.Parse(input.Criteria, mediaType)
	if err != nil {
		return nil, err
	}
	criteria, err := rules.Marshal(root)
	if err != nil {
		return nil, err
	}

	if err := rules.ValidateSchedule(input.Schedule); err != nil {
		return nil, err
	}

	return &database.Rule{
		Name:        input.Name,
		Description: input.Description,
		MediaType:   mediaType,
		Criteria:    string(criteria),
		Schedule:    input.Schedule,
		Enabled:     input.Enabled,
		AutoDelete:  input.AutoDelete,
	}, nil
}

// syncRuleSchedule registers or removes the scheduler job to match the rule.
func (e *Engine) syncRuleSchedule(rule database.Rule) {
	if rule.Enabled && rule.Schedule != "" {
		if err := e.registerRuleSchedule(rule); err != nil {
			e.logger.Error("failed to schedule rule", "rule", rule.Name, "error", err)
		}
		return
	}
	e.scheduler.UnregisterRule(rule.ID)
}
