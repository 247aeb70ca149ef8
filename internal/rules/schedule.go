package rules

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// cronParser accepts the standard 5-field cron syntax plus descriptors like
// @daily, matching what the scheduler runs.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateSchedule checks a rule's recurrence expression. An empty schedule
// is valid and means the rule is manual-trigger-only.
func ValidateSchedule(schedule string) error {
	if schedule == "" {
		return nil
	}
	if _, err := cronParser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	return nil
}
