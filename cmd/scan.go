package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/curatarr/curatarr/internal/database"
	"github.com/curatarr/curatarr/internal/engine"
)

var scanCmd = &cobra.Command{
	Use:   "scan <rule name>",
	Short: "Queue a manual scan for a rule",
	Long:  `Queue a manual scan for the named rule. Manual scans run ahead of scheduled work; the running server picks the job up.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	ctx := cmd.Context()
	rule, err := db.GetRuleByName(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to find rule %q: %w", args[0], err)
	}
	if !rule.Enabled {
		return fmt.Errorf("rule %q is disabled", rule.Name)
	}

	active, err := db.HasActiveScan(ctx, rule.ID)
	if err != nil {
		return err
	}
	if active {
		return fmt.Errorf("a scan for rule %q is already in progress", rule.Name)
	}

	scan := &database.Scan{
		RuleID:   rule.ID,
		RuleName: rule.Name,
		Trigger:  database.ScanTriggerManual,
	}
	if err := db.CreateScan(ctx, scan); err != nil {
		return err
	}

	job, err := engine.NewScanJob(scan.ID, rule.ID, database.JobPriorityHigh)
	if err != nil {
		return err
	}
	if err := db.EnqueueJob(ctx, job); err != nil {
		return err
	}

	fmt.Printf("Queued scan %d for rule %q\n", scan.ID, rule.Name)
	return nil
}
