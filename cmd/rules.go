package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/curatarr/curatarr/internal/config"
	"github.com/curatarr/curatarr/internal/database"
	"github.com/curatarr/curatarr/internal/media"
	"github.com/curatarr/curatarr/internal/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage cleanup rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all rules",
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close() //nolint:errcheck

		stored, err := db.ListRules(cmd.Context(), false)
		if err != nil {
			return fmt.Errorf("failed to list rules: %w", err)
		}
		if len(stored) == 0 {
			fmt.Println("No rules configured.")
			return nil
		}

		for _, rule := range stored {
			state := "disabled"
			if rule.Enabled {
				state = "enabled"
			}
			schedule := rule.Schedule
			if schedule == "" {
				schedule = "manual"
			}

			scanCount, err := db.CountScans(cmd.Context(), rule.ID)
			if err != nil {
				return fmt.Errorf("failed to count scans: %w", err)
			}
			lastScan := "never"
			if scans, err := db.ListScans(cmd.Context(), rule.ID, 1, 0); err == nil && len(scans) > 0 {
				lastScan = fmt.Sprintf("%s (%s)", scans[0].CreatedAt.Format("2006-01-02 15:04"), scans[0].Status)
			}

			fmt.Printf("%-4d %-30s %-6s %-10s %-16s scans=%-4d last=%s\n",
				rule.ID, rule.Name, rule.MediaType, state, schedule, scanCount, lastScan)
		}
		return nil
	},
}

var rulesAddFlags struct {
	MediaType  string
	Schedule   string
	Disabled   bool
	AutoDelete bool
}

var rulesAddCmd = &cobra.Command{
	Use:   "add <name> <criteria file>",
	Short: "Add a rule from a criteria file",
	Long:  `Add a rule whose criteria tree is read from a JSON file. The criteria are validated before the rule is stored.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		criteria, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("failed to read criteria file: %w", err)
		}

		mediaType := media.MediaType(rulesAddFlags.MediaType)
		if !mediaType.Valid() {
			return fmt.Errorf("unknown media type: %q", rulesAddFlags.MediaType)
		}
		root, err := rules.Parse(criteria, mediaType)
		if err != nil {
			return err
		}
		normalized, err := rules.Marshal(root)
		if err != nil {
			return err
		}
		if err := rules.ValidateSchedule(rulesAddFlags.Schedule); err != nil {
			return err
		}

		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close() //nolint:errcheck

		rule := &database.Rule{
			Name:       args[0],
			MediaType:  mediaType,
			Criteria:   string(normalized),
			Schedule:   rulesAddFlags.Schedule,
			Enabled:    !rulesAddFlags.Disabled,
			AutoDelete: rulesAddFlags.AutoDelete,
		}
		if err := db.CreateRule(cmd.Context(), rule); err != nil {
			return fmt.Errorf("failed to create rule: %w", err)
		}

		fmt.Printf("Created rule %q (id %d)\n", rule.Name, rule.ID)
		if rule.Schedule != "" {
			fmt.Println("Restart or reload the server to pick up the schedule.")
		}
		return nil
	},
}

func init() {
	rulesAddCmd.Flags().StringVar(&rulesAddFlags.MediaType, "media-type", "movie", "Media type the rule applies to (movie, tv)")
	rulesAddCmd.Flags().StringVar(&rulesAddFlags.Schedule, "schedule", "", "Cron schedule for automatic scans (empty = manual only)")
	rulesAddCmd.Flags().BoolVar(&rulesAddFlags.Disabled, "disabled", false, "Create the rule in disabled state")
	rulesAddCmd.Flags().BoolVar(&rulesAddFlags.AutoDelete, "auto-delete", false, "Approve matches automatically instead of waiting for review")

	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesAddCmd)
	rootCmd.AddCommand(rulesCmd)
}

func openDatabase() (*database.Client, error) {
	cfg, err := config.Load(rootCmdPersistentFlags.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, nil
}
