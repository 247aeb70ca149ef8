package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetForce bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Wipe all deletion candidates",
	Long:  `Delete every stored candidate, including pending and approved ones. Scan history and the deletion audit log are kept. Future scans flag matching items again.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !resetForce {
			return fmt.Errorf("this deletes all candidates, re-run with --force to confirm")
		}

		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close() //nolint:errcheck

		count, err := db.PurgeCandidates(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to purge candidates: %w", err)
		}

		fmt.Printf("Removed %d candidates\n", count)
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetForce, "force", false, "Confirm wiping all candidates")
	rootCmd.AddCommand(resetCmd)
}
