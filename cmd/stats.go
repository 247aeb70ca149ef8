package cmd

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/curatarr/curatarr/internal/database"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show housekeeping statistics",
	Long:  `Display candidate counts, deletion totals and the most recent deletions.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close() //nolint:errcheck

		counts, err := db.CountCandidatesByStatus(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get candidate counts: %w", err)
		}

		stats, err := db.GetDeletionStats(cmd.Context(), nil)
		if err != nil {
			return fmt.Errorf("failed to get deletion stats: %w", err)
		}

		fmt.Println("Candidates:")
		for _, status := range []database.ReviewStatus{
			database.ReviewStatusPending,
			database.ReviewStatusApproved,
			database.ReviewStatusRejected,
			database.ReviewStatusDeleted,
			database.ReviewStatusPartiallyDeleted,
		} {
			if counts[status] > 0 {
				fmt.Printf("  %s: %d\n", status, counts[status])
			}
		}

		fmt.Println("\nDeletions:")
		fmt.Printf("  Attempts: %d\n", stats.TotalAttempts)
		fmt.Printf("  Deleted: %d\n", stats.TotalDeleted)
		fmt.Printf("  Failed: %d\n", stats.TotalFailed)
		fmt.Printf("  Size Freed: %s\n", humanize.IBytes(uint64(stats.TotalSizeFreed)))
		if stats.LastDeletionAt != nil {
			fmt.Printf("  Last Deletion: %s\n", stats.LastDeletionAt.Format(time.RFC3339))
		}

		// Recent audit trail
		logs, err := db.ListDeletionLogs(cmd.Context(), nil, 5, 0)
		if err == nil && len(logs) > 0 {
			fmt.Println("\nRecent Deletion Attempts:")
			for _, entry := range logs {
				fmt.Printf("  %s  %-18s %s (%s)\n",
					entry.CreatedAt.Format("2006-01-02 15:04:05"), entry.Outcome,
					entry.Title, humanize.IBytes(uint64(entry.FileSize)))
			}
		}

		failed, err := db.ListFailedJobs(cmd.Context(), 5)
		if err == nil && len(failed) > 0 {
			fmt.Println("\nFailed Jobs:")
			for _, job := range failed {
				lastError := ""
				if job.LastError != nil {
					lastError = *job.LastError
				}
				fmt.Printf("  %-4d %-10s attempts=%d %s\n", job.ID, job.Kind, job.Attempts, lastError)
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
