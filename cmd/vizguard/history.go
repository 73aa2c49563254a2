package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/vizguard/internal/state"
	"github.com/ShayCichocki/vizguard/pkg/models"
)

var (
	historyLimit int
	historyPage  string
	historyPurge time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent validation runs",
	Long: `Show recent validation runs recorded in .vizguard/state.db, newest first.

Examples:
  vizguard history
  vizguard history --page pricing --limit 5
  vizguard history --purge 720h`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHistory(cmd.Context(), ".")
	},
}

func runHistory(ctx context.Context, root string) error {
	db, err := state.OpenProject(root)
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer db.Close()

	if historyPurge > 0 {
		n, err := db.PurgeOldRuns(ctx, historyPurge)
		if err != nil {
			return err
		}
		printStatus("✓", fmt.Sprintf("Purged %d runs older than %s", n, historyPurge), color.FgGreen)
		return nil
	}

	runs, err := db.ListRuns(ctx, historyPage, historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	for _, r := range runs {
		c := color.New(color.FgYellow)
		if r.Status == string(models.StatusPassed) {
			c = color.New(color.FgGreen)
		}
		fmt.Printf("%s  %-20s %s  %.3f  %d scored, %d failed\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.PageName, c.Sprintf("%-17s", r.Status), r.OverallScore,
			r.ScoredViewports, r.FailedViewports)
		fmt.Printf("    %s\n", r.MarkdownPath)
	}
	return nil
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum runs to show (0 for all)")
	historyCmd.Flags().StringVar(&historyPage, "page", "", "Only show runs for this page")
	historyCmd.Flags().DurationVar(&historyPurge, "purge", 0, "Delete runs older than this age instead of listing")
}
