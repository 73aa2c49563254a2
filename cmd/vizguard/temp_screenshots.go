package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/vizguard/internal/config"
	"github.com/ShayCichocki/vizguard/internal/orchestrator"
)

var tempScreenshotsForce bool

var tempScreenshotsCmd = &cobra.Command{
	Use:     "temp-screenshots",
	Aliases: []string{"shots"},
	Short:   "Manage the temporary screenshot store",
	Long: `Inspect and clean the bounded temporary screenshot store.

The store keeps at most store.max_files captures and evicts the oldest
ones after each save.

Examples:
  vizguard temp-screenshots list
  vizguard temp-screenshots info
  vizguard temp-screenshots cleanup
  vizguard temp-screenshots clear --force`,
}

var tempScreenshotsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored screenshots, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		db, store, err := openStore(cfg, orchestrator.NopLogger().Logger)
		if err != nil {
			return err
		}
		defer db.Close()

		shots, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(shots) == 0 {
			fmt.Println("No screenshots stored.")
			return nil
		}
		for _, s := range shots {
			fmt.Printf("%s  %-10s %-10s %9s  %s\n",
				s.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				s.Viewport.Name, s.Viewport.Dimensions(), formatBytes(s.SizeBytes), s.FilePath)
		}
		return nil
	},
}

var tempScreenshotsInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show store usage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		db, store, err := openStore(cfg, orchestrator.NopLogger().Logger)
		if err != nil {
			return err
		}
		defer db.Close()

		info, err := store.StorageInfo(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Directory:     %s\n", store.Dir())
		fmt.Printf("Files:         %d / %d (%.0f%%)\n", info.TotalFiles, info.MaxFiles, info.UsagePercentage)
		fmt.Printf("Total size:    %s\n", formatBytes(info.TotalSizeBytes))
		fmt.Printf("Average size:  %s\n", formatBytes(info.AverageFileSize))
		return nil
	},
}

var tempScreenshotsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every stored screenshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		db, store, err := openStore(cfg, orchestrator.NopLogger().Logger)
		if err != nil {
			return err
		}
		defer db.Close()

		if !tempScreenshotsForce {
			ok, err := confirm(os.Stdin, fmt.Sprintf("Delete all screenshots in %s?", store.Dir()))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Aborted.")
				return nil
			}
		}

		n, err := store.ClearAll(cmd.Context())
		if err != nil {
			return err
		}
		printStatus("✓", fmt.Sprintf("Removed %d screenshots", n), color.FgGreen)
		return nil
	},
}

var tempScreenshotsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Evict screenshots over the limit and drop orphaned entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		db, store, err := openStore(cfg, orchestrator.NopLogger().Logger)
		if err != nil {
			return err
		}
		defer db.Close()

		repaired, err := store.Reconcile(cmd.Context())
		if err != nil {
			return err
		}
		if repaired > 0 {
			printStatus("✓", fmt.Sprintf("Dropped %d orphaned entries", repaired), color.FgGreen)
		}

		n, err := store.CleanupIfOverLimit(cmd.Context())
		if err != nil {
			return err
		}
		if n == 0 {
			printStatus("✓", "Store is within its limit", color.FgGreen)
			return nil
		}
		printStatus("✓", fmt.Sprintf("Evicted %d screenshots", n), color.FgGreen)
		return nil
	},
}

func init() {
	tempScreenshotsClearCmd.Flags().BoolVarP(&tempScreenshotsForce, "force", "f", false, "Skip confirmation prompt")

	tempScreenshotsCmd.AddCommand(tempScreenshotsListCmd)
	tempScreenshotsCmd.AddCommand(tempScreenshotsInfoCmd)
	tempScreenshotsCmd.AddCommand(tempScreenshotsClearCmd)
	tempScreenshotsCmd.AddCommand(tempScreenshotsCleanupCmd)
}
