package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "vizguard",
	Short: "Visual regression validation for web pages",
	Long: `vizguard captures a page at several viewports, compares each capture
against a reference design and writes a scored report.

Core capabilities:
- Headless Chrome captures at desktop, tablet and mobile sizes
- Pixel comparison with diff images and a similarity score
- JSON, Markdown and HTML reports that are never overwritten
- Automation triggers for downstream workflows`,
	SilenceUsage: true,
}

// exitError carries a specific process exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		code := 1
		var ee *exitError
		if errors.As(err, &ee) {
			code = ee.code
		}
		stop()
		os.Exit(code)
	}
}

func init() {
	rootCmd.SetErrPrefix(fmt.Sprintf("%s:", rootCmd.Use))

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(tempScreenshotsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(versionCmd)
}
