package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/vizguard/internal/config"
	"github.com/ShayCichocki/vizguard/internal/signals"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Ask a running validation in this project to stop",
	Long: `Write the kill signal file watched by a running "vizguard validate".

The run cancels its captures, records finished viewports and exits.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := signals.SendKill(config.StateDir); err != nil {
			return fmt.Errorf("send stop signal: %w", err)
		}
		printStatus("✓", "Stop signal sent", color.FgGreen)
		return nil
	},
}
