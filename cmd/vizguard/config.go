package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/vizguard/internal/config"
)

var configProject bool

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify vizguard configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.
List values such as capture.viewports are comma-separated.

Configuration is stored at ~/.config/vizguard/config.yaml
Project-specific overrides can be placed in .vizguard.yaml (use --project)`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		switch len(args) {
		case 0:
			return displayAllConfig(cfg)
		case 1:
			value, err := cfg.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Println(value)
			return nil
		default:
			return setConfigKey(args[0], args[1])
		}
	},
}

func init() {
	configCmd.Flags().BoolVar(&configProject, "project", false, "Write to the project .vizguard.yaml instead of the user config")
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) error {
	for _, key := range config.Keys() {
		value, err := cfg.Get(key)
		if err != nil {
			return err
		}
		if value == "" {
			value = "(not set)"
		}
		fmt.Printf("%s: %s\n", key, value)
	}
	if p := config.GetProjectConfigPath(); p != "" {
		fmt.Printf("\nProject overrides: %s\n", p)
	}
	return nil
}

// setConfigKey sets a value in the user or project file and saves it.
// Only the target file is read so merged values from elsewhere are not
// copied into it.
func setConfigKey(key, value string) error {
	path := config.GetUserConfigPath()
	if configProject {
		path = config.GetProjectConfigPath()
		if path == "" {
			path = config.ProjectConfigName
		}
	}

	cfg := config.Default()
	if _, err := os.Stat(path); err == nil {
		loaded, err := config.LoadFromPath(path)
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		cfg = loaded
	}

	// Keep a key that only came from the environment out of the file.
	if env := os.Getenv("ANTHROPIC_API_KEY"); env != "" && key != "anthropic.api_key" && cfg.Anthropic.APIKey == env {
		cfg.Anthropic.APIKey = ""
	}

	if err := cfg.Set(key, value); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := config.SaveTo(cfg, path); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	shown, _ := cfg.Get(key)
	fmt.Printf("Set %s = %s (%s)\n", key, shown, filepath.Clean(path))
	return nil
}
