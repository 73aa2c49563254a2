package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/vizguard/internal/config"
	"github.com/ShayCichocki/vizguard/internal/state"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a vizguard project",
	Long: `Initialize a directory for use with vizguard.

This command:
  - Creates the .vizguard directory structure
  - Creates the state database
  - Writes a .vizguard.yaml template and an example tasks file
  - Adds vizguard's generated files to .gitignore

The directory argument is optional and defaults to the current directory.

Examples:
  vizguard init              # Initialize current directory
  vizguard init ./site       # Initialize specific directory
  vizguard init --force      # Rewrite templates even if already set up`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Reinitialize even if already set up")
}

// stateSubdirs are created under .vizguard.
var stateSubdirs = []string{"temp-screenshots", "reports", "diffs", "designs", "logs", "queue", "signals"}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}

	fmt.Printf("Initializing vizguard in %s...\n\n", absPath)

	stateDir := filepath.Join(absPath, config.StateDir)
	if _, err := os.Stat(stateDir); err == nil && !initForce {
		fmt.Printf("Directory already initialized. Use --force to reinitialize.\n")
		return nil
	}

	for _, sub := range stateSubdirs {
		if err := os.MkdirAll(filepath.Join(stateDir, sub), 0755); err != nil {
			return fmt.Errorf("creating %s/%s: %w", config.StateDir, sub, err)
		}
	}
	printStatus("✓", "Created .vizguard directory structure", color.FgGreen)

	db, err := state.OpenProject(absPath)
	if err != nil {
		printStatus("✗", "Could not create state database", color.FgRed)
		return err
	}
	db.Close()
	printStatus("✓", "Created state database", color.FgGreen)

	cfgPath := filepath.Join(absPath, config.ProjectConfigName)
	if wrote, err := writeIfMissing(cfgPath, projectConfigTemplate); err != nil {
		return fmt.Errorf("creating project config: %w", err)
	} else if wrote {
		printStatus("✓", "Created .vizguard.yaml template", color.FgGreen)
	}

	tasksPath := filepath.Join(stateDir, "tasks.yaml")
	if wrote, err := writeIfMissing(tasksPath, tasksTemplate); err != nil {
		return fmt.Errorf("creating tasks file: %w", err)
	} else if wrote {
		printStatus("✓", "Created .vizguard/tasks.yaml example", color.FgGreen)
	}

	if err := updateGitignore(absPath); err != nil {
		return fmt.Errorf("updating .gitignore: %w", err)
	}
	printStatus("✓", "Updated .gitignore with vizguard entries", color.FgGreen)

	fmt.Printf("\n%s vizguard initialization complete!\n\n", color.GreenString("✓"))
	fmt.Println("Next steps:")
	fmt.Println("  1. Put reference designs in designs/<page>.png or designs/<page>/<viewport>.png")
	fmt.Println("  2. Validate a page:")
	fmt.Println("     vizguard validate --url http://localhost:3000/")
	fmt.Println()
	return nil
}

// writeIfMissing writes content to path unless the file exists and
// --force was not given.
func writeIfMissing(path, content string) (bool, error) {
	if _, err := os.Stat(path); err == nil && !initForce {
		return false, nil
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return false, err
	}
	return true, nil
}

func updateGitignore(root string) error {
	gitignorePath := filepath.Join(root, ".gitignore")

	var existingContent string
	if data, err := os.ReadFile(gitignorePath); err == nil {
		existingContent = string(data)
	}

	entries := []string{
		".vizguard/state.db*",
		".vizguard/temp-screenshots/",
		".vizguard/diffs/",
		".vizguard/logs/",
		".vizguard/queue/",
		".vizguard/signals/",
	}

	var missing []string
	for _, entry := range entries {
		if !strings.Contains(existingContent, entry) {
			missing = append(missing, entry)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	var newContent strings.Builder
	newContent.WriteString(existingContent)
	if len(existingContent) > 0 && !strings.HasSuffix(existingContent, "\n") {
		newContent.WriteString("\n")
	}
	newContent.WriteString("\n# vizguard\n")
	for _, entry := range missing {
		newContent.WriteString(entry + "\n")
	}

	return os.WriteFile(gitignorePath, []byte(newContent.String()), 0644)
}

const projectConfigTemplate = `# vizguard project configuration.
# Values here override ~/.config/vizguard/config.yaml.

capture:
  viewports: [desktop, tablet, mobile]
  max_concurrency: 4
  timeout: 60s

validation:
  threshold: 0.85

designs:
  dirs: [designs, .vizguard/designs]

analyzer:
  type: heuristic

automation:
  auto_propagate: false
  propagator: log
`

const tasksTemplate = `# Optional task metadata attached to reports, keyed by page name.
sprint: ""
pages:
  home:
    task: ""
`
