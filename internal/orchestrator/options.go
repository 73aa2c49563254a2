package orchestrator

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/ShayCichocki/vizguard/internal/config"
	"github.com/ShayCichocki/vizguard/pkg/models"
)

// Options is the fully resolved input of one run.
type Options struct {
	TargetURL string
	// DesignPath is an explicit reference image or directory.
	DesignPath string
	// PageName overrides the URL-derived page identity.
	PageName  string
	Viewports []models.ViewportSpec
	Threshold float64
	// Timeout spans the whole validation. Zero means no timeout.
	Timeout       time.Duration
	AutoPropagate bool
	// DesignDirs are searched by convention when DesignPath is empty or missing.
	DesignDirs []string
	// TasksFile holds optional task/sprint metadata per page.
	TasksFile string
}

// Flags carries CLI flag values. Nil pointers mean the flag was not set.
type Flags struct {
	URL       string
	Design    string
	Page      string
	Viewports string
	Threshold *float64
	TimeoutMS *int
	Auto      *bool
}

// ResolveOptions merges config and flags into validated Options. Flags win.
func ResolveOptions(cfg *config.Config, f Flags) (Options, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if f.URL == "" {
		return Options{}, fmt.Errorf("--url is required")
	}
	if _, err := PageName(f.URL); err != nil {
		return Options{}, err
	}

	opts := Options{
		TargetURL:     f.URL,
		DesignPath:    f.Design,
		PageName:      f.Page,
		Threshold:     cfg.Validation.Threshold,
		Timeout:       cfg.Capture.Timeout,
		AutoPropagate: cfg.Automation.AutoPropagate,
		DesignDirs:    cfg.Designs.Dirs,
		TasksFile:     filepath.Join(config.StateDir, "tasks.yaml"),
	}

	var err error
	if f.Viewports != "" {
		opts.Viewports, err = models.ParseViewports(f.Viewports)
	} else {
		opts.Viewports, err = cfg.ViewportSpecs()
	}
	if err != nil {
		return Options{}, err
	}
	if len(opts.Viewports) > cfg.Store.MaxFiles {
		return Options{}, fmt.Errorf("%d viewports exceed store.max_files (%d); raise the limit or capture fewer viewports",
			len(opts.Viewports), cfg.Store.MaxFiles)
	}

	if f.Threshold != nil {
		opts.Threshold = *f.Threshold
	}
	if opts.Threshold <= 0 || opts.Threshold > 1 {
		return Options{}, fmt.Errorf("threshold must be within (0,1], got %v", opts.Threshold)
	}

	if f.TimeoutMS != nil {
		if *f.TimeoutMS < 0 {
			return Options{}, fmt.Errorf("timeout must not be negative, got %dms", *f.TimeoutMS)
		}
		opts.Timeout = time.Duration(*f.TimeoutMS) * time.Millisecond
	}

	if f.Auto != nil {
		opts.AutoPropagate = *f.Auto
	}
	return opts, nil
}
