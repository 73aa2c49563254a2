package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/vizguard/internal/analyze"
	"github.com/ShayCichocki/vizguard/internal/api"
	"github.com/ShayCichocki/vizguard/internal/artifact"
	"github.com/ShayCichocki/vizguard/internal/capture"
	"github.com/ShayCichocki/vizguard/internal/compare"
	"github.com/ShayCichocki/vizguard/internal/config"
	"github.com/ShayCichocki/vizguard/internal/propagate"
	"github.com/ShayCichocki/vizguard/internal/report"
	"github.com/ShayCichocki/vizguard/internal/state"
	"github.com/ShayCichocki/vizguard/internal/validation"
)

// openStore opens the state database and the temp screenshot store on top
// of it. The caller closes the database. Directory repair is left to
// temp-screenshots cleanup so concurrent runs keep their in-flight files.
func openStore(cfg *config.Config, log *slog.Logger) (*state.DB, *artifact.Store, error) {
	db, err := state.OpenProject(".")
	if err != nil {
		return nil, nil, fmt.Errorf("open state database: %w", err)
	}

	store, err := artifact.New(artifact.Config{
		Dir:      cfg.Store.Dir,
		MaxFiles: cfg.Store.MaxFiles,
		Index:    db,
		Logger:   log,
	})
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("open screenshot store: %w", err)
	}
	return db, store, nil
}

// app holds every collaborator of a validation run.
type app struct {
	db         *state.DB
	store      *artifact.Store
	browser    *capture.RodBrowser
	validator  *validation.Service
	writer     *report.Writer
	propagator propagate.Propagator
	// tracker counts analyzer tokens; nil for the heuristic analyzer.
	tracker *api.TokenTracker
	// jobs receives capture transitions for progress output.
	jobs chan capture.JobEvent
}

// newApp wires the validation stack from configuration.
func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger, withPropagator bool) (*app, error) {
	db, store, err := openStore(cfg, log)
	if err != nil {
		return nil, err
	}

	a := &app{
		db:    db,
		store: store,
		jobs:  make(chan capture.JobEvent, 100),
	}

	a.browser = capture.NewRodBrowser(capture.RodConfig{
		RemoteURL:   cfg.Capture.RemoteURL,
		BinPath:     cfg.Capture.BinPath,
		Stealth:     cfg.Capture.Stealth,
		SettleDelay: cfg.Capture.SettleDelay,
		Logger:      log,
	})
	pool := capture.NewPool(capture.NewService(a.browser, store, log), capture.PoolConfig{
		MaxConcurrency: cfg.Capture.MaxConcurrency,
		Events:         a.jobs,
		Logger:         log,
	})

	analyzer, tracker, err := newAnalyzer(cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.tracker = tracker

	a.validator = validation.NewService(validation.Config{
		Captures: pool,
		Comparer: compare.New(compare.Config{
			PixelThreshold: cfg.Compare.PixelThreshold,
			DiffDir:        cfg.Compare.DiffDir,
			Logger:         log,
		}),
		Analyzer: analyzer,
		Logger:   log,
	})
	a.writer = report.NewWriter(cfg.Reports.Dir, cfg.Reports.HTML)

	if withPropagator {
		a.propagator, err = propagate.New(propagate.Config{
			Kind:     cfg.Automation.Propagator,
			QueueDir: cfg.Automation.QueueDir,
			Brokers:  cfg.Automation.Brokers,
			Topic:    cfg.Automation.Topic,
			Logger:   log,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create propagator: %w", err)
		}
	}
	return a, nil
}

// newAnalyzer returns the configured recommendation analyzer and, for the
// Claude analyzer, the tracker its client reports usage to.
func newAnalyzer(cfg *config.Config, log *slog.Logger) (analyze.Analyzer, *api.TokenTracker, error) {
	if cfg.Analyzer.Type != "claude" {
		return analyze.Heuristic{}, nil, nil
	}

	clientCfg := api.ClientConfig{
		Model:          anthropic.Model(cfg.Analyzer.Model),
		UseAWSBedrock:  cfg.Analyzer.Bedrock,
		AWSRegion:      cfg.Analyzer.Region,
		AWSProfile:     cfg.Analyzer.Profile,
		RequestTimeout: 60 * time.Second,
	}
	if !cfg.Analyzer.Bedrock {
		key, err := config.GetAPIKey(cfg)
		if err != nil {
			return nil, nil, err
		}
		clientCfg.APIKey = key
	}

	client, err := api.NewClient(clientCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create API client: %w", err)
	}
	return analyze.NewClaude(api.NewRunner(client), analyze.Heuristic{}, log), client.Tracker(), nil
}

// Close releases the browser, the propagator and the database.
func (a *app) Close() error {
	var firstErr error
	if a.browser != nil {
		if err := a.browser.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.propagator != nil {
		if err := a.propagator.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
