package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/vizguard/internal/api"
	"github.com/ShayCichocki/vizguard/internal/capture"
	"github.com/ShayCichocki/vizguard/internal/config"
	"github.com/ShayCichocki/vizguard/internal/orchestrator"
	"github.com/ShayCichocki/vizguard/internal/report"
	"github.com/ShayCichocki/vizguard/internal/signals"
	"github.com/ShayCichocki/vizguard/pkg/models"
)

var (
	validateURL              string
	validateDesign           string
	validatePage             string
	validateViewports        string
	validateThreshold        float64
	validateTimeoutMS        int
	validateAuto             bool
	validateChat             bool
	validateTUI              bool
	validateFailOnRegression bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Capture a page and compare it against its reference design",
	Long: `Capture the target URL at every configured viewport, compare each
capture against the reference design and write JSON and Markdown reports.

The reference design is taken from --design when it exists, otherwise it
is looked up by page name in the configured design directories.

Examples:
  vizguard validate --url http://localhost:3000/pricing
  vizguard validate --url http://localhost:3000/ --design designs/home.png
  vizguard validate --url http://localhost:3000/ --viewports desktop,mobile
  vizguard validate --url http://localhost:3000/ --threshold 0.9 --auto
  vizguard validate --url http://localhost:3000/ --tui`,
	RunE: runValidate,
}

func init() {
	f := validateCmd.Flags()
	f.StringVar(&validateURL, "url", "", "Absolute URL of the page to validate (required)")
	f.StringVar(&validateDesign, "design", "", "Reference design image or directory")
	f.StringVar(&validatePage, "page", "", "Page name override (default: derived from the URL)")
	f.StringVar(&validateViewports, "viewports", "", "Comma-separated viewports: desktop, tablet, mobile or name:WxH")
	f.Float64Var(&validateThreshold, "threshold", models.DefaultThreshold, "Passing overall score in (0,1]")
	f.IntVar(&validateTimeoutMS, "timeout", 0, "Whole-run timeout in milliseconds (0 uses config)")
	f.BoolVar(&validateAuto, "auto", false, "Propagate automation triggers after the report is written")
	f.BoolVar(&validateChat, "chat", false, "Print a compact chat summary")
	f.BoolVar(&validateTUI, "tui", false, "Show live progress in an interactive view")
	f.BoolVar(&validateFailOnRegression, "fail-on-regression", false, "Exit with code 2 unless the status is PASSED")
	_ = validateCmd.MarkFlagRequired("url")
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	flags := orchestrator.Flags{
		URL:       validateURL,
		Design:    validateDesign,
		Page:      validatePage,
		Viewports: validateViewports,
	}
	if cmd.Flags().Changed("threshold") {
		flags.Threshold = &validateThreshold
	}
	if cmd.Flags().Changed("timeout") {
		flags.TimeoutMS = &validateTimeoutMS
	}
	if cmd.Flags().Changed("auto") {
		flags.Auto = &validateAuto
	}

	opts, err := orchestrator.ResolveOptions(cfg, flags)
	if err != nil {
		return err
	}

	runLog, err := orchestrator.NewRunLogger(cfg.Log.File, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not open log file: %v\n", err)
		runLog = orchestrator.NopLogger()
	}
	defer runLog.Close()
	log := runLog.Logger

	ctx := cmd.Context()
	watcher, err := signals.NewWatcher(config.StateDir)
	if err != nil {
		log.Warn("stop signal watcher unavailable", "error", err)
	} else {
		defer watcher.Close()
		watcher.Clear()
		var cancel context.CancelFunc
		ctx, cancel = watcher.Watch(ctx)
		defer cancel()
	}

	a, err := newApp(ctx, cfg, log, opts.AutoPropagate)
	if err != nil {
		return err
	}
	defer a.Close()

	emitter := orchestrator.NewEventEmitter(64, log)
	orch := orchestrator.New(orchestrator.Config{
		Validator:  a.validator,
		Writer:     a.writer,
		History:    a.db,
		Propagator: a.propagator,
		Emitter:    emitter,
		Logger:     log,
	})

	var result *orchestrator.Result
	if validateTUI {
		result, err = runWithTUI(ctx, orch, opts, a.jobs, emitter)
	} else {
		result, err = runPlain(ctx, orch, opts, a.jobs, emitter)
	}
	logRunStats(log, emitter, a.tracker)
	if err != nil {
		return reportFailure(ctx, err)
	}

	printResult(result)
	if validateChat {
		fmt.Println()
		fmt.Print(report.RenderChatSummary(result.Report, result.Paths))
	}
	if validateFailOnRegression && result.Report.Status != models.StatusPassed {
		return &exitError{code: 2, err: fmt.Errorf("validation status %s", result.Report.Status)}
	}
	return nil
}

// logRunStats records progress events lost to a slow subscriber and the
// analyzer's token usage.
func logRunStats(log *slog.Logger, emitter *orchestrator.EventEmitter, tracker *api.TokenTracker) {
	if n := emitter.DroppedCount(); n > 0 {
		log.Warn("progress events dropped", "count", n)
	}
	if tracker != nil {
		in, out := tracker.Total()
		log.Info("analyzer usage", "calls", tracker.Calls(), "input_tokens", in, "output_tokens", out)
	}
}

// runPlain runs the pipeline printing progress lines to stdout.
func runPlain(ctx context.Context, orch *orchestrator.Orchestrator, opts orchestrator.Options,
	jobs chan capture.JobEvent, emitter *orchestrator.EventEmitter) (*orchestrator.Result, error) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for ev := range jobs {
			printJobEvent(ev)
		}
	}()
	go func() {
		defer wg.Done()
		for ev := range emitter.Events() {
			printStageEvent(ev)
		}
	}()

	result, err := orch.Run(ctx, opts)
	close(jobs)
	emitter.Close()
	wg.Wait()
	return result, err
}

func printJobEvent(ev capture.JobEvent) {
	name := fmt.Sprintf("%s (%s)", ev.Viewport.Name, ev.Viewport.Dimensions())
	switch ev.State {
	case capture.JobRunning:
		printStatus("→", "Capturing "+name, color.FgCyan)
	case capture.JobDone:
		printStatus("✓", "Captured "+name, color.FgGreen)
	case capture.JobFailed:
		msg := "Capture failed: " + name
		if ev.Err != nil {
			msg += ": " + ev.Err.Error()
		}
		printStatus("✗", msg, color.FgRed)
	}
}

func printStageEvent(ev orchestrator.OrchestratorEvent) {
	switch ev.Type {
	case orchestrator.EventStageFailed:
		msg := string(ev.Stage)
		if ev.Error != nil {
			msg += ": " + ev.Error.Error()
		}
		printStatus("✗", msg, color.FgRed)
	case orchestrator.EventStageCompleted:
		if ev.Message != "" {
			printStatus("•", fmt.Sprintf("%s: %s", ev.Stage, ev.Message), color.FgHiBlack)
		}
	}
}

// printResult prints the status line, per-viewport scores and report paths.
func printResult(r *orchestrator.Result) {
	rep := r.Report
	statusColor := color.FgYellow
	symbol := "!"
	if rep.Status == models.StatusPassed {
		statusColor, symbol = color.FgGreen, "✓"
	}

	fmt.Println()
	printStatus(symbol, fmt.Sprintf("%s: %s (score %.3f, threshold %.2f)",
		rep.PageName, rep.Status, rep.OverallScore, rep.Threshold), statusColor)
	for _, res := range rep.PerViewportResults {
		score := "n/a"
		if res.SimilarityScore != nil {
			score = fmt.Sprintf("%.3f", *res.SimilarityScore)
		}
		fmt.Printf("  %-10s %-10s %s\n", res.Viewport.Name, score, res.Outcome)
	}
	for _, rec := range rep.Recommendations {
		fmt.Printf("  [%s] %s\n", rec.Priority, rec.Message)
	}

	fmt.Println()
	fmt.Printf("Report:   %s\n", r.Paths.Markdown)
	fmt.Printf("JSON:     %s\n", r.Paths.JSON)
	if r.Paths.HTML != "" {
		fmt.Printf("HTML:     %s\n", r.Paths.HTML)
	}
	if r.Propagated {
		fmt.Printf("Triggers: %d propagated\n", len(r.Triggers))
	}
}

// reportFailure prints a failed run's trace and converts it into an exit error.
func reportFailure(ctx context.Context, err error) error {
	if errors.Is(context.Cause(ctx), signals.ErrStopRequested) {
		printStatus("■", "Stopped by vizguard stop", color.FgYellow)
	}

	var oe *orchestrator.OrchestrationError
	if errors.As(err, &oe) {
		fmt.Fprintln(os.Stderr)
		fmt.Fprint(os.Stderr, orchestrator.FormatTrace(oe.Trace))
		if oe.PartialReportPath != "" {
			fmt.Fprintf(os.Stderr, "Partial report: %s\n", oe.PartialReportPath)
		}
	}
	return &exitError{code: 1, err: err}
}
