package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ShayCichocki/vizguard/internal/propagate"
	"github.com/ShayCichocki/vizguard/internal/report"
	"github.com/ShayCichocki/vizguard/internal/state"
	"github.com/ShayCichocki/vizguard/internal/validation"
	"github.com/ShayCichocki/vizguard/pkg/models"
)

// Validator runs one validation. *validation.Service implements it.
type Validator interface {
	ValidateVisually(ctx context.Context, req validation.Request) (*models.ValidationReport, error)
}

// ReportWriter persists a report. *report.Writer implements it.
type ReportWriter interface {
	Write(r *models.ValidationReport) (report.Paths, error)
}

// RunRecorder stores run history. *state.DB implements it.
type RunRecorder interface {
	RecordRun(ctx context.Context, r *state.Run) error
}

// Config wires an Orchestrator.
type Config struct {
	Validator Validator
	Writer    ReportWriter
	// History is optional; recording is best-effort.
	History RunRecorder
	// Propagator receives triggers when Options.AutoPropagate is set.
	Propagator propagate.Propagator
	// Emitter is optional.
	Emitter *EventEmitter
	Logger  *slog.Logger
	Now     func() time.Time
}

// Result is a completed run.
type Result struct {
	Report     *models.ValidationReport
	Paths      report.Paths
	Triggers   []models.AutomationTrigger
	Propagated bool
	Trace      []StageRecord
}

// Orchestrator drives the four-stage pipeline. A single Orchestrator runs
// one pipeline at a time.
type Orchestrator struct {
	cfg     Config
	running atomic.Bool
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Orchestrator{cfg: cfg}
}

const propagateTimeout = 30 * time.Second

// ErrAlreadyRunning is returned by Run while another run is in progress.
var ErrAlreadyRunning = errors.New("orchestrator is already running")

// run carries the state threaded through the stages.
type run struct {
	opts     Options
	page     string
	design   string
	metadata models.RunMetadata
	report   *models.ValidationReport
	paths    report.Paths
	triggers []models.AutomationTrigger
	sent     bool
	trace    []StageRecord
}

// Run executes the pipeline for opts.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Result, error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer o.running.Store(false)

	r := &run{opts: opts}
	steps := []struct {
		stage Stage
		fn    func(context.Context, *run) (string, error)
	}{
		{StageContextResolution, o.resolveContext},
		{StageValidationDelegation, o.delegate},
		{StageReportGeneration, o.writeReport},
		{StageAutomationPropagation, o.propagate},
	}

	for i, step := range steps {
		o.cfg.Emitter.Emit(OrchestratorEvent{Type: EventStageStarted, Stage: step.stage})
		start := o.cfg.Now()
		detail, err := step.fn(ctx, r)
		elapsed := o.cfg.Now().Sub(start)

		if err != nil {
			r.trace = append(r.trace, StageRecord{Stage: step.stage, Status: StageFailed, Duration: elapsed, Detail: err.Error()})
			for _, rest := range steps[i+1:] {
				r.trace = append(r.trace, StageRecord{Stage: rest.stage, Status: StageSkipped})
			}
			o.cfg.Logger.Error("stage failed", "stage", step.stage, "error", err)
			o.cfg.Emitter.Emit(OrchestratorEvent{Type: EventStageFailed, Stage: step.stage, Error: err, Duration: elapsed})
			o.cfg.Emitter.Emit(OrchestratorEvent{Type: EventRunDone, Error: err})
			return nil, &OrchestrationError{
				Stage:             step.stage,
				Cause:             err,
				Trace:             r.trace,
				PartialReportPath: r.paths.Primary(),
			}
		}

		r.trace = append(r.trace, StageRecord{Stage: step.stage, Status: StageOK, Duration: elapsed, Detail: detail})
		o.cfg.Logger.Info("stage completed", "stage", step.stage, "duration", elapsed, "detail", detail)
		o.cfg.Emitter.Emit(OrchestratorEvent{Type: EventStageCompleted, Stage: step.stage, Message: detail, Duration: elapsed})
	}

	o.cfg.Emitter.Emit(OrchestratorEvent{Type: EventRunDone, Message: string(r.report.Status)})
	return &Result{
		Report:     r.report,
		Paths:      r.paths,
		Triggers:   r.triggers,
		Propagated: r.sent,
		Trace:      r.trace,
	}, nil
}

func (o *Orchestrator) resolveContext(_ context.Context, r *run) (string, error) {
	if r.opts.TargetURL == "" {
		return "", fmt.Errorf("target URL is required")
	}

	r.page = r.opts.PageName
	if r.page == "" {
		page, err := PageName(r.opts.TargetURL)
		if err != nil {
			return "", err
		}
		r.page = page
	}

	chain := ResolverChain{
		ExplicitResolver{Path: r.opts.DesignPath},
		ConventionResolver{Dirs: r.opts.DesignDirs},
	}
	if design, ok := chain.Resolve(r.page); ok {
		r.design = design
	}
	if r.opts.DesignPath != "" && r.design != r.opts.DesignPath {
		o.cfg.Logger.Warn("explicit design not found", "path", r.opts.DesignPath, "using", r.design)
	}

	if r.opts.TasksFile != "" {
		md, err := LoadTaskMetadata(r.opts.TasksFile, r.page)
		if err != nil {
			o.cfg.Logger.Warn("task metadata unavailable", "error", err)
		}
		r.metadata = md
	}

	design := r.design
	if design == "" {
		design = "none"
	}
	return fmt.Sprintf("page=%s design=%s", r.page, design), nil
}

func (o *Orchestrator) delegate(ctx context.Context, r *run) (string, error) {
	rep, err := o.cfg.Validator.ValidateVisually(ctx, validation.Request{
		TargetURL:           r.opts.TargetURL,
		ReferenceDesignPath: r.design,
		PageName:            r.page,
		Viewports:           r.opts.Viewports,
		Threshold:           r.opts.Threshold,
		Timeout:             r.opts.Timeout,
		Metadata:            r.metadata,
	})
	if err != nil {
		return "", err
	}
	r.report = rep
	return fmt.Sprintf("status=%s score=%.3f scored=%d/%d",
		rep.Status, rep.OverallScore, rep.ScoredViewports, len(rep.PerViewportResults)), nil
}

func (o *Orchestrator) writeReport(ctx context.Context, r *run) (string, error) {
	paths, err := o.cfg.Writer.Write(r.report)
	r.paths = paths
	if err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}

	if o.cfg.History != nil {
		rep := r.report
		failed := rep.CountOutcome(models.OutcomeFailedCapture) +
			rep.CountOutcome(models.OutcomeFailedComparison) +
			rep.CountOutcome(models.OutcomeCancelled)
		entry := &state.Run{
			ID:              r.report.ValidationID,
			PageName:        r.report.PageName,
			TargetURL:       r.report.TargetURL,
			Status:          string(r.report.Status),
			OverallScore:    r.report.OverallScore,
			ScoredViewports: r.report.ScoredViewports,
			FailedViewports: failed,
			JSONPath:        paths.JSON,
			MarkdownPath:    paths.Markdown,
			StartedAt:       r.report.Timestamp,
		}
		// A stopped run still gets its history row.
		if err := o.cfg.History.RecordRun(context.WithoutCancel(ctx), entry); err != nil {
			o.cfg.Logger.Warn("run history not recorded", "error", err)
		}
	}
	return paths.Primary(), nil
}

func (o *Orchestrator) propagate(ctx context.Context, r *run) (string, error) {
	r.triggers = EvaluateTriggers(r.report)

	if !r.opts.AutoPropagate {
		return fmt.Sprintf("%d trigger(s), propagation off", len(r.triggers)), nil
	}
	if len(r.triggers) == 0 {
		return "no triggers", nil
	}
	if o.cfg.Propagator == nil {
		return "", fmt.Errorf("auto-propagation requested but no propagator is configured")
	}

	// Triggers of a stopped run are still delivered, within a bound.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), propagateTimeout)
	defer cancel()

	payload := propagate.NewPayload(r.report, r.paths.Primary(), r.triggers, o.cfg.Now())
	if err := o.cfg.Propagator.Propagate(pctx, payload); err != nil {
		return "", fmt.Errorf("propagate triggers: %w", err)
	}
	r.sent = true
	return fmt.Sprintf("%d trigger(s) propagated", len(r.triggers)), nil
}
