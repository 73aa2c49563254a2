package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ShayCichocki/vizguard/internal/propagate"
	"github.com/ShayCichocki/vizguard/internal/report"
	"github.com/ShayCichocki/vizguard/internal/state"
	"github.com/ShayCichocki/vizguard/internal/validation"
	"github.com/ShayCichocki/vizguard/pkg/models"
)

type fakeValidator struct {
	got    validation.Request
	report *models.ValidationReport
	err    error
}

func (f *fakeValidator) ValidateVisually(_ context.Context, req validation.Request) (*models.ValidationReport, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	r := *f.report
	r.PageName = req.PageName
	r.TargetURL = req.TargetURL
	r.Metadata = req.Metadata
	return &r, nil
}

type fakeWriter struct {
	paths  report.Paths
	err    error
	writes int
}

func (f *fakeWriter) Write(*models.ValidationReport) (report.Paths, error) {
	f.writes++
	return f.paths, f.err
}

type fakeHistory struct {
	runs []*state.Run
	err  error
}

func (f *fakeHistory) RecordRun(_ context.Context, r *state.Run) error {
	f.runs = append(f.runs, r)
	return f.err
}

type fakePropagator struct {
	payloads []propagate.Payload
	err      error
}

func (f *fakePropagator) Propagate(_ context.Context, p propagate.Payload) error {
	f.payloads = append(f.payloads, p)
	return f.err
}

func (f *fakePropagator) Close() error { return nil }

func needsImprovement() *models.ValidationReport {
	low := 0.6
	return &models.ValidationReport{
		ValidationID: "run-1",
		Timestamp:    time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		Threshold:    0.85,
		PerViewportResults: []models.ComparisonResult{
			{Viewport: models.ViewportSpec{Name: "desktop", Width: 1920, Height: 1080}, Outcome: models.OutcomeCaptured, SimilarityScore: &low},
			{Viewport: models.ViewportSpec{Name: "mobile", Width: 375, Height: 667}, Outcome: models.OutcomeFailedCapture},
		},
		OverallScore:    0.6,
		ScoredViewports: 1,
		Status:          models.StatusNeedsImprovement,
		Recommendations: []models.Recommendation{
			{Viewport: "desktop", Priority: models.PriorityHigh, Category: "layout", Message: "desktop scored 0.60"},
		},
	}
}

func TestRun_AllStages(t *testing.T) {
	dir := t.TempDir()
	designs := filepath.Join(dir, "designs")
	if err := os.MkdirAll(designs, 0755); err != nil {
		t.Fatal(err)
	}
	design := filepath.Join(designs, "pricing.png")
	if err := os.WriteFile(design, []byte("png"), 0644); err != nil {
		t.Fatal(err)
	}
	tasks := filepath.Join(dir, "tasks.yaml")
	if err := os.WriteFile(tasks, []byte("sprint: s-9\npages:\n  pricing:\n    task: Pricing redesign\n"), 0644); err != nil {
		t.Fatal(err)
	}

	v := &fakeValidator{report: needsImprovement()}
	w := &fakeWriter{paths: report.Paths{JSON: "r.json", Markdown: "r.md"}}
	h := &fakeHistory{}
	p := &fakePropagator{}
	emitter := NewEventEmitter(32, nil)

	orch := New(Config{Validator: v, Writer: w, History: h, Propagator: p, Emitter: emitter, Logger: NopLogger().Logger})
	res, err := orch.Run(context.Background(), Options{
		TargetURL:     "http://localhost:3000/pricing",
		Threshold:     0.85,
		AutoPropagate: true,
		DesignDirs:    []string{designs},
		TasksFile:     tasks,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if v.got.PageName != "pricing" {
		t.Errorf("page = %q, want pricing", v.got.PageName)
	}
	if v.got.ReferenceDesignPath != design {
		t.Errorf("design = %q, want %q", v.got.ReferenceDesignPath, design)
	}
	if res.Report.Metadata.Task != "Pricing redesign" || res.Report.Metadata.Sprint != "s-9" {
		t.Errorf("metadata = %+v", res.Report.Metadata)
	}

	if len(res.Trace) != 4 {
		t.Fatalf("trace has %d entries, want 4", len(res.Trace))
	}
	for i, rec := range res.Trace {
		if rec.Stage != Stages[i] || rec.Status != StageOK {
			t.Errorf("trace[%d] = %+v", i, rec)
		}
	}

	if len(h.runs) != 1 || h.runs[0].MarkdownPath != "r.md" || h.runs[0].FailedViewports != 1 {
		t.Errorf("history = %+v", h.runs)
	}

	if !res.Propagated || len(p.payloads) != 1 {
		t.Fatalf("expected one propagated payload, got %d", len(p.payloads))
	}
	if p.payloads[0].ReportPath != "r.md" {
		t.Errorf("payload report path = %q", p.payloads[0].ReportPath)
	}
	types := map[models.TriggerType]bool{}
	for _, tr := range res.Triggers {
		types[tr.Type] = true
	}
	for _, want := range []models.TriggerType{models.TriggerRecapture, models.TriggerDesignFix, models.TriggerVisualReview} {
		if !types[want] {
			t.Errorf("missing trigger %s", want)
		}
	}

	emitter.Close()
	var completed int
	var done bool
	for ev := range emitter.Events() {
		switch ev.Type {
		case EventStageCompleted:
			completed++
		case EventRunDone:
			done = true
		}
	}
	if completed != 4 || !done {
		t.Errorf("events: completed=%d done=%v", completed, done)
	}
}

func TestRun_ValidationFailureAbortsLaterStages(t *testing.T) {
	cause := &validation.NoViewportCapturedError{TargetURL: "http://x/"}
	w := &fakeWriter{}
	orch := New(Config{Validator: &fakeValidator{err: cause}, Writer: w, Logger: NopLogger().Logger})

	_, err := orch.Run(context.Background(), Options{TargetURL: "http://x/"})

	var oe *OrchestrationError
	if !errors.As(err, &oe) {
		t.Fatalf("expected *OrchestrationError, got %v", err)
	}
	if oe.Stage != StageValidationDelegation {
		t.Errorf("stage = %s", oe.Stage)
	}
	if !errors.Is(err, validation.ErrNoViewportCaptured) {
		t.Error("cause not reachable through errors.Is")
	}
	if w.writes != 0 {
		t.Error("report written after validation failure")
	}
	want := []StageStatus{StageOK, StageFailed, StageSkipped, StageSkipped}
	for i, rec := range oe.Trace {
		if rec.Status != want[i] {
			t.Errorf("trace[%d].Status = %s, want %s", i, rec.Status, want[i])
		}
	}
	if oe.PartialReportPath != "" {
		t.Errorf("unexpected partial report %q", oe.PartialReportPath)
	}
}

func TestRun_PropagationFailureKeepsReportPath(t *testing.T) {
	orch := New(Config{
		Validator:  &fakeValidator{report: needsImprovement()},
		Writer:     &fakeWriter{paths: report.Paths{JSON: "r.json", Markdown: "r.md"}},
		Propagator: &fakePropagator{err: errors.New("broker down")},
		Logger:     NopLogger().Logger,
	})

	_, err := orch.Run(context.Background(), Options{TargetURL: "http://x/", AutoPropagate: true})

	var oe *OrchestrationError
	if !errors.As(err, &oe) {
		t.Fatalf("expected *OrchestrationError, got %v", err)
	}
	if oe.Stage != StageAutomationPropagation {
		t.Errorf("stage = %s", oe.Stage)
	}
	if oe.PartialReportPath != "r.md" {
		t.Errorf("partial report = %q, want r.md", oe.PartialReportPath)
	}
}

func TestRun_ReportWriteFailure(t *testing.T) {
	orch := New(Config{
		Validator: &fakeValidator{report: needsImprovement()},
		Writer:    &fakeWriter{paths: report.Paths{JSON: "r.json"}, err: errors.New("disk full")},
		Logger:    NopLogger().Logger,
	})

	_, err := orch.Run(context.Background(), Options{TargetURL: "http://x/"})

	var oe *OrchestrationError
	if !errors.As(err, &oe) || oe.Stage != StageReportGeneration {
		t.Fatalf("expected REPORT_GENERATION failure, got %v", err)
	}
	if oe.PartialReportPath != "r.json" {
		t.Errorf("partial report = %q", oe.PartialReportPath)
	}
}

func TestRun_NoPropagationWhenDisabled(t *testing.T) {
	p := &fakePropagator{}
	orch := New(Config{
		Validator:  &fakeValidator{report: needsImprovement()},
		Writer:     &fakeWriter{},
		History:    &fakeHistory{err: errors.New("locked")},
		Propagator: p,
		Logger:     NopLogger().Logger,
	})

	res, err := orch.Run(context.Background(), Options{TargetURL: "http://x/"})
	if err != nil {
		t.Fatalf("history failure must not fail the run: %v", err)
	}
	if res.Propagated || len(p.payloads) != 0 {
		t.Error("triggers propagated without auto mode")
	}
	if len(res.Triggers) == 0 {
		t.Error("triggers should still be evaluated")
	}
}

func TestRun_BadURLFailsContextResolution(t *testing.T) {
	orch := New(Config{Validator: &fakeValidator{}, Writer: &fakeWriter{}, Logger: NopLogger().Logger})
	_, err := orch.Run(context.Background(), Options{TargetURL: "not a url"})

	var oe *OrchestrationError
	if !errors.As(err, &oe) || oe.Stage != StageContextResolution {
		t.Fatalf("expected CONTEXT_RESOLUTION failure, got %v", err)
	}
}

func TestFormatTrace(t *testing.T) {
	out := FormatTrace([]StageRecord{
		{Stage: StageContextResolution, Status: StageOK, Duration: 3 * time.Millisecond, Detail: "page=home"},
		{Stage: StageValidationDelegation, Status: StageFailed},
	})
	if want := "CONTEXT_RESOLUTION"; !strings.Contains(out, want) {
		t.Errorf("trace missing %q:\n%s", want, out)
	}
	if !strings.Contains(out, "page=home") || !strings.Contains(out, "failed") {
		t.Errorf("unexpected trace:\n%s", out)
	}
}
