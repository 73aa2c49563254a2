package orchestrator

import (
	"fmt"
	"strings"
	"time"
)

// Stage is one step of the orchestration pipeline.
type Stage string

const (
	StageContextResolution     Stage = "CONTEXT_RESOLUTION"
	StageValidationDelegation  Stage = "VALIDATION_DELEGATION"
	StageReportGeneration      Stage = "REPORT_GENERATION"
	StageAutomationPropagation Stage = "AUTOMATION_PROPAGATION"
)

// Stages lists the pipeline in execution order.
var Stages = []Stage{
	StageContextResolution,
	StageValidationDelegation,
	StageReportGeneration,
	StageAutomationPropagation,
}

// StageStatus is the outcome of a stage in the trace.
type StageStatus string

const (
	StageOK      StageStatus = "ok"
	StageFailed  StageStatus = "failed"
	StageSkipped StageStatus = "skipped"
)

// StageRecord is one trace entry.
type StageRecord struct {
	Stage    Stage         `json:"stage"`
	Status   StageStatus   `json:"status"`
	Duration time.Duration `json:"duration_ns"`
	Detail   string        `json:"detail,omitempty"`
}

// OrchestrationError reports the stage a run failed in.
type OrchestrationError struct {
	Stage Stage
	Cause error
	// Trace holds every stage reached, ending with the failed one.
	Trace []StageRecord
	// PartialReportPath is set when a report file was written before the failure.
	PartialReportPath string
}

func (e *OrchestrationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Cause)
}

func (e *OrchestrationError) Unwrap() error {
	return e.Cause
}

// FormatTrace renders the stage trace one line per stage.
func FormatTrace(trace []StageRecord) string {
	var b strings.Builder
	for _, r := range trace {
		fmt.Fprintf(&b, "  %-24s %-8s %s", r.Stage, r.Status, r.Duration.Round(time.Millisecond))
		if r.Detail != "" {
			fmt.Fprintf(&b, "  %s", r.Detail)
		}
		b.WriteString("\n")
	}
	return b.String()
}
