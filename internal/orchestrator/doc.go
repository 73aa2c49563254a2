// Package orchestrator runs a visual validation end to end.
//
// A run moves through four stages in order and never loops back:
//   - CONTEXT_RESOLUTION: page identity, reference design and task metadata
//   - VALIDATION_DELEGATION: capture and comparison via the validation service
//   - REPORT_GENERATION: JSON, Markdown and HTML reports plus run history
//   - AUTOMATION_PROPAGATION: trigger evaluation and optional hand-off
//
// A stage failure aborts the remaining stages and is reported as an
// *OrchestrationError carrying the stage trace.
//
// Example usage:
//
//	orch := orchestrator.New(orchestrator.Config{Validator: svc, Writer: w})
//	res, err := orch.Run(ctx, opts)
package orchestrator
