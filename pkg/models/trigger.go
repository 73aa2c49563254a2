package models

// TriggerType names a downstream corrective workflow.
type TriggerType string

const (
	TriggerRecapture        TriggerType = "recapture"
	TriggerRerunValidation  TriggerType = "rerun_validation"
	TriggerDesignFix        TriggerType = "design_fix"
	TriggerVisualReview     TriggerType = "visual_review"
	TriggerProvideReference TriggerType = "provide_reference"
)

// Effort is a coarse size estimate for the work a trigger asks for.
type Effort string

const (
	EffortSmall  Effort = "small"
	EffortMedium Effort = "medium"
	EffortLarge  Effort = "large"
)

// AutomationTrigger is derived from a report and never persisted on its own.
type AutomationTrigger struct {
	Type            TriggerType `json:"type"`
	Description     string      `json:"description"`
	Priority        Priority    `json:"priority"`
	EstimatedEffort Effort      `json:"estimated_effort"`
}
