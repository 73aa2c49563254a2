package orchestrator

import (
	"fmt"

	"github.com/ShayCichocki/vizguard/pkg/models"
)

// EvaluateTriggers derives the corrective workflows a report calls for.
// Each rule fires at most once, in a fixed order.
func EvaluateTriggers(r *models.ValidationReport) []models.AutomationTrigger {
	triggers := []models.AutomationTrigger{}

	failed := r.CountOutcome(models.OutcomeFailedCapture) + r.CountOutcome(models.OutcomeFailedComparison)
	cancelled := r.CountOutcome(models.OutcomeCancelled)

	if failed > 0 {
		triggers = append(triggers, models.AutomationTrigger{
			Type:            models.TriggerRecapture,
			Description:     fmt.Sprintf("%d viewport(s) failed to capture or score; check that %s is reachable and retry", failed, r.TargetURL),
			Priority:        models.PriorityHigh,
			EstimatedEffort: models.EffortSmall,
		})
	}

	if cancelled > 0 || r.Status == models.StatusIncomplete {
		triggers = append(triggers, models.AutomationTrigger{
			Type:            models.TriggerRerunValidation,
			Description:     fmt.Sprintf("validation was cut short with %d viewport(s) unfinished; rerun with a longer timeout", cancelled),
			Priority:        models.PriorityMedium,
			EstimatedEffort: models.EffortSmall,
		})
	}

	var high []string
	for _, rec := range r.Recommendations {
		if rec.Priority == models.PriorityHigh {
			high = append(high, rec.Viewport)
		}
	}
	if len(high) > 0 {
		triggers = append(triggers, models.AutomationTrigger{
			Type:            models.TriggerDesignFix,
			Description:     fmt.Sprintf("significant visual deviations on %v; align the implementation with the design", high),
			Priority:        models.PriorityHigh,
			EstimatedEffort: models.EffortLarge,
		})
	}

	if r.Status == models.StatusNeedsImprovement {
		triggers = append(triggers, models.AutomationTrigger{
			Type:            models.TriggerVisualReview,
			Description:     fmt.Sprintf("overall score %.2f is below the %.2f threshold; review the diff images", r.OverallScore, r.Threshold),
			Priority:        models.PriorityMedium,
			EstimatedEffort: models.EffortMedium,
		})
	}

	missing := 0
	for _, res := range r.PerViewportResults {
		if res.HasWarning(models.WarningReferenceMissing) {
			missing++
		}
	}
	if missing > 0 {
		triggers = append(triggers, models.AutomationTrigger{
			Type:            models.TriggerProvideReference,
			Description:     fmt.Sprintf("%d viewport(s) have no reference design for page %q", missing, r.PageName),
			Priority:        models.PriorityLow,
			EstimatedEffort: models.EffortSmall,
		})
	}

	return triggers
}
