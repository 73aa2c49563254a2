package orchestrator

import (
	"testing"

	"github.com/ShayCichocki/vizguard/pkg/models"
)

func TestEvaluateTriggers(t *testing.T) {
	score := func(v float64) *float64 { return &v }
	vp := models.ViewportSpec{Name: "desktop", Width: 1, Height: 1}

	tests := []struct {
		name   string
		report models.ValidationReport
		want   []models.TriggerType
	}{
		{
			name: "passed",
			report: models.ValidationReport{
				Status:             models.StatusPassed,
				PerViewportResults: []models.ComparisonResult{{Viewport: vp, Outcome: models.OutcomeCaptured, SimilarityScore: score(0.95)}},
			},
			want: nil,
		},
		{
			name: "failed capture",
			report: models.ValidationReport{
				Status:             models.StatusPassed,
				PerViewportResults: []models.ComparisonResult{{Viewport: vp, Outcome: models.OutcomeFailedCapture}},
			},
			want: []models.TriggerType{models.TriggerRecapture},
		},
		{
			name: "failed comparison",
			report: models.ValidationReport{
				Status:             models.StatusNeedsImprovement,
				PerViewportResults: []models.ComparisonResult{{Viewport: vp, Outcome: models.OutcomeFailedComparison}},
			},
			want: []models.TriggerType{models.TriggerRecapture, models.TriggerVisualReview},
		},
		{
			name: "incomplete",
			report: models.ValidationReport{
				Status:             models.StatusIncomplete,
				PerViewportResults: []models.ComparisonResult{{Viewport: vp, Outcome: models.OutcomeCancelled}},
			},
			want: []models.TriggerType{models.TriggerRerunValidation},
		},
		{
			name: "needs improvement with high recommendation",
			report: models.ValidationReport{
				Status:             models.StatusNeedsImprovement,
				PerViewportResults: []models.ComparisonResult{{Viewport: vp, Outcome: models.OutcomeCaptured, SimilarityScore: score(0.5)}},
				Recommendations:    []models.Recommendation{{Viewport: "desktop", Priority: models.PriorityHigh}},
			},
			want: []models.TriggerType{models.TriggerDesignFix, models.TriggerVisualReview},
		},
		{
			name: "missing reference",
			report: models.ValidationReport{
				Status: models.StatusNeedsImprovement,
				PerViewportResults: []models.ComparisonResult{{
					Viewport: vp, Outcome: models.OutcomeCaptured,
					Warnings: []models.Warning{models.WarningReferenceMissing},
				}},
			},
			want: []models.TriggerType{models.TriggerVisualReview, models.TriggerProvideReference},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateTriggers(&tt.report)
			if got == nil {
				t.Fatal("EvaluateTriggers returned nil; want empty slice")
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d triggers %+v, want %v", len(got), got, tt.want)
			}
			for i, tr := range got {
				if tr.Type != tt.want[i] {
					t.Errorf("trigger[%d] = %s, want %s", i, tr.Type, tt.want[i])
				}
				if tr.Description == "" {
					t.Errorf("trigger[%d] has no description", i)
				}
			}
		})
	}
}

func TestEvaluateTriggers_PriorityAndEffort(t *testing.T) {
	r := &models.ValidationReport{
		Status: models.StatusIncomplete,
		PerViewportResults: []models.ComparisonResult{
			{Outcome: models.OutcomeFailedCapture},
			{Outcome: models.OutcomeCancelled},
		},
		Recommendations: []models.Recommendation{{Priority: models.PriorityHigh}},
	}
	want := map[models.TriggerType]struct {
		p models.Priority
		e models.Effort
	}{
		models.TriggerRecapture:       {models.PriorityHigh, models.EffortSmall},
		models.TriggerRerunValidation: {models.PriorityMedium, models.EffortSmall},
		models.TriggerDesignFix:       {models.PriorityHigh, models.EffortLarge},
	}
	got := EvaluateTriggers(r)
	if len(got) != len(want) {
		t.Fatalf("got %+v", got)
	}
	for _, tr := range got {
		w := want[tr.Type]
		if tr.Priority != w.p || tr.EstimatedEffort != w.e {
			t.Errorf("%s: priority=%s effort=%s, want %s/%s", tr.Type, tr.Priority, tr.EstimatedEffort, w.p, w.e)
		}
	}
}
