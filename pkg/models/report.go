package models

import "time"

// DefaultThreshold is the overall score a run must reach to pass.
const DefaultThreshold = 0.85

// HighPriorityBelow is the score under which a recommendation is high priority.
const HighPriorityBelow = 0.7

// ReportStatus classifies the outcome of a validation run.
type ReportStatus string

const (
	// StatusPassed indicates the overall score met the threshold.
	StatusPassed ReportStatus = "PASSED"
	// StatusNeedsImprovement indicates the overall score fell short.
	StatusNeedsImprovement ReportStatus = "NEEDS_IMPROVEMENT"
	// StatusIncomplete indicates the run hit its global timeout or was cancelled.
	StatusIncomplete ReportStatus = "INCOMPLETE"
)

// Valid returns true if the status is a known value.
func (s ReportStatus) Valid() bool {
	switch s {
	case StatusPassed, StatusNeedsImprovement, StatusIncomplete:
		return true
	default:
		return false
	}
}

// Outcome is what happened to a single viewport during a run.
type Outcome string

const (
	// OutcomeCaptured means the viewport was captured (and compared if possible).
	OutcomeCaptured Outcome = "CAPTURED"
	// OutcomeFailedCapture means capture or storage failed for the viewport.
	OutcomeFailedCapture Outcome = "FAILED_CAPTURE"
	// OutcomeFailedComparison means the capture exists but could not be
	// scored, for example because its file was evicted before comparison.
	OutcomeFailedComparison Outcome = "FAILED_COMPARISON"
	// OutcomeCancelled means the global timeout expired before the viewport finished.
	OutcomeCancelled Outcome = "CANCELLED"
)

// Warning is an informational comparison condition.
type Warning string

const (
	WarningReferenceMissing    Warning = "REFERENCE_MISSING"
	WarningReferenceUnreadable Warning = "REFERENCE_UNREADABLE"
	WarningDimensionMismatch   Warning = "DIMENSION_MISMATCH"
)

// Rect is an axis-aligned pixel region. An empty Rect has zero area.
type Rect struct {
	MinX int `json:"min_x"`
	MinY int `json:"min_y"`
	MaxX int `json:"max_x"`
	MaxY int `json:"max_y"`
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.MaxX <= r.MinX || r.MaxY <= r.MinY
}

// Area returns the number of pixels covered.
func (r Rect) Area() int {
	if r.Empty() {
		return 0
	}
	return (r.MaxX - r.MinX) * (r.MaxY - r.MinY)
}

// DiffStats summarizes where and how much a capture differs from its reference.
type DiffStats struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	DiffPixels int     `json:"diff_pixels"`
	DiffRatio  float64 `json:"diff_ratio"`
	MeanDelta  float64 `json:"mean_delta"`
	Bounds     Rect    `json:"bounds"`
}

// ComparisonResult is the per-viewport entry of a report. It is produced
// once and never mutated.
type ComparisonResult struct {
	// ScreenshotID references the stored capture; empty when capture failed.
	ScreenshotID string `json:"screenshot_id,omitempty"`
	// Viewport is the viewport this entry describes.
	Viewport ViewportSpec `json:"viewport"`
	// Outcome records whether the viewport was captured.
	Outcome Outcome `json:"outcome"`
	// ScreenshotPath is the stored capture file.
	ScreenshotPath string `json:"screenshot_path,omitempty"`
	// ReferencePath is the reference image compared against.
	ReferencePath string `json:"reference_path,omitempty"`
	// SimilarityScore is in [0,1]; nil when no comparison was possible.
	SimilarityScore *float64 `json:"similarity_score"`
	// DiffImagePath is the generated diff artifact; nil when none.
	DiffImagePath *string `json:"diff_image_path"`
	// Warnings lists informational comparison conditions.
	Warnings []Warning `json:"warnings"`
	// Stats holds diff statistics when a score was computed.
	Stats *DiffStats `json:"stats,omitempty"`
	// Error describes why capture or comparison failed.
	Error string `json:"error,omitempty"`
}

// HasWarning reports whether w was recorded.
func (r ComparisonResult) HasWarning(w Warning) bool {
	for _, got := range r.Warnings {
		if got == w {
			return true
		}
	}
	return false
}

// Scored reports whether a similarity score was computed.
func (r ComparisonResult) Scored() bool {
	return r.SimilarityScore != nil
}

// Priority ranks recommendations and triggers.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Recommendation is a human-readable corrective suggestion.
type Recommendation struct {
	Viewport string   `json:"viewport"`
	Priority Priority `json:"priority"`
	Category string   `json:"category"`
	Message  string   `json:"message"`
	Score    *float64 `json:"score,omitempty"`
}

// RunMetadata carries optional task/sprint context resolved for the page.
type RunMetadata struct {
	Task   string `json:"task,omitempty" yaml:"task"`
	Sprint string `json:"sprint,omitempty" yaml:"sprint"`
}

// ValidationReport is the immutable record of one validation run.
type ValidationReport struct {
	ValidationID       string             `json:"validation_id"`
	TargetURL          string             `json:"target_url"`
	PageName           string             `json:"page_name"`
	ReferencePath      string             `json:"reference_path,omitempty"`
	Timestamp          time.Time          `json:"timestamp"`
	Threshold          float64            `json:"threshold"`
	PerViewportResults []ComparisonResult `json:"per_viewport_results"`
	OverallScore       float64            `json:"overall_score"`
	ScoredViewports    int                `json:"scored_viewports"`
	Status             ReportStatus       `json:"status"`
	Recommendations    []Recommendation   `json:"recommendations"`
	Metadata           RunMetadata        `json:"metadata"`
	Duration           time.Duration      `json:"duration_ns"`
}

// CountOutcome returns how many viewports ended with outcome o.
func (r *ValidationReport) CountOutcome(o Outcome) int {
	n := 0
	for _, res := range r.PerViewportResults {
		if res.Outcome == o {
			n++
		}
	}
	return n
}
