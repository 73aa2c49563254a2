// Package validation runs one visual validation: capture every viewport,
// compare each capture against its reference, aggregate a score and build
// an immutable report.
package validation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/vizguard/internal/analyze"
	"github.com/ShayCichocki/vizguard/internal/capture"
	"github.com/ShayCichocki/vizguard/pkg/models"
)

// CaptureRunner captures a URL at several viewports. *capture.Pool
// implements it.
type CaptureRunner interface {
	Run(ctx context.Context, url string, viewports []models.ViewportSpec, timeout time.Duration) []capture.JobResult
}

// Comparer scores a screenshot against a reference. *compare.Engine
// implements it.
type Comparer interface {
	Compare(ctx context.Context, screenshotPath, referencePath string) (models.ComparisonResult, error)
}

// Request describes one validation run.
type Request struct {
	TargetURL string
	// ReferenceDesignPath is a reference image or a directory of them.
	ReferenceDesignPath string
	// PageName is used for per-page reference lookup in directories.
	PageName  string
	Viewports []models.ViewportSpec
	// Threshold is the passing overall score. Zero means models.DefaultThreshold.
	Threshold float64
	// Timeout bounds the whole run. Zero means no timeout.
	Timeout  time.Duration
	Metadata models.RunMetadata
}

// Config wires the service's collaborators.
type Config struct {
	Captures CaptureRunner
	Comparer Comparer
	// Analyzer labels recommendations. Default: analyze.Heuristic.
	Analyzer analyze.Analyzer
	Logger   *slog.Logger
	Now      func() time.Time
}

// Service validates pages. It keeps no state between runs.
type Service struct {
	cfg Config
}

// NewService creates a Service.
func NewService(cfg Config) *Service {
	if cfg.Analyzer == nil {
		cfg.Analyzer = analyze.Heuristic{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{cfg: cfg}
}

// ValidateVisually captures and compares req.TargetURL at every viewport.
//
// Viewports that fail to capture are recorded and skipped. If none is
// captured the result is a *NoViewportCapturedError and no report. When the
// timeout expires, finished viewports are kept, the rest are recorded as
// CANCELLED and the report status is INCOMPLETE.
func (s *Service) ValidateVisually(ctx context.Context, req Request) (*models.ValidationReport, error) {
	if err := normalize(&req); err != nil {
		return nil, err
	}

	start := s.cfg.Now()
	log := s.cfg.Logger.With("url", req.TargetURL, "page", req.PageName)

	runCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	log.Info("validation: capturing", "viewports", len(req.Viewports), "timeout", req.Timeout)
	jobs := s.cfg.Captures.Run(runCtx, req.TargetURL, req.Viewports, 0)

	results := make([]models.ComparisonResult, len(jobs))
	var failures []ViewportFailure
	captured := 0
	for i, job := range jobs {
		results[i] = s.resultFor(runCtx, req, job)
		if job.State == capture.JobDone {
			captured++
		} else {
			failures = append(failures, ViewportFailure{Viewport: job.Viewport.Name, Err: job.Err})
		}
	}

	if captured == 0 {
		log.Error("validation: no viewport captured", "failures", len(failures))
		return nil, &NoViewportCapturedError{TargetURL: req.TargetURL, Failures: failures}
	}

	report := &models.ValidationReport{
		ValidationID:       uuid.New().String(),
		TargetURL:          req.TargetURL,
		PageName:           req.PageName,
		ReferencePath:      req.ReferenceDesignPath,
		Timestamp:          start.UTC(),
		Threshold:          req.Threshold,
		PerViewportResults: results,
		Metadata:           req.Metadata,
	}
	report.OverallScore, report.ScoredViewports = aggregate(results)
	report.Status = classify(report.OverallScore, report.ScoredViewports, req.Threshold, results)
	report.Recommendations = s.recommend(runCtx, results, req.Threshold)
	report.Duration = s.cfg.Now().Sub(start)

	log.Info("validation: finished",
		"status", report.Status, "score", report.OverallScore,
		"scored", report.ScoredViewports, "duration", report.Duration)
	return report, nil
}

// resultFor turns a capture job into its report entry, running the
// comparison for captured viewports.
func (s *Service) resultFor(ctx context.Context, req Request, job capture.JobResult) models.ComparisonResult {
	base := models.ComparisonResult{
		Viewport: job.Viewport,
		Warnings: []models.Warning{},
	}

	if job.State != capture.JobDone {
		base.Outcome = models.OutcomeFailedCapture
		if job.Cancelled {
			base.Outcome = models.OutcomeCancelled
		}
		if job.Err != nil {
			base.Error = job.Err.Error()
		}
		return base
	}

	shot := job.Screenshot
	base.ScreenshotID = shot.ID
	base.ScreenshotPath = shot.FilePath
	base.Outcome = models.OutcomeCaptured

	ref := ResolveReference(req.ReferenceDesignPath, req.PageName, job.Viewport)
	res, err := s.cfg.Comparer.Compare(ctx, shot.FilePath, ref)
	if err != nil {
		base.ReferencePath = ref
		base.Error = fmt.Sprintf("compare: %v", err)
		base.Outcome = models.OutcomeFailedComparison
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			base.Outcome = models.OutcomeCancelled
		}
		s.cfg.Logger.Warn("validation: comparison failed", "viewport", job.Viewport.Name, "error", err)
		return base
	}

	res.ScreenshotID = shot.ID
	res.ScreenshotPath = shot.FilePath
	res.Viewport = job.Viewport
	res.Outcome = models.OutcomeCaptured
	if res.Warnings == nil {
		res.Warnings = []models.Warning{}
	}
	return res
}

// aggregate returns the mean of the non-null scores and how many there were.
func aggregate(results []models.ComparisonResult) (float64, int) {
	var sum float64
	n := 0
	for _, r := range results {
		if r.SimilarityScore != nil {
			sum += *r.SimilarityScore
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), n
}

func classify(score float64, scored int, threshold float64, results []models.ComparisonResult) models.ReportStatus {
	unscored := false
	for _, r := range results {
		switch r.Outcome {
		case models.OutcomeCancelled:
			return models.StatusIncomplete
		case models.OutcomeFailedComparison:
			unscored = true
		}
	}
	if !unscored && scored > 0 && score >= threshold {
		return models.StatusPassed
	}
	return models.StatusNeedsImprovement
}

func (s *Service) recommend(ctx context.Context, results []models.ComparisonResult, threshold float64) []models.Recommendation {
	recs := []models.Recommendation{}
	for _, r := range results {
		switch {
		case r.SimilarityScore != nil && *r.SimilarityScore < threshold:
			score := *r.SimilarityScore
			priority := models.PriorityMedium
			if score < models.HighPriorityBelow {
				priority = models.PriorityHigh
			}
			finding, err := s.cfg.Analyzer.Analyze(ctx, r)
			if err != nil {
				s.cfg.Logger.Warn("validation: analyzer failed", "viewport", r.Viewport.Name, "error", err)
				finding = analyze.Finding{Category: analyze.CategoryLayout, Summary: "visual differences detected"}
			}
			recs = append(recs, models.Recommendation{
				Viewport: r.Viewport.Name,
				Priority: priority,
				Category: finding.Category,
				Message: fmt.Sprintf("%s viewport scored %.2f, below the %.2f threshold: %s",
					r.Viewport.Name, score, threshold, finding.Summary),
				Score: &score,
			})

		case r.HasWarning(models.WarningReferenceMissing):
			recs = append(recs, models.Recommendation{
				Viewport: r.Viewport.Name,
				Priority: models.PriorityLow,
				Category: "reference",
				Message:  fmt.Sprintf("No reference design found for the %s viewport; provide one to enable scoring", r.Viewport.Name),
			})

		case r.HasWarning(models.WarningReferenceUnreadable):
			recs = append(recs, models.Recommendation{
				Viewport: r.Viewport.Name,
				Priority: models.PriorityLow,
				Category: "reference",
				Message:  fmt.Sprintf("Reference design for the %s viewport could not be decoded; replace it with a PNG or JPEG", r.Viewport.Name),
			})
		}
	}
	return recs
}

func normalize(req *Request) error {
	if req.TargetURL == "" {
		return fmt.Errorf("target URL is required")
	}
	if len(req.Viewports) == 0 {
		req.Viewports = models.DefaultViewports()
	}
	for _, vp := range req.Viewports {
		if err := vp.Validate(); err != nil {
			return err
		}
	}
	if req.Threshold == 0 {
		req.Threshold = models.DefaultThreshold
	}
	if req.Threshold < 0 || req.Threshold > 1 {
		return fmt.Errorf("threshold must be within [0,1], got %v", req.Threshold)
	}
	if req.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	return nil
}
