// Package analyze labels a scored comparison with the kind of visual
// problem it most likely shows. Labels feed report recommendations.
package analyze

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/vizguard/pkg/models"
)

// Categories assigned by analyzers.
const (
	CategoryLayout     = "layout"
	CategoryColor      = "color"
	CategorySpacing    = "spacing"
	CategoryTypography = "typography"
	CategoryContent    = "content"
)

// Finding is an analyzer's verdict for one viewport.
type Finding struct {
	Category string `json:"category"`
	Summary  string `json:"summary"`
}

// Analyzer labels a scored comparison result.
type Analyzer interface {
	Analyze(ctx context.Context, res models.ComparisonResult) (Finding, error)
}

// Heuristic labels results from diff statistics alone.
type Heuristic struct{}

// Analyze implements Analyzer.
func (Heuristic) Analyze(_ context.Context, res models.ComparisonResult) (Finding, error) {
	if res.HasWarning(models.WarningDimensionMismatch) {
		return Finding{
			Category: CategoryLayout,
			Summary:  "rendered page size differs from the reference design",
		}, nil
	}

	stats := res.Stats
	if stats == nil || stats.Width*stats.Height == 0 {
		return Finding{Category: CategoryLayout, Summary: "no diff statistics available"}, nil
	}

	coverage := float64(stats.Bounds.Area()) / float64(stats.Width*stats.Height)
	switch {
	case stats.DiffRatio >= 0.25 && coverage >= 0.5:
		return Finding{
			Category: CategoryLayout,
			Summary:  fmt.Sprintf("%.0f%% of pixels differ across most of the page", stats.DiffRatio*100),
		}, nil
	case stats.DiffRatio < 0.05:
		return Finding{
			Category: CategorySpacing,
			Summary:  fmt.Sprintf("localized differences in region %s", formatRect(stats.Bounds)),
		}, nil
	default:
		return Finding{
			Category: CategoryColor,
			Summary:  fmt.Sprintf("mean color delta %.3f over %.0f%% of pixels", stats.MeanDelta, stats.DiffRatio*100),
		}, nil
	}
}

func formatRect(r models.Rect) string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", r.MinX, r.MinY, r.MaxX, r.MaxY)
}
