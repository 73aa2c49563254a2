package analyze

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ShayCichocki/vizguard/internal/api"
	"github.com/ShayCichocki/vizguard/pkg/models"
)

// JSONRunner sends a prompt with images and decodes a JSON reply.
// *api.Runner implements it.
type JSONRunner interface {
	RunJSON(ctx context.Context, system, prompt string, target any, images ...api.Image) error
}

const claudeSystem = `You are a meticulous visual QA reviewer comparing a rendered web page against its reference design.
Reply with a single JSON object: {"category": "<layout|color|spacing|typography|content>", "summary": "<one sentence>"}.`

// Claude asks a vision model to label the regression, falling back to
// another analyzer when the call fails.
type Claude struct {
	runner   JSONRunner
	fallback Analyzer
	log      *slog.Logger
}

// NewClaude creates a Claude analyzer. A nil fallback uses Heuristic.
func NewClaude(runner JSONRunner, fallback Analyzer, log *slog.Logger) *Claude {
	if fallback == nil {
		fallback = Heuristic{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Claude{runner: runner, fallback: fallback, log: log}
}

// Analyze implements Analyzer.
func (c *Claude) Analyze(ctx context.Context, res models.ComparisonResult) (Finding, error) {
	f, err := c.ask(ctx, res)
	if err != nil {
		c.log.Warn("analyze: vision analysis failed, using fallback",
			"viewport", res.Viewport.Name, "error", err)
		return c.fallback.Analyze(ctx, res)
	}
	return f, nil
}

func (c *Claude) ask(ctx context.Context, res models.ComparisonResult) (Finding, error) {
	var images []api.Image
	for _, src := range []struct {
		label string
		path  string
	}{
		{"Reference design:", res.ReferencePath},
		{"Rendered page:", res.ScreenshotPath},
	} {
		if src.path == "" {
			return Finding{}, fmt.Errorf("missing %s image", strings.TrimSuffix(src.label, ":"))
		}
		img, err := loadImage(src.label, src.path)
		if err != nil {
			return Finding{}, err
		}
		images = append(images, img)
	}
	if res.DiffImagePath != nil {
		if img, err := loadImage("Diff (changed pixels in red):", *res.DiffImagePath); err == nil {
			images = append(images, img)
		}
	}

	score := 0.0
	if res.SimilarityScore != nil {
		score = *res.SimilarityScore
	}
	prompt := fmt.Sprintf("Viewport %s scored %.3f similarity. Classify the main visual difference.",
		res.Viewport.String(), score)

	var f Finding
	if err := c.runner.RunJSON(ctx, claudeSystem, prompt, &f, images...); err != nil {
		return Finding{}, err
	}
	f.Category = strings.ToLower(strings.TrimSpace(f.Category))
	if !knownCategory(f.Category) {
		return Finding{}, fmt.Errorf("unknown category %q", f.Category)
	}
	return f, nil
}

func loadImage(label, path string) (api.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return api.Image{}, fmt.Errorf("read image: %w", err)
	}
	return api.Image{Label: label, MediaType: mediaType(path), Data: data}, nil
}

func mediaType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}

func knownCategory(c string) bool {
	switch c {
	case CategoryLayout, CategoryColor, CategorySpacing, CategoryTypography, CategoryContent:
		return true
	}
	return false
}
