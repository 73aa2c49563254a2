package report

import (
	"bytes"
	"fmt"
	"html"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/ShayCichocki/vizguard/pkg/models"
)

// RenderMarkdown renders the human-readable summary of r. Image links are
// relative to baseDir, the directory the Markdown file is written to.
func RenderMarkdown(r *models.ValidationReport, baseDir string) []byte {
	var b bytes.Buffer

	fmt.Fprintf(&b, "# Visual validation: %s\n\n", r.PageName)
	fmt.Fprintf(&b, "- **URL:** %s\n", r.TargetURL)
	fmt.Fprintf(&b, "- **Status:** %s\n", r.Status)
	fmt.Fprintf(&b, "- **Overall score:** %.3f (threshold %.2f, %d of %d viewports scored)\n",
		r.OverallScore, r.Threshold, r.ScoredViewports, len(r.PerViewportResults))
	fmt.Fprintf(&b, "- **Validation ID:** `%s`\n", r.ValidationID)
	fmt.Fprintf(&b, "- **Timestamp:** %s\n", r.Timestamp.UTC().Format("2006-01-02 15:04:05 MST"))
	if r.ReferencePath != "" {
		fmt.Fprintf(&b, "- **Reference:** `%s`\n", r.ReferencePath)
	}
	if r.Metadata.Task != "" {
		fmt.Fprintf(&b, "- **Task:** %s\n", r.Metadata.Task)
	}
	if r.Metadata.Sprint != "" {
		fmt.Fprintf(&b, "- **Sprint:** %s\n", r.Metadata.Sprint)
	}

	b.WriteString("\n## Viewports\n\n")
	b.WriteString("| Viewport | Size | Outcome | Score | Warnings |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, res := range r.PerViewportResults {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			res.Viewport.Name, res.Viewport.Dimensions(), res.Outcome, formatScore(res.SimilarityScore), formatWarnings(res.Warnings))
	}

	b.WriteString("\n## Recommendations\n\n")
	if len(r.Recommendations) == 0 {
		b.WriteString("None.\n")
	}
	for _, rec := range r.Recommendations {
		fmt.Fprintf(&b, "- **[%s]** (%s) %s\n", rec.Priority, rec.Category, rec.Message)
	}

	b.WriteString("\n## Artifacts\n")
	for _, res := range r.PerViewportResults {
		fmt.Fprintf(&b, "\n### %s\n\n", res.Viewport.Name)
		if res.Error != "" {
			fmt.Fprintf(&b, "Error: `%s`\n\n", res.Error)
		}
		wrote := false
		if res.ScreenshotPath != "" {
			fmt.Fprintf(&b, "![%s screenshot](%s)\n", res.Viewport.Name, relLink(baseDir, res.ScreenshotPath))
			wrote = true
		}
		if res.DiffImagePath != nil {
			fmt.Fprintf(&b, "![%s diff](%s)\n", res.Viewport.Name, relLink(baseDir, *res.DiffImagePath))
			wrote = true
		}
		if res.Stats != nil {
			fmt.Fprintf(&b, "\n%d differing pixels (%.2f%%), region (%d,%d)-(%d,%d)\n",
				res.Stats.DiffPixels, res.Stats.DiffRatio*100,
				res.Stats.Bounds.MinX, res.Stats.Bounds.MinY, res.Stats.Bounds.MaxX, res.Stats.Bounds.MaxY)
			wrote = true
		}
		if !wrote && res.Error == "" {
			b.WriteString("No artifacts.\n")
		}
	}

	return b.Bytes()
}

// RenderChatSummary renders a compact summary suitable for pasting into chat.
func RenderChatSummary(r *models.ValidationReport, paths Paths) string {
	var b strings.Builder

	fmt.Fprintf(&b, "**vizguard** `%s`: **%s** (%.2f / %.2f)\n", r.PageName, r.Status, r.OverallScore, r.Threshold)

	parts := make([]string, 0, len(r.PerViewportResults))
	for _, res := range r.PerViewportResults {
		switch {
		case res.SimilarityScore != nil:
			parts = append(parts, fmt.Sprintf("%s %.2f", res.Viewport.Name, *res.SimilarityScore))
		default:
			parts = append(parts, fmt.Sprintf("%s %s", res.Viewport.Name, strings.ToLower(string(res.Outcome))))
		}
	}
	b.WriteString(strings.Join(parts, " | "))
	b.WriteString("\n")

	for _, rec := range r.Recommendations {
		if rec.Priority == models.PriorityHigh {
			fmt.Fprintf(&b, "- %s: %s\n", rec.Viewport, rec.Message)
		}
	}
	if p := paths.Primary(); p != "" {
		fmt.Fprintf(&b, "Report: `%s`\n", p)
	}
	return b.String()
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// RenderHTML converts Markdown to a standalone HTML page.
func RenderHTML(title string, md []byte) ([]byte, error) {
	var body bytes.Buffer
	if err := markdown.Convert(md, &body); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}

	var b bytes.Buffer
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(title))
	b.WriteString("<style>body{font-family:sans-serif;max-width:960px;margin:2rem auto}" +
		"table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:4px 8px}img{max-width:100%}</style>\n")
	b.WriteString("</head>\n<body>\n")
	b.Write(body.Bytes())
	b.WriteString("</body>\n</html>\n")
	return b.Bytes(), nil
}

func formatScore(s *float64) string {
	if s == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.3f", *s)
}

func formatWarnings(ws []models.Warning) string {
	if len(ws) == 0 {
		return "-"
	}
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = string(w)
	}
	return strings.Join(out, ", ")
}

// relLink returns target relative to baseDir with forward slashes, or the
// absolute path when no relative form exists.
func relLink(baseDir, target string) string {
	if baseDir != "" {
		absBase, err1 := filepath.Abs(baseDir)
		absTarget, err2 := filepath.Abs(target)
		if err1 == nil && err2 == nil {
			if rel, err := filepath.Rel(absBase, absTarget); err == nil {
				return filepath.ToSlash(rel)
			}
		}
	}
	return filepath.ToSlash(target)
}
